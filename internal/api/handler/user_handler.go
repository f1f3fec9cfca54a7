package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/srsmanager/accounts-api/internal/api/metrics"
	"github.com/srsmanager/accounts-api/internal/core/domain"
	"github.com/srsmanager/accounts-api/internal/core/ports"
)

// IdempotencyHeader lets clients retry a registration safely.
const IdempotencyHeader = "Idempotency-Key"

const (
	msgRegistered = "Usuario registrado exitosamente"
	msgLoggedIn   = "Login exitoso"
)

type UserHandler struct {
	accounts ports.AccountService
}

func NewUserHandler(accounts ports.AccountService) *UserHandler {
	return &UserHandler{accounts: accounts}
}

// Register creates a new developer account and returns a token for it.
//
// @Summary      Register a new user
// @Tags         usuarios
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string           false  "Replays the first response for retried requests"
// @Param        body             body      registerRequest  true   "Registration details"
// @Success      201              {object}  authResponse
// @Failure      400              {object}  errorResponse
// @Failure      409              {object}  errorResponse
// @Failure      500              {object}  errorResponse
// @Router       /usuarios/registro [post]
func (h *UserHandler) Register(c echo.Context) error {
	var req registerRequest
	if err := bindAndValidate(c, &req); err != nil {
		metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		return err
	}

	res, err := h.accounts.Register(c.Request().Context(), ports.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		IdempotencyKey: strings.TrimSpace(c.Request().Header.Get(IdempotencyHeader)),
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrUserExists):
			metrics.RegistrationsTotal.WithLabelValues("conflict").Inc()
		case errors.Is(err, domain.ErrPasswordTooLong):
			metrics.RegistrationsTotal.WithLabelValues("invalid").Inc()
		default:
			metrics.RegistrationsTotal.WithLabelValues("error").Inc()
		}
		return err
	}

	if res.Replayed {
		metrics.RegistrationsTotal.WithLabelValues("replayed").Inc()
	} else {
		metrics.RegistrationsTotal.WithLabelValues("created").Inc()
	}

	return c.JSON(http.StatusCreated, authResponse{
		Token:   res.Token,
		Usuario: toUsuarioResponse(res.User),
		Message: msgRegistered,
	})
}

// Login authenticates a user and returns a JWT.
//
// @Summary      Login
// @Tags         usuarios
// @Accept       json
// @Produce      json
// @Param        body  body      loginRequest  true  "Credentials"
// @Success      200   {object}  authResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      500   {object}  errorResponse
// @Router       /usuarios/login [post]
func (h *UserHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	res, err := h.accounts.Authenticate(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			metrics.LoginsTotal.WithLabelValues("invalid_credentials").Inc()
		} else {
			metrics.LoginsTotal.WithLabelValues("error").Inc()
		}
		return err
	}
	metrics.LoginsTotal.WithLabelValues("success").Inc()

	return c.JSON(http.StatusOK, authResponse{
		Token:   res.Token,
		Usuario: toUsuarioResponse(res.User),
		Message: msgLoggedIn,
	})
}

// VerifyToken reports whether a token is currently valid.
//
// @Summary      Verify a token
// @Tags         usuarios
// @Accept       json
// @Produce      json
// @Param        body  body      verifyTokenRequest  true  "Token to check"
// @Success      200   {object}  verifyTokenResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Router       /usuarios/verify-token [post]
func (h *UserHandler) VerifyToken(c echo.Context) error {
	var req verifyTokenRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Cuerpo de la petición inválido").SetInternal(err)
	}

	if err := h.accounts.VerifyToken(req.Token); err != nil {
		if errors.Is(err, domain.ErrMissingToken) {
			metrics.TokenValidationsTotal.WithLabelValues("missing").Inc()
		} else {
			metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
		}
		return err
	}
	metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()

	return c.JSON(http.StatusOK, verifyTokenResponse{Valid: true})
}

// List returns a page of users in ascending id order.
//
// @Summary      List users
// @Tags         usuarios
// @Produce      json
// @Param        skip   query     int  false  "Records to skip"       default(0)
// @Param        limit  query     int  false  "Maximum records (<=1000)"  default(100)
// @Success      200    {array}   usuarioResponse
// @Failure      400    {object}  errorResponse
// @Router       /usuarios/ [get]
func (h *UserHandler) List(c echo.Context) error {
	skip, limit := 0, 100
	if err := echo.QueryParamsBinder(c).
		Int("skip", &skip).
		Int("limit", &limit).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "skip y limit deben ser números enteros").SetInternal(err)
	}

	users, err := h.accounts.List(c.Request().Context(), skip, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsuarioResponses(users))
}

// GetByID returns a single user.
//
// @Summary      Get user by id
// @Tags         usuarios
// @Produce      json
// @Param        id   path      string  true  "User id"
// @Success      200  {object}  usuarioResponse
// @Failure      404  {object}  errorResponse
// @Router       /usuarios/{id} [get]
func (h *UserHandler) GetByID(c echo.Context) error {
	user, err := h.accounts.GetByID(c.Request().Context(), c.Param("id"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsuarioResponse(user))
}

// GetProfileByEmail returns a user looked up by email.
//
// @Summary      Get profile by email
// @Tags         usuarios
// @Produce      json
// @Param        email  path      string  true  "Account email"
// @Success      200    {object}  usuarioResponse
// @Failure      404    {object}  errorResponse
// @Router       /usuarios/perfil/{email} [get]
func (h *UserHandler) GetProfileByEmail(c echo.Context) error {
	user, err := h.accounts.GetByEmail(c.Request().Context(), c.Param("email"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsuarioResponse(user))
}

// UpdateProfile changes the caller's own name or email.
//
// @Summary      Update own profile
// @Tags         usuarios
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body      updateProfileRequest  true  "Fields to change"
// @Success      200   {object}  usuarioResponse
// @Failure      400   {object}  errorResponse
// @Failure      401   {object}  errorResponse
// @Failure      404   {object}  errorResponse
// @Failure      409   {object}  errorResponse
// @Router       /usuarios/perfil [put]
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	subject, err := ctxSubject(c)
	if err != nil {
		return err
	}

	var req updateProfileRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	user, err := h.accounts.UpdateProfile(c.Request().Context(), subject, req.toDomain())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, toUsuarioResponse(user))
}

// CountActive returns the number of active accounts.
//
// @Summary      Count active users
// @Tags         usuarios
// @Produce      json
// @Success      200  {object}  countResponse
// @Router       /usuarios/count/total [get]
func (h *UserHandler) CountActive(c echo.Context) error {
	total, err := h.accounts.CountActive(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, countResponse{Total: total})
}

func bindAndValidate(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Cuerpo de la petición inválido").SetInternal(err)
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}
