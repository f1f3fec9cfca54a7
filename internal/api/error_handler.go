package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/srsmanager/accounts-api/internal/core/domain"
)

// errorResponse is the error envelope for all API errors.
type errorResponse struct {
	Detail string `json:"detail"`
}

// NewHTTPErrorHandler returns an echo.HTTPErrorHandler that:
//   - Maps known domain errors to their HTTP status codes and messages.
//   - Logs unexpected errors internally without leaking details to the client.
//   - Renders a consistent JSON envelope: {"detail": "<message>"}.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(code)
			return
		}
		_ = c.JSON(code, errorResponse{Detail: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) && he.Internal != nil {
		log.Debug().Err(he.Internal).Str("path", c.Path()).Msg("request rejected")
	}

	code, msg, known := classifyError(err)
	if !known {
		// Unexpected error: log the real cause, return a generic message.
		log.Error().
			Err(err).
			Str("method", c.Request().Method).
			Str("path", c.Path()).
			Msg("unhandled error")
	}
	return code, msg
}

// classifyError maps err to the status code and message sent to the client.
// known is false for errors that end up as a generic 500.
func classifyError(err error) (code int, msg string, known bool) {
	// Echo's own errors (bind failures, validation, unknown routes).
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message), true
	}

	switch {
	case errors.Is(err, domain.ErrUserExists):
		return http.StatusConflict, "El usuario con este email ya existe", true
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Credenciales inválidas", true
	case errors.Is(err, domain.ErrMissingToken):
		return http.StatusBadRequest, "Token no proporcionado", true
	case errors.Is(err, domain.ErrInvalidToken):
		return http.StatusUnauthorized, "Token inválido o expirado", true
	case errors.Is(err, domain.ErrUserNotFound):
		return http.StatusNotFound, "Usuario no encontrado", true
	case errors.Is(err, domain.ErrPasswordTooLong):
		return http.StatusBadRequest, "La contraseña no puede superar 72 bytes", true
	case errors.Is(err, domain.ErrInvalidRole):
		return http.StatusBadRequest, "Rol inválido", true
	}
	return http.StatusInternalServerError, "Error interno del servidor", false
}

// responseStatus reports the status a request ended with, for metrics
// recorded outside the error handler.
func responseStatus(c echo.Context, err error) int {
	if err == nil || c.Response().Committed {
		return c.Response().Status
	}
	code, _, _ := classifyError(err)
	return code
}
