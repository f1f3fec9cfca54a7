package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/srsmanager/accounts-api/internal/api/middleware"
	"github.com/srsmanager/accounts-api/internal/core/domain"
	"github.com/srsmanager/accounts-api/internal/core/ports"
)

type stubAccountService struct {
	registerFn      func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error)
	authenticateFn  func(ctx context.Context, email, password string) (*ports.AuthResult, error)
	updateProfileFn func(ctx context.Context, subject string, upd domain.ProfileUpdate) (*domain.User, error)
	verifyTokenFn   func(token string) error
	getByIDFn       func(ctx context.Context, id string) (*domain.User, error)
	getByEmailFn    func(ctx context.Context, email string) (*domain.User, error)
	listFn          func(ctx context.Context, skip, limit int) ([]*domain.User, error)
	countActiveFn   func(ctx context.Context) (int64, error)
}

func (s *stubAccountService) Register(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
	return s.registerFn(ctx, in)
}

func (s *stubAccountService) Authenticate(ctx context.Context, email, password string) (*ports.AuthResult, error) {
	return s.authenticateFn(ctx, email, password)
}

func (s *stubAccountService) UpdateProfile(ctx context.Context, subject string, upd domain.ProfileUpdate) (*domain.User, error) {
	return s.updateProfileFn(ctx, subject, upd)
}

func (s *stubAccountService) VerifyToken(token string) error {
	return s.verifyTokenFn(token)
}

func (s *stubAccountService) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return s.getByIDFn(ctx, id)
}

func (s *stubAccountService) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.getByEmailFn(ctx, email)
}

func (s *stubAccountService) List(ctx context.Context, skip, limit int) ([]*domain.User, error) {
	return s.listFn(ctx, skip, limit)
}

func (s *stubAccountService) CountActive(ctx context.Context) (int64, error) {
	return s.countActiveFn(ctx)
}

func sampleUser() *domain.User {
	return &domain.User{
		ID:           "1",
		Email:        "a@x.com",
		FirstName:    "Ana",
		LastName:     "Li",
		PasswordHash: "$2a$10$should-never-leave-the-server",
		Role:         domain.RoleDeveloper,
		RegisteredAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Active:       true,
	}
}

func newTestContext(method, target, body string) (*echo.Echo, echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	return e, e.NewContext(req, rec), rec
}

func expectHTTPError(t *testing.T, err error, code int) {
	t.Helper()
	var he *echo.HTTPError
	if !errors.As(err, &he) {
		t.Fatalf("expected *echo.HTTPError, got %v", err)
	}
	if he.Code != code {
		t.Fatalf("expected %d, got %d (%v)", code, he.Code, he.Message)
	}
}

func TestUserHandler_Register_Success(t *testing.T) {
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			if in.Email != "a@x.com" || in.Password != "pw1" || in.FirstName != "Ana" || in.LastName != "Li" {
				t.Fatalf("unexpected input: %+v", in)
			}
			if in.IdempotencyKey != "retry-1" {
				t.Fatalf("expected idempotency key, got %q", in.IdempotencyKey)
			}
			return &ports.AuthResult{Token: "token123", User: sampleUser()}, nil
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodPost, "/usuarios/registro",
		`{"email":"a@x.com","password":"pw1","nombre":"Ana","apellido":"Li"}`)
	c.Request().Header.Set(IdempotencyHeader, "retry-1")

	if err := h.Register(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "should-never-leave-the-server") {
		t.Fatalf("password hash leaked: %s", rec.Body.String())
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["token"] != "token123" || resp["message"] != "Usuario registrado exitosamente" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	usuario, ok := resp["usuario"].(map[string]any)
	if !ok {
		t.Fatalf("expected usuario in response")
	}
	if usuario["email"] != "a@x.com" || usuario["rol"] != "developer" || usuario["nombre"] != "Ana" {
		t.Fatalf("unexpected usuario payload: %+v", usuario)
	}
	if _, present := usuario["fechaLogin"]; !present {
		t.Fatalf("fechaLogin must be present (null) in projection")
	}
}

func TestUserHandler_Register_ValidationErrors(t *testing.T) {
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewUserHandler(stub)

	for name, body := range map[string]string{
		"malformed json": "not-json",
		"missing email":  `{"password":"pw1","nombre":"Ana","apellido":"Li"}`,
		"invalid email":  `{"email":"nope","password":"pw1","nombre":"Ana","apellido":"Li"}`,
		"missing names":  `{"email":"a@x.com","password":"pw1"}`,
		"long nombre":    `{"email":"a@x.com","password":"pw1","nombre":"` + strings.Repeat("a", 101) + `","apellido":"Li"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, c, _ := newTestContext(http.MethodPost, "/usuarios/registro", body)
			expectHTTPError(t, h.Register(c), http.StatusBadRequest)
		})
	}
}

func TestUserHandler_Register_Conflict(t *testing.T) {
	stub := &stubAccountService{
		registerFn: func(ctx context.Context, in ports.RegisterInput) (*ports.AuthResult, error) {
			return nil, domain.ErrUserExists
		},
	}
	h := NewUserHandler(stub)

	_, c, _ := newTestContext(http.MethodPost, "/usuarios/registro",
		`{"email":"a@x.com","password":"pw1","nombre":"Ana","apellido":"Li"}`)

	if err := h.Register(c); !errors.Is(err, domain.ErrUserExists) {
		t.Fatalf("expected ErrUserExists, got %v", err)
	}
}

func TestUserHandler_Login_Success(t *testing.T) {
	stub := &stubAccountService{
		authenticateFn: func(ctx context.Context, email, password string) (*ports.AuthResult, error) {
			if email != "a@x.com" || password != "pw1" {
				t.Fatalf("unexpected args: %s %s", email, password)
			}
			u := sampleUser()
			now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
			u.LastLoginAt = &now
			return &ports.AuthResult{Token: "token123", User: u}, nil
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodPost, "/usuarios/login", `{"email":"a@x.com","password":"pw1"}`)

	if err := h.Login(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if resp["token"] != "token123" || resp["message"] != "Login exitoso" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	usuario := resp["usuario"].(map[string]any)
	if usuario["fechaLogin"] != "2026-03-02T09:00:00Z" {
		t.Fatalf("unexpected fechaLogin: %v", usuario["fechaLogin"])
	}
}

func TestUserHandler_Login_InvalidCredentials(t *testing.T) {
	stub := &stubAccountService{
		authenticateFn: func(ctx context.Context, email, password string) (*ports.AuthResult, error) {
			return nil, domain.ErrInvalidCredentials
		},
	}
	h := NewUserHandler(stub)

	_, c, _ := newTestContext(http.MethodPost, "/usuarios/login", `{"email":"a@x.com","password":"bad"}`)

	if err := h.Login(c); !errors.Is(err, domain.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUserHandler_VerifyToken(t *testing.T) {
	stub := &stubAccountService{
		verifyTokenFn: func(token string) error {
			switch token {
			case "":
				return domain.ErrMissingToken
			case "good":
				return nil
			default:
				return domain.ErrInvalidToken
			}
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodPost, "/usuarios/verify-token", `{"token":"good"}`)
	if err := h.VerifyToken(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"valid":true`) {
		t.Fatalf("unexpected response %d %s", rec.Code, rec.Body.String())
	}

	_, c, _ = newTestContext(http.MethodPost, "/usuarios/verify-token", `{}`)
	if err := h.VerifyToken(c); !errors.Is(err, domain.ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}

	_, c, _ = newTestContext(http.MethodPost, "/usuarios/verify-token", `{"token":"forged"}`)
	if err := h.VerifyToken(c); !errors.Is(err, domain.ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestUserHandler_List(t *testing.T) {
	stub := &stubAccountService{
		listFn: func(ctx context.Context, skip, limit int) ([]*domain.User, error) {
			if skip != 5 || limit != 10 {
				t.Fatalf("unexpected paging: skip=%d limit=%d", skip, limit)
			}
			return []*domain.User{sampleUser()}, nil
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodGet, "/usuarios/?skip=5&limit=10", "")
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}

	var resp []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if len(resp) != 1 || resp[0]["email"] != "a@x.com" {
		t.Fatalf("unexpected payload: %+v", resp)
	}
	if _, leaked := resp[0]["password_hash"]; leaked {
		t.Fatalf("password hash leaked")
	}
}

func TestUserHandler_List_Defaults(t *testing.T) {
	stub := &stubAccountService{
		listFn: func(ctx context.Context, skip, limit int) ([]*domain.User, error) {
			if skip != 0 || limit != 100 {
				t.Fatalf("unexpected defaults: skip=%d limit=%d", skip, limit)
			}
			return nil, nil
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodGet, "/usuarios", "")
	if err := h.List(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("expected empty array, got %s", rec.Body.String())
	}
}

func TestUserHandler_List_BadQuery(t *testing.T) {
	h := NewUserHandler(&stubAccountService{})

	_, c, _ := newTestContext(http.MethodGet, "/usuarios/?skip=abc", "")
	expectHTTPError(t, h.List(c), http.StatusBadRequest)
}

func TestUserHandler_GetByID(t *testing.T) {
	stub := &stubAccountService{
		getByIDFn: func(ctx context.Context, id string) (*domain.User, error) {
			if id == "1" {
				return sampleUser(), nil
			}
			return nil, domain.ErrUserNotFound
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodGet, "/usuarios/1", "")
	c.SetParamNames("id")
	c.SetParamValues("1")
	if err := h.GetByID(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	_, c, _ = newTestContext(http.MethodGet, "/usuarios/99", "")
	c.SetParamNames("id")
	c.SetParamValues("99")
	if err := h.GetByID(c); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestUserHandler_GetProfileByEmail(t *testing.T) {
	stub := &stubAccountService{
		getByEmailFn: func(ctx context.Context, email string) (*domain.User, error) {
			if email != "a@x.com" {
				t.Fatalf("unexpected email %q", email)
			}
			return sampleUser(), nil
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodGet, "/usuarios/perfil/a@x.com", "")
	c.SetParamNames("email")
	c.SetParamValues("a@x.com")
	if err := h.GetProfileByEmail(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestUserHandler_UpdateProfile(t *testing.T) {
	stub := &stubAccountService{
		updateProfileFn: func(ctx context.Context, subject string, upd domain.ProfileUpdate) (*domain.User, error) {
			if subject != "a@x.com" {
				t.Fatalf("expected subject from token, got %q", subject)
			}
			if upd.FirstName == nil || *upd.FirstName != "Anabel" || upd.Email != nil || upd.LastName != nil {
				t.Fatalf("unexpected update: %+v", upd)
			}
			u := sampleUser()
			u.FirstName = *upd.FirstName
			return u, nil
		},
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodPut, "/usuarios/perfil", `{"nombre":"Anabel","rol":"admin"}`)
	c.Set(middleware.SubjectKey, "a@x.com")

	if err := h.UpdateProfile(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"rol":"developer"`) {
		t.Fatalf("role must not be changed through profile update: %s", rec.Body.String())
	}
}

func TestUserHandler_UpdateProfile_ValidationErrors(t *testing.T) {
	stub := &stubAccountService{
		updateProfileFn: func(ctx context.Context, subject string, upd domain.ProfileUpdate) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewUserHandler(stub)

	for name, body := range map[string]string{
		"blank nombre":   `{"nombre":""}`,
		"blank apellido": `{"apellido":""}`,
		"blank both":     `{"nombre":"","apellido":""}`,
		"blank email":    `{"email":""}`,
		"invalid email":  `{"email":"nope"}`,
		"long apellido":  `{"apellido":"` + strings.Repeat("a", 101) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, c, _ := newTestContext(http.MethodPut, "/usuarios/perfil", body)
			c.Set(middleware.SubjectKey, "a@x.com")
			expectHTTPError(t, h.UpdateProfile(c), http.StatusBadRequest)
		})
	}
}

func TestUserHandler_UpdateProfile_Unauthenticated(t *testing.T) {
	stub := &stubAccountService{
		updateProfileFn: func(ctx context.Context, subject string, upd domain.ProfileUpdate) (*domain.User, error) {
			t.Fatalf("should not be called")
			return nil, nil
		},
	}
	h := NewUserHandler(stub)

	_, c, _ := newTestContext(http.MethodPut, "/usuarios/perfil", `{"nombre":"Anabel"}`)
	expectHTTPError(t, h.UpdateProfile(c), http.StatusUnauthorized)
}

func TestUserHandler_CountActive(t *testing.T) {
	stub := &stubAccountService{
		countActiveFn: func(ctx context.Context) (int64, error) { return 3, nil },
	}
	h := NewUserHandler(stub)

	_, c, rec := newTestContext(http.MethodGet, "/usuarios/count/total", "")
	if err := h.CountActive(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"total":3}` {
		t.Fatalf("unexpected body: %s", rec.Body.String())
	}
}
