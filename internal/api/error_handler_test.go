package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/srsmanager/accounts-api/internal/core/domain"
)

func TestHTTPErrorHandler_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantDetail string
	}{
		{"user exists", domain.ErrUserExists, http.StatusConflict, "El usuario con este email ya existe"},
		{"wrapped user exists", fmt.Errorf("register: %w", domain.ErrUserExists), http.StatusConflict, "El usuario con este email ya existe"},
		{"invalid credentials", domain.ErrInvalidCredentials, http.StatusUnauthorized, "Credenciales inválidas"},
		{"missing token", domain.ErrMissingToken, http.StatusBadRequest, "Token no proporcionado"},
		{"invalid token", domain.ErrInvalidToken, http.StatusUnauthorized, "Token inválido o expirado"},
		{"not found", domain.ErrUserNotFound, http.StatusNotFound, "Usuario no encontrado"},
		{"password too long", domain.ErrPasswordTooLong, http.StatusBadRequest, "La contraseña no puede superar 72 bytes"},
		{"echo error passes through", echo.NewHTTPError(http.StatusBadRequest, "email is required"), http.StatusBadRequest, "email is required"},
		{"unexpected", errors.New("dial tcp 10.0.0.1:3306: connection refused"), http.StatusInternalServerError, "Error interno del servidor"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			req := httptest.NewRequest(http.MethodGet, "/usuarios/1", nil)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			NewHTTPErrorHandler(zerolog.Nop())(tt.err, c)

			if rec.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("invalid json: %v", err)
			}
			if body["detail"] != tt.wantDetail {
				t.Fatalf("expected detail %q, got %q", tt.wantDetail, body["detail"])
			}
		})
	}
}

func TestHTTPErrorHandler_DoesNotLeakInternalErrors(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs)

	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/usuarios/login", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	NewHTTPErrorHandler(log)(errors.New("secret-dsn-detail"), c)

	if strings.Contains(rec.Body.String(), "secret-dsn-detail") {
		t.Fatalf("internal error leaked to client: %s", rec.Body.String())
	}
	if !strings.Contains(logs.String(), "secret-dsn-detail") {
		t.Fatalf("expected internal error to be logged")
	}
}

func TestHTTPErrorHandler_SkipsCommittedResponse(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	_ = c.NoContent(http.StatusAccepted)

	NewHTTPErrorHandler(zerolog.Nop())(domain.ErrUserNotFound, c)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected committed status to be kept, got %d", rec.Code)
	}
}
