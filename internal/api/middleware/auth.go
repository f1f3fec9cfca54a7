package middleware

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/srsmanager/accounts-api/internal/api/metrics"
	"github.com/srsmanager/accounts-api/internal/core/ports"
)

// SubjectKey is the echo.Context key holding the authenticated email.
const SubjectKey = "auth.subject"

const (
	msgNotAuthenticated = "No autenticado"
	msgInvalidToken     = "Token inválido o expirado"
)

// Auth validates the bearer token and injects its subject into the context.
func Auth(tokens ports.TokenValidator) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
			if authHeader == "" {
				metrics.TokenValidationsTotal.WithLabelValues("missing").Inc()
				return unauthorized(c, msgNotAuthenticated)
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
				metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
				return unauthorized(c, msgNotAuthenticated)
			}

			subject, ok := tokens.Validate(strings.TrimSpace(parts[1]))
			if !ok {
				metrics.TokenValidationsTotal.WithLabelValues("invalid").Inc()
				return unauthorized(c, msgInvalidToken)
			}
			metrics.TokenValidationsTotal.WithLabelValues("valid").Inc()

			c.Set(SubjectKey, subject)
			return next(c)
		}
	}
}

func unauthorized(c echo.Context, msg string) error {
	c.Response().Header().Set(echo.HeaderWWWAuthenticate, "Bearer")
	return echo.NewHTTPError(http.StatusUnauthorized, msg)
}
