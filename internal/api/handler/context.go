package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/srsmanager/accounts-api/internal/api/middleware"
)

// ctxSubject returns the email injected by the Auth middleware. An empty
// subject means the route was mounted without the middleware.
func ctxSubject(c echo.Context) (string, error) {
	subject, _ := c.Get(middleware.SubjectKey).(string)
	if subject == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "No autenticado")
	}
	return subject, nil
}
