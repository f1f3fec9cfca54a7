package api

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	echoSwagger "github.com/swaggo/echo-swagger"

	_ "github.com/srsmanager/accounts-api/docs"
	"github.com/srsmanager/accounts-api/internal/api/handler"
	"github.com/srsmanager/accounts-api/internal/api/metrics"
	"github.com/srsmanager/accounts-api/internal/api/middleware"
	"github.com/srsmanager/accounts-api/internal/core/ports"
)

// RouterDeps carries everything the HTTP surface needs.
type RouterDeps struct {
	Accounts    ports.AccountService
	Tokens      ports.TokenValidator
	Checks      map[string]handler.DependencyCheck
	CORSOrigins []string
	Version     string
	Log         zerolog.Logger
	// Registry receives the per-request HTTP metrics. A fresh registry is
	// created when nil.
	Registry *prometheus.Registry
}

// NewRouter builds and returns the Echo instance with all routes registered.
func NewRouter(deps RouterDeps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = NewHTTPErrorHandler(deps.Log)
	e.Validator = handler.NewValidator()

	registry := deps.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// --- Global middleware ---
	// Metrics wrap Recover so panicking requests are counted as 500s.
	e.Use(echoprometheus.NewMiddlewareWithConfig(echoprometheus.MiddlewareConfig{
		Namespace:                 metrics.Namespace,
		Subsystem:                 "http",
		Registerer:                registry,
		DoNotUseRequestPathFor404: true,
		StatusCodeResolver:        responseStatus,
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	}))
	e.Use(requestLogger(deps.Log))
	e.Use(echomiddleware.CORSWithConfig(echomiddleware.CORSConfig{
		AllowOrigins:     deps.CORSOrigins,
		AllowCredentials: true,
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodOptions},
		AllowHeaders: []string{
			echo.HeaderContentType,
			echo.HeaderAuthorization,
			handler.IdempotencyHeader,
		},
	}))

	// --- Service endpoints (no auth required) ---
	e.GET("/", handler.Welcome(deps.Version))
	e.GET("/health", handler.NewHealthHandler().Liveness)                     // liveness  – is the process alive?
	e.GET("/health/ready", handler.NewReadinessHandler(deps.Checks).Readiness) // readiness – are dependencies up?
	e.GET("/metrics", echoprometheus.NewHandlerWithConfig(echoprometheus.HandlerConfig{
		Gatherer: prometheus.Gatherers{prometheus.DefaultGatherer, registry},
	}))
	e.GET("/swagger/*", echoSwagger.WrapHandler)

	// --- Account routes ---
	users := handler.NewUserHandler(deps.Accounts)
	requireToken := middleware.Auth(deps.Tokens)

	g := e.Group("/usuarios")
	g.POST("/registro", users.Register)
	g.POST("/login", users.Login)
	g.POST("/verify-token", users.VerifyToken)
	g.GET("/", users.List)
	e.GET("/usuarios", users.List)
	g.GET("/count/total", users.CountActive)
	g.GET("/perfil/:email", users.GetProfileByEmail)
	g.PUT("/perfil", users.UpdateProfile, requireToken)
	g.GET("/:id", users.GetByID)

	return e
}

// requestLogger writes one access log entry per request through zerolog.
func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogStatus:    true,
		LogMethod:    true,
		LogURIPath:   true,
		LogLatency:   true,
		LogRequestID: true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomiddleware.RequestLoggerValues) error {
			evt := log.Info()
			switch {
			case v.Status >= http.StatusInternalServerError:
				evt = log.Error().Err(v.Error)
			case v.Status >= http.StatusBadRequest:
				evt = log.Warn()
			}
			evt.Str("method", v.Method).
				Str("path", v.URIPath).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("request_id", v.RequestID).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}
