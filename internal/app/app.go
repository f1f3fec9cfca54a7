// Package app wires configuration, stores, services and the HTTP surface
// into a runnable application.
package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/srsmanager/accounts-api/internal/api"
	"github.com/srsmanager/accounts-api/internal/api/handler"
	"github.com/srsmanager/accounts-api/internal/core/ports"
	"github.com/srsmanager/accounts-api/internal/core/service"
	mongostore "github.com/srsmanager/accounts-api/internal/infrastructure/db/mongo"
	"github.com/srsmanager/accounts-api/internal/infrastructure/db/relational"
	redisstore "github.com/srsmanager/accounts-api/internal/infrastructure/db/redis"
	"github.com/srsmanager/accounts-api/internal/pkg/config"
)

// Version is reported by GET /.
var Version = "1.0.0"

// App owns every long-lived handle created at startup.
type App struct {
	Echo     *echo.Echo
	Accounts *service.AccountService

	closers []func(context.Context) error
}

// Build constructs the application from cfg. On error every handle opened
// so far is released.
func Build(ctx context.Context, cfg *config.Config, log zerolog.Logger) (_ *App, err error) {
	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	if cfg.EphemeralSecret {
		log.Warn().Msg("SECRET_KEY not set; using an ephemeral signing key, tokens will not survive a restart")
	}

	checks := map[string]handler.DependencyCheck{}

	repo, err := a.openStore(ctx, cfg, checks)
	if err != nil {
		return nil, err
	}
	log.Info().Str("driver", cfg.Store.Driver).Msg("user store ready")

	var idem ports.IdempotencyStore
	redisCfg := redisstore.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}
	if redisCfg.Enabled() {
		rdb, rerr := redisstore.Connect(ctx, redisCfg)
		if rerr != nil {
			log.Warn().Err(rerr).Msg("redis unavailable, Idempotency-Key headers will be ignored")
		} else {
			a.closers = append(a.closers, func(context.Context) error { return rdb.Close() })
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			idem = redisstore.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		}
	}

	tokens, err := service.NewTokenService(service.TokenConfig{
		Secret: []byte(cfg.Auth.Secret),
		TTL:    cfg.Auth.TTL(),
		Method: cfg.Auth.Algorithm,
		Issuer: cfg.Auth.Issuer,
	})
	if err != nil {
		return nil, err
	}
	hasher := service.NewPasswordHasher(cfg.Auth.BcryptCost)

	a.Accounts = service.NewAccountService(repo, hasher, tokens, idem, log.With().Str("component", "accounts").Logger())
	a.Echo = api.NewRouter(api.RouterDeps{
		Accounts:    a.Accounts,
		Tokens:      tokens,
		Checks:      checks,
		CORSOrigins: cfg.CORS.Origins,
		Version:     Version,
		Log:         log,
	})
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg *config.Config, checks map[string]handler.DependencyCheck) (ports.UserRepository, error) {
	if cfg.Store.Driver == "mongo" {
		client, db, err := mongostore.Connect(ctx, mongostore.Config{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Timeout:  cfg.Store.Timeout,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, client.Disconnect)
		checks["store"] = func(ctx context.Context) error { return mongostore.Ping(ctx, db) }
		return mongostore.NewUserRepository(db, cfg.Store.Timeout), nil
	}

	db, err := relational.Open(ctx, relational.Config{
		Driver:   cfg.Store.Driver,
		DSN:      cfg.Store.DSN,
		Host:     cfg.Store.Host,
		Port:     cfg.Store.Port,
		User:     cfg.Store.User,
		Password: cfg.Store.Password,
		Name:     cfg.Store.Name,
		Timeout:  cfg.Store.Timeout,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(context.Context) error { return relational.Close(db) })
	checks["store"] = func(ctx context.Context) error { return relational.Ping(ctx, db) }
	return relational.NewUserRepository(db, cfg.Store.Timeout), nil
}

// Handler exposes the HTTP surface.
func (a *App) Handler() http.Handler {
	return a.Echo
}

// Close releases store and cache connections in reverse opening order.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
