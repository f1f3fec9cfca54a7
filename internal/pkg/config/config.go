package config

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

const EnvProduction = "production"

type Config struct {
	Port      int    `env:"PORT,       default=8000"`
	Env       string `env:"ENV,        default=development"`
	LogLevel  string `env:"LOG_LEVEL,  default=info"`
	LogPretty bool   `env:"LOG_PRETTY, default=false"`

	Auth  AuthConfig
	Store StoreConfig
	Mongo MongoConfig
	Redis RedisConfig
	CORS  CORSConfig

	// EphemeralSecret is set when no SECRET_KEY was configured outside
	// production and a random key was generated for this process.
	EphemeralSecret bool
}

type AuthConfig struct {
	Secret        string `env:"SECRET_KEY"`
	Algorithm     string `env:"ALGORITHM,                   default=HS256"`
	ExpireMinutes int    `env:"ACCESS_TOKEN_EXPIRE_MINUTES, default=10080"`
	Issuer        string `env:"TOKEN_ISSUER,                default=srs-manager"`
	BcryptCost    int    `env:"BCRYPT_COST,                 default=10"`
}

// TTL is the lifetime of issued tokens.
func (a AuthConfig) TTL() time.Duration {
	return time.Duration(a.ExpireMinutes) * time.Minute
}

type StoreConfig struct {
	Driver   string        `env:"DB_DRIVER,   default=mysql"`
	DSN      string        `env:"DB_DSN"`
	Host     string        `env:"DB_HOST,     default=localhost"`
	Port     int           `env:"DB_PORT,     default=3306"`
	User     string        `env:"DB_USER,     default=root"`
	Password string        `env:"DB_PASSWORD"`
	Name     string        `env:"DB_NAME,     default=srs_manager"`
	Timeout  time.Duration `env:"DB_TIMEOUT,  default=5s"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=srs_manager"`
}

// RedisConfig is optional; an empty Addr disables the idempotency store.
type RedisConfig struct {
	Addr           string        `env:"REDIS_ADDR"`
	Password       string        `env:"REDIS_PASSWORD"`
	DB             int           `env:"REDIS_DB,        default=0"`
	IdempotencyTTL time.Duration `env:"IDEMPOTENCY_TTL, default=24h"`
}

type CORSConfig struct {
	Origins []string `env:"CORS_ORIGINS, default=http://localhost:4200,http://localhost:4000,http://127.0.0.1:4200,http://127.0.0.1:4000"`
}

var drivers = map[string]bool{"mysql": true, "postgres": true, "sqlite": true, "mongo": true}

var algorithms = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

// Load reads configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadWith(ctx, envconfig.OsLookuper())
}

// LoadWith reads configuration from l, validates it and fills in an
// ephemeral signing key outside production when none is set.
func LoadWith(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: l}); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.Auth.Secret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("config: generate signing key: %w", err)
		}
		cfg.Auth.Secret = secret
		cfg.EphemeralSecret = true
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT %d out of range", c.Port))
	}
	if c.IsProduction() && strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("SECRET_KEY is required when ENV=production"))
	}
	if !algorithms[c.Auth.Algorithm] {
		errs = append(errs, fmt.Errorf("ALGORITHM %q is not one of HS256, HS384, HS512", c.Auth.Algorithm))
	}
	if c.Auth.ExpireMinutes <= 0 {
		errs = append(errs, fmt.Errorf("ACCESS_TOKEN_EXPIRE_MINUTES must be positive, got %d", c.Auth.ExpireMinutes))
	}
	if !drivers[c.Store.Driver] {
		errs = append(errs, fmt.Errorf("DB_DRIVER %q is not one of mysql, postgres, sqlite, mongo", c.Store.Driver))
	}
	if c.Store.Timeout <= 0 {
		errs = append(errs, errors.New("DB_TIMEOUT must be positive"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, EnvProduction)
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func randomSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
