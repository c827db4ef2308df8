package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv string `env:"APP_ENV" default:"development" validate:"oneof=development production test"`
	Port   string `env:"PORT" default:"8080" validate:"required,numeric"`
	AppURL string `env:"APP_URL" default:"http://localhost:8080" validate:"required,url"`

	DatabaseURL        string `env:"DATABASE_URL" validate:"required"`
	RedisURL           string `env:"REDIS_URL" validate:"required"`
	TokenEncryptionKey string `env:"TOKEN_ENCRYPTION_KEY" validate:"required"`

	SpotifyClientID     string `env:"SPOTIFY_CLIENT_ID" validate:"required"`
	SpotifyClientSecret string `env:"SPOTIFY_CLIENT_SECRET" validate:"required"`
	SpotifyAPIURL       string `env:"SPOTIFY_API_URL" default:"https://api.spotify.com/v1" validate:"url"`
	SpotifyTokenURL     string `env:"SPOTIFY_TOKEN_URL" default:"https://accounts.spotify.com/api/token" validate:"url"`

	LogLevel  string `env:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	LogFormat string `env:"LOG_FORMAT" default:"text" validate:"oneof=text json"`

	PollTickInterval time.Duration `env:"POLL_TICK_INTERVAL" default:"1s" validate:"gt=0"`
	PollUserInterval time.Duration `env:"POLL_USER_INTERVAL" default:"5s" validate:"gt=0"`
	PollErrorBackoff time.Duration `env:"POLL_ERROR_BACKOFF" default:"5s" validate:"gt=0"`
	PollUserTimeout  time.Duration `env:"POLL_USER_TIMEOUT" default:"15s" validate:"gt=0"`
	PollWorkers      int           `env:"POLL_WORKERS" default:"1" validate:"min=1,max=64"`

	MaxWebSocketConnections int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"10000" validate:"min=1"`
	MaxConnectionsPerIP     int     `env:"MAX_CONNECTIONS_PER_IP" default:"20" validate:"min=1"`
	WSRateLimit             float64 `env:"WS_RATE_LIMIT" default:"10" validate:"gt=0"`
	WSRateBurst             int     `env:"WS_RATE_BURST" default:"20" validate:"min=1"`
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var structValidator = newValidator()

// newValidator reports fields by their environment variable name.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("env"), ",")
		if name == "" {
			return field.Name
		}
		return name
	})
	return v
}

func validate(cfg *Config) error {
	if err := structValidator.Struct(cfg); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		errs := make([]error, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			errs = append(errs, describe(fe))
		}
		return errors.Join(errs...)
	}

	keyBytes, err := hex.DecodeString(cfg.TokenEncryptionKey)
	if err != nil {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be valid hex: %w", err)
	}
	if len(keyBytes) != 32 {
		return fmt.Errorf("TOKEN_ENCRYPTION_KEY must be exactly 64 hex characters (32 bytes), got %d bytes", len(keyBytes))
	}

	if cfg.AppEnv == "production" {
		if mode := sslMode(cfg.DatabaseURL); mode == "disable" || mode == "allow" {
			return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
		}
	}

	return nil
}

func describe(fe validator.FieldError) error {
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s is required", fe.Field())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s], got %q", fe.Field(), fe.Param(), fe.Value())
	case "url":
		return fmt.Errorf("%s must be a valid URL", fe.Field())
	case "numeric":
		return fmt.Errorf("%s must be numeric", fe.Field())
	case "gt":
		return fmt.Errorf("%s must be greater than %s", fe.Field(), fe.Param())
	case "min":
		return fmt.Errorf("%s must be at least %s", fe.Field(), fe.Param())
	case "max":
		return fmt.Errorf("%s must be at most %s", fe.Field(), fe.Param())
	default:
		return fmt.Errorf("%s failed %s validation", fe.Field(), fe.Tag())
	}
}

func sslMode(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Query().Get("sslmode"))
}
