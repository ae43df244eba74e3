package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const defaultEnvFile = "configs/.env"

type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     string `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"postgres"`
	Password string `env:"DB_PASSWORD" envDefault:"postgres"`
	Name     string `env:"DB_NAME" envDefault:"postgres"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN renders the postgres connection URL.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     d.Host + ":" + d.Port,
		Path:     "/" + d.Name,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type AuthConfig struct {
	JWTSecret   string   `env:"AUTH_JWT_SECRET"`
	JWTAudience string   `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"`
	AdminRoles  []string `env:"ADMIN_ROLES" envDefault:"SuperAdmin,Admin"`

	// BootstrapAdmin is created as a SuperAdmin at startup when no account
	// has that email yet. The first sign-in with it links the identity.
	BootstrapAdmin string `env:"BOOTSTRAP_ADMIN_EMAIL"`
}

type Config struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	GinMode        string   `env:"GIN_MODE"`
	AppEnv         string   `env:"APP_ENV" envDefault:"development"`
	UploadsDir     string   `env:"UPLOADS_DIR" envDefault:"uploads"`
	MaxUploadBytes int64    `env:"MAX_UPLOAD_BYTES" envDefault:"52428800"`
	CORSOrigins    []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000"`
	MetricsEnabled bool     `env:"METRICS_ENABLED" envDefault:"true"`

	Database DatabaseConfig
	Auth     AuthConfig
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.AppEnv, "production") || strings.EqualFold(c.AppEnv, "prod")
}

// Load reads an optional dotenv file (ENV_FILE or configs/.env) and parses the
// process environment into a Config.
func Load() (*Config, error) {
	path := os.Getenv("ENV_FILE")
	if path == "" {
		path = defaultEnvFile
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MaxUploadBytes <= 0 {
		return errors.New("MAX_UPLOAD_BYTES must be positive")
	}
	if c.IsProduction() && c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET is required in production")
	}
	return nil
}
