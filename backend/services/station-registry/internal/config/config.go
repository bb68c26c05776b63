package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "evregistry/backend/libs/config"
)

const (
	// DevJWTSecret is used outside production when no secret is configured.
	DevJWTSecret = "dev-secret"

	envProduction = "production"
)

// HTTPConfig configures the listener and CORS.
type HTTPConfig struct {
	Port           string   `yaml:"port" env:"REGISTRY_HTTP_PORT"`
	AllowedOrigins []string `yaml:"allowedOrigins" env:"REGISTRY_CORS_ORIGINS"`
}

// DatabaseConfig configures Postgres.
type DatabaseConfig struct {
	DSN                   string `yaml:"dsn" env:"REGISTRY_POSTGRES_DSN"`
	ReconnectDelaySeconds int    `yaml:"reconnectDelaySeconds" env:"REGISTRY_DB_RECONNECT_SECONDS"`
	AutoMigrate           bool   `yaml:"autoMigrate" env:"REGISTRY_DB_AUTO_MIGRATE"`
}

// JWTConfig configures the token codec.
type JWTConfig struct {
	Secret           string `yaml:"secret" env:"REGISTRY_JWT_SECRET"`
	ExpiresInMinutes int    `yaml:"expiresInMinutes" env:"REGISTRY_JWT_EXPIRES_MINUTES"`
}

// RedisConfig configures the optional station cache.
type RedisConfig struct {
	Addr       string `yaml:"addr" env:"REDIS_ADDR"`
	Password   string `yaml:"password" env:"REDIS_PASSWORD"`
	DB         int    `yaml:"db" env:"REDIS_DB"`
	TTLSeconds int    `yaml:"ttlSeconds" env:"REGISTRY_CACHE_TTL_SECONDS"`
}

// AuthConfig holds signup/authorization policy.
type AuthConfig struct {
	AdminEmail string `yaml:"adminEmail" env:"REGISTRY_ADMIN_EMAIL"`
	BcryptCost int    `yaml:"bcryptCost" env:"REGISTRY_BCRYPT_COST"`
}

// StationsConfig holds station policy.
type StationsConfig struct {
	AdminOnlyWrites bool `yaml:"adminOnlyWrites" env:"STATIONS_ADMIN_ONLY_WRITES"`
}

// TracingConfig configures OTLP export.
type TracingConfig struct {
	Endpoint string `yaml:"endpoint" env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Config represents service configuration loaded from YAML/env. It is built once at
// startup and never mutated afterwards.
type Config struct {
	Env      string         `yaml:"env" env:"REGISTRY_ENV"`
	HTTP     HTTPConfig     `yaml:"http"`
	Database DatabaseConfig `yaml:"database"`
	JWT      JWTConfig      `yaml:"jwt"`
	Redis    RedisConfig    `yaml:"redis"`
	Auth     AuthConfig     `yaml:"auth"`
	Stations StationsConfig `yaml:"stations"`
	Tracing  TracingConfig  `yaml:"tracing"`

	// UsingDevSecret is set when the JWT secret fell back to DevJWTSecret.
	UsingDevSecret bool `yaml:"-" env:"-"`
}

// Load reads configuration using the shared config loader.
func Load() (*Config, error) {
	cfg := defaults()
	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Port: "5002",
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://127.0.0.1:3000",
				"http://localhost:3001",
			},
		},
		Database: DatabaseConfig{
			ReconnectDelaySeconds: 5,
			AutoMigrate:           true,
		},
		JWT: JWTConfig{
			ExpiresInMinutes: 60,
		},
		Redis: RedisConfig{
			TTLSeconds: 60,
		},
		Auth: AuthConfig{
			AdminEmail: "admin@gmail.com",
		},
	}
}

func (c *Config) finalize() error {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database DSN is required")
	}
	if strings.TrimSpace(c.JWT.Secret) == "" {
		if c.IsProduction() {
			return errors.New("config: jwt secret is required in production")
		}
		c.JWT.Secret = DevJWTSecret
		c.UsingDevSecret = true
	}
	if c.JWT.ExpiresInMinutes <= 0 {
		c.JWT.ExpiresInMinutes = 60
	}
	c.Auth.AdminEmail = strings.ToLower(strings.TrimSpace(c.Auth.AdminEmail))
	return nil
}

// IsProduction reports whether the service runs in hardened mode.
func (c *Config) IsProduction() bool {
	return c.Env == envProduction
}

// HTTPAddress ensures we always return host:port formatted string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "5002"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// JWTExpiration converts configured expiry to duration.
func (c *Config) JWTExpiration() time.Duration {
	if c.JWT.ExpiresInMinutes <= 0 {
		return time.Hour
	}
	return time.Duration(c.JWT.ExpiresInMinutes) * time.Minute
}

// ReconnectDelay is the fixed pause between database connection attempts.
func (c *Config) ReconnectDelay() time.Duration {
	if c.Database.ReconnectDelaySeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.Database.ReconnectDelaySeconds) * time.Second
}

// CacheTTL returns station cache entry lifetime.
func (c *Config) CacheTTL() time.Duration {
	if c.Redis.TTLSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.Redis.TTLSeconds) * time.Second
}
