package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	libconfig "evregistry/backend/libs/config"
	"evregistry/client/evctl/internal/session"
)

const defaultServer = "http://localhost:5002"

// Config is the CLI configuration: optional YAML file, then EVCTL_* env vars.
type Config struct {
	Server    string        `yaml:"server" env:"EVCTL_SERVER"`
	TokenFile string        `yaml:"tokenFile" env:"EVCTL_TOKEN_FILE"`
	Timeout   time.Duration `yaml:"timeout" env:"EVCTL_TIMEOUT"`
}

// DefaultPath is the config file used when --config is not given.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "evctl", "config.yaml")
}

// Load reads path. An explicit path must exist; the default one may be absent.
func Load(path string) (*Config, error) {
	cfg := &Config{Server: defaultServer, Timeout: 10 * time.Second}

	if path == "" {
		if def := DefaultPath(); def != "" {
			if _, err := os.Stat(def); err == nil {
				path = def
			} else if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}
	if err := libconfig.LoadConfigFrom(path, cfg); err != nil {
		return nil, err
	}

	cfg.Server = strings.TrimRight(strings.TrimSpace(cfg.Server), "/")
	if cfg.Server == "" {
		cfg.Server = defaultServer
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.TokenFile == "" {
		p, err := session.DefaultTokenPath()
		if err != nil {
			return nil, err
		}
		cfg.TokenFile = p
	}
	return cfg, nil
}
