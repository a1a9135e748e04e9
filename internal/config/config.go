// Package config contains configuration parsing for the nisab-keeper server.
package config

import (
	"encoding/hex"
	"flag"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds server configuration. Environment variables take precedence
// over flags.
type Config struct {
	RunAddress    string        `env:"RUN_ADDRESS"`
	DatabaseURI   string        `env:"DATABASE_URI"`
	JWTKey        string        `env:"JWT_KEY"`
	FieldKeyHex   string        `env:"FIELD_KEY"` // hex-encoded 32-byte key
	CORSOrigins   []string      `env:"CORS_ORIGINS" envSeparator:","`
	UnlockWindow  time.Duration `env:"UNLOCK_WINDOW"`
	UnlockMaxFail int           `env:"UNLOCK_MAX_FAILS"`
	UnlockBlock   time.Duration `env:"UNLOCK_BLOCK"`
}

// Parse reads configuration from command-line flags and environment variables.
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	envRunAddress := cfg.RunAddress
	envDatabaseURI := cfg.DatabaseURI
	envJWTKey := cfg.JWTKey
	envFieldKey := cfg.FieldKeyHex

	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "address and port for HTTP server")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI")
	flag.StringVar(&cfg.JWTKey, "jwt-key", "", "HS256 verification key (required)")
	flag.StringVar(&cfg.FieldKeyHex, "field-key", "", "hex-encoded 32-byte field encryption key (required)")
	flag.Parse()

	if envRunAddress != "" {
		cfg.RunAddress = envRunAddress
	}
	if envDatabaseURI != "" {
		cfg.DatabaseURI = envDatabaseURI
	}
	if envJWTKey != "" {
		cfg.JWTKey = envJWTKey
	}
	if envFieldKey != "" {
		cfg.FieldKeyHex = envFieldKey
	}

	if cfg.RunAddress == "" {
		cfg.RunAddress = "localhost:8080"
	}
	if cfg.UnlockWindow == 0 {
		cfg.UnlockWindow = 15 * time.Minute
	}
	if cfg.UnlockMaxFail == 0 {
		cfg.UnlockMaxFail = 5
	}
	if cfg.UnlockBlock == 0 {
		cfg.UnlockBlock = 15 * time.Minute
	}

	return cfg, nil
}

// FieldKey decodes the hex field encryption key.
func (c *Config) FieldKey() ([]byte, error) {
	key, err := hex.DecodeString(c.FieldKeyHex)
	if err != nil {
		return nil, fmt.Errorf("decode field key: %w", err)
	}
	return key, nil
}
