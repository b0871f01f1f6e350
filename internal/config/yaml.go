package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level acp configuration file.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Auth    AuthConfig    `yaml:"auth"`
	Logging LoggingConfig `yaml:"logging"`
}

// ServerConfig controls the HTTP server behavior.
type ServerConfig struct {
	Host            string   `yaml:"host"`
	Port            int      `yaml:"port"`
	ShutdownTimeout string   `yaml:"shutdown_timeout"`
	CORSOrigins     []string `yaml:"cors_origins"`
}

// AuthConfig controls the administrator credential and session signing.
// Either AdminPassword (plaintext, development only) or AdminPasswordHash
// (bcrypt) must be set; when TOTPSecret is non-empty, login additionally
// requires a valid time-based code.
type AuthConfig struct {
	AdminPassword     string `yaml:"admin_password"`
	AdminPasswordHash string `yaml:"admin_password_hash"`
	TOTPSecret        string `yaml:"totp_secret"`
	JWTSecret         string `yaml:"jwt_secret"`
	SessionTTL        string `yaml:"session_ttl"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// Default returns a Config with development defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            3001,
			ShutdownTimeout: "30s",
			CORSOrigins:     []string{"*"},
		},
		Auth: AuthConfig{
			AdminPassword: "admin123",
			JWTSecret:     "dev-dashboard-secret",
			SessionTTL:    "24h",
		},
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file, applying defaults for absent fields.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// SessionTTLDuration parses the session TTL, defaulting to 24 hours.
func (a AuthConfig) SessionTTLDuration() time.Duration {
	d, err := time.ParseDuration(a.SessionTTL)
	if err != nil || d <= 0 {
		return 24 * time.Hour
	}
	return d
}

// ShutdownTimeoutDuration parses the shutdown timeout, defaulting to 30s.
func (s ServerConfig) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}
