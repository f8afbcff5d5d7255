// Package server loads and sanitizes runtime configuration from the
// environment.
package server

import (
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Config holds every tunable of the relay. Values come from the environment;
// anything unset or out of range falls back to a safe default rather than
// failing startup.
type Config struct {
	Port            string `env:"SERVER_PORT,default=:8080"`
	AllowedOrigins  string `env:"ALLOWED_ORIGINS,default=http://localhost:8080"`
	MaxMessageSize  int64  `env:"MAX_MESSAGE_SIZE,default=4096"`
	RateLimitBurst  int    `env:"RATE_LIMIT_BURST,default=20"`
	RateLimitRefill int    `env:"RATE_LIMIT_REFILL_SECONDS,default=1"`

	UploadDir string `env:"UPLOAD_DIR,default=uploads"`

	NATSURL     string `env:"NATS_URL"`
	PushGateway string `env:"PUSH_GATEWAY_URL"`
	PushTimeout int    `env:"PUSH_TIMEOUT_SECONDS,default=5"`

	LogLevel string `env:"LOG_LEVEL,default=info"`

	// RateLimitRefillInterval is derived from RateLimitRefill during Load.
	RateLimitRefillInterval time.Duration
}

// LoadConfig reads configuration from the environment and sanitizes it.
func LoadConfig() (*Config, error) {
	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return nil, err
	}
	cfg.sanitize()
	return &cfg, nil
}

// DefaultConfig returns the configuration used when nothing is set in the
// environment. Tests build on it.
func DefaultConfig() *Config {
	cfg := &Config{
		Port:            ":8080",
		AllowedOrigins:  "http://localhost:8080",
		MaxMessageSize:  4096,
		RateLimitBurst:  20,
		RateLimitRefill: 1,
		UploadDir:       "uploads",
		PushTimeout:     5,
		LogLevel:        "info",
	}
	cfg.sanitize()
	return cfg
}

func (c *Config) sanitize() {
	if c.Port == "" {
		c.Port = ":8080"
	}
	if !strings.HasPrefix(c.Port, ":") && !strings.Contains(c.Port, ":") {
		c.Port = ":" + c.Port
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 20
	}
	if c.RateLimitRefill <= 0 {
		c.RateLimitRefill = 1
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = 5
	}
	if c.UploadDir == "" {
		c.UploadDir = "uploads"
	}
	c.RateLimitRefillInterval = time.Duration(c.RateLimitRefill) * time.Second
}

// Origins returns the configured allow-list as a slice.
func (c *Config) Origins() []string {
	parts := strings.Split(c.AllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
