package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	req := require.New(t)

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(":8080", cfg.Port)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(20, cfg.RateLimitBurst)
	req.Equal(time.Second, cfg.RateLimitRefillInterval)
	req.Equal("uploads", cfg.UploadDir)
	req.Equal([]string{"http://localhost:8080"}, cfg.Origins())
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	req := require.New(t)
	t.Setenv("SERVER_PORT", ":9000")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com, https://staging.example.com")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_SECONDS", "2")
	t.Setenv("NATS_URL", "nats://localhost:4222")

	cfg, err := LoadConfig()
	req.NoError(err)
	req.Equal(":9000", cfg.Port)
	req.Equal(int64(1024), cfg.MaxMessageSize)
	req.Equal(5, cfg.RateLimitBurst)
	req.Equal(2*time.Second, cfg.RateLimitRefillInterval)
	req.Equal("nats://localhost:4222", cfg.NATSURL)
	req.Equal([]string{"https://chat.example.com", "https://staging.example.com"}, cfg.Origins())
}

func TestSanitizeRepairsBadValues(t *testing.T) {
	req := require.New(t)

	cfg := &Config{Port: "9090", MaxMessageSize: -1, RateLimitBurst: 0, RateLimitRefill: -3}
	cfg.sanitize()

	req.Equal(":9090", cfg.Port)
	req.Equal(int64(4096), cfg.MaxMessageSize)
	req.Equal(20, cfg.RateLimitBurst)
	req.Equal(time.Second, cfg.RateLimitRefillInterval)
	req.Equal("uploads", cfg.UploadDir)
}

func TestOriginsSkipsEmptyEntries(t *testing.T) {
	cfg := &Config{AllowedOrigins: " , http://a.example , ,http://b.example"}
	require.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.Origins())
}
