package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 50
	cfg.RateLimiting.WebSocket.Burst = 100
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 65536
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 0
	cfg.RateLimiting.WebSocket.Burst = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "http rps must be > 0",
			mutate: func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 },
		},
		{
			name:   "http max concurrent must be >= 0",
			mutate: func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 },
		},
		{
			name:   "ws messages per second must be > 0",
			mutate: func(c *Config) { c.RateLimiting.WebSocket.MessagesPerSecond = 0 },
		},
		{
			name:   "ws max message size must be >= 0",
			mutate: func(c *Config) { c.RateLimiting.WebSocket.MaxMessageSizeBytes = -1 },
		},
		{
			name:   "invitation timeout must be > 0",
			mutate: func(c *Config) { c.Matchmaking.InvitationTimeout = 0 },
		},
		{
			name:   "broadcast debounce must be >= 0",
			mutate: func(c *Config) { c.Matchmaking.BroadcastDebounce = -time.Millisecond },
		},
		{
			name:   "max message length must be > 0",
			mutate: func(c *Config) { c.Matchmaking.MaxMessageLength = 0 },
		},
		{
			name: "pong timeout must exceed ping interval",
			mutate: func(c *Config) {
				c.Signal.PingInterval = 10 * time.Second
				c.Signal.PongTimeout = 10 * time.Second
			},
		},
		{
			name:   "send buffer must be > 0",
			mutate: func(c *Config) { c.Signal.SendBufferSize = 0 },
		},
		{
			name: "redis needs an address when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
		},
		{
			name: "redis needs a channel or stream when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Channel = ""
				c.Redis.StreamKey = ""
			},
		},
		{
			name: "tracing sample rate within bounds",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 1.5
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Matchmaking.InvitationTimeout != 60*time.Second {
		t.Errorf("expected default invitation timeout 60s, got %s", cfg.Matchmaking.InvitationTimeout)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: ":9000"
matchmaking:
  invitation_timeout: 15s
  max_message_length: 280
logging:
  level: debug
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Errorf("server.address = %q, want :9000", cfg.Server.Address)
	}
	if cfg.Matchmaking.InvitationTimeout != 15*time.Second {
		t.Errorf("invitation_timeout = %s, want 15s", cfg.Matchmaking.InvitationTimeout)
	}
	if cfg.Matchmaking.MaxMessageLength != 280 {
		t.Errorf("max_message_length = %d, want 280", cfg.Matchmaking.MaxMessageLength)
	}
	// untouched values keep their defaults
	if cfg.Matchmaking.BroadcastDebounce != 200*time.Millisecond {
		t.Errorf("broadcast_debounce = %s, want default 200ms", cfg.Matchmaking.BroadcastDebounce)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PAIRCHAT_LOG_LEVEL", "warn")
	t.Setenv("PAIRCHAT_INVITATION_TIMEOUT", "5s")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("logging.level = %q, want warn", cfg.Logging.Level)
	}
	if cfg.Matchmaking.InvitationTimeout != 5*time.Second {
		t.Errorf("invitation_timeout = %s, want 5s", cfg.Matchmaking.InvitationTimeout)
	}
}

func TestLoad_InvalidEnvDuration(t *testing.T) {
	t.Setenv("PAIRCHAT_INVITATION_TIMEOUT", "soon")

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for unparsable invitation timeout")
	}
}
