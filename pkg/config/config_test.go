package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Default()
	if cfg != want {
		t.Errorf("got %+v, want defaults %+v", cfg, want)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
listen_address: "127.0.0.1:9000"
handshake_timeout: 5s
idle_timeout: 2m
max_messages_per_window: 20
log:
  level: debug
  event_file: /tmp/events.bin
discovery:
  enabled: true
  instance_name: table-1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddress != "127.0.0.1:9000" {
		t.Errorf("listen_address: got %q", cfg.ListenAddress)
	}
	if cfg.HandshakeTimeout.Std() != 5*time.Second {
		t.Errorf("handshake_timeout: got %v", cfg.HandshakeTimeout.Std())
	}
	if cfg.IdleTimeout.Std() != 2*time.Minute {
		t.Errorf("idle_timeout: got %v", cfg.IdleTimeout.Std())
	}
	if cfg.MaxMessagesPerWindow != 20 {
		t.Errorf("max_messages_per_window: got %d", cfg.MaxMessagesPerWindow)
	}
	// Untouched fields keep their defaults.
	if cfg.MaxWriteQueue != Default().MaxWriteQueue {
		t.Errorf("max_write_queue: got %d", cfg.MaxWriteQueue)
	}
	if cfg.Log.Level != "debug" || cfg.Log.EventFile != "/tmp/events.bin" {
		t.Errorf("log config: got %+v", cfg.Log)
	}
	if !cfg.Discovery.Enabled || cfg.Discovery.InstanceName != "table-1" {
		t.Errorf("discovery config: got %+v", cfg.Discovery)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := writeTempConfig(t, "idle_timeout: sixty\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unparseable duration")
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty listen address", func(c *Config) { c.ListenAddress = "" }},
		{"zero message size", func(c *Config) { c.MaxMessageSize = 0 }},
		{"zero connections", func(c *Config) { c.MaxConnections = 0 }},
		{"negative retry delay", func(c *Config) { c.AcceptRetryDelay = -1 }},
		{"zero idle timeout", func(c *Config) { c.IdleTimeout = 0 }},
		{"zero write queue", func(c *Config) { c.MaxWriteQueue = 0 }},
		{"zero rate window", func(c *Config) { c.RateLimitWindow = 0 }},
		{"tracked below window cap", func(c *Config) { c.MaxTrackedTimestamps = c.MaxMessagesPerWindow - 1 }},
		{"zero session id length", func(c *Config) { c.MaxSessionIDLength = 0 }},
		{"unknown log level", func(c *Config) { c.Log.Level = "verbose" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}

	if err := Default().Validate(); err != nil {
		t.Errorf("defaults failed validation: %v", err)
	}
}

func TestServerConfigMapping(t *testing.T) {
	cfg := Default()
	cfg.ListenAddress = ":9999"
	cfg.MaxMessagesPerWindow = 42

	sc := cfg.ServerConfig()
	if sc.Address != ":9999" {
		t.Errorf("address: got %q", sc.Address)
	}
	if sc.Session.MaxMessagesPerWindow != 42 {
		t.Errorf("session rate cap: got %d", sc.Session.MaxMessagesPerWindow)
	}
	if sc.Session.HandshakeTimeout != cfg.HandshakeTimeout.Std() {
		t.Errorf("handshake timeout not mapped")
	}
}
