package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tablewire/tablewire-go/pkg/session"
	"github.com/tablewire/tablewire-go/pkg/transport"
)

// ErrInvalidConfig wraps all validation failures.
var ErrInvalidConfig = errors.New("invalid configuration")

// Duration is a time.Duration that unmarshals from YAML strings like
// "10s" or "1m30s".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config is the full server configuration.
type Config struct {
	// ListenAddress is the TCP listen address.
	ListenAddress string `yaml:"listen_address"`

	// MaxMessageSize is the maximum frame payload in bytes.
	MaxMessageSize uint32 `yaml:"max_message_size"`

	// MaxConnections caps concurrently open connections.
	MaxConnections int `yaml:"max_connections"`

	// AcceptRetryDelay is the pause after a failed accept.
	AcceptRetryDelay Duration `yaml:"accept_retry_delay"`

	// Session limits.
	HandshakeTimeout     Duration `yaml:"handshake_timeout"`
	IdleTimeout          Duration `yaml:"idle_timeout"`
	MaxWriteQueue        int      `yaml:"max_write_queue"`
	RateLimitWindow      Duration `yaml:"rate_limit_window"`
	MaxMessagesPerWindow int      `yaml:"max_messages_per_window"`
	MaxTrackedTimestamps int      `yaml:"max_tracked_timestamps"`
	MaxSessionIDLength   int      `yaml:"max_session_id_length"`

	// Log configures diagnostics and the protocol event file.
	Log LogConfig `yaml:"log"`

	// Discovery configures mDNS advertisement.
	Discovery DiscoveryConfig `yaml:"discovery"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is the slog level: debug, info, warn or error.
	Level string `yaml:"level"`

	// EventFile, when set, receives the binary protocol event stream.
	EventFile string `yaml:"event_file"`
}

// DiscoveryConfig configures mDNS advertisement.
type DiscoveryConfig struct {
	// Enabled turns advertisement on.
	Enabled bool `yaml:"enabled"`

	// InstanceName is the advertised service instance. Defaults to the
	// host name.
	InstanceName string `yaml:"instance_name"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListenAddress:        fmt.Sprintf(":%d", transport.DefaultPort),
		MaxMessageSize:       transport.DefaultMaxMessageSize,
		MaxConnections:       transport.DefaultMaxConnections,
		AcceptRetryDelay:     Duration(transport.DefaultAcceptRetryDelay),
		HandshakeTimeout:     Duration(session.DefaultHandshakeTimeout),
		IdleTimeout:          Duration(session.DefaultIdleTimeout),
		MaxWriteQueue:        session.DefaultMaxWriteQueue,
		RateLimitWindow:      Duration(session.DefaultRateLimitWindow),
		MaxMessagesPerWindow: session.DefaultMaxMessagesPerWindow,
		MaxTrackedTimestamps: session.DefaultMaxTrackedTimestamps,
		MaxSessionIDLength:   session.DefaultMaxSessionIDLength,
		Log:                  LogConfig{Level: "info"},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the
// defaults unchanged.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the server cannot run
// with.
func (c Config) Validate() error {
	if c.ListenAddress == "" {
		return fmt.Errorf("%w: listen_address is empty", ErrInvalidConfig)
	}
	if c.MaxMessageSize == 0 {
		return fmt.Errorf("%w: max_message_size must be positive", ErrInvalidConfig)
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("%w: max_connections must be positive", ErrInvalidConfig)
	}
	if c.AcceptRetryDelay <= 0 {
		return fmt.Errorf("%w: accept_retry_delay must be positive", ErrInvalidConfig)
	}
	if c.HandshakeTimeout <= 0 || c.IdleTimeout <= 0 {
		return fmt.Errorf("%w: timeouts must be positive", ErrInvalidConfig)
	}
	if c.MaxWriteQueue <= 0 {
		return fmt.Errorf("%w: max_write_queue must be positive", ErrInvalidConfig)
	}
	if c.RateLimitWindow <= 0 || c.MaxMessagesPerWindow <= 0 {
		return fmt.Errorf("%w: rate limit window and cap must be positive", ErrInvalidConfig)
	}
	if c.MaxTrackedTimestamps < c.MaxMessagesPerWindow {
		return fmt.Errorf("%w: max_tracked_timestamps below max_messages_per_window", ErrInvalidConfig)
	}
	if c.MaxSessionIDLength <= 0 {
		return fmt.Errorf("%w: max_session_id_length must be positive", ErrInvalidConfig)
	}
	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("%w: unknown log level %q", ErrInvalidConfig, c.Log.Level)
	}
	return nil
}

// ServerConfig maps the configuration onto the transport layer.
func (c Config) ServerConfig() transport.ServerConfig {
	return transport.ServerConfig{
		Address:          c.ListenAddress,
		MaxMessageSize:   c.MaxMessageSize,
		MaxConnections:   c.MaxConnections,
		AcceptRetryDelay: c.AcceptRetryDelay.Std(),
		Session:          c.SessionConfig(),
	}
}

// SessionConfig maps the configuration onto the session layer.
func (c Config) SessionConfig() session.Config {
	cfg := session.DefaultConfig()
	cfg.HandshakeTimeout = c.HandshakeTimeout.Std()
	cfg.IdleTimeout = c.IdleTimeout.Std()
	cfg.MaxWriteQueue = c.MaxWriteQueue
	cfg.RateLimitWindow = c.RateLimitWindow.Std()
	cfg.MaxMessagesPerWindow = c.MaxMessagesPerWindow
	cfg.MaxTrackedTimestamps = c.MaxTrackedTimestamps
	cfg.MaxSessionIDLength = c.MaxSessionIDLength
	return cfg
}
