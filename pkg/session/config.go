package session

import (
	"log/slog"
	"time"

	"github.com/tablewire/tablewire-go/pkg/log"
)

// Default limits. These mirror the documented protocol limits; override
// through Config for tests or tuning.
const (
	// DefaultHandshakeTimeout is how long a connection may stay
	// unauthenticated before the raw transport is closed.
	DefaultHandshakeTimeout = 10 * time.Second

	// DefaultIdleTimeout is the allowed gap between authenticated
	// messages before a graceful close is initiated.
	DefaultIdleTimeout = 60 * time.Second

	// DefaultMaxWriteQueue is the outbound queue capacity. Messages
	// enqueued beyond it are dropped and logged.
	DefaultMaxWriteQueue = 100

	// DefaultRateLimitWindow is the sliding window for inbound rate
	// limiting.
	DefaultRateLimitWindow = 1 * time.Second

	// DefaultMaxMessagesPerWindow is the inbound message cap per
	// window. Exceeding it closes the session.
	DefaultMaxMessagesPerWindow = 10

	// DefaultMaxTrackedTimestamps bounds the rate limiter's memory
	// independently of the window.
	DefaultMaxTrackedTimestamps = 50

	// DefaultMaxSessionIDLength bounds accepted session_id fields.
	DefaultMaxSessionIDLength = 256
)

// Placeholder seat assignment until a game engine hands out real seats
// and stacks.
const (
	PlaceholderSeat  = -1
	PlaceholderStack = 0.0
)

// Config configures a Session.
type Config struct {
	// HandshakeTimeout, IdleTimeout and the limits below fall back to
	// the package defaults when zero.
	HandshakeTimeout     time.Duration
	IdleTimeout          time.Duration
	MaxWriteQueue        int
	RateLimitWindow      time.Duration
	MaxMessagesPerWindow int
	MaxTrackedTimestamps int
	MaxSessionIDLength   int

	// SeatNumber and StartingStack are reported in the
	// HANDSHAKE_RESPONSE. Without a game engine they stay at the
	// placeholder values.
	SeatNumber    int
	StartingStack float64

	// Handler receives validated client messages (optional).
	Handler Handler

	// Logger receives protocol events (optional).
	Logger log.Logger

	// AppLogger receives server-side diagnostics (optional).
	AppLogger *slog.Logger
}

// DefaultConfig returns a Config with all protocol limits at their
// default values and placeholder seat assignment.
func DefaultConfig() Config {
	return Config{
		HandshakeTimeout:     DefaultHandshakeTimeout,
		IdleTimeout:          DefaultIdleTimeout,
		MaxWriteQueue:        DefaultMaxWriteQueue,
		RateLimitWindow:      DefaultRateLimitWindow,
		MaxMessagesPerWindow: DefaultMaxMessagesPerWindow,
		MaxTrackedTimestamps: DefaultMaxTrackedTimestamps,
		MaxSessionIDLength:   DefaultMaxSessionIDLength,
		SeatNumber:           PlaceholderSeat,
		StartingStack:        PlaceholderStack,
	}
}

// withDefaults fills zero-valued limits.
func (c Config) withDefaults() Config {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = DefaultIdleTimeout
	}
	if c.MaxWriteQueue <= 0 {
		c.MaxWriteQueue = DefaultMaxWriteQueue
	}
	if c.RateLimitWindow <= 0 {
		c.RateLimitWindow = DefaultRateLimitWindow
	}
	if c.MaxMessagesPerWindow <= 0 {
		c.MaxMessagesPerWindow = DefaultMaxMessagesPerWindow
	}
	if c.MaxTrackedTimestamps <= 0 {
		c.MaxTrackedTimestamps = DefaultMaxTrackedTimestamps
	}
	if c.MaxSessionIDLength <= 0 {
		c.MaxSessionIDLength = DefaultMaxSessionIDLength
	}
	return c
}
