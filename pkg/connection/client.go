package connection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tablewire/tablewire-go/pkg/transport"
	"github.com/tablewire/tablewire-go/pkg/wire"
)

// Client errors.
var (
	// ErrHandshakeRejected indicates the server answered the handshake
	// with an ERROR. Not retried.
	ErrHandshakeRejected = errors.New("handshake rejected")

	// ErrClosed indicates the client was closed.
	ErrClosed = errors.New("client closed")
)

// State is the client connection state.
type State uint8

const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// Address of the table server.
	Address string

	// ClientName is sent in the handshake (optional).
	ClientName string

	// MaxMessageSize is the frame size limit, 0 for the default.
	MaxMessageSize uint32

	// MaxAttempts bounds connect attempts; 0 means retry until the
	// context is cancelled.
	MaxAttempts int

	// Backoff configures retry delays.
	Backoff BackoffConfig

	// OnStateChange is called on every state transition (optional).
	OnStateChange func(old, new State)
}

// Client dials a table server and completes the version handshake,
// retrying transient failures with backoff.
type Client struct {
	cfg     ClientConfig
	backoff *Backoff

	mu        sync.Mutex
	state     State
	conn      *transport.Conn
	sessionID string
}

// NewClient creates a client. Connect establishes the connection.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Address == "" {
		cfg.Address = fmt.Sprintf("localhost:%d", transport.DefaultPort)
	}
	if cfg.Backoff == (BackoffConfig{}) {
		cfg.Backoff.Jitter = JitterFactor
	}
	return &Client{
		cfg:     cfg,
		backoff: NewBackoff(cfg.Backoff),
	}
}

// Connect dials and handshakes until it succeeds, the context is
// cancelled, the attempt budget runs out, or the server rejects the
// handshake. On success it returns the framed connection and the
// issued session identifier.
func (c *Client) Connect(ctx context.Context) (*transport.Conn, string, error) {
	if c.State() == StateClosed {
		return nil, "", ErrClosed
	}
	c.setState(StateConnecting)

	attempts := 0
	for {
		conn, id, err := c.attempt()
		if err == nil {
			c.mu.Lock()
			c.conn = conn
			c.sessionID = id
			c.mu.Unlock()
			c.backoff.Reset()
			c.setState(StateConnected)
			return conn, id, nil
		}
		if errors.Is(err, ErrHandshakeRejected) {
			c.setState(StateDisconnected)
			return nil, "", err
		}

		attempts++
		if c.cfg.MaxAttempts > 0 && attempts >= c.cfg.MaxAttempts {
			c.setState(StateDisconnected)
			return nil, "", fmt.Errorf("giving up after %d attempts: %w", attempts, err)
		}
		select {
		case <-time.After(c.backoff.Next()):
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return nil, "", ctx.Err()
		}
	}
}

func (c *Client) attempt() (*transport.Conn, string, error) {
	conn, err := transport.Dial(c.cfg.Address, c.cfg.MaxMessageSize)
	if err != nil {
		return nil, "", err
	}
	id, err := Handshake(conn, c.cfg.ClientName)
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	return conn, id, nil
}

// SessionID returns the identifier issued at handshake, empty before
// Connect succeeds.
func (c *Client) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Close closes the connection if open. The client cannot reconnect
// afterwards.
func (c *Client) Close() {
	c.mu.Lock()
	old := c.state
	c.state = StateClosed
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	if c.cfg.OnStateChange != nil && old != StateClosed {
		c.cfg.OnStateChange(old, StateClosed)
	}
}

func (c *Client) setState(next State) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	old := c.state
	c.state = next
	c.mu.Unlock()

	if c.cfg.OnStateChange != nil && old != next {
		c.cfg.OnStateChange(old, next)
	}
}

// Handshake performs the version handshake on a fresh connection and
// returns the issued session identifier.
func Handshake(conn *transport.Conn, clientName string) (string, error) {
	hs := &wire.Handshake{ProtocolVersion: wire.ProtocolVersion}
	if clientName != "" {
		hs.ClientName = &clientName
	}
	data, err := wire.EncodeHandshake(hs)
	if err != nil {
		return "", err
	}
	if err := conn.WriteFrame(data); err != nil {
		return "", err
	}

	frame, err := conn.ReadFrame()
	if err != nil {
		return "", err
	}
	env, err := wire.DecodeEnvelope(frame)
	if err != nil {
		return "", err
	}

	switch env.MessageType {
	case wire.MessageTypeHandshakeResponse:
		var resp wire.HandshakeResponse
		if err := json.Unmarshal(env.Payload, &resp); err != nil {
			return "", err
		}
		if resp.SessionID == "" {
			return "", fmt.Errorf("handshake response without session identifier")
		}
		return resp.SessionID, nil
	case wire.MessageTypeError:
		var msg wire.Error
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			return "", err
		}
		return "", fmt.Errorf("%w: %s: %s", ErrHandshakeRejected, msg.ErrorCode, msg.Message)
	default:
		return "", fmt.Errorf("unexpected handshake reply %s", env.MessageType)
	}
}
