package session

import (
	"net"

	"github.com/tablewire/tablewire-go/pkg/wire"
)

// Conn is the framed byte-stream transport a session reads from and
// writes to. The transport package provides the TCP/TLS implementation;
// tests substitute in-memory fakes.
type Conn interface {
	// ReadFrame returns the next inbound message payload. It blocks
	// until a message arrives, the peer closes, or Close is called.
	ReadFrame() ([]byte, error)

	// WriteFrame sends one message payload. Implementations must be
	// safe for use by one writer at a time.
	WriteFrame(data []byte) error

	// Close closes the underlying transport, unblocking any pending
	// ReadFrame. It must be idempotent.
	Close() error

	// RemoteAddr returns the peer address for logging.
	RemoteAddr() net.Addr
}

// Handler receives fully validated client messages. It is the boundary
// to the game engine: the session layer validates structure, identity,
// ordering and rate; the handler owns the game semantics and may send
// responses through the session. All methods are called from the
// session's read loop, one message at a time, in arrival order.
//
// A nil handler is valid; validated messages are then only logged.
type Handler interface {
	// OnAction is called for each accepted ACTION message.
	OnAction(s *Session, msg *wire.Action)

	// OnReloadRequest is called for each accepted RELOAD_REQUEST
	// message. The handler decides whether to grant and responds via
	// SendReloadResponse.
	OnReloadRequest(s *Session, msg *wire.ReloadRequest)

	// OnDisconnect is called for each accepted DISCONNECT message.
	OnDisconnect(s *Session, msg *wire.Disconnect)
}
