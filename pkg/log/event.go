package log

import (
	"time"
)

// Event represents a protocol log event captured at any layer.
// CBOR encoding uses integer keys for compactness.
type Event struct {
	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"1,keyasint"`

	// ConnectionID uniquely identifies the connection (UUID, assigned
	// at accept time, before any session identity exists).
	ConnectionID string `cbor:"2,keyasint"`

	// SessionID is the protocol session identifier (empty until the
	// handshake completes).
	SessionID string `cbor:"3,keyasint,omitempty"`

	// Direction indicates message flow.
	Direction Direction `cbor:"4,keyasint"`

	// Layer where the event was captured.
	Layer Layer `cbor:"5,keyasint"`

	// Category classifies the event type.
	Category Category `cbor:"6,keyasint"`

	// RemoteAddr is the peer address (IP:port).
	RemoteAddr string `cbor:"7,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Frame       *FrameEvent       `cbor:"8,keyasint,omitempty"`  // Transport layer
	Message     *MessageEvent     `cbor:"9,keyasint,omitempty"`  // Wire layer (decoded)
	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"` // Session lifecycle
	Error       *ErrorEventData   `cbor:"11,keyasint,omitempty"` // Errors at any layer
}

// Direction indicates the direction of message flow.
type Direction uint8

const (
	// DirectionIn indicates an incoming message.
	DirectionIn Direction = 0
	// DirectionOut indicates an outgoing message.
	DirectionOut Direction = 1
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case DirectionIn:
		return "IN"
	case DirectionOut:
		return "OUT"
	default:
		return "UNKNOWN"
	}
}

// Layer indicates which protocol layer captured the event.
type Layer uint8

const (
	// LayerTransport is the framing layer (raw bytes).
	LayerTransport Layer = 0
	// LayerWire is the message encoding layer (decoded JSON).
	LayerWire Layer = 1
	// LayerSession is the session state machine layer.
	LayerSession Layer = 2
)

// String returns the layer name.
func (l Layer) String() string {
	switch l {
	case LayerTransport:
		return "TRANSPORT"
	case LayerWire:
		return "WIRE"
	case LayerSession:
		return "SESSION"
	default:
		return "UNKNOWN"
	}
}

// Category classifies the event type.
type Category uint8

const (
	// CategoryMessage indicates a protocol message.
	CategoryMessage Category = 0
	// CategoryState indicates a session or connection state change.
	CategoryState Category = 1
	// CategoryError indicates an error event.
	CategoryError Category = 2
	// CategoryPolicy indicates a safety policy decision (rate limit,
	// replay rejection, queue overflow, timeout).
	CategoryPolicy Category = 3
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryMessage:
		return "MESSAGE"
	case CategoryState:
		return "STATE"
	case CategoryError:
		return "ERROR"
	case CategoryPolicy:
		return "POLICY"
	default:
		return "UNKNOWN"
	}
}

// FrameEvent describes a raw frame at the transport layer.
type FrameEvent struct {
	// Size is the total frame size in bytes including the length prefix.
	Size int `cbor:"1,keyasint"`

	// Data is the frame payload, possibly truncated for large frames.
	Data []byte `cbor:"2,keyasint,omitempty"`

	// Truncated indicates Data was cut to the logging limit.
	Truncated bool `cbor:"3,keyasint,omitempty"`
}

// MessageEvent describes a decoded wire message.
type MessageEvent struct {
	// Type is the envelope message type tag ("ACTION", "ERROR", ...).
	Type string `cbor:"1,keyasint"`

	// ErrorCode is populated for outgoing ERROR messages.
	ErrorCode string `cbor:"2,keyasint,omitempty"`

	// Detail carries a short free-form annotation (action type,
	// rejection reason and the like).
	Detail string `cbor:"3,keyasint,omitempty"`
}

// StateChangeEvent describes a session lifecycle transition.
type StateChangeEvent struct {
	// OldState is the previous state name (empty for initial events).
	OldState string `cbor:"1,keyasint,omitempty"`

	// NewState is the state entered.
	NewState string `cbor:"2,keyasint"`
}

// ErrorEventData describes an error event.
type ErrorEventData struct {
	// Message is the server-side diagnostic text. It is never sent to
	// the client.
	Message string `cbor:"1,keyasint"`
}
