package wire

// MessageType is the envelope's message type tag.
type MessageType string

// Message type tags.
const (
	MessageTypeHandshake         MessageType = "HANDSHAKE"
	MessageTypeHandshakeResponse MessageType = "HANDSHAKE_RESPONSE"
	MessageTypeAction            MessageType = "ACTION"
	MessageTypeStateUpdate       MessageType = "STATE_UPDATE"
	MessageTypeError             MessageType = "ERROR"
	MessageTypeReloadRequest     MessageType = "RELOAD_REQUEST"
	MessageTypeReloadResponse    MessageType = "RELOAD_RESPONSE"
	MessageTypeDisconnect        MessageType = "DISCONNECT"
)

// ActionType is a poker action carried in an ACTION message.
type ActionType string

const (
	ActionFold  ActionType = "FOLD"
	ActionCheck ActionType = "CHECK"
	ActionCall  ActionType = "CALL"
	ActionRaise ActionType = "RAISE"
	ActionAllIn ActionType = "ALL_IN"
)

// IsValid reports whether t is a known action type.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionFold, ActionCheck, ActionCall, ActionRaise, ActionAllIn:
		return true
	default:
		return false
	}
}

// RequiresAmount reports whether the action must carry an amount field.
// RAISE and ALL_IN require one; all other actions forbid it.
func (t ActionType) RequiresAmount() bool {
	return t == ActionRaise || t == ActionAllIn
}

// GamePhase is the hand phase reported in STATE_UPDATE messages.
type GamePhase string

const (
	PhaseWaiting      GamePhase = "WAITING"
	PhasePreflop      GamePhase = "PREFLOP"
	PhaseFlop         GamePhase = "FLOP"
	PhaseTurn         GamePhase = "TURN"
	PhaseRiver        GamePhase = "RIVER"
	PhaseShowdown     GamePhase = "SHOWDOWN"
	PhaseHandComplete GamePhase = "HAND_COMPLETE"
)

// IsValid reports whether p is a known game phase.
func (p GamePhase) IsValid() bool {
	switch p {
	case PhaseWaiting, PhasePreflop, PhaseFlop, PhaseTurn, PhaseRiver,
		PhaseShowdown, PhaseHandComplete:
		return true
	default:
		return false
	}
}

// ErrorCode identifies the failure class in an ERROR message.
type ErrorCode string

const (
	// ErrCodeIncompatibleVersion is sent when the handshake's protocol
	// version does not match the server's supported version.
	ErrCodeIncompatibleVersion ErrorCode = "INCOMPATIBLE_VERSION"

	// ErrCodeProtocolError covers non-handshake protocol violations:
	// wrong message type during handshake, session id mismatch, replay.
	ErrCodeProtocolError ErrorCode = "PROTOCOL_ERROR"

	// ErrCodeMalformedHandshake is sent when the handshake cannot be
	// decoded at all.
	ErrCodeMalformedHandshake ErrorCode = "MALFORMED_HANDSHAKE"

	// ErrCodeMalformedMessage is sent when an authenticated message has
	// a recognized type tag but an invalid payload.
	ErrCodeMalformedMessage ErrorCode = "MALFORMED_MESSAGE"
)
