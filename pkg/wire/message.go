package wire

import (
	"encoding/json"
	"fmt"
	"math"
)

// ProtocolVersion is the wire protocol version this package implements.
// Exact match is required; there is no semantic version negotiation.
const ProtocolVersion = "v1.0"

// Envelope is the outer wire record. The payload's shape is determined
// solely by MessageType.
type Envelope struct {
	MessageType     MessageType     `json:"message_type"`
	ProtocolVersion string          `json:"protocol_version"`
	Payload         json.RawMessage `json:"payload"`
}

// Handshake is the first client message, establishing protocol
// compatibility. The payload repeats the protocol version; the
// envelope's copy is authoritative and the two must agree.
type Handshake struct {
	ProtocolVersion string  `json:"protocol_version"`
	ClientName      *string `json:"client_name,omitempty"`
}

// HandshakeResponse assigns the session identity after a successful
// handshake.
type HandshakeResponse struct {
	SessionID     string  `json:"session_id"`
	SeatNumber    int     `json:"seat_number"`
	StartingStack float64 `json:"starting_stack"`
}

// Action is a client poker action. Amount is required for RAISE and
// ALL_IN and forbidden otherwise. SequenceNumber must increase strictly
// per session.
type Action struct {
	SessionID      string     `json:"session_id"`
	ActionType     ActionType `json:"action_type"`
	Amount         *float64   `json:"amount,omitempty"`
	SequenceNumber int64      `json:"sequence_number"`
}

// Validate checks the action's semantic rules.
func (a *Action) Validate() error {
	if !a.ActionType.IsValid() {
		return fmt.Errorf("%w: action_type %q", ErrInvalidField, a.ActionType)
	}
	if a.Amount != nil {
		v := *a.Amount
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			return fmt.Errorf("%w: amount must be a finite positive number", ErrInvalidField)
		}
	}
	if a.ActionType.RequiresAmount() && a.Amount == nil {
		return fmt.Errorf("%w: %s requires amount", ErrInvalidField, a.ActionType)
	}
	if !a.ActionType.RequiresAmount() && a.Amount != nil {
		return fmt.Errorf("%w: %s must not carry amount", ErrInvalidField, a.ActionType)
	}
	return nil
}

// PlayerStack is one player's chip count in a STATE_UPDATE.
type PlayerStack struct {
	Seat  int     `json:"seat"`
	Stack float64 `json:"stack"`
}

// StateUpdate is a server broadcast of table state. Its contents are
// produced by the game engine; this layer only carries them.
type StateUpdate struct {
	GamePhase      GamePhase     `json:"game_phase"`
	PotSize        float64       `json:"pot_size"`
	CurrentBet     float64       `json:"current_bet"`
	PlayerStacks   []PlayerStack `json:"player_stacks"`
	CommunityCards []string      `json:"community_cards,omitempty"`
	HoleCards      []string      `json:"hole_cards,omitempty"`
	ValidActions   []string      `json:"valid_actions"`
	ActingSeat     *int          `json:"acting_seat,omitempty"`
}

// Error is a server-reported protocol failure.
type Error struct {
	ErrorCode ErrorCode `json:"error_code"`
	Message   string    `json:"message"`
	SessionID *string   `json:"session_id,omitempty"`
}

// ReloadRequest asks the server for a chip reload.
type ReloadRequest struct {
	SessionID       string  `json:"session_id"`
	RequestedAmount float64 `json:"requested_amount"`
}

// Validate checks the reload request's semantic rules.
func (r *ReloadRequest) Validate() error {
	if math.IsNaN(r.RequestedAmount) || math.IsInf(r.RequestedAmount, 0) || r.RequestedAmount < 0 {
		return fmt.Errorf("%w: requested_amount must be finite and non-negative", ErrInvalidField)
	}
	return nil
}

// ReloadResponse answers a ReloadRequest.
type ReloadResponse struct {
	Granted  bool    `json:"granted"`
	NewStack float64 `json:"new_stack"`
}

// Disconnect announces a graceful client disconnection.
type Disconnect struct {
	SessionID string  `json:"session_id"`
	Reason    *string `json:"reason,omitempty"`
}
