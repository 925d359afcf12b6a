package wire

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Decode errors. Callers distinguish a tag mismatch (try a different
// kind, or report the unexpected type) from a malformed message.
var (
	// ErrUnexpectedMessageType indicates the envelope's tag does not
	// match the message kind the caller asked for.
	ErrUnexpectedMessageType = errors.New("unexpected message type")

	// ErrMalformedEnvelope indicates the document is not a well-formed
	// envelope (bad JSON, wrong field types, missing envelope fields).
	ErrMalformedEnvelope = errors.New("malformed envelope")

	// ErrMissingField indicates a required payload field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrInvalidField indicates a payload field has an invalid value.
	ErrInvalidField = errors.New("invalid field")

	// ErrVersionMismatch indicates the handshake payload's protocol
	// version disagrees with the envelope's authoritative copy.
	ErrVersionMismatch = errors.New("payload protocol version disagrees with envelope")
)

// DecodeEnvelope parses the outer envelope of a wire message. It does
// not interpret the payload beyond requiring it to be present.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if env.MessageType == "" {
		return nil, fmt.Errorf("%w: message_type is required", ErrMalformedEnvelope)
	}
	if env.ProtocolVersion == "" {
		return nil, fmt.Errorf("%w: protocol_version is required", ErrMalformedEnvelope)
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, fmt.Errorf("%w: payload is required", ErrMalformedEnvelope)
	}
	return &env, nil
}

// expectType rejects an envelope whose tag does not match the kind the
// caller is decoding. Mismatch is a failure, never a fallback.
func expectType(env *Envelope, want MessageType) error {
	if env.MessageType != want {
		return fmt.Errorf("%w: got %q, want %q", ErrUnexpectedMessageType, env.MessageType, want)
	}
	return nil
}

// DecodeHandshake decodes a HANDSHAKE payload. The payload's
// protocol_version must agree with the envelope's; the envelope is
// authoritative and disagreement is rejected rather than reconciled.
func DecodeHandshake(env *Envelope) (*Handshake, error) {
	if err := expectType(env, MessageTypeHandshake); err != nil {
		return nil, err
	}
	var raw struct {
		ProtocolVersion *string `json:"protocol_version"`
		ClientName      *string `json:"client_name"`
	}
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: handshake payload: %v", ErrInvalidField, err)
	}
	if raw.ProtocolVersion == nil {
		return nil, fmt.Errorf("%w: protocol_version", ErrMissingField)
	}
	if *raw.ProtocolVersion != env.ProtocolVersion {
		return nil, fmt.Errorf("%w: payload %q, envelope %q",
			ErrVersionMismatch, *raw.ProtocolVersion, env.ProtocolVersion)
	}
	return &Handshake{
		ProtocolVersion: *raw.ProtocolVersion,
		ClientName:      raw.ClientName,
	}, nil
}

// DecodeAction decodes and validates an ACTION payload.
func DecodeAction(env *Envelope) (*Action, error) {
	if err := expectType(env, MessageTypeAction); err != nil {
		return nil, err
	}
	var raw struct {
		SessionID      *string  `json:"session_id"`
		ActionType     *string  `json:"action_type"`
		Amount         *float64 `json:"amount"`
		SequenceNumber *int64   `json:"sequence_number"`
	}
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: action payload: %v", ErrInvalidField, err)
	}
	switch {
	case raw.SessionID == nil:
		return nil, fmt.Errorf("%w: session_id", ErrMissingField)
	case raw.ActionType == nil:
		return nil, fmt.Errorf("%w: action_type", ErrMissingField)
	case raw.SequenceNumber == nil:
		return nil, fmt.Errorf("%w: sequence_number", ErrMissingField)
	}
	action := &Action{
		SessionID:      *raw.SessionID,
		ActionType:     ActionType(*raw.ActionType),
		Amount:         raw.Amount,
		SequenceNumber: *raw.SequenceNumber,
	}
	if err := action.Validate(); err != nil {
		return nil, err
	}
	return action, nil
}

// DecodeReloadRequest decodes and validates a RELOAD_REQUEST payload.
func DecodeReloadRequest(env *Envelope) (*ReloadRequest, error) {
	if err := expectType(env, MessageTypeReloadRequest); err != nil {
		return nil, err
	}
	var raw struct {
		SessionID       *string  `json:"session_id"`
		RequestedAmount *float64 `json:"requested_amount"`
	}
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: reload request payload: %v", ErrInvalidField, err)
	}
	switch {
	case raw.SessionID == nil:
		return nil, fmt.Errorf("%w: session_id", ErrMissingField)
	case raw.RequestedAmount == nil:
		return nil, fmt.Errorf("%w: requested_amount", ErrMissingField)
	}
	req := &ReloadRequest{
		SessionID:       *raw.SessionID,
		RequestedAmount: *raw.RequestedAmount,
	}
	if err := req.Validate(); err != nil {
		return nil, err
	}
	return req, nil
}

// DecodeDisconnect decodes a DISCONNECT payload.
func DecodeDisconnect(env *Envelope) (*Disconnect, error) {
	if err := expectType(env, MessageTypeDisconnect); err != nil {
		return nil, err
	}
	var raw struct {
		SessionID *string `json:"session_id"`
		Reason    *string `json:"reason"`
	}
	if err := json.Unmarshal(env.Payload, &raw); err != nil {
		return nil, fmt.Errorf("%w: disconnect payload: %v", ErrInvalidField, err)
	}
	if raw.SessionID == nil {
		return nil, fmt.Errorf("%w: session_id", ErrMissingField)
	}
	return &Disconnect{SessionID: *raw.SessionID, Reason: raw.Reason}, nil
}

// encodeEnvelope wraps a payload in an envelope carrying the given
// version tag and renders it to wire form.
func encodeEnvelope(msgType MessageType, version string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", msgType, err)
	}
	data, err := json.Marshal(&Envelope{
		MessageType:     msgType,
		ProtocolVersion: version,
		Payload:         raw,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s envelope: %w", msgType, err)
	}
	return data, nil
}

// EncodeHandshake encodes a HANDSHAKE message. The envelope carries the
// handshake's own protocol version so that payload and envelope always
// agree, whatever version the client claims.
func EncodeHandshake(msg *Handshake) ([]byte, error) {
	if msg.ProtocolVersion == "" {
		return nil, fmt.Errorf("%w: protocol_version", ErrMissingField)
	}
	return encodeEnvelope(MessageTypeHandshake, msg.ProtocolVersion, msg)
}

// EncodeHandshakeResponse encodes a HANDSHAKE_RESPONSE message.
func EncodeHandshakeResponse(msg *HandshakeResponse) ([]byte, error) {
	return encodeEnvelope(MessageTypeHandshakeResponse, ProtocolVersion, msg)
}

// EncodeAction encodes an ACTION message after validating it.
func EncodeAction(msg *Action) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return encodeEnvelope(MessageTypeAction, ProtocolVersion, msg)
}

// EncodeStateUpdate encodes a STATE_UPDATE message.
func EncodeStateUpdate(msg *StateUpdate) ([]byte, error) {
	return encodeEnvelope(MessageTypeStateUpdate, ProtocolVersion, msg)
}

// EncodeError encodes an ERROR message.
func EncodeError(msg *Error) ([]byte, error) {
	return encodeEnvelope(MessageTypeError, ProtocolVersion, msg)
}

// EncodeReloadRequest encodes a RELOAD_REQUEST message after validating it.
func EncodeReloadRequest(msg *ReloadRequest) ([]byte, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return encodeEnvelope(MessageTypeReloadRequest, ProtocolVersion, msg)
}

// EncodeReloadResponse encodes a RELOAD_RESPONSE message.
func EncodeReloadResponse(msg *ReloadResponse) ([]byte, error) {
	return encodeEnvelope(MessageTypeReloadResponse, ProtocolVersion, msg)
}

// EncodeDisconnect encodes a DISCONNECT message.
func EncodeDisconnect(msg *Disconnect) ([]byte, error) {
	return encodeEnvelope(MessageTypeDisconnect, ProtocolVersion, msg)
}
