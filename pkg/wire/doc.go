// Package wire defines the JSON wire format for the tablewire protocol.
//
// Every message on the wire is a JSON document wrapped in an Envelope
// carrying the message type tag, the protocol version, and a
// type-specific payload:
//
//	{
//	  "message_type": "ACTION",
//	  "protocol_version": "v1.0",
//	  "payload": { ... }
//	}
//
// The envelope's message_type is the sole discriminator: decoding a
// specific message kind fails when the tag does not match, it never
// falls back to guessing from payload shape. The envelope's
// protocol_version is authoritative; a handshake payload that carries a
// disagreeing protocol_version is rejected, never reconciled.
//
// # Directions
//
// Client to server kinds (decodable): HANDSHAKE, ACTION, RELOAD_REQUEST,
// DISCONNECT. Server to client kinds (encodable only):
// HANDSHAKE_RESPONSE, STATE_UPDATE, ERROR, RELOAD_RESPONSE.
//
// # Validation
//
// Validation is baked into decoding: a decode function returns a message
// only if it is structurally and semantically valid. Malformed JSON,
// wrong field types, missing required fields, out-of-range values and
// unknown enum members all fail closed with an error and no partial
// result.
package wire
