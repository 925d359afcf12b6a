// Package session implements the per-connection protocol state machine.
//
// A Session owns one framed transport connection and moves through
// exactly three states:
//
//	unauthenticated -> authenticated -> closed
//
// No transition leaves closed. While unauthenticated the only
// acceptable message is a HANDSHAKE whose protocol version matches the
// server's exactly; success registers the session with the registry,
// assigns its identifier and answers with HANDSHAKE_RESPONSE. Any
// handshake failure answers with an ERROR frame and closes. While
// authenticated the session decodes ACTION, RELOAD_REQUEST and
// DISCONNECT messages keyed on the envelope's message_type, enforces
// the session identifier and, for actions, a strictly increasing
// sequence number; per-message validation failures answer with ERROR
// and leave the connection open.
//
// # Safety policies
//
// Every inbound message passes a sliding-window rate limit; exceeding
// the cap closes the session. Outbound messages go through a bounded
// queue with a single write in flight; when the queue is full the new
// message is dropped and logged rather than blocking. A deadline timer
// enforces the handshake timeout before authentication and the idle
// timeout after it.
//
// # Graceful close
//
// Close is idempotent and flushes: if a write is in flight the close is
// deferred until the queue drains, so an ERROR explaining the closure
// reaches the peer before teardown. Completion and timer callbacks
// re-check the terminal state, so a timer firing concurrently with a
// read or write completion never tears the session down twice.
package session
