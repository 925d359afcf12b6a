// Package transport provides the TCP listener and message framing for
// the table protocol.
//
// Messages travel as length-prefixed frames: a 4-byte big-endian
// payload length followed by the JSON payload. Frames above the
// configured maximum are rejected without allocating the payload.
//
// The Server accepts connections, assigns each a connection UUID for
// log correlation and hands it to a session. Accept errors are retried
// after a fixed delay; the listener is never abandoned while the server
// runs. A connection cap refuses sockets beyond the configured limit
// before any protocol work happens.
package transport
