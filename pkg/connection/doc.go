// Package connection manages the client side of a table connection:
// dialing, the version handshake and reconnection with exponential
// backoff.
//
// Handshake rejections are terminal; the server told us why, and
// retrying with the same parameters cannot succeed. Network failures
// retry with jittered exponential backoff until the context is
// cancelled or the attempt budget runs out.
package connection
