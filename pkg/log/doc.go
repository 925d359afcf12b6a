// Package log provides structured protocol event logging for the
// tablewire session layer.
//
// Events are captured at three layers: transport (frames), wire
// (decoded messages) and session (state changes, policy decisions).
// Applications implement the Logger interface, or use one of the
// provided implementations:
//
//   - NoopLogger: discards everything
//   - SlogAdapter: renders events to a standard library slog.Logger
//   - FileLogger: appends CBOR-encoded events to a file
//   - MultiLogger: fans out to several loggers
//
// The CBOR file format uses integer keys for compactness; Reader
// iterates a recorded file event by event.
package log
