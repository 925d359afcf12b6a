// Package registry provides a thread-safe directory of live,
// authenticated sessions and unique session identifier issuance.
//
// Identifiers come from a monotonically increasing counter and are
// never reused within a process lifetime, even after a session closes.
// The registry holds a reference to each session only while it is
// registered; sessions hold a plain pointer back to the registry, so
// neither side keeps the other alive beyond its usefulness.
package registry
