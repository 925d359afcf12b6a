// Package config loads server configuration from YAML.
//
// All fields are optional; omitted values take the protocol defaults.
// Durations use Go notation ("10s", "1m30s"). Load validates the result
// so a malformed file fails startup instead of producing a half-limited
// server.
package config
