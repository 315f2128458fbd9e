// Package config binds client and pool configuration from YAML, TOML or
// JSON files. Option names match the documented keys: endpoint-url,
// connection-timeout, socket-read-timeout, protocol-version, pool.*, ssl.*
// and auth.*.
//
// Durations accept Go duration strings ("30s") or integer milliseconds.
// Store and authentication passwords may be supplied through the
// environment instead of the file; see LoadEnv.
package config
