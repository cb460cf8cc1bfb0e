// Package config loads the relay's process configuration.
//
// Settings come from an optional file, RPCRELAY_ prefixed environment
// variables and command line flags, in increasing precedence. Every key has
// a default so that environment overrides work without a file. The decoded
// Config is checked with validator struct tags before use.
//
// The upstream routing document is separate and loaded by
// upstream.LoadConfig from the path in Config.Upstreams.
package config
