// Package logging provides a minimal logging interface and slog adapters for
// tripmesh.
//
// The Logger interface defines the leveled methods (Debug, Info, Warn, Error)
// that runners, agents and the HTTP surface use. This package includes:
//
//   - Logger interface for dependency injection
//   - SlogAdapter wrapping Go's structured logging
//   - NoOpLogger for silent operation in tests
//
// Usage:
//
//	logger := logging.New(logging.Config{Level: logging.LogLevelInfo, Format: "json"})
//	logger.Info("server.start", "addr", ":8080")
//
// Messages are dotted event names; context travels as key/value pairs.
package logging
