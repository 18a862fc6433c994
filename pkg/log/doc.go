// Package log provides structured protocol logging for the Ember+ server.
//
// This package defines the Logger interface and Event types for capturing
// protocol-level events at multiple layers (framing, tree, dispatch).
// It is separate from operational logging (slog) - protocol capture provides
// a complete machine-readable event trace for debugging and analysis.
//
// # Basic Usage
//
// Applications configure logging by providing a Logger implementation
// (for example to dispatch.WithLogger and emberserver.WithLogger):
//
//	// For development: log to console via slog
//	var l log.Logger = log.NewSlogAdapter(slog.Default())
//
//	// For production: write to binary file
//	fl, err := log.NewFileLogger("/var/log/emberd/session.elog")
//
//	// Both: use MultiLogger
//	l = log.NewMultiLogger(log.NewSlogAdapter(slog.Default()), fl)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Framing: Raw S101 frame bytes (FrameEvent)
//   - Tree: Decoded Ember+ requests/responses (MessageEvent)
//   - Dispatch: Connection state changes (StateChangeEvent)
//
// Keepalive control messages and errors have dedicated event types, and
// TreeSnapshotEvent describes the shape of the live tree. The server does
// not emit snapshot events itself.
//
// # File Format
//
// Log files use CBOR encoding with a .elog extension.
package log
