// Package types holds the wire-level and in-memory data model shared by
// every layer of the engine: concept identifiers, concept nodes, directed
// associations, the write-intent tagged union, and the sentinel errors
// every component returns.
package types

import "errors"

// Sentinel errors. Components wrap these with fmt.Errorf("...: %w", Err...)
// so callers can still errors.Is against them.
var (
	// ErrFull is returned by WriteLog.Append when the bounded ring is at
	// capacity. Recoverable: the caller should back off and retry, or
	// apply upstream backpressure. It is not a bug.
	ErrFull = errors.New("write log full")

	// ErrDisconnected means the consumer side of the WriteLog is gone.
	// Fatal for the owning ConcurrentMemory instance.
	ErrDisconnected = errors.New("write log disconnected")

	// ErrInvalidConfig is returned by config validation. Fatal at startup.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrDimensionMismatch means a vector's length didn't match the
	// store's configured dimension. The concept is still learned, just
	// without the vector; this error is informational/logged, not fatal.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrCorrupt marks data that failed validation: a WAL record with a
	// bad checksum, or an MmapStore/HNSW file with the wrong magic or
	// version.
	ErrCorrupt = errors.New("corrupt data")

	// ErrSealed means an append was attempted against a segment or log
	// that has already been sealed/closed.
	ErrSealed = errors.New("sealed")

	// ErrClosed means the component has been shut down and can no longer
	// serve calls.
	ErrClosed = errors.New("closed")

	// ErrNotFound is used internally for optional lookups; callers at the
	// ConcurrentMemory API boundary see it as (zero-value, false) or
	// (nil, nil) rather than an error, per spec: reads never fail except
	// on unexpected IO.
	ErrNotFound = errors.New("not found")
)
