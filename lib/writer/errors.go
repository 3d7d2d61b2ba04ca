package writer

import "errors"

var (
	// ErrQueueFull - the outbound queue has no room for the record
	ErrQueueFull = errors.New("outbound queue is full")

	// ErrClientClosed - the client was closed
	ErrClientClosed = errors.New("writer client is closed")

	// ErrStreamCompleted - the backend closed the stream and no reconnection is configured
	ErrStreamCompleted = errors.New("write stream was completed by the backend")

	// ErrAlreadyStarted - start was called more than once
	ErrAlreadyStarted = errors.New("writer client already started")

	// ErrUnknownCompressor - the configured compressor is not registered
	ErrUnknownCompressor = errors.New("unknown compressor")
)
