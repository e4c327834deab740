// ABOUTME: Error values for the streaming buffer
// ABOUTME: Data-integrity and precondition errors raised by the core
package stream

import "errors"

var (
	// ErrMalformedChunk marks an interleaved chunk that does not hold whole
	// stereo frames. The chunk is rejected as a unit; nothing is queued.
	ErrMalformedChunk = errors.New("malformed chunk")

	// ErrChannelMismatch is returned when left and right sequences differ in length
	ErrChannelMismatch = errors.New("channel length mismatch")

	// ErrInsufficientFrames is returned by Take when fewer frames are queued than requested
	ErrInsufficientFrames = errors.New("insufficient frames buffered")
)
