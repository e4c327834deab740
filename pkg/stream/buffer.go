// ABOUTME: Streaming buffer of per-channel sample queues
// ABOUTME: Accumulates deinterleaved samples until a block's worth of frames is queued
package stream

import (
	"fmt"

	"github.com/minibae/minibae-stream/pkg/audio"
)

// Buffer holds two unbounded channel queues that always have equal length.
// It is not safe for concurrent use; the session serializes access.
type Buffer struct {
	left      []float32
	right     []float32
	threshold int
}

// NewBuffer creates a buffer that reports readiness at threshold frames
func NewBuffer(threshold int) (*Buffer, error) {
	if threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive, got %d", threshold)
	}

	return &Buffer{
		left:      make([]float32, 0, threshold*2),
		right:     make([]float32, 0, threshold*2),
		threshold: threshold,
	}, nil
}

// Threshold returns the frame count that makes the buffer ready
func (b *Buffer) Threshold() int {
	return b.threshold
}

// Append queues equal-length left and right sequences
func (b *Buffer) Append(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("%w: left=%d right=%d", ErrChannelMismatch, len(left), len(right))
	}

	b.left = append(b.left, left...)
	b.right = append(b.right, right...)
	return nil
}

// AppendChunk deinterleaves a chunk and queues it. A malformed chunk leaves
// the queues untouched.
func (b *Buffer) AppendChunk(chunk audio.Chunk) error {
	left, right, err := Deinterleave(chunk)
	if err != nil {
		return err
	}
	return b.Append(left, right)
}

// Frames returns the number of queued frames
func (b *Buffer) Frames() int {
	return len(b.left)
}

// HasThresholdFrames reports whether a full block can be taken
func (b *Buffer) HasThresholdFrames() bool {
	return len(b.left) >= b.threshold && len(b.right) >= b.threshold
}

// Take removes and returns the first n frames of each channel. The returned
// slices are owned by the caller; the remainder stays queued.
func (b *Buffer) Take(n int) (left, right []float32, err error) {
	if n < 0 || n > len(b.left) {
		return nil, nil, fmt.Errorf("%w: want %d, have %d", ErrInsufficientFrames, n, len(b.left))
	}

	left = make([]float32, n)
	right = make([]float32, n)
	copy(left, b.left[:n])
	copy(right, b.right[:n])

	b.left = compact(b.left, n)
	b.right = compact(b.right, n)

	return left, right, nil
}

// Drain removes and returns everything queued, for the session tail
func (b *Buffer) Drain() (left, right []float32) {
	left, right, _ = b.Take(len(b.left))
	return left, right
}

// Reset discards all queued frames
func (b *Buffer) Reset() {
	b.left = b.left[:0]
	b.right = b.right[:0]
}

// compact drops the first n samples, shifting the remainder to the front so
// the backing array is reused instead of growing without bound
func compact(q []float32, n int) []float32 {
	remaining := copy(q, q[n:])
	return q[:remaining]
}
