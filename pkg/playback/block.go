// ABOUTME: Playback block definition
// ABOUTME: Fixed-length stereo float block handed to an output sink
package playback

import "fmt"

// Block is an immutable pair of per-channel sample runs. A sink consumes a
// block exactly once and releases it after playback.
type Block struct {
	Left       []float32
	Right      []float32
	SampleRate int
}

// NewBlock creates a block from owned channel slices
func NewBlock(left, right []float32, sampleRate int) (*Block, error) {
	if len(left) != len(right) {
		return nil, fmt.Errorf("channel length mismatch: left=%d right=%d", len(left), len(right))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %d", sampleRate)
	}

	return &Block{
		Left:       left,
		Right:      right,
		SampleRate: sampleRate,
	}, nil
}

// Frames returns the number of stereo frames in the block
func (b *Block) Frames() int {
	return len(b.Left)
}

// Duration returns the block length in seconds
func (b *Block) Duration() float64 {
	return float64(len(b.Left)) / float64(b.SampleRate)
}
