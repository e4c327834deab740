// ABOUTME: Channel deinterleaver
// ABOUTME: Splits interleaved 16-bit stereo chunks into normalized channel sequences
package stream

import (
	"fmt"

	"github.com/minibae/minibae-stream/pkg/audio"
)

// Deinterleave splits an interleaved stereo chunk into normalized left and
// right sequences: left[i] = chunk[2i]/32768, right[i] = chunk[2i+1]/32768.
func Deinterleave(chunk audio.Chunk) (left, right []float32, err error) {
	if !chunk.Valid() {
		return nil, nil, fmt.Errorf("%w: %d samples is not a whole number of stereo frames",
			ErrMalformedChunk, len(chunk.Samples))
	}

	frames := chunk.Frames()
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		left[i] = audio.Int16ToFloat(chunk.Samples[2*i])
		right[i] = audio.Int16ToFloat(chunk.Samples[2*i+1])
	}

	return left, right, nil
}
