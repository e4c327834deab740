// ABOUTME: Test tone producer for checking the output path without an engine
// ABOUTME: Generates a sine wave on both channels in fixed-size chunks
package engine

import (
	"context"
	"math"
	"time"

	"github.com/minibae/minibae-stream/pkg/audio"
)

const (
	// DefaultToneFrequency is A4
	DefaultToneFrequency = 440.0

	// DefaultToneChunkFrames matches a typical engine slice
	DefaultToneChunkFrames = 1024
)

// Tone generates a 440Hz sine wave at half volume
type Tone struct {
	Frequency   float64
	ChunkFrames int
	// Duration limits the tone; zero plays until cancelled
	Duration time.Duration

	format      audio.Format
	sampleIndex uint64
}

// NewTone creates a tone generator
func NewTone(frequency float64, sampleRate int) *Tone {
	return &Tone{
		Frequency:   frequency,
		ChunkFrames: DefaultToneChunkFrames,
		format:      audio.PCM16(sampleRate),
	}
}

// Format returns the tone format
func (t *Tone) Format() audio.Format {
	return t.format
}

// Next generates the next chunk of the tone
func (t *Tone) Next(frames int) audio.Chunk {
	samples := make([]int16, frames*audio.Channels)
	rate := float64(t.format.SampleRate)

	for i := 0; i < frames; i++ {
		at := float64(t.sampleIndex+uint64(i)) / rate
		v := int16(math.Sin(2*math.Pi*t.Frequency*at) * 32767.0 * 0.5)
		samples[i*2] = v
		samples[i*2+1] = v
	}
	t.sampleIndex += uint64(frames)

	return audio.Chunk{Samples: samples}
}

// Run emits chunks until Duration is reached or ctx is cancelled
func (t *Tone) Run(ctx context.Context, emit ChunkFunc) error {
	var limit uint64
	if t.Duration > 0 {
		limit = uint64(t.Duration.Seconds() * float64(t.format.SampleRate))
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frames := t.ChunkFrames
		if limit > 0 {
			if t.sampleIndex >= limit {
				return nil
			}
			frames = int(min(uint64(frames), limit-t.sampleIndex))
		}

		if err := emit(t.Next(frames)); err != nil {
			return err
		}
	}
}

// Close is a no-op
func (t *Tone) Close() error { return nil }
