// ABOUTME: Audio type definitions
// ABOUTME: Defines stream formats, owned sample chunks and sample conversions
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
)

const (
	// DefaultSampleRate is the mixer rate the synthesis engine runs at
	DefaultSampleRate = 44100

	// Channels is the only channel layout the pipeline carries
	Channels = 2

	// int16Scale maps fixed-point samples into [-1.0, 1.0)
	int16Scale = 32768.0
)

// ErrOddLength reports an interleaved buffer that does not hold whole frames
var ErrOddLength = errors.New("odd sample count in interleaved stereo data")

// Format describes the PCM stream a producer emits
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// PCM16 returns the interleaved 16-bit stereo format at the given rate
func PCM16(sampleRate int) Format {
	return Format{
		Codec:      "pcm",
		SampleRate: sampleRate,
		Channels:   Channels,
		BitDepth:   16,
	}
}

// Chunk is an owned block of interleaved stereo 16-bit samples.
// Even indices hold the left channel, odd indices the right channel.
type Chunk struct {
	Samples []int16
}

// Frames returns the number of whole stereo frames in the chunk
func (c Chunk) Frames() int {
	return len(c.Samples) / Channels
}

// Valid reports whether the chunk holds only whole frames
func (c Chunk) Valid() bool {
	return len(c.Samples)%Channels == 0
}

// ChunkFromFrames copies frameCount stereo frames out of a producer buffer.
// The producer keeps ownership of samples; the chunk never aliases it.
func ChunkFromFrames(samples []int16, frameCount int) (Chunk, error) {
	if frameCount < 0 {
		return Chunk{}, fmt.Errorf("negative frame count: %d", frameCount)
	}

	n := frameCount * Channels
	if n > len(samples) {
		return Chunk{}, fmt.Errorf("frame count %d exceeds buffer of %d samples", frameCount, len(samples))
	}

	owned := make([]int16, n)
	copy(owned, samples[:n])
	return Chunk{Samples: owned}, nil
}

// ChunkFromBytes decodes little-endian s16 PCM bytes into an owned chunk.
// The sample count is not checked for whole frames here; that is the
// deinterleaver's job so malformed chunks are reported in one place.
func ChunkFromBytes(data []byte) (Chunk, error) {
	if len(data)%2 != 0 {
		return Chunk{}, fmt.Errorf("%w: %d bytes", ErrOddLength, len(data))
	}

	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return Chunk{Samples: samples}, nil
}

// Bytes encodes the chunk as little-endian s16 PCM
func (c Chunk) Bytes() []byte {
	out := make([]byte, len(c.Samples)*2)
	for i, s := range c.Samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

// Int16ToFloat normalizes a fixed-point sample into [-1.0, 1.0)
func Int16ToFloat(sample int16) float32 {
	return float32(sample) / int16Scale
}

// FloatToInt16 converts a normalized sample back to fixed point with clipping
func FloatToInt16(sample float32) int16 {
	scaled := float64(sample) * int16Scale
	if scaled > 32767 {
		return 32767
	}
	if scaled < -32768 {
		return -32768
	}
	return int16(scaled)
}

// SampleFromWide reduces a sample of the given bit depth to 16 bits
func SampleFromWide(sample int32, bitDepth int) int16 {
	switch {
	case bitDepth == 16:
		return int16(sample)
	case bitDepth > 16:
		return int16(sample >> (bitDepth - 16))
	default:
		return int16(sample << (16 - bitDepth))
	}
}
