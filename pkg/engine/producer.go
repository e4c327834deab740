// ABOUTME: Producer abstraction for PCM chunk sources
// ABOUTME: Selects the synthesis engine or a stand-in decoder for an input
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/minibae/minibae-stream/pkg/audio"
)

// ChunkFunc receives each chunk a producer delivers. The chunk is owned by
// the callee. A non-nil error stops the producer and is returned from Run.
type ChunkFunc func(audio.Chunk) error

// Producer delivers interleaved 16-bit stereo chunks at irregular sizes
type Producer interface {
	// Format describes the chunks Run will deliver
	Format() audio.Format
	// Run delivers chunks until the source ends, ctx is cancelled or emit fails.
	// Reaching the end of the source returns nil.
	Run(ctx context.Context, emit ChunkFunc) error
	// Close releases the source
	Close() error
}

// ToneInput selects the built-in test tone instead of a file
const ToneInput = "tone"

// Open picks a producer for the input: the test tone, a chunk feed URL,
// a stand-in decoder for MP3, FLAC and Ogg Opus files, or the playbae engine
// for everything else.
func Open(args Args) (Producer, error) {
	input := args.Input

	switch {
	case input == ToneInput:
		return NewTone(DefaultToneFrequency, sampleRateOr(args.MixerRate)), nil
	case strings.HasPrefix(input, "ws://") || strings.HasPrefix(input, "wss://"):
		return DialWebSocket(input, sampleRateOr(args.MixerRate))
	}

	if input == "" {
		return nil, ErrNoInput
	}
	if _, err := os.Stat(input); err != nil {
		return nil, fmt.Errorf("input not found: %w", err)
	}

	switch strings.ToLower(filepath.Ext(input)) {
	case ".mp3":
		return NewMP3(input)
	case ".flac":
		return NewFLAC(input)
	case ".opus", ".ogg":
		return NewOpus(input)
	}

	if args.Type == "" {
		args.Type = DetectType(input)
	}
	log.Printf("Using playbae engine for %s (type flag %s)", filepath.Base(input), args.TypeFlag())
	return NewExec(args)
}

func sampleRateOr(rate int) int {
	if rate > 0 {
		return rate
	}
	return audio.DefaultSampleRate
}
