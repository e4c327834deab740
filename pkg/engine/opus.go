// ABOUTME: Stand-in producer that decodes Ogg Opus files
// ABOUTME: Uses libopusfile through hraban/opus; streams are decoded as 48kHz stereo
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/minibae/minibae-stream/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

const (
	// OpusSampleRate is the rate libopusfile always decodes to
	OpusSampleRate = 48000

	// opusMaxFrame is 120ms at 48kHz, the longest Opus packet
	opusMaxFrame = 5760
)

// Opus decodes an Ogg Opus file into chunks
type Opus struct {
	file   *os.File
	stream *opus.Stream
	format audio.Format
}

// NewOpus opens an Ogg Opus file. The stream must be stereo.
func NewOpus(path string) (*Opus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Opus file: %w", err)
	}

	stream, err := opus.NewStream(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode Opus: %w", err)
	}

	log.Printf("Loaded Opus: %s (sample rate: %d Hz)", filepath.Base(path), OpusSampleRate)

	return &Opus{
		file:   f,
		stream: stream,
		format: audio.Format{
			Codec:      "opus",
			SampleRate: OpusSampleRate,
			Channels:   audio.Channels,
			BitDepth:   16,
		},
	}, nil
}

// Format returns the decoded stream format
func (o *Opus) Format() audio.Format {
	return o.format
}

// Run decodes packets until the end of the stream
func (o *Opus) Run(ctx context.Context, emit ChunkFunc) error {
	pcm := make([]int16, opusMaxFrame*audio.Channels)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, err := o.stream.Read(pcm)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode Opus packet: %w", err)
		}

		chunk, err := audio.ChunkFromFrames(pcm, n)
		if err != nil {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
}

// Close closes the stream and file
func (o *Opus) Close() error {
	o.stream.Close()
	if err := o.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
