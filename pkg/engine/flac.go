// ABOUTME: Stand-in producer that decodes FLAC files
// ABOUTME: Upmixes mono and reduces wider samples to 16 bits per frame
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/mewkiz/flac"
	"github.com/minibae/minibae-stream/pkg/audio"
)

// FLAC decodes a FLAC file into one chunk per FLAC frame
type FLAC struct {
	file     *os.File
	stream   *flac.Stream
	format   audio.Format
	channels int
	bitDepth int
}

// NewFLAC opens a mono or stereo FLAC file
func NewFLAC(path string) (*FLAC, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	stream, err := flac.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	channels := int(info.NChannels)
	if channels < 1 || channels > audio.Channels {
		f.Close()
		return nil, fmt.Errorf("unsupported FLAC channel count: %d", channels)
	}

	log.Printf("Loaded FLAC: %s (sample rate: %d Hz, channels: %d, bit depth: %d)",
		filepath.Base(path), info.SampleRate, channels, info.BitsPerSample)

	return &FLAC{
		file:     f,
		stream:   stream,
		format:   audio.PCM16(int(info.SampleRate)),
		channels: channels,
		bitDepth: int(info.BitsPerSample),
	}, nil
}

// Format returns the decoded stream format
func (d *FLAC) Format() audio.Format {
	return d.format
}

// Run decodes frames until the end of the file
func (d *FLAC) Run(ctx context.Context, emit ChunkFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := d.stream.ParseNext()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to decode FLAC frame: %w", err)
		}

		n := int(frame.BlockSize)
		samples := make([]int16, n*audio.Channels)
		left := frame.Subframes[0].Samples
		right := left
		if d.channels == 2 {
			right = frame.Subframes[1].Samples
		}
		for i := 0; i < n; i++ {
			samples[i*2] = audio.SampleFromWide(left[i], d.bitDepth)
			samples[i*2+1] = audio.SampleFromWide(right[i], d.bitDepth)
		}

		if err := emit(audio.Chunk{Samples: samples}); err != nil {
			return err
		}
	}
}

// Close closes the stream and file
func (d *FLAC) Close() error {
	d.stream.Close()
	if err := d.file.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return err
	}
	return nil
}
