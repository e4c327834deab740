// ABOUTME: Stand-in producer that decodes MP3 files
// ABOUTME: go-mp3 already yields s16le stereo, so frames pass straight through
package engine

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/hajimehoshi/go-mp3"
	"github.com/minibae/minibae-stream/pkg/audio"
)

// mp3FrameBytes is one MPEG-1 Layer III frame of decoded stereo s16
const mp3FrameBytes = 1152 * bytesPerFrame

// MP3 decodes an MP3 file into chunks
type MP3 struct {
	file    *os.File
	decoder *mp3.Decoder
	format  audio.Format
}

// NewMP3 opens an MP3 file
func NewMP3(path string) (*MP3, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	log.Printf("Loaded MP3: %s (sample rate: %d Hz)", filepath.Base(path), decoder.SampleRate())

	return &MP3{
		file:    f,
		decoder: decoder,
		format:  audio.PCM16(decoder.SampleRate()),
	}, nil
}

// Format returns the decoded stream format
func (m *MP3) Format() audio.Format {
	return m.format
}

// Run decodes until the end of the file
func (m *MP3) Run(ctx context.Context, emit ChunkFunc) error {
	return pumpPCM(ctx, m.decoder, mp3FrameBytes, nil, m.format, emit)
}

// Close closes the file
func (m *MP3) Close() error {
	return m.file.Close()
}
