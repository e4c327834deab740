// ABOUTME: Tests for the test tone producer
// ABOUTME: Checks waveform continuity, duration limits and cancellation
package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/minibae/minibae-stream/pkg/audio"
)

func TestToneNext(t *testing.T) {
	tone := NewTone(DefaultToneFrequency, 44100)

	chunk := tone.Next(64)
	if chunk.Frames() != 64 {
		t.Fatalf("expected 64 frames, got %d", chunk.Frames())
	}
	if chunk.Samples[0] != 0 {
		t.Errorf("expected tone to start at zero, got %d", chunk.Samples[0])
	}
	for i := 0; i < chunk.Frames(); i++ {
		if chunk.Samples[i*2] != chunk.Samples[i*2+1] {
			t.Fatalf("frame %d: channels differ", i)
		}
		if chunk.Samples[i*2] > 16384 || chunk.Samples[i*2] < -16384 {
			t.Fatalf("frame %d: sample %d exceeds half scale", i, chunk.Samples[i*2])
		}
	}
}

func TestToneIsContinuousAcrossChunks(t *testing.T) {
	split := NewTone(DefaultToneFrequency, 44100)
	whole := NewTone(DefaultToneFrequency, 44100)

	a := split.Next(100)
	b := split.Next(100)
	c := whole.Next(200)

	joined := append(a.Samples, b.Samples...)
	if !equalInt16(joined, c.Samples) {
		t.Error("tone generated in two chunks differs from one chunk")
	}
}

func TestToneDuration(t *testing.T) {
	tone := NewTone(DefaultToneFrequency, 1000)
	tone.ChunkFrames = 300
	tone.Duration = time.Second

	var chunks []audio.Chunk
	if err := tone.Run(context.Background(), collect(t, &chunks)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	total := 0
	for _, c := range chunks {
		total += c.Frames()
	}
	if total != 1000 {
		t.Errorf("expected 1000 frames, got %d", total)
	}
	if last := chunks[len(chunks)-1].Frames(); last != 100 {
		t.Errorf("expected a 100-frame final chunk, got %d", last)
	}
}

func TestToneCancel(t *testing.T) {
	tone := NewTone(DefaultToneFrequency, 44100)
	ctx, cancel := context.WithCancel(context.Background())

	count := 0
	err := tone.Run(ctx, func(audio.Chunk) error {
		count++
		if count == 3 {
			cancel()
		}
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 chunks before cancel, got %d", count)
	}
}
