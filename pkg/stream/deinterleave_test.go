// ABOUTME: Tests for the channel deinterleaver
// ABOUTME: Verifies exact normalization and malformed chunk rejection
package stream

import (
	"errors"
	"testing"

	"github.com/minibae/minibae-stream/pkg/audio"
)

func TestDeinterleave(t *testing.T) {
	chunk := audio.Chunk{Samples: []int16{100, 200, 300, 400, 500, 600, 700, 800}}

	left, right, err := Deinterleave(chunk)
	if err != nil {
		t.Fatalf("deinterleave failed: %v", err)
	}

	if len(left) != 4 || len(right) != 4 {
		t.Fatalf("expected 4 frames per channel, got left=%d right=%d", len(left), len(right))
	}

	for i := 0; i < 4; i++ {
		wantL := float32(chunk.Samples[2*i]) / 32768
		wantR := float32(chunk.Samples[2*i+1]) / 32768
		if left[i] != wantL {
			t.Errorf("left[%d]: expected %v, got %v", i, wantL, left[i])
		}
		if right[i] != wantR {
			t.Errorf("right[%d]: expected %v, got %v", i, wantR, right[i])
		}
	}
}

func TestDeinterleaveExtremes(t *testing.T) {
	chunk := audio.Chunk{Samples: []int16{-32768, 32767, 0, -1}}

	left, right, err := Deinterleave(chunk)
	if err != nil {
		t.Fatalf("deinterleave failed: %v", err)
	}

	if left[0] != -1.0 {
		t.Errorf("expected -1.0, got %v", left[0])
	}
	if right[0] >= 1.0 {
		t.Errorf("expected right[0] < 1.0, got %v", right[0])
	}
	if left[1] != 0 {
		t.Errorf("expected 0, got %v", left[1])
	}
	if right[1] != -1.0/32768 {
		t.Errorf("expected %v, got %v", -1.0/32768, right[1])
	}
}

func TestDeinterleaveOddLength(t *testing.T) {
	chunk := audio.Chunk{Samples: []int16{1, 2, 3}}

	left, right, err := Deinterleave(chunk)
	if !errors.Is(err, ErrMalformedChunk) {
		t.Fatalf("expected ErrMalformedChunk, got %v", err)
	}
	if left != nil || right != nil {
		t.Error("expected no output for malformed chunk")
	}
}

func TestDeinterleaveEmpty(t *testing.T) {
	left, right, err := Deinterleave(audio.Chunk{})
	if err != nil {
		t.Fatalf("unexpected error for empty chunk: %v", err)
	}
	if len(left) != 0 || len(right) != 0 {
		t.Errorf("expected empty output, got left=%d right=%d", len(left), len(right))
	}
}
