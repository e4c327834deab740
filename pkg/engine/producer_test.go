// ABOUTME: Tests for producer selection
// ABOUTME: Checks which producer Open picks for each kind of input
package engine

import (
	"os"
	"path/filepath"
	"testing"
)

func TestOpenTone(t *testing.T) {
	p, err := Open(Args{Input: ToneInput, MixerRate: 22050})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()

	if _, ok := p.(*Tone); !ok {
		t.Fatalf("expected *Tone, got %T", p)
	}
	if p.Format().SampleRate != 22050 {
		t.Errorf("expected 22050 Hz, got %d", p.Format().SampleRate)
	}
}

func TestOpenErrors(t *testing.T) {
	if _, err := Open(Args{}); err == nil {
		t.Error("expected error for empty input")
	}
	if _, err := Open(Args{Input: filepath.Join(t.TempDir(), "missing.mid")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOpenSelectsEngineForMIDI(t *testing.T) {
	binary, _ := fakePlaybae(t, nil)

	input := filepath.Join(t.TempDir(), "song.mid")
	if err := os.WriteFile(input, []byte("MThd"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Open(Args{Binary: binary, Input: input})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer p.Close()

	e, ok := p.(*Exec)
	if !ok {
		t.Fatalf("expected *Exec, got %T", p)
	}
	if e.args.TypeFlag() != "-m" {
		t.Errorf("expected type detected from extension, got flag %s", e.args.TypeFlag())
	}
}

func TestOpenRejectsCorruptMP3(t *testing.T) {
	input := filepath.Join(t.TempDir(), "bad.mp3")
	if err := os.WriteFile(input, []byte("not an mp3"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := Open(Args{Input: input}); err == nil {
		t.Error("expected decode error for corrupt MP3")
	}
}
