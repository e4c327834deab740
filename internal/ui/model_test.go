// ABOUTME: Tests for TUI model and state management
// ABOUTME: Tests status updates, key handling, and rendering
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestNewModel(t *testing.T) {
	model := NewModel(nil) // VolumeControl is optional for testing

	if model.volume != 100 {
		t.Errorf("expected default volume 100, got %d", model.volume)
	}

	if model.muted {
		t.Error("expected muted to be false initially")
	}

	if model.showDebug {
		t.Error("expected showDebug to be false initially")
	}

	if model.state != "starting" {
		t.Errorf("expected state 'starting', got '%s'", model.state)
	}
}

func TestStatusMsgSource(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Source:    "song.mid",
		SessionID: "abc",
		Backend:   "oto",
	})

	if model.source != "song.mid" {
		t.Errorf("expected source 'song.mid', got '%s'", model.source)
	}
	if model.sessionID != "abc" {
		t.Errorf("expected sessionID 'abc', got '%s'", model.sessionID)
	}
	if model.backend != "oto" {
		t.Errorf("expected backend 'oto', got '%s'", model.backend)
	}

	// Empty fields leave values alone
	model.applyStatus(StatusMsg{State: "playing"})
	if model.source != "song.mid" {
		t.Errorf("expected source to be kept, got '%s'", model.source)
	}
	if model.state != "playing" {
		t.Errorf("expected state 'playing', got '%s'", model.state)
	}
}

func TestStatusMsgFormat(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{
		Codec:      "pcm",
		SampleRate: 44100,
		Channels:   2,
		BitDepth:   16,
	})

	if model.codec != "pcm" {
		t.Errorf("expected codec 'pcm', got '%s'", model.codec)
	}
	if model.sampleRate != 44100 {
		t.Errorf("expected sampleRate 44100, got %d", model.sampleRate)
	}
	if model.channels != 2 {
		t.Errorf("expected channels 2, got %d", model.channels)
	}
	if model.bitDepth != 16 {
		t.Errorf("expected bitDepth 16, got %d", model.bitDepth)
	}
}

func TestStatusMsgCounters(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Counters: &Counters{Chunks: 10, Blocks: 3, Underruns: 1}})
	if model.counters.Chunks != 10 || model.counters.Blocks != 3 || model.counters.Underruns != 1 {
		t.Errorf("unexpected counters: %+v", model.counters)
	}

	// A message without counters keeps the last snapshot
	model.applyStatus(StatusMsg{State: "draining"})
	if model.counters.Chunks != 10 {
		t.Errorf("expected counters to be kept, got %+v", model.counters)
	}
}

func TestStatusMsgError(t *testing.T) {
	model := NewModel(nil)

	model.applyStatus(StatusMsg{Err: "sink rejected block"})

	view := model.View()
	if !strings.Contains(view, "sink rejected block") {
		t.Error("expected error in view")
	}
}

func TestVolumeKeys(t *testing.T) {
	tests := []struct {
		name     string
		start    int
		key      tea.KeyType
		expected int
	}{
		{"up", 50, tea.KeyUp, 55},
		{"down", 50, tea.KeyDown, 45},
		{"up clamps", 98, tea.KeyUp, 100},
		{"down clamps", 3, tea.KeyDown, 0},
		{"up at max", 100, tea.KeyUp, 100},
		{"down at min", 0, tea.KeyDown, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := NewModel(nil)
			model.volume = tt.start

			updated, _ := model.Update(tea.KeyMsg{Type: tt.key})
			m := updated.(Model)

			if m.volume != tt.expected {
				t.Errorf("expected volume %d, got %d", tt.expected, m.volume)
			}
		})
	}
}

func TestVolumeKeySendsChange(t *testing.T) {
	ctrl := NewVolumeControl()
	model := NewModel(ctrl)

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyDown})
	updated, _ = updated.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'m'}})

	first := <-ctrl.Changes
	if first.Volume != 95 || first.Muted {
		t.Errorf("unexpected first change: %+v", first)
	}

	second := <-ctrl.Changes
	if second.Volume != 95 || !second.Muted {
		t.Errorf("unexpected second change: %+v", second)
	}

	if !updated.(Model).muted {
		t.Error("expected model muted")
	}
}

func TestDebugToggle(t *testing.T) {
	model := NewModel(nil)
	model.applyStatus(StatusMsg{Goroutines: 12, MemAlloc: 2 * 1024 * 1024})

	updated, _ := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'d'}})
	m := updated.(Model)

	if !m.showDebug {
		t.Fatal("expected debug enabled")
	}
	if !strings.Contains(m.View(), "Goroutines") {
		t.Error("expected debug section in view")
	}
}

func TestQuitKey(t *testing.T) {
	ctrl := NewVolumeControl()
	model := NewModel(ctrl)

	updated, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})

	if !updated.(Model).quitting {
		t.Error("expected quitting after q")
	}
	if cmd == nil {
		t.Error("expected quit command")
	}

	select {
	case <-ctrl.Quit:
	default:
		t.Error("expected quit signal on control channel")
	}
}

func TestViewScheduling(t *testing.T) {
	model := NewModel(nil)
	model.applyStatus(StatusMsg{
		Codec:        "pcm",
		SampleRate:   44100,
		Channels:     2,
		BitDepth:     16,
		Threshold:    8192,
		SafetyMargin: 50 * time.Millisecond,
		Tail:         "pad",
	})

	view := model.View()
	for _, want := range []string{"8192 frames", "(186ms)", "margin 50ms", "tail pad"} {
		if !strings.Contains(view, want) {
			t.Errorf("expected view to contain %q", want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value    int
		expected string
	}{
		{0, "░░░░░░░░░░"},
		{50, "█████░░░░░"},
		{100, "██████████"},
	}

	for _, tt := range tests {
		result := renderBar(tt.value, 100, 10)
		if result != tt.expected {
			t.Errorf("renderBar(%d): expected %q, got %q", tt.value, tt.expected, result)
		}
	}
}

func TestTruncate(t *testing.T) {
	if truncate("short", 10) != "short" {
		t.Error("expected short string unchanged")
	}
	if got := truncate("a very long source name", 10); got != "a very ..." {
		t.Errorf("expected 'a very ...', got '%s'", got)
	}
}

func TestFormatSeconds(t *testing.T) {
	if got := formatSeconds(1.26); got != "1.3s" {
		t.Errorf("expected 1.3s, got %s", got)
	}
}
