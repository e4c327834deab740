// ABOUTME: Command line builder for the playbae synthesis engine
// ABOUTME: Maps player options onto playbae flags and validates their ranges
package engine

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	// DefaultVolume is the engine volume in percent the web player used
	DefaultVolume = 255

	// DefaultTimeLimit caps MIDI playback in seconds
	DefaultTimeLimit = 1200

	// DefaultPatches is the bank file loaded when no custom bank is given
	DefaultPatches = "patches.hsb"

	// MaxReverb is the highest reverb preset playbae accepts
	MaxReverb = 11
)

// ErrNoInput is returned when no input path was configured
var ErrNoInput = errors.New("no input file")

// typeFlags maps a declared input type to the playbae flag that loads it.
// Anything else is handed to -f and playbae sniffs the file itself.
var typeFlags = map[string]string{
	"wav": "-w",
	"aif": "-a",
	"rmf": "-r",
	"mid": "-m",
}

// Args describes one engine invocation
type Args struct {
	Binary  string // playbae executable; resolved from the environment when empty
	Input   string // file to play
	Type    string // wav, aif, rmf, mid or empty for autodetect
	Patches string // custom patch bank; DefaultPatches when empty
	Output  string // playbae output target

	Volume    int // percent; DefaultVolume when zero
	TimeLimit int // seconds; DefaultTimeLimit when zero, negative for no limit
	MixerRate int // Hz; engine default when zero
	Loops     int
	Reverb    int // preset 0..MaxReverb; 0 keeps the engine default
	Mute      []int
	NoFade    bool
	Quiet     bool
}

// Validate checks option ranges before a process is started
func (a Args) Validate() error {
	if a.Input == "" {
		return ErrNoInput
	}
	if a.Volume < 0 {
		return fmt.Errorf("volume must be non-negative, got %d", a.Volume)
	}
	if a.Reverb < 0 || a.Reverb > MaxReverb {
		return fmt.Errorf("reverb preset must be 0-%d, got %d", MaxReverb, a.Reverb)
	}
	if a.MixerRate < 0 {
		return fmt.Errorf("mixer rate must be non-negative, got %d", a.MixerRate)
	}
	if a.Loops < 0 {
		return fmt.Errorf("loop count must be non-negative, got %d", a.Loops)
	}
	for _, ch := range a.Mute {
		if ch < 1 || ch > 16 {
			return fmt.Errorf("muted MIDI channel must be 1-16, got %d", ch)
		}
	}
	return nil
}

// TypeFlag returns the playbae flag that loads the input
func (a Args) TypeFlag() string {
	if flag, ok := typeFlags[strings.ToLower(a.Type)]; ok {
		return flag
	}
	return "-f"
}

// Build returns the playbae argument list in the order the engine expects
func (a Args) Build() []string {
	volume := a.Volume
	if volume == 0 {
		volume = DefaultVolume
	}
	limit := a.TimeLimit
	switch {
	case limit == 0:
		limit = DefaultTimeLimit
	case limit < 0:
		limit = 0
	}

	args := []string{"-v", strconv.Itoa(volume), "-t", strconv.Itoa(limit)}

	if a.Quiet {
		args = append(args, "-q")
	}
	if a.MixerRate > 0 {
		args = append(args, "-mr", strconv.Itoa(a.MixerRate))
	}
	if a.Loops > 0 {
		args = append(args, "-l", strconv.Itoa(a.Loops))
	}
	if a.Reverb > 0 {
		args = append(args, "-rv", strconv.Itoa(a.Reverb))
	}
	if len(a.Mute) > 0 {
		channels := make([]string, len(a.Mute))
		for i, ch := range a.Mute {
			channels[i] = strconv.Itoa(ch)
		}
		args = append(args, "-mc", strings.Join(channels, ","))
	}
	if a.NoFade {
		args = append(args, "-nf")
	}

	patches := a.Patches
	if patches == "" {
		patches = DefaultPatches
	}
	args = append(args, "-p", patches)

	args = append(args, a.TypeFlag(), a.Input)

	output := a.Output
	if output == "" {
		output = "null"
	}
	args = append(args, "-o", output)

	return args
}

// DetectType derives the engine type from the input extension.
// Unknown extensions return an empty type so playbae autodetects.
func DetectType(path string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch ext {
	case "wav", "aif", "rmf", "mid":
		return ext
	case "aiff":
		return "aif"
	case "midi", "kar":
		return "mid"
	}
	return ""
}
