// ABOUTME: Playback session configuration
// ABOUTME: Sample rate, block threshold, resync margin and tail handling
package playback

import (
	"fmt"
	"strings"
	"time"

	"github.com/minibae/minibae-stream/pkg/audio"
)

const (
	// DefaultThreshold is the number of frames per playback block
	DefaultThreshold = 8192

	// DefaultSafetyMargin is the lookahead used when resynchronizing after an underrun
	DefaultSafetyMargin = 50 * time.Millisecond
)

// TailPolicy selects what happens to frames left below the threshold at session end
type TailPolicy int

const (
	// TailPad zero-pads the tail to a full block
	TailPad TailPolicy = iota
	// TailDrop discards the tail
	TailDrop
	// TailShort schedules the tail as a short block
	TailShort
)

func (p TailPolicy) String() string {
	switch p {
	case TailPad:
		return "pad"
	case TailDrop:
		return "drop"
	case TailShort:
		return "short"
	default:
		return fmt.Sprintf("TailPolicy(%d)", int(p))
	}
}

// ParseTailPolicy parses "pad", "drop" or "short"
func ParseTailPolicy(s string) (TailPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pad", "":
		return TailPad, nil
	case "drop":
		return TailDrop, nil
	case "short":
		return TailShort, nil
	default:
		return TailPad, fmt.Errorf("unknown tail policy: %q (supported: pad, drop, short)", s)
	}
}

// Config holds session configuration. Zero values are replaced with defaults.
type Config struct {
	// SampleRate is the rate of both the producer and the output device
	SampleRate int

	// Threshold is the number of frames buffered before a block is scheduled
	Threshold int

	// SafetyMargin is added to the device clock when resynchronizing
	SafetyMargin time.Duration

	// Tail selects how the final partial block is flushed
	Tail TailPolicy
}

// DefaultConfig returns the configuration used by the web player
func DefaultConfig() Config {
	return Config{
		SampleRate:   audio.DefaultSampleRate,
		Threshold:    DefaultThreshold,
		SafetyMargin: DefaultSafetyMargin,
		Tail:         TailPad,
	}
}

// withDefaults fills unset fields
func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = audio.DefaultSampleRate
	}
	if c.Threshold == 0 {
		c.Threshold = DefaultThreshold
	}
	if c.SafetyMargin == 0 {
		c.SafetyMargin = DefaultSafetyMargin
	}
	return c
}

// Validate checks the configuration after defaults are applied
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("invalid sample rate: %d", c.SampleRate)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("invalid threshold: %d frames", c.Threshold)
	}
	if c.SafetyMargin < 0 {
		return fmt.Errorf("invalid safety margin: %v", c.SafetyMargin)
	}
	switch c.Tail {
	case TailPad, TailDrop, TailShort:
	default:
		return fmt.Errorf("invalid tail policy: %v", c.Tail)
	}
	return nil
}

// BlockDuration returns the playback length of one full block
func (c Config) BlockDuration() time.Duration {
	return time.Duration(float64(c.Threshold) / float64(c.SampleRate) * float64(time.Second))
}
