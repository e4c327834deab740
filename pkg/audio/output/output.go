// ABOUTME: Audio output interface definition
// ABOUTME: Common interface for device backends that play scheduled blocks
package output

import (
	"fmt"
	"strings"

	"github.com/minibae/minibae-stream/pkg/playback"
)

// Output is a playback device that accepts blocks scheduled on its clock
type Output interface {
	playback.Sink

	// Open initializes the device at the given rate (always stereo)
	Open(sampleRate int) error

	// SetVolume sets the volume (0-100)
	SetVolume(volume int)

	// SetMuted sets mute state
	SetMuted(muted bool)

	// GetVolume returns current volume
	GetVolume() int

	// IsMuted returns mute state
	IsMuted() bool

	// Stats returns timeline statistics
	Stats() Stats

	// Close releases output resources; later Schedule calls fail
	Close() error
}

// Backends lists the supported backend names
var Backends = []string{"oto", "malgo"}

// New creates an output for the named backend
func New(backend string) (Output, error) {
	switch strings.ToLower(backend) {
	case "", "oto":
		return NewOto(), nil
	case "malgo", "miniaudio":
		return NewMalgo(), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %q (supported: %s)", backend, strings.Join(Backends, ", "))
	}
}
