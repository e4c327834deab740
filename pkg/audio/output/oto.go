// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams the block timeline to the device as float32 stereo using oto
package output

import (
	"fmt"
	"log"
	"time"

	"github.com/ebitengine/oto/v3"
)

// otoBufferSize keeps the device read-ahead well under the resync margin
const otoBufferSize = 20 * time.Millisecond

// Oto output implementation using oto library
type Oto struct {
	*Timeline

	otoCtx     *oto.Context
	player     *oto.Player
	sampleRate int
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{
		Timeline: NewTimeline(0),
	}
}

// Open initializes the output device
func (o *Oto) Open(sampleRate int) error {
	// If already initialized with same format, reuse the existing context
	if o.otoCtx != nil && o.sampleRate == sampleRate {
		log.Printf("Audio output already initialized with same format, reusing context")
		o.Timeline.open(sampleRate)
		return nil
	}

	// oto only allows one context per process
	if o.otoCtx != nil {
		return fmt.Errorf("oto cannot reinitialize at %dHz (device opened at %dHz)", sampleRate, o.sampleRate)
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
		BufferSize:   otoBufferSize,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}

	<-readyChan

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.Timeline.open(sampleRate)

	// Persistent player pulling rendered frames from the timeline
	o.player = o.otoCtx.NewPlayer(o.Timeline)
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, 2 channels (oto)", sampleRate)

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.Timeline.shutdown()

	if o.player != nil {
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	if o.otoCtx != nil {
		if err := o.otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
	return nil
}
