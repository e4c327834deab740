// ABOUTME: Producer wrapper that holds delivery to wall-clock speed
// ABOUTME: Lets faster-than-realtime sources run at most a fixed lead ahead
package engine

import (
	"context"
	"time"

	"github.com/minibae/minibae-stream/pkg/audio"
)

// DefaultLead is how far a paced producer may run ahead of real time
const DefaultLead = 2 * time.Second

// Realtime delivers the wrapped producer's chunks no faster than real time
// plus Lead. File decoders and playbae writing to a pipe render much faster
// than they play.
type Realtime struct {
	Producer
	Lead time.Duration

	now func() time.Time
}

// NewRealtime wraps p
func NewRealtime(p Producer, lead time.Duration) *Realtime {
	return &Realtime{Producer: p, Lead: lead, now: time.Now}
}

// Run delivers chunks and sleeps whenever delivery gets more than Lead ahead
func (r *Realtime) Run(ctx context.Context, emit ChunkFunc) error {
	rate := float64(r.Format().SampleRate)
	start := r.now()
	var frames int64

	return r.Producer.Run(ctx, func(chunk audio.Chunk) error {
		if err := emit(chunk); err != nil {
			return err
		}
		frames += int64(chunk.Frames())

		produced := time.Duration(float64(frames) / rate * float64(time.Second))
		ahead := produced - r.now().Sub(start) - r.Lead
		if ahead <= 0 {
			return nil
		}

		timer := time.NewTimer(ahead)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			return nil
		}
	})
}
