// ABOUTME: Producer wrapper that re-chunks and delays another producer's output
// ABOUTME: Simulates an engine delivering irregular sizes at irregular times
package engine

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/minibae/minibae-stream/pkg/audio"
)

// Jitter splits each chunk of the wrapped producer into random sizes and
// sleeps a random delay before each piece. Sample order is preserved.
type Jitter struct {
	Producer

	minFrames int
	maxFrames int
	maxDelay  time.Duration
	rng       *rand.Rand
}

// NewJitter wraps p. Piece sizes are drawn from [minFrames, maxFrames] and
// delays from [0, maxDelay]. The same seed gives the same split.
func NewJitter(p Producer, minFrames, maxFrames int, maxDelay time.Duration, seed uint64) (*Jitter, error) {
	if minFrames < 1 || maxFrames < minFrames {
		return nil, fmt.Errorf("invalid jitter range [%d, %d]", minFrames, maxFrames)
	}
	if maxDelay < 0 {
		return nil, fmt.Errorf("negative jitter delay: %v", maxDelay)
	}
	return &Jitter{
		Producer:  p,
		minFrames: minFrames,
		maxFrames: maxFrames,
		maxDelay:  maxDelay,
		rng:       rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}, nil
}

// Run re-chunks the wrapped producer's output
func (j *Jitter) Run(ctx context.Context, emit ChunkFunc) error {
	return j.Producer.Run(ctx, func(chunk audio.Chunk) error {
		samples := chunk.Samples
		for len(samples) > 0 {
			n := min(j.pieceFrames()*audio.Channels, len(samples))
			piece := audio.Chunk{Samples: samples[:n:n]}
			samples = samples[n:]

			if err := j.sleep(ctx); err != nil {
				return err
			}
			if err := emit(piece); err != nil {
				return err
			}
		}
		return nil
	})
}

func (j *Jitter) pieceFrames() int {
	return j.minFrames + j.rng.IntN(j.maxFrames-j.minFrames+1)
}

func (j *Jitter) sleep(ctx context.Context) error {
	if j.maxDelay == 0 {
		return nil
	}
	delay := time.Duration(j.rng.Int64N(int64(j.maxDelay) + 1))

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
