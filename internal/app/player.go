// ABOUTME: Main player application orchestration
// ABOUTME: Coordinates producer, playback session and output device
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/minibae/minibae-stream/internal/discovery"
	"github.com/minibae/minibae-stream/pkg/audio/output"
	"github.com/minibae/minibae-stream/pkg/engine"
	"github.com/minibae/minibae-stream/pkg/playback"
)

const (
	// DefaultDiscoverTimeout bounds the wait for a feed on the network
	DefaultDiscoverTimeout = 10 * time.Second

	// playoutPoll is how often the player checks whether the device caught up
	playoutPoll = 50 * time.Millisecond
)

// Player states
const (
	StateIdle     = "idle"
	StatePlaying  = "playing"
	StateDraining = "draining"
	StateFinished = "finished"
	StateStopped  = "stopped"
	StateFailed   = "error"
)

// JitterConfig enables the chunk jitter wrapper when MaxFrames is set
type JitterConfig struct {
	MinFrames int
	MaxFrames int
	MaxDelay  time.Duration
	Seed      uint64
}

// Config holds player configuration
type Config struct {
	Engine          engine.Args
	Playback        playback.Config
	Backend         string
	Volume          int
	Discover        bool
	DiscoverTimeout time.Duration
	Lead            time.Duration
	Jitter          JitterConfig
}

// Stats combines session and device statistics
type Stats struct {
	State   string
	Session playback.Stats
	Output  output.Stats
}

// Player streams one input through a playback session onto a device
type Player struct {
	config Config

	// Replaced in tests
	openProducer func(engine.Args) (engine.Producer, error)
	openOutput   func(string) (output.Output, error)
	discover     func(context.Context) (*discovery.FeedInfo, error)

	mu       sync.Mutex
	state    string
	source   string
	producer engine.Producer
	output   output.Output
	session  *playback.Session
}

// New creates a new player
func New(config Config) *Player {
	if config.Volume == 0 {
		config.Volume = 100
	}
	if config.DiscoverTimeout == 0 {
		config.DiscoverTimeout = DefaultDiscoverTimeout
	}
	if config.Lead == 0 {
		config.Lead = engine.DefaultLead
	}

	return &Player{
		config:       config,
		openProducer: engine.Open,
		openOutput:   output.New,
		discover:     discovery.Discover,
		state:        StateIdle,
	}
}

// Start resolves the input, opens the producer and the device, and creates
// the session. Play then streams the input.
func (p *Player) Start(ctx context.Context) error {
	args := p.config.Engine

	if args.Input == "" && p.config.Discover {
		dctx, cancel := context.WithTimeout(ctx, p.config.DiscoverTimeout)
		defer cancel()

		log.Printf("Searching for a chunk feed...")
		feed, err := p.discover(dctx)
		if err != nil {
			return fmt.Errorf("feed discovery failed: %w", err)
		}
		args.Input = feed.URL()
		log.Printf("Discovered feed %s at %s", feed.Name, args.Input)
	}

	producer, err := p.openProducer(args)
	if err != nil {
		return fmt.Errorf("failed to open input: %w", err)
	}

	format := producer.Format()
	log.Printf("Input format: %s %dHz %dch %d-bit", format.Codec, format.SampleRate, format.Channels, format.BitDepth)

	cfg := p.config.Playback
	if cfg.SampleRate == 0 {
		cfg.SampleRate = format.SampleRate
	}
	if cfg.SampleRate != format.SampleRate {
		_ = producer.Close()
		return fmt.Errorf("input rate %dHz does not match playback rate %dHz", format.SampleRate, cfg.SampleRate)
	}

	producer, err = p.wrap(producer)
	if err != nil {
		_ = producer.Close()
		return err
	}

	out, err := p.openOutput(p.config.Backend)
	if err != nil {
		_ = producer.Close()
		return err
	}
	if err := out.Open(cfg.SampleRate); err != nil {
		_ = producer.Close()
		return fmt.Errorf("failed to open output: %w", err)
	}
	out.SetVolume(p.config.Volume)

	session, err := playback.NewSession(out, cfg)
	if err != nil {
		_ = out.Close()
		_ = producer.Close()
		return err
	}

	p.mu.Lock()
	p.source = args.Input
	p.producer = producer
	p.output = out
	p.session = session
	p.mu.Unlock()

	return nil
}

// wrap applies pacing and jitter. Feeds are paced by their server already.
func (p *Player) wrap(producer engine.Producer) (engine.Producer, error) {
	if _, live := producer.(*engine.WebSocket); !live {
		producer = engine.NewRealtime(producer, p.config.Lead)
	}

	j := p.config.Jitter
	if j.MaxFrames > 0 {
		jittered, err := engine.NewJitter(producer, j.MinFrames, j.MaxFrames, j.MaxDelay, j.Seed)
		if err != nil {
			return producer, fmt.Errorf("invalid jitter settings: %w", err)
		}
		log.Printf("Jitter enabled: %d-%d frames, up to %v delay", j.MinFrames, j.MaxFrames, j.MaxDelay)
		producer = jittered
	}

	return producer, nil
}

// Play streams chunks into the session until the input ends, then flushes
// the tail and waits for the device to play everything out. Cancelling ctx
// stops submission; it is not an error.
func (p *Player) Play(ctx context.Context) error {
	p.mu.Lock()
	producer, session := p.producer, p.session
	p.mu.Unlock()

	if session == nil {
		return errors.New("player not started")
	}

	p.setState(StatePlaying)
	err := producer.Run(ctx, session.HandleChunk)

	switch {
	case ctx.Err() != nil:
		p.setState(StateStopped)
		return nil
	case err != nil:
		p.setState(StateFailed)
		return err
	}

	if err := session.Finish(); err != nil {
		p.setState(StateFailed)
		return err
	}

	p.setState(StateDraining)
	if err := p.waitPlayout(ctx); err != nil {
		p.setState(StateStopped)
		return nil
	}

	stats := session.Stats()
	log.Printf("Playback finished: %d chunks, %d blocks, %d underruns, %d malformed",
		stats.Chunks, stats.Blocks, stats.Underruns, stats.Malformed)
	p.setState(StateFinished)
	return nil
}

// waitPlayout blocks until the device clock reaches the end of the schedule
func (p *Player) waitPlayout(ctx context.Context) error {
	end := p.session.PlayoutEnd()

	ticker := time.NewTicker(playoutPoll)
	defer ticker.Stop()

	for p.output.CurrentTime() < end {
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// SetVolume sets output volume
func (p *Player) SetVolume(volume int) {
	p.mu.Lock()
	out := p.output
	p.mu.Unlock()

	if out != nil {
		out.SetVolume(volume)
	}
}

// Mute sets mute state
func (p *Player) Mute(muted bool) {
	p.mu.Lock()
	out := p.output
	p.mu.Unlock()

	if out != nil {
		out.SetMuted(muted)
	}
}

// Source returns the resolved input
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source
}

// Session returns the playback session, nil before Start
func (p *Player) Session() *playback.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session
}

// State returns the player state
func (p *Player) State() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Player) setState(state string) {
	p.mu.Lock()
	p.state = state
	p.mu.Unlock()
	log.Printf("Player state: %s", state)
}

// Stats returns current statistics
func (p *Player) Stats() Stats {
	p.mu.Lock()
	state, session, out := p.state, p.session, p.output
	p.mu.Unlock()

	stats := Stats{State: state}
	if session != nil {
		stats.Session = session.Stats()
	}
	if out != nil {
		stats.Output = out.Stats()
	}
	return stats
}

// Close stops the producer and releases the device
func (p *Player) Close() error {
	p.mu.Lock()
	producer, out := p.producer, p.output
	p.mu.Unlock()

	var errs []error
	if producer != nil {
		if err := producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer: %w", err))
		}
	}
	if out != nil {
		if err := out.Close(); err != nil {
			errs = append(errs, fmt.Errorf("output: %w", err))
		}
	}
	return errors.Join(errs...)
}
