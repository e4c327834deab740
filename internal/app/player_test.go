// ABOUTME: Tests for player application orchestration
// ABOUTME: Runs producers through a session onto a fast-running fake device
package app

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/minibae/minibae-stream/internal/discovery"
	"github.com/minibae/minibae-stream/pkg/audio"
	"github.com/minibae/minibae-stream/pkg/audio/output"
	"github.com/minibae/minibae-stream/pkg/engine"
	"github.com/minibae/minibae-stream/pkg/playback"
)

var errDeviceGone = errors.New("device gone")

// fakeDevice renders its timeline on a ticker much faster than real time
type fakeDevice struct {
	*output.Timeline

	rejectAfter int64 // reject blocks once this many were accepted; 0 never
	accepted    atomic.Int64
	opened      atomic.Bool
	closeOnce   sync.Once
	done        chan struct{}
}

func newFakeDevice(rate int) *fakeDevice {
	return &fakeDevice{
		Timeline: output.NewTimeline(rate),
		done:     make(chan struct{}),
	}
}

func (d *fakeDevice) Open(sampleRate int) error {
	d.opened.Store(true)
	go func() {
		buf := make([]float32, 2048)
		ticker := time.NewTicker(time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-d.done:
				return
			case <-ticker.C:
				d.Render(buf)
			}
		}
	}()
	return nil
}

func (d *fakeDevice) Schedule(block *playback.Block, startTime float64) error {
	if d.rejectAfter > 0 && d.accepted.Load() >= d.rejectAfter {
		return errDeviceGone
	}
	d.accepted.Add(1)
	return d.Timeline.Schedule(block, startTime)
}

func (d *fakeDevice) Close() error {
	d.closeOnce.Do(func() { close(d.done) })
	return nil
}

func newTestPlayer(config Config, producer engine.Producer, device *fakeDevice) *Player {
	p := New(config)
	p.openProducer = func(engine.Args) (engine.Producer, error) { return producer, nil }
	p.openOutput = func(string) (output.Output, error) { return device, nil }
	return p
}

func shortTone(d time.Duration) *engine.Tone {
	tone := engine.NewTone(engine.DefaultToneFrequency, audio.DefaultSampleRate)
	tone.Duration = d
	return tone
}

func TestNewPlayer(t *testing.T) {
	player := New(Config{Backend: "oto"})

	if player == nil {
		t.Fatal("expected player to be created")
	}

	if player.config.Volume != 100 {
		t.Errorf("expected default volume 100, got %d", player.config.Volume)
	}

	if player.config.DiscoverTimeout != DefaultDiscoverTimeout {
		t.Errorf("expected discover timeout %v, got %v", DefaultDiscoverTimeout, player.config.DiscoverTimeout)
	}

	if player.config.Lead != engine.DefaultLead {
		t.Errorf("expected lead %v, got %v", engine.DefaultLead, player.config.Lead)
	}

	if player.State() != StateIdle {
		t.Errorf("expected initial state '%s', got '%s'", StateIdle, player.State())
	}
}

func TestPlayNotStarted(t *testing.T) {
	player := New(Config{})

	if err := player.Play(context.Background()); err == nil {
		t.Error("expected error playing before Start")
	}
}

func TestPlayToneToEnd(t *testing.T) {
	device := newFakeDevice(audio.DefaultSampleRate)
	config := Config{
		Volume:   80,
		Playback: playback.Config{Threshold: 4096},
	}
	player := newTestPlayer(config, shortTone(500*time.Millisecond), device)
	defer player.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := player.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !device.opened.Load() {
		t.Fatal("expected device to be opened")
	}
	if device.GetVolume() != 80 {
		t.Errorf("expected volume 80, got %d", device.GetVolume())
	}

	if err := player.Play(ctx); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	if player.State() != StateFinished {
		t.Errorf("expected state %s, got %s", StateFinished, player.State())
	}

	stats := player.Stats()
	if stats.Session.FramesIn != 22050 {
		t.Errorf("expected 22050 frames in, got %d", stats.Session.FramesIn)
	}

	// 5 full blocks plus the padded tail
	if stats.Session.Blocks != 6 {
		t.Errorf("expected 6 blocks, got %d", stats.Session.Blocks)
	}
	if stats.Output.Scheduled != 6 {
		t.Errorf("expected device to receive 6 blocks, got %d", stats.Output.Scheduled)
	}

	if device.CurrentTime() < player.Session().PlayoutEnd() {
		t.Error("Play returned before the device reached the end of the schedule")
	}
}

func TestPlayWithJitter(t *testing.T) {
	device := newFakeDevice(audio.DefaultSampleRate)
	config := Config{
		Playback: playback.Config{Threshold: 1000, Tail: playback.TailShort},
		Jitter:   JitterConfig{MinFrames: 1, MaxFrames: 300, Seed: 7},
	}
	player := newTestPlayer(config, shortTone(200*time.Millisecond), device)
	defer player.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := player.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := player.Play(ctx); err != nil {
		t.Fatalf("Play failed: %v", err)
	}

	stats := player.Stats().Session
	if stats.FramesIn != 8820 {
		t.Errorf("expected 8820 frames in, got %d", stats.FramesIn)
	}
	if stats.FramesOut != 8820 {
		t.Errorf("expected every frame scheduled with a short tail, got %d", stats.FramesOut)
	}
	if stats.Chunks <= 8820/1024 {
		t.Errorf("expected jitter to split chunks, got %d chunks", stats.Chunks)
	}
}

func TestInvalidJitter(t *testing.T) {
	device := newFakeDevice(audio.DefaultSampleRate)
	config := Config{Jitter: JitterConfig{MinFrames: 10, MaxFrames: 5}}
	player := newTestPlayer(config, shortTone(time.Second), device)

	if err := player.Start(context.Background()); err == nil {
		t.Error("expected error for inverted jitter range")
	}
}

func TestRateMismatch(t *testing.T) {
	device := newFakeDevice(48000)
	config := Config{Playback: playback.Config{SampleRate: 48000}}
	player := newTestPlayer(config, shortTone(time.Second), device)

	if err := player.Start(context.Background()); err == nil {
		t.Error("expected error when input rate differs from playback rate")
	}
	if device.opened.Load() {
		t.Error("device should not be opened on rate mismatch")
	}
}

func TestPlayStopsOnCancel(t *testing.T) {
	device := newFakeDevice(audio.DefaultSampleRate)
	player := newTestPlayer(Config{}, shortTone(0), device)
	defer player.Close()

	ctx, cancel := context.WithCancel(context.Background())

	if err := player.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	go func() {
		time.Sleep(100 * time.Millisecond)
		cancel()
	}()

	if err := player.Play(ctx); err != nil {
		t.Errorf("expected nil error on cancel, got %v", err)
	}
	if player.State() != StateStopped {
		t.Errorf("expected state %s, got %s", StateStopped, player.State())
	}
}

func TestPlayFailsWhenDeviceRejects(t *testing.T) {
	device := newFakeDevice(audio.DefaultSampleRate)
	device.rejectAfter = 2
	config := Config{Playback: playback.Config{Threshold: 1024}}
	player := newTestPlayer(config, shortTone(time.Second), device)
	defer player.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := player.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	err := player.Play(ctx)
	if !errors.Is(err, playback.ErrSinkRejected) {
		t.Fatalf("expected ErrSinkRejected, got %v", err)
	}
	if !errors.Is(err, errDeviceGone) {
		t.Errorf("expected device error to be wrapped, got %v", err)
	}
	if player.State() != StateFailed {
		t.Errorf("expected state %s, got %s", StateFailed, player.State())
	}
}

func TestStartDiscoversFeed(t *testing.T) {
	device := newFakeDevice(audio.DefaultSampleRate)
	player := New(Config{Discover: true})

	feed := &discovery.FeedInfo{Name: "studio", Host: "127.0.0.1", Port: 8930, Path: "/feed"}
	player.discover = func(context.Context) (*discovery.FeedInfo, error) { return feed, nil }

	var opened string
	player.openProducer = func(args engine.Args) (engine.Producer, error) {
		opened = args.Input
		return shortTone(time.Second), nil
	}
	player.openOutput = func(string) (output.Output, error) { return device, nil }
	defer player.Close()

	if err := player.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if opened != "ws://127.0.0.1:8930/feed" {
		t.Errorf("expected producer opened on feed URL, got %q", opened)
	}
	if player.Source() != opened {
		t.Errorf("expected source %q, got %q", opened, player.Source())
	}
}

func TestStartDiscoveryFails(t *testing.T) {
	player := New(Config{Discover: true})
	player.discover = func(context.Context) (*discovery.FeedInfo, error) {
		return nil, context.DeadlineExceeded
	}

	err := player.Start(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected discovery error, got %v", err)
	}
}

func TestVolumeAndMute(t *testing.T) {
	device := newFakeDevice(audio.DefaultSampleRate)
	player := newTestPlayer(Config{}, shortTone(time.Second), device)
	defer player.Close()

	// Before Start these are no-ops
	player.SetVolume(10)
	player.Mute(true)

	if err := player.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	player.SetVolume(40)
	player.Mute(true)

	if device.GetVolume() != 40 {
		t.Errorf("expected volume 40, got %d", device.GetVolume())
	}
	if !device.IsMuted() {
		t.Error("expected device muted")
	}
}
