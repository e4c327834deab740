// ABOUTME: Sample-accurate block timeline shared by device backends
// ABOUTME: Renders scheduled blocks at their start frames, silence in between
package output

import (
	"container/heap"
	"encoding/binary"
	"errors"
	"log"
	"math"
	"sync"

	"github.com/minibae/minibae-stream/pkg/playback"
)

var (
	// ErrClosed is returned when scheduling on a closed output
	ErrClosed = errors.New("output closed")

	// ErrNotOpen is returned when scheduling before the device is opened
	ErrNotOpen = errors.New("output not initialized")
)

// bytesPerFrame is one interleaved stereo float32 frame
const bytesPerFrame = 8

// Stats tracks timeline metrics
type Stats struct {
	Scheduled int64
	Played    int64
	Dropped   int64 // blocks whose whole span had passed before rendering reached them
	Pending   int
	Position  float64
}

// Timeline holds blocks waiting to be rendered and the device clock. The
// device thread pulls audio with Read/Render; the scheduler pushes blocks
// from the producer goroutine.
type Timeline struct {
	mu         sync.Mutex
	sampleRate int
	position   int64 // frames rendered so far
	pending    *blockQueue
	volume     int
	muted      bool
	closed     bool
	scratch    []float32

	stats Stats
}

// NewTimeline creates a timeline; a zero sample rate leaves it unopened
func NewTimeline(sampleRate int) *Timeline {
	q := &blockQueue{}
	heap.Init(q)

	return &Timeline{
		sampleRate: sampleRate,
		pending:    q,
		volume:     100,
	}
}

// open (re)binds the timeline to a device rate. The clock keeps its time
// across a reopen; only pending blocks are discarded.
func (t *Timeline) open(sampleRate int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sampleRate > 0 && t.sampleRate != sampleRate {
		// rounded up so the converted clock is never earlier
		t.position = int64(math.Ceil(float64(t.position) * float64(sampleRate) / float64(t.sampleRate)))
	}
	t.sampleRate = sampleRate
	t.closed = false
	t.pending.items = t.pending.items[:0]
}

// CurrentTime returns the device clock: the time of the next frame to render
func (t *Timeline) CurrentTime() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sampleRate == 0 {
		return 0
	}
	return float64(t.position) / float64(t.sampleRate)
}

// Schedule queues block to begin at startTime seconds on the device clock
func (t *Timeline) Schedule(block *playback.Block, startTime float64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrClosed
	}
	if t.sampleRate == 0 {
		return ErrNotOpen
	}
	if block.SampleRate != t.sampleRate {
		log.Printf("Warning: block rate %dHz differs from device rate %dHz", block.SampleRate, t.sampleRate)
	}

	heap.Push(t.pending, &pendingBlock{
		block:      block,
		startFrame: int64(math.Round(startTime * float64(t.sampleRate))),
	})
	t.stats.Scheduled++

	return nil
}

// Render fills out with interleaved stereo frames and advances the clock
func (t *Timeline) Render(out []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.render(out)
}

// render does the work of Render (must hold t.mu)
func (t *Timeline) render(out []float32) {
	gain := float32(getVolumeMultiplier(t.volume, t.muted))
	frames := len(out) / 2

	for i := 0; i < frames; i++ {
		pos := t.position + int64(i)
		var l, r float32

		for t.pending.Len() > 0 {
			pb := t.pending.Peek()
			idx := pos - pb.startFrame
			if idx < 0 {
				break
			}
			if idx >= int64(pb.block.Frames()) {
				t.release(heap.Pop(t.pending).(*pendingBlock))
				continue
			}
			l = pb.block.Left[idx] * gain
			r = pb.block.Right[idx] * gain
			pb.rendered++
			break
		}

		out[2*i] = l
		out[2*i+1] = r
	}

	// Zero any trailing half frame
	for i := frames * 2; i < len(out); i++ {
		out[i] = 0
	}

	t.position += int64(frames)
}

// release retires a block once the clock has passed its end (must hold t.mu)
func (t *Timeline) release(pb *pendingBlock) {
	if pb.rendered == 0 {
		t.stats.Dropped++
		if t.stats.Dropped <= 5 {
			log.Printf("Dropped late block: start frame %d, device at frame %d", pb.startFrame, t.position)
		}
		return
	}
	t.stats.Played++
}

// Read renders float32 little-endian stereo into p. It always fills p.
func (t *Timeline) Read(p []byte) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	frames := len(p) / bytesPerFrame
	if cap(t.scratch) < frames*2 {
		t.scratch = make([]float32, frames*2)
	}
	samples := t.scratch[:frames*2]
	t.render(samples)

	for i, s := range samples {
		binary.LittleEndian.PutUint32(p[i*4:], math.Float32bits(s))
	}
	for i := frames * bytesPerFrame; i < len(p); i++ {
		p[i] = 0
	}

	return len(p), nil
}

// Pending returns the number of blocks not yet fully rendered
func (t *Timeline) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending.Len()
}

// Stats returns timeline statistics
func (t *Timeline) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.stats
	s.Pending = t.pending.Len()
	if t.sampleRate > 0 {
		s.Position = float64(t.position) / float64(t.sampleRate)
	}
	return s
}

// shutdown rejects further blocks and discards pending ones
func (t *Timeline) shutdown() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	t.pending.items = t.pending.items[:0]
}

// SetVolume sets the volume (0-100)
func (t *Timeline) SetVolume(volume int) {
	if volume < 0 {
		volume = 0
	}
	if volume > 100 {
		volume = 100
	}

	t.mu.Lock()
	t.volume = volume
	t.mu.Unlock()

	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (t *Timeline) SetMuted(muted bool) {
	t.mu.Lock()
	t.muted = muted
	t.mu.Unlock()

	log.Printf("Muted: %v", muted)
}

// GetVolume returns current volume
func (t *Timeline) GetVolume() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.volume
}

// IsMuted returns mute state
func (t *Timeline) IsMuted() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.muted
}

// getVolumeMultiplier calculates volume multiplier
func getVolumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0.0
	}
	return float64(volume) / 100.0
}

type pendingBlock struct {
	block      *playback.Block
	startFrame int64
	rendered   int
}

// blockQueue is a min-heap of pending blocks ordered by start frame
type blockQueue struct {
	items []*pendingBlock
}

// Implement heap.Interface
func (q *blockQueue) Len() int { return len(q.items) }

func (q *blockQueue) Less(i, j int) bool {
	return q.items[i].startFrame < q.items[j].startFrame
}

func (q *blockQueue) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
}

func (q *blockQueue) Push(x interface{}) {
	q.items = append(q.items, x.(*pendingBlock))
}

func (q *blockQueue) Pop() interface{} {
	n := len(q.items)
	item := q.items[n-1]
	q.items[n-1] = nil
	q.items = q.items[:n-1]
	return item
}

func (q *blockQueue) Peek() *pendingBlock {
	return q.items[0]
}
