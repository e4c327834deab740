// ABOUTME: Playback session tying the streaming buffer to the scheduler
// ABOUTME: One session per playback request, fed synchronously from the producer callback
package playback

import (
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/minibae/minibae-stream/pkg/audio"
	"github.com/minibae/minibae-stream/pkg/stream"
)

// Stats contains session statistics
type Stats struct {
	SessionID      string
	Chunks         int64
	FramesIn       int64
	Malformed      int64
	Blocks         int64
	FramesOut      int64
	TailFrames     int64
	Underruns      int64
	BufferedFrames int
	NextStartTime  float64
	LeadTime       float64 // seconds of audio scheduled ahead of the device clock
}

// Session accumulates producer chunks and schedules full blocks on a sink.
// Each delivered chunk is handled as one step: deinterleave, append, then
// schedule every block that became available.
type Session struct {
	mu sync.Mutex

	id        string
	config    Config
	sink      Sink
	buffer    *stream.Buffer
	scheduler *Scheduler

	chunks     int64
	framesIn   int64
	malformed  int64
	framesOut  int64
	tailFrames int64

	finished bool
	err      error
}

// NewSession creates a session writing to sink
func NewSession(sink Sink, config Config) (*Session, error) {
	if sink == nil {
		return nil, errors.New("session requires a sink")
	}

	config = config.withDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session config: %w", err)
	}

	buffer, err := stream.NewBuffer(config.Threshold)
	if err != nil {
		return nil, err
	}

	s := &Session{
		id:        uuid.New().String(),
		config:    config,
		sink:      sink,
		buffer:    buffer,
		scheduler: NewScheduler(sink, config.SafetyMargin),
	}

	log.Printf("Session %s: %dHz, threshold=%d frames (%v), margin=%v, tail=%v",
		s.id, config.SampleRate, config.Threshold, config.BlockDuration(), config.SafetyMargin, config.Tail)

	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Config returns the effective configuration
func (s *Session) Config() Config {
	return s.config
}

// HandleChunk buffers a chunk and schedules any complete blocks.
// Malformed chunks are dropped and counted; only a sink rejection is returned.
func (s *Session) HandleChunk(chunk audio.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if s.finished {
		return ErrSessionFinished
	}

	s.chunks++

	if err := s.buffer.AppendChunk(chunk); err != nil {
		s.dropMalformed(err)
		return nil
	}
	s.framesIn += int64(chunk.Frames())

	return s.flush()
}

// HandleFrames is the engine callback: it copies 2*frameCount interleaved
// samples out of the producer's buffer and handles them as one chunk.
func (s *Session) HandleFrames(samples []int16, frameCount int) error {
	chunk, err := audio.ChunkFromFrames(samples, frameCount)
	if err != nil {
		return s.rejectChunk(err)
	}
	return s.HandleChunk(chunk)
}

// HandlePCM handles little-endian s16 interleaved bytes
func (s *Session) HandlePCM(data []byte) error {
	chunk, err := audio.ChunkFromBytes(data)
	if err != nil {
		return s.rejectChunk(err)
	}
	return s.HandleChunk(chunk)
}

// rejectChunk handles a chunk that could not be built at the boundary.
// It is refused like any other chunk once the session failed or finished.
func (s *Session) rejectChunk(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if s.finished {
		return ErrSessionFinished
	}
	s.chunks++
	s.dropMalformed(fmt.Errorf("%w: %w", stream.ErrMalformedChunk, err))
	return nil
}

// dropMalformed records a rejected chunk (must hold s.mu)
func (s *Session) dropMalformed(err error) {
	s.malformed++
	log.Printf("Session %s: dropped chunk #%d: %v", s.id, s.chunks, err)
}

// flush schedules blocks while the buffer holds a full threshold (must hold s.mu)
func (s *Session) flush() error {
	for s.buffer.HasThresholdFrames() {
		left, right, err := s.buffer.Take(s.config.Threshold)
		if err != nil {
			return err
		}
		if err := s.submit(left, right); err != nil {
			return err
		}
	}
	return nil
}

// submit builds a block and hands it to the scheduler (must hold s.mu)
func (s *Session) submit(left, right []float32) error {
	block, err := NewBlock(left, right, s.config.SampleRate)
	if err != nil {
		return err
	}

	if _, err := s.scheduler.Schedule(block); err != nil {
		s.err = err
		log.Printf("Session %s: %v", s.id, err)
		return err
	}

	s.framesOut += int64(block.Frames())
	return nil
}

// Finish flushes the frames left below the threshold according to the
// tail policy. Later chunks are refused.
func (s *Session) Finish() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}
	if s.finished {
		return nil
	}
	s.finished = true

	left, right := s.buffer.Drain()
	if len(left) == 0 {
		return nil
	}
	s.tailFrames = int64(len(left))

	switch s.config.Tail {
	case TailDrop:
		log.Printf("Session %s: dropping %d tail frames", s.id, len(left))
		return nil
	case TailPad:
		pad := s.config.Threshold - len(left)
		left = append(left, make([]float32, pad)...)
		right = append(right, make([]float32, pad)...)
	}

	return s.submit(left, right)
}

// Reset restarts the session: queued frames, schedule state and any fatal
// error are discarded and a new session ID is assigned.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.buffer.Reset()
	s.scheduler.Reset()
	s.id = uuid.New().String()
	s.chunks = 0
	s.framesIn = 0
	s.malformed = 0
	s.framesOut = 0
	s.tailFrames = 0
	s.finished = false
	s.err = nil

	log.Printf("Session restarted as %s", s.id)
}

// Err returns the fatal error that ended the session, if any
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// PlayoutEnd returns the device time at which everything scheduled so far
// has been played
func (s *Session) PlayoutEnd() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduler.NextStartTime()
}

// Stats returns a snapshot of session statistics
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	sched := s.scheduler.Stats()
	next := s.scheduler.NextStartTime()

	lead := 0.0
	if sched.Scheduled > 0 {
		lead = next - s.sink.CurrentTime()
		if lead < 0 {
			lead = 0
		}
	}

	return Stats{
		SessionID:      s.id,
		Chunks:         s.chunks,
		FramesIn:       s.framesIn,
		Malformed:      s.malformed,
		Blocks:         sched.Scheduled,
		FramesOut:      s.framesOut,
		TailFrames:     s.tailFrames,
		Underruns:      sched.Underruns,
		BufferedFrames: s.buffer.Frames(),
		NextStartTime:  next,
		LeadTime:       lead,
	}
}
