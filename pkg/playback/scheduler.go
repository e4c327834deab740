// ABOUTME: Gapless playback scheduler
// ABOUTME: Assigns each block a start time on the sink clock with resync after underruns
package playback

import (
	"fmt"
	"log"
	"time"
)

// Scheduler decides when each block starts. Consecutive blocks are placed
// back to back; when the sink clock has already passed the next start time
// the schedule is moved to now plus the safety margin.
type Scheduler struct {
	sink   Sink
	margin float64

	// nextStart is the earliest time the next block may begin
	nextStart float64
	started   bool

	stats SchedulerStats
}

// SchedulerStats tracks scheduler metrics
type SchedulerStats struct {
	Scheduled int64
	Underruns int64
	Resyncs   int64
	LastStart float64
}

// NewScheduler creates a scheduler targeting sink
func NewScheduler(sink Sink, safetyMargin time.Duration) *Scheduler {
	return &Scheduler{
		sink:   sink,
		margin: safetyMargin.Seconds(),
	}
}

// Schedule submits block to the sink and returns the start time it was given
func (s *Scheduler) Schedule(block *Block) (float64, error) {
	now := s.sink.CurrentTime()

	var start float64
	switch {
	case !s.started:
		// Nothing scheduled yet: lead in by the margin
		start = now + s.margin
		s.stats.Resyncs++
	case s.nextStart < now:
		start = now + s.margin
		s.stats.Underruns++
		s.stats.Resyncs++
		log.Printf("Underrun: schedule fell %.1fms behind device clock, resyncing at %.4fs",
			(now-s.nextStart)*1000.0, start)
	default:
		start = s.nextStart
	}

	if err := s.sink.Schedule(block, start); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrSinkRejected, err)
	}

	if s.stats.Scheduled < 5 {
		log.Printf("Scheduled block #%d: start=%.4fs, lead=%.1fms, frames=%d, duration=%.1fms",
			s.stats.Scheduled, start, (start-now)*1000.0, block.Frames(), block.Duration()*1000.0)
	}

	s.started = true
	s.nextStart = start + block.Duration()
	s.stats.Scheduled++
	s.stats.LastStart = start

	return start, nil
}

// NextStartTime returns the time the next block would begin without an underrun
func (s *Scheduler) NextStartTime() float64 {
	return s.nextStart
}

// Stats returns scheduler statistics
func (s *Scheduler) Stats() SchedulerStats {
	return s.stats
}

// Reset forgets the schedule so the next block takes the lead-in path
func (s *Scheduler) Reset() {
	s.nextStart = 0
	s.started = false
	s.stats = SchedulerStats{}
}
