// ABOUTME: Test sink with a manually driven clock
// ABOUTME: Records every scheduled block for assertions
package playback

import "sync"

type scheduledBlock struct {
	block *Block
	start float64
}

// fakeSink is a Sink whose clock only moves when the test says so
type fakeSink struct {
	mu        sync.Mutex
	now       float64
	scheduled []scheduledBlock
	fail      error
}

func (f *fakeSink) CurrentTime() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeSink) Schedule(block *Block, startTime float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail != nil {
		return f.fail
	}
	f.scheduled = append(f.scheduled, scheduledBlock{block: block, start: startTime})
	return nil
}

func (f *fakeSink) setTime(t float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

func (f *fakeSink) blocks() []scheduledBlock {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]scheduledBlock(nil), f.scheduled...)
}
