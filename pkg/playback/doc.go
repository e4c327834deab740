// ABOUTME: Playback session package
// ABOUTME: Provides Session, Scheduler, Block and the Sink interface
// Package playback schedules buffered PCM onto an output clock so that
// consecutive blocks play with no gap and no overlap.
//
// A Session owns a streaming buffer and a scheduler. The producer feeds it
// chunks from a single goroutine; each chunk may schedule zero or more
// fixed-size blocks on the sink:
//
//	session, err := playback.NewSession(sink, playback.Config{
//	    SampleRate: 44100,
//	    Threshold:  8192,
//	})
//	err = session.HandleChunk(chunk)
//	...
//	err = session.Finish()
//
// When the sink clock overtakes the schedule (an underrun) the next block
// is placed SafetyMargin after the current device time.
package playback
