// ABOUTME: Audio output package for playing scheduled blocks
// ABOUTME: Provides the Output interface, the block Timeline and oto/malgo backends
// Package output plays playback blocks on an audio device.
//
// Both backends pull float32 stereo from a Timeline, which renders each
// block starting at the frame its start time maps to and silence where no
// block is scheduled. The timeline's rendered frame count is the device
// clock reported by CurrentTime.
//
// Example:
//
//	out, err := output.New("oto")
//	err = out.Open(44100)
//	session, err := playback.NewSession(out, playback.Config{SampleRate: 44100})
package output
