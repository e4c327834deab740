// ABOUTME: Error values for playback sessions
// ABOUTME: Fatal session errors reported to the caller
package playback

import "errors"

var (
	// ErrSinkRejected wraps a sink error; the session cannot continue
	ErrSinkRejected = errors.New("sink rejected block")

	// ErrSessionFinished is returned for chunks delivered after Finish
	ErrSessionFinished = errors.New("session finished")
)
