// ABOUTME: Engine package wrapping PCM producers
// ABOUTME: Runs playbae or a stand-in decoder and delivers owned chunks
// Package engine produces interleaved 16-bit stereo chunks for a playback
// session.
//
// The primary producer runs the playbae synthesis engine and reads its
// rendered output; stand-ins decode MP3, FLAC and Ogg Opus, generate a test
// tone, or receive a remote chunk feed. Chunk sizes and delivery times are
// irregular by nature.
//
//	p, err := engine.Open(engine.Args{Input: "song.mid"})
//	err = p.Run(ctx, session.HandleChunk)
package engine
