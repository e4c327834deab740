// ABOUTME: Streaming buffer package for deinterleaved PCM
// ABOUTME: Provides the deinterleaver and the threshold-based channel queues
// Package stream turns interleaved 16-bit stereo chunks into normalized
// per-channel queues and hands out fixed-size runs of frames.
//
// Example:
//
//	buf, err := stream.NewBuffer(8192)
//	err = buf.AppendChunk(chunk)
//	for buf.HasThresholdFrames() {
//	    left, right, err := buf.Take(buf.Threshold())
//	}
package stream
