// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Chunk types and sample conversion functions
// Package audio provides the sample types shared by producers, the
// streaming core and the output devices.
//
// This package defines:
//   - Format: describes a PCM stream (codec, sample rate, channels, bit depth)
//   - Chunk: an owned block of interleaved 16-bit stereo samples
//
// Chunks are always copied out of producer memory at the callback boundary:
//
//	chunk, err := audio.ChunkFromFrames(engineBuf, frameCount)
//
// Samples are normalized with a fixed 1/32768 scale, so every 16-bit value
// maps exactly onto a float32 in [-1.0, 1.0).
package audio
