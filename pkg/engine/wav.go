// ABOUTME: Incremental RIFF/WAVE header stripper for piped engine output
// ABOUTME: Passes raw PCM through and skips container chunks up to the data chunk
package engine

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrUnsupportedWAV reports a WAVE stream that is not 16-bit stereo PCM
var ErrUnsupportedWAV = errors.New("unsupported WAVE format")

type wavState int

const (
	wavSniff wavState = iota
	wavChunks
	wavData
)

// wavInfo is what the fmt chunk declared
type wavInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
}

// headerStripper removes a RIFF/WAVE container from a byte stream that may
// arrive split at any offset. Streams that do not start with RIFF pass
// through untouched.
type headerStripper struct {
	state   wavState
	pending []byte
	skip    int
	info    *wavInfo
}

// Feed consumes the next piece of the stream and returns the PCM bytes it
// completes. The returned slice never aliases p.
func (h *headerStripper) Feed(p []byte) ([]byte, error) {
	if h.state == wavData {
		return append([]byte(nil), p...), nil
	}

	h.pending = append(h.pending, p...)

	if h.state == wavSniff {
		if len(h.pending) < 12 {
			return nil, nil
		}
		if !bytes.Equal(h.pending[0:4], []byte("RIFF")) {
			h.state = wavData
			return h.take(), nil
		}
		if !bytes.Equal(h.pending[8:12], []byte("WAVE")) {
			return nil, fmt.Errorf("%w: RIFF stream is not WAVE", ErrUnsupportedWAV)
		}
		h.pending = h.pending[12:]
		h.state = wavChunks
	}

	for h.state == wavChunks {
		if h.skip > 0 {
			n := min(h.skip, len(h.pending))
			h.pending = h.pending[n:]
			h.skip -= n
			if h.skip > 0 {
				return nil, nil
			}
		}
		if len(h.pending) < 8 {
			return nil, nil
		}

		id := string(h.pending[0:4])
		size := int(binary.LittleEndian.Uint32(h.pending[4:8]))

		switch id {
		case "data":
			h.pending = h.pending[8:]
			h.state = wavData
			return h.take(), nil
		case "fmt ":
			if len(h.pending) < 8+size {
				return nil, nil
			}
			info, err := parseFmtChunk(h.pending[8 : 8+size])
			if err != nil {
				return nil, err
			}
			h.info = info
		}

		h.pending = h.pending[8:]
		// chunk bodies are padded to an even length
		h.skip = size + size%2
	}

	return nil, nil
}

// Flush returns bytes still held back when the stream ends. A stream too
// short to hold a RIFF header is treated as raw PCM.
func (h *headerStripper) Flush() []byte {
	if h.state == wavSniff {
		h.state = wavData
		return h.take()
	}
	return nil
}

// Info returns the declared format, or nil when no fmt chunk was seen
func (h *headerStripper) Info() *wavInfo {
	return h.info
}

func (h *headerStripper) take() []byte {
	out := h.pending
	h.pending = nil
	return out
}

func parseFmtChunk(body []byte) (*wavInfo, error) {
	if len(body) < 16 {
		return nil, fmt.Errorf("%w: fmt chunk of %d bytes", ErrUnsupportedWAV, len(body))
	}

	tag := binary.LittleEndian.Uint16(body[0:2])
	info := &wavInfo{
		Channels:   int(binary.LittleEndian.Uint16(body[2:4])),
		SampleRate: int(binary.LittleEndian.Uint32(body[4:8])),
		BitDepth:   int(binary.LittleEndian.Uint16(body[14:16])),
	}

	// 1 = integer PCM, 0xFFFE = WAVE_FORMAT_EXTENSIBLE
	if tag != 1 && tag != 0xFFFE {
		return nil, fmt.Errorf("%w: format tag %#x", ErrUnsupportedWAV, tag)
	}
	if info.Channels != 2 || info.BitDepth != 16 {
		return nil, fmt.Errorf("%w: %d channels, %d bits", ErrUnsupportedWAV, info.Channels, info.BitDepth)
	}
	return info, nil
}
