// ABOUTME: Chunk feed protocol message type definitions
// ABOUTME: Defines the JSON control messages and the binary audio chunk framing
package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	// Version is the feed protocol version
	Version = 1

	// Path is the websocket endpoint a feed server listens on
	Path = "/feed"

	// BinaryMessageHeaderSize is the size of binary message header (type byte + frame offset)
	BinaryMessageHeaderSize = 1 + 8

	// AudioChunkMessageType is the binary message type ID for audio chunks
	AudioChunkMessageType = 4
)

// Control message types
const (
	TypeClientHello   = "client/hello"
	TypeClientGoodbye = "client/goodbye"
	TypeFeedHello     = "feed/hello"
	TypeFeedEnd       = "feed/end"
)

// ErrShortMessage reports a binary message without a complete header
var ErrShortMessage = errors.New("binary message too short")

// Message is the top-level wrapper for all protocol messages
type Message struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// DecodePayload unmarshals the payload of a decoded message into v
func DecodePayload(msg Message, v interface{}) error {
	payloadBytes, err := json.Marshal(msg.Payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(payloadBytes, v); err != nil {
		return fmt.Errorf("failed to parse %s: %w", msg.Type, err)
	}
	return nil
}

// ClientHello is sent by players to join a feed
type ClientHello struct {
	ClientID   string      `json:"client_id"`
	Name       string      `json:"name"`
	Version    int         `json:"version"`
	DeviceInfo *DeviceInfo `json:"device_info,omitempty"`
}

// DeviceInfo contains device identification
type DeviceInfo struct {
	ProductName     string `json:"product_name"`
	Manufacturer    string `json:"manufacturer"`
	SoftwareVersion string `json:"software_version"`
}

// AudioFormat describes the PCM carried in audio chunks
type AudioFormat struct {
	Codec      string `json:"codec"`
	Channels   int    `json:"channels"`
	SampleRate int    `json:"sample_rate"`
	BitDepth   int    `json:"bit_depth"`
}

// FeedHello is the server's response to client/hello
type FeedHello struct {
	FeedID  string      `json:"feed_id"`
	Name    string      `json:"name"`
	Version int         `json:"version"`
	Source  string      `json:"source,omitempty"`
	Format  AudioFormat `json:"format"`
}

// FeedEnd tells players that no more chunks follow
type FeedEnd struct {
	Reason string `json:"reason"` // "finished", "error" or "shutdown"
	Frames int64  `json:"frames"` // total frames the feed produced
}

// ClientGoodbye is sent by a player before disconnecting
type ClientGoodbye struct {
	Reason string `json:"reason"`
}

// AudioChunk is one binary audio message. Offset is the feed position of
// the first frame, so gaps from dropped messages are visible.
type AudioChunk struct {
	Offset int64
	Data   []byte // s16le interleaved stereo
}

// EncodeAudioChunk frames PCM bytes as a binary message
func EncodeAudioChunk(offset int64, pcm []byte) []byte {
	msg := make([]byte, BinaryMessageHeaderSize+len(pcm))
	msg[0] = AudioChunkMessageType
	binary.BigEndian.PutUint64(msg[1:BinaryMessageHeaderSize], uint64(offset))
	copy(msg[BinaryMessageHeaderSize:], pcm)
	return msg
}

// DecodeAudioChunk parses a binary message
func DecodeAudioChunk(data []byte) (AudioChunk, error) {
	if len(data) < BinaryMessageHeaderSize {
		return AudioChunk{}, ErrShortMessage
	}
	if data[0] != AudioChunkMessageType {
		return AudioChunk{}, fmt.Errorf("unknown binary message type: %d", data[0])
	}
	return AudioChunk{
		Offset: int64(binary.BigEndian.Uint64(data[1:BinaryMessageHeaderSize])),
		Data:   data[BinaryMessageHeaderSize:],
	}, nil
}
