// ABOUTME: WebSocket client for the chunk feed protocol
// ABOUTME: Handles connection, handshake, and reading audio chunks in order
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// DefaultHandshakeTimeout bounds the wait for feed/hello
const DefaultHandshakeTimeout = 5 * time.Second

// ErrNotConnected is returned when the client has no open connection
var ErrNotConnected = errors.New("not connected")

// Config holds client configuration
type Config struct {
	URL              string
	ClientID         string
	Name             string
	DeviceInfo       DeviceInfo
	HandshakeTimeout time.Duration
}

// Client represents a feed WebSocket client
type Client struct {
	config Config
	conn   *websocket.Conn
	mu     sync.RWMutex

	hello     FeedHello
	end       *FeedEnd
	connected bool
	started   bool
	next      int64 // expected offset of the next chunk
	gaps      int
}

// NewClient creates a new feed client
func NewClient(config Config) *Client {
	if config.HandshakeTimeout == 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	return &Client{config: config}
}

// Connect establishes WebSocket connection and performs handshake
func (c *Client) Connect(ctx context.Context) error {
	log.Printf("Connecting to %s", c.config.URL)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	if err := c.handshake(); err != nil {
		c.Close()
		return fmt.Errorf("handshake failed: %w", err)
	}

	return nil
}

// handshake sends client/hello and waits for feed/hello
func (c *Client) handshake() error {
	hello := ClientHello{
		ClientID:   c.config.ClientID,
		Name:       c.config.Name,
		Version:    Version,
		DeviceInfo: &c.config.DeviceInfo,
	}

	if err := c.sendJSON(Message{Type: TypeClientHello, Payload: hello}); err != nil {
		return fmt.Errorf("failed to send client/hello: %w", err)
	}

	c.conn.SetReadDeadline(time.Now().Add(c.config.HandshakeTimeout))
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("failed to read feed/hello: %w", err)
	}
	c.conn.SetReadDeadline(time.Time{}) // Clear deadline

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return fmt.Errorf("failed to parse feed/hello: %w", err)
	}
	if msg.Type != TypeFeedHello {
		return fmt.Errorf("expected %s, got %s", TypeFeedHello, msg.Type)
	}

	var feedHello FeedHello
	if err := DecodePayload(msg, &feedHello); err != nil {
		return err
	}
	if feedHello.Version != Version {
		return fmt.Errorf("unsupported feed protocol version %d", feedHello.Version)
	}

	c.mu.Lock()
	c.hello = feedHello
	c.mu.Unlock()

	log.Printf("Handshake complete with feed %s (%s, %d Hz, %d channels)",
		feedHello.Name, feedHello.Format.Codec, feedHello.Format.SampleRate, feedHello.Format.Channels)
	return nil
}

// Hello returns the feed/hello received during the handshake
func (c *Client) Hello() FeedHello {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.hello
}

// Next blocks until the next audio chunk arrives. It returns io.EOF once
// the feed sent feed/end.
func (c *Client) Next() (AudioChunk, error) {
	c.mu.RLock()
	conn, connected := c.conn, c.connected
	c.mu.RUnlock()
	if !connected {
		return AudioChunk{}, ErrNotConnected
	}

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return AudioChunk{}, fmt.Errorf("read failed: %w", err)
		}

		switch messageType {
		case websocket.BinaryMessage:
			chunk, err := DecodeAudioChunk(data)
			if err != nil {
				log.Printf("Invalid binary message: %v", err)
				continue
			}
			c.trackOffset(chunk)
			return chunk, nil

		case websocket.TextMessage:
			if done := c.handleJSONMessage(data); done {
				return AudioChunk{}, io.EOF
			}

		default:
			log.Printf("Unknown WebSocket message type: %d", messageType)
		}
	}
}

// trackOffset counts chunks the server dropped for this client
func (c *Client) trackOffset(chunk AudioChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// a late joiner starts mid-feed
	if c.started && chunk.Offset != c.next {
		c.gaps++
		log.Printf("Feed gap: expected frame %d, got %d", c.next, chunk.Offset)
	}
	c.started = true
	c.next = chunk.Offset + int64(len(chunk.Data)/4)
}

// handleJSONMessage routes control messages; it reports true on feed/end
func (c *Client) handleJSONMessage(data []byte) bool {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Failed to parse JSON message: %v", err)
		return false
	}

	switch msg.Type {
	case TypeFeedEnd:
		var end FeedEnd
		if err := DecodePayload(msg, &end); err != nil {
			log.Printf("%v", err)
		}
		c.mu.Lock()
		c.end = &end
		c.mu.Unlock()
		log.Printf("Feed ended: %s after %d frames", end.Reason, end.Frames)
		return true

	default:
		log.Printf("Unknown message type: %s", msg.Type)
		return false
	}
}

// End returns the feed/end message once it has arrived
func (c *Client) End() *FeedEnd {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.end
}

// Gaps returns how many discontinuities were seen in chunk offsets
func (c *Client) Gaps() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.gaps
}

// sendJSON sends a JSON message
func (c *Client) sendJSON(msg Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return ErrNotConnected
	}

	return c.conn.WriteJSON(msg)
}

// SendGoodbye sends a client/goodbye message before disconnecting
func (c *Client) SendGoodbye(reason string) error {
	return c.sendJSON(Message{
		Type:    TypeClientGoodbye,
		Payload: ClientGoodbye{Reason: reason},
	})
}

// Close closes the connection
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
