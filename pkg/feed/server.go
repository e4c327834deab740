// ABOUTME: Chunk feed server broadcasting a producer to connected players
// ABOUTME: Manages WebSocket connections, the feed handshake and per-client send queues
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/minibae/minibae-stream/internal/discovery"
	"github.com/minibae/minibae-stream/pkg/audio"
	"github.com/minibae/minibae-stream/pkg/engine"
	"github.com/minibae/minibae-stream/pkg/protocol"
)

const (
	// DefaultPort is the feed's listening port
	DefaultPort = 8930

	// DefaultSendBuffer is how many messages may queue per client before chunks are dropped
	DefaultSendBuffer = 256

	// DefaultDrainTimeout is how long a finished feed waits for players to leave
	DefaultDrainTimeout = 5 * time.Second

	writeDeadline = 10 * time.Second
	helloTimeout  = 5 * time.Second
)

// Config holds server configuration
type Config struct {
	Port         int
	Name         string
	Source       string // label sent in feed/hello
	EnableMDNS   bool
	SendBuffer   int
	DrainTimeout time.Duration
}

// Server broadcasts one producer's chunks to every connected player
type Server struct {
	config   Config
	feedID   string
	producer engine.Producer
	format   audio.Format

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server

	clients   map[string]*Client
	clientsMu sync.RWMutex

	// feed position in frames; the offset of the next chunk
	frames atomic.Int64
	end    atomic.Pointer[protocol.FeedEnd]
	done   chan struct{}

	mdnsManager *discovery.Manager

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// Client is a connected player
type Client struct {
	ID       string
	Name     string
	Conn     *websocket.Conn
	sendChan chan interface{}
	endChan  chan protocol.Message // feed/end; never dropped, sent after the queue
	dropped  atomic.Int64
}

// Dropped returns how many chunks this client missed because its queue was full
func (c *Client) Dropped() int64 {
	return c.dropped.Load()
}

// New creates a feed server for the producer
func New(config Config, producer engine.Producer) *Server {
	if config.Port == 0 {
		config.Port = DefaultPort
	}
	if config.Name == "" {
		config.Name = "minibae-feed"
	}
	if config.SendBuffer <= 0 {
		config.SendBuffer = DefaultSendBuffer
	}
	if config.DrainTimeout == 0 {
		config.DrainTimeout = DefaultDrainTimeout
	}

	s := &Server{
		config:   config,
		feedID:   uuid.New().String(),
		producer: producer,
		format:   producer.Format(),
		upgrader: websocket.Upgrader{
			// feeds serve trusted local networks
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		clients:  make(map[string]*Client),
		done:     make(chan struct{}),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc(protocol.Path, s.handleWebSocket)
	return s
}

// Handler returns the HTTP handler serving the feed endpoint
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Hello returns the feed/hello this server sends to players
func (s *Server) Hello() protocol.FeedHello {
	return protocol.FeedHello{
		FeedID:  s.feedID,
		Name:    s.config.Name,
		Version: protocol.Version,
		Source:  s.config.Source,
		Format: protocol.AudioFormat{
			Codec:      "pcm",
			Channels:   s.format.Channels,
			SampleRate: s.format.SampleRate,
			BitDepth:   s.format.BitDepth,
		},
	}
}

// Start listens, advertises and streams until the feed ends or Stop is called
func (s *Server) Start() error {
	log.Printf("Feed starting: %s (ID: %s)", s.config.Name, s.feedID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
			Path:        protocol.Path,
			SampleRate:  s.format.SampleRate,
		})

		if err := s.mdnsManager.Advertise(); err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			log.Printf("mDNS advertisement started")
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	log.Printf("WebSocket feed listening on %s%s", addr, protocol.Path)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.mux,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	streamErr := make(chan error, 1)
	go func() {
		streamErr <- s.Stream(ctx)
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		log.Printf("Feed shutting down...")
		cancel()
		<-streamErr
	case err := <-streamErr:
		if err != nil {
			log.Printf("Producer stopped: %v", err)
		}
		s.drain()
	case err := <-errChan:
		log.Printf("HTTP server error: %v", err)
		serverErr = err
		cancel()
		<-streamErr
	}

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}
	s.closeClients()

	s.wg.Wait()
	log.Printf("Feed stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Frames returns the feed position: frames broadcast so far
func (s *Server) Frames() int64 {
	return s.frames.Load()
}

// Format returns the format announced in feed/hello
func (s *Server) Format() audio.Format {
	return s.format
}

// Done is closed once the producer has finished and feed/end was sent
func (s *Server) Done() <-chan struct{} {
	return s.done
}

// Stream runs the producer and broadcasts its chunks. It sends feed/end to
// every player when the producer stops.
func (s *Server) Stream(ctx context.Context) error {
	err := s.producer.Run(ctx, func(chunk audio.Chunk) error {
		s.broadcast(chunk)
		return nil
	})

	reason := "finished"
	switch {
	case ctx.Err() != nil:
		reason = "shutdown"
	case err != nil:
		reason = "error"
	}

	end := &protocol.FeedEnd{Reason: reason, Frames: s.frames.Load()}

	// under the write lock so a joining player sees feed/end exactly once
	s.clientsMu.Lock()
	s.end.Store(end)
	for _, client := range s.clients {
		queueEnd(client, *end)
	}
	s.clientsMu.Unlock()

	log.Printf("Feed ended (%s) after %d frames", reason, end.Frames)
	close(s.done)

	if reason == "shutdown" {
		return nil
	}
	return err
}

// broadcast queues a chunk for every player
func (s *Server) broadcast(chunk audio.Chunk) {
	frames := int64(chunk.Frames())
	offset := s.frames.Add(frames) - frames
	msg := protocol.EncodeAudioChunk(offset, chunk.Bytes())

	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		select {
		case client.sendChan <- msg:
		default:
			if client.dropped.Add(1) == 1 {
				log.Printf("Client %s is not keeping up, dropping chunks", client.Name)
			}
		}
	}
}

// drain waits for players to disconnect after feed/end, up to DrainTimeout
func (s *Server) drain() {
	deadline := time.After(s.config.DrainTimeout)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for s.ClientCount() > 0 {
		select {
		case <-deadline:
			return
		case <-s.stopChan:
			return
		case <-ticker.C:
		}
	}
}

// ClientCount returns the number of connected players
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}

// Clients returns a snapshot of connected players
func (s *Server) Clients() []*Client {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	out := make([]*Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

// closeClients closes every connection so reader loops exit
func (s *Server) closeClients() {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, c := range s.clients {
		c.Conn.Close()
	}
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade error: %v", err)
		return
	}

	log.Printf("New WebSocket connection from %s", r.RemoteAddr)

	s.handleConnection(conn)
}

// handleConnection manages a player connection
func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(helloTimeout))
	_, data, err := conn.ReadMessage()
	if err != nil {
		log.Printf("Error reading hello: %v", err)
		return
	}
	conn.SetReadDeadline(time.Time{})

	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return
	}
	if msg.Type != protocol.TypeClientHello {
		log.Printf("Expected %s, got %s", protocol.TypeClientHello, msg.Type)
		return
	}

	var hello protocol.ClientHello
	if err := protocol.DecodePayload(msg, &hello); err != nil {
		log.Printf("Error decoding client hello: %v", err)
		return
	}
	if hello.ClientID == "" {
		hello.ClientID = uuid.New().String()
	}

	log.Printf("Client hello: %s (ID: %s)", hello.Name, hello.ClientID)

	client := &Client{
		ID:       hello.ClientID,
		Name:     hello.Name,
		Conn:     conn,
		sendChan: make(chan interface{}, s.config.SendBuffer),
		endChan:  make(chan protocol.Message, 1),
	}

	// feed/hello must be first in the queue, ahead of any chunk
	s.sendMessage(client, protocol.TypeFeedHello, s.Hello())

	s.clientsMu.Lock()
	if _, exists := s.clients[client.ID]; exists {
		s.clientsMu.Unlock()
		log.Printf("Client ID %s already connected, rejecting duplicate", client.ID)
		return
	}
	s.clients[client.ID] = client
	// a player joining after the end only gets feed/end
	if end := s.end.Load(); end != nil {
		queueEnd(client, *end)
	}
	s.clientsMu.Unlock()

	writerDone := make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(writerDone)
		s.clientWriter(client)
	}()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		s.clientsMu.Unlock()
		close(client.sendChan)
		<-writerDone
		log.Printf("Client disconnected: %s (dropped %d chunks)", client.Name, client.Dropped())
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket error: %v", err)
			}
			return
		}
		if s.handleClientMessage(client, data) {
			return
		}
	}
}

// handleClientMessage processes messages from players; it reports true on goodbye
func (s *Server) handleClientMessage(client *Client, data []byte) bool {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Error unmarshaling message: %v", err)
		return false
	}

	switch msg.Type {
	case protocol.TypeClientGoodbye:
		var bye protocol.ClientGoodbye
		protocol.DecodePayload(msg, &bye)
		log.Printf("Client %s said goodbye: %s", client.Name, bye.Reason)
		return true
	default:
		log.Printf("Unknown message type: %s", msg.Type)
		return false
	}
}

// clientWriter sends queued messages to the player. feed/end goes out
// after every message queued before it.
func (s *Server) clientWriter(client *Client) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-client.sendChan:
			if !ok {
				return
			}
			if !writeMessage(client, msg) {
				return
			}

		case end := <-client.endChan:
			for drained := false; !drained; {
				select {
				case msg, ok := <-client.sendChan:
					if !ok {
						return
					}
					if !writeMessage(client, msg) {
						return
					}
				default:
					drained = true
				}
			}
			if !writeMessage(client, end) {
				return
			}

		case <-ticker.C:
			if err := client.Conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(writeDeadline)); err != nil {
				client.Conn.Close()
				return
			}
		}
	}
}

// writeMessage writes one queued message; it closes the connection and
// reports false on a write error
func writeMessage(client *Client, msg interface{}) bool {
	messageType := websocket.TextMessage
	data, ok := msg.([]byte)
	if ok {
		messageType = websocket.BinaryMessage
	} else {
		var err error
		if data, err = json.Marshal(msg); err != nil {
			log.Printf("Error marshaling message: %v", err)
			return true
		}
	}

	client.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := client.Conn.WriteMessage(messageType, data); err != nil {
		log.Printf("Error writing message to %s: %v", client.Name, err)
		client.Conn.Close()
		return false
	}
	return true
}

// queueEnd hands feed/end to the writer. Each client gets it at most once,
// so the slot is always free.
func queueEnd(client *Client, end protocol.FeedEnd) {
	select {
	case client.endChan <- protocol.Message{Type: protocol.TypeFeedEnd, Payload: end}:
	default:
		log.Printf("Client %s already has feed/end queued", client.Name)
	}
}

// sendMessage queues a JSON message for a player
func (s *Server) sendMessage(client *Client, msgType string, payload interface{}) error {
	msg := protocol.Message{
		Type:    msgType,
		Payload: payload,
	}

	select {
	case client.sendChan <- msg:
		return nil
	default:
		log.Printf("Client %s send buffer full, dropping %s", client.Name, msgType)
		return fmt.Errorf("client send buffer full")
	}
}
