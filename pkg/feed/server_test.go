// ABOUTME: Tests for the chunk feed server
// ABOUTME: Connects feed clients over httptest and checks broadcast order and feed/end
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/minibae/minibae-stream/pkg/audio"
	"github.com/minibae/minibae-stream/pkg/engine"
	"github.com/minibae/minibae-stream/pkg/protocol"
)

// gatedProducer waits for start before emitting its chunks
type gatedProducer struct {
	start  chan struct{}
	chunks []audio.Chunk
	rate   int
}

func (p *gatedProducer) Format() audio.Format { return audio.PCM16(p.rate) }
func (p *gatedProducer) Close() error         { return nil }
func (p *gatedProducer) Run(ctx context.Context, emit engine.ChunkFunc) error {
	select {
	case <-p.start:
	case <-ctx.Done():
		return ctx.Err()
	}
	for _, c := range p.chunks {
		if err := emit(c); err != nil {
			return err
		}
	}
	return nil
}

func connect(t *testing.T, server *httptest.Server, id string) *protocol.Client {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + protocol.Path
	client := protocol.NewClient(protocol.Config{URL: url, ClientID: id, Name: id})
	if err := client.Connect(context.Background()); err != nil {
		t.Fatalf("connect failed: %v", err)
	}
	return client
}

func waitForClients(t *testing.T, s *Server, n int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() < n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d clients, have %d", n, s.ClientCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestFeedBroadcastsToAllClients(t *testing.T) {
	producer := &gatedProducer{
		start: make(chan struct{}),
		rate:  22050,
		chunks: []audio.Chunk{
			{Samples: []int16{1, 2, 3, 4}},
			{Samples: []int16{5, 6}},
		},
	}

	s := New(Config{Name: "test feed", Source: "song.mid"}, producer)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	a := connect(t, server, "a")
	defer a.Close()
	b := connect(t, server, "b")
	defer b.Close()

	if hello := a.Hello(); hello.Format.SampleRate != 22050 || hello.Name != "test feed" || hello.Source != "song.mid" {
		t.Errorf("unexpected hello: %+v", hello)
	}

	waitForClients(t, s, 2)

	streamErr := make(chan error, 1)
	go func() { streamErr <- s.Stream(context.Background()) }()
	close(producer.start)

	for _, client := range []*protocol.Client{a, b} {
		var samples []int16
		var offsets []int64
		for {
			chunk, err := client.Next()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			decoded, err := audio.ChunkFromBytes(chunk.Data)
			if err != nil {
				t.Fatalf("bad chunk: %v", err)
			}
			samples = append(samples, decoded.Samples...)
			offsets = append(offsets, chunk.Offset)
		}

		if len(samples) != 6 || samples[0] != 1 || samples[5] != 6 {
			t.Errorf("unexpected samples: %v", samples)
		}
		if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 2 {
			t.Errorf("unexpected offsets: %v", offsets)
		}
		if end := client.End(); end == nil || end.Reason != "finished" || end.Frames != 3 {
			t.Errorf("unexpected feed/end: %+v", end)
		}
	}

	if err := <-streamErr; err != nil {
		t.Errorf("unexpected stream error: %v", err)
	}
	select {
	case <-s.Done():
	default:
		t.Error("expected Done to be closed")
	}
}

func TestFeedLateJoinerGetsEnd(t *testing.T) {
	producer := &gatedProducer{start: make(chan struct{}), rate: 44100}
	close(producer.start)

	s := New(Config{}, producer)
	if err := s.Stream(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	server := httptest.NewServer(s.Handler())
	defer server.Close()

	client := connect(t, server, "late")
	defer client.Close()

	if _, err := client.Next(); !errors.Is(err, io.EOF) {
		t.Errorf("expected io.EOF for a finished feed, got %v", err)
	}
}

func TestFeedShutdownReason(t *testing.T) {
	producer := &gatedProducer{start: make(chan struct{}), rate: 44100}

	s := New(Config{}, producer)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	client := connect(t, server, "c")
	defer client.Close()
	waitForClients(t, s, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Stream(ctx); err != nil {
		t.Errorf("expected shutdown to be clean, got %v", err)
	}

	if _, err := client.Next(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected io.EOF, got %v", err)
	}
	if end := client.End(); end == nil || end.Reason != "shutdown" {
		t.Errorf("expected shutdown reason, got %+v", end)
	}
}

func TestFeedWithWebSocketProducer(t *testing.T) {
	tone := engine.NewTone(engine.DefaultToneFrequency, 8000)
	tone.ChunkFrames = 100
	tone.Duration = 100 * time.Millisecond
	gate := &gatedTone{Tone: tone, start: make(chan struct{})}

	s := New(Config{}, gate)
	server := httptest.NewServer(s.Handler())
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + protocol.Path
	ws, err := engine.DialWebSocket(url, 44100)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()
	waitForClients(t, s, 1)

	go s.Stream(context.Background())
	close(gate.start)

	frames := 0
	if err := ws.Run(context.Background(), func(c audio.Chunk) error {
		frames += c.Frames()
		return nil
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if frames != 800 {
		t.Errorf("expected 800 frames, got %d", frames)
	}
	if ws.Format().SampleRate != 8000 {
		t.Errorf("expected 8000 Hz, got %d", ws.Format().SampleRate)
	}
}

// gatedTone holds a tone back until start is closed
type gatedTone struct {
	*engine.Tone
	start chan struct{}
}

func (g *gatedTone) Run(ctx context.Context, emit engine.ChunkFunc) error {
	<-g.start
	return g.Tone.Run(ctx, emit)
}

func TestFeedEndReachesSlowClient(t *testing.T) {
	chunks := make([]audio.Chunk, 4)
	for i := range chunks {
		chunks[i] = audio.Chunk{Samples: []int16{int16(i), int16(i)}}
	}
	producer := &gatedProducer{start: make(chan struct{}), chunks: chunks, rate: 44100}
	close(producer.start)

	s := New(Config{}, producer)

	// no writer runs, so the queue fills after two chunks
	slow := &Client{
		ID:       "slow",
		Name:     "slow",
		sendChan: make(chan interface{}, 2),
		endChan:  make(chan protocol.Message, 1),
	}
	s.clients[slow.ID] = slow

	if err := s.Stream(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if slow.Dropped() != 2 {
		t.Errorf("expected 2 dropped chunks, got %d", slow.Dropped())
	}

	select {
	case msg := <-slow.endChan:
		end, ok := msg.Payload.(protocol.FeedEnd)
		if msg.Type != protocol.TypeFeedEnd || !ok {
			t.Fatalf("expected feed/end, got %+v", msg)
		}
		if end.Reason != "finished" || end.Frames != 4 {
			t.Errorf("unexpected feed/end: %+v", end)
		}
	default:
		t.Fatal("slow client has no feed/end queued")
	}
}

func TestClientWriterSendsEndAfterQueue(t *testing.T) {
	conns := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conns <- conn
	}))
	defer server.Close()

	peer, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer peer.Close()
	conn := <-conns

	client := &Client{
		ID:       "c",
		Name:     "c",
		Conn:     conn,
		sendChan: make(chan interface{}, 2),
		endChan:  make(chan protocol.Message, 1),
	}

	// feed/end is queued first but must follow the chunks already waiting
	queueEnd(client, protocol.FeedEnd{Reason: "finished", Frames: 2})
	client.sendChan <- protocol.EncodeAudioChunk(0, []byte{1, 0, 1, 0})
	client.sendChan <- protocol.EncodeAudioChunk(1, []byte{2, 0, 2, 0})

	s := New(Config{}, &gatedProducer{rate: 44100})
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.clientWriter(client)
	}()

	expected := []int{websocket.BinaryMessage, websocket.BinaryMessage, websocket.TextMessage}
	for i, want := range expected {
		messageType, data, err := peer.ReadMessage()
		if err != nil {
			t.Fatalf("read %d failed: %v", i, err)
		}
		if messageType != want {
			t.Fatalf("message %d: expected type %d, got %d", i, want, messageType)
		}
		if want == websocket.TextMessage {
			var msg protocol.Message
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("bad JSON: %v", err)
			}
			if msg.Type != protocol.TypeFeedEnd {
				t.Errorf("expected feed/end last, got %s", msg.Type)
			}
		}
	}

	close(client.sendChan)
	<-done
}
