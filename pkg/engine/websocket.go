// ABOUTME: Producer that plays a remote chunk feed over WebSocket
// ABOUTME: Format comes from feed/hello; binary messages carry s16le chunks
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/minibae/minibae-stream/internal/version"
	"github.com/minibae/minibae-stream/pkg/audio"
	"github.com/minibae/minibae-stream/pkg/protocol"
)

// WebSocket receives chunks from a feed server
type WebSocket struct {
	client    *protocol.Client
	format    audio.Format
	malformed atomic.Int64
}

// DialWebSocket connects to a feed and completes the handshake. The feed's
// declared rate wins; fallbackRate is used when it declares none.
func DialWebSocket(url string, fallbackRate int) (*WebSocket, error) {
	client := protocol.NewClient(protocol.Config{
		URL:      url,
		ClientID: uuid.New().String(),
		Name:     version.Product,
		DeviceInfo: protocol.DeviceInfo{
			ProductName:     version.Product,
			Manufacturer:    version.Manufacturer,
			SoftwareVersion: version.Version,
		},
	})

	if err := client.Connect(context.Background()); err != nil {
		return nil, err
	}

	declared := client.Hello().Format
	if declared.Channels != 0 && declared.Channels != audio.Channels {
		client.Close()
		return nil, fmt.Errorf("feed carries %d channels, only stereo is supported", declared.Channels)
	}
	if declared.BitDepth != 0 && declared.BitDepth != 16 {
		client.Close()
		return nil, fmt.Errorf("feed carries %d-bit samples, only 16-bit is supported", declared.BitDepth)
	}

	rate := declared.SampleRate
	if rate == 0 {
		rate = fallbackRate
	}

	return &WebSocket{
		client: client,
		format: audio.PCM16(rate),
	}, nil
}

// Format returns the feed format
func (w *WebSocket) Format() audio.Format {
	return w.format
}

// Run delivers feed chunks until feed/end or until the connection drops
func (w *WebSocket) Run(ctx context.Context, emit ChunkFunc) error {
	stop := context.AfterFunc(ctx, w.client.Close)
	defer stop()

	for {
		msg, err := w.client.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			return err
		}

		// a payload with a half sample is dropped whole; an odd sample count is left for the session to reject
		chunk, err := audio.ChunkFromBytes(msg.Data)
		if errors.Is(err, audio.ErrOddLength) {
			if n := w.malformed.Add(1); n <= 5 {
				log.Printf("Dropped feed chunk at frame %d: %v", msg.Offset, err)
			}
			continue
		}
		if err != nil {
			return err
		}
		if err := emit(chunk); err != nil {
			return err
		}
	}
}

// Malformed returns how many feed chunks were dropped for not holding whole samples
func (w *WebSocket) Malformed() int64 {
	return w.malformed.Load()
}

// Close says goodbye and closes the connection
func (w *WebSocket) Close() error {
	if w.client.IsConnected() {
		w.client.SendGoodbye("shutdown")
	}
	w.client.Close()
	return nil
}
