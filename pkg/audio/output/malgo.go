// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo; the device callback pulls from the block timeline
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	*Timeline

	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{
		Timeline: NewTimeline(0),
	}
}

// Open initializes the output device with the specified rate
func (m *Malgo) Open(sampleRate int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// If already initialized with same format, reuse
	if m.device != nil && m.sampleRate == sampleRate {
		log.Printf("Audio output already initialized with same format, reusing device")
		m.Timeline.open(sampleRate)
		return nil
	}

	// If format changed, reinitialize
	if m.device != nil {
		log.Printf("Format change detected (%dHz -> %dHz), reinitializing device", m.sampleRate, sampleRate)
		m.closeDevice()
	}

	// Create malgo context if needed
	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.Timeline.open(sampleRate)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatF32
	deviceConfig.Playback.Channels = 2
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	onSamples := func(pOutputSample, pInputSamples []byte, frameCount uint32) {
		n := int(frameCount) * bytesPerFrame
		if n > len(pOutputSample) {
			n = len(pOutputSample)
		}
		m.Timeline.Read(pOutputSample[:n])
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onSamples,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate

	log.Printf("Audio output initialized: %dHz, 2 channels (malgo/F32)", sampleRate)

	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.Timeline.shutdown()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}

	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
}
