// ABOUTME: Producer that runs the playbae engine as a child process
// ABOUTME: Reads rendered PCM from its stdout and delivers it as chunks
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"sync"

	"github.com/minibae/minibae-stream/pkg/audio"
)

const (
	// EnvBinary overrides the playbae executable
	EnvBinary = "MINIBAE_PLAYBAE"

	// DefaultBinary is looked up on PATH when EnvBinary is unset
	DefaultBinary = "playbae"

	// DefaultReadSize is the pipe read size; the engine delivers whatever
	// the pipe holds, so chunk sizes vary
	DefaultReadSize = 4096

	bytesPerFrame = audio.Channels * 2
)

// ResolveBinary finds the playbae executable, falling back to the
// environment and then PATH.
func ResolveBinary(binary string) (string, error) {
	if binary == "" {
		binary = getenv(EnvBinary, DefaultBinary)
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return "", fmt.Errorf("playbae not found: %w (set %s)", err, EnvBinary)
	}
	return path, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Exec renders a file with playbae and streams its output
type Exec struct {
	binary   string
	args     Args
	format   audio.Format
	readSize int

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewExec validates the arguments and locates the engine binary
func NewExec(args Args) (*Exec, error) {
	if err := args.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine arguments: %w", err)
	}

	binary, err := ResolveBinary(args.Binary)
	if err != nil {
		return nil, err
	}

	// playbae prints status to stdout unless quiet, which would corrupt the PCM
	args.Output = "/dev/stdout"
	args.Quiet = true

	return &Exec{
		binary:   binary,
		args:     args,
		format:   audio.PCM16(sampleRateOr(args.MixerRate)),
		readSize: DefaultReadSize,
	}, nil
}

// Format returns the engine's output format
func (e *Exec) Format() audio.Format {
	return e.format
}

// Command returns the full engine command line
func (e *Exec) Command() []string {
	return append([]string{e.binary}, e.args.Build()...)
}

// Run starts playbae and delivers its output until it exits
func (e *Exec) Run(ctx context.Context, emit ChunkFunc) error {
	cmd := exec.CommandContext(ctx, e.binary, e.args.Build()...)
	cmd.Stderr = log.Writer()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to get playbae stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start playbae: %w", err)
	}

	e.mu.Lock()
	e.cmd = cmd
	e.mu.Unlock()

	log.Printf("Started playbae (pid %d): %v", cmd.Process.Pid, e.args.Build())

	pumpErr := pumpPCM(ctx, stdout, e.readSize, &headerStripper{}, e.format, emit)
	if pumpErr != nil {
		// unblock the engine if we stopped reading early
		cmd.Process.Kill()
	}
	waitErr := cmd.Wait()

	switch {
	case ctx.Err() != nil:
		return ctx.Err()
	case pumpErr != nil:
		return pumpErr
	case waitErr != nil:
		return fmt.Errorf("playbae exited: %w", waitErr)
	}
	return nil
}

// Close stops a running engine process
func (e *Exec) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cmd != nil && e.cmd.Process != nil && e.cmd.ProcessState == nil {
		if err := e.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			return err
		}
	}
	return nil
}

// pumpPCM reads s16le stereo bytes and emits every whole frame as soon as
// it arrives. Bytes of a split frame wait for the next read.
func pumpPCM(ctx context.Context, r io.Reader, readSize int, header *headerStripper, format audio.Format, emit ChunkFunc) error {
	buf := make([]byte, readSize)
	var carry []byte
	warned := false

	deliver := func(data []byte) error {
		if len(carry) > 0 {
			data = append(carry, data...)
			carry = nil
		}
		whole := len(data) - len(data)%bytesPerFrame
		if whole < len(data) {
			carry = append([]byte(nil), data[whole:]...)
		}
		if whole == 0 {
			return nil
		}
		chunk, err := audio.ChunkFromBytes(data[:whole])
		if err != nil {
			return err
		}
		return emit(chunk)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			data := buf[:n]
			if header != nil {
				var err error
				if data, err = header.Feed(data); err != nil {
					return err
				}
				if !warned && header.Info() != nil && header.Info().SampleRate != format.SampleRate {
					log.Printf("Engine declares %d Hz but stream is configured for %d Hz", header.Info().SampleRate, format.SampleRate)
					warned = true
				}
			}
			if err := deliver(data); err != nil {
				return err
			}
		}

		if readErr == io.EOF {
			if header != nil {
				if err := deliver(header.Flush()); err != nil {
					return err
				}
			}
			if len(carry) > 0 {
				log.Printf("Discarding %d bytes of a partial frame at end of stream", len(carry))
			}
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("failed to read PCM: %w", readErr)
		}
	}
}
