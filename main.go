// ABOUTME: Entry point for the miniBAE stream player
// ABOUTME: Parses CLI flags and plays an input through the block scheduler
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/minibae/minibae-stream/internal/app"
	"github.com/minibae/minibae-stream/internal/ui"
	"github.com/minibae/minibae-stream/internal/version"
	"github.com/minibae/minibae-stream/pkg/audio/output"
	"github.com/minibae/minibae-stream/pkg/engine"
	"github.com/minibae/minibae-stream/pkg/playback"
	tea "github.com/charmbracelet/bubbletea"
)

var (
	input        = flag.String("input", "", "Input file, ws:// feed URL, or \"tone\"")
	fileType     = flag.String("type", "", "Input type for playbae: wav, aif, rmf, mid (default: from extension)")
	patches      = flag.String("patches", "", "Patch bank for playbae (default: "+engine.DefaultPatches+")")
	binary       = flag.String("engine", "", "playbae binary (default: $"+engine.EnvBinary+" or "+engine.DefaultBinary+")")
	mixerRate    = flag.Int("rate", 0, "Engine mixer rate in Hz (default 44100)")
	reverb       = flag.Int("reverb", 0, "Engine reverb type (0-11)")
	loops        = flag.Int("loops", 0, "Engine loop count")
	timeLimit    = flag.Int("time-limit", engine.DefaultTimeLimit, "Engine time limit in seconds")
	threshold    = flag.Int("threshold", playback.DefaultThreshold, "Frames per playback block")
	safetyMargin = flag.Duration("safety-margin", playback.DefaultSafetyMargin, "Lookahead when (re)starting the schedule")
	tail         = flag.String("tail", "pad", "Final partial block: pad, drop or short")
	backend      = flag.String("output", "oto", "Output backend: "+strings.Join(output.Backends, " or "))
	volume       = flag.Int("volume", 100, "Initial volume (0-100)")
	discover     = flag.Bool("discover", false, "Find a chunk feed on the network when no input is given")
	jitterMin    = flag.Int("jitter-min", 0, "Smallest jittered chunk in frames (with -jitter-max)")
	jitterMax    = flag.Int("jitter-max", 0, "Largest jittered chunk in frames; 0 disables jitter")
	jitterDelay  = flag.Duration("jitter-delay", 0, "Largest delay between jittered chunks")
	jitterSeed   = flag.Uint64("jitter-seed", 1, "Seed for chunk jitter")
	logFile      = flag.String("log-file", "minibae-stream.log", "Log file path")
	noTUI        = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	showVersion  = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	if *input == "" && flag.NArg() > 0 {
		*input = flag.Arg(0)
	}
	if *input == "" && !*discover {
		fmt.Fprintln(os.Stderr, "usage: minibae-stream [flags] <input>")
		flag.PrintDefaults()
		os.Exit(2)
	}

	useTUI := !*noTUI

	// Set up logging
	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s", version.String())

	tailPolicy, err := playback.ParseTailPolicy(*tail)
	if err != nil {
		log.Fatalf("Invalid -tail: %v", err)
	}

	config := app.Config{
		Engine: engine.Args{
			Binary:    *binary,
			Input:     *input,
			Type:      *fileType,
			Patches:   *patches,
			TimeLimit: *timeLimit,
			MixerRate: *mixerRate,
			Loops:     *loops,
			Reverb:    *reverb,
		},
		Playback: playback.Config{
			Threshold:    *threshold,
			SafetyMargin: *safetyMargin,
			Tail:         tailPolicy,
		},
		Backend:  *backend,
		Volume:   *volume,
		Discover: *discover,
		Jitter: app.JitterConfig{
			MinFrames: max(*jitterMin, 1),
			MaxFrames: *jitterMax,
			MaxDelay:  *jitterDelay,
			Seed:      *jitterSeed,
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	player := app.New(config)
	if err := player.Start(ctx); err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer func() {
		if err := player.Close(); err != nil {
			log.Printf("Error closing player: %v", err)
		}
	}()

	// TUI setup
	var tuiProg *tea.Program
	var volumeCtrl *ui.VolumeControl

	if useTUI {
		volumeCtrl = ui.NewVolumeControl()
		tuiProg, err = ui.Run(volumeCtrl)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go tuiProg.Run()
		defer tuiProg.Quit()

		go handleVolumeControl(ctx, cancel, player, volumeCtrl)
		go statsUpdateLoop(ctx, player, tuiProg.Send)

		session := player.Session()
		sc := session.Config()
		tuiProg.Send(ui.StatusMsg{
			Source:       player.Source(),
			SessionID:    session.ID(),
			Backend:      *backend,
			Codec:        "pcm",
			SampleRate:   sc.SampleRate,
			Channels:     2,
			BitDepth:     16,
			Threshold:    sc.Threshold,
			SafetyMargin: sc.SafetyMargin,
			Tail:         sc.Tail.String(),
			Volume:       *volume,
		})
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := player.Play(ctx); err != nil {
		log.Printf("Playback error: %v", err)
		if tuiProg != nil {
			tuiProg.Send(ui.StatusMsg{State: app.StateFailed, Err: err.Error()})
			// Leave the error on screen until the user quits
			<-ctx.Done()
		}
		return
	}

	log.Printf("Player stopped")
}

// handleVolumeControl processes volume changes from TUI
func handleVolumeControl(ctx context.Context, stop context.CancelFunc, player *app.Player, volumeCtrl *ui.VolumeControl) {
	for {
		select {
		case vol := <-volumeCtrl.Changes:
			log.Printf("Volume change: %d%%, muted=%v", vol.Volume, vol.Muted)
			player.SetVolume(vol.Volume)
			player.Mute(vol.Muted)
		case <-volumeCtrl.Quit:
			log.Printf("Received quit signal from TUI")
			stop()
			return
		case <-ctx.Done():
			return
		}
	}
}

// statsUpdateLoop periodically updates TUI with playback statistics
func statsUpdateLoop(ctx context.Context, player *app.Player, send func(tea.Msg)) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats to avoid GC pauses
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc, lastMemSys uint64

	for {
		select {
		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = m.Alloc
			lastMemSys = m.Sys

		case <-ticker.C:
			stats := player.Stats()

			send(ui.StatusMsg{
				SessionID: stats.Session.SessionID,
				State:     stats.State,
				Counters: &ui.Counters{
					Chunks:      stats.Session.Chunks,
					Malformed:   stats.Session.Malformed,
					Blocks:      stats.Session.Blocks,
					Underruns:   stats.Session.Underruns,
					Buffered:    stats.Session.BufferedFrames,
					LeadTime:    stats.Session.LeadTime,
					Position:    stats.Output.Position,
					LateDropped: stats.Output.Dropped,
				},
				Goroutines: lastGoroutines,
				MemAlloc:   lastMemAlloc,
				MemSys:     lastMemSys,
			})

		case <-ctx.Done():
			return
		}
	}
}
