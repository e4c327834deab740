// ABOUTME: Entry point for the chunk feed server
// ABOUTME: Parses CLI flags, opens a producer and broadcasts it to players
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/minibae/minibae-stream/internal/ui"
	"github.com/minibae/minibae-stream/internal/version"
	"github.com/minibae/minibae-stream/pkg/engine"
	"github.com/minibae/minibae-stream/pkg/feed"
)

var (
	port      = flag.Int("port", feed.DefaultPort, "WebSocket server port")
	name      = flag.String("name", "", "Feed friendly name (default: hostname-minibae-feed)")
	logFile   = flag.String("log-file", "minibae-feed.log", "Log file path")
	noMDNS    = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	input     = flag.String("input", engine.ToneInput, "File to render (MIDI, RMF, WAV, AIFF via playbae; MP3, FLAC, Opus decoded) or \"tone\"")
	fileType  = flag.String("type", "", "Engine input type: wav, aif, rmf, mid (default: from extension)")
	patches   = flag.String("patches", "", "Patch bank for playbae (default: patches.hsb)")
	mixerRate = flag.Int("rate", 0, "Engine mixer rate in Hz (default: 44100)")
	reverb    = flag.Int("reverb", 0, "playbae reverb preset 0-11")
	loops     = flag.Int("loops", 0, "Times to loop the file")
	useTUI    = flag.Bool("tui", false, "Show connected players in a TUI instead of streaming logs")
)

func main() {
	flag.Parse()

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer f.Close()

	if *useTUI {
		log.SetOutput(f)
	} else {
		multiWriter := io.MultiWriter(os.Stdout, f)
		log.SetOutput(multiWriter)
	}

	feedName := *name
	if feedName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		feedName = fmt.Sprintf("%s-minibae-feed", hostname)
	}

	log.Printf("Starting %s: %s on port %d", version.String(), feedName, *port)
	log.Printf("Logging to: %s", *logFile)

	producer, err := engine.Open(engine.Args{
		Input:     *input,
		Type:      *fileType,
		Patches:   *patches,
		MixerRate: *mixerRate,
		Reverb:    *reverb,
		Loops:     *loops,
	})
	if err != nil {
		log.Fatalf("Failed to open input: %v", err)
	}
	defer producer.Close()

	srv := feed.New(feed.Config{
		Port:       *port,
		Name:       feedName,
		Source:     *input,
		EnableMDNS: !*noMDNS,
	}, engine.NewRealtime(producer, engine.DefaultLead))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("Received %v signal, shutting down gracefully...", sig)
		srv.Stop()
	}()

	if *useTUI {
		tui := ui.NewFeedTUI(ui.FeedStatus{Name: feedName, Port: *port, Source: *input})
		stopUpdates := make(chan struct{})
		updatesDone := make(chan struct{})

		go func() {
			<-tui.QuitChan()
			srv.Stop()
		}()
		go func() {
			defer close(updatesDone)
			statusLoop(srv, feedName, *port, *input, tui, stopUpdates)
		}()
		go func() {
			if err := tui.Start(); err != nil {
				log.Printf("TUI error: %v", err)
			}
		}()
		defer func() {
			close(stopUpdates)
			<-updatesDone
			tui.Stop()
		}()
	}

	if err := srv.Start(); err != nil {
		log.Fatalf("Feed error: %v", err)
	}

	log.Printf("Feed stopped")
}

// statusLoop pushes feed position and connected players to the TUI
func statusLoop(srv *feed.Server, name string, port int, source string, tui *ui.FeedTUI, stop <-chan struct{}) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			clients := srv.Clients()
			infos := make([]ui.FeedClientInfo, 0, len(clients))
			for _, c := range clients {
				infos = append(infos, ui.FeedClientInfo{Name: c.Name, ID: c.ID, Dropped: c.Dropped()})
			}

			tui.Update(ui.FeedStatus{
				Name:       name,
				Port:       port,
				Source:     source,
				SampleRate: srv.Format().SampleRate,
				Frames:     srv.Frames(),
				Clients:    infos,
			})
		case <-stop:
			return
		}
	}
}
