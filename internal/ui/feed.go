// ABOUTME: Feed server TUI for displaying connected players and stats
// ABOUTME: Real-time feed status display using bubbletea
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var clientHeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("220"))

// FeedTUI manages the feed server TUI
type FeedTUI struct {
	program  *tea.Program
	updates  chan FeedStatus
	quitChan chan struct{} // Signal to stop the feed
}

// FeedStatus holds feed state for the TUI
type FeedStatus struct {
	Name       string
	Port       int
	Source     string
	SampleRate int
	Frames     int64
	Clients    []FeedClientInfo
}

// FeedClientInfo holds player information for display
type FeedClientInfo struct {
	Name    string
	ID      string
	Dropped int64
}

// feedModel is the bubbletea model for the feed TUI
type feedModel struct {
	status    FeedStatus
	startTime time.Time
	quitting  bool
	quitChan  chan struct{}
}

type tickMsg time.Time
type feedStatusMsg FeedStatus

func (m feedModel) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m feedModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			select {
			case m.quitChan <- struct{}{}:
			default:
			}
			return m, tea.Quit
		}

	case tickMsg:
		return m, tickEvery()

	case feedStatusMsg:
		m.status = FeedStatus(msg)
	}

	return m, nil
}

func (m feedModel) View() string {
	if m.quitting {
		return "Shutting down feed...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("miniBAE Chunk Feed"))
	b.WriteString("\n\n")

	b.WriteString(field("Feed", m.status.Name))
	b.WriteString(field("Port", fmt.Sprintf("%d", m.status.Port)))
	b.WriteString(field("Uptime", time.Since(m.startTime).Round(time.Second).String()))
	b.WriteString(field("Source", truncate(m.status.Source, 60)))

	position := "0s"
	if m.status.SampleRate > 0 {
		position = formatSeconds(float64(m.status.Frames) / float64(m.status.SampleRate))
	}
	b.WriteString(field("Position", fmt.Sprintf("%s (%d frames)", position, m.status.Frames)))
	b.WriteString("\n")

	b.WriteString(clientHeaderStyle.Render(fmt.Sprintf("Connected Players (%d)", len(m.status.Clients))))
	b.WriteString("\n\n")

	if len(m.status.Clients) == 0 {
		b.WriteString(valueStyle.Render("  No players connected"))
		b.WriteString("\n")
	} else {
		for _, client := range m.status.Clients {
			b.WriteString(fmt.Sprintf("  • %s", client.Name))
			b.WriteString(valueStyle.Render(fmt.Sprintf(" (%s)", client.ID)))
			if client.Dropped > 0 {
				b.WriteString(warnStyle.Render(fmt.Sprintf(" %d chunks dropped", client.Dropped)))
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("Press 'q' or Ctrl+C to quit"))

	return b.String()
}

// NewFeedTUI creates a new feed TUI showing the initial status
func NewFeedTUI(status FeedStatus) *FeedTUI {
	t := &FeedTUI{
		updates:  make(chan FeedStatus, 10),
		quitChan: make(chan struct{}, 1),
	}

	m := feedModel{
		status:    status,
		startTime: time.Now(),
		quitChan:  t.quitChan,
	}
	t.program = tea.NewProgram(m, tea.WithAltScreen())

	return t
}

// Start runs the TUI until it quits
func (t *FeedTUI) Start() error {
	go func() {
		for status := range t.updates {
			t.program.Send(feedStatusMsg(status))
		}
	}()

	_, err := t.program.Run()
	return err
}

// Update sends a status update to the TUI
func (t *FeedTUI) Update(status FeedStatus) {
	select {
	case t.updates <- status:
	default:
		// Don't block if channel is full
	}
}

// Stop stops the TUI
func (t *FeedTUI) Stop() {
	t.program.Quit()
	close(t.updates)
}

// QuitChan returns the channel that signals when user wants to quit
func (t *FeedTUI) QuitChan() <-chan struct{} {
	return t.quitChan
}
