// ABOUTME: Bubbletea model for player TUI
// ABOUTME: Defines application state, session stats rendering and key handling
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("250"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("220"))

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	helpStyle = lipgloss.NewStyle().Faint(true)
)

// Model represents the TUI state
type Model struct {
	// Source
	source    string
	sessionID string
	backend   string

	// Stream
	codec      string
	sampleRate int
	channels   int
	bitDepth   int

	// Scheduling
	threshold    int
	safetyMargin time.Duration
	tail         string

	// Playback
	state  string
	volume int
	muted  bool
	err    string

	// Stats
	counters Counters

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64
	memSys     uint64

	volumeCtrl *VolumeControl
	quitting   bool

	// Dimensions
	width  int
	height int
}

// Counters are the running session and device numbers
type Counters struct {
	Chunks      int64
	Malformed   int64
	Blocks      int64
	Underruns   int64
	Buffered    int
	LeadTime    float64 // seconds of audio scheduled ahead of the device
	Position    float64 // device clock in seconds
	LateDropped int64
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping playback...\n"
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("miniBAE Stream Player"))
	b.WriteString("\n\n")

	b.WriteString(m.renderSource())
	b.WriteString(m.renderScheduling())
	b.WriteString(m.renderControls())
	b.WriteString(m.renderStats())

	if m.showDebug {
		b.WriteString(m.renderDebug())
	}

	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓:Volume  m:Mute  d:Debug  q:Quit"))
	b.WriteString("\n")

	return b.String()
}

func field(name, value string) string {
	return headerStyle.Render(name+": ") + valueStyle.Render(value) + "\n"
}

// renderSource renders what is playing and its format
func (m Model) renderSource() string {
	var b strings.Builder

	source := m.source
	if source == "" {
		source = "(none)"
	}
	b.WriteString(field("Source", truncate(source, 60)))

	if m.codec == "" {
		b.WriteString(field("Format", "waiting for engine"))
	} else {
		b.WriteString(field("Format", fmt.Sprintf("%s %dHz %s %d-bit",
			m.codec, m.sampleRate, channelName(m.channels), m.bitDepth)))
	}

	if m.backend != "" {
		b.WriteString(field("Output", m.backend))
	}
	if m.sessionID != "" {
		b.WriteString(field("Session", m.sessionID))
	}

	return b.String()
}

// renderScheduling renders the block size and latency settings
func (m Model) renderScheduling() string {
	if m.threshold == 0 {
		return ""
	}

	latency := ""
	if m.sampleRate > 0 {
		latency = fmt.Sprintf(" (%.0fms)", float64(m.threshold)/float64(m.sampleRate)*1000)
	}

	return field("Block", fmt.Sprintf("%d frames%s, margin %v, tail %s",
		m.threshold, latency, m.safetyMargin, m.tail))
}

// renderControls renders state and volume
func (m Model) renderControls() string {
	var b strings.Builder

	b.WriteString("\n")
	switch {
	case m.err != "":
		b.WriteString(headerStyle.Render("State: ") + errorStyle.Render("error: "+m.err) + "\n")
	default:
		b.WriteString(field("State", m.state))
	}

	muteIcon := ""
	if m.muted {
		muteIcon = " (muted)"
	}
	b.WriteString(field("Volume", fmt.Sprintf("[%s] %d%%%s", renderBar(m.volume, 100, 10), m.volume, muteIcon)))

	return b.String()
}

// renderStats renders session statistics
func (m Model) renderStats() string {
	c := m.counters
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(field("Position", formatSeconds(c.Position)))
	b.WriteString(field("Ahead", fmt.Sprintf("%.0fms scheduled, %d frames buffered", c.LeadTime*1000, c.Buffered)))
	b.WriteString(field("Chunks", fmt.Sprintf("%d in, %d blocks out", c.Chunks, c.Blocks)))

	problems := fmt.Sprintf("underruns %d  malformed %d  late %d", c.Underruns, c.Malformed, c.LateDropped)
	if c.Underruns > 0 || c.Malformed > 0 || c.LateDropped > 0 {
		b.WriteString(headerStyle.Render("Issues: ") + warnStyle.Render(problems) + "\n")
	} else {
		b.WriteString(field("Issues", problems))
	}

	return b.String()
}

// renderDebug renders runtime information
func (m Model) renderDebug() string {
	return "\n" + field("Goroutines", fmt.Sprintf("%d", m.goroutines)) +
		field("Memory", fmt.Sprintf("%.1f MB alloc, %.1f MB sys",
			float64(m.memAlloc)/1024/1024, float64(m.memSys)/1024/1024))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		if m.volumeCtrl != nil {
			select {
			case m.volumeCtrl.Quit <- QuitMsg{}:
			default:
			}
		}
		return m, tea.Quit
	case "up":
		if m.volume < 100 {
			m.volume = min(m.volume+5, 100)
			m.sendVolume()
		}
	case "down":
		if m.volume > 0 {
			m.volume = max(m.volume-5, 0)
			m.sendVolume()
		}
	case "m":
		m.muted = !m.muted
		m.sendVolume()
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// sendVolume forwards the current volume without blocking the UI
func (m Model) sendVolume() {
	if m.volumeCtrl == nil {
		return
	}
	select {
	case m.volumeCtrl.Changes <- VolumeChangeMsg{Volume: m.volume, Muted: m.muted}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Source != "" {
		m.source = msg.Source
	}
	if msg.SessionID != "" {
		m.sessionID = msg.SessionID
	}
	if msg.Backend != "" {
		m.backend = msg.Backend
	}
	if msg.Codec != "" {
		m.codec = msg.Codec
		m.sampleRate = msg.SampleRate
		m.channels = msg.Channels
		m.bitDepth = msg.BitDepth
	}
	if msg.Threshold != 0 {
		m.threshold = msg.Threshold
		m.safetyMargin = msg.SafetyMargin
		m.tail = msg.Tail
	}
	if msg.State != "" {
		m.state = msg.State
	}
	if msg.Err != "" {
		m.err = msg.Err
	}
	if msg.Volume != 0 {
		m.volume = msg.Volume
	}
	if msg.Counters != nil {
		m.counters = *msg.Counters
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
		m.memSys = msg.MemSys
	}
}

// StatusMsg updates TUI state; zero fields leave the current value alone
type StatusMsg struct {
	Source       string
	SessionID    string
	Backend      string
	Codec        string
	SampleRate   int
	Channels     int
	BitDepth     int
	Threshold    int
	SafetyMargin time.Duration
	Tail         string
	State        string
	Err          string
	Volume       int
	Counters     *Counters
	Goroutines   int
	MemAlloc     uint64
	MemSys       uint64
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func channelName(channels int) string {
	if channels == 1 {
		return "Mono"
	}
	return "Stereo"
}

func formatSeconds(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(100 * time.Millisecond)
	return d.String()
}
