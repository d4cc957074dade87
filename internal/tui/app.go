package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fai-recorder/internal/app"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Model is the recorder widget: one toggle control, a timer line and a save
// control, all driven by events published by the session manager. The widget
// renders state transitions; it never owns session state itself.
type Model struct {
	app *app.Application

	status      app.Status
	elapsed     time.Duration
	chunks      int
	bytes       int
	acquiring   bool
	interrupted bool
	alert       string
	savedPath   string

	// artifact is the reference captured from the StoppedEvent. It outlives
	// the manager's single slot, so the previous recording stays saveable
	// until the next one finishes.
	artifact *app.Artifact

	keys        keyMap
	windowWidth int
	spinner     int
}

// New creates the widget. The interrupted notice reflects the continuity
// hint consumed at application construction.
func New(application *app.Application) *Model {
	return &Model{
		app:         application,
		status:      app.StatusIdle,
		interrupted: application.Interrupted != nil,
		keys:        defaultKeyMap(),
		windowWidth: 80,
	}
}

func (m *Model) Init() tea.Cmd {
	return m.waitForEvent()
}

// Messages.
type startedMsg struct{ err error }
type stopRequestedMsg struct{ err error }
type savedMsg struct {
	path string
	err  error
}
type coreEventMsg struct{ ev app.Event }
type spinMsg struct{}

// waitForEvent blocks on the manager's event stream; Update re-issues it
// after every received event.
func (m *Model) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return coreEventMsg{ev: <-m.app.Manager.Events()}
	}
}

// startSession acquires the microphone off the UI loop. The permission
// prompt (or device probe) can take a while; the widget stays responsive
// and spins until the attempt resolves.
func (m *Model) startSession() tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		return startedMsg{err: m.app.Manager.Start(ctx)}
	}
}

func (m *Model) stopSession() tea.Cmd {
	return func() tea.Msg {
		_, err := m.app.Manager.Stop()
		return stopRequestedMsg{err: err}
	}
}

func (m *Model) saveArtifact(a *app.Artifact) tea.Cmd {
	return func() tea.Msg {
		path, err := m.app.Exporter.Export(a)
		return savedMsg{path: path, err: err}
	}
}

func (m *Model) spinCmd() tea.Cmd {
	return tea.Tick(120*time.Millisecond, func(_ time.Time) tea.Msg {
		return spinMsg{}
	})
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit

		case key.Matches(msg, m.keys.Toggle):
			if m.acquiring {
				return m, nil
			}
			m.interrupted = false
			m.alert = ""
			m.savedPath = ""
			if m.status == app.StatusRecording {
				return m, m.stopSession()
			}
			m.acquiring = true
			m.spinner = 0
			return m, tea.Batch(m.startSession(), m.spinCmd())

		case key.Matches(msg, m.keys.Save):
			if m.artifact == nil {
				// Nothing finalized yet; ignored, not an error.
				return m, nil
			}
			return m, m.saveArtifact(m.artifact)
		}

	case startedMsg:
		m.acquiring = false
		if msg.err != nil {
			m.alert = alertFor(msg.err)
			return m, nil
		}
		m.status = app.StatusRecording
		m.elapsed = 0
		m.chunks = 0
		m.bytes = 0
		return m, nil

	case stopRequestedMsg:
		if msg.err != nil {
			m.alert = msg.err.Error()
		}
		return m, nil

	case savedMsg:
		if msg.err != nil {
			m.alert = fmt.Sprintf("save failed: %v", msg.err)
		} else if msg.path != "" {
			m.savedPath = msg.path
		}
		return m, nil

	case coreEventMsg:
		switch ev := msg.ev.(type) {
		case app.TickEvent:
			m.elapsed = ev.Elapsed
		case app.ChunkEvent:
			m.chunks = ev.Chunks
			m.bytes = ev.Bytes
		case app.StoppedEvent:
			m.status = app.StatusStopped
			m.elapsed = ev.Elapsed
			if ev.Artifact != nil {
				m.artifact = ev.Artifact
			}
			if ev.DeviceLost {
				m.alert = "microphone lost, session stopped"
			}
		}
		return m, m.waitForEvent()

	case spinMsg:
		if m.acquiring {
			m.spinner++
			return m, m.spinCmd()
		}
	}

	return m, nil
}

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("fai recorder"))
	b.WriteString("\n\n")

	switch {
	case m.acquiring:
		frame := spinnerFrames[m.spinner%len(spinnerFrames)]
		b.WriteString(mutedStyle.Render(fmt.Sprintf("%s waiting for microphone...", frame)))
	case m.status == app.StatusRecording:
		b.WriteString(recordingStyle.Render("● REC"))
		b.WriteString("  ")
		b.WriteString(timerStyle.Render(formatElapsed(m.elapsed)))
		if m.chunks > 0 {
			b.WriteString(mutedStyle.Render(fmt.Sprintf("   %d chunks · %s", m.chunks, formatBytes(m.bytes))))
		}
	case m.interrupted:
		b.WriteString(warnStyle.Render("previous session was interrupted"))
		b.WriteString("\n")
		b.WriteString(mutedStyle.Render("its audio could not be recovered; press " + m.keys.Toggle.Help().Key + " to start a new one"))
	case m.status == app.StatusStopped:
		b.WriteString(idleStyle.Render("■ stopped"))
		b.WriteString("  ")
		b.WriteString(timerStyle.Render(formatElapsed(m.elapsed)))
	default:
		b.WriteString(idleStyle.Render("press " + m.keys.Toggle.Help().Key + " to record"))
	}
	b.WriteString("\n")

	if m.artifact != nil {
		b.WriteString("\n")
		b.WriteString(saveStyle.Render(fmt.Sprintf("[%s] save recording (%s, %s)",
			m.keys.Save.Help().Key, formatBytes(len(m.artifact.Data)), strings.TrimPrefix(string(m.artifact.Container), "."))))
		b.WriteString("\n")
	}
	if m.savedPath != "" {
		b.WriteString(mutedStyle.Render("saved " + m.savedPath))
		b.WriteString("\n")
	}
	if m.alert != "" {
		b.WriteString("\n")
		b.WriteString(alertStyle.Render(m.alert))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(footerStyle.Render(m.footer()))
	b.WriteString("\n")
	return b.String()
}

// footer is the title/tooltip surface: it always names the action the
// toggle control would take right now.
func (m *Model) footer() string {
	toggle := "record"
	if m.status == app.StatusRecording {
		toggle = "stop"
	}
	parts := []string{fmt.Sprintf("%s %s", m.keys.Toggle.Help().Key, toggle)}
	if m.artifact != nil {
		parts = append(parts, m.keys.Save.Help().Key+" save")
	}
	parts = append(parts, m.keys.Quit.Help().Key+" quit")
	return strings.Join(parts, " · ")
}

// alertFor keeps permission and device failures explicit and user-facing;
// everything else degrades silently into the log.
func alertFor(err error) string {
	switch {
	case errors.Is(err, app.ErrPermissionDenied):
		return "microphone access denied, recording not started"
	case errors.Is(err, app.ErrDeviceUnavailable):
		return "no usable microphone found, recording not started"
	default:
		return err.Error()
	}
}

// formatElapsed renders floor(elapsed seconds) as MM:SS.
func formatElapsed(d time.Duration) string {
	secs := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}

func formatBytes(n int) string {
	switch {
	case n >= 1<<20:
		return fmt.Sprintf("%.1f MB", float64(n)/(1<<20))
	case n >= 1<<10:
		return fmt.Sprintf("%.0f KB", float64(n)/(1<<10))
	default:
		return fmt.Sprintf("%d B", n)
	}
}

// Styles.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFB86C"))

	recordingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))

	timerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F8F8F2"))

	idleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BD93F9"))

	saveStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#50FA7B"))

	warnStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F1FA8C"))

	alertStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF5555"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6272A4"))

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#44475A")).
			Italic(true)
)
