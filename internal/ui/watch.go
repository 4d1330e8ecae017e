package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// WatchScrollback is how many events the watch view keeps in memory.
const WatchScrollback = 500

// WatchEvent is one event row in the live watch view.
type WatchEvent struct {
	Time      time.Time
	Action    string
	Subsystem string
	Syspath   string
	Devnode   string
}

type watchEventMsg WatchEvent

type watchClosedMsg struct{}

// WatchModel is the interactive event viewer used by devtree-watch.
// Events arrive on a channel owned by the caller's pump goroutine; the
// model only renders them.
type WatchModel struct {
	source     <-chan WatchEvent
	subsystems []string

	events []WatchEvent
	total  int
	paused bool
	closed bool

	spinner spinner.Model
	width   int
	height  int
}

// NewWatchModel creates a watch view reading events from source.
func NewWatchModel(source <-chan WatchEvent, subsystems []string) WatchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(PrimaryColor)

	width, height := GetTerminalSize()
	return WatchModel{
		source:     source,
		subsystems: subsystems,
		spinner:    sp,
		width:      width,
		height:     height,
	}
}

func waitForWatchEvent(source <-chan WatchEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-source
		if !ok {
			return watchClosedMsg{}
		}
		return watchEventMsg(ev)
	}
}

// Init implements tea.Model
func (m WatchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForWatchEvent(m.source))
}

// Update implements tea.Model
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "p":
			m.paused = !m.paused
		case "c":
			m.events = nil
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case watchEventMsg:
		m.total++
		if !m.paused {
			m.events = append(m.events, WatchEvent(msg))
			if len(m.events) > WatchScrollback {
				m.events = m.events[len(m.events)-WatchScrollback:]
			}
		}
		return m, waitForWatchEvent(m.source)

	case watchClosedMsg:
		m.closed = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View implements tea.Model
func (m WatchModel) View() string {
	var b strings.Builder

	b.WriteString(m.renderStatusLine())
	b.WriteString("\n\n")

	rows := m.height - 4
	if rows < 1 {
		rows = 1
	}
	start := len(m.events) - rows
	if start < 0 {
		start = 0
	}
	for _, ev := range m.events[start:] {
		b.WriteString(m.renderEventLine(ev))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(TroubleshootingItemStyle.Render("  q quit · p pause · c clear"))
	return b.String()
}

func (m WatchModel) renderStatusLine() string {
	filter := "all subsystems"
	if len(m.subsystems) > 0 {
		filter = strings.Join(m.subsystems, ", ")
	}

	status := fmt.Sprintf("watching %s · %d events", filter, m.total)
	if m.paused {
		status += " · " + lipgloss.NewStyle().Foreground(WarningColor).Bold(true).Render("PAUSED")
	}

	return "  " + m.spinner.View() + " " + HeaderTitleStyle.Render("DEVICE EVENTS") + "  " +
		TroubleshootingItemStyle.Render(status)
}

func (m WatchModel) renderEventLine(ev WatchEvent) string {
	var b strings.Builder
	b.WriteString("  ")
	b.WriteString(TroubleshootingItemStyle.Render(ev.Time.Format("15:04:05")))
	b.WriteString(" ")
	b.WriteString(ActionStyle(ev.Action).Render(fmt.Sprintf("%-7s", ev.Action)))
	b.WriteString(" ")
	b.WriteString(SubsystemStyle.Render(fmt.Sprintf("%-10s", ev.Subsystem)))
	b.WriteString(" ")
	b.WriteString(SyspathStyle.Render(ev.Syspath))
	if ev.Devnode != "" {
		b.WriteString(" ")
		b.WriteString(DevnodeStyle.Render("(" + ev.Devnode + ")"))
	}
	return b.String()
}

// RunWatch runs the interactive watch view until the user quits or the
// event source closes.
func RunWatch(source <-chan WatchEvent, subsystems []string) error {
	p := tea.NewProgram(NewWatchModel(source, subsystems), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
