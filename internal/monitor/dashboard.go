package monitor

import (
	"fmt"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30
)

// Model is the BubbleTea dashboard model.
type Model struct {
	logDir   string
	interval time.Duration

	path     string
	offset   int64
	snapshot *Snapshot

	// Ring buffers for the sparklines: new calls and errors per tick.
	callHistory  []float64
	errorHistory []float64
	lastCalls    int
	lastErrors   int

	lastUpdate time.Time
	err        error
	quitting   bool

	errorProgress progress.Model
}

// Lipgloss styles (k9s-inspired color scheme)
var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("0")).
			Background(lipgloss.Color("51")).
			Bold(true).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true).
			MarginTop(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("45"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	healthyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("46")).
			Bold(true)

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("226")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	containerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(1, 2)

	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			MarginTop(1)

	footerKeyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51")).
			Bold(true)

	sparklineStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("51"))
)

// NewModel creates a dashboard model tailing the newest session log
// under logDir.
func NewModel(logDir string, interval time.Duration) Model {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return Model{
		logDir:   logDir,
		interval: interval,
		snapshot: NewSnapshot(),
		errorProgress: progress.New(
			progress.WithGradient("#00ff00", "#ff0000"),
			progress.WithWidth(40),
		),
		callHistory:  make([]float64, 0, historySize),
		errorHistory: make([]float64, 0, historySize),
	}
}

func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}
	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	return sparklineStyle.Render(spark.View())
}

func getStatusBadge(errors int) string {
	if errors == 0 {
		return healthyStyle.Render("✓ HEALTHY")
	}
	if errors < 5 {
		return warningStyle.Render("⚠ WARN")
	}
	return errorStyle.Render("✗ ERROR")
}

// Message types
type tickMsg time.Time

type tailMsg struct {
	path    string
	offset  int64
	entries []Entry
}

type errMsg error

// Init starts the tick loop and the first read.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tick(m.interval),
		readLog(m.logDir, m.path, m.offset),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// readLog reads new entries from the newest session log. When the
// server rolls to a new session file the tail restarts from zero.
func readLog(logDir, current string, offset int64) tea.Cmd {
	return func() tea.Msg {
		path, err := LatestSessionLog(logDir)
		if err != nil {
			return errMsg(err)
		}
		if path != current {
			offset = 0
		}
		entries, next, err := ReadEntries(path, offset)
		if err != nil {
			return errMsg(err)
		}
		return tailMsg{path: path, offset: next, entries: entries}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		case "r":
			return m, readLog(m.logDir, m.path, m.offset)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.interval),
			readLog(m.logDir, m.path, m.offset),
		)

	case tailMsg:
		if msg.path != m.path {
			// New session: start aggregation over.
			m.snapshot = NewSnapshot()
			m.lastCalls = 0
			m.lastErrors = 0
		}
		m.path = msg.path
		m.offset = msg.offset
		m.snapshot.Fold(msg.entries)

		calls := m.snapshot.TotalCalls()
		errors := m.snapshot.TotalErrors()
		m.callHistory = appendToHistory(m.callHistory, float64(calls-m.lastCalls))
		m.errorHistory = appendToHistory(m.errorHistory, float64(errors-m.lastErrors))
		m.lastCalls = calls
		m.lastErrors = errors

		m.lastUpdate = time.Now()
		m.err = nil
		return m, nil

	case errMsg:
		m.err = error(msg)
		return m, nil
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.err != nil {
		return m.renderError()
	}
	return m.renderDashboard()
}

func (m Model) renderError() string {
	header := headerStyle.Render(" gandalf Monitor ")

	var content string
	content += "\n"
	content += errorStyle.Render("⚠ Cannot read session logs") + "\n"
	content += "\n"
	content += dimStyle.Render("Dir: ") + valueStyle.Render(m.logDir) + "\n"
	content += dimStyle.Render("Error: ") + errorStyle.Render(m.err.Error()) + "\n"
	content += "\n"
	content += dimStyle.Render("Run the server at least once so a session log exists.") + "\n"
	content += "\n"
	content += footerStyle.Render("[q] quit  [r] retry") + "\n"

	return containerStyle.Render(header + "\n" + content)
}

func (m Model) renderDashboard() string {
	var content string

	lastUpdateStr := "Never"
	if !m.lastUpdate.IsZero() {
		lastUpdateStr = m.lastUpdate.Format("3:04:05 PM")
	}

	var sessionSpan int64
	if !m.snapshot.FirstEntry.IsZero() {
		sessionSpan = int64(m.snapshot.LastEntry.Sub(m.snapshot.FirstEntry).Seconds())
	}

	header := headerStyle.Render(" gandalf Monitor ")
	headerLine := fmt.Sprintf("%s   %s %s   %s %s   %s",
		getStatusBadge(m.snapshot.TotalErrors()),
		dimStyle.Render("Session:"),
		valueStyle.Render(orDash(m.snapshot.SessionID)),
		dimStyle.Render("Span:"),
		valueStyle.Render(FormatDuration(sessionSpan)),
		dimStyle.Render(lastUpdateStr))

	content += header + "\n"
	content += headerLine + "\n"

	// Tool calls section
	content += "\n" + sectionStyle.Render("┃ Tool Calls") + "\n"

	callSparkline := createSparkline(m.callHistory)
	content += labelStyle.Render("  Total: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.snapshot.TotalCalls())) +
		"   " + callSparkline + "\n"

	for _, st := range m.snapshot.SortedTools() {
		line := fmt.Sprintf("  %-34s %4d calls  avg %s",
			st.Name, st.Calls, FormatLatency(st.AvgDur()))
		if st.Errors > 0 {
			line += "  " + errorStyle.Render(fmt.Sprintf("%d err", st.Errors))
		}
		content += dimStyle.Render(line) + "\n"
	}

	// Errors section
	content += "\n" + sectionStyle.Render("┃ Errors") + "\n"

	errSparkline := createSparkline(m.errorHistory)
	content += labelStyle.Render("  Failed: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.snapshot.TotalErrors())) +
		"  " + errSparkline + "\n"

	errRatio := 0.0
	if calls := m.snapshot.TotalCalls(); calls > 0 {
		errRatio = float64(m.snapshot.TotalErrors()) / float64(calls)
	}
	content += labelStyle.Render("  Rate: ") +
		m.errorProgress.ViewAs(errRatio) +
		" " + dimStyle.Render(FormatPercentage(errRatio)) + "\n"

	// Log levels section
	content += "\n" + sectionStyle.Render("┃ Log Levels") + "\n"
	content += labelStyle.Render("  Entries: ") +
		valueStyle.Render(fmt.Sprintf("%d", m.snapshot.Entries)) + "\n"
	for _, level := range []string{"info", "warn", "error"} {
		if n := m.snapshot.Levels[level]; n > 0 {
			content += dimStyle.Render(fmt.Sprintf("  %-7s %d", level, n)) + "\n"
		}
	}

	footer := footerKeyStyle.Render("[q]") + footerStyle.Render(" quit  ") +
		footerKeyStyle.Render("[r]") + footerStyle.Render(" refresh  ") +
		footerStyle.Render(fmt.Sprintf("Auto: %v", m.interval))
	content += "\n" + footer

	return containerStyle.Render(content)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
