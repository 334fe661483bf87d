package sim

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"geoactor-sim/internal/actor"
	"geoactor-sim/internal/telemetry"
)

// teaProgram abstracts bubbletea.Program for testing.
type teaProgram interface {
	Send(tea.Msg)
}

// logMsg carries a log line for the viewport.
type logMsg struct{ line string }

type snapshotMsg struct{ telemetry.Snapshot }

type terminatedMsg struct{ actor.Termination }

// adminMsg reports admin UI status.
type adminMsg struct{ active bool }

type setSpawnMsg struct{ fn func(int) error }

const (
	maxLogLines   = 500
	fieldsColumn  = 3
	tableMaxRows  = 12
	footerPadding = 4
)

// TUIWriter renders live actors using a bubbletea TUI.
type TUIWriter struct {
	program    teaProgram
	done       chan struct{}
	sendSignal atomic.Bool
}

// NewTUIWriter starts a bubbletea program and returns a TUIWriter. Quitting the
// UI interrupts the process so the simulation shuts down with it.
func NewTUIWriter(title string) *TUIWriter {
	w := &TUIWriter{done: make(chan struct{})}
	w.sendSignal.Store(true)
	p := tea.NewProgram(newTUIModel(title), tea.WithAltScreen())
	w.program = p
	go func() {
		_, _ = p.Run()
		close(w.done)
		if w.sendSignal.Load() {
			if proc, err := os.FindProcess(os.Getpid()); err == nil {
				_ = proc.Signal(os.Interrupt)
			}
		}
	}()
	return w
}

// Write implements SnapshotWriter.
func (w *TUIWriter) Write(_ context.Context, s telemetry.Snapshot) error {
	w.program.Send(snapshotMsg{s})
	return nil
}

// ActorTerminated removes the actor from the live table.
func (w *TUIWriter) ActorTerminated(t actor.Termination) {
	w.program.Send(terminatedMsg{t})
}

// SetAdminStatus shows whether the admin server is listening.
func (w *TUIWriter) SetAdminStatus(active bool) {
	w.program.Send(adminMsg{active: active})
}

// SetSpawner wires the "+" key to the fleet.
func (w *TUIWriter) SetSpawner(fn func(int) error) {
	w.program.Send(setSpawnMsg{fn: fn})
}

// LogWriter feeds each written line into the log viewport.
func (w *TUIWriter) LogWriter() io.Writer {
	return tuiLogWriter{program: w.program}
}

type tuiLogWriter struct{ program teaProgram }

func (l tuiLogWriter) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		l.program.Send(logMsg{line: line})
	}
	return len(p), nil
}

// Close stops the program without interrupting the process.
func (w *TUIWriter) Close() error {
	w.sendSignal.Store(false)
	if w.program != nil {
		w.program.Send(tea.Quit())
	}
	if w.done != nil {
		<-w.done
	}
	return nil
}

type tuiModel struct {
	title      string
	table      table.Model
	vp         viewport.Model
	actors     map[string]telemetry.Snapshot
	logs       []string
	received   int
	died       int
	wrap       bool
	autoscroll bool
	admin      bool
	help       bool
	width      int
	height     int
	spawn      func(int) error
}

func newTUIModel(title string) tuiModel {
	cols := []table.Column{
		{Title: "UUID", Width: 10},
		{Title: "Location", Width: 22},
		{Title: "Route (m)", Width: 10},
		{Title: "Fields", Width: 40},
	}
	return tuiModel{
		title:      title,
		table:      table.New(table.WithColumns(cols), table.WithHeight(2)),
		vp:         viewport.New(0, 0),
		actors:     make(map[string]telemetry.Snapshot),
		autoscroll: true,
	}
}

func (m tuiModel) Init() tea.Cmd { return nil }

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.table.SetWidth(msg.Width)
		m.vp.Width = msg.Width
		m.resizeFields()
		m.refreshTable()
		m.layout()
		m.refreshViewport()
	case snapshotMsg:
		m.received++
		m.actors[msg.Key()] = msg.Snapshot
		m.appendLog(formatSnapshotLine(msg.Snapshot))
		m.refreshTable()
		m.layout()
		m.refreshViewport()
	case terminatedMsg:
		delete(m.actors, msg.Key())
		if msg.Reason == actor.ReasonDied {
			m.died++
		}
		m.appendLog(fmt.Sprintf("%s actor %d terminated: %s after %d cycles, %dm%s",
			colorRed, msg.UUID, msg.Reason, msg.Cycles, msg.RouteLength, colorReset))
		m.refreshTable()
		m.layout()
		m.refreshViewport()
	case logMsg:
		m.appendLog(msg.line)
		m.refreshViewport()
	case adminMsg:
		m.admin = msg.active
	case setSpawnMsg:
		m.spawn = msg.fn
	case tea.KeyMsg:
		if m.help {
			switch msg.String() {
			case "?", "h", "esc":
				m.help = false
			}
			return m, nil
		}
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "w":
			m.wrap = !m.wrap
			m.refreshViewport()
			return m, nil
		case "s":
			m.autoscroll = !m.autoscroll
			if m.autoscroll {
				m.vp.GotoBottom()
			}
			return m, nil
		case "+":
			if m.spawn != nil {
				fn := m.spawn
				go func() { _ = fn(1) }()
			}
			return m, nil
		case "h", "?":
			m.help = true
			return m, nil
		}
		if !m.autoscroll {
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

func (m *tuiModel) appendLog(line string) {
	m.logs = append(m.logs, line)
	if len(m.logs) > maxLogLines {
		m.logs = m.logs[len(m.logs)-maxLogLines:]
	}
}

// resizeFields gives the free width to the fields column.
func (m *tuiModel) resizeFields() {
	cols := m.table.Columns()
	used := 0
	for i, c := range cols {
		if i != fieldsColumn {
			used += c.Width + 2
		}
	}
	if w := m.width - used - 2; w > 10 {
		cols[fieldsColumn].Width = w
		m.table.SetColumns(cols)
	}
}

func (m *tuiModel) refreshTable() {
	live := make([]telemetry.Snapshot, 0, len(m.actors))
	for _, s := range m.actors {
		live = append(live, s)
	}
	sort.Slice(live, func(i, j int) bool {
		if live[i].UUID != live[j].UUID {
			return live[i].UUID < live[j].UUID
		}
		return live[i].Key() < live[j].Key()
	})

	width := uint(m.table.Columns()[fieldsColumn].Width)
	rows := make([]table.Row, 0, len(live))
	for _, s := range live {
		rows = append(rows, table.Row{
			strconv.FormatInt(s.UUID, 10),
			s.Location.String(),
			strconv.FormatInt(s.RouteLength, 10),
			truncate.StringWithTail(formatFields(s.Fields), width, "…"),
		})
	}
	m.table.SetRows(rows)
	h := len(rows) + 1
	if h > tableMaxRows+1 {
		h = tableMaxRows + 1
	}
	m.table.SetHeight(h)
}

func (m *tuiModel) layout() {
	h := m.height - lipgloss.Height(m.renderHeader()) - lipgloss.Height(m.table.View()) - footerPadding
	if h < 0 {
		h = 0
	}
	m.vp.Height = h
}

func (m *tuiModel) refreshViewport() {
	lines := m.logs
	if m.wrap && m.vp.Width > 0 {
		lines = make([]string, len(m.logs))
		for i, l := range m.logs {
			lines[i] = wordwrap.String(l, m.vp.Width)
		}
	}
	m.vp.SetContent(strings.Join(lines, "\n"))
	if m.autoscroll {
		m.vp.GotoBottom()
	}
}

func (m tuiModel) View() string {
	if m.help {
		return m.renderHelp()
	}
	divider := strings.Repeat("─", m.width)
	return strings.Join([]string{
		m.renderHeader(),
		m.table.View(),
		divider,
		m.vp.View(),
		divider,
		m.renderBottom(),
	}, "\n")
}

var titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

func (m tuiModel) renderHeader() string {
	return titleStyle.Render(m.title) + fmt.Sprintf("  alive=%d died=%d snapshots=%d", len(m.actors), m.died, m.received)
}

func indicator(on bool) string {
	c := lipgloss.Color("9")
	if on {
		c = lipgloss.Color("10")
	}
	return lipgloss.NewStyle().Foreground(c).Render("●")
}

func (m tuiModel) renderBottom() string {
	return fmt.Sprintf("Admin UI %s | Wrap %s | Scroll %s | + spawn | ? help",
		indicator(m.admin), indicator(m.wrap), indicator(m.autoscroll))
}

func (m tuiModel) renderHelp() string {
	return strings.Join([]string{
		"Key Bindings:",
		" q  quit",
		" w  toggle wrap for the snapshot log",
		" s  toggle auto-scroll",
		" +  spawn one actor",
		" h/? toggle this help view",
		"",
		"When auto-scroll is disabled:",
		" j/k or up/down    scroll one line",
		" pgdown/pgup       scroll a page",
	}, "\n")
}

func formatFields(fields []telemetry.Value) string {
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", f.Name, f.Value))
	}
	return strings.Join(parts, " ")
}

func formatSnapshotLine(s telemetry.Snapshot) string {
	return fmt.Sprintf("%s[%s]%s %suuid=%d%s %sloc=%s%s %sroute=%dm%s",
		colorGray, s.EventTimestamp, colorReset,
		colorBlue, s.UUID, colorReset,
		colorGreen, s.Location, colorReset,
		colorYellow, s.RouteLength, colorReset)
}
