package traceview

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mattjoyce/saucer/trace"
)

// Source is where recorded runs come from. *trace.Store satisfies it.
type Source interface {
	Runs(ctx context.Context) ([]trace.Run, error)
	Records(ctx context.Context, runID string) ([]trace.Record, error)
}

type screen int

const (
	screenRuns screen = iota
	screenRecords
)

// kinds cycles with the f key; "" shows everything.
var kinds = []string{"", "effect", "message", "self_message"}

type runsMsg []trace.Run

type recordsMsg struct {
	runID   string
	records []trace.Record
}

type errMsg error

// Model lists runs and steps through one run's observations.
type Model struct {
	src   Source
	theme Theme

	width  int
	height int

	screen  screen
	runs    []trace.Run
	runID   string
	records []trace.Record
	visible []trace.Record
	filter  int

	runTable    table.Model
	recordTable table.Model
	detail      viewport.Model

	lastError string
}

// New creates the viewer. A non-empty runID opens that run directly.
func New(src Source, runID string) *Model {
	return &Model{
		src:         src,
		theme:       NewDefaultTheme(),
		runID:       runID,
		runTable:    newTable([]table.Column{{Title: "Run", Width: 36}, {Title: "Program", Width: 16}, {Title: "Started", Width: 20}, {Title: "Obs", Width: 6}, {Title: "Dropped", Width: 7}}),
		recordTable: newTable([]table.Column{{Title: "Seq", Width: 6}, {Title: "Kind", Width: 12}, {Title: "Plugin", Width: 12}, {Title: "Data", Width: 48}}),
		detail:      viewport.New(80, 6),
	}
}

func newTable(cols []table.Column) table.Model {
	t := table.New(table.WithColumns(cols), table.WithFocused(true), table.WithHeight(12))
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(lipgloss.Color("240")).
		BorderBottom(true).
		Bold(false)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("229")).
		Background(lipgloss.Color("57")).
		Bold(false)
	t.SetStyles(s)
	return t
}

func (m Model) Init() tea.Cmd {
	if m.runID != "" {
		return m.loadRecords(m.runID)
	}
	return m.loadRuns()
}

func (m Model) loadRuns() tea.Cmd {
	return func() tea.Msg {
		runs, err := m.src.Runs(context.Background())
		if err != nil {
			return errMsg(err)
		}
		return runsMsg(runs)
	}
}

func (m Model) loadRecords(runID string) tea.Cmd {
	return func() tea.Msg {
		records, err := m.src.Records(context.Background(), runID)
		if err != nil {
			return errMsg(err)
		}
		return recordsMsg{runID: runID, records: records}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.screen == screenRuns {
				if i := m.runTable.Cursor(); i >= 0 && i < len(m.runs) {
					return m, m.loadRecords(m.runs[i].ID)
				}
			}
		case "esc", "backspace":
			if m.screen == screenRecords {
				m.screen = screenRuns
				return m, m.loadRuns()
			}
		case "f":
			if m.screen == screenRecords {
				m.filter = (m.filter + 1) % len(kinds)
				m.applyFilter()
				return m, nil
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.runTable.SetWidth(m.width - 6)
		m.recordTable.SetWidth(m.width - 6)
		m.detail.Width = m.width - 6
		m.detail.Height = max(m.height/4, 3)

	case runsMsg:
		m.runs = msg
		rows := make([]table.Row, len(m.runs))
		for i, r := range m.runs {
			rows[i] = table.Row{r.ID, r.Program, r.StartedAt.Format("2006-01-02 15:04:05"), strconv.Itoa(r.Observations), strconv.Itoa(r.Dropped)}
		}
		m.runTable.SetRows(rows)
		m.lastError = ""
		return m, nil

	case recordsMsg:
		m.screen = screenRecords
		m.runID = msg.runID
		m.records = msg.records
		m.applyFilter()
		m.lastError = ""
		return m, nil

	case errMsg:
		m.lastError = msg.Error()
		return m, nil
	}

	if m.screen == screenRecords {
		m.recordTable, cmd = m.recordTable.Update(msg)
		m.showDetail()
		return m, cmd
	}
	m.runTable, cmd = m.runTable.Update(msg)
	return m, cmd
}

func (m *Model) applyFilter() {
	want := kinds[m.filter]
	m.visible = nil
	rows := make([]table.Row, 0, len(m.records))
	for _, r := range m.records {
		if want != "" && r.Kind != want {
			continue
		}
		m.visible = append(m.visible, r)
		rows = append(rows, table.Row{strconv.FormatUint(r.Seq, 10), r.Kind, r.Plugin, oneLine(r.Data)})
	}
	m.recordTable.SetRows(rows)
	m.recordTable.SetCursor(0)
	m.showDetail()
}

func (m *Model) showDetail() {
	i := m.recordTable.Cursor()
	if i < 0 || i >= len(m.visible) {
		m.detail.SetContent("")
		return
	}
	r := m.visible[i]
	m.detail.SetContent(fmt.Sprintf("#%d %s %s at %s\n\n%s", r.Seq, r.Kind, r.Plugin, r.At.Format("15:04:05.000000"), r.Data))
}

func oneLine(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) > 120 {
		return s[:117] + "..."
	}
	return s
}

func (m Model) View() string {
	if m.width == 0 {
		return "Loading trace..."
	}

	var body string
	var help string
	if m.screen == screenRuns {
		body = m.theme.Border.Width(m.width - 4).Render(lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Title.Render(fmt.Sprintf("Runs (%d)", len(m.runs))),
			m.runTable.View(),
		))
		help = " [q] Quit • [↑/↓] Select • [enter] Open"
	} else {
		filter := kinds[m.filter]
		if filter == "" {
			filter = "all"
		}
		title := fmt.Sprintf("Run %s: %s (%d of %d)", m.runID, m.theme.kind(kinds[m.filter]).Render(filter), len(m.visible), len(m.records))
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.theme.Border.Width(m.width-4).Render(lipgloss.JoinVertical(lipgloss.Left, m.theme.Title.Render(title), m.recordTable.View())),
			m.theme.Border.Width(m.width-4).Render(m.detail.View()),
		)
		help = " [q] Quit • [↑/↓] Step • [f] Filter kind • [esc] Runs"
	}

	parts := []string{body}
	if m.lastError != "" {
		parts = append(parts, m.theme.Error.Render(" ⚠ "+m.lastError))
	}
	parts = append(parts, m.theme.Dim.Render(help))
	return lipgloss.NewStyle().Margin(1, 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}
