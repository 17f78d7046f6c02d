// Package statsui provides the Bubble Tea stats interface.
package statsui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/stats"
)

const (
	tabOverview = iota
	tabOperations
	tabSessions
)

const (
	plotHeight  = 10
	loadTimeout = time.Minute
)

type reportMsg struct {
	report stats.Report
	err    error
}

// Model implements the Bubble Tea stats UI.
type Model struct {
	src    stats.SessionSource
	cfg    model.StatsConfig
	origin string

	report  stats.Report
	loading bool
	errMsg  string

	tabs      []string
	activeTab int
	overview  viewport.Model
	opTable   table.Model
	sessTable table.Model

	width  int
	height int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	filterError  string
}

// NewModel constructs a stats UI reading from src. origin names the source in the header.
func NewModel(src stats.SessionSource, cfg model.StatsConfig, origin string) *Model {
	m := &Model{
		src:     src,
		cfg:     cfg,
		origin:  origin,
		tabs:    []string{"Overview", "Operations", "Sessions"},
		loading: true,
	}
	m.overview = viewport.New(0, 0)
	m.opTable = newTable(operationColumns())
	m.sessTable = newTable(sessionColumns())
	m.filterInputs = []textinput.Model{
		newFilterInput("Last: "),
		newFilterInput("Curve window: "),
	}
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return m.load()
}

func (m *Model) load() tea.Cmd {
	src, cfg := m.src, m.cfg
	m.loading = true
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
		defer cancel()
		report, err := stats.BuildReport(ctx, src, cfg)
		return reportMsg{report: report, err: err}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderContents()
		return m, nil
	case reportMsg:
		m.loading = false
		if msg.err != nil {
			m.errMsg = msg.err.Error()
		} else {
			m.errMsg = ""
			m.report = msg.report
		}
		m.renderContents()
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || (!m.filterMode && msg.String() == "q") {
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			return m, m.load()
		case "=":
			m.cfg.CurveWindow = nextCurveWindow(m.cfg.CurveWindow)
			return m, m.load()
		case "-":
			m.cfg.CurveWindow = prevCurveWindow(m.cfg.CurveWindow)
			return m, m.load()
		case "/":
			return m.startFilter()
		}
		var cmd tea.Cmd
		switch m.activeTab {
		case tabOperations:
			m.opTable, cmd = m.opTable.Update(msg)
		case tabSessions:
			m.sessTable, cmd = m.sessTable.Update(msg)
		default:
			m.overview, cmd = m.overview.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	headerHeight = max(lipgloss.Height(activeNavStyle.Render("X")), 1) + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = max(m.height-headerHeight-footerHeight, 1)
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.overview.Width = m.width
	m.overview.Height = bodyHeight
	for _, t := range []*table.Model{&m.opTable, &m.sessTable} {
		t.SetWidth(m.width)
		t.SetHeight(max(bodyHeight-1, 1))
	}
	for i := range m.filterInputs {
		m.filterInputs[i].Width = max(10, m.width-lipgloss.Width(m.filterInputs[i].Prompt)-2)
	}
}

func (m *Model) moveTab(delta int) {
	m.activeTab = (m.activeTab + delta + len(m.tabs)) % len(m.tabs)
	m.opTable.Blur()
	m.sessTable.Blur()
	switch m.activeTab {
	case tabOperations:
		m.opTable.Focus()
	case tabSessions:
		m.sessTable.Focus()
	}
}

func (m *Model) renderContents() {
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.overview.SetContent(renderOverview(m.report, m.cfg.CurveWindow, width))
	m.opTable.SetRows(operationRows(m.report.Operations))
	m.sessTable.SetRows(sessionRows(m.report.Sessions))
}

func (m *Model) renderHeader() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	tabs := padLines(lipgloss.JoinHorizontal(lipgloss.Top, parts...), m.width)
	return tabs + "\n" + padLines(headerStyle.Render(truncateLine(m.settingsSummary(), m.width)), m.width)
}

func (m *Model) settingsSummary() string {
	last := "all"
	if m.cfg.Last > 0 {
		last = strconv.Itoa(m.cfg.Last)
	}
	state := ""
	if m.loading {
		state = "  loading…"
	}
	return fmt.Sprintf("Source: %s  last=%s  window=%d%s", m.origin, last, m.cfg.CurveWindow, state)
}

func (m *Model) renderBody() string {
	if m.filterMode {
		lines := []string{"Settings (enter to apply, esc to cancel)"}
		for _, input := range m.filterInputs {
			lines = append(lines, input.View())
		}
		if m.filterError != "" {
			lines = append(lines, errorStyle.Render(m.filterError))
		}
		return strings.Join(lines, "\n")
	}
	if m.loading && len(m.report.Sessions) == 0 {
		return "Loading sessions…"
	}
	if len(m.report.Sessions) == 0 && m.activeTab != tabOverview {
		return "No sessions found."
	}
	switch m.activeTab {
	case tabOperations:
		return tableMutedStyle.Render(m.opTable.View())
	case tabSessions:
		return tableMutedStyle.Render(m.sessTable.View())
	default:
		return m.overview.View()
	}
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
	}
	help := headerStyle.Render("Nav: left/right  Scroll: up/down  Window: -/=  Settings: /  Reload: r  Quit: q")
	if m.errMsg != "" {
		return help + "\n" + errorStyle.Render(m.errMsg)
	}
	return help
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.filterError = ""
	m.filterInputs[0].SetValue("")
	if m.cfg.Last > 0 {
		m.filterInputs[0].SetValue(strconv.Itoa(m.cfg.Last))
	}
	m.filterInputs[1].SetValue(strconv.Itoa(m.cfg.CurveWindow))
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.filterMode = false
		m.filterError = ""
		return m, nil
	case tea.KeyEnter:
		cfg, err := parseSettings(m.filterInputs[0].Value(), m.filterInputs[1].Value())
		if err != nil {
			m.filterError = err.Error()
			return m, nil
		}
		cfg.Local = m.cfg.Local
		m.cfg = cfg
		m.filterMode = false
		m.filterError = ""
		return m, m.load()
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	return m, cmd
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	m.filterIndex = (idx + count) % count
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func parseSettings(lastInput, windowInput string) (model.StatsConfig, error) {
	var cfg model.StatsConfig
	if v := strings.TrimSpace(lastInput); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			return cfg, fmt.Errorf("invalid last value (use 0 or positive integer)")
		}
		cfg.Last = parsed
	}
	cfg.CurveWindow = 1
	if v := strings.TrimSpace(windowInput); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			return cfg, fmt.Errorf("invalid curve window (use integer >= 1)")
		}
		cfg.CurveWindow = parsed
	}
	return cfg, nil
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 6
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func nextCurveWindow(n int) int {
	if n < 5 {
		return 5
	}
	return (n/5 + 1) * 5
}

func prevCurveWindow(n int) int {
	if n <= 5 {
		return 1
	}
	if n%5 == 0 {
		return n - 5
	}
	return (n / 5) * 5
}
