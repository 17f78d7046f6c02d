// Package tui provides the Bubble Tea live capture monitor.
package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/zetatrack/internal/capture"
	"github.com/verte-zerg/zetatrack/internal/model"
	"github.com/verte-zerg/zetatrack/internal/stats"
)

const maxRecent = 5

// StatusMsg carries a tracker status into the program.
type StatusMsg capture.Status

// ErrMsg reports a failure of a background component.
type ErrMsg struct{ Err error }

// Model implements the Bubble Tea monitor UI.
type Model struct {
	url     string
	status  capture.Status
	history []model.StoredSession
	quick   stats.QuickStats
	recent  []capture.Outcome
	errText string

	width  int
	height int
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	phaseStyle    = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	idleStyle     = phaseStyle.Foreground(lipgloss.Color("#8C8C8C"))
	activeStyle   = phaseStyle.Foreground(lipgloss.Color("#52C41A"))
	finalStyle    = phaseStyle.Foreground(lipgloss.Color("#FAAD14"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	questionStyle = valueStyle.Padding(1, 2).Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#6E6E6E"))
	savedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	skippedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	failedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a monitor seeded with previously stored sessions.
func NewModel(url string, history []model.StoredSession) *Model {
	m := &Model{url: url, history: history}
	m.quick = stats.Quick(history)
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case StatusMsg:
		m.applyStatus(capture.Status(msg))
	case ErrMsg:
		if msg.Err != nil {
			m.errText = msg.Err.Error()
		}
	}
	return m, nil
}

func (m *Model) applyStatus(status capture.Status) {
	last := status.Last
	status.Last = nil
	m.status = status
	if last == nil {
		return
	}
	m.recent = append([]capture.Outcome{*last}, m.recent...)
	if len(m.recent) > maxRecent {
		m.recent = m.recent[:maxRecent]
	}
	if last.Persisted {
		m.history = append(m.history, model.StoredSession{
			ID:        last.Session.ID,
			Score:     last.Session.Score,
			Timestamp: last.Session.EndedAt,
			Problems:  last.Session.Problems,
		})
		m.quick = stats.Quick(m.history)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	sections := []string{titleStyle.Render("zetatrack"), m.renderPhase()}
	if m.status.Phase != capture.Idle {
		sections = append(sections, m.renderGame())
	}
	if len(m.recent) > 0 {
		sections = append(sections, m.renderRecent())
	}
	if m.errText != "" {
		sections = append(sections, failedStyle.Render(m.errText))
	}
	content := lipgloss.JoinVertical(lipgloss.Center, sections...)
	if m.width == 0 || m.height == 0 {
		return content + "\n" + m.renderFooter()
	}
	footer := m.renderFooter()
	if m.height < 3 {
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
	}
	body := lipgloss.Place(m.width, m.height-1, lipgloss.Center, lipgloss.Center, content)
	footerLine := lipgloss.Place(m.width, 1, lipgloss.Center, lipgloss.Center, footer)
	return body + "\n" + footerLine
}

func (m *Model) renderPhase() string {
	switch m.status.Phase {
	case capture.Active:
		return activeStyle.Render(fmt.Sprintf("● Playing · %ds left", m.status.Countdown))
	case capture.Finalizing:
		return finalStyle.Render("◐ Finishing game")
	default:
		return idleStyle.Render("○ Waiting for a game at " + m.url)
	}
}

func (m *Model) renderGame() string {
	question := m.status.Question
	if question == "" {
		question = "…"
	}
	answer := m.status.Answer
	if answer == "" {
		answer = "-"
	}
	duration := "?"
	if m.status.Duration != nil {
		duration = fmt.Sprintf("%ds", *m.status.Duration)
	}
	line := strings.Join([]string{
		field("Score", fmt.Sprintf("%d", m.status.Score)),
		field("Logged", fmt.Sprintf("%d", m.status.Problems)),
		field("Answer", answer),
		field("Game", duration),
	}, "   ")
	return lipgloss.JoinVertical(lipgloss.Center, questionStyle.Render(question), line)
}

func (m *Model) renderRecent() string {
	lines := make([]string, 0, len(m.recent))
	for _, o := range m.recent {
		text := fmt.Sprintf("score %d · %d problems", o.Session.Score, len(o.Session.Problems))
		switch {
		case o.Err != nil:
			lines = append(lines, failedStyle.Render("✗ "+text+" · not saved: "+o.Err.Error()))
		case o.Persisted:
			lines = append(lines, savedStyle.Render("✓ "+text+" · saved"))
		default:
			lines = append(lines, skippedStyle.Render("– "+text+" · skipped"))
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func (m *Model) renderFooter() string {
	q := m.quick
	if q.TotalGames == 0 {
		return footerStyle.Render(q.Recommendation + "  q to quit")
	}
	segments := []string{
		fmt.Sprintf("Last %d", q.RecentScore),
		fmt.Sprintf("Best %d", q.BestScore),
		fmt.Sprintf("Avg %d", q.AvgScore),
		fmt.Sprintf("Games %d", q.TotalGames),
	}
	if q.HasSlowest() {
		segments = append(segments, fmt.Sprintf("Slowest %s", q.Slowest))
	}
	segments = append(segments, "q to quit")
	return footerStyle.Render(strings.Join(segments, "  "))
}

func field(label, value string) string {
	return labelStyle.Render(label+" ") + valueStyle.Render(value)
}
