package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/adit/cli/reader"
)

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_sessions":
		content = m.renderStatsSessions()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsSessions() string {
	data, ok := m.data.(*reader.SessionStatsResponse)
	if !ok {
		return "Invalid data type for stats_sessions"
	}

	var b strings.Builder
	title := "Session Statistics"
	if data.SessionID != "" {
		title = fmt.Sprintf("Session Statistics: %s", data.SessionID)
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n\n")

	topRow := []string{
		m.renderStatBox("Sessions", int64(data.Sessions), highlightColor),
		m.renderStatBox("Messages", data.Messages, successColor),
		m.renderStatBox("Faults", data.Faults, warningColor),
		m.renderStatBox("Decode Fail", data.DecodeFailures, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, topRow...))
	b.WriteString("\n")

	bottomRow := []string{
		m.renderStatBox("Bytes Read", data.BytesRead, highlightColor),
		m.renderStatBox("Frames", data.FramesAssembled, highlightColor),
		m.renderStatBox("Persisted", data.DeliveriesPersisted, successColor),
		m.renderStatBox("Dropped", data.DeliveriesDropped, errorColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, bottomRow...))

	if !data.FirstSeen.IsZero() {
		b.WriteString("\n\n")
		b.WriteString(fmt.Sprintf("%s %s\n",
			LabelStyle.Render("First Seen:"),
			ValueStyle.Render(data.FirstSeen.Format("2006-01-02 15:04:05"))))
		b.WriteString(fmt.Sprintf("%s %s",
			LabelStyle.Render("Last Seen:"),
			ValueStyle.Render(data.LastSeen.Format("2006-01-02 15:04:05"))))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
