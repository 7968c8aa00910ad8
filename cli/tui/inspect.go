package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/adit/cli/reader"
)

// inspectTailMessages caps how many trailing messages the inspect view shows.
const inspectTailMessages = 10

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_session":
		content = m.renderInspectSession()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectSession() string {
	data, ok := m.data.(*reader.InspectSessionResponse)
	if !ok {
		return "Invalid data type for inspect_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session Details"))
	b.WriteString("\n\n")

	state := "in_progress"
	if data.Summary != nil {
		state = "completed"
	}

	rows := [][]string{
		{"Session ID", data.SessionID},
		{"State", state},
		{"Messages", fmt.Sprintf("%d", len(data.Messages))},
		{"Faults", fmt.Sprintf("%d", len(data.Faults))},
	}
	if data.Device != "" {
		rows = append(rows, []string{"Device", data.Device})
	}
	if data.Policy != "" {
		rows = append(rows, []string{"Policy", data.Policy})
	}
	if data.Framing != "" {
		rows = append(rows, []string{"Framing", data.Framing})
	}
	if data.Summary != nil {
		rows = append(rows, []string{"Completed At", data.Summary.CompletedAt.Format("2006-01-02 15:04:05")})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "State" {
			value = StateStyle(state).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	if len(data.Faults) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Faults"))
		b.WriteString("\n")
		for _, f := range data.Faults {
			b.WriteString(fmt.Sprintf("  %s %s\n",
				ErrorStyle.Render(f.Kind),
				ValueStyle.Render(f.At.Format("2006-01-02 15:04:05"))))
		}
	}

	if len(data.Messages) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Messages"))
		b.WriteString("\n")

		tail := data.Messages
		if len(tail) > inspectTailMessages {
			b.WriteString(HelpStyle.Render(
				fmt.Sprintf("(showing last %d of %d)", inspectTailMessages, len(tail))))
			b.WriteString("\n")
			tail = tail[len(tail)-inspectTailMessages:]
		}
		for _, msg := range tail {
			b.WriteString(fmt.Sprintf("  %s %s\n",
				LabelStyle.Render(fmt.Sprintf("#%d", msg.Seq)),
				ValueStyle.Render(msg.JSON)))
		}
	}

	return BoxStyle.Render(b.String())
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
