package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/torture/cli/reader"
	"github.com/pithecene-io/torture/scheduler"
)

// helpHeight is the number of lines kept below the viewport.
const helpHeight = 2

// InspectModel is a Bubble Tea model for inspect views. Content scrolls in
// a viewport once the terminal size is known.
type InspectModel struct {
	viewType   string
	data       any
	viewport   viewport.Model
	ready      bool
	failedOnly bool
	quitting   bool
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
		height := max(msg.Height-helpHeight, 1)
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.viewport.SetContent(m.content())
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, keys.Failed):
			m.failedOnly = !m.failedOnly
			if m.ready {
				m.viewport.SetContent(m.content())
				m.viewport.GotoTop()
			}
			return m, nil
		}
	}

	if !m.ready {
		return m, nil
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	body := m.content()
	if m.ready {
		body = m.viewport.View()
	}
	help := "q quit • f toggle failures only • ↑/↓ scroll"
	if m.failedOnly {
		help += " • showing failures"
	}
	return body + "\n" + HelpStyle.Render(help)
}

func (m InspectModel) content() string {
	switch m.viewType {
	case ViewInspectRun:
		return m.renderRun()
	case ViewInspectSuite:
		return m.renderSuite()
	default:
		return fmt.Sprintf("Unknown view type: %s", m.viewType)
	}
}

func (m InspectModel) renderRun() string {
	report, ok := m.data.(*scheduler.Report)
	if !ok {
		return "Invalid data type for " + ViewInspectRun
	}
	summary := reader.Summarize(report)

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Harness Run"))
	b.WriteString("\n")
	writeField(&b, "Run ID", summary.RunID)
	writeField(&b, "Started", summary.StartedAt.Format("2006-01-02 15:04:05"))
	writeField(&b, "Duration", summary.Duration)
	writeField(&b, "Platform", summary.Platform)
	writeField(&b, "Units", fmt.Sprintf("%d (%d failed)", summary.Units, summary.Failures))
	exit := summary.ExitCode
	if report.ExitCode != scheduler.ExitCodePassed {
		exit = ErrorStyle.Render(exit)
	}
	writeField(&b, "Exit code", exit)
	if summary.Aborted {
		writeField(&b, "Aborted", WarningStyle.Render("yes"))
	}

	b.WriteString("\n")
	b.WriteString(TitleStyle.Render("Suites"))
	b.WriteString("\n")
	for _, s := range summary.Suites {
		if m.failedOnly && (s.Outcome == reader.OutcomeSuccess || s.Outcome == reader.OutcomeSkipped) {
			continue
		}
		fmt.Fprintf(&b, "%s %s\n",
			LabelStyle.Width(24).Render(s.Name),
			OutcomeStyle(s.Outcome).Render(string(s.Outcome)))
		if s.OutDir != "" {
			fmt.Fprintf(&b, "  %s\n", MutedStyle.Render("kept: "+s.OutDir))
		}
	}
	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderSuite() string {
	s, ok := m.data.(*scheduler.ReportSuite)
	if !ok {
		return "Invalid data type for " + ViewInspectSuite
	}
	outcome := reader.Outcome(s.Units)

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Suite " + s.Name))
	b.WriteString("\n")
	writeField(&b, "Path", s.Path)
	writeField(&b, "Outcome", OutcomeStyle(outcome).Render(string(outcome)))
	writeField(&b, "Exit code", reader.FormatExitCode(s.ExitCode))
	if s.Persistent {
		writeField(&b, "Kept at", s.OutDir)
	}

	for _, u := range s.Units {
		if m.failedOnly && (u.Status == scheduler.StatusPassed || u.Status == scheduler.StatusSkipped) {
			continue
		}
		b.WriteString("\n")
		unit := fmt.Sprintf("%s (%s) --%s", u.Compiler, u.Variant, u.OptLevel)
		if u.Variant == "" {
			unit = fmt.Sprintf("%s --%s", u.Compiler, u.OptLevel)
		}
		fmt.Fprintf(&b, "%s %s\n", ValueStyle.Render(unit), StatusStyle(u.Status).Render(string(u.Status)))
		if u.Message != "" {
			b.WriteString(indent(u.Message))
		}
		if p := u.Process; p != nil {
			if p.Stdout != "" {
				b.WriteString(indent(MutedStyle.Render("stdout:") + "\n" + p.Stdout))
			}
			if p.Stderr != "" {
				b.WriteString(indent(MutedStyle.Render("stderr:") + "\n" + p.Stderr))
			}
		}
	}
	return BoxStyle.Render(b.String())
}

func writeField(b *strings.Builder, label, value string) {
	fmt.Fprintf(b, "%s %s\n", LabelStyle.Render(label+":"), value)
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "    " + l
	}
	return strings.Join(lines, "\n") + "\n"
}

// keyMap defines key bindings.
type keyMap struct {
	Quit   key.Binding
	Failed key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
	Failed: key.NewBinding(
		key.WithKeys("f"),
		key.WithHelp("f", "toggle failures only"),
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
	return lipgloss.NewStyle().Padding(1, 2).Render(model.content())
}
