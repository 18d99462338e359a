package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

// ComponentStatus is one component's progress through the Re-expansion
// Driver's worker pool.
type ComponentStatus int

const (
	ComponentRunning ComponentStatus = iota
	ComponentDone
	ComponentFailed
)

// ComponentResultMsg is sent once per component as the Re-expansion
// Driver's worker pool drains; Err is nil on success.
type ComponentResultMsg struct {
	Name string
	Err  error
}

// DoneMsg signals that the whole reconciliation run (not just re-expansion)
// has returned, so the program should quit.
type DoneMsg struct{}

type componentState struct {
	name      string
	status    ComponentStatus
	err       error
	spinner   spinner.Model
	startedAt time.Time
}

// ReconcileModel renders live progress for every component the
// Re-expansion Driver's worker pool is currently processing.
type ReconcileModel struct {
	components []*componentState
	index      map[string]int
	quitting   bool
}

// NewReconcileModel returns a model tracking one in-progress row per name.
// All rows start in the Running state: the driver's worker pool begins
// processing as soon as Execute is called, with no separate "started"
// signal per component.
func NewReconcileModel(names []string) ReconcileModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = StyleTitle

	components := make([]*componentState, len(names))
	index := make(map[string]int, len(names))
	for i, name := range names {
		components[i] = &componentState{name: name, status: ComponentRunning, spinner: s, startedAt: time.Now()}
		index[name] = i
	}

	return ReconcileModel{components: components, index: index}
}

func (m ReconcileModel) Init() tea.Cmd {
	var cmds []tea.Cmd
	for _, c := range m.components {
		cmds = append(cmds, c.spinner.Tick)
	}
	return tea.Batch(cmds...)
}

func (m ReconcileModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.quitting = true
			return m, tea.Quit
		}

	case spinner.TickMsg:
		var cmds []tea.Cmd
		for _, c := range m.components {
			if c.status == ComponentRunning {
				var cmd tea.Cmd
				c.spinner, cmd = c.spinner.Update(msg)
				cmds = append(cmds, cmd)
			}
		}
		return m, tea.Batch(cmds...)

	case ComponentResultMsg:
		if i, ok := m.index[msg.Name]; ok {
			if msg.Err != nil {
				m.components[i].status = ComponentFailed
				m.components[i].err = msg.Err
			} else {
				m.components[i].status = ComponentDone
			}
		}
		return m, nil

	case DoneMsg:
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

func (m ReconcileModel) View() string {
	if m.quitting {
		return ""
	}

	var s strings.Builder
	s.WriteString(StyleTitle.Render(" re-expanding components"))
	s.WriteString(StyleSubtle.Render(" (q to quit)"))
	s.WriteString("\n")

	for _, c := range m.components {
		s.WriteString(" ")
		switch c.status {
		case ComponentRunning:
			s.WriteString(c.spinner.View())
			s.WriteString("  ")
			s.WriteString(StyleTitle.Render(c.name))
			s.WriteString(StyleSubtle.Render(fmt.Sprintf(" %s", time.Since(c.startedAt).Round(time.Second))))
		case ComponentDone:
			s.WriteString(StyleSuccess.Render("✓"))
			s.WriteString("  ")
			s.WriteString(StyleTitle.Render(c.name))
		case ComponentFailed:
			s.WriteString(StyleError.Render("✗"))
			s.WriteString("  ")
			s.WriteString(StyleTitle.Render(c.name))
			s.WriteString(StyleError.Render(fmt.Sprintf(" %v", c.err)))
		}
		s.WriteString("\n")
	}

	return s.String()
}
