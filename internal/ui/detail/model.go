package detail

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"github.com/nhle/taskpilot/internal/keys"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/theme"
)

// BackMsg signals the parent to navigate back to the list view.
type BackMsg struct{}

// Action names a change the user asked for from the detail view.
type Action int

const (
	ActionToggle Action = iota
	ActionEdit
)

// ActionMsg signals the parent to act on the displayed task.
type ActionMsg struct {
	Action Action
	Task   model.Task
}

// Model is the task detail view component.
type Model struct {
	task     *model.Task
	viewport viewport.Model
	keys     *keys.KeyMap
	now      func() time.Time
	width    int
	height   int
	loading  bool
	err      string
}

// New creates a new detail view model.
func New(keys *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, max(height-2, 1))
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     keys,
		now:      time.Now,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the detail view.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the detail view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Toggle):
			if m.task != nil {
				task := *m.task
				return m, func() tea.Msg {
					return ActionMsg{Action: ActionToggle, Task: task}
				}
			}
			return m, nil

		case key.Matches(msg, m.keys.Edit):
			if m.task != nil {
				task := *m.task
				return m, func() tea.Msg {
					return ActionMsg{Action: ActionEdit, Task: task}
				}
			}
			return m, nil
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the detail view.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center)

	switch {
	case m.loading:
		return centered.Foreground(theme.ColorGray).Render("Loading task...")
	case m.err != "":
		return centered.Inherit(theme.ErrorStyle).Render(m.err)
	case m.task == nil:
		return centered.Foreground(theme.ColorGray).Render("No task selected")
	}

	return m.viewport.View()
}

// renderContent builds the full detail content string for the viewport.
func (m Model) renderContent() string {
	if m.task == nil {
		return ""
	}

	task := m.task
	now := m.now()
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	sections = append(sections, titleStyle.Render(wordwrap.String(task.Title, m.wrapWidth())))

	overdue := task.IsOverdue(now)
	state := "Open"
	switch {
	case task.Completed:
		state = "Done"
	case overdue:
		state = "Overdue"
	}
	stateBadge := theme.CompletionStyle(task.Completed, overdue).Render(state)
	priBadge := theme.PriorityStyle(task.Priority).Render(priorityName(task.Priority))
	sections = append(sections,
		lipgloss.JoinHorizontal(lipgloss.Top, stateBadge, "  ", priBadge),
		"",
	)

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	row := func(label, value string) string {
		return fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("%-10s", label+":")), value)
	}

	if task.DueDate != nil {
		due := task.DueDate.Local().Format("2006-01-02 15:04")
		if overdue {
			sections = append(sections, row("Due", theme.OverdueStyle.Render(due+" (overdue)")))
		} else {
			sections = append(sections, row("Due", valStyle.Render(due)))
		}
	}
	if len(task.Tags) > 0 {
		tags := make([]string, len(task.Tags))
		for i, t := range task.Tags {
			tags[i] = theme.TagStyle.Render("#" + t)
		}
		sections = append(sections, row("Tags", strings.Join(tags, " ")))
	}
	if task.CompletedAt != nil {
		sections = append(sections, row("Completed", valStyle.Render(task.CompletedAt.Local().Format("2006-01-02 15:04"))))
	}
	if !task.CreatedAt.IsZero() {
		sections = append(sections, row("Created", valStyle.Render(task.CreatedAt.Local().Format("2006-01-02 15:04"))))
	}
	if !task.UpdatedAt.IsZero() {
		sections = append(sections, row("Updated", valStyle.Render(task.UpdatedAt.Local().Format("2006-01-02 15:04"))))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	descHeaderStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sections = append(sections, descHeaderStyle.Render("Description"))

	body := wordwrap.String(task.Description, m.wrapWidth())
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("No description")
	}
	sections = append(sections, body)

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) wrapWidth() int {
	return max(min(m.width-4, 100), 20)
}

// Task returns the displayed task, if any.
func (m Model) Task() (model.Task, bool) {
	if m.task == nil {
		return model.Task{}, false
	}
	return *m.task, true
}

// SetTask updates the task being displayed and re-renders the content.
func (m *Model) SetTask(task model.Task) {
	m.task = &task
	m.loading = false
	m.err = ""
	m.viewport.SetContent(m.renderContent())
	m.viewport.GotoTop()
}

// Clear drops the displayed task.
func (m *Model) Clear() {
	m.task = nil
	m.loading = false
	m.err = ""
	m.viewport.SetContent("")
}

// SetError replaces the content with an error message.
func (m *Model) SetError(msg string) {
	m.loading = false
	m.err = msg
}

// SetLoading sets the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	if loading {
		m.err = ""
	}
}

// SetSize updates the detail view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = max(height-2, 1)
	if m.task != nil {
		m.viewport.SetContent(m.renderContent())
	}
}

// priorityName returns a human-readable name for the priority.
func priorityName(p model.Priority) string {
	switch p {
	case model.PriorityHigh:
		return "High"
	case model.PriorityMedium:
		return "Medium"
	case model.PriorityLow:
		return "Low"
	default:
		return "Unknown"
	}
}
