package taskform

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/theme"
)

// SubmitMsg is dispatched when the form is completed. TaskID is empty for
// a new task.
type SubmitMsg struct {
	TaskID model.ID
	Input  model.TaskInput
}

// CancelMsg is dispatched when the user aborts the form.
type CancelMsg struct{}

// formBindings holds form field values on the heap so that huh's Value()
// pointers remain valid across Bubble Tea model copies.
type formBindings struct {
	title       string
	description string
	priority    model.Priority
	dueDate     string
	tags        string
}

func (fb *formBindings) input() model.TaskInput {
	return model.TaskInput{
		Title:       fb.title,
		Description: fb.description,
		DueDate:     fb.dueDate,
		Priority:    fb.priority,
		Tags:        model.ParseTags(fb.tags),
	}
}

// Model is the Bubble Tea model for the task create/edit form.
type Model struct {
	form   *huh.Form
	fb     *formBindings
	editID model.ID
	err    string
	now    func() time.Time
	width  int
	height int
}

// New creates a new task form model.
func New(width, height int) Model {
	return Model{
		fb:     &formBindings{priority: model.PriorityMedium},
		now:    time.Now,
		width:  width,
		height: height,
	}
}

// Editing reports whether the form edits an existing task.
func (m Model) Editing() bool { return !m.editID.IsZero() }

// StartCreate initializes the form for creating a new task.
func (m *Model) StartCreate() tea.Cmd {
	m.editID = ""
	m.err = ""
	*m.fb = formBindings{priority: model.PriorityMedium}
	m.form = m.buildForm()
	return m.form.Init()
}

// StartEdit initializes the form with the fields of an existing task.
func (m *Model) StartEdit(task model.Task) tea.Cmd {
	in := model.InputFromTask(task)
	m.editID = task.ID
	m.err = ""
	*m.fb = formBindings{
		title:       in.Title,
		description: in.Description,
		priority:    in.Priority.OrDefault(),
		tags:        model.JoinTags(in.Tags),
	}
	if task.DueDate != nil {
		m.fb.dueDate = dueDateText(*task.DueDate)
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Retry reopens the form with the submitted values and an error message,
// used when the server rejects the submission.
func (m *Model) Retry(errMsg string) tea.Cmd {
	m.err = errMsg
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the task form.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.form == nil {
		return m, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
		return m, func() tea.Msg { return CancelMsg{} }
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		return m, m.handleSubmit()
	case huh.StateAborted:
		return m, func() tea.Msg { return CancelMsg{} }
	}

	return m, cmd
}

// View renders the task form.
func (m Model) View() string {
	if m.form == nil {
		return ""
	}

	titleText := "New Task"
	if m.Editing() {
		titleText = "Edit Task"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render(titleText)}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	parts = append(parts, m.form.View())
	if w := m.warning(); w != "" {
		parts = append(parts, theme.WarningStyle.Render("⚠ "+w))
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// warning returns the non-blocking due date warning, if any.
func (m Model) warning() string {
	w, err := model.ValidateDueDate(m.fb.dueDate, m.now())
	if err != nil {
		return ""
	}
	return w
}

// SetSize updates the form dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth()).WithHeight(m.formHeight())
	}
}

func (m *Model) buildForm() *huh.Form {
	opts := make([]huh.Option[model.Priority], len(model.Priorities))
	for i, p := range model.Priorities {
		opts[i] = huh.NewOption(string(p), p)
	}

	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Title").
				Placeholder("What needs to be done?").
				CharLimit(model.MaxTitleLength).
				Value(&m.fb.title).
				Validate(model.ValidateTitle),
			huh.NewText().
				Title("Description").
				Placeholder("Optional details...").
				CharLimit(model.MaxDescriptionLength).
				Value(&m.fb.description).
				Validate(model.ValidateDescription),
			huh.NewSelect[model.Priority]().
				Title("Priority").
				Options(opts...).
				Value(&m.fb.priority),
			huh.NewInput().
				Title("Due Date").
				Placeholder("YYYY-MM-DD or ISO-8601 (optional)").
				Value(&m.fb.dueDate).
				Validate(dueDateValidator(m.now)),
			huh.NewInput().
				Title("Tags").
				Placeholder("comma,separated").
				Value(&m.fb.tags).
				Validate(model.ValidateTagsText),
		),
	).WithWidth(m.formWidth()).WithHeight(m.formHeight())
}

func dueDateValidator(now func() time.Time) func(string) error {
	return func(s string) error {
		_, err := model.ValidateDueDate(s, now())
		return err
	}
}

// dueDateText renders a due date for editing: a bare date when it falls on
// UTC midnight, the full timestamp otherwise.
func dueDateText(t time.Time) string {
	t = t.UTC()
	if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format(time.RFC3339)
}

func (m Model) handleSubmit() tea.Cmd {
	msg := SubmitMsg{TaskID: m.editID, Input: m.fb.input()}
	return func() tea.Msg { return msg }
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 100)
}

func (m Model) formHeight() int {
	return max(m.height-6, 12)
}
