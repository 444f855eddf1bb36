package tasklist

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/keys"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/theme"
)

// Loader fetches pages of tasks. Cached serves the last fetched copy when
// the server is unreachable.
type Loader interface {
	List(ctx context.Context, userID model.ID, page, limit int) (*model.TaskPage, error)
	Cached(ctx context.Context, userID model.ID, page, limit int) (*model.TaskPage, error)
}

// PageLoadedMsg carries the result of a page fetch.
type PageLoadedMsg struct {
	Page    *model.TaskPage
	Offline bool
	Err     error
}

// SelectedTaskMsg is sent when the user opens a task.
type SelectedTaskMsg struct {
	Task model.Task
}

// NewTaskMsg asks the parent to open the create form.
type NewTaskMsg struct{}

// EditTaskMsg asks the parent to open the edit form for a task.
type EditTaskMsg struct {
	Task model.Task
}

// ToggleTaskMsg asks the parent to flip a task's completion.
type ToggleTaskMsg struct {
	Task model.Task
}

// DeleteTaskMsg is sent once the user has confirmed a delete.
type DeleteTaskMsg struct {
	Task model.Task
}

// Model is the paginated task list view.
type Model struct {
	list       list.Model
	loader     Loader
	keys       *keys.KeyMap
	userID     model.ID
	page       int
	limit      int
	pagination model.Pagination
	loading    bool
	offline    bool
	err        string
	confirm    *model.Task
	width      int
	height     int
}

// New creates a new task list model showing limit tasks per page.
func New(loader Loader, k *keys.KeyMap, limit, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{now: time.Now}, width, height-2)
	l.Title = "Tasks"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		loader: loader,
		keys:   k,
		page:   1,
		limit:  limit,
		width:  width,
		height: height,
	}
}

// SetUser switches the list to userID and resets to the first page.
func (m *Model) SetUser(userID model.ID) {
	m.userID = userID
	m.page = 1
	m.pagination = model.Pagination{}
	m.offline = false
	m.err = ""
	m.confirm = nil
	m.list.SetItems(nil)
}

// Page returns the current 1-based page number.
func (m Model) Page() int { return m.page }

// Offline reports whether the shown page came from the local snapshot.
func (m Model) Offline() bool { return m.offline }

// Confirming reports whether a delete prompt is waiting for y/n.
func (m Model) Confirming() bool { return m.confirm != nil }

// SelectedTask returns the highlighted task, if any.
func (m Model) SelectedTask() (model.Task, bool) {
	item, ok := m.list.SelectedItem().(TaskItem)
	if !ok {
		return model.Task{}, false
	}
	return item.Task, true
}

// Init loads the first page.
func (m Model) Init() tea.Cmd {
	return m.LoadPage()
}

// Update handles messages for the task list view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case PageLoadedMsg:
		m.loading = false
		if msg.Err != nil {
			m.err = api.Message(msg.Err)
			return m, nil
		}
		m.err = ""
		m.offline = msg.Offline
		m.pagination = msg.Page.Pagination
		items := make([]list.Item, len(msg.Page.Tasks))
		for i, task := range msg.Page.Tasks {
			items[i] = TaskItem{Task: task}
		}
		return m, m.list.SetItems(items)

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.handleConfirmKeys(msg)
		}
		return m.handleNormalKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// handleConfirmKeys resolves a pending delete confirmation.
func (m Model) handleConfirmKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	task := *m.confirm
	m.confirm = nil
	if msg.String() == "y" || msg.String() == "Y" {
		return m, func() tea.Msg { return DeleteTaskMsg{Task: task} }
	}
	return m, nil
}

// handleNormalKeys processes key input when no prompt is open.
func (m Model) handleNormalKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Select):
		if task, ok := m.SelectedTask(); ok {
			return m, func() tea.Msg { return SelectedTaskMsg{Task: task} }
		}
		return m, nil

	case key.Matches(msg, m.keys.New):
		return m, func() tea.Msg { return NewTaskMsg{} }

	case key.Matches(msg, m.keys.Edit):
		if task, ok := m.SelectedTask(); ok {
			return m, func() tea.Msg { return EditTaskMsg{Task: task} }
		}
		return m, nil

	case key.Matches(msg, m.keys.Toggle):
		if task, ok := m.SelectedTask(); ok {
			return m, func() tea.Msg { return ToggleTaskMsg{Task: task} }
		}
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		if task, ok := m.SelectedTask(); ok {
			m.confirm = &task
		}
		return m, nil

	case key.Matches(msg, m.keys.NextPage):
		if m.pagination.HasMore {
			m.page++
			return m, m.LoadPage()
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if m.page > 1 {
			m.page--
			return m, m.LoadPage()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the task list view.
func (m Model) View() string {
	var footer string
	switch {
	case m.confirm != nil:
		footer = theme.WarningStyle.Render(
			fmt.Sprintf("Delete %q? (y/n)", m.confirm.Title))
	case m.err != "":
		footer = theme.ErrorStyle.Render(m.err)
	default:
		footer = m.pageSummary()
	}

	body := m.list.View()
	if len(m.list.Items()) == 0 {
		body = m.renderEmptyState()
	}

	return lipgloss.JoinVertical(lipgloss.Left, body, "", footer)
}

// pageSummary renders "page x of y" plus an offline marker.
func (m Model) pageSummary() string {
	if m.loading {
		return theme.HelpStyle.Render("loading…")
	}
	pages := max(m.pagination.TotalPages, 1)
	s := fmt.Sprintf("page %d of %d · %d tasks", m.page, pages, m.pagination.Total)
	if m.offline {
		s += " · offline copy"
	}
	return theme.HelpStyle.Render(s)
}

// renderEmptyState shows guidance text when the page has no tasks.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(max(m.height-2, 1)).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.page > 1 {
		return style.Render("No tasks on this page.")
	}
	return style.Render("No tasks yet.\n\nPress n to create one.")
}

// LoadPage returns a tea.Cmd that fetches the current page, falling back
// to the local snapshot when the server cannot be reached.
func (m *Model) LoadPage() tea.Cmd {
	if m.userID.IsZero() {
		return nil
	}
	m.loading = true
	loader, userID, page, limit := m.loader, m.userID, m.page, m.limit
	return func() tea.Msg {
		ctx := context.Background()
		p, err := loader.List(ctx, userID, page, limit)
		if err == nil {
			return PageLoadedMsg{Page: p}
		}
		if !api.IsNetwork(err) {
			return PageLoadedMsg{Err: err}
		}
		cached, cerr := loader.Cached(ctx, userID, page, limit)
		if cerr != nil || len(cached.Tasks) == 0 {
			return PageLoadedMsg{Err: err}
		}
		return PageLoadedMsg{Page: cached, Offline: true}
	}
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, max(height-2, 1))
}
