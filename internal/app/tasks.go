package app

import (
	"context"
	"net/http"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/ui/taskform"
)

// taskLoadedMsg carries a task fetched for the detail view.
type taskLoadedMsg struct {
	id   model.ID
	task *model.Task
	err  error
}

// taskSavedMsg is sent after a create or update.
type taskSavedMsg struct {
	editing bool
	task    *model.Task
	err     error
}

// taskToggledMsg is sent after a completion toggle.
type taskToggledMsg struct {
	task *model.Task
	err  error
}

// taskDeletedMsg is sent after a delete.
type taskDeletedMsg struct {
	id  model.ID
	err error
}

// openDetail shows task right away and refreshes it from the controller.
func (m Model) openDetail(task model.Task) (tea.Model, tea.Cmd) {
	m.switchTo(ViewDetail)
	m.detail.SetTask(task)

	ctl, userID := m.tasks, m.userID()
	return m, func() tea.Msg {
		t, err := ctl.Get(context.Background(), userID, task.ID)
		return taskLoadedMsg{id: task.ID, task: t, err: err}
	}
}

// openForm starts the create form, or the edit form when task is set.
func (m Model) openForm(task *model.Task) (tea.Model, tea.Cmd) {
	m.switchTo(ViewForm)
	if task == nil {
		cmd := m.formView.StartCreate()
		return m, cmd
	}
	cmd := m.formView.StartEdit(*task)
	return m, cmd
}

// saveTask submits the form. The view returns to where the form was opened
// from; a rejected submission reopens the form with the entered values.
func (m Model) saveTask(msg taskform.SubmitMsg) (tea.Model, tea.Cmd) {
	m.currentView = m.previousView

	ctl, userID := m.tasks, m.userID()
	editing := !msg.TaskID.IsZero()
	return m, func() tea.Msg {
		ctx := context.Background()
		var (
			t   *model.Task
			err error
		)
		if editing {
			t, err = ctl.Update(ctx, userID, msg.TaskID, msg.Input)
		} else {
			t, err = ctl.Create(ctx, userID, msg.Input)
		}
		return taskSavedMsg{editing: editing, task: t, err: err}
	}
}

// toggleTask flips a task's completion.
func (m Model) toggleTask(task model.Task) tea.Cmd {
	ctl, userID := m.tasks, m.userID()
	return func() tea.Msg {
		t, err := ctl.ToggleComplete(context.Background(), userID, task)
		return taskToggledMsg{task: t, err: err}
	}
}

// deleteTask removes a task. The list asked for confirmation already.
func (m Model) deleteTask(task model.Task) tea.Cmd {
	ctl, userID := m.tasks, m.userID()
	return func() tea.Msg {
		err := ctl.Delete(context.Background(), userID, task.ID)
		return taskDeletedMsg{id: task.ID, err: err}
	}
}

func (m Model) handleTaskLoaded(msg taskLoadedMsg) (tea.Model, tea.Cmd) {
	shown, ok := m.detail.Task()
	if !ok || shown.ID != msg.id {
		return m, nil
	}
	if msg.err != nil {
		if e, ok := api.AsError(msg.err); ok && e.Status == http.StatusNotFound {
			m.detail.SetError(api.Message(msg.err))
		}
		// Otherwise keep showing the list copy.
		return m, nil
	}
	m.detail.SetTask(*msg.task)
	return m, nil
}

func (m Model) handleTaskSaved(msg taskSavedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if api.IsUnauthorized(msg.err) {
			return m, nil
		}
		m.switchTo(ViewForm)
		cmd := m.formView.Retry(api.Message(msg.err))
		return m, cmd
	}
	m.refreshDetail(msg.task)
	cmd := m.taskList.LoadPage()
	return m, cmd
}

func (m Model) handleTaskToggled(msg taskToggledMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if !api.IsUnauthorized(msg.err) {
			m.setBanner(api.Message(msg.err))
		}
		return m, nil
	}
	m.refreshDetail(msg.task)
	cmd := m.taskList.LoadPage()
	return m, cmd
}

func (m Model) handleTaskDeleted(msg taskDeletedMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		if !api.IsUnauthorized(msg.err) {
			m.setBanner(api.Message(msg.err))
		}
		return m, nil
	}
	if shown, ok := m.detail.Task(); ok && shown.ID == msg.id {
		m.detail.Clear()
		if m.currentView == ViewDetail {
			m.currentView = ViewList
		}
	}
	cmd := m.taskList.LoadPage()
	return m, cmd
}

// refreshDetail replaces the task in the detail view when it is the one
// shown.
func (m *Model) refreshDetail(task *model.Task) {
	if task == nil {
		return
	}
	if shown, ok := m.detail.Task(); ok && shown.ID == task.ID {
		m.detail.SetTask(*task)
	}
}
