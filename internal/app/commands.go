package app

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskpilot/internal/ui/command"
)

// executeCommand handles a command chosen in the command palette.
func (m Model) executeCommand(name command.Name) (tea.Model, tea.Cmd) {
	if m.user == nil && name != command.Quit && name != command.Help {
		return m, nil
	}

	switch name {
	case command.Tasks:
		m.currentView = ViewList
		return m, nil

	case command.Assistant:
		m.switchTo(ViewAssistant)
		cmd := m.assistantView.Start()
		return m, cmd

	case command.NewTask:
		return m.openForm(nil)

	case command.NewChat:
		m.switchTo(ViewAssistant)
		start := m.assistantView.Start()
		ctl := m.chat
		return m, tea.Batch(start, func() tea.Msg {
			// Failures are recorded in the chat state.
			_, _ = ctl.CreateConversation(context.Background(), nil)
			return nil
		})

	case command.Refresh:
		m.tasks.Invalidate(m.userID())
		m.poller.Trigger(JobTasks)
		m.poller.Trigger(JobConversations)
		cmd := m.taskList.LoadPage()
		return m, cmd

	case command.Settings:
		m.switchTo(ViewSettings)
		cmd := m.settingsView.Init()
		return m, cmd

	case command.Help:
		m.helpView.SetStatuses(m.poller.GetStatuses())
		m.switchTo(ViewHelp)
		return m, nil

	case command.Logout:
		cmd := m.logout()
		return m, cmd

	case command.Quit:
		m.poller.Stop()
		return m, tea.Quit
	}

	return m, nil
}
