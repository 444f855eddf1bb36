package help

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskpilot/internal/keys"
	"github.com/nhle/taskpilot/internal/model"
	appsync "github.com/nhle/taskpilot/internal/sync"
	"github.com/nhle/taskpilot/internal/theme"
)

// Model is the help overlay view. Besides the key bindings it shows who is
// logged in, which server is used and how the background refreshes went.
type Model struct {
	keys     *keys.KeyMap
	help     help.Model
	user     *model.User
	server   string
	statuses []appsync.SyncStatus
	width    int
	height   int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetSession records the logged-in user and the API server.
func (m *Model) SetSession(user *model.User, server string) {
	m.user = user
	m.server = server
}

// SetStatuses records the latest background job states.
func (m *Model) SetStatuses(statuses []appsync.SyncStatus) {
	m.statuses = statuses
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Keyboard Shortcuts")

	m.help.Width = m.width - 4
	m.help.ShowAll = true
	helpText := m.help.View(m.keys)

	content := lipgloss.JoinVertical(lipgloss.Left,
		title,
		helpText,
		"",
		titleStyle.Render("Session"),
		m.sessionInfo(),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func (m Model) sessionInfo() string {
	var b strings.Builder

	who := "not logged in"
	if m.user != nil {
		who = m.user.DisplayName()
		if m.user.Email != "" && who != m.user.Email {
			who += " <" + m.user.Email + ">"
		}
	}
	fmt.Fprintf(&b, "User:    %s\n", who)
	if m.server != "" {
		fmt.Fprintf(&b, "Server:  %s\n", m.server)
	}

	for _, s := range m.statuses {
		last := "never"
		if !s.LastSync.IsZero() {
			last = s.LastSync.Format(time.Kitchen)
		}
		line := fmt.Sprintf("Refresh: %-14s %-8s last %s", s.Job, s.State, last)
		if s.Error != nil {
			line += "  " + theme.ErrorStyle.Render(s.Error.Error())
		}
		b.WriteString(line + "\n")
	}

	return theme.HelpStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
