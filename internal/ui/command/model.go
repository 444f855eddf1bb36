package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskpilot/internal/theme"
)

// Name identifies a palette command.
type Name string

const (
	Tasks     Name = "tasks"
	Assistant Name = "assistant"
	NewTask   Name = "new"
	NewChat   Name = "new chat"
	Refresh   Name = "refresh"
	Settings  Name = "settings"
	Help      Name = "help"
	Logout    Name = "logout"
	Quit      Name = "quit"
)

// aliases maps accepted spellings to commands.
var aliases = map[string]Name{
	"tasks":     Tasks,
	"list":      Tasks,
	"assistant": Assistant,
	"chat":      Assistant,
	"new":       NewTask,
	"new task":  NewTask,
	"new chat":  NewChat,
	"refresh":   Refresh,
	"sync":      Refresh,
	"settings":  Settings,
	"config":    Settings,
	"help":      Help,
	"logout":    Logout,
	"quit":      Quit,
	"q":         Quit,
}

// Lookup resolves user input to a command. Case and surrounding space are
// ignored.
func Lookup(input string) (Name, bool) {
	name, ok := aliases[strings.ToLower(strings.TrimSpace(input))]
	return name, ok
}

// CommandMsg is emitted when the user executes a known command.
type CommandMsg Name

// CloseMsg is emitted when the palette is dismissed without a command.
type CloseMsg struct{}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	err    string
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "type a command..."
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions([]string{
		string(Tasks), string(Assistant), string(NewTask), string(NewChat),
		string(Refresh), string(Settings), string(Help), string(Logout), string(Quit),
	})
	ti.Focus()
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if text == "" {
				return m, nil
			}
			name, ok := Lookup(text)
			if !ok {
				m.err = fmt.Sprintf("Unknown command %q", text)
				return m, nil
			}
			m.err = ""
			return m, func() tea.Msg {
				return CommandMsg(name)
			}
		case "esc":
			m.input.Reset()
			m.err = ""
			return m, func() tea.Msg { return CloseMsg{} }
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Command Palette"), m.input.View()}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	parts = append(parts, theme.HelpStyle.Render("tab completes · esc closes"))

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	return m.input.Focus()
}
