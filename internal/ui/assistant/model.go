// Package assistant is the chat view: a conversation sidebar next to the
// message history and an input box. All state lives in the chat
// controller; the view renders the snapshots it publishes.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/muesli/reflow/wordwrap"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/chat"
	"github.com/nhle/taskpilot/internal/keys"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/theme"
	"github.com/nhle/taskpilot/internal/ui"
)

// inputHeight is the number of rows of the message input.
const inputHeight = 3

// Controller is the chat state owner the view drives.
type Controller interface {
	Snapshot() chat.State
	Subscribe() (<-chan chat.State, func())
	Init(ctx context.Context, limit int) error
	CreateConversation(ctx context.Context, title *string) (*model.Conversation, error)
	SelectConversation(ctx context.Context, id model.ID)
	LoadMessages(ctx context.Context, limit int) error
	SendMessage(ctx context.Context, content string) error
	DeleteConversation(ctx context.Context, id model.ID) error
	RefetchConversations(ctx context.Context, limit int) error
	ClearError()
}

// StateMsg carries a snapshot published by the controller.
type StateMsg struct {
	State chat.State
}

// CloseMsg asks the parent to leave the assistant view.
type CloseMsg struct{}

// loadDoneMsg reports a finished LoadMessages call for id.
type loadDoneMsg struct {
	id  model.ID
	err error
}

// resultMsg reports the outcome of a controller call. Only validation
// errors are shown from here; the controller records the others in State.
type resultMsg struct {
	err error
}

type focus int

const (
	focusInput focus = iota
	focusSidebar
)

// Model is the assistant view.
type Model struct {
	ctl      Controller
	keys     *keys.KeyMap
	pageSize int
	state    chat.State

	input    textarea.Model
	viewport viewport.Model
	spinner  spinner.Model
	spinning bool

	focus   focus
	cursor  int
	confirm *model.Conversation
	notice  string

	// requested is the conversation whose history was last asked for.
	requested model.ID
	updates   <-chan chat.State
	cancel    func()

	width  int
	height int
}

// New creates the assistant view. pageSize bounds conversation and
// message fetches.
func New(ctl Controller, k *keys.KeyMap, pageSize, width, height int) Model {
	ta := textarea.New()
	ta.Placeholder = "Ask about your tasks..."
	ta.Prompt = "> "
	ta.ShowLineNumbers = false
	ta.SetHeight(inputHeight)
	ta.CharLimit = 4000
	ta.KeyMap.InsertNewline.SetEnabled(false)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.ColorMagenta)

	m := Model{
		ctl:      ctl,
		keys:     k,
		pageSize: pageSize,
		input:    ta,
		viewport: viewport.New(width, 1),
		spinner:  sp,
	}
	m.SetSize(width, height)
	return m
}

// Start subscribes to controller updates and loads the conversation list.
// Calling it again while subscribed only refetches.
func (m *Model) Start() tea.Cmd {
	ctl, limit := m.ctl, m.pageSize
	if m.updates != nil {
		return func() tea.Msg {
			return resultMsg{err: ctl.RefetchConversations(context.Background(), limit)}
		}
	}

	m.updates, m.cancel = ctl.Subscribe()
	m.applyState(ctl.Snapshot())
	m.focus = focusInput
	return tea.Batch(
		m.listen(),
		m.input.Focus(),
		func() tea.Msg {
			return resultMsg{err: ctl.Init(context.Background(), limit)}
		},
	)
}

// Stop drops the subscription and forgets the rendered state.
func (m *Model) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.updates, m.cancel = nil, nil
	m.requested = ""
	m.confirm = nil
	m.notice = ""
	m.input.Reset()
	m.applyState(chat.State{})
}

// Typing reports whether key presses go to the message input.
func (m Model) Typing() bool {
	return m.focus == focusInput
}

// State returns the last snapshot received.
func (m Model) State() chat.State {
	return m.state
}

// Focus gives keyboard focus to the message input.
func (m *Model) Focus() tea.Cmd {
	m.focus = focusInput
	return m.input.Focus()
}

// Handles reports whether msg belongs to this view, so the parent can
// deliver it while another view is on screen.
func (m Model) Handles(msg tea.Msg) bool {
	switch msg := msg.(type) {
	case StateMsg, loadDoneMsg, resultMsg:
		return true
	case spinner.TickMsg:
		return msg.ID == m.spinner.ID()
	}
	return false
}

func (m Model) listen() tea.Cmd {
	ch := m.updates
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return StateMsg{State: s}
	}
}

// Update handles messages for the assistant view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.applyState(msg.State)
		cmds := []tea.Cmd{m.listen(), m.autoLoad()}
		if m.busy() && !m.spinning {
			m.spinning = true
			cmds = append(cmds, m.spinner.Tick)
		}
		return m, tea.Batch(cmds...)

	case loadDoneMsg:
		return m.handleLoadDone(msg)

	case resultMsg:
		if api.IsValidation(msg.err) {
			m.notice = api.Message(msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		if !m.busy() {
			m.spinning = false
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd

	case tea.KeyMsg:
		m.notice = ""
		if m.focus == focusSidebar {
			return m.handleSidebarKeys(msg)
		}
		return m.handleInputKeys(msg)
	}

	var cmds []tea.Cmd
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// autoLoad requests the history of the active conversation once per
// selection, until MessagesFor catches up with ActiveID.
func (m *Model) autoLoad() tea.Cmd {
	s := m.state
	if s.ActiveID.IsZero() || s.MessagesFor == s.ActiveID {
		m.requested = ""
		return nil
	}
	if s.LoadingMessages || m.requested == s.ActiveID {
		return nil
	}
	m.requested = s.ActiveID
	return m.loadMessages(s.ActiveID)
}

func (m Model) loadMessages(id model.ID) tea.Cmd {
	ctl, limit := m.ctl, m.pageSize
	return func() tea.Msg {
		return loadDoneMsg{id: id, err: ctl.LoadMessages(context.Background(), limit)}
	}
}

// handleLoadDone retries a load that the controller skipped because
// another conversation's load was still running.
func (m Model) handleLoadDone(msg loadDoneMsg) (Model, tea.Cmd) {
	if msg.err != nil {
		return m, nil
	}
	snap := m.ctl.Snapshot()
	if snap.ActiveID != msg.id || snap.MessagesFor == msg.id {
		return m, nil
	}
	m.requested = ""
	if snap.LoadingMessages {
		return m, nil
	}
	m.requested = msg.id
	return m, m.loadMessages(msg.id)
}

func (m Model) busy() bool {
	return m.state.Loading || m.state.LoadingMessages || m.state.LoadingConversations
}

// applyState stores s, keeps the sidebar cursor in range and re-renders.
func (m *Model) applyState(s chat.State) {
	prevActive := m.state.ActiveID
	m.state = s

	if s.ActiveID != prevActive {
		for i, c := range s.Conversations {
			if c.ID == s.ActiveID {
				m.cursor = i
				break
			}
		}
	}
	if m.cursor >= len(s.Conversations) {
		m.cursor = max(len(s.Conversations)-1, 0)
	}
	m.refreshViewport()
}

func (m Model) handleInputKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Focus), key.Matches(msg, m.keys.Back):
		m.focus = focusSidebar
		m.input.Blur()
		return m, nil

	case key.Matches(msg, m.keys.Send):
		text := m.input.Value()
		if strings.TrimSpace(text) != "" && !m.state.ActiveID.IsZero() {
			m.input.Reset()
		}
		ctl := m.ctl
		return m, func() tea.Msg {
			return resultMsg{err: ctl.SendMessage(context.Background(), text)}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) handleSidebarKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	ctl, limit := m.ctl, m.pageSize

	if m.confirm != nil {
		conv := *m.confirm
		m.confirm = nil
		if msg.String() == "y" || msg.String() == "Y" {
			return m, func() tea.Msg {
				return resultMsg{err: ctl.DeleteConversation(context.Background(), conv.ID)}
			}
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Back):
		return m, func() tea.Msg { return CloseMsg{} }

	case key.Matches(msg, m.keys.Focus):
		return m, m.Focus()

	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.state.Conversations)-1 {
			m.cursor++
		}
		return m, nil

	case key.Matches(msg, m.keys.Select):
		if m.cursor >= len(m.state.Conversations) {
			return m, nil
		}
		id := m.state.Conversations[m.cursor].ID
		focusCmd := m.Focus()
		return m, tea.Batch(focusCmd, func() tea.Msg {
			ctl.SelectConversation(context.Background(), id)
			return nil
		})

	case key.Matches(msg, m.keys.New):
		focusCmd := m.Focus()
		return m, tea.Batch(focusCmd, func() tea.Msg {
			_, err := ctl.CreateConversation(context.Background(), nil)
			return resultMsg{err: err}
		})

	case key.Matches(msg, m.keys.Delete):
		if m.cursor < len(m.state.Conversations) {
			conv := m.state.Conversations[m.cursor]
			m.confirm = &conv
		}
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.requested = ""
		return m, func() tea.Msg {
			return resultMsg{err: ctl.RefetchConversations(context.Background(), limit)}
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// refreshViewport re-renders the conversation content and scrolls to bottom.
func (m *Model) refreshViewport() {
	m.viewport.SetContent(m.renderMessages(m.viewport.Width))
	m.viewport.GotoBottom()
}

// renderMessages builds the message history for the given width.
func (m Model) renderMessages(width int) string {
	hint := lipgloss.NewStyle().Foreground(theme.ColorGray).Italic(true)

	switch {
	case m.state.ActiveID.IsZero():
		return hint.Render("Start a conversation with n, or pick one from the list (tab).")
	case m.state.LoadingMessages && len(m.state.Messages) == 0:
		return hint.Render(m.spinner.View() + " loading messages…")
	case len(m.state.Messages) == 0:
		return hint.Render("Ask me about your tasks. I can list, create and update them for you.")
	}

	wrap := max(width-2, 10)
	body := contentStyle(m.state.DarkMode)
	var sections []string

	for _, msg := range m.state.Messages {
		label := "You"
		if msg.Role == model.RoleAssistant {
			label = "Assistant"
		}
		sections = append(sections, theme.RoleStyle(msg.Role).Render(label+":"))

		if msg.IsLoading {
			sections = append(sections, hint.Render(m.spinner.View()+" thinking…"), "")
			continue
		}

		sections = append(sections, body.Render(wordwrap.String(msg.Content, wrap)))
		for _, tc := range msg.ToolCalls {
			sections = append(sections, theme.ToolCallStyle.Render(formatToolCall(tc, wrap)))
		}
		sections = append(sections, "")
	}

	return strings.Join(sections, "\n")
}

// formatToolCall renders a one-line summary of a tool invocation.
func formatToolCall(tc model.ToolCall, width int) string {
	line := "⚙ " + tc.Name
	if len(tc.Arguments) > 0 && string(tc.Arguments) != "null" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, tc.Arguments); err == nil {
			line += " " + compact.String()
		}
	}
	return truncate.StringWithTail(line, uint(max(width, 10)), "…")
}

func contentStyle(dark bool) lipgloss.Style {
	if dark {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("#E9ECEF"))
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color("#1A202C"))
}

// View renders the assistant view.
func (m Model) View() string {
	sideWidth, mainWidth := ui.NewLayout(m.width, m.height).SplitWidths()

	main := m.renderMain(mainWidth)
	if sideWidth == 0 {
		return main
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, m.renderSidebar(sideWidth), main)
}

func (m Model) renderMain(width int) string {
	title := "Assistant"
	if conv, ok := m.state.ActiveConversation(); ok {
		title = conv.DisplayTitle()
	}
	titleLine := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).
		Render(truncate.StringWithTail(title, uint(max(width-4, 1)), "…"))

	status := ""
	switch {
	case m.confirm != nil:
		status = theme.WarningStyle.Render(fmt.Sprintf("Delete %q? (y/n)", m.confirm.DisplayTitle()))
	case m.notice != "":
		status = theme.ErrorStyle.Render(m.notice)
	case m.state.Error != "":
		status = theme.ErrorStyle.Render(m.state.Error)
	case m.state.Loading:
		status = theme.HelpStyle.Render(m.spinner.View() + " waiting for the assistant")
	}

	sep := lipgloss.NewStyle().Foreground(theme.ColorSubtle).
		Render(strings.Repeat("─", max(width-2, 1)))

	return lipgloss.NewStyle().Width(width).Render(lipgloss.JoinVertical(
		lipgloss.Left,
		titleLine,
		m.viewport.View(),
		sep,
		status,
		m.input.View(),
	))
}

func (m Model) renderSidebar(width int) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite).Render("Conversations")
	if m.state.LoadingConversations {
		header += " " + m.spinner.View()
	}
	lines := []string{header, ""}

	if len(m.state.Conversations) == 0 {
		lines = append(lines, theme.HelpStyle.Render("none yet\nn to start one"))
	}

	inner := max(width-4, 4)
	for i, c := range m.state.Conversations {
		marker := "  "
		if c.ID == m.state.ActiveID {
			marker = "● "
		}
		count := fmt.Sprintf(" (%d)", c.MessageCount)
		name := truncate.StringWithTail(c.DisplayTitle(), uint(max(inner-len(marker)-len(count), 1)), "…")
		line := marker + name + theme.HelpStyle.Render(count)

		if i == m.cursor && m.focus == focusSidebar {
			line = theme.SelectedItemStyle.Render(line)
		} else {
			line = theme.ListItemStyle.Render(line)
		}
		lines = append(lines, line)
	}

	border := theme.BorderStyle
	if m.focus == focusSidebar {
		border = border.BorderForeground(theme.ColorBlue)
	}
	return border.
		Width(width - 2).
		Height(max(m.height-2, 1)).
		Render(strings.Join(lines, "\n"))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height

	_, mainWidth := ui.NewLayout(width, height).SplitWidths()
	m.input.SetWidth(max(mainWidth-2, 10))
	m.viewport.Width = mainWidth
	// title, separator, status and the input box
	m.viewport.Height = max(height-3-inputHeight, 3)
	m.refreshViewport()
}
