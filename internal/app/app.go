package app

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskpilot/internal/keys"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/session"
	"github.com/nhle/taskpilot/internal/store"
	appsync "github.com/nhle/taskpilot/internal/sync"
	"github.com/nhle/taskpilot/internal/ui"
	"github.com/nhle/taskpilot/internal/ui/assistant"
	"github.com/nhle/taskpilot/internal/ui/command"
	configview "github.com/nhle/taskpilot/internal/ui/config"
	"github.com/nhle/taskpilot/internal/ui/detail"
	helpview "github.com/nhle/taskpilot/internal/ui/help"
	"github.com/nhle/taskpilot/internal/ui/login"
	"github.com/nhle/taskpilot/internal/ui/taskform"
	"github.com/nhle/taskpilot/internal/ui/tasklist"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewLogin ViewState = iota
	ViewList
	ViewDetail
	ViewForm
	ViewAssistant
	ViewSettings
	ViewHelp
	ViewCommand
)

// Session is the login state the app drives.
type Session interface {
	Restore() session.State
	Login(ctx context.Context, email, password string) error
	Signup(ctx context.Context, in model.SignupInput) error
	Logout() error
	Expire()
	State() session.State
}

// Tasks is the task list state controller.
type Tasks interface {
	tasklist.Loader
	Get(ctx context.Context, userID, taskID model.ID) (*model.Task, error)
	Create(ctx context.Context, userID model.ID, in model.TaskInput) (*model.Task, error)
	Update(ctx context.Context, userID, taskID model.ID, in model.TaskInput) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID model.ID) error
	ToggleComplete(ctx context.Context, userID model.ID, task model.Task) (*model.Task, error)
	Invalidate(userID model.ID)
	Reset(ctx context.Context)
}

// Chat is the chat session state controller.
type Chat interface {
	assistant.Controller
	Reset(ctx context.Context)
}

// Poller runs the background refresh jobs.
type Poller interface {
	Start() tea.Cmd
	Stop()
	Trigger(name string)
	WaitForNextResult() tea.Cmd
	GetStatuses() []appsync.SyncStatus
}

// Signal delivers the process-wide "unauthorized" event.
type Signal interface {
	Subscribe() (<-chan struct{}, func())
}

// Preferences stores small values between runs.
type Preferences interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
}

// Deps are the collaborators of the root model.
type Deps struct {
	Session      Session
	Tasks        Tasks
	Chat         Chat
	Poller       Poller
	Unauthorized Signal
	Prefs        Preferences
	Config       model.AppConfig
	ConfigPath   string
	Log          logrus.FieldLogger
}

// unauthorizedMsg is delivered when the API client gives up on the token.
type unauthorizedMsg struct{}

// Model is the root Bubble Tea model that manages view routing and the
// session lifecycle.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	cfg          model.AppConfig
	cfgPath      string
	log          logrus.FieldLogger

	session Session
	tasks   Tasks
	chat    Chat
	poller  Poller
	prefs   Preferences

	unauthorized    <-chan struct{}
	pollerListening bool

	loginView     login.Model
	taskList      tasklist.Model
	detail        detail.Model
	formView      taskform.Model
	assistantView assistant.Model
	settingsView  configview.Model
	helpView      helpview.Model
	commandView   command.Model

	user    *model.User
	banner  string
	initCmd tea.Cmd
	ready   bool
}

// New creates the root model and restores a stored session. Without a
// valid token the login screen is shown first.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	log := d.Log
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}

	m := Model{
		currentView:   ViewLogin,
		layout:        ui.NewLayout(80, 24),
		keys:          k,
		cfg:           d.Config,
		cfgPath:       d.ConfigPath,
		log:           log.WithField("component", "app"),
		session:       d.Session,
		tasks:         d.Tasks,
		chat:          d.Chat,
		poller:        d.Poller,
		prefs:         d.Prefs,
		loginView:     login.New(80, 24),
		taskList:      tasklist.New(d.Tasks, k, d.Config.Tasks.PageSize, 80, 24),
		detail:        detail.New(k, 80, 24),
		formView:      taskform.New(80, 24),
		assistantView: assistant.New(d.Chat, k, d.Config.Chat.PageSize, 80, 24),
		settingsView:  configview.New(d.Config, 80, 24),
		helpView:      helpview.New(k, 80, 24),
		commandView:   command.New(80, 24),
	}
	m.helpView.SetSession(nil, d.Config.API.BaseURL)

	var cmds []tea.Cmd
	if d.Unauthorized != nil {
		// The subscription lives as long as the process.
		m.unauthorized, _ = d.Unauthorized.Subscribe()
		cmds = append(cmds, m.waitUnauthorized())
	}

	if st := d.Session.Restore(); st.User != nil {
		cmds = append(cmds, m.enterSession())
	} else {
		cmds = append(cmds, m.loginView.Start(m.lastEmail(), ""))
	}
	m.initCmd = tea.Batch(cmds...)
	return m
}

// Init returns the commands prepared by New.
func (m Model) Init() tea.Cmd {
	return m.initCmd
}

// CurrentView returns the view on screen.
func (m Model) CurrentView() ViewState { return m.currentView }

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.assistantView.Handles(msg) {
		var cmd tea.Cmd
		m.assistantView, cmd = m.assistantView.Update(msg)
		return m, cmd
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height).WithBanner(m.banner != "")
		m.ready = true
		m.resize()
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case unauthorizedMsg:
		cmd := m.expireSession()
		return m, tea.Batch(cmd, m.waitUnauthorized())

	case appsync.SyncResultMsg:
		return m.handleSyncResult(msg)

	case login.SubmitMsg:
		cmd := m.authenticate(msg)
		return m, cmd

	case authResultMsg:
		return m.handleAuthResult(msg)

	case tasklist.SelectedTaskMsg:
		return m.openDetail(msg.Task)

	case tasklist.NewTaskMsg:
		return m.openForm(nil)

	case tasklist.EditTaskMsg:
		return m.openForm(&msg.Task)

	case tasklist.ToggleTaskMsg:
		cmd := m.toggleTask(msg.Task)
		return m, cmd

	case tasklist.DeleteTaskMsg:
		cmd := m.deleteTask(msg.Task)
		return m, cmd

	case detail.BackMsg:
		m.currentView = ViewList
		return m, nil

	case detail.ActionMsg:
		switch msg.Action {
		case detail.ActionToggle:
			cmd := m.toggleTask(msg.Task)
			return m, cmd
		case detail.ActionEdit:
			return m.openForm(&msg.Task)
		}
		return m, nil

	case taskform.SubmitMsg:
		return m.saveTask(msg)

	case taskform.CancelMsg:
		m.currentView = m.previousView
		return m, nil

	case taskLoadedMsg:
		return m.handleTaskLoaded(msg)

	case taskSavedMsg:
		return m.handleTaskSaved(msg)

	case taskToggledMsg:
		return m.handleTaskToggled(msg)

	case taskDeletedMsg:
		return m.handleTaskDeleted(msg)

	case assistant.CloseMsg:
		m.currentView = ViewList
		return m, nil

	case configview.SaveRequestMsg:
		cmd := m.saveConfig(msg.Config)
		return m, cmd

	case configview.ConfigDoneMsg:
		m.currentView = m.previousView
		return m, nil

	case command.CommandMsg:
		m.currentView = m.previousView
		return m.executeCommand(command.Name(msg))

	case command.CloseMsg:
		m.currentView = m.previousView
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.poller.Stop()
			return m, tea.Quit
		}
		if m.banner != "" {
			m.setBanner("")
		}
		if m.globalKeysActive() {
			if mdl, cmd, ok := m.handleGlobalKey(msg); ok {
				return mdl, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// globalKeysActive reports whether single-letter shortcuts should be
// interpreted by the root model rather than typed into a view.
func (m Model) globalKeysActive() bool {
	switch m.currentView {
	case ViewList:
		return !m.taskList.Confirming()
	case ViewDetail, ViewHelp:
		return true
	case ViewAssistant:
		return !m.assistantView.Typing()
	default:
		return false
	}
}

// handleGlobalKey processes shortcuts that work across views. ok is false
// when the key was not consumed.
func (m Model) handleGlobalKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		if m.currentView == ViewList {
			m.poller.Stop()
			return m, tea.Quit, true
		}

	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return m, nil, true
		}
		m.helpView.SetStatuses(m.poller.GetStatuses())
		m.switchTo(ViewHelp)
		return m, nil, true

	case key.Matches(msg, m.keys.Command):
		m.switchTo(ViewCommand)
		cmd := m.commandView.Focus()
		return m, cmd, true

	case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
		m.currentView = m.previousView
		return m, nil, true

	case m.currentView == ViewAssistant:
		// The sidebar owns the remaining keys.
		return m, nil, false

	case key.Matches(msg, m.keys.Tasks):
		m.currentView = ViewList
		return m, nil, true

	case key.Matches(msg, m.keys.Chat):
		m.switchTo(ViewAssistant)
		cmd := m.assistantView.Start()
		return m, cmd, true

	case key.Matches(msg, m.keys.Settings):
		m.switchTo(ViewSettings)
		cmd := m.settingsView.Init()
		return m, cmd, true

	case key.Matches(msg, m.keys.Logout):
		cmd := m.logout()
		return m, cmd, true

	case m.currentView == ViewList && key.Matches(msg, m.keys.Refresh):
		m.tasks.Invalidate(m.userID())
		m.poller.Trigger(JobConversations)
		cmd := m.taskList.LoadPage()
		return m, cmd, true
	}

	return m, nil, false
}

// switchTo remembers the current view and shows v. Overlays are never
// remembered, so closing a view opened from help returns past it.
func (m *Model) switchTo(v ViewState) {
	if m.currentView != v && m.currentView != ViewHelp && m.currentView != ViewCommand {
		m.previousView = m.currentView
	}
	m.currentView = v
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewLogin:
		m.loginView, cmd = m.loginView.Update(msg)
	case ViewList:
		m.taskList, cmd = m.taskList.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewForm:
		m.formView, cmd = m.formView.Update(msg)
	case ViewAssistant:
		m.assistantView, cmd = m.assistantView.Update(msg)
	case ViewSettings:
		m.settingsView, cmd = m.settingsView.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// setBanner shows or clears the error banner and gives the reclaimed row
// back to the views.
func (m *Model) setBanner(message string) {
	m.banner = message
	m.layout = m.layout.WithBanner(message != "")
	m.resize()
}

func (m *Model) resize() {
	w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
	m.loginView.SetSize(w, h)
	m.taskList.SetSize(w, h)
	m.detail.SetSize(w, h)
	m.formView.SetSize(w, h)
	m.assistantView.SetSize(w, h)
	m.settingsView.SetSize(w, h)
	m.helpView.SetSize(w, h)
	m.commandView.SetSize(w, h)
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	title := "taskpilot"
	if m.user != nil {
		title = fmt.Sprintf("taskpilot · %s", m.user.DisplayName())
	}
	header := m.layout.RenderHeader(title, m.syncStatus())
	banner := m.layout.RenderBanner(m.banner)
	statusBar := m.layout.RenderStatusBar(m.keyHints())

	return m.layout.RenderWithFrame(header, banner, m.renderContent(), statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewLogin:
		return m.loginView.View()
	case ViewList:
		return m.taskList.View()
	case ViewDetail:
		return m.detail.View()
	case ViewForm:
		return m.formView.View()
	case ViewAssistant:
		return m.assistantView.View()
	case ViewSettings:
		return m.settingsView.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

// syncStatus returns a short string describing the background refresh.
func (m Model) syncStatus() string {
	if m.user == nil {
		return "signed out"
	}

	running := 0
	var failed []string
	for _, s := range m.poller.GetStatuses() {
		switch s.State {
		case appsync.SyncRunning:
			running++
		case appsync.SyncError:
			failed = append(failed, s.Job)
		}
	}

	switch {
	case running > 0:
		return fmt.Sprintf("syncing (%d)", running)
	case len(failed) > 0:
		return fmt.Sprintf("⚠ refresh failed: %s", joinNames(failed))
	case m.taskList.Offline():
		return "offline"
	default:
		return "up to date"
	}
}

func joinNames(names []string) string {
	result := names[0]
	for _, n := range names[1:] {
		result += ", " + n
	}
	return result
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewLogin:
		return "enter submit | ctrl+t switch login/signup | ctrl+c quit"
	case ViewHelp:
		return "? close help | esc back"
	case ViewCommand:
		return "enter run | tab complete | esc back"
	case ViewDetail:
		return "esc back | x toggle done | e edit | j/k scroll"
	case ViewForm:
		return "enter next/submit | shift+tab back | esc cancel"
	case ViewAssistant:
		if m.assistantView.Typing() {
			return "enter send | tab conversations | esc conversations"
		}
		return "enter open | n new | d delete | r refresh | tab input | esc close"
	case ViewSettings:
		return "enter next/save | esc back"
	default:
		return "q quit | ? help | n new | x done | d delete | [/] page | c assistant | : command"
	}
}

func (m Model) userID() model.ID {
	if m.user == nil {
		return ""
	}
	return m.user.ID
}

// lastEmail returns the email of the last successful login, if stored.
func (m Model) lastEmail() string {
	if m.prefs == nil {
		return ""
	}
	email, _, err := m.prefs.GetPreference(context.Background(), store.KeyLastEmail)
	if err != nil {
		m.log.WithError(err).Warn("reading last email")
	}
	return email
}

func (m Model) waitUnauthorized() tea.Cmd {
	ch := m.unauthorized
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return unauthorizedMsg{}
	}
}
