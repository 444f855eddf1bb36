package app

import (
	"context"
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/chat"
	"github.com/nhle/taskpilot/internal/event"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/session"
	"github.com/nhle/taskpilot/internal/store"
	appsync "github.com/nhle/taskpilot/internal/sync"
	"github.com/nhle/taskpilot/internal/ui/command"
	"github.com/nhle/taskpilot/internal/ui/login"
	"github.com/nhle/taskpilot/internal/ui/taskform"
	"github.com/nhle/taskpilot/internal/ui/tasklist"
	"github.com/nhle/taskpilot/tests/testutil"
)

type fakeSession struct {
	state    session.State
	loginErr error
	logouts  int
	expires  int
}

func (f *fakeSession) Restore() session.State { return f.state }

func (f *fakeSession) Login(_ context.Context, email, _ string) error {
	if f.loginErr != nil {
		return f.loginErr
	}
	f.state = session.State{User: &model.User{ID: "u1", Email: email}, Token: "t"}
	return nil
}

func (f *fakeSession) Signup(_ context.Context, in model.SignupInput) error {
	f.state = session.State{User: &model.User{ID: "u2", Email: in.Email, Name: in.Name}, Token: "t"}
	return nil
}

func (f *fakeSession) Logout() error {
	f.logouts++
	f.state = session.State{}
	return nil
}

func (f *fakeSession) Expire() {
	f.expires++
	f.state = session.State{Error: api.SessionExpiredMessage}
}

func (f *fakeSession) State() session.State { return f.state }

type fakeTasks struct {
	tasks       []model.Task
	listCalls   int
	invalidated int
	resets      int
	saveErr     error
	created     []model.TaskInput
	deleted     []model.ID
}

func (f *fakeTasks) List(_ context.Context, _ model.ID, page, limit int) (*model.TaskPage, error) {
	f.listCalls++
	return &model.TaskPage{Tasks: f.tasks, Pagination: model.NewPagination(len(f.tasks), page, limit)}, nil
}

func (f *fakeTasks) Cached(context.Context, model.ID, int, int) (*model.TaskPage, error) {
	return &model.TaskPage{}, nil
}

func (f *fakeTasks) Get(_ context.Context, _, taskID model.ID) (*model.Task, error) {
	for _, t := range f.tasks {
		if t.ID == taskID {
			return &t, nil
		}
	}
	return nil, &api.Error{Kind: api.KindValidation, Status: 404, Message: "Task not found"}
}

func (f *fakeTasks) Create(_ context.Context, _ model.ID, in model.TaskInput) (*model.Task, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	f.created = append(f.created, in)
	return &model.Task{ID: "new", Title: in.Title}, nil
}

func (f *fakeTasks) Update(_ context.Context, _, taskID model.ID, in model.TaskInput) (*model.Task, error) {
	if f.saveErr != nil {
		return nil, f.saveErr
	}
	return &model.Task{ID: taskID, Title: in.Title}, nil
}

func (f *fakeTasks) Delete(_ context.Context, _, taskID model.ID) error {
	f.deleted = append(f.deleted, taskID)
	return nil
}

func (f *fakeTasks) ToggleComplete(_ context.Context, _ model.ID, task model.Task) (*model.Task, error) {
	task.Completed = !task.Completed
	return &task, nil
}

func (f *fakeTasks) Invalidate(model.ID)   { f.invalidated++ }
func (f *fakeTasks) Reset(context.Context) { f.resets++ }

type fakeChat struct {
	resets  int
	refetch int
	created int
}

func (f *fakeChat) Snapshot() chat.State { return chat.State{} }
func (f *fakeChat) Subscribe() (<-chan chat.State, func()) {
	return make(chan chat.State, 1), func() {}
}
func (f *fakeChat) Init(context.Context, int) error { return nil }
func (f *fakeChat) CreateConversation(context.Context, *string) (*model.Conversation, error) {
	f.created++
	return &model.Conversation{ID: "c"}, nil
}
func (f *fakeChat) SelectConversation(context.Context, model.ID)       {}
func (f *fakeChat) LoadMessages(context.Context, int) error            { return nil }
func (f *fakeChat) SendMessage(context.Context, string) error          { return nil }
func (f *fakeChat) DeleteConversation(context.Context, model.ID) error { return nil }
func (f *fakeChat) RefetchConversations(context.Context, int) error {
	f.refetch++
	return nil
}
func (f *fakeChat) ClearError()           {}
func (f *fakeChat) Reset(context.Context) { f.resets++ }

type fakePoller struct {
	running  bool
	starts   int
	stops    int
	triggers []string
}

func (f *fakePoller) Start() tea.Cmd {
	if f.running {
		return nil
	}
	f.running = true
	f.starts++
	return func() tea.Msg { return nil }
}

func (f *fakePoller) Stop() {
	if f.running {
		f.stops++
	}
	f.running = false
}

func (f *fakePoller) Trigger(name string)               { f.triggers = append(f.triggers, name) }
func (f *fakePoller) WaitForNextResult() tea.Cmd        { return func() tea.Msg { return nil } }
func (f *fakePoller) GetStatuses() []appsync.SyncStatus { return nil }

type harness struct {
	sess   *fakeSession
	tasks  *fakeTasks
	chat   *fakeChat
	poller *fakePoller
	signal *event.Broadcaster
	prefs  *store.SQLiteStore
}

func newHarness(t *testing.T, loggedIn bool) (Model, *harness) {
	t.Helper()
	h := &harness{
		sess:   &fakeSession{},
		tasks:  &fakeTasks{tasks: []model.Task{{ID: "1", Title: "Write tests"}}},
		chat:   &fakeChat{},
		poller: &fakePoller{},
		signal: event.NewBroadcaster(),
		prefs:  testutil.NewTestStore(t),
	}
	if loggedIn {
		h.sess.state = session.State{User: &model.User{ID: "u1", Email: "ada@example.com"}, Token: "t"}
	}

	m := New(Deps{
		Session:      h.sess,
		Tasks:        h.tasks,
		Chat:         h.chat,
		Poller:       h.poller,
		Unauthorized: h.signal,
		Prefs:        h.prefs,
		Config:       *model.DefaultAppConfig(),
		ConfigPath:   t.TempDir() + "/config.yaml",
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, h
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

// run delivers msg and then every message produced by the returned
// command. Commands returned by those follow-up messages are not run.
func run(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, cmd := m.Update(msg)
	m = next.(Model)
	for _, out := range collect(cmd) {
		m = update(t, m, out)
	}
	return m
}

func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestStartsOnLoginWithoutSession(t *testing.T) {
	m, h := newHarness(t, false)
	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Zero(t, h.poller.starts)
	assert.Contains(t, m.View(), "signed out")
}

func TestLoginPrefillsLastEmail(t *testing.T) {
	prefs := testutil.NewTestStore(t)
	require.NoError(t, prefs.SetPreference(t.Context(), store.KeyLastEmail, "ada@example.com"))

	m := New(Deps{
		Session: &fakeSession{},
		Tasks:   &fakeTasks{},
		Chat:    &fakeChat{},
		Poller:  &fakePoller{},
		Prefs:   prefs,
		Config:  *model.DefaultAppConfig(),
	})
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Contains(t, m.View(), "ada@example.com")
}

func TestRestoredSessionShowsTasks(t *testing.T) {
	m, h := newHarness(t, true)
	assert.Equal(t, ViewList, m.CurrentView())
	assert.Equal(t, 1, h.poller.starts)
	assert.Contains(t, m.View(), "ada@example.com")
}

func TestLoginSuccessEntersSession(t *testing.T) {
	m, h := newHarness(t, false)

	m = run(t, m, login.SubmitMsg{Mode: login.ModeLogin, Email: "ada@example.com", Password: "pw"})

	assert.Equal(t, ViewList, m.CurrentView())
	assert.Equal(t, 1, h.poller.starts)
	email, ok, err := h.prefs.GetPreference(t.Context(), store.KeyLastEmail)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "ada@example.com", email)
}

func TestLoginFailureStaysOnLogin(t *testing.T) {
	m, h := newHarness(t, false)
	h.sess.loginErr = &api.Error{Kind: api.KindUnauthorized, Status: 401, Message: "Invalid email or password"}

	m = run(t, m, login.SubmitMsg{Mode: login.ModeLogin, Email: "ada@example.com", Password: "bad"})

	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Contains(t, m.View(), "Invalid email or password")
	_, ok, err := h.prefs.GetPreference(t.Context(), store.KeyLastEmail)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSignupPassesName(t *testing.T) {
	m, h := newHarness(t, false)

	m = run(t, m, login.SubmitMsg{Mode: login.ModeSignup, Email: "bo@example.com", Password: "longpassword", Name: "Bo"})

	assert.Equal(t, ViewList, m.CurrentView())
	require.NotNil(t, h.sess.state.User.Name)
	assert.Equal(t, "Bo", *h.sess.state.User.Name)
}

func TestUnauthorizedSignalExpiresSession(t *testing.T) {
	m, h := newHarness(t, true)

	h.signal.Publish()
	msg := m.waitUnauthorized()()
	require.Equal(t, unauthorizedMsg{}, msg)
	m = update(t, m, msg)

	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Equal(t, 1, h.sess.expires)
	assert.Equal(t, 1, h.poller.stops)
	assert.Equal(t, 1, h.tasks.resets)
	assert.Equal(t, 1, h.chat.resets)
	assert.Contains(t, m.View(), api.SessionExpiredMessage)

	// A second signal while logged out changes nothing.
	m = update(t, m, unauthorizedMsg{})
	assert.Equal(t, 1, h.sess.expires)
}

func TestUnauthorizedSyncResultExpiresSession(t *testing.T) {
	m, h := newHarness(t, true)

	m = update(t, m, appsync.SyncResultMsg{Job: JobTasks, Error: errors.New("401"), Unauthorized: true})

	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Equal(t, 1, h.sess.expires)
}

func TestTasksSyncReloadsPage(t *testing.T) {
	m, h := newHarness(t, true)
	before := h.tasks.listCalls

	m = run(t, m, appsync.SyncResultMsg{Job: JobTasks})
	assert.Greater(t, h.tasks.listCalls, before)
	assert.Equal(t, ViewList, m.CurrentView())
}

func TestLogoutKey(t *testing.T) {
	m, h := newHarness(t, true)

	m = update(t, m, runes("L"))

	assert.Equal(t, ViewLogin, m.CurrentView())
	assert.Equal(t, 1, h.sess.logouts)
	assert.Zero(t, h.sess.expires)
	assert.Equal(t, 1, h.poller.stops)

	// Logging in again restarts the poller.
	m = run(t, m, login.SubmitMsg{Email: "ada@example.com", Password: "pw"})
	assert.Equal(t, 2, h.poller.starts)
	assert.Equal(t, ViewList, m.CurrentView())
}

func TestHelpToggle(t *testing.T) {
	m, _ := newHarness(t, true)

	m = update(t, m, runes("?"))
	assert.Equal(t, ViewHelp, m.CurrentView())
	assert.Contains(t, m.View(), "Keyboard Shortcuts")

	m = update(t, m, runes("?"))
	assert.Equal(t, ViewList, m.CurrentView())
}

func TestCommandPalette(t *testing.T) {
	m, h := newHarness(t, true)

	m = update(t, m, runes(":"))
	assert.Equal(t, ViewCommand, m.CurrentView())

	m = update(t, m, command.CommandMsg(command.Refresh))
	assert.Equal(t, ViewList, m.CurrentView())
	assert.Equal(t, 1, h.tasks.invalidated)
	assert.Equal(t, []string{JobTasks, JobConversations}, h.poller.triggers)
}

func TestGlobalKeysIgnoredWhileTyping(t *testing.T) {
	m, _ := newHarness(t, true)

	m = update(t, m, runes("c"))
	require.Equal(t, ViewAssistant, m.CurrentView())

	// The input has focus: q and L are text.
	m = update(t, m, runes("q"))
	m = update(t, m, runes("L"))
	assert.Equal(t, ViewAssistant, m.CurrentView())
	assert.Contains(t, m.View(), "qL")
}

func TestCreateTaskFlow(t *testing.T) {
	m, h := newHarness(t, true)

	m = update(t, m, tasklist.NewTaskMsg{})
	assert.Equal(t, ViewForm, m.CurrentView())

	m = run(t, m, taskform.SubmitMsg{Input: model.TaskInput{Title: "Buy milk", Priority: model.PriorityLow}})
	assert.Equal(t, ViewList, m.CurrentView())
	require.Len(t, h.tasks.created, 1)
	assert.Equal(t, "Buy milk", h.tasks.created[0].Title)
}

func TestRejectedSaveReopensForm(t *testing.T) {
	m, h := newHarness(t, true)
	h.tasks.saveErr = api.NewValidationError("VALIDATION_ERROR", "Title is required", nil)

	m = update(t, m, tasklist.NewTaskMsg{})
	m = run(t, m, taskform.SubmitMsg{Input: model.TaskInput{}})

	assert.Equal(t, ViewForm, m.CurrentView())
	assert.Contains(t, m.View(), "Title is required")
}

func TestDeleteShownTaskReturnsToList(t *testing.T) {
	m, h := newHarness(t, true)
	task := h.tasks.tasks[0]

	m = run(t, m, tasklist.SelectedTaskMsg{Task: task})
	require.Equal(t, ViewDetail, m.CurrentView())
	assert.Contains(t, m.View(), "Write tests")

	m = run(t, m, tasklist.DeleteTaskMsg{Task: task})
	assert.Equal(t, ViewList, m.CurrentView())
	assert.Equal(t, []model.ID{"1"}, h.tasks.deleted)
}

func TestJobs(t *testing.T) {
	sess := &fakeSession{}
	tasks := &fakeTasks{}
	ch := &fakeChat{}
	jobs := Jobs(sess, tasks, ch, *model.DefaultAppConfig())
	require.Len(t, jobs, 2)

	for _, j := range jobs {
		require.NoError(t, j.Run(t.Context()))
	}
	assert.Zero(t, tasks.listCalls)
	assert.Zero(t, ch.refetch)

	sess.state = session.State{User: &model.User{ID: "u1"}, Token: "t"}
	for _, j := range jobs {
		require.NoError(t, j.Run(t.Context()))
	}
	assert.Equal(t, 1, tasks.invalidated)
	assert.Equal(t, 1, tasks.listCalls)
	assert.Equal(t, 1, ch.refetch)
}
