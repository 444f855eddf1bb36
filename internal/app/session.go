package app

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/store"
	appsync "github.com/nhle/taskpilot/internal/sync"
	configview "github.com/nhle/taskpilot/internal/ui/config"
	"github.com/nhle/taskpilot/internal/ui/login"
)

// Background job names.
const (
	JobTasks         = "tasks"
	JobConversations = "conversations"
)

// authResultMsg reports a finished login or signup.
type authResultMsg struct {
	email string
	err   error
}

// Jobs returns the background refreshes for the poller. Each is a no-op
// while nobody is logged in.
func Jobs(sess Session, tasks Tasks, chat Chat, cfg model.AppConfig) []appsync.Job {
	interval := time.Duration(cfg.Display.PollIntervalSec) * time.Second
	return []appsync.Job{
		{
			Name:     JobTasks,
			Interval: interval,
			Run: func(ctx context.Context) error {
				user := sess.State().User
				if user == nil {
					return nil
				}
				tasks.Invalidate(user.ID)
				_, err := tasks.List(ctx, user.ID, 1, cfg.Tasks.PageSize)
				return err
			},
		},
		{
			Name:     JobConversations,
			Interval: interval,
			Run: func(ctx context.Context) error {
				if sess.State().User == nil {
					return nil
				}
				return chat.RefetchConversations(ctx, cfg.Chat.PageSize)
			},
		},
	}
}

// authenticate runs the login or signup call for the submitted form.
func (m Model) authenticate(msg login.SubmitMsg) tea.Cmd {
	sess, prefs, log := m.session, m.prefs, m.log
	return func() tea.Msg {
		ctx := context.Background()
		var err error
		if msg.Mode == login.ModeSignup {
			in := model.SignupInput{Email: msg.Email, Password: msg.Password}
			if msg.Name != "" {
				name := msg.Name
				in.Name = &name
			}
			err = sess.Signup(ctx, in)
		} else {
			err = sess.Login(ctx, msg.Email, msg.Password)
		}
		if err == nil && prefs != nil {
			if perr := prefs.SetPreference(ctx, store.KeyLastEmail, msg.Email); perr != nil {
				log.WithError(perr).Warn("saving last email")
			}
		}
		return authResultMsg{email: msg.Email, err: err}
	}
}

func (m Model) handleAuthResult(msg authResultMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		cmd := m.loginView.Retry(api.Message(msg.err))
		return m, cmd
	}
	cmd := m.enterSession()
	return m, cmd
}

// enterSession shows the task list for the logged-in user and starts the
// background refresh.
func (m *Model) enterSession() tea.Cmd {
	user := m.session.State().User
	if user == nil {
		return nil
	}
	m.user = user
	m.currentView = ViewList
	m.previousView = ViewList
	m.taskList.SetUser(user.ID)
	m.helpView.SetSession(user, m.cfg.API.BaseURL)
	m.log.WithField("user_id", user.ID).Info("session started")

	return tea.Batch(m.taskList.LoadPage(), m.startPoller())
}

// startPoller starts the jobs. Only the first start hands out the result
// listener; every SyncResultMsg re-arms it, so exactly one stays active
// across logins.
func (m *Model) startPoller() tea.Cmd {
	wait := m.poller.Start()
	if wait == nil || m.pollerListening {
		return nil
	}
	m.pollerListening = true
	return wait
}

// logout ends the session at the user's request.
func (m *Model) logout() tea.Cmd {
	if err := m.session.Logout(); err != nil {
		m.log.WithError(err).Warn("removing stored token")
	}
	return m.leaveSession("")
}

// expireSession ends the session after the server rejected the token.
// It is a no-op when nobody is logged in.
func (m *Model) expireSession() tea.Cmd {
	if m.user == nil {
		return nil
	}
	m.session.Expire()
	return m.leaveSession(api.SessionExpiredMessage)
}

// leaveSession drops every per-user cache and shows the login screen.
func (m *Model) leaveSession(notice string) tea.Cmd {
	m.poller.Stop()
	m.tasks.Reset(context.Background())
	m.chat.Reset(context.Background())
	m.assistantView.Stop()
	m.taskList.SetUser("")
	m.detail.Clear()
	m.user = nil
	m.helpView.SetSession(nil, m.cfg.API.BaseURL)
	m.banner = ""
	m.layout = m.layout.WithBanner(false)
	m.resize()
	m.currentView = ViewLogin
	m.previousView = ViewLogin
	m.log.Info("session ended")

	return m.loginView.Start(m.lastEmail(), notice)
}

func (m Model) handleSyncResult(msg appsync.SyncResultMsg) (tea.Model, tea.Cmd) {
	cmds := []tea.Cmd{m.poller.WaitForNextResult()}

	switch {
	case msg.Unauthorized:
		cmds = append(cmds, m.expireSession())
	case msg.Error == nil && msg.Job == JobTasks && m.user != nil:
		// The job refreshed the cache; show the new copy of this page.
		cmds = append(cmds, m.taskList.LoadPage())
	}

	return m, tea.Batch(cmds...)
}

// saveConfig writes cfg to the config file.
func (m Model) saveConfig(cfg model.AppConfig) tea.Cmd {
	path := m.cfgPath
	return func() tea.Msg {
		err := model.SaveConfig(path, &cfg)
		return configview.SavedMsg{Path: path, Err: err}
	}
}
