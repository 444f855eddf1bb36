// Package session tracks who is logged in. The bearer token is the only
// persisted artifact; the user is derived from it or from the login
// response.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/credential"
	"github.com/nhle/taskpilot/internal/model"
)

// Authenticator performs the login and signup calls.
type Authenticator interface {
	Login(ctx context.Context, in model.LoginInput) (*model.AuthResult, error)
	Signup(ctx context.Context, in model.SignupInput) (*model.AuthResult, error)
}

// Tokens is the persistent token store.
type Tokens interface {
	Get() (string, bool)
	Save(token string) error
	Remove() error
}

// State is a snapshot of the session. Token is read from the token store
// when the snapshot is taken; the Manager keeps no copy of it.
type State struct {
	User    *model.User
	Token   string
	Loading bool
	Error   string
}

// Manager owns the session state. It is safe for concurrent use.
type Manager struct {
	auth   Authenticator
	tokens Tokens
	now    func() time.Time
	log    *logrus.Entry

	mu    sync.RWMutex
	state State
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = l.WithField("component", "session") }
}

// NewManager creates a Manager with an empty session.
func NewManager(auth Authenticator, tokens Tokens, opts ...Option) *Manager {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	m := &Manager{
		auth:   auth,
		tokens: tokens,
		now:    time.Now,
		log:    logrus.NewEntry(l),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Restore loads the stored token. An expired or undecodable token is
// removed and the session stays empty.
func (m *Manager) Restore() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.tokens.Get()
	if !ok {
		m.state = State{}
		return State{}
	}

	user, valid := userFromToken(token, m.now())
	if !valid {
		m.log.Info("stored token expired, discarding")
		if err := m.tokens.Remove(); err != nil {
			m.log.WithError(err).Warn("removing expired token")
		}
		m.state = State{}
		return State{}
	}

	m.state = State{User: user}
	return m.snapshotLocked()
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	in := model.LoginInput{Email: strings.TrimSpace(email), Password: password}
	return m.authenticate(func() (*model.AuthResult, error) {
		return m.auth.Login(ctx, in)
	})
}

// Signup creates an account and logs in.
func (m *Manager) Signup(ctx context.Context, in model.SignupInput) error {
	in.Email = strings.TrimSpace(in.Email)
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		in.Name = &name
		if name == "" {
			in.Name = nil
		}
	}
	return m.authenticate(func() (*model.AuthResult, error) {
		return m.auth.Signup(ctx, in)
	})
}

func (m *Manager) authenticate(call func() (*model.AuthResult, error)) error {
	m.mu.Lock()
	m.state.Loading = true
	m.state.Error = ""
	m.mu.Unlock()

	res, err := call()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Loading = false

	if err != nil {
		m.state.Error = api.Message(err)
		return err
	}
	if err := m.tokens.Save(res.Token); err != nil {
		m.state.Error = "Could not store credentials"
		return err
	}

	user := res.User
	if user.ID.IsZero() {
		if derived, ok := userFromToken(res.Token, m.now()); ok {
			user = *derived
		}
	}
	m.state = State{User: &user}
	m.log.WithField("user_id", user.ID).Info("logged in")
	return nil
}

// Logout clears the token and the user.
func (m *Manager) Logout() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = State{}
	if err := m.tokens.Remove(); err != nil {
		return err
	}
	m.log.Info("logged out")
	return nil
}

// Expire ends the session after the server rejected the token. The token
// store has already been cleared by the API client.
func (m *Manager) Expire() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = State{Error: api.SessionExpiredMessage}
	m.log.Info("session expired")
}

// IsAuthenticated holds iff there is a user and the stored token has not
// expired. The store is read on every call so a refreshed token counts.
func (m *Manager) IsAuthenticated() bool {
	m.mu.RLock()
	hasUser := m.state.User != nil
	m.mu.RUnlock()
	if !hasUser {
		return false
	}

	token, ok := m.tokens.Get()
	return ok && token != "" && !credential.IsExpired(token, m.now())
}

// State returns a copy of the current session.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	s := m.state
	if s.User != nil {
		u := *s.User
		s.User = &u
		s.Token, _ = m.tokens.Get()
	}
	return s
}

// ClearError drops the last error message.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Error = ""
}

func userFromToken(token string, now time.Time) (*model.User, bool) {
	if credential.IsExpired(token, now) {
		return nil, false
	}
	claims, ok := credential.Decode(token)
	if !ok || claims.Identity().IsZero() {
		return nil, false
	}

	user := &model.User{ID: claims.Identity(), Email: claims.Email}
	if claims.Name != "" {
		name := claims.Name
		user.Name = &name
	}
	return user, true
}
