// Package login is the sign-in screen. It toggles between logging in to an
// existing account and creating a new one.
package login

import (
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskpilot/internal/theme"
)

// MinPasswordLength applies to new accounts only.
const MinPasswordLength = 8

// Mode selects between the two forms.
type Mode int

const (
	ModeLogin Mode = iota
	ModeSignup
)

// SubmitMsg carries the credentials entered by the user. Name is only set
// for signups and may be empty.
type SubmitMsg struct {
	Mode     Mode
	Email    string
	Password string
	Name     string
}

// formBindings keeps the huh field values on the heap so pointers survive
// model copies.
type formBindings struct {
	email    string
	password string
	name     string
}

// Model is the Bubble Tea model for the login screen.
type Model struct {
	form    *huh.Form
	fb      *formBindings
	mode    Mode
	err     string
	notice  string
	loading bool
	width   int
	height  int
}

// New creates the login screen in login mode.
func New(width, height int) Model {
	m := Model{
		fb:     &formBindings{},
		width:  width,
		height: height,
	}
	m.form = m.buildForm()
	return m
}

// Mode returns the active form.
func (m Model) Mode() Mode { return m.mode }

// Start resets the screen, prefilling email. notice is shown above the
// form, e.g. after the session expired.
func (m *Model) Start(email, notice string) tea.Cmd {
	*m.fb = formBindings{email: email}
	m.err = ""
	m.notice = notice
	m.loading = false
	m.form = m.buildForm()
	return m.form.Init()
}

// SetLoading marks a submission in flight.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// Retry reopens the form after a rejected submission. The email and name
// are kept; the password is cleared.
func (m *Model) Retry(errMsg string) tea.Cmd {
	m.loading = false
	m.err = errMsg
	m.fb.password = ""
	m.form = m.buildForm()
	return m.form.Init()
}

// Update handles messages for the login screen.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if m.loading {
		return m, nil
	}

	if k, ok := msg.(tea.KeyMsg); ok && k.String() == "ctrl+t" {
		m.toggle()
		return m, m.form.Init()
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		m.loading = true
		m.err = ""
		sub := SubmitMsg{
			Mode:     m.mode,
			Email:    strings.TrimSpace(m.fb.email),
			Password: m.fb.password,
		}
		if m.mode == ModeSignup {
			sub.Name = strings.TrimSpace(m.fb.name)
		}
		return m, func() tea.Msg { return sub }
	case huh.StateAborted:
		return m, tea.Quit
	}

	return m, cmd
}

func (m *Model) toggle() {
	if m.mode == ModeLogin {
		m.mode = ModeSignup
	} else {
		m.mode = ModeLogin
	}
	m.err = ""
	m.fb.password = ""
	m.form = m.buildForm()
}

// View renders the login screen.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title, hint := "Log in", "ctrl+t create an account"
	if m.mode == ModeSignup {
		title, hint = "Create account", "ctrl+t log in instead"
	}

	parts := []string{titleStyle.Render(title)}
	if m.notice != "" {
		parts = append(parts, theme.WarningStyle.Render(m.notice))
	}
	if m.err != "" {
		parts = append(parts, theme.ErrorStyle.Render(m.err))
	}
	if m.loading {
		parts = append(parts, theme.HelpStyle.Render("Signing in…"))
	} else {
		parts = append(parts, m.form.View(), theme.HelpStyle.Render(hint))
	}

	box := theme.DetailPanelStyle.
		Width(min(m.width-4, 60)).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box)
}

// SetSize updates the screen dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m *Model) buildForm() *huh.Form {
	fields := []huh.Field{
		huh.NewInput().
			Title("Email").
			Placeholder("you@example.com").
			Value(&m.fb.email).
			Validate(validateEmail),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&m.fb.password).
			Validate(m.passwordValidator()),
	}
	if m.mode == ModeSignup {
		fields = append(fields,
			huh.NewInput().
				Title("Name").
				Placeholder("optional").
				Value(&m.fb.name),
		)
	}

	return huh.NewForm(huh.NewGroup(fields...)).
		WithShowHelp(false).
		WithWidth(m.formWidth())
}

func (m Model) formWidth() int {
	return max(min(m.width-10, 54), 20)
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || strings.ContainsAny(s, " \t") {
		return errors.New("enter a valid email address")
	}
	return nil
}

func (m Model) passwordValidator() func(string) error {
	signup := m.mode == ModeSignup
	return func(s string) error {
		if s == "" {
			return errors.New("password is required")
		}
		if signup && len(s) < MinPasswordLength {
			return errors.New("password must be at least 8 characters")
		}
		return nil
	}
}
