package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/theme"
)

// ConfigDoneMsg signals the settings view should close.
type ConfigDoneMsg struct{}

// SaveRequestMsg asks the parent to persist Config. The parent answers
// with SavedMsg.
type SaveRequestMsg struct {
	Config model.AppConfig
}

// SavedMsg reports the outcome of a save.
type SavedMsg struct {
	Path string
	Err  error
}

// formBindings keeps the huh field values on the heap so pointers survive
// model copies.
type formBindings struct {
	baseURL      string
	timeout      string
	taskPageSize string
	chatPageSize string
	pollInterval string
	logLevel     string
}

// Model is the settings screen.
type Model struct {
	form      *huh.Form
	fb        *formBindings
	base      model.AppConfig
	statusMsg string
	statusErr bool
	saving    bool
	width     int
	height    int
}

// New creates a settings view for cfg.
func New(cfg model.AppConfig, width, height int) Model {
	return Model{
		fb:     &formBindings{},
		base:   cfg,
		width:  width,
		height: height,
	}
}

// Init fills the form from the current configuration.
func (m *Model) Init() tea.Cmd {
	m.statusMsg = ""
	m.statusErr = false
	m.saving = false
	*m.fb = formBindings{
		baseURL:      m.base.API.BaseURL,
		timeout:      strconv.Itoa(m.base.API.TimeoutSec),
		taskPageSize: strconv.Itoa(m.base.Tasks.PageSize),
		chatPageSize: strconv.Itoa(m.base.Chat.PageSize),
		pollInterval: strconv.Itoa(m.base.Display.PollIntervalSec),
		logLevel:     m.base.Log.Level,
	}
	m.form = m.buildForm()
	return m.form.Init()
}

// Config returns the configuration the view was last saved with.
func (m Model) Config() model.AppConfig { return m.base }

// Update handles messages for the settings view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SavedMsg:
		m.saving = false
		if msg.Err != nil {
			m.statusMsg = fmt.Sprintf("Error saving settings: %v", msg.Err)
			m.statusErr = true
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.statusMsg = fmt.Sprintf("Saved to %s. Server and page size changes apply on next start.", msg.Path)
		m.statusErr = false
		return m, nil

	case tea.KeyMsg:
		if m.saving {
			return m, nil
		}
		if msg.String() == "esc" {
			return m, func() tea.Msg { return ConfigDoneMsg{} }
		}
	}

	if m.form == nil || m.form.State != huh.StateNormal {
		return m, nil
	}

	mdl, cmd := m.form.Update(msg)
	if f, ok := mdl.(*huh.Form); ok {
		m.form = f
	}

	switch m.form.State {
	case huh.StateCompleted:
		cfg, err := m.fb.apply(m.base)
		if err != nil {
			m.statusMsg = err.Error()
			m.statusErr = true
			m.form = m.buildForm()
			return m, m.form.Init()
		}
		m.base = cfg
		m.saving = true
		return m, func() tea.Msg { return SaveRequestMsg{Config: cfg} }
	case huh.StateAborted:
		return m, func() tea.Msg { return ConfigDoneMsg{} }
	}

	return m, cmd
}

// apply copies the form values onto base.
func (fb *formBindings) apply(base model.AppConfig) (model.AppConfig, error) {
	cfg := base
	cfg.API.BaseURL = strings.TrimRight(strings.TrimSpace(fb.baseURL), "/")

	fields := []struct {
		name string
		text string
		dst  *int
	}{
		{"Request timeout", fb.timeout, &cfg.API.TimeoutSec},
		{"Tasks per page", fb.taskPageSize, &cfg.Tasks.PageSize},
		{"Messages per page", fb.chatPageSize, &cfg.Chat.PageSize},
		{"Refresh interval", fb.pollInterval, &cfg.Display.PollIntervalSec},
	}
	for _, f := range fields {
		n, err := strconv.Atoi(strings.TrimSpace(f.text))
		if err != nil || n <= 0 {
			return base, fmt.Errorf("%s must be a positive number", f.name)
		}
		*f.dst = n
	}
	cfg.Log.Level = fb.logLevel
	return cfg, nil
}

// View renders the settings view.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	parts := []string{titleStyle.Render("Settings")}
	if m.statusMsg != "" {
		style := theme.HelpStyle
		if m.statusErr {
			style = theme.ErrorStyle
		}
		parts = append(parts, style.Render(m.statusMsg))
	}

	switch {
	case m.saving:
		parts = append(parts, theme.HelpStyle.Render("Saving…"))
	case m.form != nil && m.form.State == huh.StateNormal:
		parts = append(parts, m.form.View())
	default:
		parts = append(parts, theme.HelpStyle.Render("esc back"))
	}

	return lipgloss.NewStyle().
		Padding(1, 2).
		Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

// SetSize updates the view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	if m.form != nil {
		m.form = m.form.WithWidth(m.formWidth())
	}
}

func (m Model) formWidth() int {
	return min(max(m.width-4, 40), 80)
}

func (m *Model) buildForm() *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("API base URL").
				Placeholder("http://localhost:8000").
				Value(&m.fb.baseURL).
				Validate(validateURL),
			huh.NewInput().
				Title("Request timeout (seconds)").
				Value(&m.fb.timeout).
				Validate(validatePositive),
			huh.NewInput().
				Title("Tasks per page").
				Value(&m.fb.taskPageSize).
				Validate(validatePositive),
			huh.NewInput().
				Title("Messages per page").
				Value(&m.fb.chatPageSize).
				Validate(validatePositive),
			huh.NewInput().
				Title("Refresh interval (seconds)").
				Value(&m.fb.pollInterval).
				Validate(validatePositive),
			huh.NewSelect[string]().
				Title("Log level").
				Options(huh.NewOptions("debug", "info", "warn", "error")...).
				Value(&m.fb.logLevel),
		),
	).WithWidth(m.formWidth())
}

func validateURL(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("API base URL is required")
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New("must be an http(s) URL")
	}
	return nil
}

func validatePositive(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return errors.New("must be a positive number")
	}
	return nil
}
