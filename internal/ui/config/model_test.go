package config

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/model"
)

func newSettings() Model {
	m := New(*model.DefaultAppConfig(), 100, 40)
	m.Init()
	return m
}

func TestInitFillsFromConfig(t *testing.T) {
	m := newSettings()
	assert.Equal(t, "http://localhost:8000", m.fb.baseURL)
	assert.Equal(t, "10", m.fb.taskPageSize)
	assert.Equal(t, "50", m.fb.chatPageSize)
	assert.Equal(t, "info", m.fb.logLevel)
	assert.Contains(t, m.View(), "API base URL")
}

func TestApply(t *testing.T) {
	base := *model.DefaultAppConfig()
	fb := &formBindings{
		baseURL:      " https://tasks.example.com/ ",
		timeout:      "15",
		taskPageSize: "25",
		chatPageSize: "100",
		pollInterval: "30",
		logLevel:     "debug",
	}

	cfg, err := fb.apply(base)
	require.NoError(t, err)
	assert.Equal(t, "https://tasks.example.com", cfg.API.BaseURL)
	assert.Equal(t, 15, cfg.API.TimeoutSec)
	assert.Equal(t, 25, cfg.Tasks.PageSize)
	assert.Equal(t, 100, cfg.Chat.PageSize)
	assert.Equal(t, 30, cfg.Display.PollIntervalSec)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, base.Store, cfg.Store)

	fb.taskPageSize = "0"
	_, err = fb.apply(base)
	assert.EqualError(t, err, "Tasks per page must be a positive number")
}

func TestSavedMsg(t *testing.T) {
	m := newSettings()
	m.saving = true

	m, _ = m.Update(SavedMsg{Path: "/tmp/config.yaml"})
	assert.Contains(t, m.View(), "Saved to /tmp/config.yaml")

	m.saving = true
	m, cmd := m.Update(SavedMsg{Err: errors.New("disk full")})
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "disk full")
}

func TestEscCloses(t *testing.T) {
	m := newSettings()
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, ConfigDoneMsg{}, cmd())
}

func TestValidators(t *testing.T) {
	assert.NoError(t, validateURL("http://localhost:8000"))
	assert.Error(t, validateURL(""))
	assert.Error(t, validateURL("ftp://host"))
	assert.Error(t, validateURL("localhost:8000"))

	assert.NoError(t, validatePositive("3"))
	assert.Error(t, validatePositive("-1"))
	assert.Error(t, validatePositive("x"))
}
