package command

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup(t *testing.T) {
	for input, want := range map[string]Name{
		"tasks":    Tasks,
		" Chat ":   Assistant,
		"NEW":      NewTask,
		"new chat": NewChat,
		"sync":     Refresh,
		"config":   Settings,
		"q":        Quit,
		"logout":   Logout,
	} {
		got, ok := Lookup(input)
		assert.True(t, ok, input)
		assert.Equal(t, want, got, input)
	}

	_, ok := Lookup("launch rockets")
	assert.False(t, ok)
}

func TestEnterEmitsCommand(t *testing.T) {
	m := New(80, 20)
	m.input.SetValue("refresh")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, CommandMsg(Refresh), cmd())
	assert.Empty(t, m.input.Value())
}

func TestUnknownCommandShowsError(t *testing.T) {
	m := New(80, 20)
	m.input.SetValue("dance")

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), `Unknown command "dance"`)
}

func TestEscCloses(t *testing.T) {
	m := New(80, 20)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	require.NotNil(t, cmd)
	assert.Equal(t, CloseMsg{}, cmd())
}
