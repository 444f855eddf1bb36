package tasklist

import (
	"context"
	"errors"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/keys"
	"github.com/nhle/taskpilot/internal/model"
)

type fakeLoader struct {
	pages     map[int]*model.TaskPage
	listErr   error
	cached    *model.TaskPage
	listCalls []int
}

func (f *fakeLoader) List(_ context.Context, _ model.ID, page, _ int) (*model.TaskPage, error) {
	f.listCalls = append(f.listCalls, page)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.pages[page], nil
}

func (f *fakeLoader) Cached(context.Context, model.ID, int, int) (*model.TaskPage, error) {
	if f.cached == nil {
		return &model.TaskPage{}, nil
	}
	return f.cached, nil
}

func page(n, total int, titles ...string) *model.TaskPage {
	p := &model.TaskPage{Pagination: model.NewPagination(total, n, 2)}
	for _, title := range titles {
		p.Tasks = append(p.Tasks, model.Task{ID: model.ID(title), Title: title, Priority: model.PriorityMedium})
	}
	return p
}

func keyMsg(s string) tea.KeyMsg {
	if s == "enter" {
		return tea.KeyMsg{Type: tea.KeyEnter}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// run executes cmd and feeds the resulting message back into m.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	require.NotNil(t, cmd)
	m, _ = m.Update(cmd())
	return m
}

func newModel(l Loader) Model {
	m := New(l, keys.DefaultKeyMap(), 2, 80, 20)
	m.SetUser("u1")
	return m
}

func TestLoadPageShowsTasks(t *testing.T) {
	l := &fakeLoader{pages: map[int]*model.TaskPage{1: page(1, 3, "a", "b")}}
	m := newModel(l)

	m = run(t, m, m.Init())

	task, ok := m.SelectedTask()
	require.True(t, ok)
	assert.Equal(t, "a", task.Title)
	assert.False(t, m.Offline())
	assert.Contains(t, m.View(), "page 1 of 2")
}

func TestLoadPageWithoutUserIsNoop(t *testing.T) {
	m := New(&fakeLoader{}, keys.DefaultKeyMap(), 2, 80, 20)
	assert.Nil(t, m.LoadPage())
}

func TestPagingKeys(t *testing.T) {
	l := &fakeLoader{pages: map[int]*model.TaskPage{
		1: page(1, 3, "a", "b"),
		2: page(2, 3, "c"),
	}}
	m := newModel(l)
	m = run(t, m, m.Init())

	m, cmd := m.Update(keyMsg("]"))
	m = run(t, m, cmd)
	assert.Equal(t, 2, m.Page())
	task, _ := m.SelectedTask()
	assert.Equal(t, "c", task.Title)

	// Last page: next is ignored.
	_, cmd = m.Update(keyMsg("]"))
	assert.Nil(t, cmd)

	m, cmd = m.Update(keyMsg("["))
	m = run(t, m, cmd)
	assert.Equal(t, 1, m.Page())
	assert.Equal(t, []int{1, 2, 1}, l.listCalls)
}

func TestNetworkFailureFallsBackToSnapshot(t *testing.T) {
	l := &fakeLoader{
		listErr: &api.Error{Kind: api.KindNetwork, Message: "offline"},
		cached:  page(1, 1, "saved"),
	}
	m := newModel(l)
	m = run(t, m, m.Init())

	assert.True(t, m.Offline())
	task, ok := m.SelectedTask()
	require.True(t, ok)
	assert.Equal(t, "saved", task.Title)
	assert.Contains(t, m.View(), "offline copy")
}

func TestServerFailureShowsError(t *testing.T) {
	l := &fakeLoader{
		listErr: &api.Error{Kind: api.KindServer, Message: "HTTP 500"},
		cached:  page(1, 1, "saved"),
	}
	m := newModel(l)
	m = run(t, m, m.Init())

	assert.False(t, m.Offline())
	_, ok := m.SelectedTask()
	assert.False(t, ok)
	assert.Contains(t, m.View(), "HTTP 500")
}

func TestPlainErrorIsShown(t *testing.T) {
	m := newModel(&fakeLoader{listErr: errors.New("boom")})
	m = run(t, m, m.Init())
	assert.Contains(t, m.View(), "boom")
}

func TestActionKeysEmitMessages(t *testing.T) {
	l := &fakeLoader{pages: map[int]*model.TaskPage{1: page(1, 1, "a")}}
	m := newModel(l)
	m = run(t, m, m.Init())

	_, cmd := m.Update(keyMsg("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, "a", cmd().(SelectedTaskMsg).Task.Title)

	_, cmd = m.Update(keyMsg("x"))
	require.NotNil(t, cmd)
	assert.IsType(t, ToggleTaskMsg{}, cmd())

	_, cmd = m.Update(keyMsg("e"))
	require.NotNil(t, cmd)
	assert.IsType(t, EditTaskMsg{}, cmd())

	_, cmd = m.Update(keyMsg("n"))
	require.NotNil(t, cmd)
	assert.IsType(t, NewTaskMsg{}, cmd())
}

func TestDeleteNeedsConfirmation(t *testing.T) {
	l := &fakeLoader{pages: map[int]*model.TaskPage{1: page(1, 1, "a")}}
	m := newModel(l)
	m = run(t, m, m.Init())

	m, cmd := m.Update(keyMsg("d"))
	assert.Nil(t, cmd)
	assert.Contains(t, m.View(), `Delete "a"?`)

	m, cmd = m.Update(keyMsg("n"))
	assert.Nil(t, cmd)
	assert.NotContains(t, m.View(), "Delete")

	m, _ = m.Update(keyMsg("d"))
	_, cmd = m.Update(keyMsg("y"))
	require.NotNil(t, cmd)
	assert.Equal(t, "a", cmd().(DeleteTaskMsg).Task.Title)
}

func TestRenderTaskMarksOverdue(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	due := now.Add(-48 * time.Hour)

	open := model.Task{Title: "late", Priority: model.PriorityHigh, DueDate: &due, Tags: []string{"a", "b", "c"}}
	line := renderTask(open, now, 80)
	assert.Contains(t, line, "OVERDUE")
	assert.Contains(t, line, "HIGH")
	assert.Contains(t, line, "#a")
	assert.NotContains(t, line, "#c")

	open.Completed = true
	assert.NotContains(t, renderTask(open, now, 80), "OVERDUE")
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, "", relativeTime(time.Time{}, now))
	assert.Equal(t, "just now", relativeTime(now.Add(-10*time.Second), now))
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "3h ago", relativeTime(now.Add(-3*time.Hour), now))
	assert.Equal(t, "2d ago", relativeTime(now.Add(-48*time.Hour), now))
	assert.Equal(t, "2w ago", relativeTime(now.Add(-15*24*time.Hour), now))
}
