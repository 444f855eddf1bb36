package store_test

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/store"
	"github.com/nhle/taskpilot/tests/testutil"
)

func TestMigrationsApplied(t *testing.T) {
	s := testutil.NewTestStore(t)

	v, err := s.SchemaVersion(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMigrationsIdempotentOnReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	s, err := store.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, s.SetPreference(t.Context(), store.KeyLastEmail, "a@b.c"))
	require.NoError(t, s.Close())

	s, err = store.NewSQLiteStore(path)
	require.NoError(t, err)
	defer s.Close()

	v, ok, err := s.GetPreference(t.Context(), store.KeyLastEmail)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "a@b.c", v)
}

func TestPreferences(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := t.Context()

	_, ok, err := s.GetPreference(ctx, store.KeyActiveConversation)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetPreference(ctx, store.KeyActiveConversation, "c1"))
	require.NoError(t, s.SetPreference(ctx, store.KeyActiveConversation, "c2"))

	v, ok, err := s.GetPreference(ctx, store.KeyActiveConversation)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "c2", v)

	require.NoError(t, s.DeletePreference(ctx, store.KeyActiveConversation))
	require.NoError(t, s.DeletePreference(ctx, store.KeyActiveConversation))

	_, ok, err = s.GetPreference(ctx, store.KeyActiveConversation)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestTaskSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := t.Context()

	due := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []model.Task{
		{
			ID: "1", Title: "Write report", Description: "quarterly",
			DueDate: &due, Priority: model.PriorityHigh, Tags: []string{"work"},
			CreatedAt: base, UpdatedAt: base,
		},
		{
			ID: "2", Title: "Buy milk", Priority: model.PriorityLow,
			Completed: true, CreatedAt: base, UpdatedAt: base.Add(time.Hour),
		},
	}
	require.NoError(t, s.SaveTaskSnapshot(ctx, "9", tasks))
	require.NoError(t, s.SaveTaskSnapshot(ctx, "10", tasks[:1]))

	got, err := s.GetTaskSnapshot(ctx, store.TaskFilter{UserID: "9"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, model.ID("2"), got[0].ID)
	assert.Equal(t, model.ID("9"), got[1].UserID)
	require.NotNil(t, got[1].DueDate)
	assert.True(t, due.Equal(*got[1].DueDate))
	assert.Equal(t, []string{"work"}, got[1].Tags)
	assert.Equal(t, model.PriorityHigh, got[1].Priority)

	n, err := s.CountTaskSnapshot(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err = s.GetTaskSnapshot(ctx, store.TaskFilter{UserID: "9", Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, model.ID("1"), got[0].ID)

	require.NoError(t, s.ClearTaskSnapshot(ctx, "9"))
	got, err = s.GetTaskSnapshot(ctx, store.TaskFilter{UserID: "9"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = s.GetTaskSnapshot(ctx, store.TaskFilter{UserID: "10"})
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReplaceAndDeleteTaskSnapshot(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := t.Context()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, s.SaveTaskSnapshot(ctx, "9", []model.Task{
		{ID: "1", Title: "Old", CreatedAt: base, UpdatedAt: base},
		{ID: "2", Title: "Gone on server", CreatedAt: base, UpdatedAt: base},
	}))
	require.NoError(t, s.SaveTaskSnapshot(ctx, "10", []model.Task{{ID: "7", Title: "Other user"}}))

	require.NoError(t, s.ReplaceTaskSnapshot(ctx, "9", []model.Task{
		{ID: "1", Title: "Renamed", CreatedAt: base, UpdatedAt: base},
		{ID: "3", Title: "New", CreatedAt: base, UpdatedAt: base.Add(time.Hour)},
	}))
	got, err := s.GetTaskSnapshot(ctx, store.TaskFilter{UserID: "9"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "New", got[0].Title)
	assert.Equal(t, "Renamed", got[1].Title)

	require.NoError(t, s.DeleteTaskSnapshot(ctx, "9", "3"))
	n, err := s.CountTaskSnapshot(ctx, "9")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.ClearTaskSnapshot(ctx, ""))
	for _, user := range []model.ID{"9", "10"} {
		n, err := s.CountTaskSnapshot(ctx, user)
		require.NoError(t, err)
		assert.Zero(t, n)
	}
}
