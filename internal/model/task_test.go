package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTags(t *testing.T) {
	assert.Equal(t, []string{"work", "home", "urgent"}, ParseTags(" work, home ,,urgent "))
	assert.Nil(t, ParseTags(""))
	assert.Nil(t, ParseTags("  "))
	assert.Equal(t, "a,b", JoinTags([]string{" a", "", "b "}))
}

func TestTaskDecodesWireForm(t *testing.T) {
	raw := `{
		"id": 42,
		"user_id": "u-1",
		"title": "Ship it",
		"description": null,
		"due_date": "2026-03-15T14:30:00Z",
		"priority": null,
		"tags": "release, backend",
		"completed": true,
		"completed_at": "2026-03-14T09:00:00.123456",
		"created_at": "2026-03-01T08:00:00Z",
		"updated_at": "2026-03-14T09:00:00Z"
	}`

	var task Task
	require.NoError(t, json.Unmarshal([]byte(raw), &task))

	assert.Equal(t, ID("42"), task.ID)
	assert.Equal(t, ID("u-1"), task.UserID)
	assert.Empty(t, task.Description)
	assert.Equal(t, PriorityMedium, task.Priority)
	assert.Equal(t, []string{"release", "backend"}, task.Tags)
	require.NotNil(t, task.DueDate)
	assert.Equal(t, time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC), task.DueDate.UTC())
	require.NotNil(t, task.CompletedAt)
	assert.Equal(t, 14, task.CompletedAt.Day())
}

func TestTaskInputEncodesTagsAsString(t *testing.T) {
	data, err := json.Marshal(TaskInput{
		Title:   "  Plan  ",
		DueDate: "2026-03-15",
		Tags:    []string{"a", " b"},
	})
	require.NoError(t, err)

	var body map[string]any
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "Plan", body["title"])
	assert.Equal(t, "a,b", body["tags"])
	assert.Equal(t, "medium", body["priority"])
	assert.Equal(t, "2026-03-15T00:00:00Z", body["due_date"])
	assert.Nil(t, body["description"])
}

func TestIDAcceptsNumbersAndStrings(t *testing.T) {
	var ids []ID
	require.NoError(t, json.Unmarshal([]byte(`[7, "abc", null]`), &ids))
	assert.Equal(t, []ID{"7", "abc", ""}, ids)

	out, err := json.Marshal([]ID{"7", "abc"})
	require.NoError(t, err)
	assert.JSONEq(t, `[7, "abc"]`, string(out))
}

func TestMessageIDOriginsNeverCollide(t *testing.T) {
	assert.NotEqual(t, LocalID("5"), PersistedID("5"))
	assert.Equal(t, LocalID("5"), LocalID("5"))
	assert.True(t, LocalID("x").IsLocal())
	assert.False(t, PersistedID("x").IsLocal())
}
