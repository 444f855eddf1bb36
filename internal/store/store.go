package store

import (
	"context"

	"github.com/nhle/taskpilot/internal/model"
)

// Preference keys.
const (
	KeyActiveConversation = "active_conversation_id"
	KeyLastEmail          = "last_email"
)

// TaskFilter selects one user's page of the task snapshot. A zero Limit
// returns every task.
type TaskFilter struct {
	UserID model.ID
	Limit  int
	Offset int
}

// Store is the local state kept between runs: small preferences and the
// last task list fetched from the server.
type Store interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error

	SaveTaskSnapshot(ctx context.Context, userID model.ID, tasks []model.Task) error
	ReplaceTaskSnapshot(ctx context.Context, userID model.ID, tasks []model.Task) error
	DeleteTaskSnapshot(ctx context.Context, userID, taskID model.ID) error
	CountTaskSnapshot(ctx context.Context, userID model.ID) (int, error)
	GetTaskSnapshot(ctx context.Context, filter TaskFilter) ([]model.Task, error)
	ClearTaskSnapshot(ctx context.Context, userID model.ID) error

	Close() error
}
