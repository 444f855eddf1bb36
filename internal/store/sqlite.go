package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/taskpilot/internal/model"
)

// SQLiteStore implements Store using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating store directory: %w", err)
		}
	}

	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// SchemaVersion returns the highest applied migration.
func (s *SQLiteStore) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	if err := s.db.GetContext(ctx, &v, "SELECT COALESCE(MAX(version), 0) FROM schema_version"); err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	return v, nil
}

// GetPreference returns the value stored under key.
func (s *SQLiteStore) GetPreference(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.GetContext(ctx, &value, "SELECT value FROM preferences WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting preference %s: %w", key, err)
	}
	return value, true, nil
}

// SetPreference stores value under key, replacing any previous value.
func (s *SQLiteStore) SetPreference(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("setting preference %s: %w", key, err)
	}
	return nil
}

// DeletePreference removes key. Deleting an absent key is not an error.
func (s *SQLiteStore) DeletePreference(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM preferences WHERE key = ?", key); err != nil {
		return fmt.Errorf("deleting preference %s: %w", key, err)
	}
	return nil
}

// taskRow is the task_snapshots row layout.
type taskRow struct {
	UserID      string         `db:"user_id"`
	ID          string         `db:"id"`
	Title       string         `db:"title"`
	Description string         `db:"description"`
	DueDate     sql.NullString `db:"due_date"`
	Priority    string         `db:"priority"`
	Tags        string         `db:"tags"`
	Completed   bool           `db:"completed"`
	CompletedAt sql.NullString `db:"completed_at"`
	CreatedAt   string         `db:"created_at"`
	UpdatedAt   string         `db:"updated_at"`
	FetchedAt   string         `db:"fetched_at"`
}

func rowFromTask(userID model.ID, t model.Task, fetchedAt time.Time) taskRow {
	return taskRow{
		UserID:      userID.String(),
		ID:          t.ID.String(),
		Title:       t.Title,
		Description: t.Description,
		DueDate:     nullTime(t.DueDate),
		Priority:    string(t.Priority.OrDefault()),
		Tags:        model.JoinTags(t.Tags),
		Completed:   t.Completed,
		CompletedAt: nullTime(t.CompletedAt),
		CreatedAt:   formatTime(t.CreatedAt),
		UpdatedAt:   formatTime(t.UpdatedAt),
		FetchedAt:   formatTime(fetchedAt),
	}
}

func (r taskRow) task() model.Task {
	return model.Task{
		ID:          model.ID(r.ID),
		UserID:      model.ID(r.UserID),
		Title:       r.Title,
		Description: r.Description,
		DueDate:     parseNullTime(r.DueDate),
		Priority:    model.Priority(r.Priority).OrDefault(),
		Tags:        model.ParseTags(r.Tags),
		Completed:   r.Completed,
		CompletedAt: parseNullTime(r.CompletedAt),
		CreatedAt:   parseTime(r.CreatedAt),
		UpdatedAt:   parseTime(r.UpdatedAt),
	}
}

const upsertTaskSnapshot = `
	INSERT OR REPLACE INTO task_snapshots (
		user_id, id, title, description, due_date, priority, tags,
		completed, completed_at, created_at, updated_at, fetched_at
	) VALUES (
		:user_id, :id, :title, :description, :due_date, :priority, :tags,
		:completed, :completed_at, :created_at, :updated_at, :fetched_at
	)`

// SaveTaskSnapshot inserts or replaces a batch of tasks for userID.
func (s *SQLiteStore) SaveTaskSnapshot(ctx context.Context, userID model.ID, tasks []model.Task) error {
	if len(tasks) == 0 {
		return nil
	}
	return s.writeSnapshot(ctx, userID, tasks, false)
}

// ReplaceTaskSnapshot makes tasks the whole snapshot of userID.
func (s *SQLiteStore) ReplaceTaskSnapshot(ctx context.Context, userID model.ID, tasks []model.Task) error {
	return s.writeSnapshot(ctx, userID, tasks, true)
}

func (s *SQLiteStore) writeSnapshot(ctx context.Context, userID model.ID, tasks []model.Task, replace bool) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM task_snapshots WHERE user_id = ?", userID.String()); err != nil {
			return fmt.Errorf("clearing task snapshot: %w", err)
		}
	}

	stmt, err := tx.PrepareNamedContext(ctx, upsertTaskSnapshot)
	if err != nil {
		return fmt.Errorf("preparing snapshot statement: %w", err)
	}
	defer stmt.Close()

	now := time.Now()
	for _, t := range tasks {
		if _, err := stmt.ExecContext(ctx, rowFromTask(userID, t, now)); err != nil {
			return fmt.Errorf("saving task %s: %w", t.ID, err)
		}
	}

	return tx.Commit()
}

// DeleteTaskSnapshot removes one stored task.
func (s *SQLiteStore) DeleteTaskSnapshot(ctx context.Context, userID, taskID model.ID) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM task_snapshots WHERE user_id = ? AND id = ?",
		userID.String(), taskID.String())
	if err != nil {
		return fmt.Errorf("deleting task %s from snapshot: %w", taskID, err)
	}
	return nil
}

// CountTaskSnapshot returns how many tasks of userID are stored.
func (s *SQLiteStore) CountTaskSnapshot(ctx context.Context, userID model.ID) (int, error) {
	var n int
	if err := s.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM task_snapshots WHERE user_id = ?", userID.String()); err != nil {
		return 0, fmt.Errorf("counting task snapshot: %w", err)
	}
	return n, nil
}

// GetTaskSnapshot returns the stored tasks of filter.UserID, most recently
// updated first.
func (s *SQLiteStore) GetTaskSnapshot(ctx context.Context, filter TaskFilter) ([]model.Task, error) {
	query := "SELECT * FROM task_snapshots WHERE user_id = ? ORDER BY updated_at DESC, id"
	args := []any{filter.UserID.String()}
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	}

	var rows []taskRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("querying task snapshot: %w", err)
	}

	tasks := make([]model.Task, 0, len(rows))
	for _, r := range rows {
		tasks = append(tasks, r.task())
	}
	return tasks, nil
}

// ClearTaskSnapshot drops every stored task of userID, or of every user
// when userID is zero.
func (s *SQLiteStore) ClearTaskSnapshot(ctx context.Context, userID model.ID) error {
	query, args := "DELETE FROM task_snapshots", []any{}
	if !userID.IsZero() {
		query += " WHERE user_id = ?"
		args = append(args, userID.String())
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("clearing task snapshot: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) *time.Time {
	if !s.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s.String)
	if err != nil {
		return nil
	}
	return &t
}
