package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Priority is the urgency level of a task.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Priorities lists the accepted priority values in display order.
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh}

// Valid reports whether p is one of the accepted priority values.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// OrDefault returns p, or PriorityMedium when p is empty.
func (p Priority) OrDefault() Priority {
	if p == "" {
		return PriorityMedium
	}
	return p
}

// Task is a user-owned work item. The server assigns IDs and timestamps.
type Task struct {
	// ID is the server-assigned identifier.
	ID ID

	// UserID is the owning user.
	UserID ID

	// Title is the required one-line summary (1-255 characters).
	Title string

	// Description is optional free text (up to 2000 characters).
	Description string

	// DueDate may be in the past; that is allowed and only flagged in the UI.
	DueDate *time.Time

	// Priority defaults to medium.
	Priority Priority

	// Tags is the parsed form of the comma-delimited wire field.
	Tags []string

	Completed   bool
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// IsOverdue reports whether the task has a due date before now and is not
// completed.
func (t Task) IsOverdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Completed
}

// taskWire is the JSON shape of a task on the wire.
type taskWire struct {
	ID          ID       `json:"id"`
	UserID      ID       `json:"user_id"`
	Title       string   `json:"title"`
	Description *string  `json:"description"`
	DueDate     *string  `json:"due_date"`
	Priority    Priority `json:"priority"`
	Tags        *string  `json:"tags"`
	Completed   bool     `json:"completed"`
	CompletedAt *string  `json:"completed_at"`
	CreatedAt   string   `json:"created_at"`
	UpdatedAt   string   `json:"updated_at"`
}

// UnmarshalJSON decodes the wire form, splitting tags into a list.
func (t *Task) UnmarshalJSON(data []byte) error {
	var w taskWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*t = Task{
		ID:          w.ID,
		UserID:      w.UserID,
		Title:       w.Title,
		DueDate:     parseOptionalTime(w.DueDate),
		Priority:    w.Priority.OrDefault(),
		Completed:   w.Completed,
		CompletedAt: parseOptionalTime(w.CompletedAt),
		CreatedAt:   parseTime(w.CreatedAt),
		UpdatedAt:   parseTime(w.UpdatedAt),
	}
	if w.Description != nil {
		t.Description = *w.Description
	}
	if w.Tags != nil {
		t.Tags = ParseTags(*w.Tags)
	}
	return nil
}

// MarshalJSON encodes the wire form, joining tags with commas.
func (t Task) MarshalJSON() ([]byte, error) {
	w := taskWire{
		ID:          t.ID,
		UserID:      t.UserID,
		Title:       t.Title,
		DueDate:     formatOptionalTime(t.DueDate),
		Priority:    t.Priority.OrDefault(),
		Completed:   t.Completed,
		CompletedAt: formatOptionalTime(t.CompletedAt),
		CreatedAt:   t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   t.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if t.Description != "" {
		w.Description = &t.Description
	}
	if len(t.Tags) > 0 {
		tags := JoinTags(t.Tags)
		w.Tags = &tags
	}
	return json.Marshal(w)
}

// TaskInput carries the user-editable fields for create and update.
// DueDate holds the raw text the user typed; it is normalized on encode.
type TaskInput struct {
	Title       string
	Description string
	DueDate     string
	Priority    Priority
	Tags        []string
}

// InputFromTask returns the editable fields of an existing task.
func InputFromTask(t Task) TaskInput {
	in := TaskInput{
		Title:       t.Title,
		Description: t.Description,
		Priority:    t.Priority,
		Tags:        append([]string(nil), t.Tags...),
	}
	if t.DueDate != nil {
		in.DueDate = t.DueDate.UTC().Format(time.RFC3339)
	}
	return in
}

// MarshalJSON encodes the create/update request body. Empty optional
// fields are sent as null so an update can clear them.
func (in TaskInput) MarshalJSON() ([]byte, error) {
	body := struct {
		Title       string   `json:"title"`
		Description *string  `json:"description"`
		DueDate     *string  `json:"due_date"`
		Priority    Priority `json:"priority"`
		Tags        *string  `json:"tags"`
	}{
		Title:    strings.TrimSpace(in.Title),
		Priority: in.Priority.OrDefault(),
	}

	if d := strings.TrimSpace(in.Description); d != "" {
		body.Description = &d
	}
	if due := strings.TrimSpace(in.DueDate); due != "" {
		if t, err := ParseTimestamp(due); err == nil {
			body.DueDate = formatOptionalTime(&t)
		} else {
			body.DueDate = &due
		}
	}
	if tags := JoinTags(in.Tags); tags != "" {
		body.Tags = &tags
	}

	return json.Marshal(body)
}

// TaskPage is one page of a user's task list.
type TaskPage struct {
	Tasks      []Task
	Pagination Pagination
}
