package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/nhle/taskpilot/internal/model"
)

// TaskService manages a user's tasks under /api/users/{userID}/tasks.
type TaskService struct {
	api Requester
}

// NewTaskService creates a TaskService.
func NewTaskService(api Requester) *TaskService {
	return &TaskService{api: api}
}

func tasksPath(userID model.ID) string {
	return fmt.Sprintf("/api/users/%s/tasks", seg(userID))
}

func taskPath(userID, taskID model.ID) string {
	return tasksPath(userID) + "/" + seg(taskID)
}

// taskList accepts both the paginated list payload and a bare array.
type taskList struct {
	items []model.Task
	total int
	paged bool
}

func (l *taskList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		if err := json.Unmarshal(data, &l.items); err != nil {
			return err
		}
		l.total = len(l.items)
		return nil
	}
	var page model.Page[model.Task]
	if err := json.Unmarshal(data, &page); err != nil {
		return err
	}
	l.items = page.Items
	l.total = page.Pagination.Total
	l.paged = true
	return nil
}

// List returns one page of tasks. page is 1-based.
func (s *TaskService) List(ctx context.Context, userID model.ID, page, limit int) (*model.TaskPage, error) {
	var out taskList
	path := withQuery(tasksPath(userID), map[string]int{"page": page, "limit": limit})
	if err := s.api.Get(ctx, path, &out); err != nil {
		return nil, err
	}

	total := out.total
	if !out.paged {
		// A bare array carries no total; assume it is everything up to this page.
		total = model.Offset(max(page, 1), limit) + len(out.items)
	}
	tasks := out.items
	if tasks == nil {
		tasks = []model.Task{}
	}
	return &model.TaskPage{
		Tasks:      tasks,
		Pagination: model.NewPagination(total, page, limit),
	}, nil
}

// Get returns a single task.
func (s *TaskService) Get(ctx context.Context, userID, taskID model.ID) (*model.Task, error) {
	var out model.Task
	if err := s.api.Get(ctx, taskPath(userID, taskID), &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Create adds a task.
func (s *TaskService) Create(ctx context.Context, userID model.ID, in model.TaskInput) (*model.Task, error) {
	var out model.Task
	if err := s.api.Post(ctx, tasksPath(userID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update replaces the editable fields of a task.
func (s *TaskService) Update(ctx context.Context, userID, taskID model.ID, in model.TaskInput) (*model.Task, error) {
	var out model.Task
	if err := s.api.Patch(ctx, taskPath(userID, taskID), in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Delete removes a task.
func (s *TaskService) Delete(ctx context.Context, userID, taskID model.ID) error {
	return s.api.Delete(ctx, taskPath(userID, taskID))
}

// SetCompleted marks a task complete or incomplete.
func (s *TaskService) SetCompleted(ctx context.Context, userID, taskID model.ID, completed bool) (*model.Task, error) {
	var out model.Task
	body := map[string]bool{"completed": completed}
	if err := s.api.Patch(ctx, taskPath(userID, taskID)+"/complete", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
