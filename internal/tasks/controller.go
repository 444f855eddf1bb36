// Package tasks caches a user's task pages and items and routes every
// mutation through validation and cache invalidation.
package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/store"
)

// CodeValidation is the error code of a task input rejected locally.
const CodeValidation = "VALIDATION_ERROR"

// Service is the task API surface the controller uses.
type Service interface {
	List(ctx context.Context, userID model.ID, page, limit int) (*model.TaskPage, error)
	Get(ctx context.Context, userID, taskID model.ID) (*model.Task, error)
	Create(ctx context.Context, userID model.ID, in model.TaskInput) (*model.Task, error)
	Update(ctx context.Context, userID, taskID model.ID, in model.TaskInput) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID model.ID) error
	SetCompleted(ctx context.Context, userID, taskID model.ID, completed bool) (*model.Task, error)
}

// Snapshots keeps the last fetched tasks for offline reading.
type Snapshots interface {
	SaveTaskSnapshot(ctx context.Context, userID model.ID, tasks []model.Task) error
	ReplaceTaskSnapshot(ctx context.Context, userID model.ID, tasks []model.Task) error
	DeleteTaskSnapshot(ctx context.Context, userID, taskID model.ID) error
	CountTaskSnapshot(ctx context.Context, userID model.ID) (int, error)
	GetTaskSnapshot(ctx context.Context, filter store.TaskFilter) ([]model.Task, error)
	ClearTaskSnapshot(ctx context.Context, userID model.ID) error
}

type pageKey struct {
	userID model.ID
	page   int
	limit  int
}

type itemKey struct {
	userID model.ID
	taskID model.ID
}

// Controller is safe for concurrent use.
type Controller struct {
	svc       Service
	snapshots Snapshots
	now       func() time.Time
	log       *logrus.Entry

	mu    sync.Mutex
	pages map[pageKey]model.TaskPage
	items map[itemKey]model.Task
}

// Option configures a Controller.
type Option func(*Controller)

// WithSnapshots mirrors every fetched page into s.
func WithSnapshots(s Snapshots) Option {
	return func(c *Controller) { c.snapshots = s }
}

// WithClock overrides the time used to validate due dates.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l.WithField("component", "tasks") }
}

// NewController creates a controller with empty caches.
func NewController(svc Service, opts ...Option) *Controller {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	c := &Controller{
		svc:   svc,
		now:   time.Now,
		log:   logrus.NewEntry(l),
		pages: make(map[pageKey]model.TaskPage),
		items: make(map[itemKey]model.Task),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List returns a page of tasks, from cache when possible.
func (c *Controller) List(ctx context.Context, userID model.ID, page, limit int) (*model.TaskPage, error) {
	key := pageKey{userID, page, limit}

	c.mu.Lock()
	cached, ok := c.pages[key]
	c.mu.Unlock()
	if ok {
		return copyPage(cached), nil
	}

	res, err := c.svc.List(ctx, userID, page, limit)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.pages[key] = *copyPage(*res)
	for _, t := range res.Tasks {
		c.items[itemKey{userID, t.ID}] = t
	}
	c.mu.Unlock()

	// The first page starts a fresh snapshot so tasks deleted elsewhere
	// drop out; later pages add to it.
	if page == 1 {
		c.snapshot(func(s Snapshots) error { return s.ReplaceTaskSnapshot(ctx, userID, res.Tasks) })
	} else {
		c.snapshot(func(s Snapshots) error { return s.SaveTaskSnapshot(ctx, userID, res.Tasks) })
	}
	return res, nil
}

// snapshot runs write against the snapshot store, if any. Failures only
// cost offline reading, so they are logged.
func (c *Controller) snapshot(write func(Snapshots) error) {
	if c.snapshots == nil {
		return
	}
	if err := write(c.snapshots); err != nil {
		c.log.WithError(err).Warn("updating task snapshot")
	}
}

// Cached returns a page built from the offline snapshot.
func (c *Controller) Cached(ctx context.Context, userID model.ID, page, limit int) (*model.TaskPage, error) {
	if c.snapshots == nil {
		return &model.TaskPage{Tasks: []model.Task{}, Pagination: model.NewPagination(0, page, limit)}, nil
	}
	total, err := c.snapshots.CountTaskSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	p := model.NewPagination(total, page, limit)
	tasks, err := c.snapshots.GetTaskSnapshot(ctx, store.TaskFilter{UserID: userID, Limit: p.Limit, Offset: p.Offset})
	if err != nil {
		return nil, err
	}
	return &model.TaskPage{Tasks: tasks, Pagination: p}, nil
}

// Get returns a single task, from cache when possible.
func (c *Controller) Get(ctx context.Context, userID, taskID model.ID) (*model.Task, error) {
	key := itemKey{userID, taskID}

	c.mu.Lock()
	cached, ok := c.items[key]
	c.mu.Unlock()
	if ok {
		return &cached, nil
	}

	t, err := c.svc.Get(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.items[key] = *t
	c.mu.Unlock()
	return t, nil
}

// Validate checks in without calling the server.
func (c *Controller) Validate(in model.TaskInput) model.ValidationResult {
	return model.ValidateTaskInput(in, c.now())
}

func (c *Controller) checkInput(in model.TaskInput) error {
	res := c.Validate(in)
	if res.Valid() {
		return nil
	}
	return api.NewValidationError(CodeValidation, res.FirstError(), res.Errors)
}

// Create validates and creates a task.
func (c *Controller) Create(ctx context.Context, userID model.ID, in model.TaskInput) (*model.Task, error) {
	if err := c.checkInput(in); err != nil {
		return nil, err
	}
	t, err := c.svc.Create(ctx, userID, in)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userID, *t)
	return t, nil
}

// Update validates and saves the editable fields of a task.
func (c *Controller) Update(ctx context.Context, userID, taskID model.ID, in model.TaskInput) (*model.Task, error) {
	if err := c.checkInput(in); err != nil {
		return nil, err
	}
	t, err := c.svc.Update(ctx, userID, taskID, in)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userID, *t)
	return t, nil
}

// Delete removes a task.
func (c *Controller) Delete(ctx context.Context, userID, taskID model.ID) error {
	if err := c.svc.Delete(ctx, userID, taskID); err != nil {
		return err
	}
	c.mu.Lock()
	c.invalidateLocked(userID)
	delete(c.items, itemKey{userID, taskID})
	c.mu.Unlock()

	c.snapshot(func(s Snapshots) error { return s.DeleteTaskSnapshot(ctx, userID, taskID) })
	return nil
}

// store records a task returned by a mutation: list pages are dropped and
// the item cache and snapshot get the new copy.
func (c *Controller) store(ctx context.Context, userID model.ID, t model.Task) {
	c.mu.Lock()
	c.invalidateLocked(userID)
	c.items[itemKey{userID, t.ID}] = t
	c.mu.Unlock()

	c.snapshot(func(s Snapshots) error { return s.SaveTaskSnapshot(ctx, userID, []model.Task{t}) })
}

// ToggleComplete flips the completion state of task.
func (c *Controller) ToggleComplete(ctx context.Context, userID model.ID, task model.Task) (*model.Task, error) {
	t, err := c.svc.SetCompleted(ctx, userID, task.ID, !task.Completed)
	if err != nil {
		return nil, err
	}
	c.store(ctx, userID, *t)
	return t, nil
}

// Invalidate drops every cached page so the next List refetches. Item
// entries are kept.
func (c *Controller) Invalidate(userID model.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidateLocked(userID)
}

// Reset drops all cached data and the offline snapshot, for example on
// logout.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	clear(c.pages)
	clear(c.items)
	c.mu.Unlock()

	c.snapshot(func(s Snapshots) error { return s.ClearTaskSnapshot(ctx, "") })
}

func (c *Controller) invalidateLocked(userID model.ID) {
	for k := range c.pages {
		if k.userID == userID {
			delete(c.pages, k)
		}
	}
}

func copyPage(p model.TaskPage) *model.TaskPage {
	out := p
	out.Tasks = append([]model.Task{}, p.Tasks...)
	return &out
}
