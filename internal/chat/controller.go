// Package chat holds the state of the task-assistant conversation view:
// the conversation list, the active conversation and its messages. Sends
// are optimistic: the user's message and a loading placeholder appear
// before the server replies.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nhle/taskpilot/internal/api"
	"github.com/nhle/taskpilot/internal/model"
	"github.com/nhle/taskpilot/internal/store"
)

// DefaultErrorTTL is how long an error stays in State before it clears.
const DefaultErrorTTL = 5 * time.Second

// Validation codes returned by SendMessage before any request is made.
const (
	CodeNoActiveConversation = "NO_ACTIVE_CONVERSATION"
	CodeEmptyMessage         = "EMPTY_MESSAGE"
)

// Service is the chat API surface the controller uses.
type Service interface {
	ListConversations(ctx context.Context, limit, offset int) (*model.Page[model.Conversation], error)
	CreateConversation(ctx context.Context, title *string) (*model.Conversation, error)
	DeleteConversation(ctx context.Context, id model.ID) error
	ListMessages(ctx context.Context, id model.ID, limit, offset int) (*model.Page[model.Message], error)
	SendMessage(ctx context.Context, id model.ID, content string) (*model.Message, error)
}

// Preferences persists the active conversation id between runs.
type Preferences interface {
	GetPreference(ctx context.Context, key string) (string, bool, error)
	SetPreference(ctx context.Context, key, value string) error
	DeletePreference(ctx context.Context, key string) error
}

// Controller owns the chat State. Every method is safe for concurrent use;
// network calls run without holding the state lock.
type Controller struct {
	svc      Service
	prefs    Preferences
	log      *logrus.Entry
	errorTTL time.Duration
	newID    func() string
	now      func() time.Time
	darkMode func() bool

	mu    sync.Mutex
	state State

	pendingSends          int
	fetchingConversations bool
	loadingMessages       bool
	sendLocks             map[model.ID]*sync.Mutex

	errorSeq   uint64
	errorTimer *time.Timer

	subs   map[int]chan State
	nextID int
}

// Option configures a Controller.
type Option func(*Controller)

// WithErrorTTL overrides DefaultErrorTTL.
func WithErrorTTL(d time.Duration) Option {
	return func(c *Controller) { c.errorTTL = d }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l.WithField("component", "chat") }
}

// WithIDGenerator overrides the generator of local message ids.
func WithIDGenerator(gen func() string) Option {
	return func(c *Controller) { c.newID = gen }
}

// WithClock overrides the time source for local message timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// WithDarkMode overrides the terminal background probe. It is called once.
func WithDarkMode(probe func() bool) Option {
	return func(c *Controller) { c.darkMode = probe }
}

// NewController creates a controller with no conversations loaded.
func NewController(svc Service, prefs Preferences, opts ...Option) *Controller {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)

	c := &Controller{
		svc:       svc,
		prefs:     prefs,
		log:       logrus.NewEntry(l),
		errorTTL:  DefaultErrorTTL,
		newID:     uuid.NewString,
		now:       time.Now,
		darkMode:  lipgloss.HasDarkBackground,
		sendLocks: make(map[model.ID]*sync.Mutex),
		subs:      make(map[int]chan State),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.state = State{
		Conversations: []model.Conversation{},
		Messages:      []model.Message{},
		DarkMode:      c.darkMode(),
	}
	return c
}

// Snapshot returns a copy of the current state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe returns a channel receiving a snapshot after every change.
// Only the latest snapshot is kept for a slow reader.
func (c *Controller) Subscribe() (<-chan State, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextID
	c.nextID++
	ch := make(chan State, 1)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			delete(c.subs, id)
			close(ch)
		})
	}
}

// publishLocked sends the state to every subscriber. c.mu must be held.
func (c *Controller) publishLocked() {
	for _, ch := range c.subs {
		snap := c.state.clone()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}

// Init restores the persisted active conversation and fetches the list.
// A persisted id that no longer exists is pruned by the fetch.
func (c *Controller) Init(ctx context.Context, limit int) error {
	if c.prefs != nil {
		id, ok, err := c.prefs.GetPreference(ctx, store.KeyActiveConversation)
		if err != nil {
			c.log.WithError(err).Warn("reading active conversation")
		}
		if ok && id != "" {
			c.mu.Lock()
			c.state.ActiveID = model.ID(id)
			c.publishLocked()
			c.mu.Unlock()
		}
	}
	return c.RefetchConversations(ctx, limit)
}

// CreateConversation starts a conversation and makes it active. On
// failure the previous state is kept.
func (c *Controller) CreateConversation(ctx context.Context, title *string) (*model.Conversation, error) {
	if title != nil && strings.TrimSpace(*title) == "" {
		title = nil
	}

	conv, err := c.svc.CreateConversation(ctx, title)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.setErrorLocked(err)
		c.publishLocked()
		return nil, err
	}

	c.state = applyConversationCreated(c.state, *conv)
	c.publishLocked()
	c.persistActive(ctx, conv.ID)
	return conv, nil
}

// SelectConversation makes id active and clears the message list. The
// caller loads the messages of the new conversation.
func (c *Controller) SelectConversation(ctx context.Context, id model.ID) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.ActiveID == id {
		return
	}
	c.state = applyConversationSelected(c.state, id)
	c.publishLocked()
	c.persistActive(ctx, id)
}

// LoadMessages fetches the newest limit messages of the active
// conversation. It is a no-op without an active conversation or while a
// load is already running. On failure the current messages are kept.
func (c *Controller) LoadMessages(ctx context.Context, limit int) error {
	c.mu.Lock()
	id := c.state.ActiveID
	if id.IsZero() || c.loadingMessages {
		c.mu.Unlock()
		return nil
	}
	c.loadingMessages = true
	c.state.LoadingMessages = true
	before := make(map[model.MessageID]bool, len(c.state.Messages))
	for _, m := range c.state.Messages {
		before[m.ID] = true
	}
	c.publishLocked()
	c.mu.Unlock()

	page, err := c.svc.ListMessages(ctx, id, limit, 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadingMessages = false
	c.state.LoadingMessages = false

	if err != nil {
		c.log.WithError(err).WithField("conversation_id", id).Warn("loading messages")
		c.setErrorLocked(err)
		c.publishLocked()
		return err
	}

	c.state = applyMessagesLoaded(c.state, id, page.Items, before)
	c.publishLocked()
	return nil
}

// LoadMore is reserved for loading older messages. It does nothing.
func (c *Controller) LoadMore(context.Context) error {
	return nil
}

// SendMessage posts content to the active conversation. The user message
// and a placeholder are added immediately; sends within one conversation
// reach the server one at a time.
func (c *Controller) SendMessage(ctx context.Context, content string) error {
	text := strings.TrimSpace(content)

	c.mu.Lock()
	convID := c.state.ActiveID
	if convID.IsZero() {
		c.mu.Unlock()
		return api.NewValidationError(CodeNoActiveConversation, "Select or start a conversation first", nil)
	}
	if text == "" {
		c.mu.Unlock()
		return api.NewValidationError(CodeEmptyMessage, "Message cannot be empty", nil)
	}

	now := c.now()
	user := model.Message{
		ID:             model.LocalID(c.newID()),
		ConversationID: convID,
		Role:           model.RoleUser,
		Content:        text,
		CreatedAt:      now,
	}
	placeholder := model.Message{
		ID:             model.LocalID(c.newID()),
		ConversationID: convID,
		Role:           model.RoleAssistant,
		CreatedAt:      now,
		IsLoading:      true,
	}
	c.state = applyUserMessageSent(c.state, user, placeholder)
	c.pendingSends++
	c.publishLocked()

	lock, ok := c.sendLocks[convID]
	if !ok {
		lock = &sync.Mutex{}
		c.sendLocks[convID] = lock
	}
	c.mu.Unlock()

	lock.Lock()
	reply, err := c.svc.SendMessage(ctx, convID, text)
	lock.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingSends--

	if err != nil {
		c.log.WithError(err).WithField("conversation_id", convID).Warn("sending message")
		c.state = applyAssistantFailed(c.state, placeholder.ID, api.Message(err))
		c.state.Loading = c.pendingSends > 0
		c.armErrorTimerLocked()
		c.publishLocked()
		return err
	}

	c.state = applyAssistantResolved(c.state, convID, placeholder.ID, *reply)
	c.state.Loading = c.pendingSends > 0
	c.stopErrorTimerLocked()
	c.publishLocked()
	return nil
}

// DeleteConversation removes a conversation. Deleting the active one
// clears the selection and its persisted id.
func (c *Controller) DeleteConversation(ctx context.Context, id model.ID) error {
	err := c.svc.DeleteConversation(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.setErrorLocked(err)
		c.publishLocked()
		return err
	}

	wasActive := c.state.ActiveID == id
	c.state = applyConversationDeleted(c.state, id)
	delete(c.sendLocks, id)
	c.publishLocked()
	if wasActive {
		c.persistActive(ctx, "")
	}
	return nil
}

// RefetchConversations reloads the conversation list. A second call while
// one is running is a no-op.
func (c *Controller) RefetchConversations(ctx context.Context, limit int) error {
	c.mu.Lock()
	if c.fetchingConversations {
		c.mu.Unlock()
		return nil
	}
	c.fetchingConversations = true
	c.state.LoadingConversations = true
	c.publishLocked()
	c.mu.Unlock()

	page, err := c.svc.ListConversations(ctx, limit, 0)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetchingConversations = false
	c.state.LoadingConversations = false

	if err != nil {
		c.log.WithError(err).Warn("fetching conversations")
		c.setErrorLocked(err)
		c.publishLocked()
		return err
	}

	before := c.state.ActiveID
	c.state = applyConversationsRefetched(c.state, page.Items)
	c.publishLocked()
	if c.state.ActiveID != before {
		c.log.WithFields(logrus.Fields{
			"from": before,
			"to":   c.state.ActiveID,
		}).Info("active conversation pruned")
		c.persistActive(ctx, c.state.ActiveID)
	}
	return nil
}

// ClearError drops the current error immediately.
func (c *Controller) ClearError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopErrorTimerLocked()
	if c.state.Error != "" {
		c.state.Error = ""
		c.publishLocked()
	}
}

// Reset drops every conversation and message, used when the user logs
// out. The stored active conversation id is removed.
func (c *Controller) Reset(ctx context.Context) {
	c.mu.Lock()
	c.stopErrorTimerLocked()
	c.state = State{
		Conversations: []model.Conversation{},
		Messages:      []model.Message{},
		DarkMode:      c.state.DarkMode,
	}
	c.publishLocked()
	c.mu.Unlock()

	c.persistActive(ctx, "")
}

func (c *Controller) setErrorLocked(err error) {
	c.state.Error = api.Message(err)
	c.armErrorTimerLocked()
}

// armErrorTimerLocked schedules the current error to clear after the TTL.
// A newer error restarts the countdown.
func (c *Controller) armErrorTimerLocked() {
	c.stopErrorTimerLocked()
	c.errorSeq++
	seq := c.errorSeq
	c.errorTimer = time.AfterFunc(c.errorTTL, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.errorSeq != seq || c.state.Error == "" {
			return
		}
		c.state.Error = ""
		c.errorTimer = nil
		c.publishLocked()
	})
}

func (c *Controller) stopErrorTimerLocked() {
	if c.errorTimer != nil {
		c.errorTimer.Stop()
		c.errorTimer = nil
	}
	c.errorSeq++
}

// persistActive stores id, or removes the stored id when it is empty.
// Failures are logged; the in-memory state stays authoritative.
func (c *Controller) persistActive(ctx context.Context, id model.ID) {
	if c.prefs == nil {
		return
	}
	var err error
	if id.IsZero() {
		err = c.prefs.DeletePreference(ctx, store.KeyActiveConversation)
	} else {
		err = c.prefs.SetPreference(ctx, store.KeyActiveConversation, id.String())
	}
	if err != nil {
		c.log.WithError(err).Warn("persisting active conversation")
	}
}
