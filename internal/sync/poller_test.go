package sync

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/taskpilot/internal/api"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func nextResult(t *testing.T, p *Poller) SyncResultMsg {
	t.Helper()
	done := make(chan SyncResultMsg, 1)
	go func() { done <- p.WaitForNextResult()().(SyncResultMsg) }()
	select {
	case msg := <-done:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("no result")
		return SyncResultMsg{}
	}
}

func TestPollerRunsOnInterval(t *testing.T) {
	var runs atomic.Int32
	p := New(quietLogger())
	p.Register(Job{
		Name:     "conversations",
		Interval: 10 * time.Millisecond,
		Run: func(context.Context) error {
			runs.Add(1)
			return nil
		},
	})

	require.NotNil(t, p.Start())
	defer p.Stop()
	assert.Nil(t, p.Start(), "second start is a no-op")

	msg := nextResult(t, p)
	assert.Equal(t, "conversations", msg.Job)
	assert.NoError(t, msg.Error)
	assert.GreaterOrEqual(t, runs.Load(), int32(1))

	statuses := p.GetStatuses()
	require.Len(t, statuses, 1)
	assert.False(t, statuses[0].LastSync.IsZero())
}

func TestPollerTrigger(t *testing.T) {
	var tasksRuns, convRuns atomic.Int32
	p := New(quietLogger())
	p.Register(Job{Name: "tasks", Interval: time.Hour, Run: func(context.Context) error {
		tasksRuns.Add(1)
		return nil
	}})
	p.Register(Job{Name: "conversations", Interval: time.Hour, Run: func(context.Context) error {
		convRuns.Add(1)
		return nil
	}})

	p.Start()
	defer p.Stop()

	p.Trigger("tasks")
	p.Trigger("unknown")

	msg := nextResult(t, p)
	assert.Equal(t, "tasks", msg.Job)
	assert.Equal(t, int32(1), tasksRuns.Load())
	assert.Equal(t, int32(0), convRuns.Load())
}

func TestPollerReportsUnauthorized(t *testing.T) {
	p := New(quietLogger())
	p.Register(Job{Name: "tasks", Interval: time.Hour, Run: func(context.Context) error {
		return &api.Error{Kind: api.KindUnauthorized, Message: api.SessionExpiredMessage}
	}})
	p.Register(Job{Name: "conversations", Interval: time.Hour, Run: func(context.Context) error {
		return errors.New("boom")
	}})

	p.Start()
	defer p.Stop()

	p.Trigger("tasks")
	msg := nextResult(t, p)
	assert.True(t, msg.Unauthorized)

	p.Trigger("conversations")
	msg = nextResult(t, p)
	assert.Equal(t, "conversations", msg.Job)
	assert.False(t, msg.Unauthorized)
	assert.EqualError(t, msg.Error, "boom")

	statuses := p.GetStatuses()
	assert.Equal(t, SyncError, statuses[1].State)
}

func TestPollerRestartsAfterStop(t *testing.T) {
	p := New(quietLogger())
	p.Register(Job{Name: "tasks", Interval: time.Hour, Run: func(context.Context) error { return nil }})

	p.Start()
	p.Stop()
	assert.False(t, p.Running())
	p.Stop()

	require.NotNil(t, p.Start())
	defer p.Stop()
	assert.True(t, p.Running())

	p.Trigger("tasks")
	assert.Equal(t, "tasks", nextResult(t, p).Job)
}
