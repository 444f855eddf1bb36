package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBroadcasterFansOut(t *testing.T) {
	b := NewBroadcaster()
	a, cancelA := b.Subscribe()
	c, cancelC := b.Subscribe()
	defer cancelA()
	defer cancelC()

	b.Publish()

	assertSignaled(t, a)
	assertSignaled(t, c)
}

func TestBroadcasterCollapsesPendingSignals(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	defer cancel()

	b.Publish()
	b.Publish()
	b.Publish()

	assertSignaled(t, ch)
	select {
	case <-ch:
		t.Fatal("expected a single pending signal")
	default:
	}
}

func TestBroadcasterCancel(t *testing.T) {
	b := NewBroadcaster()
	ch, cancel := b.Subscribe()
	assert.Equal(t, 1, b.Len())

	cancel()
	cancel()
	assert.Equal(t, 0, b.Len())

	_, open := <-ch
	assert.False(t, open)

	b.Publish()
}

func assertSignaled(t *testing.T, ch <-chan struct{}) {
	t.Helper()
	select {
	case _, ok := <-ch:
		assert.True(t, ok)
	default:
		t.Fatal("expected a pending signal")
	}
}
