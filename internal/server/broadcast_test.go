package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/chunksync/internal/model"
)

func TestBroadcaster_DeliversToSubscriber(t *testing.T) {
	b := NewBroadcaster()

	var wg sync.WaitGroup
	wg.Add(1)
	var got []model.FileChange
	go func() {
		defer wg.Done()
		got = b.Wait(context.Background(), "c1", 2*time.Second)
	}()

	// Give the waiter a moment to subscribe.
	require.Eventually(t, func() bool {
		b.mu.Lock()
		defer b.mu.Unlock()
		return len(b.subs["c1"]) == 1
	}, time.Second, 5*time.Millisecond)

	b.Publish("c1", model.FileChange{Path: "a", Type: model.ChangeCreated})
	wg.Wait()

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].Path)
}

func TestBroadcaster_TimeoutReturnsNil(t *testing.T) {
	b := NewBroadcaster()
	got := b.Wait(context.Background(), "c1", 20*time.Millisecond)
	assert.Nil(t, got)
}

func TestBroadcaster_ClientsAreIsolated(t *testing.T) {
	b := NewBroadcaster()

	done := make(chan []model.FileChange, 1)
	go func() {
		done <- b.Wait(context.Background(), "other", 50*time.Millisecond)
	}()

	b.Publish("c1", model.FileChange{Path: "x"})
	assert.Nil(t, <-done, "a change for c1 must not reach another client's subscriber")
}

func TestBroadcaster_UnsubscribeCleansUp(t *testing.T) {
	b := NewBroadcaster()

	id, _ := b.subscribe("c1")
	b.unsubscribe("c1", id)

	b.mu.Lock()
	defer b.mu.Unlock()
	assert.Empty(t, b.subs)
}

func TestBroadcaster_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := NewBroadcaster()
	_, _ = b.subscribe("c1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < subscriberBuffer*4; i++ {
			b.Publish("c1", model.FileChange{Path: "flood"})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}
