package server

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/chunksync/internal/model"
)

// subscriberBuffer bounds how many undelivered changes a single long-poll
// subscriber may accumulate before further publishes to it are dropped.
const subscriberBuffer = 16

// Broadcaster fans committed file changes out to long-poll subscribers,
// keyed by client id. It implements storage.ChangePublisher.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan model.FileChange
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[string]map[int]chan model.FileChange)}
}

// Publish delivers change to every live subscriber of clientID. Slow
// subscribers lose events rather than block the storage path.
func (b *Broadcaster) Publish(clientID string, change model.FileChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subs[clientID] {
		select {
		case ch <- change:
		default:
		}
	}
}

func (b *Broadcaster) subscribe(clientID string) (int, chan model.FileChange) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	ch := make(chan model.FileChange, subscriberBuffer)
	if b.subs[clientID] == nil {
		b.subs[clientID] = make(map[int]chan model.FileChange)
	}
	b.subs[clientID][id] = ch
	return id, ch
}

func (b *Broadcaster) unsubscribe(clientID string, id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if m := b.subs[clientID]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(b.subs, clientID)
		}
	}
}

// Wait parks until at least one change for clientID arrives, then drains
// whatever else is immediately available. Returns nil when the timeout or
// the context expires first.
func (b *Broadcaster) Wait(ctx context.Context, clientID string, timeout time.Duration) []model.FileChange {
	id, ch := b.subscribe(clientID)
	defer b.unsubscribe(clientID, id)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case first := <-ch:
		changes := []model.FileChange{first}
		for {
			select {
			case next := <-ch:
				changes = append(changes, next)
			default:
				return changes
			}
		}
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return nil
	}
}
