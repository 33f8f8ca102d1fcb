// Package changehub fans change notifications out to in-process subscribers.
package changehub

import (
	"context"
	"sync"

	"github.com/almarpuit/site/internal/domain"
)

type subscriber struct {
	id        uint64
	table     domain.Table
	sectionID string
	fn        func(domain.Change)
}

// Hub implements repositories.ChangeFeed for backends without a native feed.
// Callbacks run on their own goroutine so a slow subscriber never blocks a writer.
type Hub struct {
	mu     sync.RWMutex
	nextID uint64
	subs   map[uint64]subscriber
	wg     sync.WaitGroup
}

// New returns an empty hub.
func New() *Hub {
	return &Hub{subs: make(map[uint64]subscriber)}
}

// Subscribe registers fn for changes of table matching sectionID.
func (h *Hub) Subscribe(_ context.Context, table domain.Table, sectionID string, fn func(domain.Change)) (func(), error) {
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs[id] = subscriber{id: id, table: table, sectionID: sectionID, fn: fn}
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
		})
	}, nil
}

// Publish delivers the change to every matching subscriber.
func (h *Hub) Publish(change domain.Change) {
	h.mu.RLock()
	targets := make([]func(domain.Change), 0, len(h.subs))
	for _, sub := range h.subs {
		if Matches(sub.table, sub.sectionID, change) {
			targets = append(targets, sub.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		h.wg.Add(1)
		go func(fn func(domain.Change)) {
			defer h.wg.Done()
			fn(change)
		}(fn)
	}
}

// Wait blocks until every delivered callback has returned.
func (h *Hub) Wait() {
	h.wg.Wait()
}

// Len reports the number of active subscriptions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Matches reports whether a subscription filter accepts the change.
func Matches(table domain.Table, filter string, change domain.Change) bool {
	if change.Table != table {
		return false
	}
	if filter == "" {
		return true
	}
	if table == domain.TableSettings {
		return change.Key == filter
	}
	return change.SectionID == filter
}
