package webhook

import (
	"context"
	"sync"
	"time"

	domainevents "fulfillment_backend/internal/events"
	"fulfillment_backend/internal/fulfillment/intent"
	"fulfillment_backend/platform/events"
)

// LastOrderCache keeps the most recently assembled order for the branch
// display. Single slot, last write wins, in-memory only.
type LastOrderCache struct {
	mu    sync.RWMutex
	order *intent.OrderIntent
	at    time.Time
}

// NewLastOrderCache creates an empty cache.
func NewLastOrderCache() *LastOrderCache {
	return &LastOrderCache{}
}

// Set stores the order with the current timestamp.
func (c *LastOrderCache) Set(order *intent.OrderIntent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order = order
	c.at = time.Now()
}

// Get returns the cached order and when it was stored. ok is false until
// the first order of the process lifetime arrives.
func (c *LastOrderCache) Get() (*intent.OrderIntent, time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.order, c.at, c.order != nil
}

// Subscribe wires the cache to the event bus: every assembled order
// replaces the slot.
func (c *LastOrderCache) Subscribe(bus events.Bus) {
	bus.Subscribe(domainevents.OrderIntentReadyName, events.HandlerFunc(
		func(_ context.Context, event events.Event) error {
			if ready, ok := event.(domainevents.OrderIntentReady); ok {
				c.Set(ready.Order)
			}
			return nil
		}))
}
