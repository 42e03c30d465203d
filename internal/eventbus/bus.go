package eventbus

import (
	"sync"

	"github.com/Fullex26/uptimegram/pkg/models"
)

// Handler is a function that receives recorded check events
type Handler func(event models.CheckEvent)

// Bus is a simple in-process pub/sub event bus
type Bus struct {
	mu       sync.RWMutex
	handlers []Handler
	inflight sync.WaitGroup
}

// New creates a new event bus
func New() *Bus {
	return &Bus{
		handlers: make([]Handler, 0),
	}
}

// Subscribe registers a handler for all events
func (b *Bus) Subscribe(h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = append(b.handlers, h)
}

// Publish sends an event to all subscribers
// Events are dispatched in goroutines to prevent blocking
func (b *Bus) Publish(event models.CheckEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, h := range b.handlers {
		b.inflight.Add(1)
		go func(h Handler) {
			defer b.inflight.Done()
			h(event)
		}(h)
	}
}

// Wait blocks until every handler started by Publish has returned
func (b *Bus) Wait() {
	b.inflight.Wait()
}
