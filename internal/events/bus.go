package events

import (
	"log/slog"
	"sync"

	"github.com/mmcdole/trackr/internal/domain"
)

// Entity names carried on events
const (
	EntityBook = "book"
	EntityList = "list"
)

// Change describes what happened to an entity
type Change string

const (
	ChangeTracked   Change = "tracked"
	ChangeUpdated   Change = "updated"
	ChangeUntracked Change = "untracked"
)

// Event is published after a server-confirmed mutation
type Event struct {
	Entity   string
	ID       string
	Change   Change
	Tracking *domain.BookTracking // nil when the book is no longer tracked
}

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not publish recursively.
type Handler func(Event)

// Bus is a small synchronous pub/sub hub
type Bus struct {
	mu       sync.RWMutex
	handlers map[uint64]Handler
	order    []uint64
	nextID   uint64
	logger   *slog.Logger
}

// NewBus creates an empty bus
func NewBus(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{handlers: make(map[uint64]Handler), logger: logger}
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers, id)
			for i, existing := range b.order {
				if existing == id {
					b.order = append(b.order[:i], b.order[i+1:]...)
					break
				}
			}
			b.mu.Unlock()
		})
	}
}

// Publish delivers ev to every subscriber in subscription order
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	b.logger.Debug("publishing event", "entity", ev.Entity, "id", ev.ID, "change", ev.Change, "subscribers", len(handlers))
	for _, h := range handlers {
		h(ev)
	}
}

// Injector adapts a domain.TrackingInjector into a Handler for book events
func Injector(target domain.TrackingInjector) Handler {
	return func(ev Event) {
		if ev.Entity != EntityBook {
			return
		}
		target.InjectTrackedStatus(ev.ID, ev.Tracking.Clone())
	}
}
