package events

import (
	"sync"

	"github.com/sessamekesh/duckpond-client/pkg/message/server"
	"go.uber.org/zap"
)

type Handler func(ev server.Event)

type subscription struct {
	name    string
	filter  map[server.ActionType]bool
	handler Handler
}

// Bus carries typed server events to game-side subscribers. Publish only
// queues; Flush delivers everything queued so far, in publish order.
type Bus struct {
	mut_pending sync.Mutex
	pending     []server.Event

	mut_subscribers sync.RWMutex
	subscribers     []subscription

	log *zap.Logger
}

func CreateBus(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.Must(zap.NewDevelopment())
	}
	return &Bus{
		log: logger.With(zap.String("handler", "EventBus")),
	}
}

// Subscribe registers a handler for the listed actions, or for every action
// if none are listed.
func (b *Bus) Subscribe(name string, handler Handler, actions ...server.ActionType) {
	var filter map[server.ActionType]bool
	if len(actions) > 0 {
		filter = make(map[server.ActionType]bool, len(actions))
		for _, a := range actions {
			filter[a] = true
		}
	}

	b.mut_subscribers.Lock()
	defer b.mut_subscribers.Unlock()
	b.subscribers = append(b.subscribers, subscription{name: name, filter: filter, handler: handler})
}

func (b *Bus) Publish(ev server.Event) {
	b.mut_pending.Lock()
	defer b.mut_pending.Unlock()
	b.pending = append(b.pending, ev)
}

func (b *Bus) Pending() int {
	b.mut_pending.Lock()
	defer b.mut_pending.Unlock()
	return len(b.pending)
}

// Flush delivers queued events and returns how many were delivered. A
// panicking handler is logged and skipped.
func (b *Bus) Flush() int {
	b.mut_pending.Lock()
	batch := b.pending
	b.pending = nil
	b.mut_pending.Unlock()

	b.mut_subscribers.RLock()
	subs := b.subscribers
	b.mut_subscribers.RUnlock()

	for _, ev := range batch {
		for _, sub := range subs {
			if sub.filter != nil && !sub.filter[ev.ActionType()] {
				continue
			}
			b.deliver(sub, ev)
		}
	}
	return len(batch)
}

func (b *Bus) deliver(sub subscription, ev server.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event subscriber panicked",
				zap.String("subscriber", sub.name),
				zap.Stringer("actionType", ev.ActionType()),
				zap.Any("panic", r))
		}
	}()
	sub.handler(ev)
}
