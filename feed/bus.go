// feed/bus.go
package feed

import (
	"sync"
)

// Bus is the in-process Transport. Delivery is synchronous in the
// publisher's goroutine, which keeps tests deterministic and matches the
// single-threaded event model of the original client.
type Bus struct {
	mutex  sync.RWMutex
	subs   map[int64]*busSubscription
	nextID int64
	closed bool
}

func NewBus() *Bus {
	return &Bus{
		subs:   make(map[int64]*busSubscription),
		nextID: 1,
	}
}

type busSubscription struct {
	bus     *Bus
	id      int64
	scope   Scope
	handler Handler
	once    sync.Once
}

func (s *busSubscription) Unsubscribe() error {
	s.once.Do(func() {
		s.bus.mutex.Lock()
		delete(s.bus.subs, s.id)
		s.bus.mutex.Unlock()
	})
	return nil
}

func (b *Bus) Publish(e Event) error {
	b.mutex.RLock()
	if b.closed {
		b.mutex.RUnlock()
		return nil
	}
	// Snapshot matching handlers so a handler may unsubscribe mid-delivery.
	var handlers []Handler
	for _, sub := range b.subs {
		if sub.scope.Matches(e) {
			handlers = append(handlers, sub.handler)
		}
	}
	b.mutex.RUnlock()

	for _, h := range handlers {
		h(e)
	}
	return nil
}

func (b *Bus) Subscribe(scope Scope, h Handler) (Subscription, error) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	sub := &busSubscription{
		bus:     b,
		id:      b.nextID,
		scope:   scope,
		handler: h,
	}
	b.nextID++
	b.subs[sub.id] = sub
	return sub, nil
}

func (b *Bus) Close() error {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	b.closed = true
	b.subs = make(map[int64]*busSubscription)
	return nil
}
