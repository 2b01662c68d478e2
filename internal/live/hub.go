// Package live fans store changes out to dashboards. Observers subscribe
// per collection and re-read whatever the event names.
package live

import (
	"context"
	"sync"
	"time"
)

const (
	CollectionOrders            = "orders"
	CollectionCompletedOrders   = "completedOrders"
	CollectionVerifiedDonations = "verifiedDonations"
	CollectionInventory         = "inventory"
)

var collections = map[string]bool{
	CollectionOrders:            true,
	CollectionCompletedOrders:   true,
	CollectionVerifiedDonations: true,
	CollectionInventory:         true,
}

func KnownCollection(name string) bool {
	return collections[name]
}

type EventType string

const (
	EventAdded    EventType = "added"
	EventModified EventType = "modified"
	EventRemoved  EventType = "removed"
)

type Event struct {
	Collection string    `json:"collection"`
	Type       EventType `json:"type"`
	ID         string    `json:"id,omitempty"`
	At         time.Time `json:"at"`
	Origin     string    `json:"origin,omitempty"`
}

// Publisher is what the order service talks to.
type Publisher interface {
	Publish(ev Event)
}

type subscriber struct {
	collection string
	ch         chan Event
}

type Hub struct {
	subs       map[string]map[*subscriber]struct{}
	register   chan *subscriber
	unregister chan *subscriber
	broadcast  chan Event
	done       chan struct{}

	mu    sync.Mutex
	count int
}

func NewHub() *Hub {
	return &Hub{
		subs:       make(map[string]map[*subscriber]struct{}),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		broadcast:  make(chan Event, 256),
		done:       make(chan struct{}),
	}
}

// Run owns the subscriber set until ctx is cancelled, then closes every
// subscription.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		for _, set := range h.subs {
			for s := range set {
				close(s.ch)
			}
		}
		h.subs = nil
		h.setCount(0)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case s := <-h.register:
			if h.subs[s.collection] == nil {
				h.subs[s.collection] = make(map[*subscriber]struct{})
			}
			h.subs[s.collection][s] = struct{}{}
			h.setCount(h.total())

		case s := <-h.unregister:
			if set := h.subs[s.collection]; set != nil {
				if _, ok := set[s]; ok {
					delete(set, s)
					close(s.ch)
				}
			}
			h.setCount(h.total())

		case ev := <-h.broadcast:
			for s := range h.subs[ev.Collection] {
				select {
				case s.ch <- ev:
				default:
					// slow consumer
					delete(h.subs[ev.Collection], s)
					close(s.ch)
				}
			}
			h.setCount(h.total())
		}
	}
}

// Subscribe returns a feed for one collection and a func that ends it. The
// channel is closed when the subscription ends, when the subscriber falls
// behind, or when the hub stops.
func (h *Hub) Subscribe(collection string) (<-chan Event, func()) {
	s := &subscriber{collection: collection, ch: make(chan Event, 32)}
	select {
	case h.register <- s:
	case <-h.done:
		close(s.ch)
		return s.ch, func() {}
	}

	var once sync.Once
	return s.ch, func() {
		once.Do(func() {
			select {
			case h.unregister <- s:
			case <-h.done:
			}
		})
	}
}

func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	select {
	case h.broadcast <- ev:
	case <-h.done:
	}
}

// Subscribers reports the current number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (h *Hub) total() int {
	n := 0
	for _, set := range h.subs {
		n += len(set)
	}
	return n
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}
