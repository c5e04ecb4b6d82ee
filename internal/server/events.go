package server

import (
	"sync"
	"time"

	"github.com/leapstack-labs/pasture/internal/dataset"
)

// Event is pushed to /events subscribers after the dataset is reloaded.
type Event struct {
	Kind     string            `json:"kind"`
	Dataset  string            `json:"dataset"`
	Ready    bool              `json:"ready"`
	Problems []dataset.Problem `json:"problems,omitempty"`
	At       time.Time         `json:"at"`
}

// EventReload is the kind of event sent after a reload.
const EventReload = "reload"

// broadcaster fans events out to all subscribed listeners.
type broadcaster struct {
	mu        sync.RWMutex
	listeners map[chan Event]struct{}
}

func newBroadcaster() *broadcaster {
	return &broadcaster{listeners: make(map[chan Event]struct{})}
}

// Subscribe returns a channel that receives events. The caller must call
// Unsubscribe when done.
func (b *broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 1)
	b.mu.Lock()
	b.listeners[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener channel and closes it.
func (b *broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.listeners, ch)
	b.mu.Unlock()
	close(ch)
}

// Len returns the number of subscribers.
func (b *broadcaster) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Broadcast sends ev to every listener without blocking. A listener whose
// buffer is full misses the event.
func (b *broadcaster) Broadcast(ev Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.listeners {
		select {
		case ch <- ev:
		default:
		}
	}
}
