package notification

import (
	"context"
	"strings"
	"sync"
)

const subscriberBuffer = 32

// Hub fans channel messages out to in-process subscribers such as websocket
// dashboard sessions. Slow subscribers lose messages instead of blocking.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]*subscription
}

type subscription struct {
	prefixes []string
	ch       chan Message
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[int]*subscription{}}
}

// Subscribe registers interest in channels. A pattern ending in ":" matches
// every channel starting with it, any other pattern matches exactly. No
// patterns means every channel. The returned cancel func closes the stream.
func (h *Hub) Subscribe(prefixes ...string) (<-chan Message, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	sub := &subscription{prefixes: prefixes, ch: make(chan Message, subscriberBuffer)}
	h.subs[id] = sub

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(sub.ch)
		})
	}
}

// Publish implements ChannelPublisher.
func (h *Hub) Publish(_ context.Context, channel string, msg Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.subs {
		if !sub.matches(channel) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
		}
	}
	return nil
}

// Subscribers returns the number of open subscriptions.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (s *subscription) matches(channel string) bool {
	if len(s.prefixes) == 0 {
		return true
	}
	for _, p := range s.prefixes {
		if strings.HasSuffix(p, ":") && strings.HasPrefix(channel, p) {
			return true
		}
		if channel == p {
			return true
		}
	}
	return false
}
