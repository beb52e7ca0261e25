package stream

import (
	"context"
	"sync"
	"sync/atomic"

	"reftracker.org/internal/stakeholder"
)

const subscriberBuffer = 16

type subscriber struct {
	orgID string
	ch    chan stakeholder.Event
}

// Stream fans committed lifecycle events out to SSE subscribers.
type Stream struct {
	mu      sync.RWMutex
	subs    map[int]subscriber
	next    int
	dropped atomic.Uint64
}

var _ stakeholder.Notifier = (*Stream)(nil)

// New initialises an empty stream.
func New() *Stream {
	return &Stream{subs: make(map[int]subscriber)}
}

// Subscribe registers a subscriber and returns a channel which will receive
// events. A non-empty orgID limits delivery to events of that organization and
// to events without one. The channel is closed when ctx ends.
func (s *Stream) Subscribe(ctx context.Context, orgID string) <-chan stakeholder.Event {
	ch := make(chan stakeholder.Event, subscriberBuffer)

	s.mu.Lock()
	id := s.next
	s.next++
	s.subs[id] = subscriber{orgID: orgID, ch: ch}
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.subs, id)
		close(ch)
		s.mu.Unlock()
	}()

	return ch
}

// Publish fans the event out to all matching subscribers.
func (s *Stream) Publish(evt stakeholder.Event) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.subs {
		if sub.orgID != "" && evt.OrgID != "" && sub.orgID != evt.OrgID {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop when subscriber is slow to avoid blocking.
			s.dropped.Add(1)
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Stream) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Dropped returns how many deliveries were skipped for slow subscribers.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}
