package live

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/CrewTrack/internal/broker/messages"
)

const DefaultStreamBuffer = 32

// Hub is the in-process stream sink: one topic per job, one bounded buffer
// per subscriber. A subscriber that falls behind is closed, it reconnects and
// refetches the snapshot. Topics exist only while someone is subscribed.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topic
	buffer int

	delivered atomic.Int64
	stale     atomic.Int64
	evicted   atomic.Int64
}

type topic struct {
	subs map[*Subscription]struct{}
	last map[orderKey]time.Time
}

type orderKey struct {
	sessionID string
	kind      messages.LiveEventKind
}

// Subscription delivers events for one job on C until Close is called or the
// hub evicts it, in both cases C is closed.
type Subscription struct {
	C <-chan messages.LiveEvent

	ch     chan messages.LiveEvent
	hub    *Hub
	jobID  string
	closed bool
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = DefaultStreamBuffer
	}
	return &Hub{topics: make(map[string]*topic), buffer: buffer}
}

func (h *Hub) Subscribe(jobID string) *Subscription {
	ch := make(chan messages.LiveEvent, h.buffer)
	sub := &Subscription{C: ch, ch: ch, hub: h, jobID: jobID}

	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[jobID]
	if !ok {
		t = &topic{
			subs: make(map[*Subscription]struct{}),
			last: make(map[orderKey]time.Time),
		}
		h.topics[jobID] = t
	}
	t.subs[sub] = struct{}{}
	return sub
}

func (s *Subscription) Close() {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()
	s.hub.removeLocked(s)
}

// Publish never blocks. Events older than the last one of the same kind in
// the same session are not delivered.
func (h *Hub) Publish(_ context.Context, ev messages.LiveEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[ev.JobID]
	if !ok {
		return nil
	}
	k := orderKey{sessionID: ev.SessionID, kind: ev.Kind}
	if last, seen := t.last[k]; seen && ev.Timestamp.Before(last) {
		h.stale.Add(1)
		return nil
	}
	t.last[k] = ev.Timestamp

	for sub := range t.subs {
		select {
		case sub.ch <- ev:
			h.delivered.Add(1)
		default:
			h.evicted.Add(1)
			h.removeLocked(sub)
		}
	}
	return nil
}

func (h *Hub) removeLocked(sub *Subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	close(sub.ch)

	t, ok := h.topics[sub.jobID]
	if !ok {
		return
	}
	delete(t.subs, sub)
	if len(t.subs) == 0 {
		delete(h.topics, sub.jobID)
	}
}

type HubStats struct {
	Topics      int   `json:"topics"`
	Subscribers int   `json:"subscribers"`
	Delivered   int64 `json:"delivered"`
	Stale       int64 `json:"stale"`
	Evicted     int64 `json:"evicted"`
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	st := HubStats{Topics: len(h.topics)}
	for _, t := range h.topics {
		st.Subscribers += len(t.subs)
	}
	h.mu.Unlock()

	st.Delivered = h.delivered.Load()
	st.Stale = h.stale.Load()
	st.Evicted = h.evicted.Load()
	return st
}
