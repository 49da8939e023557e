// Package broadcast multiplexes debate events to live subscribers.
// Publishing never blocks the debate: each subscriber owns a bounded queue
// drained by its own pump goroutine, and queues under pressure shed their
// oldest fragment events first.
package broadcast

import (
	"sync"
	"time"

	"github.com/anthropics/debate-arena/internal/domain"
)

// NotificationSink receives every published event, regardless of debate.
// It is the hook for transport layers (push sockets, queues) outside the core.
type NotificationSink interface {
	Publish(ev domain.DebateEvent)
}

// Broadcaster fans debate events out to per-debate subscribers and attached
// sinks. The subscriber registry is the only state in the engine mutated by
// multiple concurrent actors.
type Broadcaster struct {
	mu       sync.Mutex
	capacity int
	subs     map[string]map[*Subscription]struct{}
	sinks    map[*Subscription]struct{}
	seq      map[string]int64
	finished map[string]bool
}

// NewBroadcaster creates a Broadcaster with the given per-subscriber queue
// capacity.
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = 256
	}
	return &Broadcaster{
		capacity: capacity,
		subs:     make(map[string]map[*Subscription]struct{}),
		sinks:    make(map[*Subscription]struct{}),
		seq:      make(map[string]int64),
		finished: make(map[string]bool),
	}
}

// Publish delivers an event to every subscriber of its debate and to all
// sinks. Events are stamped with a per-debate sequence number, strictly
// increasing in publish order. Publishing to a finished debate is a no-op.
// A DebateDone event finishes the debate: subscriber streams terminate once
// their queues drain.
func (b *Broadcaster) Publish(ev domain.DebateEvent) {
	b.mu.Lock()
	if b.finished[ev.DebateID] {
		b.mu.Unlock()
		return
	}

	b.seq[ev.DebateID]++
	ev.Seq = b.seq[ev.DebateID]
	ev.CreatedAtUnix = time.Now().Unix()

	targets := make([]*Subscription, 0, len(b.subs[ev.DebateID])+len(b.sinks))
	for sub := range b.subs[ev.DebateID] {
		targets = append(targets, sub)
	}
	for sink := range b.sinks {
		targets = append(targets, sink)
	}

	terminal := ev.Kind == domain.EventDebateDone
	if terminal {
		b.finished[ev.DebateID] = true
		delete(b.subs, ev.DebateID)
	}

	// Queues fill before the lock is released so every subscriber observes
	// events in stamped Seq order even under concurrent publishers. push
	// never blocks, so the lock is held only briefly.
	for _, sub := range targets {
		sub.push(ev)
		if terminal && sub.debateID != "" {
			sub.finish()
		}
	}
	b.mu.Unlock()
}

// Subscribe attaches a new subscriber to a debate. Subscribers receive every
// event published from this moment on; there is no historical replay. If the
// debate already finished, the returned subscription's channel is closed
// immediately.
func (b *Broadcaster) Subscribe(debateID string) *Subscription {
	sub := newSubscription(b, debateID, b.capacity)

	b.mu.Lock()
	if b.finished[debateID] {
		b.mu.Unlock()
		sub.finish()
		return sub
	}
	set, ok := b.subs[debateID]
	if !ok {
		set = make(map[*Subscription]struct{})
		b.subs[debateID] = set
	}
	set[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

// AttachSink registers a sink that observes every event across all debates.
// The returned subscription handle closes the sink's pump when no longer
// needed. Slow sinks shed fragment events like any other subscriber.
func (b *Broadcaster) AttachSink(sink NotificationSink) *Subscription {
	sub := newSubscription(b, "", b.capacity)
	go func() {
		for ev := range sub.Events() {
			sink.Publish(ev)
		}
	}()

	b.mu.Lock()
	b.sinks[sub] = struct{}{}
	b.mu.Unlock()

	return sub
}

func (b *Broadcaster) remove(sub *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if sub.debateID == "" {
		delete(b.sinks, sub)
		return
	}
	if set, ok := b.subs[sub.debateID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.debateID)
		}
	}
}

// Subscription is one subscriber's view of a debate's event stream.
type Subscription struct {
	b        *Broadcaster
	debateID string

	mu       sync.Mutex
	queue    []domain.DebateEvent
	capacity int
	gapped   bool
	finished bool

	notify    chan struct{}
	done      chan struct{}
	out       chan domain.DebateEvent
	closeOnce sync.Once
}

func newSubscription(b *Broadcaster, debateID string, capacity int) *Subscription {
	sub := &Subscription{
		b:        b,
		debateID: debateID,
		capacity: capacity,
		notify:   make(chan struct{}, 1),
		done:     make(chan struct{}),
		out:      make(chan domain.DebateEvent),
	}
	go sub.pump()
	return sub
}

// Events returns the subscriber's event channel. The channel is closed after
// the debate's DebateDone event has been delivered, or after Close.
func (s *Subscription) Events() <-chan domain.DebateEvent {
	return s.out
}

// Close detaches the subscriber. Safe to call multiple times.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.b.remove(s)
		close(s.done)
	})
}

// push enqueues an event, shedding the oldest buffered fragment when the
// queue is full. Statement, round, and debate markers are never dropped;
// if only markers remain the queue grows past capacity instead.
func (s *Subscription) push(ev domain.DebateEvent) {
	s.mu.Lock()
	if len(s.queue) >= s.capacity {
		for i := range s.queue {
			if s.queue[i].Kind == domain.EventFragment {
				s.queue = append(s.queue[:i], s.queue[i+1:]...)
				s.gapped = true
				break
			}
		}
	}
	s.queue = append(s.queue, ev)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

// finish marks the stream complete; the pump closes the channel once the
// queue drains.
func (s *Subscription) finish() {
	s.mu.Lock()
	s.finished = true
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			fin := s.finished
			s.mu.Unlock()
			if fin {
				return
			}
			select {
			case <-s.notify:
				continue
			case <-s.done:
				return
			}
		}
		ev := s.queue[0]
		s.queue = s.queue[1:]
		if s.gapped {
			// The first event after a shed fragment flags the gap so
			// clients know to resync from statement markers.
			ev.Gapped = true
			s.gapped = false
		}
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.done:
			return
		}
	}
}
