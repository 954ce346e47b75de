package playback

import (
	"slices"
	"sync"

	"github.com/rs/zerolog"
)

// eventBufferSize bounds each channel subscription. Events are dropped
// rather than blocking the publisher when a listener falls behind.
const eventBufferSize = 16

// Handler receives events synchronously on the publisher's goroutine.
type Handler func(Event)

// Bus delivers events to subscribers in subscription order. Handlers run
// synchronously and may publish or subscribe themselves; panics are
// recovered and logged.
type Bus struct {
	mu     sync.RWMutex
	log    zerolog.Logger
	subs   []*Subscription
	nextID uint64
	closed bool
}

// NewBus creates an empty bus.
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{log: log}
}

// Subscription is a handle returned by Subscribe and Listen. Close it to
// stop delivery.
type Subscription struct {
	bus     *Bus
	id      uint64
	types   map[EventType]struct{}
	handler Handler

	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Subscribe registers fn for the given event types, or for every event
// when types is empty.
func (b *Bus) Subscribe(fn Handler, types ...EventType) *Subscription {
	s := b.newSubscription(types)
	s.handler = fn
	b.add(s)
	return s
}

// Listen registers a buffered channel subscription. Read from Events until
// Done is closed.
func (b *Bus) Listen(types ...EventType) *Subscription {
	s := b.newSubscription(types)
	s.ch = make(chan Event, eventBufferSize)
	s.handler = s.send
	b.add(s)
	return s
}

func (b *Bus) newSubscription(types []EventType) *Subscription {
	s := &Subscription{bus: b, done: make(chan struct{})}
	if len(types) > 0 {
		s.types = make(map[EventType]struct{}, len(types))
		for _, t := range types {
			s.types[t] = struct{}{}
		}
	}
	return s
}

func (b *Bus) add(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		s.close()
		return
	}
	b.nextID++
	s.id = b.nextID
	b.subs = append(b.subs, s)
}

func (b *Bus) remove(s *Subscription) {
	b.mu.Lock()
	b.subs = slices.DeleteFunc(b.subs, func(x *Subscription) bool { return x == s })
	b.mu.Unlock()
}

// Publish delivers ev to every matching subscriber.
func (b *Bus) Publish(ev Event) {
	if ev == nil {
		return
	}
	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return
	}
	subs := slices.Clone(b.subs)
	b.mu.RUnlock()

	t := ev.Type()
	for _, s := range subs {
		if s.wants(t) {
			b.deliver(s, ev)
		}
	}
}

func (b *Bus) deliver(s *Subscription, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error().
				Interface("panic", r).
				Stringer("event", ev.Type()).
				Uint64("subscription", s.id).
				Msg("event handler panicked")
		}
	}()
	select {
	case <-s.done:
		return
	default:
	}
	s.handler(ev)
}

// Len returns the number of live subscriptions.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close drops every subscription and ignores later publishes.
func (b *Bus) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	subs := b.subs
	b.subs = nil
	b.mu.Unlock()

	for _, s := range subs {
		s.close()
	}
}

func (s *Subscription) wants(t EventType) bool {
	if s.types == nil {
		return true
	}
	_, ok := s.types[t]
	return ok
}

// send is the handler of channel subscriptions (non-blocking).
func (s *Subscription) send(ev Event) {
	select {
	case s.ch <- ev:
	default:
		// Drop if buffer full
	}
}

// Events returns the channel of a Listen subscription, nil otherwise.
func (s *Subscription) Events() <-chan Event {
	return s.ch
}

// Done is closed once the subscription is closed.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close stops delivery. It is safe to call more than once.
func (s *Subscription) Close() {
	s.bus.remove(s)
	s.close()
}

func (s *Subscription) close() {
	s.once.Do(func() { close(s.done) })
}
