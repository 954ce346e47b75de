package playback

import (
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"github.com/coflyn/flow/internal/player"
)

// recorder captures every event published on a bus.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func record(bus *Bus) *recorder {
	r := &recorder{}
	bus.Subscribe(func(ev Event) {
		r.mu.Lock()
		r.events = append(r.events, ev)
		r.mu.Unlock()
	})
	return r
}

// types returns event types in order, leaving out time updates.
func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []EventType
	for _, ev := range r.events {
		if ev.Type() != EventTimeUpdate {
			out = append(out, ev.Type())
		}
	}
	return out
}

func (r *recorder) count(t EventType) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Type() == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t EventType) Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type() == t {
			return r.events[i]
		}
	}
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func newTestEngine(t *testing.T, cfg Config, opts ...Option) (*Engine, *player.MockOutput, *recorder) {
	t.Helper()
	bus := NewBus(zerolog.Nop())
	out := player.NewMockOutput()
	rec := record(bus)
	e := NewEngine(out, bus, cfg, opts...)
	return e, out, rec
}

func track(id string) Track {
	return Track{ID: id, SourceURI: "/music/" + id + ".mp3", Title: id}
}

func ptr[T any](v T) *T { return &v }
