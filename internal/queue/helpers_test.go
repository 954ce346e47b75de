package queue

import (
	"math/rand/v2"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/coflyn/flow/internal/playback"
)

// fakeEngine records what the manager asks of it. Mode changes are
// published on the bus like the real engine does.
type fakeEngine struct {
	mu       sync.Mutex
	bus      *playback.Bus
	mode     playback.Mode
	position time.Duration
	played   []string
	preloads []string
	pauses   int
	seeks    []time.Duration
}

func (f *fakeEngine) Play(t playback.Track) {
	f.mu.Lock()
	f.played = append(f.played, t.ID)
	f.mu.Unlock()
}

func (f *fakeEngine) PreloadNext(t *playback.Track) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t == nil {
		f.preloads = append(f.preloads, "")
		return
	}
	f.preloads = append(f.preloads, t.ID)
}

func (f *fakeEngine) Pause() {
	f.mu.Lock()
	f.pauses++
	f.mu.Unlock()
}

func (f *fakeEngine) Seek(d time.Duration) {
	f.mu.Lock()
	f.seeks = append(f.seeks, d)
	f.mu.Unlock()
}

func (f *fakeEngine) Position() time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.position
}

func (f *fakeEngine) Mode() playback.Mode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

func (f *fakeEngine) SetShuffle(enabled bool) playback.Mode {
	return f.update(func(m playback.Mode) playback.Mode { return m.WithShuffle(enabled) })
}

func (f *fakeEngine) SetRepeat(r playback.RepeatMode) playback.Mode {
	return f.update(func(m playback.Mode) playback.Mode { return m.WithRepeat(r) })
}

func (f *fakeEngine) ToggleRepeat() playback.Mode {
	return f.update(playback.Mode.NextRepeat)
}

func (f *fakeEngine) SetStopAfterCurrent(enabled bool) playback.Mode {
	return f.update(func(m playback.Mode) playback.Mode { return m.WithStopAfterCurrent(enabled) })
}

func (f *fakeEngine) ToggleStopAfterCurrent() playback.Mode {
	return f.update(func(m playback.Mode) playback.Mode { return m.WithStopAfterCurrent(!m.StopAfterCurrent) })
}

func (f *fakeEngine) update(fn func(playback.Mode) playback.Mode) playback.Mode {
	f.mu.Lock()
	prev := f.mode
	f.mode = fn(prev)
	next := f.mode
	f.mu.Unlock()

	if prev.Shuffle != next.Shuffle {
		f.bus.Publish(playback.ShuffleChange{Enabled: next.Shuffle})
	}
	if prev.Repeat != next.Repeat || prev.StopAfterCurrent != next.StopAfterCurrent {
		f.bus.Publish(playback.RepeatChange{Mode: next.Repeat, StopAfterCurrent: next.StopAfterCurrent})
	}
	return next
}

func (f *fakeEngine) setPosition(d time.Duration) {
	f.mu.Lock()
	f.position = d
	f.mu.Unlock()
}

func (f *fakeEngine) playedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.played...)
}

func (f *fakeEngine) lastPreload() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.preloads) == 0 {
		return ""
	}
	return f.preloads[len(f.preloads)-1]
}

func (f *fakeEngine) pauseCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pauses
}

func (f *fakeEngine) seekCalls() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.seeks...)
}

// events collects events of the given types from a bus.
type events struct {
	mu  sync.Mutex
	got []playback.Event
}

func collect(bus *playback.Bus, types ...playback.EventType) *events {
	e := &events{}
	bus.Subscribe(func(ev playback.Event) {
		e.mu.Lock()
		e.got = append(e.got, ev)
		e.mu.Unlock()
	}, types...)
	return e
}

func (e *events) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.got)
}

func (e *events) last() playback.Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.got) == 0 {
		return nil
	}
	return e.got[len(e.got)-1]
}

func newTestManager(t *testing.T) (*Manager, *fakeEngine, *playback.Bus) {
	t.Helper()
	bus := playback.NewBus(zerolog.Nop())
	eng := &fakeEngine{bus: bus}
	m := New(eng, bus, WithRand(rand.New(rand.NewPCG(1, 2))))
	t.Cleanup(m.Close)
	return m, eng, bus
}

func tracks(idList ...string) []playback.Track {
	out := make([]playback.Track, len(idList))
	for i, id := range idList {
		out[i] = playback.Track{ID: id, SourceURI: "/music/" + id + ".mp3", Title: id}
	}
	return out
}

func ids(ts []playback.Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}
