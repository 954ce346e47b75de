package player

import (
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

var (
	_ Slot          = (*beepSlot)(nil)
	_ beep.Streamer = (*beepSlot)(nil)
)

// beepSlot is a Slot backed by a beep decoder. It is itself a streamer that
// never drains: without a source, or once the source ends, it produces
// silence so the shared mixer keeps running.
//
// Everything below lock is guarded by it. For the real output lock is the
// speaker lock, which beep holds while calling Stream.
type beepSlot struct {
	name   string
	rate   beep.SampleRate
	notify func(Event)
	open   func(locator string) (beep.StreamSeekCloser, beep.Format, error)

	lock     sync.Locker
	source   beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	locator  string
	gen      uint64
	state    State
	level    float64
	finished bool
}

func newBeepSlot(name string, lock sync.Locker, rate beep.SampleRate, notify func(Event)) *beepSlot {
	return &beepSlot{
		name:   name,
		rate:   rate,
		notify: notify,
		open:   openSource,
		lock:   lock,
		level:  1,
	}
}

func (s *beepSlot) Name() string { return s.name }

// Stream implements beep.Streamer. Caller holds lock.
func (s *beepSlot) Stream(samples [][2]float64) (n int, ok bool) {
	if s.volume == nil || s.finished {
		clear(samples)
		return len(samples), true
	}

	n, ok = s.volume.Stream(samples)
	clear(samples[n:])
	if !ok {
		s.finished = true
		ev := Event{Slot: s, Generation: s.gen, Kind: EventEnded}
		if err := s.source.Err(); err != nil {
			ev.Kind = EventError
			ev.Err = err
		}
		// Never call back while beep holds the lock.
		go s.notify(ev)
	}
	return len(samples), true
}

// Err implements beep.Streamer.
func (s *beepSlot) Err() error { return nil }

// Load decodes locator and installs it paused at the start. Decoding runs
// outside the lock.
func (s *beepSlot) Load(locator string) error {
	source, format, err := s.open(locator)
	if err != nil {
		return err
	}

	var stream beep.Streamer = source
	if format.SampleRate != s.rate {
		stream = beep.Resample(4, format.SampleRate, s.rate, source)
	}
	ctrl := &beep.Ctrl{Streamer: stream, Paused: true}
	volume := &effects.Volume{Streamer: ctrl, Base: 2}

	s.lock.Lock()
	old := s.source
	s.source = source
	s.format = format
	s.ctrl = ctrl
	s.volume = volume
	s.locator = locator
	s.gen++
	s.state = Ready
	s.finished = false
	applyLevel(volume, s.level)
	s.lock.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

func (s *beepSlot) Play() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ctrl == nil {
		return ErrNoSource
	}
	s.ctrl.Paused = false
	s.state = Playing
	return nil
}

func (s *beepSlot) Pause() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.ctrl == nil || !s.state.CanPause() {
		return
	}
	s.ctrl.Paused = true
	s.state = Paused
}

func (s *beepSlot) Unload() {
	s.lock.Lock()
	old := s.source
	s.source = nil
	s.ctrl = nil
	s.volume = nil
	s.locator = ""
	s.gen++
	s.state = Stopped
	s.finished = false
	s.lock.Unlock()

	if old != nil {
		old.Close()
	}
}

// Seek moves to position, clamped to the source length.
func (s *beepSlot) Seek(position time.Duration) error {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.source == nil {
		return ErrNoSource
	}
	n := s.format.SampleRate.N(position)
	n = max(0, min(n, s.source.Len()))
	if err := s.source.Seek(n); err != nil {
		return err
	}
	s.finished = false
	return nil
}

// SetVolume sets the slot level (0.0 to 1.0). It persists across loads.
func (s *beepSlot) SetVolume(level float64) {
	level = clampLevel(level)
	s.lock.Lock()
	s.level = level
	applyLevel(s.volume, level)
	s.lock.Unlock()
}

func (s *beepSlot) Volume() float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.level
}

func (s *beepSlot) Position() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.source == nil {
		return 0
	}
	return s.format.SampleRate.D(s.source.Position())
}

func (s *beepSlot) Duration() time.Duration {
	s.lock.Lock()
	defer s.lock.Unlock()
	if s.source == nil {
		return 0
	}
	return s.format.SampleRate.D(s.source.Len())
}

func (s *beepSlot) Locator() string {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.locator
}

func (s *beepSlot) Generation() uint64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.gen
}

func (s *beepSlot) State() State {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.state
}
