// Package queue owns the play order and drives the playback engine
// through it.
package queue

import (
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/playlist"
)

// restartThreshold is how far into a track PlayPrev rewinds instead of
// going back.
const restartThreshold = 3 * time.Second

var (
	ErrInvalidIndex = errors.New("queue: index out of range")
	ErrClosed       = errors.New("queue: closed")
)

// Engine is the part of playback.Engine the queue drives.
type Engine interface {
	Play(track playback.Track)
	PreloadNext(track *playback.Track)
	Pause()
	Seek(position time.Duration)
	Position() time.Duration
	Mode() playback.Mode
	SetShuffle(enabled bool) playback.Mode
	SetRepeat(r playback.RepeatMode) playback.Mode
	ToggleRepeat() playback.Mode
	SetStopAfterCurrent(enabled bool) playback.Mode
	ToggleStopAfterCurrent() playback.Mode
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithRand sets the random source used for shuffling.
func WithRand(rng *rand.Rand) Option {
	return func(m *Manager) { m.rng = rng }
}

// WithHistorySize bounds the play history.
func WithHistorySize(n int) Option {
	return func(m *Manager) { m.history = playlist.NewHistory(n) }
}

// Snapshot is a copy of the queue suitable for persisting. Original is nil
// unless the queue is shuffled.
type Snapshot struct {
	Tracks   []playback.Track
	Original []playback.Track
	Index    int
}

// Manager owns the play order, applies shuffle and repeat at track
// boundaries, and keeps the engine's preload pointed at the next track.
//
// The mutex guards the queue only. Engine calls are made after it is
// released, since the engine may deliver events back into the manager.
type Manager struct {
	mu      sync.Mutex
	log     zerolog.Logger
	engine  Engine
	bus     *playback.Bus
	queue   *playlist.PlayingQueue
	history *playlist.History
	rng     *rand.Rand
	subs    []*playback.Subscription
	closed  bool
}

// New creates a manager driving engine and subscribes it to the engine's
// events on bus.
func New(engine Engine, bus *playback.Bus, opts ...Option) *Manager {
	m := &Manager{
		log:     zerolog.Nop(),
		engine:  engine,
		bus:     bus,
		queue:   playlist.NewQueue(),
		history: playlist.NewHistory(playlist.DefaultHistorySize),
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())), //nolint:gosec // shuffle order is not security-sensitive
	}
	for _, opt := range opts {
		opt(m)
	}

	m.subs = []*playback.Subscription{
		bus.Subscribe(func(playback.Event) { m.PlayNext() }, playback.EventEnded, playback.EventNext),
		bus.Subscribe(func(playback.Event) { m.PlayPrev() }, playback.EventPrev),
		bus.Subscribe(m.onTransition, playback.EventTransition),
		bus.Subscribe(m.onShuffleChange, playback.EventShuffleChange),
		bus.Subscribe(func(playback.Event) { m.syncPreload() }, playback.EventRepeatChange),
	}
	return m
}

// Close releases the event subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	subs := m.subs
	m.subs = nil
	m.mu.Unlock()

	for _, s := range subs {
		s.Close()
	}
}

// PlayAll replaces the queue with tracks and plays from start. Under
// shuffle the start track is pinned first and the rest are permuted.
func (m *Manager) PlayAll(tracks []playback.Track, start int) {
	shuffle := m.engine.Mode().Shuffle

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.queue.Replace(tracks, start)
	if shuffle {
		m.queue.Shuffle(m.rng)
	}
	empty := m.queue.IsEmpty()
	m.mu.Unlock()

	m.log.Debug().Int("tracks", len(tracks)).Int("start", start).Bool("shuffle", shuffle).Msg("queue replaced")
	if empty {
		// Nothing left to follow the playing track.
		m.engine.Pause()
		m.publishChange()
		m.syncPreload()
		return
	}
	m.playCurrent()
}

// PlayTrack jumps to track if it is queued, otherwise appends and plays it.
func (m *Manager) PlayTrack(track playback.Track) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if i := m.queue.IndexOf(track.ID); i >= 0 {
		m.queue.JumpTo(i)
	} else {
		m.queue.AddAndPlay(track)
	}
	m.mu.Unlock()
	m.playCurrent()
}

// PlayIndex jumps to the track at index and plays it.
func (m *Manager) PlayIndex(index int) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.queue.JumpTo(index) == nil {
		m.mu.Unlock()
		return errors.Wrapf(ErrInvalidIndex, "play %d", index)
	}
	m.mu.Unlock()
	m.playCurrent()
	return nil
}

// PlayCurrent starts the current track again, e.g. after a restore.
func (m *Manager) PlayCurrent() {
	m.playCurrent()
}

// PlayNext advances to the next track. Stop-after-current pauses instead,
// once. At the end of the queue it wraps under repeat-all and otherwise
// pauses and reports the end.
func (m *Manager) PlayNext() {
	mode := m.engine.Mode()

	m.mu.Lock()
	if m.closed || m.queue.IsEmpty() {
		m.mu.Unlock()
		return
	}
	var prev *playback.Track
	if cur := m.queue.Current(); cur != nil {
		t := *cur
		prev = &t
	}

	if mode.StopAfterCurrent {
		m.mu.Unlock()
		m.log.Debug().Msg("stop after current")
		m.engine.SetStopAfterCurrent(false)
		m.engine.Pause()
		return
	}

	switch {
	case m.queue.Next() != nil:
	case mode.Repeat == playback.RepeatAll:
		if mode.Shuffle {
			m.queue.Reshuffle(m.rng)
		} else {
			m.queue.JumpTo(0)
		}
	default:
		m.mu.Unlock()
		m.log.Debug().Msg("end of queue")
		m.engine.Pause()
		m.bus.Publish(playback.QueueEnd{})
		return
	}
	if prev != nil {
		m.history.Push(*prev)
	}
	m.mu.Unlock()
	m.playCurrent()
}

// PlayPrev rewinds when more than a few seconds into the track, otherwise
// goes back one, wrapping under repeat-all. At the start it rewinds.
func (m *Manager) PlayPrev() {
	if m.engine.Position() > restartThreshold {
		m.engine.Seek(0)
		return
	}
	mode := m.engine.Mode()

	m.mu.Lock()
	if m.closed || m.queue.IsEmpty() {
		m.mu.Unlock()
		return
	}
	switch {
	case m.queue.HasPrev():
		m.queue.JumpTo(m.queue.CurrentIndex() - 1)
	case mode.Repeat == playback.RepeatAll:
		m.queue.JumpTo(m.queue.Len() - 1)
	default:
		m.mu.Unlock()
		m.engine.Seek(0)
		return
	}
	m.mu.Unlock()
	m.playCurrent()
}

// InsertNext queues track right after the current one, moving it if it is
// already queued.
func (m *Manager) InsertNext(track playback.Track) {
	m.edit(func(q *playlist.PlayingQueue) { q.InsertNext(track) })
}

// Add appends tracks without changing what is playing.
func (m *Manager) Add(tracks ...playback.Track) {
	m.edit(func(q *playlist.PlayingQueue) { q.Add(tracks...) })
}

// Reorder moves an upcoming track from one index to another. Both indexes
// must lie after the current track.
func (m *Manager) Reorder(from, to int) error {
	var err error
	m.edit(func(q *playlist.PlayingQueue) {
		cur := q.CurrentIndex()
		if from <= cur || to <= cur || !q.Move(from, to) {
			err = errors.Wrapf(ErrInvalidIndex, "move %d to %d", from, to)
		}
	})
	return err
}

// RemoveAt removes a track other than the current one.
func (m *Manager) RemoveAt(index int) error {
	var err error
	m.edit(func(q *playlist.PlayingQueue) {
		if index == q.CurrentIndex() || !q.RemoveAt(index) {
			err = errors.Wrapf(ErrInvalidIndex, "remove %d", index)
		}
	})
	return err
}

// Clear removes every track except the current one.
func (m *Manager) Clear() {
	m.edit((*playlist.PlayingQueue).Clear)
}

// ClearUpcoming drops the tracks after the current one.
func (m *Manager) ClearUpcoming() {
	m.edit((*playlist.PlayingQueue).ClearUpcoming)
}

// Restore loads a saved snapshot without starting playback.
func (m *Manager) Restore(s Snapshot) {
	m.edit(func(q *playlist.PlayingQueue) { q.Restore(s.Tracks, s.Original, s.Index) })
}

// ToggleShuffle flips shuffle on the engine. The queue reorders when the
// engine reports the change.
func (m *Manager) ToggleShuffle() playback.Mode {
	return m.engine.SetShuffle(!m.engine.Mode().Shuffle)
}

// ToggleRepeat advances the engine's repeat cycle.
func (m *Manager) ToggleRepeat() playback.Mode {
	return m.engine.ToggleRepeat()
}

// ToggleStopAfterCurrent flips the engine's stop-after-current flag.
func (m *Manager) ToggleStopAfterCurrent() playback.Mode {
	return m.engine.ToggleStopAfterCurrent()
}

// Queries

func (m *Manager) Current() *playback.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Current()
}

func (m *Manager) CurrentIndex() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.CurrentIndex()
}

func (m *Manager) Tracks() []playback.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Tracks()
}

func (m *Manager) Upcoming() []playback.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Upcoming()
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue.Len()
}

// History returns played tracks, oldest first.
func (m *Manager) History() []playback.Track {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.history.Tracks()
}

// Snapshot returns a copy of the queue for persisting.
func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Snapshot{Tracks: m.queue.Tracks(), Index: m.queue.CurrentIndex()}
	if m.queue.Shuffled() {
		s.Original = m.queue.OriginalTracks()
	}
	return s
}

// Event handlers

// onTransition follows an engine-driven hand-off to the preloaded track.
// The engine is already playing it, so only the index moves.
func (m *Manager) onTransition(ev playback.Event) {
	tr, ok := ev.(playback.Transition)
	if !ok {
		return
	}
	mode := m.engine.Mode()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	if cur := m.queue.Current(); cur != nil {
		m.history.Push(*cur)
	}
	next := m.queue.NextIndex(mode.Repeat == playback.RepeatAll)
	if next < 0 || m.queue.Tracks()[next].ID != tr.Track.ID {
		next = m.queue.IndexOf(tr.Track.ID)
	}
	if next < 0 {
		m.mu.Unlock()
		m.log.Warn().Str("track", tr.Track.ID).Msg("transition to a track not in the queue")
		return
	}
	m.queue.JumpTo(next)
	m.mu.Unlock()

	m.publishChange()
	m.syncPreload()
}

// onShuffleChange reorders the queue to follow the engine's shuffle flag.
func (m *Manager) onShuffleChange(ev playback.Event) {
	sc, ok := ev.(playback.ShuffleChange)
	if !ok {
		return
	}
	m.edit(func(q *playlist.PlayingQueue) {
		if sc.Enabled {
			q.Shuffle(m.rng)
		} else {
			q.Unshuffle()
		}
	})
}

// Internals

// edit applies fn to the queue, then reports the change and re-syncs the
// preload.
func (m *Manager) edit(fn func(q *playlist.PlayingQueue)) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	fn(m.queue)
	m.mu.Unlock()

	m.publishChange()
	m.syncPreload()
}

// playCurrent hands the current track to the engine and stages the next.
func (m *Manager) playCurrent() {
	m.mu.Lock()
	cur := m.queue.Current()
	m.mu.Unlock()
	if cur == nil {
		return
	}
	m.engine.Play(*cur)
	m.publishChange()
	m.syncPreload()
}

// syncPreload points the engine's preload at the track that follows the
// current one, wrapping under repeat-all.
func (m *Manager) syncPreload() {
	wrap := m.engine.Mode().Repeat == playback.RepeatAll

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	var next *playback.Track
	if m.queue.Current() != nil {
		next = m.queue.PeekNext(wrap)
	}
	m.mu.Unlock()

	m.engine.PreloadNext(next)
}

func (m *Manager) publishChange() {
	m.mu.Lock()
	ev := playback.QueueChange{Tracks: m.queue.Tracks(), Index: m.queue.CurrentIndex()}
	m.mu.Unlock()
	m.bus.Publish(ev)
}
