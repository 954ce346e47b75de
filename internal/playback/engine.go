package playback

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coflyn/flow/internal/player"
)

const (
	// MaxCrossfade bounds the crossfade duration.
	MaxCrossfade = 12 * time.Second
	// minTransitionLead is the gapless trigger window when crossfade is zero.
	minTransitionLead = 100 * time.Millisecond
	// Tracks at or under minFadeTrackLength never crossfade, and nothing
	// crossfades during the first minFadePosition of a track.
	minFadeTrackLength = 2 * time.Second
	minFadePosition    = time.Second
)

// Config holds engine tuning and the settings it starts from.
type Config struct {
	// SettleDelay separates a track change from the load it triggers, so
	// rapid skips collapse into one load.
	SettleDelay time.Duration
	// SkipDebounce delays the automatic skip after a failure.
	SkipDebounce time.Duration
	// Watchdog forces Loading to Paused if a load never completes.
	Watchdog time.Duration
	// TickInterval is the time-update and crossfade-check period.
	TickInterval time.Duration
	// MaxErrors consecutive failures trip the circuit breaker.
	MaxErrors int

	Crossfade         time.Duration
	Volume            float64
	EQGains           []float64
	Mono              bool
	Mode              Mode
	PauseOnDisconnect bool
	PlayOnConnect     bool
}

// DefaultConfig returns the stock tuning.
func DefaultConfig() Config {
	return Config{
		SettleDelay:       50 * time.Millisecond,
		SkipDebounce:      500 * time.Millisecond,
		Watchdog:          3 * time.Second,
		TickInterval:      250 * time.Millisecond,
		MaxErrors:         5,
		Crossfade:         1500 * time.Millisecond,
		Volume:            1,
		PauseOnDisconnect: true,
	}
}

func (c Config) normalized() Config {
	def := DefaultConfig()
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	if c.SkipDebounce < 0 {
		c.SkipDebounce = 0
	}
	if c.Watchdog <= 0 {
		c.Watchdog = def.Watchdog
	}
	if c.TickInterval <= 0 {
		c.TickInterval = def.TickInterval
	}
	if c.MaxErrors <= 0 {
		c.MaxErrors = def.MaxErrors
	}
	return c
}

// TrackResolver late-binds a track's source and cover locators.
type TrackResolver interface {
	Resolve(ctx context.Context, t Track) (Track, error)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithResolver sets the resolver consulted before every load.
func WithResolver(r TrackResolver) Option {
	return func(e *Engine) { e.resolver = r }
}

// Status is a point-in-time snapshot of the engine.
type Status struct {
	State          State
	Track          *Track
	Position       time.Duration
	Duration       time.Duration
	Volume         float64
	Crossfade      time.Duration
	Mode           Mode
	SleepRemaining time.Duration
	EQGains        []float64
}

// Engine plays one track at a time through two alternating slots, blending
// them at track boundaries.
//
// All state is guarded by mu. Events are queued while mu is held and
// delivered in order by whichever goroutine flushes first, never under the
// lock. Every asynchronous continuation carries the transition id it was
// started under and gives up if a newer one has been minted.
type Engine struct {
	mu       sync.Mutex
	log      zerolog.Logger
	bus      *Bus
	out      player.Output
	resolver TrackResolver
	cfg      Config

	active, idle player.Slot
	fading       player.Slot
	current      *Track
	preloaded    *Track
	preloadSeq   uint64
	// deferredPreload is a PreloadNext received mid-fade.
	deferredPreload *Track
	preloadDeferred bool
	state           State
	transition      uint64
	errCount        int
	// endedSilently marks a pause left by a track ending that no pause
	// event has announced yet.
	endedSilently bool

	volume            float64
	crossfade         time.Duration
	mode              Mode
	eq                player.Equalizer
	pauseOnDisconnect bool
	playOnConnect     bool

	skipTimer *time.Timer
	watchdog  *time.Timer
	sleep     *sleepTimer

	outbox   []Event
	flushing bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
	closed bool
}

// NewEngine wires an engine to out and starts its monitor.
func NewEngine(out player.Output, bus *Bus, cfg Config, opts ...Option) *Engine {
	cfg = cfg.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		log:               zerolog.Nop(),
		bus:               bus,
		out:               out,
		cfg:               cfg,
		volume:            clampVolume(cfg.Volume),
		crossfade:         clampCrossfade(cfg.Crossfade),
		mode:              cfg.Mode,
		pauseOnDisconnect: cfg.PauseOnDisconnect,
		playOnConnect:     cfg.PlayOnConnect,
		ctx:               ctx,
		cancel:            cancel,
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.active, e.idle = out.Slots()
	e.active.SetVolume(e.volume)
	e.idle.SetVolume(0)
	out.SetMono(cfg.Mono)
	e.restoreEqualizer(cfg.EQGains)
	out.SetListener(e.handleSlotEvent)

	e.wg.Add(1)
	go e.monitor()
	return e
}

func (e *Engine) restoreEqualizer(gains []float64) {
	flat := true
	for _, g := range gains {
		if g != 0 {
			flat = false
		}
	}
	if flat {
		return
	}
	eq, err := e.ensureEqualizerLocked()
	if err != nil {
		e.log.Warn().Err(err).Msg("equalizer unavailable, ignoring saved gains")
		return
	}
	for band, g := range gains {
		if err := eq.SetBandGain(band, g); err != nil {
			e.log.Warn().Err(err).Int("band", band).Msg("ignoring saved gain")
		}
	}
}

// Close stops every timer and goroutine and releases both slots.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.transition++
	close(e.done)
	e.cancel()
	stopTimer(e.skipTimer)
	stopTimer(e.watchdog)
	e.stopSleepLocked()
	e.outbox = nil
	e.mu.Unlock()

	e.wg.Wait()
	e.out.SetListener(nil)
	e.active.Unload()
	e.idle.Unload()
	e.log.Debug().Msg("engine closed")
	return nil
}

// emit queues ev for delivery. Caller holds mu.
func (e *Engine) emit(ev Event) {
	e.outbox = append(e.outbox, ev)
}

func (e *Engine) unlockAndFlush() {
	e.mu.Unlock()
	e.flush()
}

// flush delivers queued events in FIFO order. If another goroutine, or an
// outer frame of this one, is already flushing, it delivers them instead.
func (e *Engine) flush() {
	e.mu.Lock()
	if e.flushing {
		e.mu.Unlock()
		return
	}
	e.flushing = true
	for len(e.outbox) > 0 {
		ev := e.outbox[0]
		e.outbox = e.outbox[1:]
		e.mu.Unlock()
		e.bus.Publish(ev)
		e.mu.Lock()
	}
	e.flushing = false
	e.mu.Unlock()
}

func (e *Engine) nextTransitionLocked() uint64 {
	e.transition++
	return e.transition
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func clampVolume(v float64) float64 {
	return max(0, min(1, v))
}

func clampCrossfade(d time.Duration) time.Duration {
	return max(0, min(MaxCrossfade, d))
}

// slotLevelLocked is the level a fully faded-in slot sits at. Once the
// equalizer is on, user volume lives in its gain stage instead.
func (e *Engine) slotLevelLocked() float64 {
	if e.eq != nil {
		return 1
	}
	return e.volume
}

// Queries

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// IsPlaying reports whether audio is sounding.
func (e *Engine) IsPlaying() bool {
	return e.State().IsPlaying()
}

// CurrentTrack returns a copy of the current track, nil if none.
func (e *Engine) CurrentTrack() *Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	t := *e.current
	return &t
}

// Preloaded returns the track staged in the idle slot, nil if none.
func (e *Engine) Preloaded() *Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.preloaded == nil {
		return nil
	}
	t := *e.preloaded
	return &t
}

func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.positionLocked()
}

func (e *Engine) positionLocked() time.Duration {
	if e.state == StateIdle || e.state == StateLoading {
		return 0
	}
	return e.active.Position()
}

func (e *Engine) Duration() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.durationLocked()
}

func (e *Engine) durationLocked() time.Duration {
	if d := e.active.Duration(); d > 0 {
		return d
	}
	if e.current != nil {
		return e.current.Duration
	}
	return 0
}

func (e *Engine) Volume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.volume
}

func (e *Engine) Crossfade() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.crossfade
}

func (e *Engine) Mode() Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mode
}

// EQGains returns the band gains in dB; all zero before the equalizer is on.
func (e *Engine) EQGains() []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.eqGainsLocked()
}

func (e *Engine) eqGainsLocked() []float64 {
	if e.eq == nil {
		return make([]float64, player.BandCount)
	}
	return e.eq.Gains()
}

func (e *Engine) Mono() bool {
	return e.out.Mono()
}

// Status returns a snapshot of everything a display needs.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Status{
		State:          e.state,
		Position:       e.positionLocked(),
		Duration:       e.durationLocked(),
		Volume:         e.volume,
		Crossfade:      e.crossfade,
		Mode:           e.mode,
		SleepRemaining: e.sleepRemainingLocked(time.Now()),
		EQGains:        e.eqGainsLocked(),
	}
	if e.current != nil {
		t := *e.current
		s.Track = &t
	}
	return s
}

// Control surface

// Pause stops output, keeping the current track and position.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.pauseLocked()
}

func (e *Engine) pauseLocked() {
	if e.state == StatePaused && !e.endedSilently {
		return
	}
	e.haltLocked()
}

// haltLocked stops output unconditionally and reports the pause.
func (e *Engine) haltLocked() {
	e.cancelSkipLocked()
	e.endedSilently = false
	switch e.state {
	case StateTransitioning:
		e.finishFadeLocked()
		e.nextTransitionLocked()
	case StateLoading:
		// Abandon the pending load; Resume reloads the current track.
		e.nextTransitionLocked()
		stopTimer(e.watchdog)
		e.active.Unload()
	}
	e.active.Pause()
	if e.current == nil {
		e.state = StateIdle
		return
	}
	e.state = StatePaused
	e.emit(PauseEvent{Track: *e.current})
}

// Resume restarts output on the current track.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.resumeLocked()
}

func (e *Engine) resumeLocked() {
	if e.current == nil || e.state.IsPlaying() || e.state == StateLoading {
		return
	}
	if e.active.Locator() == "" {
		e.reloadLocked()
		return
	}
	if err := e.active.Play(); err != nil {
		if isBenign(err) {
			e.log.Debug().Err(err).Msg("resume refused")
			return
		}
		e.log.Warn().Err(err).Msg("resume failed, reloading")
		e.reloadLocked()
		return
	}
	e.state = StatePlaying
	e.endedSilently = false
	e.errCount = 0
	e.emit(PlayEvent{Track: *e.current})
}

// TogglePlay pauses when playing or loading and resumes otherwise.
func (e *Engine) TogglePlay() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	if e.state.IsPlaying() || e.state == StateLoading {
		e.pauseLocked()
		return
	}
	e.resumeLocked()
}

// Seek moves the active slot, clamped to [0, duration].
func (e *Engine) Seek(position time.Duration) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.seekLocked(position)
}

// SeekBy moves relative to the current position.
func (e *Engine) SeekBy(delta time.Duration) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.seekLocked(e.positionLocked() + delta)
}

func (e *Engine) seekLocked(position time.Duration) {
	if e.state == StateIdle || e.state == StateLoading {
		return
	}
	dur := e.durationLocked()
	position = max(0, position)
	if dur > 0 {
		position = min(position, dur)
	}
	if err := e.active.Seek(position); err != nil {
		e.log.Warn().Err(err).Dur("position", position).Msg("seek failed")
		return
	}
	e.emit(TimeUpdate{Position: position, Duration: dur})
}

// SetVolume sets the user volume, clamped to [0, 1].
func (e *Engine) SetVolume(level float64) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.volume = clampVolume(level)
	if e.eq != nil {
		e.eq.SetGain(e.volume)
	} else if e.state != StateTransitioning {
		// The crossfade ramp reads the new level on its next step.
		e.active.SetVolume(e.volume)
	}
	e.emit(VolumeChange{Volume: e.volume})
}

// SetCrossfade sets the crossfade duration, clamped to [0, MaxCrossfade].
// Zero selects gapless hand-off.
func (e *Engine) SetCrossfade(d time.Duration) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.crossfade = clampCrossfade(d)
	e.emit(CrossfadeChange{Duration: e.crossfade})
}

// SetEQGain sets one band in dB, clamped to ±12. The first call switches
// the shared equalizer chain on.
func (e *Engine) SetEQGain(band int, db float64) error {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return ErrClosed
	}
	eq, err := e.ensureEqualizerLocked()
	if err != nil {
		e.log.Warn().Err(err).Msg("equalizer unavailable")
		return err
	}
	db = max(-player.MaxBandGain, min(player.MaxBandGain, db))
	if err := eq.SetBandGain(band, db); err != nil {
		return err
	}
	e.emit(EQChange{Gains: eq.Gains()})
	return nil
}

// ensureEqualizerLocked switches the chain on and moves the user volume
// into its gain stage.
func (e *Engine) ensureEqualizerLocked() (player.Equalizer, error) {
	if e.eq != nil {
		return e.eq, nil
	}
	eq, err := e.out.Equalizer()
	if err != nil {
		return nil, err
	}
	e.eq = eq
	eq.SetGain(e.volume)
	if e.state != StateTransitioning {
		e.active.SetVolume(1)
	}
	return eq, nil
}

// SetMono toggles the mono downmix.
func (e *Engine) SetMono(enabled bool) {
	e.out.SetMono(enabled)
}

// SetDevicePolicy updates the reaction to output device changes.
func (e *Engine) SetDevicePolicy(pauseOnDisconnect, playOnConnect bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pauseOnDisconnect = pauseOnDisconnect
	e.playOnConnect = playOnConnect
}

// HandleDeviceChange pauses when an output device goes away and resumes
// when one appears, as the device policy allows.
func (e *Engine) HandleDeviceChange(connected bool) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	switch {
	case !connected && e.pauseOnDisconnect && (e.state.IsPlaying() || e.state == StateLoading):
		e.log.Info().Msg("output device removed, pausing")
		e.pauseLocked()
	case connected && e.playOnConnect && e.state == StatePaused:
		e.log.Info().Msg("output device connected, resuming")
		e.resumeLocked()
	}
}

// RequestNext asks whoever owns the queue to advance.
func (e *Engine) RequestNext() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.emit(NextRequest{})
}

// RequestPrev asks whoever owns the queue to go back.
func (e *Engine) RequestPrev() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.emit(PrevRequest{})
}

// Mode control

// SetShuffle sets shuffle, clearing the flags it excludes.
func (e *Engine) SetShuffle(enabled bool) Mode {
	return e.updateMode(func(m Mode) Mode { return m.WithShuffle(enabled) })
}

// SetRepeat sets the repeat mode, clearing the flags it excludes.
func (e *Engine) SetRepeat(r RepeatMode) Mode {
	return e.updateMode(func(m Mode) Mode { return m.WithRepeat(r) })
}

// ToggleRepeat advances the repeat cycle.
func (e *Engine) ToggleRepeat() Mode {
	return e.updateMode(Mode.NextRepeat)
}

// SetStopAfterCurrent sets the stop-after-current flag.
func (e *Engine) SetStopAfterCurrent(enabled bool) Mode {
	return e.updateMode(func(m Mode) Mode { return m.WithStopAfterCurrent(enabled) })
}

// ToggleStopAfterCurrent flips the stop-after-current flag.
func (e *Engine) ToggleStopAfterCurrent() Mode {
	return e.updateMode(func(m Mode) Mode { return m.WithStopAfterCurrent(!m.StopAfterCurrent) })
}

func (e *Engine) updateMode(fn func(Mode) Mode) Mode {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return e.mode
	}
	prev := e.mode
	e.mode = fn(prev)
	if prev.Shuffle != e.mode.Shuffle {
		e.emit(ShuffleChange{Enabled: e.mode.Shuffle})
	}
	if prev.Repeat != e.mode.Repeat || prev.StopAfterCurrent != e.mode.StopAfterCurrent {
		e.emit(RepeatChange{Mode: e.mode.Repeat, StopAfterCurrent: e.mode.StopAfterCurrent})
	}
	return e.mode
}
