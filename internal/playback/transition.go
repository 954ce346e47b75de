package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/coflyn/flow/internal/player"
)

// Play makes track current and starts it after the settle delay. Any
// transition in flight is abandoned.
func (e *Engine) Play(track Track) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}
	e.playLocked(track)
}

func (e *Engine) playLocked(track Track) {
	e.cancelSkipLocked()
	if e.state.IsBusy() {
		e.log.Warn().
			Stringer("state", e.state).
			Str("track", track.ID).
			Msg("play requested mid-transition, resetting both slots")
		e.fading = nil
	}
	id := e.nextTransitionLocked()
	e.preloadSeq++
	e.deferredPreload, e.preloadDeferred = nil, false
	e.endedSilently = false

	e.active.Unload()
	e.idle.Unload()
	e.preloaded = nil
	e.current = &track
	e.state = StateLoading
	e.emit(TrackChange{Track: track})

	stopTimer(e.watchdog)
	e.watchdog = time.AfterFunc(e.cfg.Watchdog, func() { e.loadTimedOut(id) })
	time.AfterFunc(e.cfg.SettleDelay, func() { e.startLoad(id, track) })
}

// reloadLocked restarts the current track on the active slot. The staged
// next track stays in the idle slot.
func (e *Engine) reloadLocked() {
	e.cancelSkipLocked()
	id := e.nextTransitionLocked()
	e.endedSilently = false
	track := *e.current

	e.active.Unload()
	e.state = StateLoading

	stopTimer(e.watchdog)
	e.watchdog = time.AfterFunc(e.cfg.Watchdog, func() { e.loadTimedOut(id) })
	time.AfterFunc(e.cfg.SettleDelay, func() { e.startLoad(id, track) })
}

// startLoad resolves, loads and starts track if id is still current.
func (e *Engine) startLoad(id uint64, track Track) {
	if !e.isCurrent(id) {
		return
	}

	resolved, err := e.resolve(e.ctx, track)

	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed || id != e.transition {
		return
	}
	if err != nil {
		e.playFailedLocked(err)
		return
	}
	e.current = &resolved

	if err := e.active.Load(resolved.SourceURI); err != nil {
		e.playFailedLocked(err)
		return
	}
	e.active.SetVolume(e.slotLevelLocked())
	if err := e.active.Play(); err != nil {
		e.playFailedLocked(err)
		return
	}

	stopTimer(e.watchdog)
	e.state = StatePlaying
	e.errCount = 0
	e.log.Debug().Str("track", resolved.ID).Msg("playing")
	e.emit(PlayEvent{Track: resolved})
	if d := e.active.Duration(); d > 0 {
		e.emit(Loaded{Track: resolved, Duration: d})
	}
}

func (e *Engine) isCurrent(id uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return !e.closed && id == e.transition
}

func (e *Engine) resolve(ctx context.Context, t Track) (Track, error) {
	if e.resolver != nil {
		resolved, err := e.resolver.Resolve(ctx, t)
		if err != nil {
			return t, errors.Wrapf(err, "resolve %s", t.ID)
		}
		t = resolved
	}
	if t.SourceURI == "" {
		return t, errors.Wrapf(ErrNoSource, "track %s", t.ID)
	}
	return t, nil
}

// loadTimedOut releases a load that never completed.
func (e *Engine) loadTimedOut(id uint64) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed || id != e.transition || e.state != StateLoading {
		return
	}
	e.log.Warn().Dur("after", e.cfg.Watchdog).Msg("load watchdog fired, releasing")
	e.state = StatePaused
	if e.current != nil {
		e.emit(PauseEvent{Track: *e.current})
	}
}

// playFailedLocked handles a failure on the load-and-start path.
func (e *Engine) playFailedLocked(err error) {
	stopTimer(e.watchdog)
	e.active.Unload()
	e.state = StatePaused
	if isBenign(err) {
		e.log.Debug().Err(err).Msg("start refused")
		if e.current != nil {
			e.emit(PauseEvent{Track: *e.current})
		}
		return
	}
	e.recordFailureLocked(err)
}

// recordFailureLocked counts a failure. Under the threshold it reports the
// error and schedules a skip; at the threshold it stops playback instead.
func (e *Engine) recordFailureLocked(err error) {
	e.errCount++
	var track Track
	if e.current != nil {
		track = *e.current
	}
	e.log.Error().
		Err(err).
		Str("track", track.ID).
		Int("consecutive", e.errCount).
		Msg("playback failure")

	if e.errCount >= e.cfg.MaxErrors {
		e.errCount = 0
		e.haltLocked()
		e.emit(Notice{Message: terminalNotice, Terminal: true})
		return
	}
	e.state = StatePaused
	e.emit(ErrorEvent{Track: track, Err: err})
	e.scheduleSkipLocked()
}

func (e *Engine) scheduleSkipLocked() {
	e.cancelSkipLocked()
	id := e.transition
	e.skipTimer = time.AfterFunc(e.cfg.SkipDebounce, func() {
		e.mu.Lock()
		defer e.unlockAndFlush()
		if e.closed || id != e.transition {
			return
		}
		e.skipTimer = nil
		e.emit(NextRequest{})
	})
}

func (e *Engine) cancelSkipLocked() {
	stopTimer(e.skipTimer)
	e.skipTimer = nil
}

// handleSlotEvent is the Output listener.
func (e *Engine) handleSlotEvent(ev player.Event) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}

	if ev.Slot != e.active {
		if ev.Slot == e.idle && ev.Kind == player.EventError && ev.Generation == e.idle.Generation() {
			e.log.Debug().Err(ev.Err).Msg("preloaded source failed, dropping preload")
			e.preloaded = nil
			e.idle.Unload()
		}
		return
	}
	if ev.Generation != e.active.Generation() {
		return
	}

	switch ev.Kind {
	case player.EventEnded:
		e.trackEndedLocked()
	case player.EventError:
		if e.state == StateLoading || isBenign(ev.Err) {
			return
		}
		if e.state == StateTransitioning {
			e.finishFadeLocked()
			e.nextTransitionLocked()
		}
		e.active.Unload()
		e.recordFailureLocked(ev.Err)
	}
}

func (e *Engine) trackEndedLocked() {
	if e.current == nil {
		return
	}
	e.cancelSkipLocked()
	if e.state.IsBusy() {
		e.log.Warn().Stringer("state", e.state).Msg("track ended mid-transition, forcing reset")
		e.finishFadeLocked()
		e.nextTransitionLocked()
	}

	if e.mode.Repeat == RepeatOne {
		if err := e.active.Seek(0); err == nil {
			if err := e.active.Play(); err == nil {
				e.state = StatePlaying
				e.emit(TimeUpdate{Position: 0, Duration: e.durationLocked()})
				return
			}
		}
		e.log.Warn().Msg("repeat-one restart failed, reloading")
		e.playLocked(*e.current)
		return
	}

	e.state = StatePaused
	e.endedSilently = true
	e.emit(Ended{Track: *e.current})
}

// monitor drives time updates and the crossfade trigger.
func (e *Engine) monitor() {
	defer e.wg.Done()
	ticker := time.NewTicker(e.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed || !e.state.IsPlaying() {
		return
	}
	pos := e.active.Position()
	dur := e.durationLocked()
	e.emit(TimeUpdate{Position: pos, Duration: dur})

	if e.state == StatePlaying && e.shouldTransitionLocked(pos, dur) {
		e.startTransitionLocked()
	}
}

// transitionLeadLocked is how early before the end the hand-off starts. A
// gapless hand-off still needs one tick of slack to be caught.
func (e *Engine) transitionLeadLocked() time.Duration {
	return max(minTransitionLead, e.cfg.TickInterval, e.crossfade)
}

func (e *Engine) shouldTransitionLocked(pos, dur time.Duration) bool {
	if e.preloaded == nil || e.mode.Repeat == RepeatOne || e.mode.StopAfterCurrent {
		return false
	}
	if dur <= minFadeTrackLength || pos <= minFadePosition {
		return false
	}
	return dur-pos <= e.transitionLeadLocked()
}

// startTransitionLocked swaps slot roles and starts the preloaded track
// under the outgoing one.
func (e *Engine) startTransitionLocked() {
	next := *e.preloaded
	id := e.nextTransitionLocked()
	e.preloadSeq++
	e.cancelSkipLocked()

	out, in := e.active, e.idle
	e.active, e.idle = in, out
	e.fading = out
	e.current = &next
	e.preloaded = nil
	e.state = StateTransitioning

	e.log.Debug().
		Str("track", next.ID).
		Dur("crossfade", e.crossfade).
		Msg("transition started")

	in.SetVolume(0)
	if err := in.Seek(0); err != nil {
		e.log.Debug().Err(err).Msg("rewind of preloaded source failed")
	}
	e.emit(Transition{Track: next})
	e.emit(TrackChange{Track: next})

	if err := in.Play(); err != nil {
		e.log.Error().Err(err).Msg("transition start failed, reloading")
		e.playLocked(next)
		return
	}
	e.errCount = 0
	e.emit(PlayEvent{Track: next})

	if e.crossfade <= 0 {
		e.finishFadeLocked()
		return
	}

	ramp := Ramp{Start: time.Now(), Duration: e.crossfade}
	e.wg.Add(1)
	go e.runCrossfade(id, ramp, out, in)
}

func (e *Engine) runCrossfade(id uint64, ramp Ramp, out, in player.Slot) {
	defer e.wg.Done()
	ticker := time.NewTicker(ramp.Interval())
	defer ticker.Stop()

	for {
		select {
		case <-e.done:
			return
		case now := <-ticker.C:
			if !e.stepCrossfade(id, ramp, out, in, now) {
				return
			}
		}
	}
}

// stepCrossfade applies one ramp sample. It returns false once the ramp is
// finished or superseded.
func (e *Engine) stepCrossfade(id uint64, ramp Ramp, out, in player.Slot, now time.Time) bool {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed || id != e.transition {
		return false
	}
	outLevel, inLevel := crossfadeLevels(ramp.Progress(now), e.slotLevelLocked())
	out.SetVolume(outLevel)
	in.SetVolume(inLevel)
	if !ramp.Done(now) {
		return true
	}
	e.finishFadeLocked()
	e.log.Debug().Msg("transition finished")
	return false
}

// finishFadeLocked completes a hand-off at once: the outgoing slot is
// released and the active one brought to full level.
func (e *Engine) finishFadeLocked() {
	if e.fading != nil {
		e.fading.Unload()
		e.fading.SetVolume(0)
		e.fading = nil
	}
	e.active.SetVolume(e.slotLevelLocked())
	if e.state == StateTransitioning {
		e.state = StatePlaying
	}
	e.applyDeferredPreloadLocked()
}

// PreloadNext stages track in the idle slot so the next hand-off needs no
// load. Nil clears the stage. While a crossfade holds the idle slot the
// request is kept and applied once the fade completes.
func (e *Engine) PreloadNext(track *Track) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.preloadSeq++
	seq := e.preloadSeq
	if e.state == StateTransitioning {
		e.deferredPreload = track
		e.preloadDeferred = true
		e.mu.Unlock()
		e.log.Debug().Msg("preload deferred until transition ends")
		return
	}
	e.mu.Unlock()
	e.preload(seq, track)
}

func (e *Engine) preload(seq uint64, track *Track) {
	e.mu.Lock()
	if e.closed || seq != e.preloadSeq {
		e.mu.Unlock()
		return
	}
	if track == nil {
		e.clearPreloadLocked()
		e.mu.Unlock()
		return
	}
	if e.preloaded != nil && e.preloaded.ID == track.ID && e.idle.Locator() != "" {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	resolved, err := e.resolve(e.ctx, *track)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || seq != e.preloadSeq || e.state == StateTransitioning {
		return
	}
	if err != nil {
		e.log.Debug().Err(err).Str("track", track.ID).Msg("preload skipped")
		e.clearPreloadLocked()
		return
	}
	if err := e.idle.Load(resolved.SourceURI); err != nil {
		e.log.Warn().Err(err).Str("track", resolved.ID).Msg("preload failed")
		e.clearPreloadLocked()
		return
	}
	e.idle.SetVolume(0)
	e.preloaded = &resolved
}

// applyDeferredPreloadLocked starts the preload requested during a fade.
func (e *Engine) applyDeferredPreloadLocked() {
	if !e.preloadDeferred {
		return
	}
	track, seq := e.deferredPreload, e.preloadSeq
	e.deferredPreload, e.preloadDeferred = nil, false
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.preload(seq, track)
	}()
}

func (e *Engine) clearPreloadLocked() {
	e.preloaded = nil
	e.idle.Unload()
}
