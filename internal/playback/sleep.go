package playback

import "time"

// sleepTickInterval is how often the sleep timer reports remaining time.
const sleepTickInterval = time.Second

const sleepNotice = "Sleep timer finished"

// sleepTimer is a running countdown. stop is closed to cancel it.
type sleepTimer struct {
	deadline time.Time
	stop     chan struct{}
}

// StartSleepTimer pauses playback after d, replacing any running timer.
// A remaining-time event is emitted immediately and then every second.
func (e *Engine) StartSleepTimer(d time.Duration) {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed {
		return
	}

	e.stopSleepLocked()
	if d <= 0 {
		e.emit(SleepTimerTick{})
		return
	}

	t := &sleepTimer{deadline: time.Now().Add(d), stop: make(chan struct{})}
	e.sleep = t
	e.emit(SleepTimerTick{Remaining: d})
	e.log.Info().Dur("duration", d).Msg("sleep timer started")

	e.wg.Add(1)
	go e.runSleepTimer(t)
}

// StopSleepTimer cancels a running timer without pausing. A zero
// remaining-time event is emitted only if a timer was running.
func (e *Engine) StopSleepTimer() {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed || e.sleep == nil {
		return
	}
	e.stopSleepLocked()
	e.emit(SleepTimerTick{})
	e.log.Info().Msg("sleep timer canceled")
}

// SleepRemaining returns the time left on the sleep timer, zero if none.
func (e *Engine) SleepRemaining() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sleepRemainingLocked(time.Now())
}

func (e *Engine) sleepRemainingLocked(now time.Time) time.Duration {
	if e.sleep == nil {
		return 0
	}
	return max(0, e.sleep.deadline.Sub(now))
}

func (e *Engine) stopSleepLocked() {
	if e.sleep != nil {
		close(e.sleep.stop)
		e.sleep = nil
	}
}

func (e *Engine) runSleepTimer(t *sleepTimer) {
	defer e.wg.Done()
	ticker := time.NewTicker(sleepTickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stop:
			return
		case <-e.done:
			return
		case now := <-ticker.C:
			if !e.sleepTick(t, now) {
				return
			}
		}
	}
}

// sleepTick reports remaining time and fires the pause at expiry. It
// returns false once the timer is finished or replaced.
func (e *Engine) sleepTick(t *sleepTimer, now time.Time) bool {
	e.mu.Lock()
	defer e.unlockAndFlush()
	if e.closed || e.sleep != t {
		return false
	}

	remaining := e.sleepRemainingLocked(now)
	e.emit(SleepTimerTick{Remaining: remaining})
	if remaining > 0 {
		return true
	}

	e.sleep = nil
	e.log.Info().Msg("sleep timer expired, pausing")
	e.pauseLocked()
	e.emit(Notice{Message: sleepNotice})
	return false
}
