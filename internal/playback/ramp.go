package playback

import "time"

// rampSteps is the nominal number of volume updates per crossfade.
const rampSteps = 40

// Ramp is a linear transfer over a fixed wall-clock window. It is sampled
// rather than stepped, so a late tick lands on the correct level.
type Ramp struct {
	Start    time.Time
	Duration time.Duration
}

// Progress returns how far through the ramp now is, in [0, 1].
func (r Ramp) Progress(now time.Time) float64 {
	if r.Duration <= 0 {
		return 1
	}
	p := float64(now.Sub(r.Start)) / float64(r.Duration)
	return max(0, min(1, p))
}

// Done reports whether the ramp has reached its end.
func (r Ramp) Done(now time.Time) bool {
	return r.Progress(now) >= 1
}

// Interval is the tick period that yields rampSteps updates.
func (r Ramp) Interval() time.Duration {
	return max(time.Millisecond, r.Duration/rampSteps)
}

// crossfadeLevels splits level between the outgoing and incoming slots.
// The two always sum to level.
func crossfadeLevels(progress, level float64) (out, in float64) {
	progress = max(0, min(1, progress))
	in = level * progress
	return level - in, in
}
