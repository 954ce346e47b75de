package player

import (
	"math"

	"github.com/gopxl/beep/v2/effects"
)

// clampLevel bounds a volume level to [0, 1].
func clampLevel(level float64) float64 {
	if level < 0 {
		return 0
	}
	if level > 1 {
		return 1
	}
	return level
}

// levelToVolume converts a 0.0-1.0 level to beep's Volume value.
// beep uses a logarithmic scale with base 2, so the resulting amplitude
// factor equals the level itself.
// We map: 1.0 -> 0, 0.5 -> -1, 0.25 -> -2, 0 -> -10 (and Silent)
func levelToVolume(level float64) float64 {
	if level <= 0 {
		return -10
	}
	if level >= 1 {
		return 0
	}
	return math.Log2(level)
}

// applyLevel sets a volume effect to the given level. Caller holds the
// speaker lock.
func applyLevel(v *effects.Volume, level float64) {
	if v == nil {
		return
	}
	v.Volume = levelToVolume(level)
	v.Silent = level <= 0
}
