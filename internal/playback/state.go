// internal/playback/state.go
package playback

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// State is the engine's playback state.
//
//	Idle ──play──▶ Loading ──loaded──▶ Playing ◀──resume── Paused
//	                  ▲                  │  ▲                 ▲
//	                  └──────play────────┘  │ ramp done       │ pause, fatal error,
//	                                        │                 │ sleep timer
//	                                   Transitioning ─────────┘
//
// Playing enters Transitioning when the crossfade window opens on a
// preloaded next track.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateTransitioning
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateTransitioning:
		return "Transitioning"
	default:
		return "Unknown"
	}
}

// IsPlaying returns true while audio is sounding.
func (s State) IsPlaying() bool {
	return s == StatePlaying || s == StateTransitioning
}

// IsBusy returns true while a load or crossfade is in flight.
func (s State) IsBusy() bool {
	return s == StateLoading || s == StateTransitioning
}

// RepeatMode defines the repeat behavior.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatAll
	RepeatOne
)

// String returns the repeat mode name.
func (m RepeatMode) String() string {
	switch m {
	case RepeatOff:
		return "Off"
	case RepeatAll:
		return "All"
	case RepeatOne:
		return "One"
	default:
		return "Unknown"
	}
}

// ParseRepeatMode accepts the names returned by String, case-insensitively.
func ParseRepeatMode(s string) (RepeatMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "off", "":
		return RepeatOff, nil
	case "all":
		return RepeatAll, nil
	case "one":
		return RepeatOne, nil
	default:
		return RepeatOff, errors.Newf("unknown repeat mode %q", s)
	}
}

// Mode groups the mutually constrained playback flags. Shuffle excludes
// any repeat; StopAfterCurrent excludes both.
type Mode struct {
	Repeat           RepeatMode
	Shuffle          bool
	StopAfterCurrent bool
}

// WithShuffle returns m with shuffle set. Turning shuffle on clears repeat
// and stop-after-current.
func (m Mode) WithShuffle(enabled bool) Mode {
	m.Shuffle = enabled
	if enabled {
		m.Repeat = RepeatOff
		m.StopAfterCurrent = false
	}
	return m
}

// WithRepeat returns m with repeat set. Any repeat other than Off clears
// shuffle and stop-after-current.
func (m Mode) WithRepeat(r RepeatMode) Mode {
	m.Repeat = r
	if r != RepeatOff {
		m.Shuffle = false
		m.StopAfterCurrent = false
	}
	return m
}

// WithStopAfterCurrent returns m with the flag set. Setting it clears
// repeat and shuffle.
func (m Mode) WithStopAfterCurrent(enabled bool) Mode {
	m.StopAfterCurrent = enabled
	if enabled {
		m.Repeat = RepeatOff
		m.Shuffle = false
	}
	return m
}

// NextRepeat advances the repeat cycle:
// off → all → one → off with stop-after-current → off.
func (m Mode) NextRepeat() Mode {
	switch {
	case m.StopAfterCurrent:
		return m.WithStopAfterCurrent(false)
	case m.Repeat == RepeatOff:
		return m.WithRepeat(RepeatAll)
	case m.Repeat == RepeatAll:
		return m.WithRepeat(RepeatOne)
	default:
		return m.WithRepeat(RepeatOff).WithStopAfterCurrent(true)
	}
}
