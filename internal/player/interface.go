// internal/player/interface.go
package player

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Equalizer band centre frequencies in Hz.
var BandFrequencies = [BandCount]float64{60, 230, 910, 3600, 14000}

const (
	// BandCount is the number of peaking filters in the equalizer.
	BandCount = 5
	// MaxBandGain bounds every band gain in dB, both directions.
	MaxBandGain = 12.0
)

var (
	// ErrCanceled reports a load or start that was superseded before it
	// completed. It is benign and never counts as a failure.
	ErrCanceled = errors.New("player: operation canceled")
	// ErrNotAllowed reports that the host refused to start output.
	ErrNotAllowed = errors.New("player: playback not allowed")
	// ErrNoSource is returned by slot operations that need a loaded source.
	ErrNoSource = errors.New("player: no source loaded")
	// ErrUnsupportedFormat is returned when no decoder matches a locator.
	ErrUnsupportedFormat = errors.New("player: unsupported format")
	// ErrInvalidBand is returned for a band index outside [0, BandCount).
	ErrInvalidBand = errors.New("player: invalid equalizer band")
	// ErrNoAudio is returned when the build has no audio output backend.
	ErrNoAudio = errors.New("player: audio output unavailable")
)

// EventKind distinguishes asynchronous slot notifications.
type EventKind int

const (
	EventEnded EventKind = iota + 1
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is reported by a slot when its source ends or fails. Generation is
// the slot generation that produced it so late notifications from a replaced
// source can be told apart.
type Event struct {
	Slot       Slot
	Generation uint64
	Kind       EventKind
	Err        error
}

// Listener receives slot events. It is never invoked synchronously from a
// Slot or Output method, so it may call back into them.
type Listener func(Event)

// Slot is one independent decode and output path.
type Slot interface {
	Name() string
	// Load replaces the source and leaves it paused at the start.
	Load(locator string) error
	Play() error
	Pause()
	// Unload stops output and releases the source.
	Unload()
	Seek(position time.Duration) error
	SetVolume(level float64)
	Volume() float64
	Position() time.Duration
	Duration() time.Duration
	Locator() string
	// Generation increases on every Load and Unload.
	Generation() uint64
	State() State
}

// Equalizer is the shared processing chain both slots feed once it has been
// switched on. Gain is the post-filter volume stage.
type Equalizer interface {
	SetBandGain(band int, db float64) error
	Gains() []float64
	SetGain(level float64)
	Gain() float64
}

// Output owns the two slots and the shared chain behind them.
type Output interface {
	Slots() (Slot, Slot)
	SetListener(fn Listener)
	// Equalizer switches the shared chain on the first time it is called.
	Equalizer() (Equalizer, error)
	SetMono(enabled bool)
	Mono() bool
	Close() error
}
