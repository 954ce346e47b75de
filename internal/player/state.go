// internal/player/state.go
package player

// State is the lifecycle of a single slot.
//
//	┌──────────┐      load       ┌──────────┐
//	│  Stopped │ ───────────────▶│  Ready   │
//	└──────────┘                 └──────────┘
//	     ▲                            │ play
//	     │ unload                     ▼
//	     │                       ┌──────────┐   pause   ┌──────────┐
//	     └───────────────────────│  Playing │ ─────────▶│  Paused  │
//	                             └──────────┘ ◀─────────└──────────┘
//	                                               play
//
// Load from any state replaces the source and lands in Ready. Unload from
// any state lands in Stopped.
type State int

const (
	Stopped State = iota
	Ready
	Playing
	Paused
)

// String returns the state name for debugging.
func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Ready:
		return "Ready"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

// HasSource returns true if a source is loaded.
func (s State) HasSource() bool {
	return s != Stopped
}

// CanPause returns true if the state allows pausing.
func (s State) CanPause() bool {
	return s == Playing
}

// CanPlay returns true if output can be started from this state.
func (s State) CanPlay() bool {
	return s == Ready || s == Paused
}
