package playback

import "time"

// EventType identifies an engine or queue event.
type EventType int

const (
	EventTrackChange EventType = iota + 1
	EventPlay
	EventPause
	EventTimeUpdate
	EventLoaded
	EventEnded
	EventError
	EventTransition
	EventShuffleChange
	EventRepeatChange
	EventSleepTimer
	EventVolumeChange
	EventCrossfadeChange
	EventEQChange
	EventNext
	EventPrev
	EventNotice
	EventQueueChange
	EventQueueEnd
)

var eventNames = map[EventType]string{
	EventTrackChange:     "trackchange",
	EventPlay:            "play",
	EventPause:           "pause",
	EventTimeUpdate:      "timeupdate",
	EventLoaded:          "loaded",
	EventEnded:           "ended",
	EventError:           "error",
	EventTransition:      "transition",
	EventShuffleChange:   "shufflechange",
	EventRepeatChange:    "repeatchange",
	EventSleepTimer:      "sleeptimer",
	EventVolumeChange:    "volumechange",
	EventCrossfadeChange: "crossfadechange",
	EventEQChange:        "eqchange",
	EventNext:            "next",
	EventPrev:            "prev",
	EventNotice:          "notice",
	EventQueueChange:     "queuechange",
	EventQueueEnd:        "queueend",
}

// String returns the wire name of the event type.
func (t EventType) String() string {
	if name, ok := eventNames[t]; ok {
		return name
	}
	return "unknown"
}

// Event is anything published on the Bus.
type Event interface {
	Type() EventType
}

// TrackChange is emitted as soon as a new track is requested, before it
// has loaded, and again when a crossfade promotes the preloaded track.
type TrackChange struct {
	Track Track
}

// PlayEvent is emitted when output actually starts or resumes.
type PlayEvent struct {
	Track Track
}

// PauseEvent is emitted when output stops without a track change.
type PauseEvent struct {
	Track Track
}

// TimeUpdate is emitted on every monitor tick while playing, and after seeks.
type TimeUpdate struct {
	Position time.Duration
	Duration time.Duration
}

// Loaded is emitted once the active source reports its duration.
type Loaded struct {
	Track    Track
	Duration time.Duration
}

// Ended is emitted when the active source finishes with no automatic
// transition having taken over.
type Ended struct {
	Track Track
}

// ErrorEvent is emitted for non-benign failures that do not trip the
// circuit breaker. A skip is scheduled after each one.
type ErrorEvent struct {
	Track Track
	Err   error
}

// Transition is emitted when a crossfade or gapless hand-off promotes the
// preloaded track to active.
type Transition struct {
	Track Track
}

// ShuffleChange is emitted when the shuffle flag flips.
type ShuffleChange struct {
	Enabled bool
}

// RepeatChange is emitted when repeat or stop-after-current changes.
type RepeatChange struct {
	Mode             RepeatMode
	StopAfterCurrent bool
}

// SleepTimerTick reports the remaining sleep time. Zero means the timer is
// no longer running.
type SleepTimerTick struct {
	Remaining time.Duration
}

// VolumeChange is emitted when the user volume changes.
type VolumeChange struct {
	Volume float64
}

// CrossfadeChange is emitted when the crossfade duration changes.
type CrossfadeChange struct {
	Duration time.Duration
}

// EQChange is emitted when any equalizer band gain changes.
type EQChange struct {
	Gains []float64
}

// NextRequest asks the queue to advance. The engine emits it after a
// failure's skip debounce and for media-key requests.
type NextRequest struct{}

// PrevRequest asks the queue to go back.
type PrevRequest struct{}

// Notice carries a user-facing message. Terminal notices accompany an
// automatic stop.
type Notice struct {
	Message  string
	Terminal bool
}

// QueueChange is emitted whenever the queue order or position changes.
type QueueChange struct {
	Tracks []Track
	Index  int
}

// QueueEnd is emitted when the queue runs out with repeat off.
type QueueEnd struct{}

func (TrackChange) Type() EventType     { return EventTrackChange }
func (PlayEvent) Type() EventType       { return EventPlay }
func (PauseEvent) Type() EventType      { return EventPause }
func (TimeUpdate) Type() EventType      { return EventTimeUpdate }
func (Loaded) Type() EventType          { return EventLoaded }
func (Ended) Type() EventType           { return EventEnded }
func (ErrorEvent) Type() EventType      { return EventError }
func (Transition) Type() EventType      { return EventTransition }
func (ShuffleChange) Type() EventType   { return EventShuffleChange }
func (RepeatChange) Type() EventType    { return EventRepeatChange }
func (SleepTimerTick) Type() EventType  { return EventSleepTimer }
func (VolumeChange) Type() EventType    { return EventVolumeChange }
func (CrossfadeChange) Type() EventType { return EventCrossfadeChange }
func (EQChange) Type() EventType        { return EventEQChange }
func (NextRequest) Type() EventType     { return EventNext }
func (PrevRequest) Type() EventType     { return EventPrev }
func (Notice) Type() EventType          { return EventNotice }
func (QueueChange) Type() EventType     { return EventQueueChange }
func (QueueEnd) Type() EventType        { return EventQueueEnd }
