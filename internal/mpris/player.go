package mpris

import (
	"time"

	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/queue"
)

// Player is the engine surface the adapter drives.
type Player interface {
	State() playback.State
	CurrentTrack() *playback.Track
	Position() time.Duration
	Volume() float64
	SetVolume(level float64)
	Mode() playback.Mode
	SetShuffle(enabled bool) playback.Mode
	SetRepeat(r playback.RepeatMode) playback.Mode
	Pause()
	Resume()
	TogglePlay()
	Seek(position time.Duration)
	SeekBy(delta time.Duration)
	RequestNext()
	RequestPrev()
}

// Queue is the queue surface the adapter reads.
type Queue interface {
	Len() int
	CurrentIndex() int
	PlayCurrent()
}

var (
	_ Player = (*playback.Engine)(nil)
	_ Queue  = (*queue.Manager)(nil)
)
