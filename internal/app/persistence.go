package app

import (
	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/state"
)

// subscribePersistence saves the queue and the settings whenever the
// engine or the queue reports a change to them. The store debounces.
func (a *App) subscribePersistence() {
	a.subs = append(a.subs,
		a.bus.Subscribe(func(playback.Event) { a.saveQueue() },
			playback.EventQueueChange, playback.EventShuffleChange, playback.EventRepeatChange),
		a.bus.Subscribe(func(playback.Event) { a.saveSettings() },
			playback.EventVolumeChange, playback.EventCrossfadeChange, playback.EventEQChange),
	)
}

// saveQueue persists the current queue state.
func (a *App) saveQueue() {
	snap := a.queue.Snapshot()
	if len(snap.Tracks) == 0 {
		return
	}
	mode := a.engine.Mode()
	a.state.SaveQueue(state.QueueState{
		CurrentIndex:     snap.Index,
		Repeat:           mode.Repeat,
		Shuffle:          mode.Shuffle,
		StopAfterCurrent: mode.StopAfterCurrent,
		Tracks:           snap.Tracks,
		Original:         snap.Original,
	})
}

// saveSettings persists the values the user changes while listening.
func (a *App) saveSettings() {
	a.state.SaveSettings(state.Settings{
		Volume:    a.engine.Volume(),
		Crossfade: a.engine.Crossfade(),
		EQGains:   a.engine.EQGains(),
		Mono:      a.engine.Mono(),
	})
}
