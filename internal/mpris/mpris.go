//go:build linux

package mpris

import (
	"fmt"
	"hash/fnv"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/rs/zerolog"

	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/tracksource"
)

// Adapter connects the engine and queue to MPRIS over D-Bus.
type Adapter struct {
	server *server.Server
	log    zerolog.Logger
}

// New creates and starts a new MPRIS adapter.
func New(player Player, queue Queue, log zerolog.Logger) (*Adapter, error) {
	a := &Adapter{log: log}
	a.server = server.NewServer("flow", &rootAdapter{}, &playerAdapter{player: player, queue: queue})

	// Start the server in background
	go func() {
		if err := a.server.Listen(); err != nil {
			a.log.Warn().Err(err).Msg("mpris server stopped")
		}
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil // Not supported
}

func (r *rootAdapter) Quit() error {
	return nil // Not supported - app manages its own lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil // Track list interface not implemented
}

func (r *rootAdapter) Identity() (string, error) {
	return "Flow", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/flac", "audio/ogg", "audio/wav"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and optional interfaces.
type playerAdapter struct {
	player Player
	queue  Queue
}

// Next and Previous go through the engine's request events so the queue
// sees media keys the same way as any other skip.
func (p *playerAdapter) Next() error {
	p.player.RequestNext()
	return nil
}

func (p *playerAdapter) Previous() error {
	p.player.RequestPrev()
	return nil
}

func (p *playerAdapter) Pause() error {
	p.player.Pause()
	return nil
}

func (p *playerAdapter) PlayPause() error {
	if p.player.CurrentTrack() == nil {
		p.queue.PlayCurrent()
		return nil
	}
	p.player.TogglePlay()
	return nil
}

func (p *playerAdapter) Stop() error {
	p.player.Pause()
	p.player.Seek(0)
	return nil
}

func (p *playerAdapter) Play() error {
	if p.player.CurrentTrack() == nil {
		p.queue.PlayCurrent()
		return nil
	}
	p.player.Resume()
	return nil
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	p.player.SeekBy(time.Duration(offset) * time.Microsecond)
	return nil
}

func (p *playerAdapter) SetPosition(trackID string, position types.Microseconds) error {
	// Stale requests for a previous track are ignored.
	if t := p.player.CurrentTrack(); t == nil || string(formatTrackID(t.ID)) != trackID {
		return nil
	}
	p.player.Seek(time.Duration(position) * time.Microsecond)
	return nil
}

//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(_ string) error {
	return nil // Not supported
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.player.State() {
	case playback.StatePlaying, playback.StateTransitioning:
		return types.PlaybackStatusPlaying, nil
	case playback.StatePaused, playback.StateLoading:
		return types.PlaybackStatusPaused, nil
	case playback.StateIdle:
		return types.PlaybackStatusStopped, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil // Not supported
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	track := p.player.CurrentTrack()
	if track == nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: formatTrackID(track.ID),
		Length:  types.Microseconds(track.Duration.Microseconds()),
		Title:   track.DisplayTitle(),
		Album:   track.Album,
		ArtUrl:  tracksource.CoverURL(track.CoverURI),
	}
	if track.Artist != "" {
		meta.Artist = []string{track.Artist}
	}
	return meta, nil
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.player.Volume(), nil
}

func (p *playerAdapter) SetVolume(level float64) error {
	p.player.SetVolume(level)
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	return p.player.Position().Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	if p.player.Mode().Repeat == playback.RepeatAll {
		return p.queue.Len() > 0, nil
	}
	return p.queue.CurrentIndex() < p.queue.Len()-1, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	// Previous always works: it restarts the current track at worst.
	return p.queue.Len() > 0, nil
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.queue.Len() > 0, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return true, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	return p.player.CurrentTrack() != nil, nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	switch p.player.Mode().Repeat {
	case playback.RepeatOne:
		return types.LoopStatusTrack, nil
	case playback.RepeatAll:
		return types.LoopStatusPlaylist, nil
	case playback.RepeatOff:
		return types.LoopStatusNone, nil
	}
	return types.LoopStatusNone, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusNone:
		p.player.SetRepeat(playback.RepeatOff)
	case types.LoopStatusTrack:
		p.player.SetRepeat(playback.RepeatOne)
	case types.LoopStatusPlaylist:
		p.player.SetRepeat(playback.RepeatAll)
	}
	return nil
}

// Shuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) Shuffle() (bool, error) {
	return p.player.Mode().Shuffle, nil
}

// SetShuffle implements OrgMprisMediaPlayer2PlayerAdapterShuffle.
func (p *playerAdapter) SetShuffle(shuffle bool) error {
	p.player.SetShuffle(shuffle)
	return nil
}

func formatTrackID(id string) dbus.ObjectPath {
	h := fnv.New64a()
	h.Write([]byte(id))
	return dbus.ObjectPath(fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64()))
}
