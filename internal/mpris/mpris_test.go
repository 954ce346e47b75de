//go:build linux

package mpris

import (
	"testing"
	"time"

	"github.com/quarckster/go-mpris-server/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coflyn/flow/internal/playback"
)

type fakePlayer struct {
	state    playback.State
	track    *playback.Track
	position time.Duration
	volume   float64
	mode     playback.Mode
	calls    []string
	seeks    []time.Duration
}

func (f *fakePlayer) State() playback.State         { return f.state }
func (f *fakePlayer) CurrentTrack() *playback.Track { return f.track }
func (f *fakePlayer) Position() time.Duration       { return f.position }
func (f *fakePlayer) Volume() float64               { return f.volume }
func (f *fakePlayer) SetVolume(level float64)       { f.volume = level }
func (f *fakePlayer) Mode() playback.Mode           { return f.mode }
func (f *fakePlayer) SetShuffle(enabled bool) playback.Mode {
	f.mode = f.mode.WithShuffle(enabled)
	return f.mode
}

func (f *fakePlayer) SetRepeat(r playback.RepeatMode) playback.Mode {
	f.mode = f.mode.WithRepeat(r)
	return f.mode
}
func (f *fakePlayer) Pause()                 { f.calls = append(f.calls, "pause") }
func (f *fakePlayer) Resume()                { f.calls = append(f.calls, "resume") }
func (f *fakePlayer) TogglePlay()            { f.calls = append(f.calls, "toggle") }
func (f *fakePlayer) Seek(p time.Duration)   { f.seeks = append(f.seeks, p) }
func (f *fakePlayer) SeekBy(d time.Duration) { f.seeks = append(f.seeks, f.position+d) }
func (f *fakePlayer) RequestNext()           { f.calls = append(f.calls, "next") }
func (f *fakePlayer) RequestPrev()           { f.calls = append(f.calls, "prev") }

type fakeQueue struct {
	n, index int
	plays    int
}

func (q *fakeQueue) Len() int          { return q.n }
func (q *fakeQueue) CurrentIndex() int { return q.index }
func (q *fakeQueue) PlayCurrent()      { q.plays++ }

func newAdapter() (*playerAdapter, *fakePlayer, *fakeQueue) {
	p := &fakePlayer{volume: 1}
	q := &fakeQueue{}
	return &playerAdapter{player: p, queue: q}, p, q
}

func TestPlaybackStatus(t *testing.T) {
	a, p, _ := newAdapter()
	tests := []struct {
		state playback.State
		want  types.PlaybackStatus
	}{
		{playback.StateIdle, types.PlaybackStatusStopped},
		{playback.StateLoading, types.PlaybackStatusPaused},
		{playback.StatePaused, types.PlaybackStatusPaused},
		{playback.StatePlaying, types.PlaybackStatusPlaying},
		{playback.StateTransitioning, types.PlaybackStatusPlaying},
	}
	for _, tt := range tests {
		p.state = tt.state
		got, err := a.PlaybackStatus()
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.state.String())
	}
}

func TestMetadata(t *testing.T) {
	a, p, _ := newAdapter()

	meta, err := a.Metadata()
	require.NoError(t, err)
	assert.Equal(t, types.Metadata{}, meta)

	p.track = &playback.Track{
		ID: "abc", Title: "Blue in Green", Artist: "Miles Davis", Album: "Kind of Blue",
		Duration: 5*time.Minute + 37*time.Second, CoverURI: "/music/kob/cover.jpg",
	}
	meta, err = a.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "Blue in Green", meta.Title)
	assert.Equal(t, []string{"Miles Davis"}, meta.Artist)
	assert.Equal(t, "Kind of Blue", meta.Album)
	assert.Equal(t, types.Microseconds(337_000_000), meta.Length)
	assert.Equal(t, "file:///music/kob/cover.jpg", meta.ArtUrl)
	assert.Equal(t, formatTrackID("abc"), meta.TrackId)
	assert.True(t, meta.TrackId.IsValid())
}

func TestTransportControls(t *testing.T) {
	a, p, q := newAdapter()
	q.n = 3

	require.NoError(t, a.Play())
	assert.Equal(t, 1, q.plays, "nothing loaded: start the queue")

	p.track = &playback.Track{ID: "a"}
	require.NoError(t, a.Play())
	require.NoError(t, a.PlayPause())
	require.NoError(t, a.Pause())
	require.NoError(t, a.Next())
	require.NoError(t, a.Previous())
	require.NoError(t, a.Stop())

	assert.Equal(t, []string{"resume", "toggle", "pause", "next", "prev", "pause"}, p.calls)
	assert.Equal(t, []time.Duration{0}, p.seeks)
}

func TestSeekAndSetPosition(t *testing.T) {
	a, p, _ := newAdapter()
	p.track = &playback.Track{ID: "a"}
	p.position = 10 * time.Second

	require.NoError(t, a.Seek(types.Microseconds(5_000_000)))
	require.NoError(t, a.SetPosition(string(formatTrackID("a")), types.Microseconds(30_000_000)))
	require.NoError(t, a.SetPosition(string(formatTrackID("old")), types.Microseconds(1_000_000)))

	assert.Equal(t, []time.Duration{15 * time.Second, 30 * time.Second}, p.seeks)

	pos, err := a.Position()
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), pos)
}

func TestLoopAndShuffle(t *testing.T) {
	a, p, _ := newAdapter()

	require.NoError(t, a.SetLoopStatus(types.LoopStatusPlaylist))
	got, _ := a.LoopStatus()
	assert.Equal(t, types.LoopStatusPlaylist, got)

	require.NoError(t, a.SetLoopStatus(types.LoopStatusTrack))
	got, _ = a.LoopStatus()
	assert.Equal(t, types.LoopStatusTrack, got)

	require.NoError(t, a.SetShuffle(true))
	shuffle, _ := a.Shuffle()
	assert.True(t, shuffle)
	assert.Equal(t, playback.RepeatOff, p.mode.Repeat, "shuffle clears repeat")

	require.NoError(t, a.SetLoopStatus(types.LoopStatusNone))
	got, _ = a.LoopStatus()
	assert.Equal(t, types.LoopStatusNone, got)
}

func TestCapabilities(t *testing.T) {
	a, p, q := newAdapter()

	canPlay, _ := a.CanPlay()
	assert.False(t, canPlay)

	q.n, q.index = 2, 1
	canNext, _ := a.CanGoNext()
	assert.False(t, canNext, "last track without repeat")

	p.mode = p.mode.WithRepeat(playback.RepeatAll)
	canNext, _ = a.CanGoNext()
	assert.True(t, canNext)

	canPrev, _ := a.CanGoPrevious()
	assert.True(t, canPrev)

	canSeek, _ := a.CanSeek()
	assert.False(t, canSeek)
}

func TestVolume(t *testing.T) {
	a, p, _ := newAdapter()
	require.NoError(t, a.SetVolume(0.3))
	assert.InDelta(t, 0.3, p.volume, 1e-9)
	v, _ := a.Volume()
	assert.InDelta(t, 0.3, v, 1e-9)
}

func TestRootAdapter(t *testing.T) {
	r := &rootAdapter{}
	id, err := r.Identity()
	require.NoError(t, err)
	assert.Equal(t, "Flow", id)
	schemes, _ := r.SupportedUriSchemes()
	assert.Equal(t, []string{"file"}, schemes)
}
