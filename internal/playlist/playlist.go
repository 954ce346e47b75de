package playlist

import (
	"slices"

	"github.com/samber/lo"

	"github.com/coflyn/flow/internal/playback"
)

// Track is the playable unit held by playlists and queues.
type Track = playback.Track

// Playlist holds an ordered collection of tracks.
type Playlist struct {
	tracks []Track
}

// NewPlaylist creates a playlist holding a copy of tracks.
func NewPlaylist(tracks ...Track) *Playlist {
	return &Playlist{
		tracks: slices.Clone(tracks),
	}
}

// Add appends tracks to the playlist.
func (p *Playlist) Add(tracks ...Track) {
	p.tracks = append(p.tracks, tracks...)
}

// Insert places track at index, shifting later tracks down. Index is
// clamped to [0, Len].
func (p *Playlist) Insert(index int, track Track) {
	index = max(0, min(index, len(p.tracks)))
	p.tracks = slices.Insert(p.tracks, index, track)
}

// Remove removes the track at the given index.
// Returns false if index is out of bounds.
func (p *Playlist) Remove(index int) bool {
	if index < 0 || index >= len(p.tracks) {
		return false
	}
	p.tracks = slices.Delete(p.tracks, index, index+1)
	return true
}

// RemoveIDs removes every track whose id is in ids.
func (p *Playlist) RemoveIDs(ids ...string) {
	p.tracks = lo.Filter(p.tracks, func(t Track, _ int) bool {
		return !lo.Contains(ids, t.ID)
	})
}

// Truncate drops every track from index n on.
func (p *Playlist) Truncate(n int) {
	if n < 0 || n >= len(p.tracks) {
		return
	}
	p.tracks = p.tracks[:n]
}

// Clear removes all tracks from the playlist.
func (p *Playlist) Clear() {
	p.tracks = p.tracks[:0]
}

// Tracks returns a copy of all tracks.
func (p *Playlist) Tracks() []Track {
	return slices.Clone(p.tracks)
}

// Track returns the track at the given index, or nil if out of bounds.
func (p *Playlist) Track(index int) *Track {
	if index < 0 || index >= len(p.tracks) {
		return nil
	}
	return &p.tracks[index]
}

// IndexOf returns the index of the first track with id, or -1.
func (p *Playlist) IndexOf(id string) int {
	_, i, ok := lo.FindIndexOf(p.tracks, func(t Track) bool { return t.ID == id })
	if !ok {
		return -1
	}
	return i
}

// Len returns the number of tracks.
func (p *Playlist) Len() int {
	return len(p.tracks)
}

// Move moves the track at fromIndex to toIndex.
// Returns false if either index is out of bounds.
func (p *Playlist) Move(fromIndex, toIndex int) bool {
	if fromIndex < 0 || fromIndex >= len(p.tracks) {
		return false
	}
	if toIndex < 0 || toIndex >= len(p.tracks) {
		return false
	}
	if fromIndex == toIndex {
		return true
	}

	track := p.tracks[fromIndex]
	p.tracks = slices.Delete(p.tracks, fromIndex, fromIndex+1)
	p.tracks = slices.Insert(p.tracks, toIndex, track)
	return true
}

// Set replaces the contents with a copy of tracks.
func (p *Playlist) Set(tracks []Track) {
	p.tracks = slices.Clone(tracks)
}
