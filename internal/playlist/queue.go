package playlist

import (
	"math/rand/v2"

	"github.com/samber/lo"
)

// PlayingQueue wraps a Playlist with playback position and keeps the
// pre-shuffle order so shuffle can be undone.
//
// While unshuffled, original mirrors order exactly. While shuffled, edits
// are applied to both: order gets them where the user asked, original gets
// them relative to the same neighbour track.
type PlayingQueue struct {
	order        *Playlist
	original     *Playlist
	currentIndex int // -1 if nothing playing
	shuffled     bool
}

// NewQueue creates a new empty playing queue.
func NewQueue() *PlayingQueue {
	return &PlayingQueue{
		order:        NewPlaylist(),
		original:     NewPlaylist(),
		currentIndex: -1,
	}
}

// Current returns the currently playing track, or nil if none.
func (q *PlayingQueue) Current() *Track {
	if q.currentIndex < 0 || q.currentIndex >= q.order.Len() {
		return nil
	}
	t := *q.order.Track(q.currentIndex)
	return &t
}

// CurrentIndex returns the index of the currently playing track (-1 if none).
func (q *PlayingQueue) CurrentIndex() int {
	return q.currentIndex
}

// Shuffled reports whether order is a shuffle of the original order.
func (q *PlayingQueue) Shuffled() bool {
	return q.shuffled
}

// NextIndex returns the index that follows the current one, wrapping to 0
// when wrap is set, or -1 if there is none.
func (q *PlayingQueue) NextIndex(wrap bool) int {
	n := q.order.Len()
	switch {
	case n == 0:
		return -1
	case q.currentIndex+1 < n:
		return q.currentIndex + 1
	case wrap:
		return 0
	default:
		return -1
	}
}

// PeekNext returns the track NextIndex points at without moving.
func (q *PlayingQueue) PeekNext(wrap bool) *Track {
	i := q.NextIndex(wrap)
	if i < 0 {
		return nil
	}
	t := *q.order.Track(i)
	return &t
}

// Next advances to the next track and returns it.
// Returns nil if there is no next track.
func (q *PlayingQueue) Next() *Track {
	if !q.HasNext() {
		return nil
	}
	q.currentIndex++
	return q.Current()
}

// HasNext returns true if there's a track after the current one.
func (q *PlayingQueue) HasNext() bool {
	return q.currentIndex < q.order.Len()-1
}

// HasPrev returns true if there's a track before the current one.
func (q *PlayingQueue) HasPrev() bool {
	return q.currentIndex > 0
}

// JumpTo sets the current index to the specified position.
// Returns the track at that position, or nil if invalid.
func (q *PlayingQueue) JumpTo(index int) *Track {
	if index < 0 || index >= q.order.Len() {
		return nil
	}
	q.currentIndex = index
	return q.Current()
}

// IndexOf returns the queue index of the first track with id, or -1.
func (q *PlayingQueue) IndexOf(id string) int {
	return q.order.IndexOf(id)
}

// Add appends tracks to the queue without changing playback.
func (q *PlayingQueue) Add(tracks ...Track) {
	q.order.Add(tracks...)
	q.original.Add(tracks...)
}

// AddAndPlay appends tracks and jumps to the first added track.
// Returns the track to play.
func (q *PlayingQueue) AddAndPlay(tracks ...Track) *Track {
	if len(tracks) == 0 {
		return nil
	}
	insertIndex := q.order.Len()
	q.Add(tracks...)
	q.currentIndex = insertIndex
	return q.Current()
}

// Replace swaps in a new, unshuffled track list positioned at start
// (clamped to the first track). Returns the track to play.
func (q *PlayingQueue) Replace(tracks []Track, start int) *Track {
	q.order.Set(tracks)
	q.original.Set(tracks)
	q.shuffled = false
	q.currentIndex = -1
	if len(tracks) == 0 {
		return nil
	}
	if start < 0 || start >= len(tracks) {
		start = 0
	}
	q.currentIndex = start
	return q.Current()
}

// Restore rebuilds a queue from a saved snapshot. original may be nil when
// the snapshot was not shuffled.
func (q *PlayingQueue) Restore(order, original []Track, index int) {
	q.order.Set(order)
	q.shuffled = original != nil
	if q.shuffled {
		q.original.Set(original)
	} else {
		q.original.Set(order)
	}
	q.currentIndex = -1
	if index >= 0 && index < len(order) {
		q.currentIndex = index
	}
}

// InsertNext places track right after the current one, removing any other
// occurrence of it first. With nothing current it goes to the front.
func (q *PlayingQueue) InsertNext(track Track) {
	cur := q.Current()
	if cur != nil && cur.ID == track.ID {
		return
	}
	q.removeID(track.ID)

	q.order.Insert(q.currentIndex+1, track)
	if !q.shuffled {
		q.original.Set(q.order.Tracks())
		return
	}
	at := 0
	if cur != nil {
		at = q.original.IndexOf(cur.ID) + 1
	}
	q.original.Insert(at, track)
}

// removeID removes the first non-current occurrence of id from both orders.
func (q *PlayingQueue) removeID(id string) {
	for i, t := range q.order.Tracks() {
		if t.ID == id && i != q.currentIndex {
			q.RemoveAt(i)
			return
		}
	}
}

// Move moves the track at from to to, keeping currentIndex on the same
// track.
func (q *PlayingQueue) Move(from, to int) bool {
	if !q.order.Move(from, to) {
		return false
	}
	switch {
	case from == q.currentIndex:
		q.currentIndex = to
	case from < q.currentIndex && to >= q.currentIndex:
		q.currentIndex--
	case from > q.currentIndex && to <= q.currentIndex:
		q.currentIndex++
	}
	if !q.shuffled {
		q.original.Set(q.order.Tracks())
	}
	return true
}

// RemoveAt removes the track at the given index.
// Adjusts currentIndex if necessary.
func (q *PlayingQueue) RemoveAt(index int) bool {
	t := q.order.Track(index)
	if t == nil {
		return false
	}
	id := t.ID
	q.order.Remove(index)
	if q.shuffled {
		q.original.Remove(q.original.IndexOf(id))
	} else {
		q.original.Remove(index)
	}

	// Adjust current index after removal
	if q.currentIndex > index {
		q.currentIndex--
	} else if q.currentIndex == index {
		// Removed current track - stay at same index (now points to next)
		// If we're past the end, clamp
		if q.currentIndex >= q.order.Len() {
			q.currentIndex = q.order.Len() - 1
		}
	}

	return true
}

// Clear removes every track except the current one.
func (q *PlayingQueue) Clear() {
	cur := q.Current()
	if cur == nil {
		q.order.Clear()
		q.original.Clear()
		q.currentIndex = -1
		return
	}
	q.order.Set([]Track{*cur})
	q.original.Set([]Track{*cur})
	q.currentIndex = 0
}

// ClearUpcoming drops every track after the current one.
func (q *PlayingQueue) ClearUpcoming() {
	if q.currentIndex < 0 {
		return
	}
	dropped := q.Upcoming()
	q.order.Truncate(q.currentIndex + 1)
	if !q.shuffled {
		q.original.Set(q.order.Tracks())
		return
	}
	q.original.RemoveIDs(lo.Map(dropped, func(t Track, _ int) string { return t.ID })...)
}

// Upcoming returns the tracks after the current one.
func (q *PlayingQueue) Upcoming() []Track {
	tracks := q.order.Tracks()
	if q.currentIndex+1 >= len(tracks) {
		return nil
	}
	return tracks[q.currentIndex+1:]
}

// Shuffle replaces the order with a random permutation of the original
// order. The current track, if any, is pinned first and becomes index 0.
func (q *PlayingQueue) Shuffle(rng *rand.Rand) {
	if q.order.Len() == 0 {
		return
	}
	pin := -1
	if cur := q.Current(); cur != nil {
		pin = q.original.IndexOf(cur.ID)
	}
	q.order.Set(Shuffle(rng, q.original.Tracks(), pin))
	q.shuffled = true
	if pin >= 0 {
		q.currentIndex = 0
	}
}

// Reshuffle draws a fresh permutation of the original order with nothing
// pinned and moves to its first track.
func (q *PlayingQueue) Reshuffle(rng *rand.Rand) {
	if q.order.Len() == 0 {
		return
	}
	q.order.Set(Shuffle(rng, q.original.Tracks(), -1))
	q.shuffled = true
	q.currentIndex = 0
}

// Unshuffle restores the original order and finds the current track in it.
func (q *PlayingQueue) Unshuffle() {
	if !q.shuffled {
		return
	}
	cur := q.Current()
	q.order.Set(q.original.Tracks())
	q.shuffled = false
	if cur == nil {
		q.currentIndex = -1
		return
	}
	q.currentIndex = q.order.IndexOf(cur.ID)
}

// Tracks returns all tracks in the queue.
func (q *PlayingQueue) Tracks() []Track {
	return q.order.Tracks()
}

// OriginalTracks returns the pre-shuffle order.
func (q *PlayingQueue) OriginalTracks() []Track {
	return q.original.Tracks()
}

// Len returns the number of tracks in the queue.
func (q *PlayingQueue) Len() int {
	return q.order.Len()
}

// IsEmpty returns true if the queue has no tracks.
func (q *PlayingQueue) IsEmpty() bool {
	return q.order.Len() == 0
}
