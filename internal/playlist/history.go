package playlist

import "slices"

// DefaultHistorySize is the number of played tracks kept by default.
const DefaultHistorySize = 100

// History is a bounded list of played tracks, most recent last.
type History struct {
	tracks  []Track
	maxSize int
}

// NewHistory creates a history that keeps at most maxSize tracks.
// A non-positive size selects DefaultHistorySize.
func NewHistory(maxSize int) *History {
	if maxSize <= 0 {
		maxSize = DefaultHistorySize
	}
	return &History{
		tracks:  make([]Track, 0, maxSize),
		maxSize: maxSize,
	}
}

// Push records a played track, dropping the oldest entries over the limit.
func (h *History) Push(t Track) {
	h.tracks = append(h.tracks, t)
	if excess := len(h.tracks) - h.maxSize; excess > 0 {
		h.tracks = slices.Delete(h.tracks, 0, excess)
	}
}

// Last returns the most recently played track.
func (h *History) Last() (Track, bool) {
	if len(h.tracks) == 0 {
		return Track{}, false
	}
	return h.tracks[len(h.tracks)-1], true
}

// Tracks returns a copy of the history, oldest first.
func (h *History) Tracks() []Track {
	return slices.Clone(h.tracks)
}

// Len returns the number of recorded tracks.
func (h *History) Len() int {
	return len(h.tracks)
}

// Clear forgets every entry.
func (h *History) Clear() {
	h.tracks = h.tracks[:0]
}
