package playback

import "time"

// Track is an immutable description of something playable. SourceURI and
// CoverURI may be empty until a TrackResolver fills them in.
type Track struct {
	ID        string
	SourceURI string
	Title     string
	Artist    string
	Album     string
	Duration  time.Duration
	CoverURI  string
}

// IsZero reports whether t is the zero Track.
func (t Track) IsZero() bool {
	return t.ID == "" && t.SourceURI == ""
}

// DisplayTitle returns the title, falling back to the id.
func (t Track) DisplayTitle() string {
	if t.Title != "" {
		return t.Title
	}
	return t.ID
}
