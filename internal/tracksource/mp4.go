package tracksource

import (
	"path/filepath"
	"strings"

	"github.com/Sorrow446/go-mp4tag"
	"github.com/cockroachdb/errors"
	"github.com/gabriel-vasile/mimetype"
)

func isMP4(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".m4a", ".mp4":
		return true
	}
	return false
}

func readMP4(path string) (*mp4tag.MP4Tags, error) {
	mp4, err := mp4tag.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open mp4")
	}
	defer mp4.Close()

	raw, err := mp4.Read()
	if err != nil {
		return nil, errors.Wrap(err, "read mp4 atoms")
	}
	return raw, nil
}

// readMP4Tags reads iTunes-style atoms.
func readMP4Tags(path string) (tags, error) {
	raw, err := readMP4(path)
	if err != nil {
		return tags{}, err
	}
	t := tags{
		Title:       raw.Title,
		Artist:      raw.Artist,
		Album:       raw.Album,
		TrackNumber: int(raw.TrackNumber),
		DiscNumber:  int(raw.DiscNumber),
	}
	if t.Artist == "" {
		t.Artist = raw.AlbumArtist
	}
	if t.Title == "" {
		t.Title = baseName(path)
	}
	return t, nil
}

// mp4Cover returns the first covr picture. The atom's own type flag is
// often wrong, so the MIME type is sniffed from the data.
func mp4Cover(path string) ([]byte, string, error) {
	raw, err := readMP4(path)
	if err != nil {
		return nil, "", err
	}
	for _, pic := range raw.Pictures {
		if pic != nil && len(pic.Data) > 0 {
			return pic.Data, mimetype.Detect(pic.Data).String(), nil
		}
	}
	return nil, "", nil
}
