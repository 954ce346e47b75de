package tracksource

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/bogem/id3v2/v2"
	"github.com/dhowden/tag"
)

// tags is the subset of file metadata a Track carries.
type tags struct {
	Title       string
	Artist      string
	Album       string
	TrackNumber int
	DiscNumber  int
}

// readTags reads tag metadata from a music file. A missing title falls
// back to the file name without extension.
func readTags(path string) (tags, error) {
	f, err := os.Open(path)
	if err != nil {
		return tags{}, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".mp3":
			// dhowden/tag has issues with some UTF-16 encoded ID3 tags
			return readID3v2(path)
		case ".flac":
			if t, ferr := readFLACTags(path); ferr == nil {
				return t, nil
			}
			return readTaglib(path)
		case ".ogg", ".oga", ".opus":
			return readTaglib(path)
		case ".m4a", ".mp4":
			if t, merr := readMP4Tags(path); merr == nil {
				return t, nil
			}
			return readTaglib(path)
		}
		return tags{}, err
	}

	track, _ := m.Track()
	disc, _ := m.Disc()
	t := tags{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		TrackNumber: track,
		DiscNumber:  disc,
	}
	if t.Artist == "" {
		t.Artist = m.AlbumArtist()
	}
	if t.Title == "" {
		t.Title = baseName(path)
	}
	return t, nil
}

// readID3v2 reads MP3 metadata using only the id3v2 library.
func readID3v2(path string) (tags, error) {
	id3tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return tags{}, err
	}
	defer id3tag.Close()

	t := tags{
		Title:  id3tag.Title(),
		Artist: id3tag.Artist(),
		Album:  id3tag.Album(),
	}
	if t.Artist == "" {
		t.Artist = textFrame(id3tag, "TPE2") // Album artist frame
	}
	t.TrackNumber = parseNumber(textFrame(id3tag, "TRCK"))
	t.DiscNumber = parseNumber(textFrame(id3tag, "TPOS"))
	if t.Title == "" {
		t.Title = baseName(path)
	}
	return t, nil
}

func textFrame(id3tag *id3v2.Tag, frameID string) string {
	frames := id3tag.GetFrames(frameID)
	if len(frames) == 0 {
		return ""
	}
	if tf, ok := frames[0].(id3v2.TextFrame); ok {
		return tf.Text
	}
	return ""
}

// parseNumber parses "5" or "5/10" and returns 5.
func parseNumber(s string) int {
	num, _, _ := strings.Cut(s, "/")
	n, _ := strconv.Atoi(strings.TrimSpace(num))
	return n
}

func baseName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
