package tracksource

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/dhowden/tag"
)

// coverNames lists common album art filenames in priority order.
var coverNames = []string{
	"cover.jpg", "cover.jpeg", "cover.png",
	"folder.jpg", "folder.jpeg", "folder.png",
	"album.jpg", "album.jpeg", "album.png",
	"front.jpg", "front.jpeg", "front.png",
	"artwork.jpg", "artwork.jpeg", "artwork.png",
}

// FindCover looks for album art in the same directory as the track.
// Returns the path to the art file, or empty string if not found.
func FindCover(trackPath string) string {
	dir := filepath.Dir(trackPath)
	for _, name := range coverNames {
		for _, candidate := range []string{name, strings.ToUpper(name)} {
			path := filepath.Join(dir, candidate)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				return path
			}
		}
	}
	return ""
}

// EmbeddedCover reads embedded cover art from an audio file.
// Returns nil data if the file has none.
func EmbeddedCover(path string) (data []byte, mimeType string, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		switch {
		case isFLAC(path):
			return flacCover(path)
		case isMP4(path):
			return mp4Cover(path)
		}
		return nil, "", err
	}

	pic := m.Picture()
	if pic == nil {
		return nil, "", nil
	}
	return pic.Data, pic.MIMEType, nil
}

// extractCover writes the embedded art of path into dir as <id><ext> and
// returns the written file, reusing an earlier extraction.
func extractCover(dir, id, path string) (string, error) {
	for _, ext := range []string{".jpg", ".png"} {
		cached := filepath.Join(dir, id+ext)
		if _, err := os.Stat(cached); err == nil {
			return cached, nil
		}
	}

	data, mimeType, err := EmbeddedCover(path)
	if err != nil || data == nil {
		return "", err
	}

	ext := ".jpg"
	if mimeType == "image/png" {
		ext = ".png"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrap(err, "create cover cache")
	}
	out := filepath.Join(dir, id+ext)
	if err := os.WriteFile(out, data, 0o644); err != nil { //nolint:gosec // cover art is not sensitive
		return "", errors.Wrap(err, "write cover")
	}
	return out, nil
}
