package player

import (
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/wav"
)

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extOGG  = ".ogg"
	extOGA  = ".oga"
	extOPUS = ".opus"
	extWAV  = ".wav"
	extM4A  = ".m4a"
	extMP4  = ".mp4"
)

// IsMusicFile reports whether a path has an extension the slots can decode.
func IsMusicFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case extMP3, extFLAC, extOGG, extOGA, extOPUS, extWAV, extM4A, extMP4:
		return true
	default:
		return false
	}
}

// LocatorPath turns a source locator into a filesystem path. Plain paths
// are returned unchanged; file:// URLs are unescaped.
func LocatorPath(locator string) (string, error) {
	if !strings.Contains(locator, "://") {
		return locator, nil
	}
	u, err := url.Parse(locator)
	if err != nil {
		return "", errors.Wrapf(err, "parse locator %q", locator)
	}
	if u.Scheme != "file" {
		return "", errors.Wrapf(ErrUnsupportedFormat, "scheme %q", u.Scheme)
	}
	return u.Path, nil
}

// openSource opens and decodes a locator. The returned streamer owns the
// file and closes it.
func openSource(locator string) (beep.StreamSeekCloser, beep.Format, error) {
	path, err := LocatorPath(locator)
	if err != nil {
		return nil, beep.Format{}, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if !IsMusicFile(path) {
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%q", ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, errors.Wrap(err, "open source")
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext {
	case extMP3:
		streamer, format, err = decodeMP3(f)
	case extFLAC:
		// Some taggers prepend an ID3v2 block to FLAC files.
		if err = skipID3v2(f); err == nil {
			streamer, format, err = flac.Decode(f)
			streamer = closeBoth(streamer, f)
		}
	case extOGG, extOGA, extOPUS:
		streamer, format, err = decodeOgg(f)
	case extM4A, extMP4:
		streamer, format, err = decodeM4A(f)
	case extWAV:
		streamer, format, err = wav.Decode(f)
		streamer = closeBoth(streamer, f)
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "decode %s", filepath.Base(path))
	}
	return streamer, format, nil
}

// Measure decodes just enough of a file to report its duration.
func Measure(locator string) (time.Duration, error) {
	streamer, format, err := openSource(locator)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()
	return format.SampleRate.D(streamer.Len()), nil
}

// fileStreamer closes the underlying file along with a decoder that only
// reads from it.
type fileStreamer struct {
	beep.StreamSeekCloser
	file io.Closer
}

func (s fileStreamer) Close() error {
	err := s.StreamSeekCloser.Close()
	if ferr := s.file.Close(); err == nil && !errors.Is(ferr, os.ErrClosed) {
		err = ferr
	}
	return err
}

func closeBoth(s beep.StreamSeekCloser, f io.Closer) beep.StreamSeekCloser {
	if s == nil {
		return nil
	}
	return fileStreamer{StreamSeekCloser: s, file: f}
}

// skipID3v2 skips an ID3v2 tag if present at the beginning of the file.
func skipID3v2(r io.ReadSeeker) error {
	header := make([]byte, 10)
	n, err := io.ReadFull(r, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	if n < 10 || string(header[:3]) != "ID3" {
		_, err = r.Seek(0, io.SeekStart)
		return err
	}

	// Size is a syncsafe integer: seven bits per byte.
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
