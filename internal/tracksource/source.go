// Package tracksource builds playable tracks from files on disk and
// late-binds their locators for the playback engine.
package tracksource

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/player"
)

// ErrNotFound reports a track whose file cannot be located.
var ErrNotFound = errors.New("track file not found")

// Source turns files into tracks and resolves tracks back to files.
type Source struct {
	log      zerolog.Logger
	baseDir  string
	coverDir string
	measure  func(locator string) (time.Duration, error)

	mu    sync.RWMutex
	known map[string]string // track id -> absolute path
}

// Option configures a Source.
type Option func(*Source)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Source) { s.log = log }
}

// WithBaseDir sets the directory relative locators are resolved against.
func WithBaseDir(dir string) Option {
	return func(s *Source) { s.baseDir = dir }
}

// WithCoverCache enables extraction of embedded cover art into dir.
func WithCoverCache(dir string) Option {
	return func(s *Source) { s.coverDir = dir }
}

// WithMeasurer replaces the duration measurement.
func WithMeasurer(measure func(locator string) (time.Duration, error)) Option {
	return func(s *Source) { s.measure = measure }
}

// New creates a Source.
func New(opts ...Option) *Source {
	s := &Source{
		log:     zerolog.Nop(),
		measure: Measure,
		known:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID derives the stable id of the file at path.
func ID(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+filepath.ToSlash(abs))).String()
}

// FromPath creates a track from a file path by reading its metadata. Tag
// errors fall back to the file name. The duration is measured.
func (s *Source) FromPath(path string) playback.Track {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}

	t := playback.Track{ID: ID(abs), SourceURI: abs}
	info, err := readTags(abs)
	if err != nil {
		s.log.Debug().Err(err).Str("path", abs).Msg("read tags")
		t.Title = baseName(abs)
	} else {
		t.Title, t.Artist, t.Album = info.Title, info.Artist, info.Album
	}

	if d, err := s.measure(abs); err == nil {
		t.Duration = d
	} else {
		s.log.Debug().Err(err).Str("path", abs).Msg("measure duration")
	}

	s.mu.Lock()
	s.known[t.ID] = abs
	s.mu.Unlock()
	return t
}

// Collect builds tracks from files and directories. Directories are walked
// recursively and their music files are ordered by path; arguments keep
// their order. Unreadable entries are skipped.
func (s *Source) Collect(ctx context.Context, paths ...string) ([]playback.Track, error) {
	var tracks []playback.Track
	for _, root := range paths {
		files, err := musicFiles(root)
		if err != nil {
			return nil, err
		}
		for _, path := range files {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			tracks = append(tracks, s.FromPath(path))
		}
	}
	return tracks, nil
}

func musicFiles(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", root)
	}
	if !info.IsDir() {
		if !player.IsMusicFile(root) {
			return nil, nil
		}
		return []string{root}, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			// Skip directories/files with errors, continue walking
			return nil //nolint:nilerr // intentionally skipping errors
		}
		if d.IsDir() || !player.IsMusicFile(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Sort by path for consistent ordering
	slices.Sort(files)
	return files, nil
}

// WithoutShort drops tracks shorter than minimum. Tracks of unknown
// duration count as short. A zero minimum keeps everything.
func WithoutShort(tracks []playback.Track, minimum time.Duration) []playback.Track {
	if minimum <= 0 {
		return tracks
	}
	return lo.Filter(tracks, func(t playback.Track, _ int) bool {
		return t.Duration >= minimum
	})
}

// Resolve fills in a track's file and cover locators. Tracks restored
// without a locator are found by id among the files seen so far; file://
// URLs and relative paths become absolute paths.
func (s *Source) Resolve(_ context.Context, t playback.Track) (playback.Track, error) {
	path, err := s.locate(t)
	if err != nil {
		return t, err
	}
	if _, err := os.Stat(path); err != nil {
		return t, errors.Wrapf(ErrNotFound, "%s", path)
	}
	t.SourceURI = path

	if t.CoverURI == "" {
		t.CoverURI = s.cover(t.ID, path)
	}
	return t, nil
}

func (s *Source) locate(t playback.Track) (string, error) {
	if t.SourceURI == "" {
		s.mu.RLock()
		path, ok := s.known[t.ID]
		s.mu.RUnlock()
		if !ok {
			return "", errors.Wrapf(playback.ErrNoSource, "track %s", t.ID)
		}
		return path, nil
	}

	path, err := player.LocatorPath(t.SourceURI)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) && s.baseDir != "" {
		path = filepath.Join(s.baseDir, path)
	}
	return filepath.Abs(path)
}

func (s *Source) cover(id, path string) string {
	if found := FindCover(path); found != "" {
		return found
	}
	if s.coverDir == "" {
		return ""
	}
	if id == "" {
		id = ID(path)
	}
	out, err := extractCover(s.coverDir, id, path)
	if err != nil {
		s.log.Debug().Err(err).Str("path", path).Msg("extract cover")
		return ""
	}
	return out
}

// CoverURL turns a cover locator into a URL suitable for desktop
// integrations.
func CoverURL(cover string) string {
	if cover == "" || strings.Contains(cover, "://") {
		return cover
	}
	return "file://" + filepath.ToSlash(cover)
}
