package tracksource

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coflyn/flow/internal/playback"
)

// writeWAV writes a silent 8 kHz mono 16-bit PCM file.
func writeWAV(t *testing.T, path string, d time.Duration) {
	t.Helper()
	const rate = 8000
	samples := int(d.Seconds() * rate)
	dataLen := samples * 2

	buf := make([]byte, 44+dataLen)
	copy(buf[0:], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:], uint32(36+dataLen))
	copy(buf[8:], "WAVE")
	copy(buf[12:], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:], 16)
	binary.LittleEndian.PutUint16(buf[20:], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:], rate)
	binary.LittleEndian.PutUint32(buf[28:], rate*2)
	binary.LittleEndian.PutUint16(buf[32:], 2)
	binary.LittleEndian.PutUint16(buf[34:], 16)
	copy(buf[36:], "data")
	binary.LittleEndian.PutUint32(buf[40:], uint32(dataLen))

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, buf, 0o600))
}

// writeTaggedMP3 writes a single MPEG frame with ID3v2 text frames and,
// when picture is non-nil, an attached front cover.
func writeTaggedMP3(t *testing.T, path string, enc id3v2.Encoding, picture []byte) {
	t.Helper()
	// MP3 frame header (MPEG1 Layer3, 128kbps, 44100Hz, stereo) + padding
	frame := make([]byte, 417)
	frame[0], frame[1], frame[2] = 0xff, 0xfb, 0x90
	require.NoError(t, os.WriteFile(path, frame, 0o600))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	tag.AddTextFrame("TIT2", enc, "So What")
	tag.AddTextFrame("TPE1", enc, "Miles Davis")
	tag.AddTextFrame("TALB", enc, "Kind of Blue")
	tag.AddTextFrame("TRCK", enc, "1/5")
	if picture != nil {
		tag.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    "image/png",
			PictureType: id3v2.PTFrontCover,
			Description: "Front",
			Picture:     picture,
		})
	}
	require.NoError(t, tag.Save())
	require.NoError(t, tag.Close())
}

func fixedDuration(d time.Duration) Option {
	return WithMeasurer(func(string) (time.Duration, error) { return d, nil })
}

func TestID_StableAndDistinct(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.flac")

	assert.Equal(t, ID(a), ID(a))
	assert.NotEqual(t, ID(a), ID(filepath.Join(dir, "b.flac")))
	assert.Len(t, ID(a), 36)
}

func TestFromPath_WAVFallsBackToFileName(t *testing.T) {
	path := filepath.Join(t.TempDir(), "01 Intro.wav")
	writeWAV(t, path, time.Second)

	tr := New().FromPath(path)

	assert.Equal(t, "01 Intro", tr.Title)
	assert.Equal(t, path, tr.SourceURI)
	assert.Equal(t, ID(path), tr.ID)
	assert.Equal(t, time.Second, tr.Duration)
}

func TestFromPath_ReadsTags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	writeTaggedMP3(t, path, id3v2.EncodingUTF16, nil)

	tr := New(fixedDuration(9 * time.Minute)).FromPath(path)

	assert.Equal(t, "So What", tr.Title)
	assert.Equal(t, "Miles Davis", tr.Artist)
	assert.Equal(t, "Kind of Blue", tr.Album)
	assert.Equal(t, 9*time.Minute, tr.Duration)
}

func TestReadID3v2(t *testing.T) {
	path := filepath.Join(t.TempDir(), "track.mp3")
	writeTaggedMP3(t, path, id3v2.EncodingUTF16, nil)

	got, err := readID3v2(path)
	require.NoError(t, err)
	assert.Equal(t, tags{Title: "So What", Artist: "Miles Davis", Album: "Kind of Blue", TrackNumber: 1}, got)
}

func TestParseNumber(t *testing.T) {
	assert.Equal(t, 5, parseNumber("5"))
	assert.Equal(t, 5, parseNumber("5/10"))
	assert.Equal(t, 0, parseNumber(""))
	assert.Equal(t, 0, parseNumber("x"))
}

func TestCollect(t *testing.T) {
	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "b", "2.wav"), time.Second)
	writeWAV(t, filepath.Join(dir, "b", "1.wav"), time.Second)
	writeWAV(t, filepath.Join(dir, "a.wav"), time.Second)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	single := filepath.Join(t.TempDir(), "solo.wav")
	writeWAV(t, single, time.Second)

	tracks, err := New(fixedDuration(time.Minute)).Collect(context.Background(), single, dir)
	require.NoError(t, err)

	var titles []string
	for _, tr := range tracks {
		titles = append(titles, tr.Title)
	}
	assert.Equal(t, []string{"solo", "a", "1", "2"}, titles)
}

func TestCollect_Errors(t *testing.T) {
	s := New(fixedDuration(time.Minute))

	_, err := s.Collect(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)

	dir := t.TempDir()
	writeWAV(t, filepath.Join(dir, "a.wav"), time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Collect(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)

	notes := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("x"), 0o600))
	tracks, err := s.Collect(context.Background(), notes)
	require.NoError(t, err)
	assert.Empty(t, tracks, "non-music files are skipped")
}

func TestWithoutShort(t *testing.T) {
	tracks := []playback.Track{
		{ID: "long", Duration: 3 * time.Minute},
		{ID: "short", Duration: 10 * time.Second},
		{ID: "unknown"},
		{ID: "edge", Duration: 30 * time.Second},
	}

	got := WithoutShort(tracks, 30*time.Second)
	require.Len(t, got, 2)
	assert.Equal(t, "long", got[0].ID)
	assert.Equal(t, "edge", got[1].ID)

	assert.Len(t, WithoutShort(tracks, 0), 4)
}

func TestResolve_Locators(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "albums", "x.wav")
	writeWAV(t, path, time.Second)
	s := New(WithBaseDir(dir))
	ctx := context.Background()

	got, err := s.Resolve(ctx, playback.Track{ID: "x", SourceURI: "file://" + filepath.ToSlash(path)})
	require.NoError(t, err)
	assert.Equal(t, path, got.SourceURI)

	got, err = s.Resolve(ctx, playback.Track{ID: "x", SourceURI: filepath.Join("albums", "x.wav")})
	require.NoError(t, err)
	assert.Equal(t, path, got.SourceURI)

	_, err = s.Resolve(ctx, playback.Track{ID: "x", SourceURI: filepath.Join(dir, "gone.wav")})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = s.Resolve(ctx, playback.Track{ID: "x", SourceURI: "http://example.com/x.mp3"})
	assert.Error(t, err)
}

func TestResolve_ByID(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.wav")
	writeWAV(t, path, time.Second)
	s := New()

	_, err := s.Resolve(context.Background(), playback.Track{ID: ID(path)})
	assert.True(t, errors.Is(err, playback.ErrNoSource))

	tracks, err := s.Collect(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, tracks, 1)

	got, err := s.Resolve(context.Background(), playback.Track{ID: tracks[0].ID})
	require.NoError(t, err)
	assert.Equal(t, path, got.SourceURI)
}

func TestResolve_FolderCover(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x.wav")
	writeWAV(t, path, time.Second)
	cover := filepath.Join(dir, "folder.png")
	require.NoError(t, os.WriteFile(cover, []byte("png"), 0o600))

	got, err := New().Resolve(context.Background(), playback.Track{ID: "x", SourceURI: path})
	require.NoError(t, err)
	assert.Equal(t, cover, got.CoverURI)

	got, err = New().Resolve(context.Background(), playback.Track{ID: "x", SourceURI: path, CoverURI: "/keep.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "/keep.jpg", got.CoverURI, "existing cover is kept")
}

func TestResolve_EmbeddedCoverIsCached(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	picture := []byte("\x89PNG fake image data")
	writeTaggedMP3(t, path, id3v2.EncodingUTF8, picture)
	cache := filepath.Join(t.TempDir(), "covers")
	s := New(WithCoverCache(cache))

	got, err := s.Resolve(context.Background(), playback.Track{ID: "abc", SourceURI: path})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cache, "abc.png"), got.CoverURI)
	data, err := os.ReadFile(got.CoverURI)
	require.NoError(t, err)
	assert.Equal(t, picture, data)

	again, err := s.Resolve(context.Background(), playback.Track{ID: "abc", SourceURI: path})
	require.NoError(t, err)
	assert.Equal(t, got.CoverURI, again.CoverURI)
}

func TestFindCover(t *testing.T) {
	dir := t.TempDir()
	track := filepath.Join(dir, "x.flac")
	assert.Empty(t, FindCover(track))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "front.jpg"), []byte("j"), 0o600))
	assert.Equal(t, filepath.Join(dir, "front.jpg"), FindCover(track))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "cover.jpg"), []byte("j"), 0o600))
	assert.Equal(t, filepath.Join(dir, "cover.jpg"), FindCover(track), "cover.jpg has priority")
}

func TestCoverURL(t *testing.T) {
	assert.Empty(t, CoverURL(""))
	assert.Equal(t, "file:///music/cover.jpg", CoverURL("/music/cover.jpg"))
	assert.Equal(t, "https://x/y.png", CoverURL("https://x/y.png"))
}
