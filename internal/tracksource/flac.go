package tracksource

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-flac/flacpicture"
	"github.com/go-flac/flacvorbis"
	goflac "github.com/go-flac/go-flac"

	"github.com/coflyn/flow/internal/player"
)

var errNoStreamInfo = errors.New("flac: no usable STREAMINFO block")

// Measure reports a file's duration. FLAC files are measured from their
// STREAMINFO block; everything else is decoded.
func Measure(locator string) (time.Duration, error) {
	path, err := player.LocatorPath(locator)
	if err != nil {
		return 0, err
	}
	if isFLAC(path) {
		if d, err := flacDuration(path); err == nil {
			return d, nil
		}
	}
	return player.Measure(locator)
}

func isFLAC(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".flac")
}

// flacMetadata parses only the metadata blocks of a FLAC file.
func flacMetadata(path string) ([]*goflac.MetaDataBlock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	file, err := goflac.ParseMetadata(f)
	if err != nil {
		return nil, errors.Wrap(err, "parse flac metadata")
	}
	return file.Meta, nil
}

func flacDuration(path string) (time.Duration, error) {
	meta, err := flacMetadata(path)
	if err != nil {
		return 0, err
	}
	for _, m := range meta {
		if m.Type != goflac.StreamInfo || len(m.Data) < 18 {
			continue
		}
		data := m.Data
		// Sample rate is 20 bits from byte 10; total samples the low 36
		// bits of bytes 13-17.
		rate := int64(data[10])<<12 | int64(data[11])<<4 | int64(data[12])>>4
		total := int64(data[13]&0x0f)<<32 | int64(data[14])<<24 | int64(data[15])<<16 | int64(data[16])<<8 | int64(data[17])
		if rate == 0 || total == 0 {
			break
		}
		return time.Duration(total * int64(time.Second) / rate), nil
	}
	return 0, errNoStreamInfo
}

// readFLACTags reads Vorbis comments straight from the metadata blocks.
func readFLACTags(path string) (tags, error) {
	meta, err := flacMetadata(path)
	if err != nil {
		return tags{}, err
	}
	for _, m := range meta {
		if m.Type != goflac.VorbisComment {
			continue
		}
		cmts, err := flacvorbis.ParseFromMetaDataBlock(*m)
		if err != nil {
			return tags{}, errors.Wrap(err, "parse vorbis comments")
		}
		get := func(key string) string {
			if values, err := cmts.Get(key); err == nil && len(values) > 0 {
				return values[0]
			}
			return ""
		}
		t := tags{
			Title:       get(flacvorbis.FIELD_TITLE),
			Artist:      get(flacvorbis.FIELD_ARTIST),
			Album:       get(flacvorbis.FIELD_ALBUM),
			TrackNumber: parseNumber(get(flacvorbis.FIELD_TRACKNUMBER)),
			DiscNumber:  parseNumber(get("DISCNUMBER")),
		}
		if t.Artist == "" {
			t.Artist = get("ALBUMARTIST")
		}
		if t.Title == "" {
			t.Title = baseName(path)
		}
		return t, nil
	}
	return tags{Title: baseName(path)}, nil
}

// flacCover returns the front cover picture, or the first picture when
// none is marked as front cover.
func flacCover(path string) ([]byte, string, error) {
	meta, err := flacMetadata(path)
	if err != nil {
		return nil, "", err
	}
	var found *flacpicture.MetadataBlockPicture
	for _, m := range meta {
		if m.Type != goflac.Picture {
			continue
		}
		pic, err := flacpicture.ParseFromMetaDataBlock(*m)
		if err != nil {
			continue
		}
		if pic.PictureType == flacpicture.PictureTypeFrontCover {
			return pic.ImageData, pic.MIME, nil
		}
		if found == nil {
			found = pic
		}
	}
	if found == nil {
		return nil, "", nil
	}
	return found.ImageData, found.MIME, nil
}
