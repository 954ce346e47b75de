package tracksource

import (
	"go.senan.xyz/taglib"
)

// readTaglib reads tags with TagLib, for files dhowden/tag cannot parse.
func readTaglib(path string) (tags, error) {
	raw, err := taglib.ReadTags(path)
	if err != nil {
		return tags{}, err
	}
	get := func(key string) string {
		if values := raw[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}

	t := tags{
		Title:       get(taglib.Title),
		Artist:      get(taglib.Artist),
		Album:       get(taglib.Album),
		TrackNumber: parseNumber(get(taglib.TrackNumber)),
		DiscNumber:  parseNumber(get(taglib.DiscNumber)),
	}
	if t.Artist == "" {
		t.Artist = get(taglib.AlbumArtist)
	}
	if t.Title == "" {
		t.Title = baseName(path)
	}
	return t, nil
}
