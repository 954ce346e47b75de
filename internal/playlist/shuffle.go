package playlist

import (
	"math/rand/v2"
	"slices"
)

// Shuffle returns a random permutation of tracks. When pin is a valid
// index that track is placed first and only the rest are permuted.
// tracks is not modified.
func Shuffle(rng *rand.Rand, tracks []Track, pin int) []Track {
	out := slices.Clone(tracks)
	if len(out) < 2 {
		return out
	}
	rest := out
	if pin >= 0 && pin < len(out) {
		out[0], out[pin] = out[pin], out[0]
		rest = out[1:]
	}
	rng.Shuffle(len(rest), func(i, j int) {
		rest[i], rest[j] = rest[j], rest[i]
	})
	return out
}
