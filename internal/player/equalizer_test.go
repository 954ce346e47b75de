package player

import (
	"math"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sineRMS runs a sine at freq through the equalizer and returns the RMS of
// the second half, after the filters have settled.
func sineRMS(eq *equalizer, freq float64, n int) float64 {
	samples := make([][2]float64, n)
	for i := range samples {
		v := 0.25 * math.Sin(2*math.Pi*freq*float64(i)/eq.rate)
		samples[i] = [2]float64{v, v}
	}
	eq.process(samples)

	var sum float64
	for _, s := range samples[n/2:] {
		sum += s[0] * s[0]
	}
	return math.Sqrt(sum / float64(n-n/2))
}

func TestEqualizer_FlatIsTransparent(t *testing.T) {
	eq := newEqualizer(&sync.Mutex{}, 44100)
	eq.enable()

	samples := [][2]float64{{0.1, -0.2}, {0.3, 0.4}, {-0.5, 0.6}, {0.7, -0.8}}
	want := append([][2]float64(nil), samples...)
	eq.process(samples)

	for i := range samples {
		assert.InDelta(t, want[i][0], samples[i][0], 1e-12)
		assert.InDelta(t, want[i][1], samples[i][1], 1e-12)
	}
}

func TestEqualizer_BoostAndCut(t *testing.T) {
	const n = 44100 / 2
	ref := sineRMS(func() *equalizer {
		eq := newEqualizer(&sync.Mutex{}, 44100)
		eq.enable()
		return eq
	}(), 910, n)

	boost := newEqualizer(&sync.Mutex{}, 44100)
	boost.enable()
	require.NoError(t, boost.SetBandGain(2, 12))
	assert.Greater(t, sineRMS(boost, 910, n)/ref, 3.0, "+12 dB at centre is roughly 4x")

	cut := newEqualizer(&sync.Mutex{}, 44100)
	cut.enable()
	require.NoError(t, cut.SetBandGain(2, -12))
	assert.Less(t, sineRMS(cut, 910, n)/ref, 0.35, "-12 dB at centre is roughly 1/4")
}

func TestEqualizer_SetBandGain(t *testing.T) {
	eq := newEqualizer(&sync.Mutex{}, 44100)

	require.NoError(t, eq.SetBandGain(0, 6))
	require.NoError(t, eq.SetBandGain(4, 30))
	require.NoError(t, eq.SetBandGain(1, -30))

	assert.Equal(t, []float64{6, -12, 0, 0, 12}, eq.Gains())

	err := eq.SetBandGain(BandCount, 1)
	assert.ErrorIs(t, err, ErrInvalidBand)
	err = eq.SetBandGain(-1, 1)
	assert.ErrorIs(t, err, ErrInvalidBand)
}

func TestEqualizer_Gain(t *testing.T) {
	eq := newEqualizer(&sync.Mutex{}, 44100)
	assert.Equal(t, 1.0, eq.Gain())

	eq.SetGain(0.3)
	assert.Equal(t, 0.3, eq.Gain())

	eq.SetGain(4)
	assert.Equal(t, 1.0, eq.Gain())
}
