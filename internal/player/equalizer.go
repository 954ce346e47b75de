package player

import (
	"math"
	"sync"

	"github.com/cockroachdb/errors"
)

var _ Equalizer = (*equalizer)(nil)

// bandQ is the quality factor shared by every band.
const bandQ = 1.0

// peakingFilter is a biquad peaking filter with independent state per
// channel. Coefficients follow the RBJ audio EQ cookbook.
type peakingFilter struct {
	freq   float64
	gainDB float64

	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     [2]float64
}

// configure recomputes coefficients, keeping the filter history so a gain
// change does not click.
func (f *peakingFilter) configure(rate float64) {
	a := math.Pow(10, f.gainDB/40)
	w0 := 2 * math.Pi * f.freq / rate
	alpha := math.Sin(w0) / (2 * bandQ)
	cosW0 := math.Cos(w0)

	a0 := 1 + alpha/a
	f.b0 = (1 + alpha*a) / a0
	f.b1 = (-2 * cosW0) / a0
	f.b2 = (1 - alpha*a) / a0
	f.a1 = (-2 * cosW0) / a0
	f.a2 = (1 - alpha/a) / a0
}

func (f *peakingFilter) process(ch int, x float64) float64 {
	y := f.b0*x + f.b1*f.x1[ch] + f.b2*f.x2[ch] - f.a1*f.y1[ch] - f.a2*f.y2[ch]
	f.x2[ch], f.x1[ch] = f.x1[ch], x
	f.y2[ch], f.y1[ch] = f.y1[ch], y
	return y
}

// equalizer is the five-band shared chain. It passes audio through
// untouched until enabled.
type equalizer struct {
	lock    sync.Locker
	rate    float64
	enabled bool
	gain    float64
	filters [BandCount]peakingFilter
}

func newEqualizer(lock sync.Locker, rate float64) *equalizer {
	e := &equalizer{lock: lock, rate: rate, gain: 1}
	for i := range e.filters {
		e.filters[i].freq = BandFrequencies[i]
		e.filters[i].configure(rate)
	}
	return e
}

// enable switches the chain on. Caller holds the lock.
func (e *equalizer) enable() {
	e.enabled = true
}

// process filters samples in place. Caller holds the lock.
func (e *equalizer) process(samples [][2]float64) {
	if !e.enabled {
		return
	}
	for i := range samples {
		for ch := range 2 {
			v := samples[i][ch]
			for b := range e.filters {
				v = e.filters[b].process(ch, v)
			}
			samples[i][ch] = v * e.gain
		}
	}
}

// SetBandGain sets one band's gain in dB, clamped to ±MaxBandGain.
func (e *equalizer) SetBandGain(band int, db float64) error {
	if band < 0 || band >= BandCount {
		return errors.Wrapf(ErrInvalidBand, "band %d", band)
	}
	db = max(-MaxBandGain, min(MaxBandGain, db))

	e.lock.Lock()
	defer e.lock.Unlock()
	e.filters[band].gainDB = db
	e.filters[band].configure(e.rate)
	return nil
}

// Gains returns the band gains in dB.
func (e *equalizer) Gains() []float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	gains := make([]float64, BandCount)
	for i := range e.filters {
		gains[i] = e.filters[i].gainDB
	}
	return gains
}

// SetGain sets the post-filter volume stage (0.0 to 1.0).
func (e *equalizer) SetGain(level float64) {
	e.lock.Lock()
	e.gain = clampLevel(level)
	e.lock.Unlock()
}

// Gain returns the post-filter volume stage.
func (e *equalizer) Gain() float64 {
	e.lock.Lock()
	defer e.lock.Unlock()
	return e.gain
}
