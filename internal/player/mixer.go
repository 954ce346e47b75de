package player

import (
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

var _ beep.Streamer = (*mixer)(nil)

// mixer sums the two slot streams and runs the result through the shared
// chain: equalizer and gain stage, then the mono downmix when enabled. Slot
// streams never drain, so neither does the mixer. All fields are guarded by
// the speaker lock.
type mixer struct {
	a, b beep.Streamer
	eq   *equalizer
	buf  [][2]float64

	// mono selects downmix, the same chain wrapped once in effects.Mono, so
	// the toggle never rebuilds the chain under the speaker.
	mono    bool
	downmix beep.Streamer
}

func newMixer(a, b beep.Streamer, eq *equalizer) *mixer {
	m := &mixer{a: a, b: b, eq: eq}
	m.downmix = effects.Mono(beep.StreamerFunc(m.mix))
	return m
}

// Stream implements beep.Streamer.
func (m *mixer) Stream(samples [][2]float64) (n int, ok bool) {
	if m.mono {
		return m.downmix.Stream(samples)
	}
	return m.mix(samples)
}

func (m *mixer) mix(samples [][2]float64) (n int, ok bool) {
	n = len(samples)
	if n == 0 {
		return 0, true
	}

	got, _ := m.a.Stream(samples)
	clear(samples[got:])

	if cap(m.buf) < n {
		m.buf = make([][2]float64, n)
	}
	buf := m.buf[:n]
	clear(buf)
	m.b.Stream(buf)

	for i := range samples {
		samples[i][0] += buf[i][0]
		samples[i][1] += buf[i][1]
	}

	if m.eq != nil {
		m.eq.process(samples)
	}
	return n, true
}

// Err implements beep.Streamer.
func (m *mixer) Err() error {
	return nil
}
