//go:build (linux && cgo) || windows || darwin

package player

import (
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

var _ Output = (*BeepOutput)(nil)

// outputRate is the fixed speaker rate; sources are resampled to it.
const outputRate = beep.SampleRate(44100)

// speakerLock adapts the package-level speaker lock to sync.Locker.
type speakerLock struct{}

func (speakerLock) Lock()   { speaker.Lock() }
func (speakerLock) Unlock() { speaker.Unlock() }

// BeepOutput drives the system speaker through one long-lived mixer fed by
// both slots.
type BeepOutput struct {
	a, b  *beepSlot
	mix   *mixer
	eq    *equalizer
	mu    sync.Mutex
	onEvt Listener
}

// NewOutput initialises the speaker and starts the shared chain.
func NewOutput() (*BeepOutput, error) {
	if err := speaker.Init(outputRate, outputRate.N(time.Second/10)); err != nil {
		return nil, errors.Wrap(err, "init speaker")
	}

	o := &BeepOutput{}
	lock := speakerLock{}
	o.a = newBeepSlot("A", lock, outputRate, o.dispatch)
	o.b = newBeepSlot("B", lock, outputRate, o.dispatch)
	o.eq = newEqualizer(lock, float64(outputRate))
	o.mix = newMixer(o.a, o.b, o.eq)

	speaker.Play(o.mix)
	return o, nil
}

func (o *BeepOutput) dispatch(ev Event) {
	o.mu.Lock()
	fn := o.onEvt
	o.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (o *BeepOutput) Slots() (Slot, Slot) { return o.a, o.b }

func (o *BeepOutput) SetListener(fn Listener) {
	o.mu.Lock()
	o.onEvt = fn
	o.mu.Unlock()
}

func (o *BeepOutput) Equalizer() (Equalizer, error) {
	speaker.Lock()
	o.eq.enable()
	speaker.Unlock()
	return o.eq, nil
}

func (o *BeepOutput) SetMono(enabled bool) {
	speaker.Lock()
	o.mix.mono = enabled
	speaker.Unlock()
}

func (o *BeepOutput) Mono() bool {
	speaker.Lock()
	defer speaker.Unlock()
	return o.mix.mono
}

// Close silences the speaker and releases both sources.
func (o *BeepOutput) Close() error {
	speaker.Clear()
	o.a.Unload()
	o.b.Unload()
	return nil
}
