//go:build !((linux && cgo) || windows || darwin)

package player

// BeepOutput is unavailable without an audio backend.
type BeepOutput struct{}

// NewOutput always fails on this build.
func NewOutput() (*BeepOutput, error) {
	return nil, ErrNoAudio
}

func (o *BeepOutput) Slots() (Slot, Slot)           { return nil, nil }
func (o *BeepOutput) SetListener(Listener)          {}
func (o *BeepOutput) Equalizer() (Equalizer, error) { return nil, ErrNoAudio }
func (o *BeepOutput) SetMono(bool)                  {}
func (o *BeepOutput) Mono() bool                    { return false }
func (o *BeepOutput) Close() error                  { return nil }
