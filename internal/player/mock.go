// internal/player/mock.go
package player

import (
	"sync"
	"time"
)

// MockSlot is a test double for Slot. Position never advances by itself;
// tests move it with SetPosition.
type MockSlot struct {
	mu        sync.Mutex
	name      string
	notify    func(Event)
	locator   string
	gen       uint64
	state     State
	level     float64
	position  time.Duration
	duration  time.Duration
	durations map[string]time.Duration
	loadErrs  map[string]error
	loadErr   error
	playErr   error

	loadCalls []string
	seekCalls []time.Duration
	volumes   []float64
	playCalls int
}

// NewMockSlot creates a stopped mock slot at full volume.
func NewMockSlot(name string) *MockSlot {
	return &MockSlot{
		name:      name,
		level:     1,
		durations: make(map[string]time.Duration),
		loadErrs:  make(map[string]error),
	}
}

func (m *MockSlot) Name() string { return m.name }

func (m *MockSlot) Load(locator string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.loadCalls = append(m.loadCalls, locator)
	if err := m.loadErrs[locator]; err != nil {
		return err
	}
	if m.loadErr != nil {
		return m.loadErr
	}
	m.locator = locator
	m.gen++
	m.state = Ready
	m.position = 0
	if d, ok := m.durations[locator]; ok {
		m.duration = d
	}
	return nil
}

func (m *MockSlot) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	if m.playErr != nil {
		return m.playErr
	}
	if m.state == Stopped {
		return ErrNoSource
	}
	m.state = Playing
	return nil
}

func (m *MockSlot) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		m.state = Paused
	}
}

func (m *MockSlot) Unload() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locator = ""
	m.gen++
	m.state = Stopped
	m.position = 0
}

func (m *MockSlot) Seek(position time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Stopped {
		return ErrNoSource
	}
	m.seekCalls = append(m.seekCalls, position)
	m.position = position
	return nil
}

func (m *MockSlot) SetVolume(level float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.level = clampLevel(level)
	m.volumes = append(m.volumes, m.level)
}

func (m *MockSlot) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.level
}

func (m *MockSlot) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *MockSlot) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Stopped {
		return 0
	}
	return m.duration
}

func (m *MockSlot) Locator() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.locator
}

func (m *MockSlot) Generation() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen
}

func (m *MockSlot) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Test helpers

func (m *MockSlot) SetLoadError(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

// FailLoad makes loads of one locator fail.
func (m *MockSlot) FailLoad(locator string, err error) {
	m.mu.Lock()
	m.loadErrs[locator] = err
	m.mu.Unlock()
}

func (m *MockSlot) SetPlayError(err error) {
	m.mu.Lock()
	m.playErr = err
	m.mu.Unlock()
}

func (m *MockSlot) SetPosition(d time.Duration) {
	m.mu.Lock()
	m.position = d
	m.mu.Unlock()
}

func (m *MockSlot) SetDuration(d time.Duration) {
	m.mu.Lock()
	m.duration = d
	m.mu.Unlock()
}

// SetSourceDuration sets the duration reported after loading locator.
func (m *MockSlot) SetSourceDuration(locator string, d time.Duration) {
	m.mu.Lock()
	m.durations[locator] = d
	m.mu.Unlock()
}

func (m *MockSlot) LoadCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.loadCalls...)
}

func (m *MockSlot) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

// VolumeHistory returns every level passed to SetVolume, in order.
func (m *MockSlot) VolumeHistory() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.volumes...)
}

func (m *MockSlot) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

// SimulateEnded reports the current source as finished.
func (m *MockSlot) SimulateEnded() {
	m.simulate(Event{Kind: EventEnded})
}

// SimulateError reports the current source as failed.
func (m *MockSlot) SimulateError(err error) {
	m.simulate(Event{Kind: EventError, Err: err})
}

// SimulateStale reports an event carrying an older generation.
func (m *MockSlot) SimulateStale(kind EventKind) {
	m.mu.Lock()
	ev := Event{Slot: m, Generation: m.gen - 1, Kind: kind}
	fn := m.notify
	m.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (m *MockSlot) simulate(ev Event) {
	m.mu.Lock()
	ev.Slot = m
	ev.Generation = m.gen
	if ev.Kind == EventEnded && m.state == Playing {
		m.state = Paused
		m.position = m.duration
	}
	fn := m.notify
	m.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

// MockEqualizer is a test double for Equalizer.
type MockEqualizer struct {
	mu    sync.Mutex
	gains []float64
	gain  float64
}

func NewMockEqualizer() *MockEqualizer {
	return &MockEqualizer{gains: make([]float64, BandCount), gain: 1}
}

func (m *MockEqualizer) SetBandGain(band int, db float64) error {
	if band < 0 || band >= BandCount {
		return ErrInvalidBand
	}
	m.mu.Lock()
	m.gains[band] = max(-MaxBandGain, min(MaxBandGain, db))
	m.mu.Unlock()
	return nil
}

func (m *MockEqualizer) Gains() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.gains...)
}

func (m *MockEqualizer) SetGain(level float64) {
	m.mu.Lock()
	m.gain = clampLevel(level)
	m.mu.Unlock()
}

func (m *MockEqualizer) Gain() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gain
}

// MockOutput is a test double for Output with two mock slots.
type MockOutput struct {
	A, B *MockSlot

	mu       sync.Mutex
	listener Listener
	eq       *MockEqualizer
	eqErr    error
	mono     bool
	closed   bool
}

// NewMockOutput creates a mock output whose slots report to its listener.
func NewMockOutput() *MockOutput {
	o := &MockOutput{A: NewMockSlot("A"), B: NewMockSlot("B")}
	o.A.notify = o.dispatch
	o.B.notify = o.dispatch
	return o
}

func (o *MockOutput) dispatch(ev Event) {
	o.mu.Lock()
	fn := o.listener
	o.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (o *MockOutput) Slots() (Slot, Slot) { return o.A, o.B }

func (o *MockOutput) SetListener(fn Listener) {
	o.mu.Lock()
	o.listener = fn
	o.mu.Unlock()
}

func (o *MockOutput) Equalizer() (Equalizer, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.eqErr != nil {
		return nil, o.eqErr
	}
	if o.eq == nil {
		o.eq = NewMockEqualizer()
	}
	return o.eq, nil
}

func (o *MockOutput) SetMono(enabled bool) {
	o.mu.Lock()
	o.mono = enabled
	o.mu.Unlock()
}

func (o *MockOutput) Mono() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mono
}

func (o *MockOutput) Close() error {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
	return nil
}

// Test helpers

// EQ returns the equalizer if it has been switched on.
func (o *MockOutput) EQ() *MockEqualizer {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.eq
}

func (o *MockOutput) SetEqualizerError(err error) {
	o.mu.Lock()
	o.eqErr = err
	o.mu.Unlock()
}

func (o *MockOutput) Closed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}

// Verify mocks implement their interfaces at compile time.
var (
	_ Slot      = (*MockSlot)(nil)
	_ Equalizer = (*MockEqualizer)(nil)
	_ Output    = (*MockOutput)(nil)
)
