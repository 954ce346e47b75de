package app

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/creasty/defaults"
	"github.com/stretchr/testify/require"

	"github.com/coflyn/flow/internal/config"
	"github.com/coflyn/flow/internal/notify"
	"github.com/coflyn/flow/internal/player"
	"github.com/coflyn/flow/internal/state"
	"github.com/coflyn/flow/internal/tracksource"
)

const trackLength = 10 * time.Second

// library is a folder of fake music files. Files named "short*" measure at
// five seconds, the rest at trackLength.
type library struct {
	dir string
}

func newLibrary(t *testing.T, names ...string) *library {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("not really audio"), 0o644))
	}
	return &library{dir: dir}
}

func (l *library) path(name string) string {
	return filepath.Join(l.dir, name)
}

func measure(locator string) (time.Duration, error) {
	if strings.HasPrefix(filepath.Base(locator), "short") {
		return 5 * time.Second, nil
	}
	return trackLength, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	require.NoError(t, defaults.Set(cfg))
	cfg.Notifications.Enabled = false
	cfg.MinTrackSeconds = 8
	return cfg
}

type fixture struct {
	app   *App
	out   *player.MockOutput
	state *state.Mock
	lib   *library
}

// newFixture builds an app over mock output and state. Every file in lib
// lasts trackLength on both slots.
func newFixture(t *testing.T, cfg *config.Config, opts Options, lib *library, st *state.Mock, extra ...Option) *fixture {
	t.Helper()
	out := player.NewMockOutput()
	entries, err := os.ReadDir(lib.dir)
	require.NoError(t, err)
	for _, e := range entries {
		for _, s := range []*player.MockSlot{out.A, out.B} {
			s.SetSourceDuration(lib.path(e.Name()), trackLength)
		}
	}

	with := append([]Option{
		WithOutput(out),
		WithState(st),
		WithTrackSource(tracksource.New(tracksource.WithMeasurer(measure))),
		WithoutMediaKeys(),
	}, extra...)
	a, err := New(cfg, opts, with...)
	require.NoError(t, err)
	return &fixture{app: a, out: out, state: st, lib: lib}
}

// active returns the mock slot that is currently sounding.
func (f *fixture) active() *player.MockSlot {
	if f.out.B.State() == player.Playing {
		return f.out.B
	}
	return f.out.A
}

func (f *fixture) currentTitle() string {
	if t := f.app.Engine().CurrentTrack(); t != nil {
		return t.Title
	}
	return ""
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (f *fakeNotifier) Notify(n notify.Notification) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, n)
	return uint32(len(f.sent)), nil
}

func (f *fakeNotifier) Dismiss(uint32) error { return nil }
func (f *fakeNotifier) Close() error         { return nil }

func (f *fakeNotifier) titles() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, n := range f.sent {
		out[i] = n.Summary
	}
	return out
}
