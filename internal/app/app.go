// Package app is the composition root: it wires the audio output, the
// playback engine, the queue, persistence and the desktop integrations
// together, and exposes the line-based control surface.
package app

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/coflyn/flow/internal/config"
	"github.com/coflyn/flow/internal/errmsg"
	"github.com/coflyn/flow/internal/mpris"
	"github.com/coflyn/flow/internal/notify"
	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/player"
	"github.com/coflyn/flow/internal/queue"
	"github.com/coflyn/flow/internal/state"
	"github.com/coflyn/flow/internal/stderr"
	"github.com/coflyn/flow/internal/tracksource"
)

// ErrNoTracks is returned by Start when there is nothing to play.
var ErrNoTracks = errors.New("no playable tracks")

// Options are the per-run choices made on the command line.
type Options struct {
	// Paths are files and directories to play. When empty the saved queue
	// is restored, or the music directory scanned if there is none.
	Paths []string
	// Resume starts the restored queue right away.
	Resume  bool
	Shuffle bool
	// Repeat is "off", "all" or "one"; empty keeps the saved mode.
	Repeat    string
	Crossfade *time.Duration
	Sleep     time.Duration
	// ConfigPath is watched for changes; empty disables live reload.
	ConfigPath string
}

// Option overrides one of the collaborators New would otherwise create.
type Option func(*deps)

type deps struct {
	log       zerolog.Logger
	output    player.Output
	state     state.Interface
	notifier  notify.Notifier
	source    *tracksource.Source
	mediaKeys bool
}

// WithLogger sets the root logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *deps) { d.log = log }
}

// WithOutput replaces the speaker output.
func WithOutput(out player.Output) Option {
	return func(d *deps) { d.output = out }
}

// WithState replaces the sqlite store.
func WithState(st state.Interface) Option {
	return func(d *deps) { d.state = st }
}

// WithNotifier replaces the D-Bus notifier.
func WithNotifier(n notify.Notifier) Option {
	return func(d *deps) { d.notifier = n }
}

// WithTrackSource replaces the file track source.
func WithTrackSource(s *tracksource.Source) Option {
	return func(d *deps) { d.source = s }
}

// WithoutMediaKeys skips MPRIS registration.
func WithoutMediaKeys() Option {
	return func(d *deps) { d.mediaKeys = false }
}

// App owns every long-lived component of a player session.
type App struct {
	log  zerolog.Logger
	opts Options

	cfgMu sync.RWMutex
	cfg   *config.Config

	bus    *playback.Bus
	out    player.Output
	engine *playback.Engine
	queue  *queue.Manager
	state  state.Interface
	source *tracksource.Source
	saved  *state.QueueState

	announcer *notify.Announcer
	media     *mpris.Adapter
	unwatch   func() error
	subs      []*playback.Subscription

	ended     chan struct{}
	endOnce   sync.Once
	closeOnce sync.Once
	closeErr  error
}

// New builds the player from cfg. Nothing plays until Start.
func New(cfg *config.Config, opts Options, with ...Option) (*App, error) {
	d := deps{log: zerolog.Nop(), mediaKeys: true}
	for _, opt := range with {
		opt(&d)
	}
	log := d.log

	a := &App{
		log:   log,
		opts:  opts,
		cfg:   cfg,
		bus:   playback.NewBus(log.With().Str("component", "bus").Logger()),
		ended: make(chan struct{}),
	}

	a.out = d.output
	if a.out == nil {
		out, err := player.NewOutput()
		if err != nil {
			return nil, errors.Wrap(err, string(errmsg.OpOutputOpen))
		}
		a.out = out
	}

	a.state = d.state
	if a.state == nil {
		st, err := state.Open(log.With().Str("component", "state").Logger())
		if err != nil {
			_ = a.out.Close()
			return nil, errors.Wrap(err, string(errmsg.OpSettingsLoad))
		}
		a.state = st
	}

	a.source = d.source
	if a.source == nil {
		a.source = tracksource.New(
			tracksource.WithLogger(log.With().Str("component", "tracks").Logger()),
			tracksource.WithBaseDir(cfg.MusicDir),
			tracksource.WithCoverCache(filepath.Join(xdg.CacheHome, "flow", "covers")),
		)
	}

	a.engine = playback.NewEngine(a.out, a.bus, a.engineConfig(),
		playback.WithLogger(log.With().Str("component", "engine").Logger()),
		playback.WithResolver(a.source),
	)
	a.queue = queue.New(a.engine, a.bus,
		queue.WithLogger(log.With().Str("component", "queue").Logger()),
		queue.WithHistorySize(cfg.Queue.HistorySize),
	)

	a.subscribePersistence()
	a.subs = append(a.subs,
		a.bus.Subscribe(func(playback.Event) { a.endOnce.Do(func() { close(a.ended) }) }, playback.EventQueueEnd),
		a.bus.Subscribe(a.logNotice, playback.EventNotice),
	)

	a.startNotifications(d.notifier)
	if d.mediaKeys {
		media, err := mpris.New(a.engine, a.queue, log.With().Str("component", "mpris").Logger())
		if err != nil {
			log.Warn().Err(err).Msg(errmsg.Format(errmsg.OpMediaKeys, err))
		} else {
			a.media = media
		}
	}

	if opts.ConfigPath != "" {
		unwatch, err := config.Watch(opts.ConfigPath, a.applyConfig)
		if err != nil {
			log.Warn().Err(err).Msg(errmsg.Format(errmsg.OpConfigWatch, err))
		} else {
			a.unwatch = unwatch
		}
	}
	return a, nil
}

// engineConfig merges the config file, the saved settings and the
// command-line overrides, in increasing priority.
func (a *App) engineConfig() playback.Config {
	cfg := a.cfg
	ec := playback.Config{
		SettleDelay:       cfg.Engine.Settle(),
		SkipDebounce:      cfg.Engine.SkipDebounce(),
		Watchdog:          cfg.Engine.Watchdog(),
		TickInterval:      cfg.Engine.Tick(),
		MaxErrors:         cfg.Engine.MaxErrors,
		Crossfade:         cfg.CrossfadeDuration(),
		Volume:            cfg.Volume,
		EQGains:           cfg.EQGains,
		Mono:              cfg.Mono,
		PauseOnDisconnect: cfg.PauseOnDisconnect,
		PlayOnConnect:     cfg.PlayOnConnect,
	}

	if s, err := a.state.GetSettings(); err != nil {
		a.log.Warn().Err(err).Msg(errmsg.Format(errmsg.OpSettingsLoad, err))
	} else if s != nil {
		ec.Volume = s.Volume
		ec.Crossfade = s.Crossfade
		ec.Mono = s.Mono
		if len(s.EQGains) > 0 {
			ec.EQGains = s.EQGains
		}
	}

	saved, err := a.state.GetQueue()
	if err != nil {
		a.log.Warn().Err(err).Msg(errmsg.Format(errmsg.OpQueueLoad, err))
	} else if saved != nil {
		a.saved = saved
		ec.Mode = playback.Mode{
			Repeat:           saved.Repeat,
			Shuffle:          saved.Shuffle,
			StopAfterCurrent: saved.StopAfterCurrent,
		}
	}

	if a.opts.Crossfade != nil {
		ec.Crossfade = *a.opts.Crossfade
	}
	return ec
}

func (a *App) startNotifications(n notify.Notifier) {
	nc := a.config().Notifications
	if !nc.Enabled {
		return
	}
	if n == nil {
		var err error
		if n, err = notify.New(); err != nil {
			a.log.Warn().Err(err).Msg(errmsg.Format(errmsg.OpNotify, err))
			return
		}
	}
	a.announcer = notify.NewAnnouncer(n, a.bus, notify.Options{
		NowPlaying: nc.NowPlaying,
		ShowCover:  nc.ShowCover,
		Timeout:    nc.Timeout(),
	}, a.log.With().Str("component", "notify").Logger())
}

// Start fills the queue and applies the command-line mode flags. Paths
// replace the queue and start playing; otherwise the saved queue comes
// back, playing only if Resume is set.
func (a *App) Start(ctx context.Context) error {
	restored := false
	if len(a.opts.Paths) == 0 && a.saved != nil && len(a.saved.Tracks) > 0 {
		a.queue.Restore(queue.Snapshot{
			Tracks:   a.saved.Tracks,
			Original: a.saved.Original,
			Index:    a.saved.CurrentIndex,
		})
		restored = true
	}

	if err := a.applyModeFlags(); err != nil {
		return err
	}
	if a.opts.Sleep > 0 {
		a.engine.StartSleepTimer(a.opts.Sleep)
	}

	if restored {
		a.log.Info().Int("tracks", a.queue.Len()).Msg("restored queue")
		if a.opts.Resume {
			a.queue.PlayCurrent()
		}
		return nil
	}

	paths := a.opts.Paths
	if len(paths) == 0 {
		dir := a.config().MusicDir
		if dir == "" {
			dir = "."
		}
		paths = []string{dir}
	}
	tracks, err := a.collect(ctx, paths...)
	if err != nil {
		return err
	}
	a.queue.PlayAll(tracks, 0)
	return nil
}

func (a *App) applyModeFlags() error {
	if a.opts.Repeat != "" {
		r, err := playback.ParseRepeatMode(a.opts.Repeat)
		if err != nil {
			return err
		}
		a.engine.SetRepeat(r)
	}
	if a.opts.Shuffle {
		a.engine.SetShuffle(true)
	}
	return nil
}

// collect scans paths and drops short tracks.
func (a *App) collect(ctx context.Context, paths ...string) ([]playback.Track, error) {
	tracks, err := a.source.Collect(ctx, paths...)
	if err != nil {
		return nil, errors.Wrap(err, string(errmsg.OpTracksScan))
	}
	tracks = tracksource.WithoutShort(tracks, a.config().MinTrackDuration())
	if len(tracks) == 0 {
		return nil, ErrNoTracks
	}
	return tracks, nil
}

// Run blocks until ctx is canceled or the queue runs out, forwarding
// captured audio-backend output to the log meanwhile.
func (a *App) Run(ctx context.Context) error {
	captured := stderr.Messages
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-a.ended:
			a.log.Info().Msg("queue finished")
			return nil
		case line, ok := <-captured:
			if !ok {
				captured = nil
				continue
			}
			a.log.Debug().Str("source", "stderr").Msg(line)
		}
	}
}

// Ended is closed when the queue runs out with repeat off.
func (a *App) Ended() <-chan struct{} { return a.ended }

// Engine returns the playback engine.
func (a *App) Engine() *playback.Engine { return a.engine }

// Queue returns the queue manager.
func (a *App) Queue() *queue.Manager { return a.queue }

// Bus returns the event bus.
func (a *App) Bus() *playback.Bus { return a.bus }

func (a *App) config() *config.Config {
	a.cfgMu.RLock()
	defer a.cfgMu.RUnlock()
	return a.cfg
}

// applyConfig pushes a reloaded config into the running engine. Values
// that only matter at startup are picked up on the next run.
func (a *App) applyConfig(cfg *config.Config, err error) {
	if err != nil {
		a.log.Warn().Err(err).Msg(errmsg.Format(errmsg.OpConfigLoad, err))
		return
	}
	a.cfgMu.Lock()
	prev := a.cfg
	a.cfg = cfg
	a.cfgMu.Unlock()

	if cfg.Crossfade != prev.Crossfade {
		a.engine.SetCrossfade(cfg.CrossfadeDuration())
	}
	if cfg.Volume != prev.Volume {
		a.engine.SetVolume(cfg.Volume)
	}
	if cfg.Mono != prev.Mono {
		a.SetMono(cfg.Mono)
	}
	a.engine.SetDevicePolicy(cfg.PauseOnDisconnect, cfg.PlayOnConnect)
	for band, g := range cfg.EQGains {
		if band < len(prev.EQGains) && prev.EQGains[band] == g {
			continue
		}
		if err := a.engine.SetEQGain(band, g); err != nil {
			a.log.Warn().Err(err).Int("band", band).Msg(errmsg.Format(errmsg.OpEqualizer, err))
			break
		}
	}
	a.log.Info().Msg("config reloaded")
}

// SetMono toggles the downmix and saves it, since the engine reports no
// event for it.
func (a *App) SetMono(enabled bool) {
	a.engine.SetMono(enabled)
	a.saveSettings()
}

func (a *App) logNotice(ev playback.Event) {
	n, ok := ev.(playback.Notice)
	if !ok {
		return
	}
	if n.Terminal {
		a.log.Error().Msg(n.Message)
		return
	}
	a.log.Warn().Msg(n.Message)
}

// Close saves the session and releases everything. It is safe to call
// more than once.
func (a *App) Close() error {
	a.closeOnce.Do(func() {
		var errs error
		if a.unwatch != nil {
			errs = errors.CombineErrors(errs, a.unwatch())
		}
		if a.media != nil {
			errs = errors.CombineErrors(errs, a.media.Close())
		}
		if a.announcer != nil {
			errs = errors.CombineErrors(errs, a.announcer.Close())
		}

		// Final snapshot goes out before the subscriptions are dropped.
		a.saveQueue()
		a.saveSettings()
		for _, s := range a.subs {
			s.Close()
		}
		a.queue.Close()
		errs = errors.CombineErrors(errs, a.engine.Close())
		errs = errors.CombineErrors(errs, a.state.Close())
		errs = errors.CombineErrors(errs, a.out.Close())
		a.bus.Close()
		a.closeErr = errs
	})
	return a.closeErr
}
