package notify

import (
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/coflyn/flow/internal/playback"
)

const appTitle = "Flow"

// Options selects what the Announcer shows.
type Options struct {
	NowPlaying bool
	ShowCover  bool
	Timeout    time.Duration
}

// Announcer turns playback events into desktop notifications. It reads
// from a channel subscription so a slow notification daemon never holds
// up the engine.
type Announcer struct {
	notifier Notifier
	opts     Options
	log      zerolog.Logger
	sub      *playback.Subscription
	wg       sync.WaitGroup

	mu               sync.Mutex
	lastNowPlayingID uint32
}

// NewAnnouncer starts announcing track changes and notices from bus. The
// announcer owns n and closes it.
func NewAnnouncer(n Notifier, bus *playback.Bus, opts Options, log zerolog.Logger) *Announcer {
	a := &Announcer{
		notifier: n,
		opts:     opts,
		log:      log,
		sub:      bus.Listen(playback.EventTrackChange, playback.EventNotice),
	}
	a.wg.Add(1)
	go a.loop()
	return a
}

// Close stops the announcer, waits for it to finish and releases the
// notifier.
func (a *Announcer) Close() error {
	a.sub.Close()
	a.wg.Wait()
	return a.notifier.Close()
}

func (a *Announcer) loop() {
	defer a.wg.Done()
	for {
		select {
		case <-a.sub.Done():
			return
		case ev := <-a.sub.Events():
			a.handle(ev)
		}
	}
}

func (a *Announcer) handle(ev playback.Event) {
	switch ev := ev.(type) {
	case playback.TrackChange:
		if a.opts.NowPlaying {
			a.nowPlaying(ev.Track)
		}
	case playback.Notice:
		a.notice(ev)
	}
}

// nowPlaying replaces the previous now-playing notification.
func (a *Announcer) nowPlaying(t playback.Track) {
	n := Notification{
		Summary: t.DisplayTitle(),
		Body:    strings.Join(nonEmpty(t.Artist, t.Album), " · "),
		Timeout: a.opts.Timeout,
		Urgency: UrgencyLow,
	}
	if a.opts.ShowCover {
		n.Image = t.CoverURI
	}

	a.mu.Lock()
	n.Replaces = a.lastNowPlayingID
	a.mu.Unlock()

	id, err := a.notifier.Notify(n)
	if err != nil {
		a.log.Debug().Err(err).Msg("now playing notification")
		return
	}
	a.mu.Lock()
	a.lastNowPlayingID = id
	a.mu.Unlock()
}

func (a *Announcer) notice(ev playback.Notice) {
	n := Notification{
		Summary: appTitle,
		Body:    ev.Message,
		Timeout: a.opts.Timeout,
		Urgency: UrgencyNormal,
	}
	if ev.Terminal {
		n.Urgency = UrgencyCritical
	}
	if _, err := a.notifier.Notify(n); err != nil {
		a.log.Debug().Err(err).Msg("notice notification")
	}
}

func nonEmpty(parts ...string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
