package app

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"

	"github.com/coflyn/flow/internal/app/handler"
	"github.com/coflyn/flow/internal/errmsg"
	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/player"
)

const (
	volumeStep = 0.05
	seekStep   = 10 * time.Second
)

var (
	// ErrQuit is returned by HandleCommand for the quit command.
	ErrQuit = errors.New("quit")
	// ErrUnknownCommand is returned for input no handler recognizes.
	ErrUnknownCommand = errors.New("unknown command")
	errUsage          = errors.New("usage")
)

const helpText = `commands:
  space, pp          toggle play/pause      play, pause
  n, p               next, previous         >, <  seek ±10s
  seek POS           seek to 1:30, 90 or +10s
  +, -               volume ±5%             vol N   volume in percent
  x SECONDS          crossfade (0 = gapless)
  eq [BAND DB]       show or set an equalizer band (0-4, ±12 dB)
  mono               toggle mono downmix
  s, r, a            shuffle, repeat cycle, stop after current
  sleep DUR|off      sleep timer (30m, 1h)
  ls, hist           queue, history
  goto N, rm N       play or remove entry N
  mv FROM TO         move an upcoming entry
  add PATH...        append files or folders
  next PATH          play a file after the current track
  clear              drop upcoming tracks
  st                 status
  q                  quit`

// ReadCommands runs each line of r as a command and writes the replies to
// w. It returns ErrQuit when asked to quit and nil at end of input.
func (a *App) ReadCommands(ctx context.Context, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil //nolint:nilerr // shutting down
		}
		reply, err := a.HandleCommand(ctx, scanner.Text())
		switch {
		case errors.Is(err, ErrQuit):
			return err
		case err != nil:
			fmt.Fprintln(w, err)
		case reply != "":
			fmt.Fprintln(w, reply)
		}
	}
	return scanner.Err()
}

// HandleCommand runs one command line and returns what to show the user.
func (a *App) HandleCommand(ctx context.Context, line string) (string, error) {
	fields := strings.Fields(line)
	cmd := ""
	var args []string
	if len(fields) > 0 {
		cmd, args = strings.ToLower(fields[0]), fields[1:]
	}

	r := handler.Chain(
		func() handler.Result { return a.handlePlayback(cmd, args) },
		func() handler.Result { return a.handleSound(cmd, args) },
		func() handler.Result { return a.handleMode(cmd, args) },
		func() handler.Result { return a.handleQueue(ctx, cmd, args) },
		func() handler.Result { return a.handleMisc(cmd) },
	)
	if !r.Handled {
		return "", errors.Wrapf(ErrUnknownCommand, "%q (h for help)", cmd)
	}
	return r.Reply, r.Err
}

func (a *App) handlePlayback(cmd string, args []string) handler.Result {
	switch cmd {
	case "", "space", "pp", "toggle":
		if a.engine.CurrentTrack() == nil {
			a.queue.PlayCurrent()
		} else {
			a.engine.TogglePlay()
		}
		return handler.HandledNoReply
	case "play":
		if a.engine.CurrentTrack() == nil {
			a.queue.PlayCurrent()
		} else {
			a.engine.Resume()
		}
		return handler.HandledNoReply
	case "pause":
		a.engine.Pause()
		return handler.HandledNoReply
	case "n", "next":
		if len(args) > 0 {
			// "next PATH" is the queue insert command.
			return handler.NotHandled
		}
		a.queue.PlayNext()
		return handler.HandledNoReply
	case "p", "prev":
		a.queue.PlayPrev()
		return handler.HandledNoReply
	case ">":
		a.engine.SeekBy(seekStep)
		return handler.HandledNoReply
	case "<":
		a.engine.SeekBy(-seekStep)
		return handler.HandledNoReply
	case "seek":
		if len(args) != 1 {
			return handler.Failed(errors.Wrap(errUsage, "seek POS"))
		}
		pos, relative, err := parsePosition(args[0])
		if err != nil {
			return handler.Failed(errors.Wrap(err, string(errmsg.OpPlaybackSeek)))
		}
		if relative {
			a.engine.SeekBy(pos)
		} else {
			a.engine.Seek(pos)
		}
		return handler.HandledNoReply
	}
	return handler.NotHandled
}

func (a *App) handleSound(cmd string, args []string) handler.Result {
	switch cmd {
	case "+", "=":
		a.engine.SetVolume(a.engine.Volume() + volumeStep)
		return handler.Handled(fmt.Sprintf("volume %s", percent(a.engine.Volume())))
	case "-":
		a.engine.SetVolume(a.engine.Volume() - volumeStep)
		return handler.Handled(fmt.Sprintf("volume %s", percent(a.engine.Volume())))
	case "vol", "volume":
		if len(args) != 1 {
			return handler.Handled(fmt.Sprintf("volume %s", percent(a.engine.Volume())))
		}
		n, err := strconv.ParseFloat(strings.TrimSuffix(args[0], "%"), 64)
		if err != nil {
			return handler.Failed(errors.Wrap(errUsage, "vol 0-100"))
		}
		a.engine.SetVolume(n / 100)
		return handler.Handled(fmt.Sprintf("volume %s", percent(a.engine.Volume())))
	case "x", "crossfade":
		if len(args) != 1 {
			return handler.Handled(fmt.Sprintf("crossfade %s", a.engine.Crossfade()))
		}
		secs, err := strconv.ParseFloat(args[0], 64)
		if err != nil || secs < 0 {
			return handler.Failed(errors.Wrap(errUsage, "x SECONDS"))
		}
		a.engine.SetCrossfade(time.Duration(secs * float64(time.Second)))
		return handler.Handled(fmt.Sprintf("crossfade %s", a.engine.Crossfade()))
	case "eq":
		if len(args) == 0 {
			return handler.Handled(formatGains(a.engine.EQGains()))
		}
		if len(args) != 2 {
			return handler.Failed(errors.Wrap(errUsage, "eq BAND DB"))
		}
		band, err1 := strconv.Atoi(args[0])
		gain, err2 := strconv.ParseFloat(args[1], 64)
		if err1 != nil || err2 != nil {
			return handler.Failed(errors.Wrap(errUsage, "eq BAND DB"))
		}
		if err := a.engine.SetEQGain(band, gain); err != nil {
			return handler.Failed(errors.Wrap(err, string(errmsg.OpEqualizer)))
		}
		return handler.Handled(formatGains(a.engine.EQGains()))
	case "mono":
		a.SetMono(!a.engine.Mono())
		return handler.Handled(onOff("mono", a.engine.Mono()))
	}
	return handler.NotHandled
}

func (a *App) handleMode(cmd string, args []string) handler.Result {
	switch cmd {
	case "s", "shuffle":
		return handler.Handled(formatMode(a.queue.ToggleShuffle()))
	case "r", "repeat":
		return handler.Handled(formatMode(a.queue.ToggleRepeat()))
	case "a", "stop-after":
		return handler.Handled(formatMode(a.queue.ToggleStopAfterCurrent()))
	case "sleep":
		if len(args) == 0 {
			if left := a.engine.SleepRemaining(); left > 0 {
				return handler.Handled("sleep in " + formatDuration(left))
			}
			return handler.Handled("sleep off")
		}
		if args[0] == "off" {
			a.engine.StopSleepTimer()
			return handler.Handled("sleep off")
		}
		d, err := time.ParseDuration(args[0])
		if err != nil || d <= 0 {
			return handler.Failed(errors.Wrap(errUsage, "sleep 30m|off"))
		}
		a.engine.StartSleepTimer(d)
		return handler.Handled("sleep in " + formatDuration(d))
	}
	return handler.NotHandled
}

func (a *App) handleQueue(ctx context.Context, cmd string, args []string) handler.Result {
	switch cmd {
	case "ls", "queue":
		return handler.Handled(formatQueue(a.queue.Tracks(), a.queue.CurrentIndex()))
	case "hist", "history":
		return handler.Handled(formatQueue(a.queue.History(), -1))
	case "goto":
		n, ok := entry(args)
		if !ok {
			return handler.Failed(errors.Wrap(errUsage, "goto N"))
		}
		if err := a.queue.PlayIndex(n); err != nil {
			return handler.Failed(err)
		}
		return handler.HandledNoReply
	case "rm":
		n, ok := entry(args)
		if !ok {
			return handler.Failed(errors.Wrap(errUsage, "rm N"))
		}
		if err := a.queue.RemoveAt(n); err != nil {
			return handler.Failed(errors.Wrap(err, string(errmsg.OpQueueRemove)))
		}
		return handler.HandledNoReply
	case "mv":
		if len(args) != 2 {
			return handler.Failed(errors.Wrap(errUsage, "mv FROM TO"))
		}
		from, ok1 := entry(args[:1])
		to, ok2 := entry(args[1:])
		if !ok1 || !ok2 {
			return handler.Failed(errors.Wrap(errUsage, "mv FROM TO"))
		}
		if err := a.queue.Reorder(from, to); err != nil {
			return handler.Failed(errors.Wrap(err, string(errmsg.OpQueueReorder)))
		}
		return handler.HandledNoReply
	case "add":
		if len(args) == 0 {
			return handler.Failed(errors.Wrap(errUsage, "add PATH..."))
		}
		tracks, err := a.collect(ctx, args...)
		if err != nil {
			return handler.Failed(errors.Wrap(err, string(errmsg.OpQueueAdd)))
		}
		a.queue.Add(tracks...)
		return handler.Handled(fmt.Sprintf("added %d tracks", len(tracks)))
	case "next":
		tracks, err := a.collect(ctx, args...)
		if err != nil {
			return handler.Failed(errors.Wrap(err, string(errmsg.OpQueueAdd)))
		}
		// Inserting in reverse keeps the given order after the current track.
		for _, t := range slices.Backward(tracks) {
			a.queue.InsertNext(t)
		}
		return handler.Handled(fmt.Sprintf("playing %d tracks next", len(tracks)))
	case "clear":
		a.queue.ClearUpcoming()
		return handler.HandledNoReply
	}
	return handler.NotHandled
}

func (a *App) handleMisc(cmd string) handler.Result {
	switch cmd {
	case "st", "status":
		return handler.Handled(formatStatus(a.engine.Status()))
	case "h", "help", "?":
		return handler.Handled(helpText)
	case "q", "quit", "exit":
		return handler.Failed(ErrQuit)
	}
	return handler.NotHandled
}

// entry parses a single 1-based queue position into an index.
func entry(args []string) (int, bool) {
	if len(args) != 1 {
		return 0, false
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 {
		return 0, false
	}
	return n - 1, true
}

// parsePosition accepts m:ss, h:mm:ss, plain seconds and Go durations. A
// leading sign makes the position relative.
func parsePosition(s string) (time.Duration, bool, error) {
	relative := strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-")
	sign := time.Duration(1)
	if strings.HasPrefix(s, "-") {
		sign = -1
	}
	body := strings.TrimLeft(s, "+-")

	if strings.Contains(body, ":") {
		var total time.Duration
		for _, part := range strings.Split(body, ":") {
			n, err := strconv.Atoi(part)
			if err != nil || n < 0 {
				return 0, false, errors.Newf("invalid position %q", s)
			}
			total = total*60 + time.Duration(n)*time.Second
		}
		return sign * total, relative, nil
	}
	if secs, err := strconv.ParseFloat(body, 64); err == nil && secs >= 0 {
		return sign * time.Duration(secs*float64(time.Second)), relative, nil
	}
	d, err := time.ParseDuration(body)
	if err != nil || d < 0 {
		return 0, false, errors.Newf("invalid position %q", s)
	}
	return sign * d, relative, nil
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	sec := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func onOff(name string, on bool) string {
	if on {
		return name + " on"
	}
	return name + " off"
}

func formatMode(m playback.Mode) string {
	return fmt.Sprintf("%s, repeat %s, %s",
		onOff("shuffle", m.Shuffle), strings.ToLower(m.Repeat.String()), onOff("stop after current", m.StopAfterCurrent))
}

func formatGains(gains []float64) string {
	if !slices.ContainsFunc(gains, func(g float64) bool { return g != 0 }) {
		return "eq flat"
	}
	parts := make([]string, len(gains))
	for i, g := range gains {
		parts[i] = fmt.Sprintf("%d:%s %+.1fdB", i, bandLabel(i), g)
	}
	return "eq " + strings.Join(parts, "  ")
}

func bandLabel(band int) string {
	if band < 0 || band >= player.BandCount {
		return "?"
	}
	f := player.BandFrequencies[band]
	if f >= 1000 {
		return fmt.Sprintf("%gk", f/1000)
	}
	return fmt.Sprintf("%g", f)
}

func formatTrack(t playback.Track) string {
	if t.Artist == "" {
		return t.DisplayTitle()
	}
	return t.Artist + " - " + t.DisplayTitle()
}

func formatQueue(tracks []playback.Track, current int) string {
	if len(tracks) == 0 {
		return "(empty)"
	}
	lines := lo.Map(tracks, func(t playback.Track, i int) string {
		marker := "  "
		if i == current {
			marker = "> "
		}
		line := fmt.Sprintf("%s%3d. %s", marker, i+1, formatTrack(t))
		if t.Duration > 0 {
			line += " (" + formatDuration(t.Duration) + ")"
		}
		return line
	})
	return strings.Join(lines, "\n")
}

func formatStatus(s playback.Status) string {
	if s.Track == nil {
		return fmt.Sprintf("[%s] nothing playing, volume %s", strings.ToLower(s.State.String()), percent(s.Volume))
	}
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s  %s/%s  volume %s",
		strings.ToLower(s.State.String()), formatTrack(*s.Track),
		formatDuration(s.Position), formatDuration(s.Duration), percent(s.Volume))
	if s.Mode.Shuffle {
		b.WriteString("  shuffle")
	}
	if s.Mode.Repeat != playback.RepeatOff {
		b.WriteString("  repeat " + strings.ToLower(s.Mode.Repeat.String()))
	}
	if s.Mode.StopAfterCurrent {
		b.WriteString("  stop after current")
	}
	if s.SleepRemaining > 0 {
		b.WriteString("  sleep " + formatDuration(s.SleepRemaining))
	}
	return b.String()
}
