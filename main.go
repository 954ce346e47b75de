package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/coflyn/flow/internal/app"
	"github.com/coflyn/flow/internal/config"
	"github.com/coflyn/flow/internal/errmsg"
	"github.com/coflyn/flow/internal/logger"
	"github.com/coflyn/flow/internal/playback"
	"github.com/coflyn/flow/internal/stderr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		stderr.WriteOriginal("flow: " + err.Error() + "\n")
		os.Exit(1)
	}
}

type flags struct {
	shuffle    bool
	repeat     string
	crossfade  float64
	sleep      time.Duration
	configPath string
	resume     bool
}

// opError renders a failure the way the player reports errors to users.
type opError struct {
	op  errmsg.Op
	err error
}

func (e *opError) Error() string { return errmsg.Format(e.op, e.err) }
func (e *opError) Unwrap() error { return e.err }

func newRootCmd() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "flow [paths...]",
		Short: "Offline music player with crossfade and gapless playback",
		Long: `Plays the given files and folders, or picks up the saved queue when
none are given. Type commands on stdin while it plays; h lists them.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("crossfade") && (f.crossfade < 0 || f.crossfade > playback.MaxCrossfade.Seconds()) {
				return errors.Newf("--crossfade must be between 0 and %g seconds", playback.MaxCrossfade.Seconds())
			}
			if _, err := playback.ParseRepeatMode(f.repeat); err != nil {
				return errors.Wrap(err, "--repeat")
			}
			if f.sleep < 0 {
				return errors.New("--sleep must be positive")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, f)
		},
	}

	fl := cmd.Flags()
	fl.BoolVarP(&f.shuffle, "shuffle", "s", false, "shuffle the queue")
	fl.StringVarP(&f.repeat, "repeat", "r", "", "repeat mode: off, all or one")
	fl.Float64VarP(&f.crossfade, "crossfade", "x", 0, "crossfade in seconds, 0 for gapless (default from config)")
	fl.DurationVar(&f.sleep, "sleep", 0, "pause after this long, e.g. 45m")
	fl.StringVarP(&f.configPath, "config", "c", "", "config file to load after the default ones")
	fl.BoolVar(&f.resume, "resume", false, "start playing the saved queue right away")
	return cmd
}

func run(cmd *cobra.Command, args []string, f flags) error {
	// Capture C library noise before the audio backend starts.
	if err := stderr.Start(); err != nil {
		fmt.Fprintln(os.Stderr, "flow: stderr capture unavailable:", err)
	}
	defer stderr.Stop()

	var extra []string
	if f.configPath != "" {
		extra = append(extra, f.configPath)
	}
	cfg, err := config.Load(extra...)
	if err != nil {
		return &opError{errmsg.OpConfigLoad, err}
	}

	log, closer, err := logger.Init(logger.Config{
		Output: cfg.Log.Output,
		Level:  cfg.Log.Level,
		File:   cfg.Log.File,
		Writer: stderr.Original(),
	})
	if err != nil {
		return &opError{errmsg.OpInitialize, err}
	}
	defer closer.Close()

	opts := app.Options{
		Paths:      args,
		Resume:     f.resume,
		Shuffle:    f.shuffle,
		Repeat:     f.repeat,
		Sleep:      f.sleep,
		ConfigPath: f.configPath,
	}
	if opts.ConfigPath == "" {
		opts.ConfigPath = config.Path()
	}
	if cmd.Flags().Changed("crossfade") {
		d := time.Duration(f.crossfade * float64(time.Second))
		opts.Crossfade = &d
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a, err := app.New(cfg, opts, app.WithLogger(log))
	if err != nil {
		return &opError{errmsg.OpInitialize, err}
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn().Err(err).Msg("shutdown")
		}
	}()

	if err := a.Start(ctx); err != nil {
		return &opError{errmsg.OpPlaybackStart, err}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "flow: type h for help")
	go func() {
		if err := a.ReadCommands(ctx, cmd.InOrStdin(), out); errors.Is(err, app.ErrQuit) {
			cancel()
		}
	}()
	return a.Run(ctx)
}
