package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	MusicDir string `koanf:"music_dir"` // scanned when no paths are given; empty means cwd

	Crossfade         float64   `koanf:"crossfade" default:"1.5" validate:"gte=0,lte=12"` // seconds, 0 = gapless
	Volume            float64   `koanf:"volume" default:"1" validate:"gte=0,lte=1"`
	EQGains           []float64 `koanf:"eq_gains" validate:"omitempty,len=5,dive,gte=-12,lte=12"`
	Mono              bool      `koanf:"mono"`
	PauseOnDisconnect bool      `koanf:"pause_on_disconnect" default:"true"`
	PlayOnConnect     bool      `koanf:"play_on_connect"`

	// Short-track filter applied when building a queue from files
	AvoidShortTracks bool `koanf:"avoid_short_tracks" default:"true"`
	MinTrackSeconds  int  `koanf:"min_track_seconds" default:"30" validate:"gte=0,lte=600"`

	Notifications NotificationsConfig `koanf:"notifications"`
	Log           LogConfig           `koanf:"log"`
	Engine        EngineConfig        `koanf:"engine"`
	Queue         QueueConfig         `koanf:"queue"`
}

// NotificationsConfig controls desktop notifications.
type NotificationsConfig struct {
	Enabled    bool `koanf:"enabled" default:"true"`
	NowPlaying bool `koanf:"now_playing" default:"true"`
	ShowCover  bool `koanf:"show_cover" default:"true"`
	TimeoutMs  int  `koanf:"timeout_ms" default:"5000" validate:"gte=0,lte=60000"`
}

// LogConfig selects where logs go. Output is "stdout", "stderr" or "file".
type LogConfig struct {
	Level  string `koanf:"level" default:"warn" validate:"oneof=debug info warn warning error"`
	Output string `koanf:"output" default:"stderr" validate:"oneof=stdout stderr file"`
	File   string `koanf:"file" validate:"required_if=Output file"`
}

// EngineConfig holds playback engine timing.
type EngineConfig struct {
	SettleMs       int `koanf:"settle_ms" default:"50" validate:"gte=0,lte=1000"`
	SkipDebounceMs int `koanf:"skip_debounce_ms" default:"500" validate:"gte=0,lte=10000"`
	WatchdogMs     int `koanf:"watchdog_ms" default:"3000" validate:"gte=100,lte=60000"`
	TickMs         int `koanf:"tick_ms" default:"250" validate:"gte=10,lte=1000"`
	MaxErrors      int `koanf:"max_errors" default:"5" validate:"gte=1,lte=100"`
}

// QueueConfig holds queue settings.
type QueueConfig struct {
	HistorySize int `koanf:"history_size" default:"100" validate:"gte=1,lte=10000"`
}

// Load reads the config files in priority order, later files overriding
// earlier ones, and any extra paths after them. Missing files are skipped.
func Load(extra ...string) (*Config, error) {
	k := koanf.New(".")

	// Try config files in order of priority (last wins)
	configPaths := append(getConfigPaths(), extra...)

	for _, path := range configPaths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "load %s", path)
			}
		}
	}
	for _, path := range extra {
		if _, err := os.Stat(path); err != nil {
			return nil, errors.Wrap(err, "config file")
		}
	}

	return fromKoanf(k)
}

// Watch reloads the configuration whenever the file at path changes and
// hands the result to onChange. The returned function stops watching.
func Watch(path string, onChange func(*Config, error)) (func() error, error) {
	f := file.Provider(path)
	err := f.Watch(func(_ interface{}, err error) {
		if err != nil {
			onChange(nil, errors.Wrap(err, "watch config"))
			return
		}
		onChange(Load(path))
	})
	if err != nil {
		return nil, errors.Wrapf(err, "watch %s", path)
	}
	return f.Unwatch, nil
}

// Path returns the highest-priority config file that exists, or "".
func Path() string {
	found := ""
	for _, p := range getConfigPaths() {
		if _, err := os.Stat(p); err == nil {
			found = p
		}
	}
	return found
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	// Defaults go in first so that explicit false and zero values in the
	// files survive.
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "set defaults")
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}

	if cfg.MusicDir != "" {
		cfg.MusicDir = expandPath(cfg.MusicDir)
	}
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/flow/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "flow", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// CrossfadeDuration returns the crossfade as a duration.
func (c *Config) CrossfadeDuration() time.Duration {
	return time.Duration(c.Crossfade * float64(time.Second))
}

// MinTrackDuration returns the short-track threshold, zero when the filter
// is off.
func (c *Config) MinTrackDuration() time.Duration {
	if !c.AvoidShortTracks {
		return 0
	}
	return time.Duration(c.MinTrackSeconds) * time.Second
}

func ms(n int) time.Duration {
	return time.Duration(n) * time.Millisecond
}

// Timeout returns the notification timeout, zero meaning the server default.
func (n NotificationsConfig) Timeout() time.Duration { return ms(n.TimeoutMs) }

func (e EngineConfig) Settle() time.Duration       { return ms(e.SettleMs) }
func (e EngineConfig) SkipDebounce() time.Duration { return ms(e.SkipDebounceMs) }
func (e EngineConfig) Watchdog() time.Duration     { return ms(e.WatchdogMs) }
func (e EngineConfig) Tick() time.Duration         { return ms(e.TickMs) }
