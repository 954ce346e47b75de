//go:build !linux

package mpris

import "github.com/rs/zerolog"

// Adapter does nothing outside Linux; there is no session bus to export
// the player on.
type Adapter struct{}

func New(_ Player, _ Queue, log zerolog.Logger) (*Adapter, error) {
	log.Debug().Msg("mpris unavailable on this platform")
	return &Adapter{}, nil
}

func (*Adapter) Close() error { return nil }
