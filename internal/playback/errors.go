package playback

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/coflyn/flow/internal/player"
)

var (
	// ErrNoSource is returned when a track has no playable source locator
	// and none could be resolved.
	ErrNoSource = errors.New("playback: track has no playable source")
	// ErrClosed is returned by operations on a closed engine.
	ErrClosed = errors.New("playback: engine closed")
)

// terminalNotice is the message emitted when the circuit breaker trips.
const terminalNotice = "Multiple playback failures. Stopping."

// isBenign reports failures that come from superseded work or a refused
// start. They never count toward the circuit breaker and never skip.
func isBenign(err error) bool {
	return errors.Is(err, player.ErrCanceled) ||
		errors.Is(err, player.ErrNotAllowed) ||
		errors.Is(err, context.Canceled)
}
