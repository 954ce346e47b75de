// Package errmsg provides consistent error formatting for user-facing messages.
package errmsg

import "fmt"

// Op represents an operation that can fail.
type Op string

// Operation constants - grouped by domain.
const (
	// Playback operations
	OpPlaybackStart Op = "start playback"
	OpPlaybackLoad  Op = "load track"
	OpPlaybackSeek  Op = "seek"
	OpOutputOpen    Op = "open audio output"
	OpEqualizer     Op = "apply equalizer"

	// Queue operations
	OpQueueLoad    Op = "load queue"
	OpQueueSave    Op = "save queue"
	OpQueueAdd     Op = "add to queue"
	OpQueueRemove  Op = "remove from queue"
	OpQueueReorder Op = "reorder queue"

	// Track sources
	OpTracksScan    Op = "scan music folder"
	OpTracksMeasure Op = "read track duration"
	OpTracksTags    Op = "read file tags"
	OpCoverLoad     Op = "load cover art"

	// Settings and state
	OpSettingsLoad Op = "load settings"
	OpSettingsSave Op = "save settings"
	OpConfigLoad   Op = "load config"
	OpConfigWatch  Op = "watch config"

	// Integrations
	OpMediaKeys Op = "register media keys"
	OpNotify    Op = "send notification"

	// Initialization
	OpInitialize Op = "initialize application"
)

// Format creates a user-friendly error message.
func Format(op Op, err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}

// FormatWith creates an error message with additional context.
func FormatWith(op Op, context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Format(op, err)
	}
	return fmt.Sprintf("Failed to %s '%s': %v", op, context, err)
}
