//nolint:goconst // test cases intentionally repeat strings for readability
package errmsg

import (
	"errors"
	"testing"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpPlaybackLoad,
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with operation",
			op:       OpPlaybackLoad,
			err:      errors.New("file not found"),
			expected: "Failed to load track: file not found",
		},
		{
			name:     "scan operation",
			op:       OpTracksScan,
			err:      errors.New("permission denied"),
			expected: "Failed to scan music folder: permission denied",
		},
		{
			name:     "output operation",
			op:       OpOutputOpen,
			err:      errors.New("device busy"),
			expected: "Failed to open audio output: device busy",
		},
		{
			name:     "queue operation",
			op:       OpQueueSave,
			err:      errors.New("database is locked"),
			expected: "Failed to save queue: database is locked",
		},
		{
			name:     "playback operation",
			op:       OpPlaybackStart,
			err:      errors.New("no audio device"),
			expected: "Failed to start playback: no audio device",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Format(tt.op, tt.err)
			if result != tt.expected {
				t.Errorf("Format(%q, %v) = %q, want %q", tt.op, tt.err, result, tt.expected)
			}
		})
	}
}

func TestFormatWith(t *testing.T) {
	tests := []struct {
		name     string
		op       Op
		context  string
		err      error
		expected string
	}{
		{
			name:     "nil error returns empty string",
			op:       OpTracksTags,
			context:  "song.mp3",
			err:      nil,
			expected: "",
		},
		{
			name:     "formats error with context",
			op:       OpTracksTags,
			context:  "song.mp3",
			err:      errors.New("permission denied"),
			expected: "Failed to read file tags 'song.mp3': permission denied",
		},
		{
			name:     "empty context falls back to Format",
			op:       OpTracksTags,
			context:  "",
			err:      errors.New("permission denied"),
			expected: "Failed to read file tags: permission denied",
		},
		{
			name:     "queue add with context",
			op:       OpQueueAdd,
			context:  "Blue in Green",
			err:      errors.New("track not found"),
			expected: "Failed to add to queue 'Blue in Green': track not found",
		},
		{
			name:     "scan with path context",
			op:       OpTracksScan,
			context:  "/home/user/music",
			err:      errors.New("directory not found"),
			expected: "Failed to scan music folder '/home/user/music': directory not found",
		},
		{
			name:     "cover with filename context",
			op:       OpCoverLoad,
			context:  "cover.jpg",
			err:      errors.New("unsupported format"),
			expected: "Failed to load cover art 'cover.jpg': unsupported format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FormatWith(tt.op, tt.context, tt.err)
			if result != tt.expected {
				t.Errorf("FormatWith(%q, %q, %v) = %q, want %q", tt.op, tt.context, tt.err, result, tt.expected)
			}
		})
	}
}

func TestOpConstants(t *testing.T) {
	// Verify that Op constants are non-empty and produce valid messages
	ops := []Op{
		OpPlaybackStart, OpPlaybackLoad, OpPlaybackSeek, OpOutputOpen, OpEqualizer,
		OpQueueLoad, OpQueueSave, OpQueueAdd, OpQueueRemove, OpQueueReorder,
		OpTracksScan, OpTracksMeasure, OpTracksTags, OpCoverLoad,
		OpSettingsLoad, OpSettingsSave, OpConfigLoad, OpConfigWatch,
		OpMediaKeys, OpNotify,
		OpInitialize,
	}

	testErr := errors.New("test error")

	for _, op := range ops {
		t.Run(string(op), func(t *testing.T) {
			if op == "" {
				t.Error("Op constant should not be empty")
			}

			expected := "Failed to " + string(op) + ": test error"
			if result := Format(op, testErr); result != expected {
				t.Errorf("Format = %q, want %q", result, expected)
			}
		})
	}
}
