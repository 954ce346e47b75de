package player

import (
	"math"
	"testing"

	"github.com/gopxl/beep/v2/effects"
)

func TestLevelToVolume(t *testing.T) {
	tests := []struct {
		level float64
		want  float64
	}{
		{1, 0},
		{0.5, -1},
		{0.25, -2},
		{0, -10},
		{-1, -10},
		{2, 0},
	}

	for _, tt := range tests {
		if got := levelToVolume(tt.level); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("levelToVolume(%v) = %v, want %v", tt.level, got, tt.want)
		}
	}
}

func TestApplyLevel_SilentAtZero(t *testing.T) {
	v := &effects.Volume{Base: 2}

	applyLevel(v, 0)
	if !v.Silent {
		t.Error("level 0 should silence the stream")
	}

	applyLevel(v, 0.5)
	if v.Silent {
		t.Error("level 0.5 should not be silent")
	}
	if v.Volume != -1 {
		t.Errorf("Volume = %v, want -1", v.Volume)
	}

	applyLevel(nil, 1) // must not panic
}
