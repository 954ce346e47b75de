package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

// Settings are the values the user changes while listening.
type Settings struct {
	Volume    float64
	Crossfade time.Duration
	EQGains   []float64
	Mono      bool
}

func getSettings(db *sql.DB) (*Settings, error) {
	var (
		s           Settings
		crossfadeMs int64
		gains       sql.NullString
	)
	row := db.QueryRow(`SELECT volume, crossfade_ms, eq_gains, mono FROM settings WHERE id = 1`)
	err := row.Scan(&s.Volume, &crossfadeMs, &gains, &s.Mono)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nothing saved yet
	}
	if err != nil {
		return nil, err
	}
	s.Crossfade = time.Duration(crossfadeMs) * time.Millisecond

	if gains.Valid && gains.String != "" {
		if err := json.Unmarshal([]byte(gains.String), &s.EQGains); err != nil {
			// A corrupt gain list falls back to flat.
			s.EQGains = nil
		}
	}
	return &s, nil
}

func saveSettings(db *sql.DB, s Settings) error {
	var gains any
	if len(s.EQGains) > 0 {
		data, err := json.Marshal(s.EQGains)
		if err != nil {
			return err
		}
		gains = string(data)
	}

	_, err := db.Exec(`
		INSERT INTO settings (id, volume, crossfade_ms, eq_gains, mono)
		VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume,
			crossfade_ms = excluded.crossfade_ms,
			eq_gains = excluded.eq_gains,
			mono = excluded.mono
	`, s.Volume, s.Crossfade.Milliseconds(), gains, s.Mono)
	return err
}
