package state

import (
	"context"
	"database/sql"
	"errors"
	"time"

	dbutil "github.com/coflyn/flow/internal/db"
	"github.com/coflyn/flow/internal/playback"
)

const (
	listPlay     = "play"
	listOriginal = "original"
)

// QueueState represents the saved queue state. Original is the unshuffled
// order and is nil when the queue was not shuffled.
type QueueState struct {
	CurrentIndex     int
	Repeat           playback.RepeatMode
	Shuffle          bool
	StopAfterCurrent bool
	Tracks           []playback.Track
	Original         []playback.Track
}

func getQueue(db *sql.DB) (*QueueState, error) {
	// Get queue state
	var (
		currentIndex, repeatMode int
		shuffle, stopAfter       bool
	)
	row := db.QueryRow(`SELECT current_index, repeat_mode, shuffle, stop_after_current FROM queue_state WHERE id = 1`)
	err := row.Scan(&currentIndex, &repeatMode, &shuffle, &stopAfter)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // no saved queue is not an error
	}
	if err != nil {
		return nil, err
	}

	tracks, err := getQueueTracks(db, listPlay)
	if err != nil {
		return nil, err
	}
	original, err := getQueueTracks(db, listOriginal)
	if err != nil {
		return nil, err
	}

	return &QueueState{
		CurrentIndex:     currentIndex,
		Repeat:           playback.RepeatMode(repeatMode),
		Shuffle:          shuffle,
		StopAfterCurrent: stopAfter,
		Tracks:           tracks,
		Original:         original,
	}, nil
}

func getQueueTracks(db *sql.DB, list string) ([]playback.Track, error) {
	rows, err := db.Query(`
		SELECT track_id, path, title, artist, album, duration_ms, cover
		FROM queue_tracks
		WHERE list = ?
		ORDER BY position
	`, list)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []playback.Track
	for rows.Next() {
		var t playback.Track
		var title, artist, album, cover sql.NullString
		var duration sql.NullInt64

		err := rows.Scan(&t.ID, &t.SourceURI, &title, &artist, &album, &duration, &cover)
		if err != nil {
			return nil, err
		}

		t.Title = dbutil.NullStringValue(title)
		t.Artist = dbutil.NullStringValue(artist)
		t.Album = dbutil.NullStringValue(album)
		t.CoverURI = dbutil.NullStringValue(cover)
		t.Duration = time.Duration(dbutil.NullInt64Value(duration)) * time.Millisecond
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

func saveQueue(ctx context.Context, sqlDB *sql.DB, state QueueState) error {
	return dbutil.WithTx(ctx, sqlDB, func(tx *sql.Tx) error {
		// Clear existing queue
		if _, err := tx.Exec(`DELETE FROM queue_tracks`); err != nil {
			return err
		}

		// Save queue state
		_, err := tx.Exec(`
			INSERT INTO queue_state (id, current_index, repeat_mode, shuffle, stop_after_current)
			VALUES (1, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index,
				repeat_mode = excluded.repeat_mode,
				shuffle = excluded.shuffle,
				stop_after_current = excluded.stop_after_current
		`, state.CurrentIndex, int(state.Repeat), state.Shuffle, state.StopAfterCurrent)
		if err != nil {
			return err
		}

		// Insert tracks
		stmt, err := tx.Prepare(`
			INSERT INTO queue_tracks (list, position, track_id, path, title, artist, album, duration_ms, cover)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		insert := func(list string, tracks []playback.Track) error {
			for i, t := range tracks {
				_, err := stmt.Exec(list, i, t.ID, t.SourceURI,
					dbutil.NullString(t.Title), dbutil.NullString(t.Artist), dbutil.NullString(t.Album),
					dbutil.NullInt64(t.Duration.Milliseconds()), dbutil.NullString(t.CoverURI))
				if err != nil {
					return err
				}
			}
			return nil
		}
		if err := insert(listPlay, state.Tracks); err != nil {
			return err
		}
		return insert(listOriginal, state.Original)
	})
}
