// Package state persists settings and the play queue in a sqlite database
// under the XDG data directory.
package state

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite" // SQLite driver
)

const (
	appName      = "flow"
	dbFileName   = "flow.db"
	saveDebounce = 500 * time.Millisecond
)

// Manager owns the database. Saves are debounced: only the last value
// written within saveDebounce reaches the disk.
type Manager struct {
	db  *sql.DB
	log zerolog.Logger

	saveMu          sync.Mutex
	queueTimer      *time.Timer
	pendingQueue    *QueueState
	settingsTimer   *time.Timer
	pendingSettings *Settings
}

// Open opens the database in the user's data directory.
func Open(log zerolog.Logger) (*Manager, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, errors.Wrap(err, "locate database")
	}
	return OpenPath(dbPath, log)
}

// OpenPath opens (creating if needed) the database at path.
func OpenPath(dbPath string, log zerolog.Logger) (*Manager, error) {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}
	// One writer; also keeps an in-memory database on a single connection.
	db.SetMaxOpenConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "init schema")
	}

	return &Manager{db: db, log: log.With().Str("component", "state").Logger()}, nil
}

// Close writes anything pending and closes the database.
func (m *Manager) Close() error {
	flushErr := m.Flush()
	return errors.CombineErrors(flushErr, m.db.Close())
}

// Flush writes pending saves immediately.
func (m *Manager) Flush() error {
	m.saveMu.Lock()
	if m.queueTimer != nil {
		m.queueTimer.Stop()
	}
	if m.settingsTimer != nil {
		m.settingsTimer.Stop()
	}
	queue, settings := m.pendingQueue, m.pendingSettings
	m.pendingQueue, m.pendingSettings = nil, nil
	m.saveMu.Unlock()

	var err error
	if queue != nil {
		err = errors.CombineErrors(err, saveQueue(context.Background(), m.db, *queue))
	}
	if settings != nil {
		err = errors.CombineErrors(err, saveSettings(m.db, *settings))
	}
	return err
}

func (m *Manager) DB() *sql.DB {
	return m.db
}

// GetQueue returns the saved queue, or nil if none was saved.
func (m *Manager) GetQueue() (*QueueState, error) {
	if err := m.Flush(); err != nil {
		return nil, err
	}
	return getQueue(m.db)
}

// SaveQueue schedules a queue save.
func (m *Manager) SaveQueue(state QueueState) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pendingQueue = &state

	if m.queueTimer != nil {
		m.queueTimer.Stop()
	}

	m.queueTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pendingQueue
		m.pendingQueue = nil
		m.saveMu.Unlock()

		if pending != nil {
			if err := saveQueue(context.Background(), m.db, *pending); err != nil {
				m.log.Warn().Err(err).Msg("save queue")
			}
		}
	})
}

// GetSettings returns the saved settings, or nil if none were saved.
func (m *Manager) GetSettings() (*Settings, error) {
	if err := m.Flush(); err != nil {
		return nil, err
	}
	return getSettings(m.db)
}

// SaveSettings schedules a settings save.
func (m *Manager) SaveSettings(s Settings) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pendingSettings = &s

	if m.settingsTimer != nil {
		m.settingsTimer.Stop()
	}

	m.settingsTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pendingSettings
		m.pendingSettings = nil
		m.saveMu.Unlock()

		if pending != nil {
			if err := saveSettings(m.db, *pending); err != nil {
				m.log.Warn().Err(err).Msg("save settings")
			}
		}
	})
}

func getDBPath() (string, error) {
	return xdg.DataFile(filepath.Join(appName, dbFileName))
}
