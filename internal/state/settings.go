package state

import (
	"database/sql"
	"errors"
	"time"
)

// Settings are the player preferences restored on the next launch.
type Settings struct {
	Volume float64
	Loops  int
}

// GetSettings returns the saved settings, or nil if none were saved yet.
func (m *Manager) GetSettings() (*Settings, error) {
	return getSettings(m.db)
}

// SaveSettings writes s immediately, replacing any queued save.
func (m *Manager) SaveSettings(s Settings) error {
	m.saveMu.Lock()
	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}
	m.pending = nil
	m.saveMu.Unlock()

	return saveSettings(m.db, s)
}

// QueueSettings saves s after a short quiet period. Repeated calls, such
// as a volume being dragged, collapse into one write.
func (m *Manager) QueueSettings(s Settings) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()

	m.pending = &s

	if m.saveTimer != nil {
		m.saveTimer.Stop()
	}

	m.saveTimer = time.AfterFunc(saveDebounce, func() {
		m.saveMu.Lock()
		pending := m.pending
		m.pending = nil
		m.saveMu.Unlock()

		if pending != nil {
			_ = saveSettings(m.db, *pending)
		}
	})
}

func getSettings(db *sql.DB) (*Settings, error) {
	var s Settings
	row := db.QueryRow(`SELECT volume, loops FROM settings WHERE id = 1`)
	err := row.Scan(&s.Volume, &s.Loops)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil //nolint:nilnil // nil means nothing saved yet
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func saveSettings(db *sql.DB, s Settings) error {
	_, err := db.Exec(`
		INSERT INTO settings (id, volume, loops)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			volume = excluded.volume,
			loops = excluded.loops
	`, s.Volume, s.Loops)
	return err
}
