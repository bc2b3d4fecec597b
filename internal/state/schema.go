package state

import (
	"database/sql"
)

const currentSchemaVersion = 2

func initSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			volume REAL NOT NULL DEFAULT 1.0,
			loops INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS play_history (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			location TEXT NOT NULL,
			encrypted INTEGER NOT NULL DEFAULT 0,
			started_at INTEGER NOT NULL,
			ended_at INTEGER,
			outcome TEXT,
			bytes INTEGER
		);

		CREATE INDEX IF NOT EXISTS idx_play_history_started ON play_history(started_at DESC);
	`)
	if err != nil {
		return err
	}

	// Set initial version if not exists
	_, err = db.Exec(`
		INSERT OR IGNORE INTO schema_version (version) VALUES (?)
	`, currentSchemaVersion)
	if err != nil {
		return err
	}

	// Migration: add loops column if missing (version 1 stored volume only)
	_, _ = db.Exec(`ALTER TABLE settings ADD COLUMN loops INTEGER NOT NULL DEFAULT 0`)

	return nil
}
