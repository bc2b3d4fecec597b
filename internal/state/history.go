package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbutil "github.com/llehouerou/soundplayer/internal/db"
)

// historyLimit is the number of sessions kept in play_history.
const historyLimit = 200

// ErrUnknownSession is returned by End for an id that Begin never saw.
var ErrUnknownSession = errors.New("state: unknown session")

// Entry is one recorded playback session.
type Entry struct {
	ID        uuid.UUID
	Kind      string
	Location  string
	Encrypted bool
	StartedAt time.Time
	EndedAt   time.Time // zero while the session is open
	Outcome   string
	Bytes     int64
}

// Open reports whether the session has not ended yet.
func (e Entry) Open() bool {
	return e.EndedAt.IsZero()
}

// Begin records the start of a session and drops the oldest rows beyond
// the history limit.
func (m *Manager) Begin(id uuid.UUID, kind, location string, encrypted bool) error {
	started := m.now().UnixMilli()
	return dbutil.WithTx(m.db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO play_history (id, kind, location, encrypted, started_at)
			VALUES (?, ?, ?, ?, ?)
		`, id.String(), kind, location, encrypted, started)
		if err != nil {
			return fmt.Errorf("insert session: %w", err)
		}

		_, err = tx.Exec(`
			DELETE FROM play_history WHERE rowid NOT IN (
				SELECT rowid FROM play_history ORDER BY started_at DESC, rowid DESC LIMIT ?
			)
		`, historyLimit)
		if err != nil {
			return fmt.Errorf("trim history: %w", err)
		}
		return nil
	})
}

// End closes a session with its outcome and the number of bytes read.
func (m *Manager) End(id uuid.UUID, outcome string, bytes int64) error {
	res, err := m.db.Exec(`
		UPDATE play_history SET ended_at = ?, outcome = ?, bytes = ?
		WHERE id = ? AND ended_at IS NULL
	`, m.now().UnixMilli(), outcome, bytes, id.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrUnknownSession, id)
	}
	return nil
}

// Recent returns up to limit sessions, newest first.
func (m *Manager) Recent(limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = historyLimit
	}

	rows, err := m.db.Query(`
		SELECT id, kind, location, encrypted, started_at, ended_at, outcome, bytes
		FROM play_history
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e       Entry
			id      string
			started int64
			ended   sql.NullInt64
			outcome sql.NullString
			bytes   sql.NullInt64
		)
		if err := rows.Scan(&id, &e.Kind, &e.Location, &e.Encrypted, &started, &ended, &outcome, &bytes); err != nil {
			return nil, err
		}
		e.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse session id %q: %w", id, err)
		}
		e.StartedAt = time.UnixMilli(started)
		e.EndedAt = dbutil.NullUnixMilli(ended)
		e.Outcome = dbutil.NullStringValue(outcome)
		e.Bytes = dbutil.NullInt64Value(bytes)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
