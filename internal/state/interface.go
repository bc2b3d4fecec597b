package state

import (
	"github.com/google/uuid"
)

// Interface defines the state manager contract for dependency injection and testing.
type Interface interface {
	GetSettings() (*Settings, error)
	SaveSettings(s Settings) error
	QueueSettings(s Settings)
	Begin(id uuid.UUID, kind, location string, encrypted bool) error
	End(id uuid.UUID, outcome string, bytes int64) error
	Recent(limit int) ([]Entry, error)
	Close() error
}

// Verify Manager implements Interface at compile time.
var _ Interface = (*Manager)(nil)
