package playback

import (
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/soundplayer/internal/errmsg"
)

// StateChange is emitted when playback state changes.
type StateChange struct {
	Previous State
	Current  State
}

// EventKind names a playback milestone.
type EventKind int

const (
	EventStarted EventKind = iota + 1
	EventPaused
	EventResumed
	EventLooped
	EventFinished
)

func (k EventKind) String() string {
	switch k {
	case EventStarted:
		return "started"
	case EventPaused:
		return "paused"
	case EventResumed:
		return "resumed"
	case EventLooped:
		return "looped"
	case EventFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// PlaybackEvent is emitted for transport milestones of a session.
//
// Emitted by:
//   - Play*/Resume: Started the first time audio runs, Resumed afterwards
//   - Pause: Paused
//   - end of track: Looped when loops remain, Finished otherwise
type PlaybackEvent struct {
	Kind           EventKind
	Session        uuid.UUID
	Source         Source
	LoopsRemaining int
}

// LoadedEvent is emitted when a source is decoded and ready to play.
type LoadedEvent struct {
	Session   uuid.UUID
	Source    Source
	Encrypted bool
	Bitrate   int
	Duration  TrackDuration
}

// ChunkEvent is emitted for every block of stream data appended to the
// buffer.
type ChunkEvent struct {
	Session   uuid.UUID
	Size      int
	Position  int64 // offset of the chunk in the stream
	Total     int64 // bytes processed, including this chunk
	Encrypted bool
}

// ErrorEvent is emitted when a session fails.
type ErrorEvent struct {
	Kind    ErrorKind
	Op      errmsg.Op
	Message string
	Err     error
	Time    time.Time
}
