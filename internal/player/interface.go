// internal/player/interface.go
package player

import (
	"io"
	"time"
)

// Interface defines the engine contract used by the playback service.
type Interface interface {
	// Open decodes rsc. It may block while the decoder reads headers.
	Open(rsc io.ReadSeekCloser, name string) (*Track, error)
	// OpenStream decodes a source that is still being written. Only the
	// first bytes are read; the track cannot seek until Reopen.
	OpenStream(rsc io.ReadSeekCloser, name string) (*Track, error)
	// Reopen gives a track from OpenStream a seekable decoder over rsc,
	// the complete source, without interrupting playback.
	Reopen(t *Track, rsc io.ReadSeekCloser) error
	// Load replaces the current track, leaving the engine Paused. onEnd is
	// called from the audio goroutine when the track runs out, with the
	// decoder error if one ended it; it must not block.
	Load(t *Track, onEnd func(error)) error
	Pause()
	Resume()
	Stop()
	Rewind() error
	SeekTo(pos time.Duration) error
	State() State
	Position() time.Duration
	Duration() time.Duration
	SetVolume(level float64)
	Volume() float64
}

// Verify Player implements Interface at compile time.
var _ Interface = (*Player)(nil)
