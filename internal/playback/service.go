// Package playback plays one local file or remote stream at a time and
// reports its progress as events.
package playback

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/soundplayer/internal/player"
	"github.com/llehouerou/soundplayer/internal/stream"
)

// Service defines the playback service contract.
type Service interface {
	// Local files
	PlayFile(path string) error
	LoadFile(path string) error
	PlayFileWithDelay(path string, delay time.Duration) error

	// Remote sources; both return once the download started; failures
	// are reported through ErrorEvent.
	PlayURL(url string) error
	LoadURL(url string) error
	PlayStream(url string, enc *Encryption) error
	LoadStream(url string, enc *Encryption) error

	// Transport
	Pause() error
	Resume() error
	Toggle() error
	Stop() error
	Seek(position time.Duration) error
	SeekBy(delta time.Duration) error

	// Settings
	SetLoopCount(n int)
	LoopCount() int
	SetVolume(level float64)
	Volume() float64

	// Queries
	State() State
	Info() (Info, bool)

	// Event subscription
	Subscribe() *Subscription

	// Lifecycle
	Close() error
}

// Info is a snapshot of the current session.
type Info struct {
	Session        uuid.UUID
	Source         Source
	State          State
	Position       time.Duration
	Duration       TrackDuration
	Bitrate        int
	CustomDuration bool
	TotalBytes     int64 // bytes received and decrypted this session
	BufferedBytes  int64
	LoopsRemaining int
	Encrypted      bool
	Volume         float64
}

// Fetcher downloads a stream into a buffer generation.
type Fetcher interface {
	Fetch(ctx context.Context, req stream.Request, buf *stream.Buffer, gen uint64, onChunk func(stream.Chunk)) (int64, error)
}

// History records sessions. Implementations must not call back into the
// service.
type History interface {
	Begin(id uuid.UUID, kind, location string, encrypted bool) error
	End(id uuid.UUID, outcome string, bytes int64) error
}

// Session outcomes passed to History.End.
const (
	OutcomeFinished = "finished"
	OutcomeStopped  = "stopped"
	OutcomeFailed   = "failed"
)

// Options configures a Service.
type Options struct {
	Player  player.Interface
	Fetcher Fetcher
	History History // optional
	Logger  *slog.Logger

	// StartBufferBytes is how much of a stream must be buffered before
	// decoding starts. Zero starts on the first chunk.
	StartBufferBytes int64
	Volume           float64
	Loops            int
}
