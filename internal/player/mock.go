// internal/player/mock.go
package player

import (
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// Mock is a test double for Player. It never decodes audio; Open hands back
// a track wrapping the given source, and SimulateEnd fires the end callback
// the way the audio goroutine would.
type Mock struct {
	mu sync.Mutex

	state    State
	position time.Duration
	duration time.Duration
	volume   float64

	openErr  error
	openFunc func(rsc io.ReadSeekCloser, name string) error
	loadErr  error

	track    *Track
	onEnd    func(error)
	sources  []io.ReadSeekCloser
	names    []string
	streamed map[*Track]bool // opened with OpenStream and not reopened yet
	loads    int
	rewinds  int
	reopens  int
	seeks    []time.Duration
}

// NewMock creates a new mock player for testing.
func NewMock() *Mock {
	return &Mock{state: Stopped, volume: 1, streamed: make(map[*Track]bool)}
}

var _ Interface = (*Mock)(nil)

// SetOpenError makes every Open fail with err.
func (m *Mock) SetOpenError(err error) {
	m.mu.Lock()
	m.openErr = err
	m.mu.Unlock()
}

// SetOpenFunc runs fn inside Open, before the track is returned. A non-nil
// error makes Open fail.
func (m *Mock) SetOpenFunc(fn func(rsc io.ReadSeekCloser, name string) error) {
	m.mu.Lock()
	m.openFunc = fn
	m.mu.Unlock()
}

func (m *Mock) SetLoadError(err error) {
	m.mu.Lock()
	m.loadErr = err
	m.mu.Unlock()
}

func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	m.duration = d
	m.mu.Unlock()
}

func (m *Mock) SetPosition(d time.Duration) {
	m.mu.Lock()
	m.position = d
	m.mu.Unlock()
}

func (m *Mock) Open(rsc io.ReadSeekCloser, name string) (*Track, error) {
	m.mu.Lock()
	m.sources = append(m.sources, rsc)
	m.names = append(m.names, name)
	openErr, fn := m.openErr, m.openFunc
	m.mu.Unlock()

	if openErr != nil {
		return nil, openErr
	}
	if fn != nil {
		if err := fn(rsc, name); err != nil {
			return nil, err
		}
	}
	return NewTrack(nil, beep.Format{SampleRate: 44100, NumChannels: 2, Precision: 2}, CodecFromExt(name), rsc), nil
}

// OpenStream behaves like Open; the track refuses to seek until Reopen.
func (m *Mock) OpenStream(rsc io.ReadSeekCloser, name string) (*Track, error) {
	t, err := m.Open(rsc, name)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.streamed[t] = true
	m.mu.Unlock()
	return t, nil
}

func (m *Mock) Reopen(t *Track, rsc io.ReadSeekCloser) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track != t {
		_ = rsc.Close()
		return ErrNoTrack
	}
	delete(m.streamed, t)
	m.sources = append(m.sources, rsc)
	m.reopens++
	return nil
}

func (m *Mock) Load(t *Track, onEnd func(error)) error {
	m.Stop()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		_ = t.Close()
		return m.loadErr
	}
	m.track = t
	m.onEnd = onEnd
	m.state = Paused
	m.position = 0
	m.loads++
	return nil
}

func (m *Mock) Pause() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Playing {
		m.state = Paused
	}
}

func (m *Mock) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == Paused {
		m.state = Playing
	}
}

func (m *Mock) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track != nil {
		delete(m.streamed, m.track)
		_ = m.track.Close()
	}
	m.track = nil
	m.onEnd = nil
	m.state = Stopped
}

func (m *Mock) Rewind() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track == nil {
		return ErrNoTrack
	}
	if m.streamed[m.track] {
		return ErrNotSeekable
	}
	m.rewinds++
	m.position = 0
	return nil
}

func (m *Mock) SeekTo(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track == nil {
		return ErrNoTrack
	}
	if m.streamed[m.track] {
		return ErrNotSeekable
	}
	m.seeks = append(m.seeks, pos)
	m.position = pos
	return nil
}

func (m *Mock) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.track == nil {
		return 0
	}
	return m.duration
}

func (m *Mock) SetVolume(level float64) {
	m.mu.Lock()
	m.volume = min(max(level, 0), 1)
	m.mu.Unlock()
}

func (m *Mock) Volume() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.volume
}

// SimulateEnd fires the end callback of the loaded track. It reports
// whether a track was loaded.
func (m *Mock) SimulateEnd() bool {
	return m.SimulateFailure(nil)
}

// SimulateFailure ends the loaded track as if its decoder failed with err.
func (m *Mock) SimulateFailure(err error) bool {
	m.mu.Lock()
	onEnd := m.onEnd
	m.mu.Unlock()
	if onEnd == nil {
		return false
	}
	onEnd(err)
	return true
}

// Loaded reports whether a track is currently held.
func (m *Mock) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.track != nil
}

func (m *Mock) Loads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *Mock) Rewinds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rewinds
}

func (m *Mock) Reopens() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reopens
}

func (m *Mock) Seeks() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seeks...)
}

// Opened returns the names passed to Open, in order.
func (m *Mock) Opened() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.names...)
}

// LastSource returns the reader passed to the most recent Open call.
func (m *Mock) LastSource() io.ReadSeekCloser {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sources) == 0 {
		return nil
	}
	return m.sources[len(m.sources)-1]
}
