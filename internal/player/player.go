// Package player drives a single decoded track through an audio sink.
package player

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// ErrNoTrack is returned by operations that need a loaded track.
var ErrNoTrack = errors.New("no track loaded")

// Player owns at most one track at a time. Loading a track stops and
// releases the previous one, so two tracks never play together.
type Player struct {
	mu   sync.Mutex
	sink Sink

	state    State
	track    *Track
	controls *controls
	onEnd    func(error)

	volumeLevel float64
}

// New creates a player writing to sink.
func New(sink Sink) *Player {
	return &Player{
		sink:        sink,
		state:       Stopped,
		volumeLevel: 1,
	}
}

// Open decodes rsc. name is only used as a format hint.
func (p *Player) Open(rsc io.ReadSeekCloser, name string) (*Track, error) {
	return Decode(rsc, name)
}

// OpenStream decodes rsc while it is still downloading.
func (p *Player) OpenStream(rsc io.ReadSeekCloser, name string) (*Track, error) {
	return DecodeStream(rsc, name)
}

// Load replaces the current track and leaves it paused. onEnd receives
// the decoder error that ended the track, nil at a clean end.
func (p *Player) Load(t *Track, onEnd func(error)) error {
	if t == nil {
		return ErrNoTrack
	}
	p.Stop()

	rate, err := p.sink.Init(t.format.SampleRate)
	if err != nil {
		_ = t.Close()
		return fmt.Errorf("init output: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.track = t
	p.onEnd = onEnd
	p.state = Paused
	p.sink.Play(p.chainLocked(rate, true))
	return nil
}

// chainLocked builds the sink graph for the current track:
// source → resample → controls → end callback.
func (p *Player) chainLocked(rate beep.SampleRate, paused bool) beep.Streamer {
	track := p.track
	var s beep.Streamer = track.streamer
	if track.format.SampleRate != rate {
		s = beep.Resample(4, track.format.SampleRate, rate, s)
	}
	p.controls = newControls(s, p.volumeLevel, paused)

	onEnd := p.onEnd
	return beep.Seq(p.controls, beep.Callback(func() {
		// runs on the audio goroutine, which owns the decoder
		err := track.streamer.Err()
		if onEnd != nil {
			onEnd(err)
		}
	}))
}

// Stop clears the sink and releases the track.
func (p *Player) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Stopped {
		return
	}

	track := p.track
	// a decoder blocked on its source holds the sink lock
	track.closeSource()
	p.sink.Clear()
	_ = track.Close()

	p.track = nil
	p.controls = nil
	p.onEnd = nil
	p.state = Stopped
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.CanPause() {
		return
	}
	p.controls.setPaused(true)
	p.state = Paused
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.state.CanResume() {
		return
	}
	p.controls.setPaused(false)
	p.state = Playing
}

// Rewind seeks to the start and queues the track again. It is used to loop
// a track whose end callback already fired; the transport state is kept.
func (p *Player) Rewind() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return ErrNoTrack
	}
	if !p.track.Seekable() {
		return ErrNotSeekable
	}

	p.sink.Lock()
	err := p.track.streamer.Seek(0)
	p.sink.Unlock()
	if err != nil {
		return fmt.Errorf("rewind: %w", err)
	}

	rate, err := p.sink.Init(p.track.format.SampleRate)
	if err != nil {
		return fmt.Errorf("init output: %w", err)
	}
	p.sink.Play(p.chainLocked(rate, p.state == Paused))
	return nil
}

// SeekTo moves to an absolute position, clamped to the track bounds.
func (p *Player) SeekTo(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return ErrNoTrack
	}
	// checked before taking the sink lock, which a streamed source waiting
	// for bytes may hold
	if !p.track.Seekable() {
		return ErrNotSeekable
	}

	n := max(p.track.format.SampleRate.N(pos), 0)
	if length := p.track.streamer.Len(); length > 0 {
		n = min(n, length)
	}

	p.sink.Lock()
	defer p.sink.Unlock()
	return p.track.streamer.Seek(n)
}

// Reopen replaces the decoder of t, opened with DecodeStream, by one over
// rsc, which must hold the complete source. Playback goes on from the same
// sample and t becomes seekable. t keeps rsc; on error rsc is closed.
func (p *Player) Reopen(t *Track, rsc io.ReadSeekCloser) error {
	sw, ok := t.streamer.(*swappable)
	if !ok {
		_ = rsc.Close()
		return nil
	}

	// decoding may scan the whole source, so it runs before taking locks
	fresh, err := Decode(rsc, t.name)
	if err != nil {
		_ = rsc.Close()
		return fmt.Errorf("reopen: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track != t {
		_ = fresh.Close()
		return ErrNoTrack
	}

	p.sink.Lock()
	pos := sw.inner.Position()
	if n := fresh.streamer.Len(); n > 0 {
		pos = min(pos, n)
	}
	if err := fresh.streamer.Seek(pos); err != nil {
		p.sink.Unlock()
		_ = fresh.Close()
		return fmt.Errorf("reopen: %w", err)
	}
	old := sw.inner
	sw.inner = fresh.streamer
	sw.seekable = true
	p.sink.Unlock()

	_ = old.Close()
	t.source = rsc
	return nil
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Position returns the current playback position.
func (p *Player) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return 0
	}
	// Read without the sink lock; the value may be one buffer stale.
	return p.track.format.SampleRate.D(p.track.streamer.Position())
}

// Duration returns the duration of the loaded track, 0 if unknown.
func (p *Player) Duration() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.track == nil {
		return 0
	}
	return p.track.Duration()
}
