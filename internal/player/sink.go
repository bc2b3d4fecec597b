package player

import (
	"context"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/speaker"
)

// Sink is where decoded audio ends up. Lock and Unlock guard every
// streamer handed to Play against concurrent mutation.
type Sink interface {
	// Init prepares the output for the given rate and returns the rate it
	// actually runs at. Later calls keep the first rate.
	Init(rate beep.SampleRate) (beep.SampleRate, error)
	Play(s beep.Streamer)
	Clear()
	Lock()
	Unlock()
}

// SpeakerSink plays through the system audio device.
type SpeakerSink struct {
	mu         sync.Mutex
	bufferSize time.Duration
	rate       beep.SampleRate
}

// NewSpeakerSink creates a sink with the given device buffer length.
func NewSpeakerSink(bufferSize time.Duration) *SpeakerSink {
	if bufferSize <= 0 {
		bufferSize = time.Second / 10
	}
	return &SpeakerSink{bufferSize: bufferSize}
}

func (s *SpeakerSink) Init(rate beep.SampleRate) (beep.SampleRate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.rate != 0 {
		return s.rate, nil
	}
	if err := speaker.Init(rate, rate.N(s.bufferSize)); err != nil {
		return 0, err
	}
	s.rate = rate
	return rate, nil
}

func (s *SpeakerSink) Play(st beep.Streamer) { speaker.Play(st) }
func (s *SpeakerSink) Clear()                { speaker.Clear() }
func (s *SpeakerSink) Lock()                 { speaker.Lock() }
func (s *SpeakerSink) Unlock()               { speaker.Unlock() }

// ManualSink mixes streamers without an audio device. Samples are pulled
// explicitly with Drain, or in real time with Run.
type ManualSink struct {
	mu    sync.Mutex
	mixer beep.Mixer
	rate  beep.SampleRate
	buf   [][2]float64
}

// NewManualSink creates a sink that reports rate from Init. A zero rate
// adopts the first rate it is asked for.
func NewManualSink(rate beep.SampleRate) *ManualSink {
	return &ManualSink{rate: rate, buf: make([][2]float64, 512)}
}

func (m *ManualSink) Init(rate beep.SampleRate) (beep.SampleRate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rate == 0 {
		m.rate = rate
	}
	return m.rate, nil
}

func (m *ManualSink) Play(s beep.Streamer) {
	m.mu.Lock()
	m.mixer.Add(s)
	m.mu.Unlock()
}

func (m *ManualSink) Clear() {
	m.mu.Lock()
	m.mixer.Clear()
	m.mu.Unlock()
}

func (m *ManualSink) Lock()   { m.mu.Lock() }
func (m *ManualSink) Unlock() { m.mu.Unlock() }

// Active returns the number of streamers still in the mix.
func (m *ManualSink) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mixer.Len()
}

// Drain pulls up to n samples through the mix and returns how many were
// pulled. It stops early once the mix is empty. A negative n drains until
// every streamer is exhausted.
func (m *ManualSink) Drain(n int) int {
	var pulled int
	for n < 0 || pulled < n {
		m.mu.Lock()
		if m.mixer.Len() == 0 {
			m.mu.Unlock()
			break
		}
		batch := len(m.buf)
		if n >= 0 {
			batch = min(batch, n-pulled)
		}
		got, _ := m.mixer.Stream(m.buf[:batch])
		m.mu.Unlock()
		pulled += got
	}
	return pulled
}

// Run drains the mix at the sink's sample rate until ctx is done.
func (m *ManualSink) Run(ctx context.Context, tick time.Duration) {
	if tick <= 0 {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			m.mu.Lock()
			rate := m.rate
			m.mu.Unlock()
			if rate > 0 {
				if n := rate.N(now.Sub(last)); n > 0 {
					m.Drain(n)
				}
			}
			last = now
		}
	}
}
