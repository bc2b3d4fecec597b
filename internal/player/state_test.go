package player

import (
	"bytes"
	"io"
	"testing"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{Stopped, "Stopped"},
		{Playing, "Playing"},
		{Paused, "Paused"},
		{State(99), "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.state.String(); got != tt.want {
				t.Errorf("State.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestState_IsActive(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{Stopped, false},
		{Playing, true},
		{Paused, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.IsActive(); got != tt.want {
				t.Errorf("State.IsActive() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_CanPause(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{Stopped, false},
		{Playing, true},
		{Paused, false},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.CanPause(); got != tt.want {
				t.Errorf("State.CanPause() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_CanResume(t *testing.T) {
	tests := []struct {
		state State
		want  bool
	}{
		{Stopped, false},
		{Playing, false},
		{Paused, true},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := tt.state.CanResume(); got != tt.want {
				t.Errorf("State.CanResume() = %v, want %v", got, tt.want)
			}
		})
	}
}

type nopSource struct{ *bytes.Reader }

func (nopSource) Close() error { return nil }

func loadedMock(t *testing.T) *Mock {
	t.Helper()
	m := NewMock()
	track, err := m.Open(nopSource{bytes.NewReader(nil)}, "/test.wav")
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := m.Load(track, nil); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return m
}

var _ io.ReadSeekCloser = nopSource{}

// TestMock_StateTransitions validates the state machine using the Mock player.
func TestMock_StateTransitions(t *testing.T) {
	t.Run("Stopped to Paused via Load", func(t *testing.T) {
		m := NewMock()
		if m.State() != Stopped {
			t.Fatalf("initial state = %v, want Stopped", m.State())
		}

		m = loadedMock(t)

		if m.State() != Paused {
			t.Errorf("state after Load = %v, want Paused", m.State())
		}
	})

	t.Run("Paused to Playing via Resume", func(t *testing.T) {
		m := loadedMock(t)

		m.Resume()

		if m.State() != Playing {
			t.Errorf("state after Resume = %v, want Playing", m.State())
		}
	})

	t.Run("Playing to Paused via Pause", func(t *testing.T) {
		m := loadedMock(t)
		m.Resume()

		m.Pause()

		if m.State() != Paused {
			t.Errorf("state after Pause = %v, want Paused", m.State())
		}
	})

	t.Run("Playing to Stopped via Stop", func(t *testing.T) {
		m := loadedMock(t)
		m.Resume()

		m.Stop()

		if m.State() != Stopped {
			t.Errorf("state after Stop = %v, want Stopped", m.State())
		}
		if m.Loaded() {
			t.Error("track still held after Stop")
		}
	})
}

func TestMock_NoOpTransitions(t *testing.T) {
	t.Run("Stop when Stopped is no-op", func(t *testing.T) {
		m := NewMock()

		m.Stop()

		if m.State() != Stopped {
			t.Errorf("state = %v, want Stopped", m.State())
		}
	})

	t.Run("Resume when Stopped is no-op", func(t *testing.T) {
		m := NewMock()

		m.Resume()

		if m.State() != Stopped {
			t.Errorf("state = %v, want Stopped", m.State())
		}
	})

	t.Run("Rewind without track fails", func(t *testing.T) {
		m := NewMock()

		if err := m.Rewind(); err != ErrNoTrack {
			t.Errorf("Rewind() error = %v, want ErrNoTrack", err)
		}
	})
}

func TestMock_SimulateEnd(t *testing.T) {
	m := NewMock()
	track, err := m.Open(nopSource{bytes.NewReader(nil)}, "a.mp3")
	if err != nil {
		t.Fatal(err)
	}

	ended := 0
	if err := m.Load(track, func(error) { ended++ }); err != nil {
		t.Fatal(err)
	}

	if !m.SimulateEnd() {
		t.Fatal("SimulateEnd() = false with a loaded track")
	}
	if ended != 1 {
		t.Errorf("end callback ran %d times, want 1", ended)
	}
	if track.Codec() != CodecMP3 {
		t.Errorf("Codec() = %v, want MP3", track.Codec())
	}
}
