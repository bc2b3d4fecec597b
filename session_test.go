package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/llehouerou/soundplayer/internal/cli"
	"github.com/llehouerou/soundplayer/internal/config"
	"github.com/llehouerou/soundplayer/internal/playback"
	"github.com/llehouerou/soundplayer/internal/player"
	"github.com/llehouerou/soundplayer/internal/state"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		want command
	}{
		{"", command{op: opToggle}},
		{"p", command{op: opToggle}},
		{"q", command{op: opQuit}},
		{"s", command{op: opQuit}},
		{"f", command{op: opSeekBy, dur: defaultSeek}},
		{"f 5", command{op: opSeekBy, dur: 5 * time.Second}},
		{"b 2.5", command{op: opSeekBy, dur: -2500 * time.Millisecond}},
		{"g 1:30", command{op: opSeek, dur: 90 * time.Second}},
		{"g 42", command{op: opSeek, dur: 42 * time.Second}},
		{"v 0.3", command{op: opVolume, value: 0.3}},
		{"+", command{op: opVolumeBy, value: volumeStep}},
		{"-", command{op: opVolumeBy, value: -volumeStep}},
		{"l -1", command{op: opLoops, n: -1}},
		{"i", command{op: opInfo}},
		{"?", command{op: opHelp}},
	}

	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseCommand(tt.line)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommand_Errors(t *testing.T) {
	for _, line := range []string{"g", "g x:10", "v loud", "l many", "f soon", "z"} {
		t.Run(line, func(t *testing.T) {
			_, err := parseCommand(line)
			assert.Error(t, err)
		})
	}
}

type sessionFixture struct {
	svc  playback.Service
	mock *player.Mock
	sess *session
	out  *bytes.Buffer
	cmds chan string
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()

	var out bytes.Buffer
	oldOut, oldErr := cli.Stdout, cli.Stderr
	cli.Stdout, cli.Stderr = &out, &out
	t.Cleanup(func() { cli.Stdout, cli.Stderr = oldOut, oldErr })

	m := player.NewMock()
	m.SetDuration(time.Minute)
	svc := playback.New(playback.Options{Player: m, Volume: 1})
	t.Cleanup(func() { _ = svc.Close() })

	return &sessionFixture{
		svc:  svc,
		mock: m,
		sess: &session{svc: svc, logger: slog.New(slog.DiscardHandler), out: &out},
		out:  &out,
		cmds: make(chan string),
	}
}

func (f *sessionFixture) start(ctx context.Context, path string) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- f.sess.run(ctx, func(svc playback.Service) error { return svc.PlayFile(path) }, f.cmds)
	}()
	return done
}

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.wav")
	require.NoError(t, os.WriteFile(path, []byte("audio"), 0o600))
	return path
}

func waitDone(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}
	return nil
}

func TestSession_CommandsThenFinish(t *testing.T) {
	f := newSessionFixture(t)
	done := f.start(context.Background(), writeAudio(t))

	f.cmds <- "g 20"
	f.cmds <- "f 5"
	f.cmds <- "v 0.5"
	f.cmds <- "l 0"

	require.Eventually(t, func() bool { return len(f.mock.Seeks()) == 2 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []time.Duration{20 * time.Second, 25 * time.Second}, f.mock.Seeks())

	require.Eventually(t, func() bool { return f.svc.Volume() == 0.5 }, 2*time.Second, 5*time.Millisecond)
	f.cmds <- "i" // processed after "l 0", so the loop count is set
	require.True(t, f.mock.SimulateEnd())

	require.NoError(t, waitDone(t, done))
	assert.Contains(t, f.out.String(), "Playing ")
	assert.Contains(t, f.out.String(), "Finished")
	assert.Contains(t, f.out.String(), "Volume: 0.50")
}

func TestSession_QuitStops(t *testing.T) {
	f := newSessionFixture(t)
	done := f.start(context.Background(), writeAudio(t))

	f.cmds <- "q"

	assert.ErrorIs(t, waitDone(t, done), errQuit)
	assert.Equal(t, playback.StateIdle, f.svc.State())
}

func TestSession_ContextCancelStops(t *testing.T) {
	f := newSessionFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := f.start(ctx, writeAudio(t))

	require.Eventually(t, func() bool { return f.svc.State() == playback.StatePlaying }, 2*time.Second, 5*time.Millisecond)
	cancel()

	assert.ErrorIs(t, waitDone(t, done), errQuit)
	assert.Equal(t, playback.StateIdle, f.svc.State())
}

func TestSession_StartFailure(t *testing.T) {
	f := newSessionFixture(t)
	done := f.start(context.Background(), filepath.Join(t.TempDir(), "missing.wav"))

	err := waitDone(t, done)
	require.Error(t, err)
	assert.ErrorIs(t, err, playback.ErrAssetLoad)
}

func TestSession_RejectedCommandKeepsPlaying(t *testing.T) {
	f := newSessionFixture(t)
	f.mock.SetDuration(0)
	done := f.start(context.Background(), writeAudio(t))

	f.cmds <- "g 10" // duration unknown
	f.cmds <- "nonsense"
	f.cmds <- "q"

	assert.ErrorIs(t, waitDone(t, done), errQuit)
	assert.Contains(t, f.out.String(), "unknown command")
}

func TestFormatEntry(t *testing.T) {
	e := state.Entry{
		Kind:      "stream",
		Location:  "https://example.com/a",
		Encrypted: true,
		StartedAt: time.Date(2026, 5, 1, 10, 0, 0, 0, time.Local),
		EndedAt:   time.Date(2026, 5, 1, 10, 3, 0, 0, time.Local),
		Outcome:   "finished",
		Bytes:     2048,
	}
	assert.Equal(t, "2026-05-01 10:00:00  stream finished   https://example.com/a (encrypted) 2.0 KiB", formatEntry(e))

	e.EndedAt = time.Time{}
	e.Bytes = 0
	e.Encrypted = false
	assert.Equal(t, "2026-05-01 10:00:00  stream unfinished https://example.com/a", formatEntry(e))
}

func TestStartupSettings(t *testing.T) {
	st, err := state.Open(state.MemoryPath)
	require.NoError(t, err)
	defer st.Close()

	cfg := newTestConfig(t, "")
	v, loops := startupSettings(cfg, st)
	assert.InDelta(t, 1.0, v, 1e-9)
	assert.Equal(t, 0, loops)

	require.NoError(t, st.SaveSettings(state.Settings{Volume: 0.4, Loops: 2}))
	v, loops = startupSettings(cfg, st)
	assert.InDelta(t, 0.4, v, 1e-9)
	assert.Equal(t, 2, loops)

	cfg = newTestConfig(t, "volume = 0.8\nloops = -1\n")
	v, loops = startupSettings(cfg, st)
	assert.InDelta(t, 0.8, v, 1e-9)
	assert.Equal(t, -1, loops)
}

func TestStartupSettings_ExplicitZeroLoopsWins(t *testing.T) {
	st, err := state.Open(state.MemoryPath)
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.SaveSettings(state.Settings{Volume: 0.4, Loops: 2}))

	cfg := newTestConfig(t, "loops = 0\n")
	v, loops := startupSettings(cfg, st)
	assert.InDelta(t, 0.4, v, 1e-9)
	assert.Equal(t, 0, loops)
}

func newTestConfig(t *testing.T, toml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(toml), 0o600))
	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	return cfg
}
