package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/llehouerou/soundplayer/internal/cli"
	"github.com/llehouerou/soundplayer/internal/mpris"
	"github.com/llehouerou/soundplayer/internal/playback"
	"github.com/llehouerou/soundplayer/internal/player"
	"github.com/llehouerou/soundplayer/internal/state"
	"github.com/llehouerou/soundplayer/internal/stream"
	"github.com/llehouerou/soundplayer/internal/tags"
)

// nullSinkRate is the output rate used with --null-output.
const nullSinkRate = 44100

type PlayCmd struct {
	Path  string        `arg:"" type:"existingfile" help:"Audio file (mp3, flac, wav, ogg)."`
	Delay time.Duration `help:"Wait this long before playback starts (e.g. 1.5s)."`
}

func (c *PlayCmd) Run(app *appContext) error {
	if !tags.IsMusicFile(c.Path) {
		cli.PrintWarning("unrecognised extension, the format is detected from the file contents")
	}
	t := tags.ReadOrPath(c.Path)
	return app.play(t.String(), func(svc playback.Service) error {
		switch {
		case app.cli.Paused:
			return svc.LoadFile(c.Path)
		case c.Delay > 0:
			return svc.PlayFileWithDelay(c.Path, c.Delay)
		default:
			return svc.PlayFile(c.Path)
		}
	})
}

type URLCmd struct {
	URL         string `arg:"" help:"HTTP(S) URL of an audio file."`
	Progressive bool   `help:"Start decoding before the download completes."`
}

func (c *URLCmd) Run(app *appContext) error {
	return app.play(c.URL, func(svc playback.Service) error {
		switch {
		case c.Progressive && app.cli.Paused:
			return svc.LoadStream(c.URL, nil)
		case c.Progressive:
			return svc.PlayStream(c.URL, nil)
		case app.cli.Paused:
			return svc.LoadURL(c.URL)
		default:
			return svc.PlayURL(c.URL)
		}
	})
}

type StreamCmd struct {
	URL      string        `arg:"" help:"HTTP(S) URL of the encrypted stream."`
	Key      string        `required:"" help:"Data key as hex (16, 24 or 32 bytes)."`
	Counter  string        `required:"" help:"Initial counter block as hex (16 bytes)."`
	Bitrate  int           `help:"Plaintext bitrate in bits per second."`
	Duration time.Duration `help:"Track length overriding the decoded one (e.g. 3m25s)."`
}

func (c *StreamCmd) Run(app *appContext) error {
	enc := &playback.Encryption{
		KeyHex:         c.Key,
		CounterBaseHex: c.Counter,
		Bitrate:        c.Bitrate,
		Duration:       c.Duration,
	}
	return app.play(c.URL, func(svc playback.Service) error {
		if app.cli.Paused {
			return svc.LoadStream(c.URL, enc)
		}
		return svc.PlayStream(c.URL, enc)
	})
}

type HistoryCmd struct {
	Limit int `help:"Number of sessions to show." default:"20"`
}

func (c *HistoryCmd) Run(app *appContext) error {
	entries, err := app.state.Recent(c.Limit)
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}
	if len(entries) == 0 {
		cli.PrintInfo("History", "empty")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintln(cli.Stdout, formatEntry(e))
	}
	return nil
}

func formatEntry(e state.Entry) string {
	outcome := e.Outcome
	if e.Open() {
		outcome = "unfinished"
	}
	line := fmt.Sprintf("%s  %-6s %-10s %s",
		e.StartedAt.Format(time.DateTime), e.Kind, outcome, e.Location)
	if e.Encrypted {
		line += " (encrypted)"
	}
	if e.Bytes > 0 {
		line += " " + cli.FormatBytes(e.Bytes)
	}
	return line
}

type VersionCmd struct{}

func (c *VersionCmd) Run(_ *appContext) error {
	cli.PrintInfo("soundplayer", version)
	return nil
}

// play builds the audio stack, starts the session with start and drives
// it until it finishes, fails or the user quits.
func (app *appContext) play(title string, start func(playback.Service) error) error {
	ctx, cancel := context.WithCancel(app.ctx)
	defer cancel()

	svc := app.newService(ctx)
	defer func() {
		// Persist what the user ended up with for the next run.
		if err := app.state.SaveSettings(state.Settings{Volume: svc.Volume(), Loops: svc.LoopCount()}); err != nil {
			app.logger.Warn("save settings", "error", err)
		}
		_ = svc.Close()
	}()

	if !app.cli.NoMpris {
		adapter, err := mpris.New(svc)
		if err != nil {
			app.logger.Warn("mpris unavailable", "error", err)
		} else {
			defer adapter.Close()
		}
	}

	cli.PrintTitle(title)
	sess := newSession(svc, app.logger)
	err := sess.run(ctx, start, readCommands(ctx))
	if errors.Is(err, errQuit) {
		return nil
	}
	return err
}

func (app *appContext) newService(ctx context.Context) playback.Service {
	var sink player.Sink
	if app.cli.NullOutput {
		null := player.NewManualSink(nullSinkRate)
		go null.Run(ctx, 10*time.Millisecond)
		sink = null
	} else {
		sink = player.NewSpeakerSink(app.cfg.GetSpeakerConfig().BufferSize())
	}

	sc := app.cfg.GetStreamConfig()
	fetcher := stream.NewFetcher(stream.Options{
		UserAgent:          sc.UserAgent,
		ConnectTimeout:     sc.ConnectTimeout(),
		ReadTimeout:        sc.ReadTimeout(),
		ChunkSize:          sc.ChunkSize,
		EncryptedChunkSize: sc.EncryptedChunkSize,
	}, app.logger)

	return playback.New(playback.Options{
		Player:           player.New(sink),
		Fetcher:          fetcher,
		History:          app.state,
		Logger:           app.logger,
		StartBufferBytes: sc.StartBufferBytes,
		Volume:           app.cli.Volume,
		Loops:            app.cli.Loops,
	})
}
