package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/adrg/xdg"
	"github.com/alecthomas/kong"

	"github.com/llehouerou/soundplayer/internal/cli"
	"github.com/llehouerou/soundplayer/internal/config"
	"github.com/llehouerou/soundplayer/internal/state"
	"github.com/llehouerou/soundplayer/internal/stderr"
)

// version is set via ldflags at build time
var version = "dev"

type CLI struct {
	Debug      bool    `help:"Log at debug level to the terminal instead of the log file."`
	NullOutput bool    `help:"Decode without an audio device (playback runs in real time, silently)." name:"null-output"`
	NoMpris    bool    `help:"Do not expose the player over MPRIS." name:"no-mpris"`
	Volume     float64 `help:"Playback volume from 0 to 1." default:"${volume}"`
	Loops      int     `help:"Replays after the first play, -1 loops forever." default:"${loops}"`
	Paused     bool    `help:"Load the source and wait for 'p' before playing."`

	Play    PlayCmd    `cmd:"" help:"Play a local audio file."`
	URL     URLCmd     `cmd:"" name:"url" help:"Play a remote audio file."`
	Stream  StreamCmd  `cmd:"" help:"Play an AES-CTR encrypted stream while it downloads."`
	History HistoryCmd `cmd:"" help:"List recent playback sessions."`
	Version VersionCmd `cmd:"" help:"Show version information."`
}

// appContext carries what every command needs. Only the playback
// commands open the audio device.
type appContext struct {
	ctx    context.Context
	cfg    *config.Config
	state  state.Interface
	logger *slog.Logger
	cli    *CLI
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		cli.PrintError(fmt.Sprintf("load config: %v", err))
		return 1
	}

	st, err := state.Open(cfg.StateDB)
	if err != nil {
		cli.PrintError(fmt.Sprintf("open state: %v", err))
		return 1
	}
	defer st.Close()

	volume, loops := startupSettings(cfg, st)

	var c CLI
	kctx := kong.Parse(&c,
		kong.Name("soundplayer"),
		kong.Description("Play local files, remote files and encrypted streams."),
		kong.Vars{
			"volume": strconv.FormatFloat(volume, 'f', -1, 64),
			"loops":  strconv.Itoa(loops),
		},
		kong.UsageOnError(),
		kong.Help(cli.StyledHelpPrinter(kong.HelpOptions{Compact: true})),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := &appContext{ctx: ctx, cfg: cfg, state: st, cli: &c}

	// C audio backends write to fd 2; keep their noise out of the terminal.
	backendLines := make(chan string, 100)
	capture, err := stderr.Start(func(line string) {
		select {
		case backendLines <- line:
		default:
		}
	})
	if err == nil {
		cli.Stderr = capture.Original()
		defer capture.Stop()
	}

	logger, closeLog, err := newLogger(cfg, c.Debug)
	if err != nil {
		cli.PrintError(fmt.Sprintf("open log: %v", err))
		return 1
	}
	defer closeLog()
	app.logger = logger

	go func() {
		for line := range backendLines {
			logger.Warn("audio backend output", "line", line)
		}
	}()

	if err := kctx.Run(app); err != nil {
		cli.PrintError(err.Error())
		return 1
	}
	return 0
}

// startupSettings picks the initial volume and loop count: the config
// file wins over the values saved by the previous run.
func startupSettings(cfg *config.Config, st state.Interface) (float64, int) {
	volume, loops := cfg.GetVolume(), cfg.GetLoops()
	saved, err := st.GetSettings()
	if err != nil || saved == nil {
		return volume, loops
	}
	if !cfg.HasVolume() {
		volume = min(max(saved.Volume, 0), 1)
	}
	if !cfg.HasLoops() {
		loops = saved.Loops
	}
	return volume, loops
}

// newLogger writes JSON logs to the log file, or text logs to the real
// stderr at debug level with --debug.
func newLogger(cfg *config.Config, debug bool) (*slog.Logger, func(), error) {
	if debug {
		var w io.Writer = cli.Stderr
		h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
		return slog.New(h), func() {}, nil
	}

	path := cfg.LogFile
	if path == "" {
		p, err := xdg.StateFile(filepath.Join("soundplayer", "soundplayer.log"))
		if err != nil {
			return nil, nil, err
		}
		path = p
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	h := slog.NewJSONHandler(f, &slog.HandlerOptions{Level: slog.LevelInfo})
	return slog.New(h).With("pid", os.Getpid()), func() { f.Close() }, nil
}
