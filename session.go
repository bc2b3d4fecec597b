package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/llehouerou/soundplayer/internal/cli"
	"github.com/llehouerou/soundplayer/internal/playback"
)

const (
	statusInterval = 500 * time.Millisecond
	defaultSeek    = 10 * time.Second
	volumeStep     = 0.1
)

// errQuit ends a session on user request.
var errQuit = errors.New("quit")

const commandHelp = `p       play/pause        s, q    stop and quit
f [N]   forward N seconds  b [N]   back N seconds
g T     go to T (90, 1:30) v X     volume 0..1 (+, - step)
l N     loop count         i       session info`

type opKind int

const (
	opToggle opKind = iota
	opQuit
	opSeekBy
	opSeek
	opVolume
	opVolumeBy
	opLoops
	opInfo
	opHelp
)

type command struct {
	op    opKind
	dur   time.Duration
	value float64
	n     int
}

// parseCommand parses one line typed while playing.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{op: opToggle}, nil
	}
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch fields[0] {
	case "p":
		return command{op: opToggle}, nil
	case "s", "q":
		return command{op: opQuit}, nil
	case "f", "b":
		d := defaultSeek
		if arg != "" {
			var err error
			if d, err = parseTime(arg); err != nil {
				return command{}, err
			}
		}
		if fields[0] == "b" {
			d = -d
		}
		return command{op: opSeekBy, dur: d}, nil
	case "g":
		d, err := parseTime(arg)
		if err != nil {
			return command{}, err
		}
		return command{op: opSeek, dur: d}, nil
	case "v":
		v, err := strconv.ParseFloat(arg, 64)
		if err != nil {
			return command{}, fmt.Errorf("volume %q: %w", arg, err)
		}
		return command{op: opVolume, value: v}, nil
	case "+":
		return command{op: opVolumeBy, value: volumeStep}, nil
	case "-":
		return command{op: opVolumeBy, value: -volumeStep}, nil
	case "l":
		n, err := strconv.Atoi(arg)
		if err != nil {
			return command{}, fmt.Errorf("loop count %q: %w", arg, err)
		}
		return command{op: opLoops, n: n}, nil
	case "i":
		return command{op: opInfo}, nil
	case "h", "?", "help":
		return command{op: opHelp}, nil
	}
	return command{}, fmt.Errorf("unknown command %q (h for help)", fields[0])
}

// parseTime accepts seconds ("90", "2.5") or m:ss ("1:30").
func parseTime(s string) (time.Duration, error) {
	if s == "" {
		return 0, errors.New("missing time")
	}
	if m, sec, ok := strings.Cut(s, ":"); ok {
		mins, err := strconv.Atoi(m)
		if err != nil {
			return 0, fmt.Errorf("time %q: %w", s, err)
		}
		secs, err := strconv.ParseFloat(sec, 64)
		if err != nil {
			return 0, fmt.Errorf("time %q: %w", s, err)
		}
		return time.Duration(mins)*time.Minute + time.Duration(secs*float64(time.Second)), nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("time %q: %w", s, err)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// readCommands delivers stdin lines until EOF or ctx is done.
func readCommands(ctx context.Context) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()
	return lines
}

// session drives one playback from the terminal.
type session struct {
	svc    playback.Service
	logger *slog.Logger
	out    io.Writer
	status bool // redraw a status line in place
}

func newSession(svc playback.Service, logger *slog.Logger) *session {
	return &session{
		svc:    svc,
		logger: logger,
		out:    cli.Stdout,
		status: isatty.IsTerminal(os.Stdout.Fd()),
	}
}

// run subscribes, calls start and handles events and commands until the
// session finishes (nil), fails (the reported error) or the user quits
// (errQuit).
func (s *session) run(ctx context.Context, start func(playback.Service) error, cmds <-chan string) error {
	sub := s.svc.Subscribe()
	if err := start(s.svc); err != nil {
		return err
	}

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.clearStatus()
			_ = s.svc.Stop()
			return errQuit

		case <-sub.Done:
			return nil

		case e := <-sub.Loaded:
			s.printLoaded(e)

		case e := <-sub.Playback:
			if done := s.printPlayback(e); done {
				return nil
			}

		case e := <-sub.Errors:
			s.clearStatus()
			cli.PrintError(e.Message)

		case sc := <-sub.StateChanged:
			if sc.Current == playback.StateError {
				return s.failure(sub)
			}

		case line, ok := <-cmds:
			if !ok {
				cmds = nil
				continue
			}
			if err := s.handle(line); errors.Is(err, errQuit) {
				s.clearStatus()
				_ = s.svc.Stop()
				return errQuit
			}

		case <-ticker.C:
			s.drawStatus()
		}
	}
}

// failure returns the error that moved the service to StateError. The
// service emits it right after the state change.
func (s *session) failure(sub *playback.Subscription) error {
	s.clearStatus()
	for {
		select {
		case e := <-sub.Errors:
			if e.Kind != playback.KindInvalidState {
				return e.Err
			}
			cli.PrintError(e.Message)
		default:
			return errors.New("playback failed")
		}
	}
}

func (s *session) handle(line string) error {
	cmd, err := parseCommand(line)
	if err != nil {
		s.clearStatus()
		cli.PrintWarning(err.Error())
		return nil
	}

	// Rejected operations arrive as ErrorEvent and are printed there.
	switch cmd.op {
	case opToggle:
		_ = s.svc.Toggle()
	case opQuit:
		return errQuit
	case opSeekBy:
		_ = s.svc.SeekBy(cmd.dur)
	case opSeek:
		_ = s.svc.Seek(cmd.dur)
	case opVolume:
		s.svc.SetVolume(cmd.value)
	case opVolumeBy:
		s.svc.SetVolume(s.svc.Volume() + cmd.value)
	case opLoops:
		s.svc.SetLoopCount(cmd.n)
	case opInfo:
		s.printInfo()
	case opHelp:
		s.clearStatus()
		fmt.Fprintln(s.out, commandHelp)
	}
	return nil
}

func (s *session) printLoaded(e playback.LoadedEvent) {
	s.clearStatus()
	s.logger.Info("source loaded",
		"session", e.Session,
		"source", e.Source.Location(),
		"duration", e.Duration.Value,
		"duration_kind", e.Duration.Kind.String())
	if e.Duration.Known() {
		cli.PrintInfo("Duration", cli.FormatDuration(e.Duration.Value))
	}
	if e.Bitrate > 0 {
		cli.PrintInfo("Bitrate", fmt.Sprintf("%d kbps", e.Bitrate/1000))
	}
}

// printPlayback reports whether the session is over.
func (s *session) printPlayback(e playback.PlaybackEvent) bool {
	s.clearStatus()
	switch e.Kind {
	case playback.EventStarted:
		cli.PrintSuccess("Playing " + cli.DescribeSource(e.Source))
	case playback.EventLooped:
		cli.PrintInfo("Loop", loopsLeft(e.LoopsRemaining))
	case playback.EventFinished:
		cli.PrintSuccess("Finished")
		return true
	case playback.EventPaused, playback.EventResumed:
	}
	return false
}

func (s *session) printInfo() {
	s.clearStatus()
	info, ok := s.svc.Info()
	if !ok {
		cli.PrintInfo("State", info.State.String())
		return
	}
	cli.PrintInfo("Session", info.Session.String())
	cli.PrintInfo("Source", cli.DescribeSource(info.Source))
	cli.PrintInfo("State", info.State.String())
	cli.PrintInfo("Position", cli.FormatDuration(info.Position))
	if info.Duration.Known() {
		cli.PrintInfo("Duration", cli.FormatDuration(info.Duration.Value)+" ("+info.Duration.Kind.String()+")")
	}
	if info.Source.Kind != playback.SourceFile {
		cli.PrintInfo("Received", cli.FormatBytes(info.TotalBytes))
		cli.PrintInfo("Buffered", cli.FormatBytes(info.BufferedBytes))
	}
	cli.PrintInfo("Volume", strconv.FormatFloat(info.Volume, 'f', 2, 64))
	cli.PrintInfo("Loops", loopsLeft(info.LoopsRemaining))
}

func loopsLeft(n int) string {
	if n < 0 {
		return "forever"
	}
	return strconv.Itoa(n) + " left"
}

func (s *session) drawStatus() {
	if !s.status {
		return
	}
	info, ok := s.svc.Info()
	if !ok || !info.State.IsActive() {
		return
	}
	fmt.Fprint(s.out, "\r"+cli.StatusLine(info)+"\x1b[K")
}

func (s *session) clearStatus() {
	if s.status {
		fmt.Fprint(s.out, "\r\x1b[K")
	}
}
