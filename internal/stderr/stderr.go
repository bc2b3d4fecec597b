//go:build !windows

// Package stderr captures output that C audio backends (ALSA, PulseAudio)
// write directly to file descriptor 2, bypassing Go's os.Stderr.
package stderr

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Capture redirects fd 2 into a pipe until Stop.
type Capture struct {
	orig int
	r, w *os.File
	done chan struct{}
	once sync.Once
}

// Start begins capturing stderr. onLine receives each non-empty line on a
// dedicated goroutine. Call it before the audio device is opened.
//
// The program can keep running when Start fails; output then goes to the
// original stderr.
func Start(onLine func(string)) (*Capture, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, err
	}

	fd := int(os.Stderr.Fd())
	orig, err := unix.Dup(fd)
	if err != nil {
		r.Close()
		w.Close()
		return nil, fmt.Errorf("dup stderr: %w", err)
	}

	if err := unix.Dup2(int(w.Fd()), fd); err != nil {
		unix.Close(orig)
		r.Close()
		w.Close()
		return nil, fmt.Errorf("redirect stderr: %w", err)
	}

	c := &Capture{orig: orig, r: r, w: w, done: make(chan struct{})}
	go c.read(onLine)
	return c, nil
}

func (c *Capture) read(onLine func(string)) {
	defer close(c.done)
	scanner := bufio.NewScanner(c.r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" && onLine != nil {
			onLine(line)
		}
	}
}

// Original returns a writer to the stderr that was active before Start.
func (c *Capture) Original() io.Writer {
	return originalWriter(c.orig)
}

type originalWriter int

func (fd originalWriter) Write(p []byte) (int, error) {
	return unix.Write(int(fd), p)
}

// Stop restores the original stderr and waits until every captured line
// was delivered. It is safe to call more than once.
func (c *Capture) Stop() {
	c.once.Do(func() {
		fd := int(os.Stderr.Fd())
		_ = unix.Dup2(c.orig, fd)

		// fd 2 no longer refers to the pipe, so closing w ends the reader.
		c.w.Close()
		<-c.done
		c.r.Close()
		_ = unix.Close(c.orig)
	})
}
