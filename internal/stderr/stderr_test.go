//go:build !windows

package stderr

import (
	"fmt"
	"os"
	"sync"
	"testing"
)

func TestCapture_RedirectsFD2(t *testing.T) {
	var (
		mu    sync.Mutex
		lines []string
	)
	c, err := Start(func(line string) {
		mu.Lock()
		lines = append(lines, line)
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	fmt.Fprintln(os.Stderr, "ALSA lib pcm.c: underrun occurred")
	fmt.Fprintln(os.Stderr, "   ")
	fmt.Fprintln(os.Stderr, "second line")

	c.Stop()
	c.Stop()

	mu.Lock()
	defer mu.Unlock()
	want := []string{"ALSA lib pcm.c: underrun occurred", "second line"}
	if len(lines) != len(want) {
		t.Fatalf("captured %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestCapture_OriginalBypassesPipe(t *testing.T) {
	captured := make(chan string, 4)
	c, err := Start(func(line string) { captured <- line })
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if _, err := fmt.Fprint(c.Original(), ""); err != nil {
		t.Errorf("write to original stderr: %v", err)
	}
	c.Stop()

	select {
	case line := <-captured:
		t.Errorf("unexpected captured line %q", line)
	default:
	}
}
