//go:build windows

// Package stderr provides a no-op implementation for Windows.
// Windows audio backends don't write to the process stderr.
package stderr

import (
	"io"
	"os"
)

// Capture is a no-op on Windows.
type Capture struct{}

// Start is a no-op on Windows.
func Start(_ func(string)) (*Capture, error) {
	return &Capture{}, nil
}

// Original returns os.Stderr.
func (c *Capture) Original() io.Writer {
	return os.Stderr
}

// Stop is a no-op on Windows.
func (c *Capture) Stop() {}
