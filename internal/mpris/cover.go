//go:build linux

package mpris

import (
	"os"
	"path/filepath"
)

// coverNames lists album art filenames checked next to a track, in order.
var coverNames = []string{
	"cover.jpg", "cover.png",
	"folder.jpg", "folder.png",
	"front.jpg", "front.png",
}

// findCoverArt returns the first cover image beside trackPath, or "".
func findCoverArt(trackPath string) string {
	dir := filepath.Dir(trackPath)
	for _, name := range coverNames {
		p := filepath.Join(dir, name)
		if fi, err := os.Stat(p); err == nil && !fi.IsDir() {
			return p
		}
	}
	return ""
}
