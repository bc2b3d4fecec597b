package player

import (
	"math"
	"sync/atomic"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// controls applies pause and volume to the track on the audio goroutine.
// Setters never take the sink lock: while a streamed source waits for
// bytes the audio goroutine holds that lock inside Stream, and pausing
// must not wait for the network.
type controls struct {
	volume effects.Volume
	paused atomic.Bool
	level  atomic.Uint64 // math.Float64bits of the 0..1 level
}

func newControls(s beep.Streamer, level float64, paused bool) *controls {
	c := &controls{volume: effects.Volume{Streamer: s, Base: 2}}
	c.paused.Store(paused)
	c.setLevel(level)
	return c
}

func (c *controls) setPaused(paused bool) { c.paused.Store(paused) }

func (c *controls) setLevel(level float64) {
	c.level.Store(math.Float64bits(level))
}

// Stream plays silence without advancing the source while paused.
func (c *controls) Stream(samples [][2]float64) (int, bool) {
	if c.paused.Load() {
		clear(samples)
		return len(samples), true
	}
	level := math.Float64frombits(c.level.Load())
	c.volume.Volume = levelToVolume(level)
	c.volume.Silent = level <= 0
	return c.volume.Stream(samples)
}

func (c *controls) Err() error { return c.volume.Err() }
