package player

import (
	"io"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
)

// Track is a decoded audio source ready to be loaded into a Player.
type Track struct {
	streamer beep.StreamSeekCloser
	format   beep.Format
	codec    Codec
	name     string
	source   io.Closer

	sourceOnce   sync.Once
	streamerOnce sync.Once
}

// NewTrack wraps a decoder. source is closed together with the track and
// may be nil.
func NewTrack(s beep.StreamSeekCloser, format beep.Format, codec Codec, source io.Closer) *Track {
	return &Track{streamer: s, format: format, codec: codec, source: source}
}

func (t *Track) Codec() Codec        { return t.codec }
func (t *Track) Format() beep.Format { return t.format }

// Duration returns the decoded length, or 0 if the decoder cannot tell.
func (t *Track) Duration() time.Duration {
	if t.streamer == nil || t.format.SampleRate == 0 {
		return 0
	}
	n := t.streamer.Len()
	if n <= 0 {
		return 0
	}
	return t.format.SampleRate.D(n)
}

// closeSource unblocks a decoder waiting on the source.
func (t *Track) closeSource() {
	t.sourceOnce.Do(func() {
		if t.source != nil {
			_ = t.source.Close()
		}
	})
}

// Close releases the decoder and its source. It is safe to call twice.
func (t *Track) Close() error {
	var err error
	t.streamerOnce.Do(func() {
		if t.streamer != nil {
			err = t.streamer.Close()
		}
	})
	t.closeSource()
	return err
}
