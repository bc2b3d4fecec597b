package player

import (
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep/v2"
)

// ErrNotSeekable is returned when seeking a streamed track before Reopen
// gave it a decoder over the complete source.
var ErrNotSeekable = errors.New("track is not seekable until the download completes")

// sequential hides Seek from decoders. Given an io.Seeker, the MP3 and
// Vorbis decoders read the whole source up front to learn its length,
// which on a download in progress means waiting for its last byte.
type sequential struct {
	rc io.ReadCloser
}

func (s sequential) Read(p []byte) (int, error) { return s.rc.Read(p) }
func (s sequential) Close() error               { return s.rc.Close() }

// swappable is the streamer of a streamed track. Its decoder is replaced
// by Reopen, under the sink lock, without rebuilding the chain.
type swappable struct {
	inner    beep.StreamSeekCloser
	seekable bool
}

func (s *swappable) Stream(samples [][2]float64) (int, bool) { return s.inner.Stream(samples) }
func (s *swappable) Err() error                             { return s.inner.Err() }
func (s *swappable) Len() int                               { return s.inner.Len() }
func (s *swappable) Position() int                          { return s.inner.Position() }
func (s *swappable) Close() error                           { return s.inner.Close() }

func (s *swappable) Seek(p int) error {
	if !s.seekable {
		return ErrNotSeekable
	}
	return s.inner.Seek(p)
}

// DecodeStream opens rsc while it is still being written. The track plays
// from the start but cannot seek; its duration is known only when the
// container header carries it. The returned track owns rsc.
func DecodeStream(rsc io.ReadSeekCloser, name string) (*Track, error) {
	codec, err := detectAndPosition(rsc, name)
	if err != nil {
		return nil, err
	}
	streamer, format, err := decodeCodec(codec, sequential{rsc})
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", codec, err)
	}
	t := NewTrack(&swappable{inner: streamer}, format, codec, rsc)
	t.name = name
	return t, nil
}

// Seekable reports whether SeekTo and Rewind can move the track.
func (t *Track) Seekable() bool {
	s, ok := t.streamer.(*swappable)
	return !ok || s.seekable
}
