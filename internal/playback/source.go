package playback

import (
	"time"

	"github.com/llehouerou/soundplayer/internal/ctr"
)

// SourceKind tells how the audio bytes reach the decoder.
type SourceKind int

const (
	// SourceFile is a local file opened directly.
	SourceFile SourceKind = iota
	// SourceURL is downloaded completely before decoding starts.
	SourceURL
	// SourceStream is decoded while it downloads.
	SourceStream
)

func (k SourceKind) String() string {
	switch k {
	case SourceFile:
		return "file"
	case SourceURL:
		return "url"
	case SourceStream:
		return "stream"
	default:
		return "unknown"
	}
}

// Source identifies what a session plays.
type Source struct {
	Kind       SourceKind
	Path       string // SourceFile
	URL        string // SourceURL, SourceStream
	Encryption *Encryption
}

// Location returns the path or URL of the source.
func (s Source) Location() string {
	if s.Kind == SourceFile {
		return s.Path
	}
	return s.URL
}

// Encrypted reports whether the source carries encryption parameters.
func (s Source) Encrypted() bool {
	return s.Encryption != nil
}

// Encryption holds the parameters of an AES-CTR protected stream.
//
// Bitrate and Duration describe the plaintext when the container does not
// carry reliable timing; a positive Duration overrides the decoded one.
type Encryption struct {
	KeyHex         string
	CounterBaseHex string
	Bitrate        int // bits per second, 0 if unknown
	Duration       time.Duration
}

// HasCustomDuration reports whether Duration should replace the decoded
// track length.
func (e *Encryption) HasCustomDuration() bool {
	return e != nil && e.Duration > 0
}

func (e *Encryption) cipher() (*ctr.Cipher, error) {
	return ctr.FromHex(e.KeyHex, e.CounterBaseHex)
}

// DurationKind tells where a track duration comes from.
type DurationKind int

const (
	DurationUnknown DurationKind = iota
	DurationDecoded
	DurationOverride
)

func (k DurationKind) String() string {
	switch k {
	case DurationDecoded:
		return "decoded"
	case DurationOverride:
		return "override"
	default:
		return "unknown"
	}
}

// TrackDuration is either unknown, the decoder's value, or the value
// supplied with the encryption parameters.
type TrackDuration struct {
	Kind  DurationKind
	Value time.Duration
}

// Known reports whether Value can be used.
func (d TrackDuration) Known() bool {
	return d.Kind != DurationUnknown && d.Value > 0
}

func unknownDuration() TrackDuration { return TrackDuration{} }

func decodedDuration(v time.Duration) TrackDuration {
	if v <= 0 {
		return unknownDuration()
	}
	return TrackDuration{Kind: DurationDecoded, Value: v}
}

func overrideDuration(v time.Duration) TrackDuration {
	return TrackDuration{Kind: DurationOverride, Value: v}
}
