package player

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// ErrUnsupportedFormat is returned when no decoder recognizes the data.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// Codec identifies a supported container/codec pair.
type Codec int

const (
	CodecUnknown Codec = iota
	CodecMP3
	CodecFLAC
	CodecWAV
	CodecVorbis
)

func (c Codec) String() string {
	switch c {
	case CodecMP3:
		return "MP3"
	case CodecFLAC:
		return "FLAC"
	case CodecWAV:
		return "WAV"
	case CodecVorbis:
		return "Vorbis"
	default:
		return "Unknown"
	}
}

const (
	extMP3  = ".mp3"
	extFLAC = ".flac"
	extWAV  = ".wav"
	extOGG  = ".ogg"
	extOGA  = ".oga"
)

// sniffLen is how many leading bytes Sniff looks at.
const sniffLen = 12

// Sniff identifies the codec from the first bytes of a file. An ID3v2
// header alone is not conclusive; use DetectCodec to look past it.
func Sniff(header []byte) Codec {
	switch {
	case bytes.HasPrefix(header, []byte("fLaC")):
		return CodecFLAC
	case len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return CodecWAV
	case bytes.HasPrefix(header, []byte("OggS")):
		return CodecVorbis
	case bytes.HasPrefix(header, []byte("ID3")):
		return CodecMP3
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return CodecMP3
	}
	return CodecUnknown
}

// CodecFromExt maps a file name extension to a codec.
func CodecFromExt(name string) Codec {
	switch strings.ToLower(filepath.Ext(name)) {
	case extMP3:
		return CodecMP3
	case extFLAC:
		return CodecFLAC
	case extWAV:
		return CodecWAV
	case extOGG, extOGA:
		return CodecVorbis
	}
	return CodecUnknown
}

// DetectCodec sniffs rs and leaves it positioned at the start. FLAC files
// with a prepended ID3v2 tag are recognized as FLAC. When the content is
// not recognized, the extension of name decides.
func DetectCodec(rs io.ReadSeeker, name string) (Codec, error) {
	header := make([]byte, sniffLen)
	n, err := io.ReadFull(rs, header)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return CodecUnknown, err
	}
	header = header[:n]

	codec := Sniff(header)
	if codec == CodecMP3 && bytes.HasPrefix(header, []byte("ID3")) {
		if err := skipID3v2(rs); err != nil {
			return CodecUnknown, err
		}
		after := make([]byte, 4)
		if m, _ := io.ReadFull(rs, after); m == 4 && string(after) == "fLaC" {
			codec = CodecFLAC
		}
	}
	if _, err := rs.Seek(0, io.SeekStart); err != nil {
		return CodecUnknown, err
	}
	if codec == CodecUnknown {
		codec = CodecFromExt(name)
	}
	return codec, nil
}

// Decode opens rsc with the decoder for its codec. The returned track owns
// rsc; on error rsc is left open for the caller.
func Decode(rsc io.ReadSeekCloser, name string) (*Track, error) {
	codec, err := detectAndPosition(rsc, name)
	if err != nil {
		return nil, err
	}
	streamer, format, err := decodeCodec(codec, rsc)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", codec, err)
	}
	t := NewTrack(streamer, format, codec, rsc)
	t.name = name
	return t, nil
}

// detectAndPosition finds the codec of rsc and leaves rsc where its
// decoder expects to start.
func detectAndPosition(rsc io.ReadSeeker, name string) (Codec, error) {
	codec, err := DetectCodec(rsc, name)
	if err != nil {
		return CodecUnknown, fmt.Errorf("detect format: %w", err)
	}
	if codec == CodecUnknown {
		return CodecUnknown, ErrUnsupportedFormat
	}
	if codec == CodecFLAC {
		// beep's FLAC decoder does not skip a prepended ID3v2 tag
		if err := skipID3v2(rsc); err != nil {
			return CodecUnknown, err
		}
	}
	return codec, nil
}

// decodeCodec runs the decoder for codec on rc. Seeking the result needs
// rc to be an io.Seeker.
func decodeCodec(codec Codec, rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	switch codec {
	case CodecMP3:
		return decodeGoMP3(rc)
	case CodecFLAC:
		return flac.Decode(rc)
	case CodecWAV:
		return wav.Decode(rc)
	case CodecVorbis:
		return vorbis.Decode(rc)
	}
	return nil, beep.Format{}, ErrUnsupportedFormat
}

// skipID3v2 positions r after an ID3v2 tag, or at the start if there is none.
func skipID3v2(r io.ReadSeeker) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	header := make([]byte, 10)
	n, err := io.ReadFull(r, header)
	if n < 10 || string(header[0:3]) != "ID3" {
		_, serr := r.Seek(0, io.SeekStart)
		if serr != nil {
			return serr
		}
		if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
			return err
		}
		return nil
	}

	// syncsafe integer: 7 bits per byte
	size := int64(header[6])<<21 | int64(header[7])<<14 | int64(header[8])<<7 | int64(header[9])
	_, err = r.Seek(10+size, io.SeekStart)
	return err
}
