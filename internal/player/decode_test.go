package player

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeWAV writes a 16-bit stereo sawtooth of the given length.
func writeWAV(t *testing.T, dir string, rate int, length time.Duration) string {
	t.Helper()

	path := filepath.Join(dir, "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	frames := int(int64(rate) * int64(length) / int64(time.Second))
	data := make([]int, frames*2)
	for i := range data {
		data[i] = (i % 2000) - 1000
	}

	enc := wav.NewEncoder(f, rate, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	return path
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   Codec
	}{
		{"flac", []byte("fLaC\x00\x00\x00\x22"), CodecFLAC},
		{"wav", []byte("RIFF\x24\x00\x00\x00WAVE"), CodecWAV},
		{"riff without wave", []byte("RIFF\x24\x00\x00\x00AVI "), CodecUnknown},
		{"ogg", []byte("OggS\x00\x02"), CodecVorbis},
		{"id3", []byte("ID3\x04\x00\x00\x00\x00\x00\x00"), CodecMP3},
		{"mpeg frame sync", []byte{0xFF, 0xFB, 0x90, 0x64}, CodecMP3},
		{"garbage", []byte("hello world!"), CodecUnknown},
		{"empty", nil, CodecUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sniff(tt.header))
		})
	}
}

func TestCodecFromExt(t *testing.T) {
	assert.Equal(t, CodecMP3, CodecFromExt("/music/a.MP3"))
	assert.Equal(t, CodecFLAC, CodecFromExt("b.flac"))
	assert.Equal(t, CodecVorbis, CodecFromExt("c.oga"))
	assert.Equal(t, CodecUnknown, CodecFromExt("https://cdn.example.com/track"))
}

func TestDetectCodec_FLACBehindID3(t *testing.T) {
	var b bytes.Buffer
	// ID3v2.4 header with a 5 byte body
	b.Write([]byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 5})
	b.Write([]byte{0, 0, 0, 0, 0})
	b.WriteString("fLaC")

	r := bytes.NewReader(b.Bytes())
	codec, err := DetectCodec(r, "")
	require.NoError(t, err)
	assert.Equal(t, CodecFLAC, codec)

	pos, err := r.Seek(0, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(0), pos, "reader must be rewound")
}

func TestDetectCodec_FallsBackToExtension(t *testing.T) {
	codec, err := DetectCodec(bytes.NewReader([]byte("????")), "song.ogg")
	require.NoError(t, err)
	assert.Equal(t, CodecVorbis, codec)
}

func TestSkipID3v2(t *testing.T) {
	data := append([]byte{'I', 'D', '3', 3, 0, 0, 0, 0, 1, 0}, make([]byte, 128)...)
	data = append(data, "AUDIO"...)
	r := bytes.NewReader(data)

	require.NoError(t, skipID3v2(r))
	rest := make([]byte, 5)
	_, err := r.Read(rest)
	require.NoError(t, err)
	assert.Equal(t, "AUDIO", string(rest))
}

func TestDecode_WAV(t *testing.T) {
	path := writeWAV(t, t.TempDir(), 44100, time.Second)
	f, err := os.Open(path)
	require.NoError(t, err)

	track, err := Decode(f, path)
	require.NoError(t, err)
	defer track.Close()

	assert.Equal(t, CodecWAV, track.Codec())
	assert.Equal(t, 44100, int(track.Format().SampleRate))
	assert.Equal(t, time.Second, track.Duration())
}

func TestDecode_Unsupported(t *testing.T) {
	_, err := Decode(nopSource{bytes.NewReader([]byte("definitely not audio"))}, "notes.txt")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDecode_CorruptWAV(t *testing.T) {
	_, err := Decode(nopSource{bytes.NewReader([]byte("RIFF\x00\x00\x00\x00WAVEjunk"))}, "x.wav")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode WAV")
}
