package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Volume  *float64 `koanf:"volume"`   // 0.0-1.0 (default: 1.0)
	Loops   *int     `koanf:"loops"`    // replays after the first play, -1 forever (default: 0)
	StateDB string   `koanf:"state_db"` // sqlite path; empty uses the XDG data dir
	LogFile string   `koanf:"log_file"` // empty uses the XDG state dir

	// Remote playback
	Stream StreamConfig `koanf:"stream"`

	// Audio output
	Speaker SpeakerConfig `koanf:"speaker"`
}

// StreamConfig holds HTTP download settings.
type StreamConfig struct {
	UserAgent             string `koanf:"user_agent"`              // default: "RNSoundPlayer"
	ConnectTimeoutSeconds int    `koanf:"connect_timeout_seconds"` // default: 10
	ReadTimeoutSeconds    int    `koanf:"read_timeout_seconds"`    // default: 10
	ChunkSize             int    `koanf:"chunk_size"`              // bytes per read (default: 32768)
	EncryptedChunkSize    int    `koanf:"encrypted_chunk_size"`    // bytes per read when decrypting (max/default: 65536)
	StartBufferBytes      int64  `koanf:"start_buffer_bytes"`      // buffered before decoding starts (default: 65536)
}

// SpeakerConfig holds audio device settings.
type SpeakerConfig struct {
	BufferMs int `koanf:"buffer_ms"` // device buffer length (default: 100)
}

const (
	defaultUserAgent      = "RNSoundPlayer"
	defaultTimeoutSeconds = 10
	defaultChunkSize      = 32 * 1024
	maxEncryptedChunkSize = 64 * 1024
	defaultStartBuffer    = 64 * 1024
	defaultSpeakerBuffer  = 100
)

// Load reads the config files in priority order. Missing files are skipped.
func Load() (*Config, error) {
	return LoadFrom(getConfigPaths()...)
}

// LoadFrom reads the given files in order (last wins).
func LoadFrom(paths ...string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, err
			}
		}
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	cfg.StateDB = expandPath(cfg.StateDB)
	cfg.LogFile = expandPath(cfg.LogFile)
	cfg.Stream.UserAgent = strings.TrimSpace(cfg.Stream.UserAgent)

	return cfg, nil
}

func getConfigPaths() []string {
	paths := []string{}

	// 1. ~/.config/soundplayer/config.toml
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "soundplayer", "config.toml"))
	}

	// 2. ./config.toml (pwd, highest priority)
	paths = append(paths, "config.toml")

	return paths
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// GetVolume returns the configured volume clamped to [0, 1].
func (c *Config) GetVolume() float64 {
	if c.Volume == nil {
		return 1
	}
	return min(max(*c.Volume, 0), 1)
}

// HasVolume reports whether the config file sets a volume.
func (c *Config) HasVolume() bool {
	return c.Volume != nil
}

// GetLoops returns the configured loop count, 0 when unset.
func (c *Config) GetLoops() int {
	if c.Loops == nil {
		return 0
	}
	return *c.Loops
}

// HasLoops reports whether the config file sets a loop count.
func (c *Config) HasLoops() bool {
	return c.Loops != nil
}

// GetStreamConfig returns the stream configuration with defaults applied.
func (c *Config) GetStreamConfig() StreamConfig {
	cfg := c.Stream

	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.ConnectTimeoutSeconds <= 0 {
		cfg.ConnectTimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.ReadTimeoutSeconds <= 0 {
		cfg.ReadTimeoutSeconds = defaultTimeoutSeconds
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = defaultChunkSize
	}
	if cfg.EncryptedChunkSize <= 0 || cfg.EncryptedChunkSize > maxEncryptedChunkSize {
		cfg.EncryptedChunkSize = maxEncryptedChunkSize
	}
	if cfg.StartBufferBytes <= 0 {
		cfg.StartBufferBytes = defaultStartBuffer
	}

	return cfg
}

// ConnectTimeout returns the dial and TLS handshake timeout.
func (s StreamConfig) ConnectTimeout() time.Duration {
	return time.Duration(s.ConnectTimeoutSeconds) * time.Second
}

// ReadTimeout returns the allowed idle time between body reads.
func (s StreamConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// GetSpeakerConfig returns the speaker configuration with defaults applied.
func (c *Config) GetSpeakerConfig() SpeakerConfig {
	cfg := c.Speaker
	if cfg.BufferMs <= 0 {
		cfg.BufferMs = defaultSpeakerBuffer
	}
	return cfg
}

// BufferSize returns the device buffer length.
func (s SpeakerConfig) BufferSize() time.Duration {
	return time.Duration(s.BufferMs) * time.Millisecond
}
