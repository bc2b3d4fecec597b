//go:build linux

// Package mpris exposes the playback service on the session bus as an
// MPRIS media player.
package mpris

import (
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"path"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"github.com/google/uuid"
	"github.com/quarckster/go-mpris-server/pkg/server"
	"github.com/quarckster/go-mpris-server/pkg/types"

	"github.com/llehouerou/soundplayer/internal/playback"
	"github.com/llehouerou/soundplayer/internal/tags"
)

const busName = "soundplayer"

// ErrUnsupportedURI is returned by OpenUri for schemes other than file,
// http and https.
var ErrUnsupportedURI = errors.New("mpris: unsupported uri")

// Adapter connects the playback service to MPRIS over D-Bus.
type Adapter struct {
	server *server.Server
}

// New creates and starts a new MPRIS adapter.
func New(service playback.Service) (*Adapter, error) {
	a := &Adapter{
		server: server.NewServer(busName, &rootAdapter{}, newPlayerAdapter(service)),
	}

	// Start the server in background
	go func() {
		_ = a.server.Listen()
	}()

	return a, nil
}

// Close stops the adapter and releases D-Bus resources.
func (a *Adapter) Close() error {
	return a.server.Stop()
}

// rootAdapter implements OrgMprisMediaPlayer2Adapter.
type rootAdapter struct{}

func (r *rootAdapter) Raise() error {
	return nil
}

func (r *rootAdapter) Quit() error {
	return nil // the host owns its lifecycle
}

func (r *rootAdapter) CanQuit() (bool, error) {
	return false, nil
}

func (r *rootAdapter) CanRaise() (bool, error) {
	return false, nil
}

func (r *rootAdapter) HasTrackList() (bool, error) {
	return false, nil
}

func (r *rootAdapter) Identity() (string, error) {
	return "Sound Player", nil
}

//nolint:revive // Method name required by interface.
func (r *rootAdapter) SupportedUriSchemes() ([]string, error) {
	return []string{"file", "http", "https"}, nil
}

func (r *rootAdapter) SupportedMimeTypes() ([]string, error) {
	return []string{"audio/mpeg", "audio/mp3", "audio/flac", "audio/wav", "audio/ogg"}, nil
}

// playerAdapter implements OrgMprisMediaPlayer2PlayerAdapter and the loop
// status extension.
type playerAdapter struct {
	service playback.Service

	// tags of the current local file, keyed by session
	mu      sync.Mutex
	tagFor  string
	tagInfo *tags.Tag
}

func newPlayerAdapter(service playback.Service) *playerAdapter {
	return &playerAdapter{service: service}
}

func (p *playerAdapter) Next() error {
	return nil // single track
}

func (p *playerAdapter) Previous() error {
	return p.service.Seek(0)
}

func (p *playerAdapter) Pause() error {
	return p.service.Pause()
}

func (p *playerAdapter) PlayPause() error {
	return p.service.Toggle()
}

func (p *playerAdapter) Stop() error {
	return p.service.Stop()
}

func (p *playerAdapter) Play() error {
	return p.service.Resume()
}

func (p *playerAdapter) Seek(offset types.Microseconds) error {
	return p.service.SeekBy(time.Duration(offset) * time.Microsecond)
}

func (p *playerAdapter) SetPosition(_ string, position types.Microseconds) error {
	return p.service.Seek(time.Duration(position) * time.Microsecond)
}

// OpenUri plays file URIs from disk and http(s) URIs as progressive streams.
//
//nolint:revive // Method name required by interface.
func (p *playerAdapter) OpenUri(uri string) error {
	u, err := url.Parse(uri)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnsupportedURI, err)
	}
	switch u.Scheme {
	case "file":
		return p.service.PlayFile(u.Path)
	case "http", "https":
		return p.service.PlayStream(uri, nil)
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedURI, uri)
}

func (p *playerAdapter) PlaybackStatus() (types.PlaybackStatus, error) {
	switch p.service.State() {
	case playback.StatePlaying:
		return types.PlaybackStatusPlaying, nil
	case playback.StatePaused, playback.StateLoading:
		return types.PlaybackStatusPaused, nil
	case playback.StateIdle, playback.StateFinished, playback.StateError:
		return types.PlaybackStatusStopped, nil
	}
	return types.PlaybackStatusStopped, nil
}

func (p *playerAdapter) Rate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) SetRate(_ float64) error {
	return nil
}

func (p *playerAdapter) Metadata() (types.Metadata, error) {
	info, ok := p.service.Info()
	if !ok || info.Session == uuid.Nil {
		return types.Metadata{}, nil
	}

	meta := types.Metadata{
		TrackId: dbus.ObjectPath(formatTrackID(info.Session.String())),
		Length:  types.Microseconds(info.Duration.Value.Microseconds()),
	}

	if info.Source.Kind == playback.SourceFile {
		t := p.fileTags(info.Session.String(), info.Source.Path)
		meta.Title = t.Title
		meta.Album = t.Album
		meta.TrackNumber = t.TrackNumber
		if t.Artist != "" {
			meta.Artist = []string{t.Artist}
		}
		if art := findCoverArt(info.Source.Path); art != "" {
			meta.ArtUrl = "file://" + art
		}
	} else {
		meta.Title = streamTitle(info.Source.URL)
	}

	return meta, nil
}

// fileTags reads the tags of path once per session.
func (p *playerAdapter) fileTags(session, path string) *tags.Tag {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.tagFor != session || p.tagInfo == nil {
		p.tagFor = session
		p.tagInfo = tags.ReadOrPath(path)
	}
	return p.tagInfo
}

func (p *playerAdapter) Volume() (float64, error) {
	return p.service.Volume(), nil
}

func (p *playerAdapter) SetVolume(volume float64) error {
	p.service.SetVolume(volume)
	return nil
}

func (p *playerAdapter) Position() (int64, error) {
	info, ok := p.service.Info()
	if !ok {
		return 0, nil
	}
	return info.Position.Microseconds(), nil
}

func (p *playerAdapter) MinimumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) MaximumRate() (float64, error) {
	return 1.0, nil
}

func (p *playerAdapter) CanGoNext() (bool, error) {
	return false, nil
}

func (p *playerAdapter) CanGoPrevious() (bool, error) {
	return p.CanSeek()
}

func (p *playerAdapter) CanPlay() (bool, error) {
	return p.service.State() == playback.StatePaused, nil
}

func (p *playerAdapter) CanPause() (bool, error) {
	return p.service.State() == playback.StatePlaying, nil
}

func (p *playerAdapter) CanSeek() (bool, error) {
	info, ok := p.service.Info()
	return ok && info.State.IsActive() && info.Duration.Known(), nil
}

func (p *playerAdapter) CanControl() (bool, error) {
	return true, nil
}

// LoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
// Any remaining loop count shows as Track.
func (p *playerAdapter) LoopStatus() (types.LoopStatus, error) {
	if p.service.LoopCount() == 0 {
		return types.LoopStatusNone, nil
	}
	return types.LoopStatusTrack, nil
}

// SetLoopStatus implements OrgMprisMediaPlayer2PlayerAdapterLoopStatus.
func (p *playerAdapter) SetLoopStatus(status types.LoopStatus) error {
	switch status {
	case types.LoopStatusNone:
		p.service.SetLoopCount(0)
	case types.LoopStatusTrack, types.LoopStatusPlaylist:
		p.service.SetLoopCount(-1)
	}
	return nil
}

func formatTrackID(id string) string {
	h := fnv.New64a()
	h.Write([]byte(id))
	return fmt.Sprintf("/org/mpris/MediaPlayer2/Track/%x", h.Sum64())
}

// streamTitle names a stream after the last path element of its URL.
func streamTitle(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" || u.Path == "/" {
		return raw
	}
	return path.Base(u.Path)
}
