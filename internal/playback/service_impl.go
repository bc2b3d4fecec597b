// internal/playback/service_impl.go
package playback

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/llehouerou/soundplayer/internal/ctr"
	"github.com/llehouerou/soundplayer/internal/errmsg"
	"github.com/llehouerou/soundplayer/internal/player"
	"github.com/llehouerou/soundplayer/internal/stream"
)

// Verify serviceImpl implements Service at compile time.
var _ Service = (*serviceImpl)(nil)

// serviceImpl serializes control calls and asynchronous inputs on mu.
// Every asynchronous input carries the epoch of the session that produced
// it and is dropped once that session has been replaced.
type serviceImpl struct {
	mu sync.Mutex

	player  player.Interface
	fetcher Fetcher
	history History
	logger  *slog.Logger
	buf     *stream.Buffer

	startBuffer int64
	loops       int
	volume      float64

	state   State
	epoch   uint64
	session *session
	closed  bool

	subs   []*Subscription
	subsMu sync.RWMutex
}

type session struct {
	id       uuid.UUID
	epoch    uint64
	source   Source
	op       errmsg.Op
	autoplay bool
	size     int64 // source size in bytes, 0 if unknown

	gen    uint64
	cancel context.CancelFunc
	timer  *time.Timer

	track       *player.Track
	processed   int64
	fetchDone   bool
	preparing   bool
	progressive bool // decoding a download in progress; not seekable yet
	loaded      bool
	started     bool
	loopPending bool // the track ended while it could not rewind yet
	loopsLeft   int
}

// New creates a new playback service.
func New(opts Options) Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	fetcher := opts.Fetcher
	if fetcher == nil {
		fetcher = stream.NewFetcher(stream.Options{}, logger)
	}

	s := &serviceImpl{
		player:      opts.Player,
		fetcher:     fetcher,
		history:     opts.History,
		logger:      logger,
		buf:         stream.NewBuffer(),
		startBuffer: max(opts.StartBufferBytes, 0),
		loops:       opts.Loops,
		volume:      clampVolume(opts.Volume),
		state:       StateIdle,
	}
	s.player.SetVolume(s.volume)
	return s
}

func clampVolume(v float64) float64 {
	return min(max(v, 0), 1)
}

// PlayFile stops the current session and plays a local file.
func (s *serviceImpl) PlayFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.openFileLocked(path, true, errmsg.OpPlayFile)
	return err
}

// LoadFile prepares a local file and leaves it paused.
func (s *serviceImpl) LoadFile(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.openFileLocked(path, false, errmsg.OpLoadFile)
	return err
}

// PlayFileWithDelay loads a local file and starts it after delay, unless
// another session replaced it meanwhile.
func (s *serviceImpl) PlayFileWithDelay(path string, delay time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.openFileLocked(path, false, errmsg.OpDelayPlay)
	if err != nil {
		return err
	}
	epoch := sess.epoch
	sess.timer = time.AfterFunc(max(delay, 0), func() { s.onDelayedStart(epoch) })
	return nil
}

func (s *serviceImpl) openFileLocked(path string, autoplay bool, op errmsg.Op) (*session, error) {
	if s.closed {
		return nil, ErrClosed
	}
	sess := s.beginLocked(Source{Kind: SourceFile, Path: path}, autoplay, op)

	f, err := os.Open(path)
	if err != nil {
		return nil, s.failLocked(sess, newError(KindAssetLoad, op, err))
	}
	if fi, err := f.Stat(); err == nil {
		sess.size = fi.Size()
	}
	track, err := s.player.Open(f, path)
	if err != nil {
		_ = f.Close()
		return nil, s.failLocked(sess, newError(KindAssetLoad, op, err))
	}
	if err := s.loadLocked(sess, track); err != nil {
		return nil, err
	}
	return sess, nil
}

// PlayURL downloads a resource completely, then plays it.
func (s *serviceImpl) PlayURL(rawURL string) error {
	return s.openRemote(Source{Kind: SourceURL, URL: rawURL}, true, errmsg.OpPlayURL)
}

// LoadURL downloads a resource completely and leaves it paused.
func (s *serviceImpl) LoadURL(rawURL string) error {
	return s.openRemote(Source{Kind: SourceURL, URL: rawURL}, false, errmsg.OpLoadURL)
}

// PlayStream plays a stream while it downloads, decrypting it when enc is
// set.
func (s *serviceImpl) PlayStream(rawURL string, enc *Encryption) error {
	return s.openRemote(Source{Kind: SourceStream, URL: rawURL, Encryption: enc}, true, errmsg.OpPlayStream)
}

// LoadStream buffers and decodes a stream and leaves it paused.
func (s *serviceImpl) LoadStream(rawURL string, enc *Encryption) error {
	return s.openRemote(Source{Kind: SourceStream, URL: rawURL, Encryption: enc}, false, errmsg.OpLoadStream)
}

func (s *serviceImpl) openRemote(src Source, autoplay bool, op errmsg.Op) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	var (
		c   *ctr.Cipher
		err error
	)
	if src.Encryption != nil {
		c, err = src.Encryption.cipher()
	}
	sess := s.beginLocked(src, autoplay, op)
	if err != nil {
		return s.failLocked(sess, newError(KindDecryption, errmsg.OpDecrypt, err))
	}

	sess.gen = s.buf.Reset()
	ctx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel

	req := stream.Request{URL: src.URL, Cipher: c}
	go s.runFetch(ctx, sess.epoch, sess.gen, req)
	return nil
}

func (s *serviceImpl) runFetch(ctx context.Context, epoch, gen uint64, req stream.Request) {
	total, err := s.fetcher.Fetch(ctx, req, s.buf, gen, func(c stream.Chunk) {
		s.onChunk(epoch, c)
	})
	s.onFetchDone(epoch, total, err)
}

// beginLocked replaces the current session with a new one in Loading.
func (s *serviceImpl) beginLocked(src Source, autoplay bool, op errmsg.Op) *session {
	s.teardownLocked(OutcomeStopped)

	s.epoch++
	sess := &session{
		id:        uuid.New(),
		epoch:     s.epoch,
		source:    src,
		op:        op,
		autoplay:  autoplay,
		loopsLeft: s.loops,
	}
	s.session = sess

	s.logger.Info("session started",
		"session", sess.id,
		"epoch", sess.epoch,
		"kind", src.Kind.String(),
		"location", src.Location(),
		"encrypted", src.Encrypted())
	if s.history != nil {
		if err := s.history.Begin(sess.id, src.Kind.String(), src.Location(), src.Encrypted()); err != nil {
			s.logger.Warn(errmsg.Format(errmsg.OpHistorySave, err))
		}
	}

	s.setStateLocked(StateLoading)
	return sess
}

// currentLocked returns the session for epoch, or nil if it was replaced.
func (s *serviceImpl) currentLocked(epoch uint64) *session {
	if s.session == nil || s.session.epoch != epoch {
		return nil
	}
	return s.session
}

func (s *serviceImpl) onChunk(epoch uint64, c stream.Chunk) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(epoch)
	if sess == nil {
		return
	}
	sess.processed += int64(c.Size)
	s.emitChunk(ChunkEvent{
		Session:   sess.id,
		Size:      c.Size,
		Position:  c.Offset,
		Total:     sess.processed,
		Encrypted: c.Encrypted,
	})

	if sess.source.Kind == SourceStream && !sess.preparing && sess.processed >= s.startBuffer {
		s.prepareLocked(sess)
	}
}

func (s *serviceImpl) onFetchDone(epoch uint64, total int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(epoch)
	if sess == nil {
		s.logger.Debug("dropping stale download result", "epoch", epoch, "err", err)
		return
	}
	sess.fetchDone = true
	if err != nil {
		_ = s.failLocked(sess, newError(KindNetwork, sess.op, err))
		return
	}

	s.logger.Debug("download complete", "session", sess.id, "bytes", total)
	switch {
	case !sess.preparing:
		s.prepareLocked(sess)
	case sess.loaded && sess.progressive:
		s.reopenLocked(sess)
	}
}

// prepareLocked decodes the buffered stream off the lock; decoders may
// block waiting for more bytes. A download still in progress is opened
// without seeking so the decoder does not wait for its end.
func (s *serviceImpl) prepareLocked(sess *session) {
	sess.preparing = true
	sess.progressive = !sess.fetchDone
	epoch := sess.epoch
	name := sourceName(sess.source)
	r := s.buf.NewReader(sess.gen)

	open := s.player.Open
	if sess.progressive {
		open = s.player.OpenStream
	}
	go func() {
		track, err := open(r, name)
		s.onPrepared(epoch, r, track, err)
	}()
}

// reopenLocked gives a progressive track a decoder over the complete
// download, which makes it seekable.
func (s *serviceImpl) reopenLocked(sess *session) {
	epoch, track := sess.epoch, sess.track
	r := s.buf.NewReader(sess.gen)

	go func() {
		err := s.player.Reopen(track, r)
		s.onReopened(epoch, err)
	}()
}

func (s *serviceImpl) onReopened(epoch uint64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(epoch)
	if sess == nil {
		return
	}
	if err != nil {
		s.logger.Warn("stream stays unseekable", "session", sess.id, "err", err)
		if sess.loopPending {
			_ = s.failLocked(sess, newError(KindAssetLoad, errmsg.OpLoop, err))
		}
		return
	}

	sess.progressive = false
	s.logger.Debug("stream seekable",
		"session", sess.id,
		"duration", s.durationLocked(sess).Value)
	if sess.loopPending {
		sess.loopPending = false
		s.loopLocked(sess)
	}
}

func (s *serviceImpl) onPrepared(epoch uint64, r *stream.Reader, track *player.Track, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(epoch)
	if sess == nil {
		if track != nil {
			_ = track.Close()
		}
		_ = r.Close()
		return
	}
	if err != nil {
		_ = r.Close()
		_ = s.failLocked(sess, s.classifyDecodeError(sess, err))
		return
	}
	_ = s.loadLocked(sess, track)
}

func (s *serviceImpl) classifyDecodeError(sess *session, err error) *Error {
	if done, ferr := s.buf.Done(); done && ferr != nil {
		return newError(KindNetwork, sess.op, ferr)
	}
	if sess.source.Encrypted() {
		return newError(KindDecryption, errmsg.OpDecrypt, err)
	}
	return newError(KindAssetLoad, errmsg.OpDecode, err)
}

func sourceName(src Source) string {
	if src.Kind == SourceFile {
		return src.Path
	}
	if u, err := url.Parse(src.URL); err == nil {
		return u.Path
	}
	return src.URL
}

// loadLocked hands a decoded track to the player and starts it when the
// session was opened with autoplay.
func (s *serviceImpl) loadLocked(sess *session, track *player.Track) error {
	epoch := sess.epoch
	err := s.player.Load(track, func(err error) {
		// runs on the audio goroutine with the sink locked
		go s.onTrackEnd(epoch, err)
	})
	if err != nil {
		return s.failLocked(sess, newError(KindAssetLoad, sess.op, err))
	}
	sess.track = track
	sess.loaded = true
	if sess.progressive && sess.fetchDone {
		s.reopenLocked(sess)
	}

	enc := sess.source.Encryption
	loaded := LoadedEvent{
		Session:   sess.id,
		Source:    sess.source,
		Encrypted: enc != nil,
		Bitrate:   s.bitrateLocked(sess),
		Duration:  s.durationLocked(sess),
	}
	s.logger.Info("source loaded",
		"session", sess.id,
		"codec", track.Codec().String(),
		"duration", loaded.Duration.Value,
		"duration_kind", loaded.Duration.Kind.String())
	s.emitLoaded(loaded)

	if sess.autoplay {
		s.startLocked(sess)
	} else {
		s.setStateLocked(StatePaused)
	}
	return nil
}

// startLocked runs the loaded track. The first start of a session reports
// Started, later ones Resumed.
func (s *serviceImpl) startLocked(sess *session) {
	s.player.Resume()
	kind := EventResumed
	if !sess.started {
		sess.started = true
		kind = EventStarted
	}
	s.setStateLocked(StatePlaying)
	s.emitPlayback(kind, sess)
}

func (s *serviceImpl) onDelayedStart(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(epoch)
	if sess == nil || !sess.loaded || sess.started || s.state != StatePaused {
		return
	}
	s.startLocked(sess)
}

func (s *serviceImpl) onTrackEnd(epoch uint64, decodeErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.currentLocked(epoch)
	if sess == nil || !sess.loaded {
		return
	}
	if perr := s.endErrorLocked(sess, decodeErr); perr != nil {
		_ = s.failLocked(sess, perr)
		return
	}

	if sess.loopsLeft != 0 {
		if sess.progressive {
			// rewinding waits for the decoder over the complete download
			sess.loopPending = true
			return
		}
		s.loopLocked(sess)
		return
	}

	s.releaseLocked(sess, OutcomeFinished)
	s.session = nil
	s.setStateLocked(StateFinished)
	s.logger.Info("session finished", "session", sess.id, "bytes", sess.processed)
	s.emitPlayback(EventFinished, sess)
}

// endErrorLocked tells a track that ran out from one that was cut short.
// The download may have failed before its result reached onFetchDone, so
// the buffer is checked first.
func (s *serviceImpl) endErrorLocked(sess *session, decodeErr error) *Error {
	if sess.source.Kind != SourceFile {
		if done, ferr := s.buf.Done(); done && ferr != nil {
			return newError(KindNetwork, sess.op, ferr)
		}
	}
	if decodeErr != nil {
		return s.classifyDecodeError(sess, decodeErr)
	}
	return nil
}

func (s *serviceImpl) loopLocked(sess *session) {
	if sess.loopsLeft > 0 {
		sess.loopsLeft--
	}
	if err := s.player.Rewind(); err != nil {
		_ = s.failLocked(sess, newError(KindAssetLoad, errmsg.OpLoop, err))
		return
	}
	s.logger.Debug("track looped", "session", sess.id, "loops_remaining", sess.loopsLeft)
	s.emitPlayback(EventLooped, sess)
}

// failLocked releases the session, enters Error and reports perr.
func (s *serviceImpl) failLocked(sess *session, perr *Error) error {
	s.logger.Warn("session failed",
		"session", sess.id,
		"kind", perr.Kind.String(),
		"op", string(perr.Op),
		"err", perr.Err)

	s.releaseLocked(sess, OutcomeFailed)
	if s.session == sess {
		s.session = nil
	}
	s.setStateLocked(StateError)
	s.emitError(perr)
	return perr
}

// releaseLocked cancels the download, invalidates the buffer generation
// and stops the player.
func (s *serviceImpl) releaseLocked(sess *session, outcome string) {
	if sess.timer != nil {
		sess.timer.Stop()
	}
	if sess.source.Kind != SourceFile {
		s.buf.Reset()
	}
	if sess.cancel != nil {
		sess.cancel()
	}
	s.player.Stop()

	if s.history != nil {
		if err := s.history.End(sess.id, outcome, sess.processed); err != nil {
			s.logger.Warn(errmsg.Format(errmsg.OpHistorySave, err))
		}
	}
}

func (s *serviceImpl) teardownLocked(outcome string) {
	if s.session == nil {
		return
	}
	sess := s.session
	s.session = nil
	s.releaseLocked(sess, outcome)
}

// Pause pauses a playing session. It is a no-op in any other state.
func (s *serviceImpl) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StatePlaying || s.session == nil {
		return nil
	}
	s.player.Pause()
	s.setStateLocked(StatePaused)
	s.emitPlayback(EventPaused, s.session)
	return nil
}

// Resume resumes a paused session. It is a no-op in any other state.
func (s *serviceImpl) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.state != StatePaused || s.session == nil {
		return nil
	}
	s.startLocked(s.session)
	return nil
}

// Toggle pauses a playing session or resumes a paused one.
func (s *serviceImpl) Toggle() error {
	switch s.State() {
	case StatePlaying:
		return s.Pause()
	case StatePaused:
		return s.Resume()
	default:
		return nil
	}
}

// Stop ends the current session and returns to Idle.
func (s *serviceImpl) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if s.session != nil {
		s.logger.Info("session stopped", "session", s.session.id)
	}
	s.teardownLocked(OutcomeStopped)
	s.setStateLocked(StateIdle)
	return nil
}

// Seek moves to an absolute position, clamped to the track duration.
func (s *serviceImpl) Seek(position time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.seekLocked(position)
}

// SeekBy moves relative to the current position.
func (s *serviceImpl) SeekBy(delta time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	return s.seekLocked(s.player.Position() + delta)
}

func (s *serviceImpl) seekLocked(position time.Duration) error {
	sess := s.session
	if sess == nil || !sess.loaded || !s.state.IsActive() {
		return s.rejectLocked(newError(KindInvalidState, errmsg.OpSeek, errNotLoaded))
	}
	d := s.durationLocked(sess)
	if !d.Known() {
		return s.rejectLocked(newError(KindInvalidState, errmsg.OpSeek, errDurationUnknown))
	}

	position = min(max(position, 0), d.Value)
	if err := s.player.SeekTo(position); err != nil {
		if errors.Is(err, player.ErrNotSeekable) {
			return s.rejectLocked(newError(KindInvalidState, errmsg.OpSeek, err))
		}
		return s.rejectLocked(newError(KindAssetLoad, errmsg.OpSeek, err))
	}

	attrs := []any{"session", sess.id, "position", position}
	if br := s.bitrateLocked(sess); br > 0 {
		attrs = append(attrs, "byte_offset", int64(position.Seconds()*float64(br)/8))
	}
	s.logger.Debug("seek", attrs...)
	return nil
}

// rejectLocked reports an error that leaves the session untouched.
func (s *serviceImpl) rejectLocked(perr *Error) error {
	s.logger.Debug("operation rejected", "op", string(perr.Op), "err", perr.Err)
	s.emitError(perr)
	return perr
}

func (s *serviceImpl) durationLocked(sess *session) TrackDuration {
	if enc := sess.source.Encryption; enc.HasCustomDuration() {
		return overrideDuration(enc.Duration)
	}
	if !sess.loaded {
		return unknownDuration()
	}
	return decodedDuration(s.player.Duration())
}

// bitrateLocked returns the declared bitrate, or an estimate from the
// source size and duration.
func (s *serviceImpl) bitrateLocked(sess *session) int {
	if enc := sess.source.Encryption; enc != nil && enc.Bitrate > 0 {
		return enc.Bitrate
	}
	size := sess.size
	if sess.source.Kind != SourceFile {
		size = s.buf.Size()
	}
	d := s.durationLocked(sess)
	if size <= 0 || !d.Known() {
		return 0
	}
	return int(float64(size*8) / d.Value.Seconds())
}

// SetLoopCount sets how many times a track is replayed after the first
// play. Negative loops forever. It applies to the current session too.
func (s *serviceImpl) SetLoopCount(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loops = n
	if s.session != nil {
		s.session.loopsLeft = n
	}
}

// LoopCount returns the loop count applied to new sessions.
func (s *serviceImpl) LoopCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loops
}

// SetVolume sets the output level, clamped to [0, 1].
func (s *serviceImpl) SetVolume(level float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.volume = clampVolume(level)
	s.player.SetVolume(s.volume)
}

// Volume returns the output level.
func (s *serviceImpl) Volume() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.volume
}

// State returns the current playback state.
func (s *serviceImpl) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Info returns a snapshot of the session. ok is false while Idle.
func (s *serviceImpl) Info() (Info, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	info := Info{State: s.state, Volume: s.volume}
	if s.state == StateIdle {
		return info, false
	}

	sess := s.session
	if sess == nil {
		return info, true
	}
	info.Session = sess.id
	info.Source = sess.source
	info.TotalBytes = sess.processed
	info.LoopsRemaining = sess.loopsLeft
	info.Encrypted = sess.source.Encrypted()
	info.CustomDuration = sess.source.Encryption.HasCustomDuration()
	info.Bitrate = s.bitrateLocked(sess)
	info.Duration = s.durationLocked(sess)
	if sess.source.Kind != SourceFile {
		info.BufferedBytes = s.buf.Len()
	}
	if sess.loaded {
		info.Position = s.player.Position()
	}
	return info, true
}

// Subscribe creates a new event subscription.
func (s *serviceImpl) Subscribe() *Subscription {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	sub := newSubscription()
	s.subs = append(s.subs, sub)
	return sub
}

// Close stops playback and closes every subscription.
func (s *serviceImpl) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.teardownLocked(OutcomeStopped)
	s.setStateLocked(StateIdle)
	s.closed = true
	s.mu.Unlock()

	s.subsMu.Lock()
	for _, sub := range s.subs {
		sub.close()
	}
	s.subs = nil
	s.subsMu.Unlock()

	return nil
}

func (s *serviceImpl) setStateLocked(st State) {
	if s.state == st {
		return
	}
	prev := s.state
	s.state = st
	s.logger.Debug("state changed", "from", prev.String(), "to", st.String())

	e := StateChange{Previous: prev, Current: st}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendState(e)
	}
}

func (s *serviceImpl) emitPlayback(kind EventKind, sess *session) {
	e := PlaybackEvent{
		Kind:           kind,
		Session:        sess.id,
		Source:         sess.source,
		LoopsRemaining: sess.loopsLeft,
	}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendPlayback(e)
	}
}

func (s *serviceImpl) emitLoaded(e LoadedEvent) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendLoaded(e)
	}
}

func (s *serviceImpl) emitChunk(e ChunkEvent) {
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendChunk(e)
	}
}

func (s *serviceImpl) emitError(perr *Error) {
	e := ErrorEvent{
		Kind:    perr.Kind,
		Op:      perr.Op,
		Message: perr.Error(),
		Err:     perr,
		Time:    time.Now(),
	}
	s.subsMu.RLock()
	defer s.subsMu.RUnlock()
	for _, sub := range s.subs {
		sub.sendError(e)
	}
}

