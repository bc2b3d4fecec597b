package playback

const eventBufferSize = 16

// Subscription provides event channels for a subscriber.
type Subscription struct {
	StateChanged <-chan StateChange
	Playback     <-chan PlaybackEvent
	Loaded       <-chan LoadedEvent
	Chunks       <-chan ChunkEvent
	Errors       <-chan ErrorEvent
	Done         <-chan struct{}

	// Internal write channels
	stateCh    chan StateChange
	playbackCh chan PlaybackEvent
	loadedCh   chan LoadedEvent
	chunkCh    chan ChunkEvent
	errorCh    chan ErrorEvent
	doneCh     chan struct{}
}

// newSubscription creates a new subscription with buffered channels.
// Chunk events are frequent, so their buffer is larger.
func newSubscription() *Subscription {
	s := &Subscription{
		stateCh:    make(chan StateChange, eventBufferSize),
		playbackCh: make(chan PlaybackEvent, eventBufferSize),
		loadedCh:   make(chan LoadedEvent, eventBufferSize),
		chunkCh:    make(chan ChunkEvent, 4*eventBufferSize),
		errorCh:    make(chan ErrorEvent, eventBufferSize),
		doneCh:     make(chan struct{}),
	}
	s.StateChanged = s.stateCh
	s.Playback = s.playbackCh
	s.Loaded = s.loadedCh
	s.Chunks = s.chunkCh
	s.Errors = s.errorCh
	s.Done = s.doneCh
	return s
}

// close signals subscribers to stop by closing doneCh.
func (s *Subscription) close() {
	close(s.doneCh)
}

// sendState sends a state change event (non-blocking).
func (s *Subscription) sendState(e StateChange) {
	select {
	case s.stateCh <- e:
	default:
		// Drop if buffer full
	}
}

func (s *Subscription) sendPlayback(e PlaybackEvent) {
	select {
	case s.playbackCh <- e:
	default:
	}
}

func (s *Subscription) sendLoaded(e LoadedEvent) {
	select {
	case s.loadedCh <- e:
	default:
	}
}

func (s *Subscription) sendChunk(e ChunkEvent) {
	select {
	case s.chunkCh <- e:
	default:
	}
}

// sendError sends an error event (non-blocking).
func (s *Subscription) sendError(e ErrorEvent) {
	select {
	case s.errorCh <- e:
	default:
	}
}
