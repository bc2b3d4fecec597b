// internal/playback/state.go
package playback

// State represents the playback state.
//
//	Idle → Loading → Playing ⇄ Paused → Finished | Error
//
// Finished and Error hold no resources; any play or load call starts from
// them exactly as from Idle. Stop returns to Idle from every state.
type State int

const (
	StateIdle State = iota
	StateLoading
	StatePlaying
	StatePaused
	StateFinished
	StateError
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateLoading:
		return "Loading"
	case StatePlaying:
		return "Playing"
	case StatePaused:
		return "Paused"
	case StateFinished:
		return "Finished"
	case StateError:
		return "Error"
	default:
		return "Unknown"
	}
}

// IsActive returns true if a track is loaded (playing or paused).
func (s State) IsActive() bool {
	return s == StatePlaying || s == StatePaused
}

// IsTerminal returns true once a session ended on its own.
func (s State) IsTerminal() bool {
	return s == StateFinished || s == StateError
}
