package playback

import (
	"errors"

	"github.com/llehouerou/soundplayer/internal/errmsg"
)

// ErrorKind classifies playback failures.
type ErrorKind int

const (
	KindAssetLoad ErrorKind = iota + 1
	KindNetwork
	KindDecryption
	KindInvalidState
)

func (k ErrorKind) String() string {
	switch k {
	case KindAssetLoad:
		return "asset_load"
	case KindNetwork:
		return "network"
	case KindDecryption:
		return "decryption"
	case KindInvalidState:
		return "invalid_state"
	default:
		return "unknown"
	}
}

// Sentinels matched by *Error through errors.Is.
var (
	ErrAssetLoad    = errors.New("asset could not be loaded")
	ErrNetwork      = errors.New("network failure")
	ErrDecryption   = errors.New("decryption failure")
	ErrInvalidState = errors.New("invalid state")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("playback service closed")
)

// Error is the error returned and reported by the service.
type Error struct {
	Kind ErrorKind
	Op   errmsg.Op
	Err  error
}

func (e *Error) Error() string {
	return errmsg.Format(e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error kind.
func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindAssetLoad:
		return target == ErrAssetLoad
	case KindNetwork:
		return target == ErrNetwork
	case KindDecryption:
		return target == ErrDecryption
	case KindInvalidState:
		return target == ErrInvalidState
	}
	return false
}

func newError(kind ErrorKind, op errmsg.Op, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

var (
	errNotLoaded       = errors.New("nothing is loaded")
	errDurationUnknown = errors.New("duration is not known yet")
)
