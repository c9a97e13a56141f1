// Package audio defines the playback handle driven by the synchronizer and
// an implementation backed by an external command line player.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// Handle is a single audio resource. Loading a source always resets the
// position to zero, stops playback and starts a new generation.
type Handle interface {
	Load(source string) error
	// Generation counts Load calls. Events carry the generation they
	// belong to.
	Generation() uint64
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Position() time.Duration
	// Duration is zero while unknown.
	Duration() time.Duration
	// Events delivers handle-originated notifications.
	Events() <-chan Event
	Close() error
}

// EventKind identifies a handle notification.
type EventKind int

const (
	// Ended means the source played through to its end.
	Ended EventKind = iota
	// Failed means playback stopped with an error.
	Failed
)

func (k EventKind) String() string {
	switch k {
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is emitted by a Handle. Source and Gen identify the load that was
// current when the event happened.
type Event struct {
	Kind   EventKind
	Source string
	Gen    uint64
	Err    error
}

// ErrNoSource is returned by Play when nothing playable is loaded.
var ErrNoSource = errors.New("no audio source loaded")

// PlaybackError is returned when the handle rejects a play command.
type PlaybackError struct {
	Source string
	Err    error
}

func (e *PlaybackError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("playback: %v", e.Err)
	}
	return fmt.Sprintf("playback %s: %v", e.Source, e.Err)
}

func (e *PlaybackError) Unwrap() error { return e.Err }

// AsPlaybackError extracts the *PlaybackError from err's chain, or nil.
func AsPlaybackError(err error) *PlaybackError {
	var pe *PlaybackError
	if errors.As(err, &pe) {
		return pe
	}
	return nil
}
