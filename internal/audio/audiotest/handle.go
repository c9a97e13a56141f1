// Package audiotest provides an in-memory audio.Handle for tests.
package audiotest

import (
	"fmt"
	"time"

	"github.com/metcalfc/tilawa/internal/audio"
)

// Handle records every command it receives. It is not safe for concurrent use.
type Handle struct {
	Source      string
	Gen         uint64
	Playing     bool
	Pos         time.Duration
	Length      time.Duration
	PlayErr     error
	Calls       []string
	EventStream chan audio.Event
}

// New returns a Handle with a buffered event channel.
func New() *Handle {
	return &Handle{EventStream: make(chan audio.Event, 8)}
}

func (h *Handle) Load(source string) error {
	h.Calls = append(h.Calls, "load "+source)
	h.Source = source
	h.Gen++
	h.Playing = false
	h.Pos = 0
	return nil
}

func (h *Handle) Play() error {
	h.Calls = append(h.Calls, "play")
	if h.PlayErr != nil {
		return &audio.PlaybackError{Source: h.Source, Err: h.PlayErr}
	}
	h.Playing = true
	return nil
}

func (h *Handle) Pause() error {
	h.Calls = append(h.Calls, "pause")
	h.Playing = false
	return nil
}

func (h *Handle) Seek(pos time.Duration) error {
	h.Calls = append(h.Calls, fmt.Sprintf("seek %s", pos))
	h.Pos = pos
	return nil
}

func (h *Handle) Generation() uint64 { return h.Gen }

func (h *Handle) Position() time.Duration { return h.Pos }

func (h *Handle) Duration() time.Duration { return h.Length }

func (h *Handle) Events() <-chan audio.Event { return h.EventStream }

func (h *Handle) Close() error { return nil }

// Event returns an event of kind for the current load.
func (h *Handle) Event(kind audio.EventKind) audio.Event {
	return audio.Event{Kind: kind, Source: h.Source, Gen: h.Gen}
}

// Reset forgets recorded calls.
func (h *Handle) Reset() { h.Calls = nil }

var _ audio.Handle = (*Handle)(nil)
