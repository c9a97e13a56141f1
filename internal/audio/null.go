package audio

import "time"

// Null is a Handle for systems without a player. It tracks the loaded source
// and position but refuses to play.
type Null struct {
	source string
	gen    uint64
	pos    time.Duration
	events chan Event
}

// NewNull returns a Null handle.
func NewNull() *Null {
	return &Null{events: make(chan Event)}
}

func (n *Null) Load(source string) error {
	n.source = source
	n.gen++
	n.pos = 0
	return nil
}

func (n *Null) Play() error {
	return &PlaybackError{Source: n.source, Err: ErrNoPlayer}
}

func (n *Null) Pause() error { return nil }

func (n *Null) Seek(pos time.Duration) error {
	n.pos = max(0, pos)
	return nil
}

func (n *Null) Generation() uint64      { return n.gen }
func (n *Null) Position() time.Duration { return n.pos }
func (n *Null) Duration() time.Duration { return 0 }
func (n *Null) Events() <-chan Event    { return n.events }
func (n *Null) Close() error            { return nil }
