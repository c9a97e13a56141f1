// Package player keeps an audio handle in step with the active verse of a
// chapter.
package player

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/metcalfc/tilawa/internal/audio"
	"github.com/metcalfc/tilawa/internal/quran"
)

// Synchronizer owns the active verse index, the playing flag and the audio
// handle. All methods must be called from one goroutine; the handle is
// never written to by anything else.
type Synchronizer struct {
	handle audio.Handle
	log    *zap.Logger

	content     quran.ChapterContent
	activeIndex int
	playing     bool

	// What the handle currently holds.
	loaded        string
	loadedGen     uint64
	handlePlaying bool
}

// New binds a synchronizer to h.
func New(h audio.Handle, log *zap.Logger) *Synchronizer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Synchronizer{handle: h, log: log}
}

// Load replaces both collections and starts over at the first verse, paused.
func (s *Synchronizer) Load(c quran.ChapterContent) {
	s.content = c
	s.activeIndex = 0
	s.playing = false
	s.sync()
}

// Reload replaces both collections keeping the listening position where the
// new collection allows it. Playback is paused.
func (s *Synchronizer) Reload(c quran.ChapterContent) {
	s.content = c
	s.activeIndex = min(s.activeIndex, len(c.Audio)-1)
	if s.activeIndex < 0 {
		s.activeIndex = 0
	}
	s.playing = false
	s.sync()
}

// Clear drops the loaded chapter and stops playback.
func (s *Synchronizer) Clear() {
	s.content = quran.ChapterContent{}
	s.activeIndex = 0
	s.playing = false
	s.sync()
}

// SelectVerse makes index the active verse. Indices outside the loaded
// collection are ignored.
func (s *Synchronizer) SelectVerse(index int) {
	if index < 0 || index >= len(s.content.Audio) {
		return
	}
	s.activeIndex = index
	s.sync()
}

// Advance moves to the next verse. At the last verse it stops playback and
// stays put.
func (s *Synchronizer) Advance() {
	if s.activeIndex < len(s.content.Audio)-1 {
		s.activeIndex++
	} else {
		s.playing = false
	}
	s.sync()
}

// Retreat moves to the previous verse, if any.
func (s *Synchronizer) Retreat() {
	if s.activeIndex > 0 {
		s.activeIndex--
		s.sync()
	}
}

// TogglePlay flips between playing and paused.
func (s *Synchronizer) TogglePlay() {
	s.playing = !s.playing
	s.sync()
}

// OnEnded handles natural end of track exactly like Advance.
func (s *Synchronizer) OnEnded() {
	s.Advance()
}

// HandleEvent applies a handle notification. Events from any load other
// than the current one are stale and dropped, even when the same source
// was loaded again since.
func (s *Synchronizer) HandleEvent(ev audio.Event) {
	if ev.Gen != s.loadedGen || ev.Source != s.loaded {
		s.log.Debug("dropping stale audio event",
			zap.Stringer("kind", ev.Kind), zap.String("source", ev.Source), zap.Uint64("gen", ev.Gen))
		return
	}
	s.handlePlaying = false

	switch ev.Kind {
	case audio.Ended:
		s.OnEnded()
	case audio.Failed:
		s.log.Error("audio playback failed", zap.String("source", ev.Source), zap.Error(ev.Err))
		s.playing = false
		s.sync()
	}
}

// Seek moves the handle to fraction (0..1) of the known duration.
func (s *Synchronizer) Seek(fraction float64) error {
	d := s.handle.Duration()
	if d <= 0 {
		return nil
	}
	fraction = max(0, min(1, fraction))
	return s.SeekTo(time.Duration(fraction * float64(d)))
}

// SeekTo writes pos directly to the handle.
func (s *Synchronizer) SeekTo(pos time.Duration) error {
	if s.loaded == "" {
		return nil
	}
	if err := s.handle.Seek(pos); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// SeekBy moves the handle by delta from its current position.
func (s *Synchronizer) SeekBy(delta time.Duration) error {
	return s.SeekTo(s.handle.Position() + delta)
}

// sync drives the handle from state: load the active verse's locator when it
// changed, then play or pause to match the playing flag.
func (s *Synchronizer) sync() {
	var target string
	if v, ok := s.ActiveVerse(); ok {
		target = v.Audio
	}

	if target != s.loaded {
		if err := s.handle.Load(target); err != nil {
			s.log.Error("load audio source", zap.String("source", target), zap.Error(err))
		}
		s.loaded = target
		s.loadedGen = s.handle.Generation()
		s.handlePlaying = false
	}

	switch {
	case s.playing && !s.handlePlaying:
		if err := s.handle.Play(); err != nil {
			s.log.Error("start playback", zap.String("source", target), zap.Error(err))
			s.playing = false
			return
		}
		s.handlePlaying = true
	case !s.playing && s.handlePlaying:
		if err := s.handle.Pause(); err != nil {
			s.log.Error("pause playback", zap.String("source", target), zap.Error(err))
		}
		s.handlePlaying = false
	}
}

// ActiveIndex returns the index of the active verse.
func (s *Synchronizer) ActiveIndex() int { return s.activeIndex }

// Playing reports whether playback is requested.
func (s *Synchronizer) Playing() bool { return s.playing }

// Content returns the loaded collections.
func (s *Synchronizer) Content() quran.ChapterContent { return s.content }

// Text returns the verses shown to the reader.
func (s *Synchronizer) Text() []quran.Verse { return s.content.Text }

// Audio returns the verses carrying the recitation locators.
func (s *Synchronizer) Audio() []quran.Verse { return s.content.Audio }

// Loaded reports whether any verses are loaded.
func (s *Synchronizer) Loaded() bool { return len(s.content.Audio) > 0 }

// ActiveVerse returns the audio verse at the active index.
func (s *Synchronizer) ActiveVerse() (quran.Verse, bool) {
	if s.activeIndex >= 0 && s.activeIndex < len(s.content.Audio) {
		return s.content.Audio[s.activeIndex], true
	}
	return quran.Verse{}, false
}

// ActiveNumberInSurah is the in-chapter number of the active verse, or zero.
// Text verses are highlighted by matching on it.
func (s *Synchronizer) ActiveNumberInSurah() int {
	v, _ := s.ActiveVerse()
	return v.NumberInSurah
}

// Progress returns elapsed time, duration and the elapsed fraction.
func (s *Synchronizer) Progress() (elapsed, duration time.Duration, fraction float64) {
	if s.loaded == "" {
		return 0, 0, 0
	}
	elapsed = s.handle.Position()
	duration = s.handle.Duration()
	if duration > 0 {
		fraction = min(1, float64(elapsed)/float64(duration))
	}
	return elapsed, duration, fraction
}

// FormatTime renders d as m:ss.
func FormatTime(d time.Duration) string {
	if d <= 0 {
		return "0:00"
	}
	secs := int(d / time.Second)
	return fmt.Sprintf("%d:%02d", secs/60, secs%60)
}
