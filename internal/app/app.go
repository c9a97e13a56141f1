// Package app holds the top-level selection state of the reader and applies
// the results of asynchronous fetches to it.
//
// Frontends call the Begin/Select/Change methods and Apply methods from
// their event loop only. The Fetch methods block on the network and may run
// on any goroutine; they never touch App state.
package app

import (
	"context"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/metcalfc/tilawa/internal/player"
	"github.com/metcalfc/tilawa/internal/quran"
)

// Source is the content provider.
type Source interface {
	Startup(ctx context.Context) (quran.Catalog, error)
	ChapterContent(ctx context.Context, chapter int, reciter string) (quran.ChapterContent, error)
}

// View is the screen to render.
type View int

const (
	ViewLoading View = iota
	ViewChapterList
	ViewChapterDetail
)

func (v View) String() string {
	switch v {
	case ViewLoading:
		return "loading"
	case ViewChapterList:
		return "chapters"
	case ViewChapterDetail:
		return "detail"
	}
	return "unknown"
}

// SelectView picks the screen from the loading flags and the selected chapter.
func SelectView(globalLoading bool, chapter *quran.Chapter, chapterLoading bool) View {
	switch {
	case globalLoading, chapterLoading:
		return ViewLoading
	case chapter == nil:
		return ViewChapterList
	}
	return ViewChapterDetail
}

// Key identifies the selection a content fetch was issued for.
type Key struct {
	Chapter int
	Reciter string
	Seq     uint64
}

// ContentRequest describes a chapter content fetch. KeepPosition is set for
// reciter changes, which keep the listening position.
type ContentRequest struct {
	Key          Key
	Chapter      quran.Chapter
	Reciter      quran.Reciter
	KeepPosition bool
}

// ContentResult is the outcome of FetchContent.
type ContentResult struct {
	Request ContentRequest
	Content quran.ChapterContent
	Err     error
}

// StartupRequest describes a catalog fetch.
type StartupRequest struct {
	Seq uint64
}

// StartupResult is the outcome of FetchStartup.
type StartupResult struct {
	Request StartupRequest
	Catalog quran.Catalog
	Err     error
}

// App is the view composition state.
type App struct {
	source         Source
	log            *zap.Logger
	player         *player.Synchronizer
	defaultReciter string

	chapters []quran.Chapter
	reciters []quran.Reciter
	chapter  *quran.Chapter
	reciter  *quran.Reciter

	loading        bool
	chapterLoading bool

	seq        uint64
	pending    *ContentRequest
	startupSeq uint64
}

// New creates an App in the loading state.
func New(source Source, p *player.Synchronizer, defaultReciter string, log *zap.Logger) *App {
	if log == nil {
		log = zap.NewNop()
	}
	return &App{
		source:         source,
		log:            log,
		player:         p,
		defaultReciter: defaultReciter,
		loading:        true,
	}
}

// BeginStartup marks the app as loading and returns the catalog request.
// Calling it again retries; only the latest request is applied.
func (a *App) BeginStartup() StartupRequest {
	a.startupSeq++
	a.loading = true
	return StartupRequest{Seq: a.startupSeq}
}

// FetchStartup loads the catalog. Safe on any goroutine.
func (a *App) FetchStartup(ctx context.Context, req StartupRequest) StartupResult {
	cat, err := a.source.Startup(ctx)
	return StartupResult{Request: req, Catalog: cat, Err: err}
}

// ApplyStartup stores the catalog and picks the default reciter. On failure
// the app stays in the loading state.
func (a *App) ApplyStartup(res StartupResult) {
	if res.Request.Seq != a.startupSeq {
		return
	}
	if res.Err != nil {
		a.log.Error("failed to fetch initial data", zap.Error(res.Err))
		return
	}

	a.chapters = res.Catalog.Chapters
	a.reciters = res.Catalog.Reciters
	if len(a.reciters) > 0 {
		r, ok := lo.Find(a.reciters, func(r quran.Reciter) bool {
			return r.Identifier == a.defaultReciter
		})
		if !ok {
			r = a.reciters[0]
		}
		a.reciter = &r
	}
	a.loading = false
	a.log.Info("catalog loaded", zap.Int("chapters", len(a.chapters)), zap.Int("reciters", len(a.reciters)))
}

// SelectChapter starts loading ch for the selected reciter. It reports false
// when no reciter is selected.
func (a *App) SelectChapter(ch quran.Chapter) (ContentRequest, bool) {
	r, ok := a.targetReciter()
	if !ok {
		return ContentRequest{}, false
	}
	return a.issue(ch, r, false), true
}

// ChangeReciter switches reciter. With no chapter selected or loading the
// reciter is committed at once and there is nothing to fetch.
func (a *App) ChangeReciter(r quran.Reciter) (ContentRequest, bool) {
	if a.pending != nil {
		// Re-issue whatever is loading under the new reciter.
		return a.issue(a.pending.Chapter, r, a.pending.KeepPosition), true
	}
	if a.chapter == nil {
		a.reciter = &r
		return ContentRequest{}, false
	}
	return a.issue(*a.chapter, r, true), true
}

func (a *App) issue(ch quran.Chapter, r quran.Reciter, keep bool) ContentRequest {
	a.seq++
	req := ContentRequest{
		Key:          Key{Chapter: ch.Number, Reciter: r.Identifier, Seq: a.seq},
		Chapter:      ch,
		Reciter:      r,
		KeepPosition: keep,
	}
	a.pending = &req
	a.chapterLoading = true
	return req
}

// FetchContent loads a chapter's text and audio. Safe on any goroutine.
func (a *App) FetchContent(ctx context.Context, req ContentRequest) ContentResult {
	c, err := a.source.ChapterContent(ctx, req.Key.Chapter, req.Key.Reciter)
	return ContentResult{Request: req, Content: c, Err: err}
}

// ApplyContent commits a fetch result if it belongs to the current
// selection. It reports whether state changed.
func (a *App) ApplyContent(res ContentResult) bool {
	if a.pending == nil || res.Request.Key != a.pending.Key {
		a.log.Debug("discarding stale chapter content",
			zap.Int("chapter", res.Request.Key.Chapter), zap.String("reciter", res.Request.Key.Reciter))
		return false
	}
	a.pending = nil
	a.chapterLoading = false

	if res.Err != nil {
		a.log.Error("failed to fetch chapter",
			zap.Int("chapter", res.Request.Key.Chapter), zap.String("reciter", res.Request.Key.Reciter), zap.Error(res.Err))
		return false
	}

	ch, r := res.Request.Chapter, res.Request.Reciter
	a.chapter = &ch
	a.reciter = &r
	if res.Request.KeepPosition {
		a.player.Reload(res.Content)
	} else {
		a.player.Load(res.Content)
	}
	return true
}

// Back returns to the chapter list, stops playback and discards any fetch
// still in flight.
func (a *App) Back() {
	a.chapter = nil
	a.pending = nil
	a.chapterLoading = false
	a.player.Clear()
}

// CycleReciter returns the reciter delta steps from the selected one,
// wrapping around the list.
func (a *App) CycleReciter(delta int) (quran.Reciter, bool) {
	if len(a.reciters) == 0 {
		return quran.Reciter{}, false
	}
	cur, _ := a.targetReciter()
	_, idx, ok := lo.FindIndexOf(a.reciters, func(r quran.Reciter) bool {
		return r.Identifier == cur.Identifier
	})
	if !ok {
		idx = 0
		delta = 0
	}
	n := len(a.reciters)
	idx = ((idx+delta)%n + n) % n
	return a.reciters[idx], true
}

// ReciterByID looks up a reciter from the catalog.
func (a *App) ReciterByID(id string) (quran.Reciter, bool) {
	return lo.Find(a.reciters, func(r quran.Reciter) bool { return r.Identifier == id })
}

// targetReciter is the reciter the next fetch should use: the one being
// loaded if any, else the committed one.
func (a *App) targetReciter() (quran.Reciter, bool) {
	if a.pending != nil {
		return a.pending.Reciter, true
	}
	if a.reciter != nil {
		return *a.reciter, true
	}
	return quran.Reciter{}, false
}

// View returns the screen to render.
func (a *App) View() View {
	return SelectView(a.loading, a.chapter, a.chapterLoading)
}

// ShowBismillah reports whether the opening formula is shown above the
// chapter text. Chapter 1 contains it as its first verse and chapter 9 has
// none.
func (a *App) ShowBismillah() bool {
	return a.chapter != nil && a.chapter.Number != 1 && a.chapter.Number != 9
}

// IsActive reports whether a text verse is the one being recited.
func (a *App) IsActive(v quran.Verse) bool {
	return a.player.Loaded() && v.NumberInSurah == a.player.ActiveNumberInSurah()
}

// Player returns the synchronizer for the loaded chapter.
func (a *App) Player() *player.Synchronizer { return a.player }

// Chapters returns the catalog's chapter list.
func (a *App) Chapters() []quran.Chapter { return a.chapters }

// Reciters returns the allowed reciters from the catalog.
func (a *App) Reciters() []quran.Reciter { return a.reciters }

// Chapter returns the committed chapter, or nil on the list.
func (a *App) Chapter() *quran.Chapter { return a.chapter }

// Reciter returns the committed reciter, or nil before startup.
func (a *App) Reciter() *quran.Reciter { return a.reciter }

// Loading reports whether the catalog is still being fetched.
func (a *App) Loading() bool { return a.loading }

// ChapterLoading reports whether a chapter fetch is pending.
func (a *App) ChapterLoading() bool { return a.chapterLoading }
