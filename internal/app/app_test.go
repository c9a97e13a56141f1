package app

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/metcalfc/tilawa/internal/audio/audiotest"
	"github.com/metcalfc/tilawa/internal/player"
	"github.com/metcalfc/tilawa/internal/quran"
)

type fakeSource struct {
	catalog    quran.Catalog
	startupErr error
	lengths    map[string]int // "chapter/reciter" -> verse count
	failing    map[string]error
}

func (f *fakeSource) Startup(ctx context.Context) (quran.Catalog, error) {
	if f.startupErr != nil {
		return quran.Catalog{}, f.startupErr
	}
	return f.catalog, nil
}

func (f *fakeSource) ChapterContent(ctx context.Context, chapter int, reciter string) (quran.ChapterContent, error) {
	key := fmt.Sprintf("%d/%s", chapter, reciter)
	if err := f.failing[key]; err != nil {
		return quran.ChapterContent{}, &quran.FetchError{Op: "get chapter audio", URL: key, Err: err}
	}
	n, ok := f.lengths[key]
	if !ok {
		n = 3
	}
	c := quran.ChapterContent{Chapter: chapter, Reciter: reciter}
	for i := 1; i <= n; i++ {
		c.Text = append(c.Text, quran.Verse{NumberInSurah: i, Text: fmt.Sprintf("%d:%d", chapter, i)})
		c.Audio = append(c.Audio, quran.Verse{NumberInSurah: i, Audio: fmt.Sprintf("%s/%d/%d.mp3", reciter, chapter, i)})
	}
	return c, nil
}

var (
	alafasy = quran.Reciter{Identifier: "ar.alafasy", Name: "مشاري العفاسي"}
	sudais  = quran.Reciter{Identifier: "ar.sudais", Name: "عبد الرحمن السديس"}

	fatiha = quran.Chapter{Number: 1, EnglishName: "Al-Faatiha", NumberOfAyahs: 7, RevelationType: quran.Meccan}
	baqara = quran.Chapter{Number: 2, EnglishName: "Al-Baqara", NumberOfAyahs: 286, RevelationType: quran.Medinan}
	tawba  = quran.Chapter{Number: 9, EnglishName: "At-Tawba", NumberOfAyahs: 129, RevelationType: quran.Medinan}
	kahf   = quran.Chapter{Number: 18, EnglishName: "Al-Kahf", NumberOfAyahs: 110, RevelationType: quran.Meccan}
)

func newTestApp(t *testing.T, src *fakeSource) (*App, *audiotest.Handle) {
	t.Helper()
	if src.catalog.Chapters == nil {
		src.catalog = quran.Catalog{
			Chapters: []quran.Chapter{fatiha, baqara},
			Reciters: []quran.Reciter{alafasy},
		}
	}
	log := zap.NewNop()
	h := audiotest.New()
	return New(src, player.New(h, log), "ar.alafasy", log), h
}

func started(t *testing.T, src *fakeSource) (*App, *audiotest.Handle) {
	t.Helper()
	a, h := newTestApp(t, src)
	req := a.BeginStartup()
	a.ApplyStartup(a.FetchStartup(context.Background(), req))
	require.False(t, a.Loading())
	return a, h
}

func selectAndLoad(t *testing.T, a *App, ch quran.Chapter) {
	t.Helper()
	req, ok := a.SelectChapter(ch)
	require.True(t, ok)
	require.True(t, a.ApplyContent(a.FetchContent(context.Background(), req)))
}

func TestSelectView(t *testing.T) {
	tests := []struct {
		name           string
		globalLoading  bool
		chapter        *quran.Chapter
		chapterLoading bool
		expected       View
	}{
		{"startup", true, nil, false, ViewLoading},
		{"startup wins over chapter", true, &fatiha, false, ViewLoading},
		{"chapter loading", false, nil, true, ViewLoading},
		{"chapter loading over detail", false, &fatiha, true, ViewLoading},
		{"list", false, nil, false, ViewChapterList},
		{"detail", false, &fatiha, false, ViewChapterDetail},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SelectView(tt.globalLoading, tt.chapter, tt.chapterLoading))
		})
	}
}

func TestStartupPicksDefaultReciter(t *testing.T) {
	a, _ := started(t, &fakeSource{catalog: quran.Catalog{
		Chapters: []quran.Chapter{fatiha},
		Reciters: []quran.Reciter{sudais, alafasy},
	}})

	require.NotNil(t, a.Reciter())
	assert.Equal(t, "ar.alafasy", a.Reciter().Identifier)
	assert.Equal(t, ViewChapterList, a.View())
}

func TestStartupFallsBackToFirstReciter(t *testing.T) {
	a, _ := started(t, &fakeSource{catalog: quran.Catalog{
		Chapters: []quran.Chapter{fatiha},
		Reciters: []quran.Reciter{sudais},
	}})

	require.NotNil(t, a.Reciter())
	assert.Equal(t, "ar.sudais", a.Reciter().Identifier)
}

func TestStartupWithoutReciters(t *testing.T) {
	a, _ := started(t, &fakeSource{catalog: quran.Catalog{Chapters: []quran.Chapter{fatiha}, Reciters: []quran.Reciter{}}})

	assert.Nil(t, a.Reciter())
	_, ok := a.SelectChapter(fatiha)
	assert.False(t, ok, "selecting a chapter needs a reciter")
}

func TestStartupFailureStaysLoading(t *testing.T) {
	src := &fakeSource{startupErr: errors.New("offline")}
	a, _ := newTestApp(t, src)

	a.ApplyStartup(a.FetchStartup(context.Background(), a.BeginStartup()))
	assert.True(t, a.Loading())
	assert.Equal(t, ViewLoading, a.View())

	src.startupErr = nil
	a.ApplyStartup(a.FetchStartup(context.Background(), a.BeginStartup()))
	assert.False(t, a.Loading())
}

func TestStaleStartupDiscarded(t *testing.T) {
	a, _ := newTestApp(t, &fakeSource{})

	first := a.BeginStartup()
	second := a.BeginStartup()
	a.ApplyStartup(StartupResult{Request: first, Catalog: quran.Catalog{Chapters: []quran.Chapter{kahf}}})
	assert.True(t, a.Loading())

	a.ApplyStartup(a.FetchStartup(context.Background(), second))
	assert.False(t, a.Loading())
	assert.Len(t, a.Chapters(), 2)
}

func TestSelectChapterScenario(t *testing.T) {
	a, h := started(t, &fakeSource{})

	req, ok := a.SelectChapter(fatiha)
	require.True(t, ok)
	assert.Equal(t, ViewLoading, a.View())
	assert.Nil(t, a.Chapter(), "selection commits only on success")

	require.True(t, a.ApplyContent(a.FetchContent(context.Background(), req)))
	p := a.Player()
	assert.Equal(t, ViewChapterDetail, a.View())
	assert.Equal(t, 1, a.Chapter().Number)
	assert.Equal(t, 0, p.ActiveIndex())
	assert.False(t, p.Playing())
	assert.Len(t, p.Text(), 3)
	assert.Len(t, p.Audio(), 3)
	assert.Equal(t, "ar.alafasy/1/1.mp3", h.Source)

	p.TogglePlay()
	for _, want := range []int{1, 2, 2} {
		p.Advance()
		assert.Equal(t, want, p.ActiveIndex())
	}
	assert.False(t, p.Playing())
}

func TestSelectChapterResetsPosition(t *testing.T) {
	a, _ := started(t, &fakeSource{})
	selectAndLoad(t, a, fatiha)
	a.Player().SelectVerse(2)
	a.Player().TogglePlay()

	selectAndLoad(t, a, baqara)
	assert.Equal(t, 0, a.Player().ActiveIndex())
	assert.False(t, a.Player().Playing())
}

func TestStaleContentDiscarded(t *testing.T) {
	a, _ := started(t, &fakeSource{})

	reqA, _ := a.SelectChapter(fatiha)
	reqB, _ := a.SelectChapter(baqara)

	resA := a.FetchContent(context.Background(), reqA)
	resB := a.FetchContent(context.Background(), reqB)

	assert.True(t, a.ApplyContent(resB))
	assert.False(t, a.ApplyContent(resA), "late result for an earlier selection is discarded")

	assert.Equal(t, 2, a.Chapter().Number)
	assert.Equal(t, 2, a.Player().Content().Chapter)
	assert.Equal(t, "2:1", a.Player().Text()[0].Text)
}

func TestStaleContentArrivingFirstIsDiscarded(t *testing.T) {
	a, _ := started(t, &fakeSource{})

	reqA, _ := a.SelectChapter(fatiha)
	reqB, _ := a.SelectChapter(baqara)

	assert.False(t, a.ApplyContent(a.FetchContent(context.Background(), reqA)))
	assert.True(t, a.ChapterLoading(), "still waiting for the current selection")

	assert.True(t, a.ApplyContent(a.FetchContent(context.Background(), reqB)))
	assert.False(t, a.ChapterLoading())
	assert.Equal(t, 2, a.Chapter().Number)
}

func TestReselectSameChapterDiscardsOlderFetch(t *testing.T) {
	a, _ := started(t, &fakeSource{})

	first, _ := a.SelectChapter(fatiha)
	second, _ := a.SelectChapter(fatiha)
	assert.NotEqual(t, first.Key, second.Key)

	assert.False(t, a.ApplyContent(a.FetchContent(context.Background(), first)))
	assert.True(t, a.ApplyContent(a.FetchContent(context.Background(), second)))
}

func TestChangeReciterClampsIndex(t *testing.T) {
	a, _ := started(t, &fakeSource{
		catalog: quran.Catalog{
			Chapters: []quran.Chapter{kahf},
			Reciters: []quran.Reciter{alafasy, sudais},
		},
		lengths: map[string]int{"18/ar.alafasy": 6, "18/ar.sudais": 3},
	})
	selectAndLoad(t, a, kahf)
	a.Player().SelectVerse(4)
	a.Player().TogglePlay()

	req, ok := a.ChangeReciter(sudais)
	require.True(t, ok)
	assert.True(t, req.KeepPosition)
	require.True(t, a.ApplyContent(a.FetchContent(context.Background(), req)))

	assert.Equal(t, 2, a.Player().ActiveIndex())
	assert.False(t, a.Player().Playing())
	assert.Equal(t, "ar.sudais", a.Reciter().Identifier)
}

func TestChangeReciterKeepsPosition(t *testing.T) {
	a, h := started(t, &fakeSource{
		catalog: quran.Catalog{
			Chapters: []quran.Chapter{kahf},
			Reciters: []quran.Reciter{alafasy, sudais},
		},
		lengths: map[string]int{"18/ar.alafasy": 6, "18/ar.sudais": 6},
	})
	selectAndLoad(t, a, kahf)
	a.Player().SelectVerse(4)

	req, _ := a.ChangeReciter(sudais)
	a.ApplyContent(a.FetchContent(context.Background(), req))
	assert.Equal(t, 4, a.Player().ActiveIndex())
	assert.Equal(t, "ar.sudais/18/5.mp3", h.Source)
}

func TestChangeReciterWithoutChapter(t *testing.T) {
	a, _ := started(t, &fakeSource{catalog: quran.Catalog{
		Chapters: []quran.Chapter{fatiha},
		Reciters: []quran.Reciter{alafasy, sudais},
	}})

	_, ok := a.ChangeReciter(sudais)
	assert.False(t, ok)
	assert.Equal(t, "ar.sudais", a.Reciter().Identifier)
	assert.False(t, a.ChapterLoading())
}

func TestChangeReciterWhileChapterLoading(t *testing.T) {
	a, h := started(t, &fakeSource{catalog: quran.Catalog{
		Chapters: []quran.Chapter{fatiha},
		Reciters: []quran.Reciter{alafasy, sudais},
	}})

	reqA, _ := a.SelectChapter(fatiha)
	reqB, ok := a.ChangeReciter(sudais)
	require.True(t, ok)
	assert.False(t, reqB.KeepPosition)
	assert.Equal(t, 1, reqB.Key.Chapter)

	assert.False(t, a.ApplyContent(a.FetchContent(context.Background(), reqA)))
	assert.True(t, a.ApplyContent(a.FetchContent(context.Background(), reqB)))
	assert.Equal(t, "ar.sudais", a.Reciter().Identifier)
	assert.Equal(t, "ar.sudais/1/1.mp3", h.Source)
}

func TestContentFailureLeavesStateUntouched(t *testing.T) {
	a, h := started(t, &fakeSource{
		catalog: quran.Catalog{
			Chapters: []quran.Chapter{fatiha, baqara},
			Reciters: []quran.Reciter{alafasy, sudais},
		},
		failing: map[string]error{
			"2/ar.alafasy": errors.New("audio endpoint down"),
			"1/ar.sudais":  errors.New("audio endpoint down"),
		},
	})
	selectAndLoad(t, a, fatiha)
	a.Player().SelectVerse(1)
	before := a.Player().Content()

	req, _ := a.SelectChapter(baqara)
	res := a.FetchContent(context.Background(), req)
	require.True(t, quran.IsFetchError(res.Err))
	assert.False(t, a.ApplyContent(res))

	assert.False(t, a.ChapterLoading())
	assert.Equal(t, 1, a.Chapter().Number)
	assert.Equal(t, before, a.Player().Content())
	assert.Equal(t, 1, a.Player().ActiveIndex())
	assert.Equal(t, ViewChapterDetail, a.View())

	req, _ = a.ChangeReciter(sudais)
	assert.False(t, a.ApplyContent(a.FetchContent(context.Background(), req)))
	assert.Equal(t, "ar.alafasy", a.Reciter().Identifier)
	assert.Equal(t, "ar.alafasy/1/2.mp3", h.Source)
}

func TestFirstSelectionFailureReturnsToList(t *testing.T) {
	a, _ := started(t, &fakeSource{failing: map[string]error{"1/ar.alafasy": errors.New("boom")}})

	req, _ := a.SelectChapter(fatiha)
	a.ApplyContent(a.FetchContent(context.Background(), req))
	assert.Nil(t, a.Chapter())
	assert.Equal(t, ViewChapterList, a.View())
}

func TestBack(t *testing.T) {
	a, h := started(t, &fakeSource{})
	selectAndLoad(t, a, fatiha)
	a.Player().TogglePlay()
	require.True(t, h.Playing)

	a.Back()
	assert.Nil(t, a.Chapter())
	assert.False(t, a.Player().Playing())
	assert.False(t, h.Playing)
	assert.Equal(t, ViewChapterList, a.View())
}

func TestBackDiscardsInFlightFetch(t *testing.T) {
	a, _ := started(t, &fakeSource{})

	req, _ := a.SelectChapter(baqara)
	a.Back()
	assert.False(t, a.ApplyContent(a.FetchContent(context.Background(), req)))
	assert.Equal(t, ViewChapterList, a.View())
}

func TestShowBismillah(t *testing.T) {
	tests := []struct {
		chapter  quran.Chapter
		expected bool
	}{
		{fatiha, false},
		{baqara, true},
		{tawba, false},
		{kahf, true},
	}

	for _, tt := range tests {
		t.Run(tt.chapter.EnglishName, func(t *testing.T) {
			a, _ := started(t, &fakeSource{catalog: quran.Catalog{
				Chapters: []quran.Chapter{tt.chapter},
				Reciters: []quran.Reciter{alafasy},
			}})
			selectAndLoad(t, a, tt.chapter)
			assert.Equal(t, tt.expected, a.ShowBismillah())
		})
	}
}

func TestIsActive(t *testing.T) {
	a, _ := started(t, &fakeSource{})
	assert.False(t, a.IsActive(quran.Verse{NumberInSurah: 0}))

	selectAndLoad(t, a, fatiha)
	a.Player().SelectVerse(1)
	text := a.Player().Text()
	assert.False(t, a.IsActive(text[0]))
	assert.True(t, a.IsActive(text[1]))
}

func TestCycleReciter(t *testing.T) {
	third := quran.Reciter{Identifier: "ar.minshawi"}
	a, _ := started(t, &fakeSource{catalog: quran.Catalog{
		Chapters: []quran.Chapter{fatiha},
		Reciters: []quran.Reciter{sudais, alafasy, third},
	}})

	next, ok := a.CycleReciter(1)
	require.True(t, ok)
	assert.Equal(t, "ar.minshawi", next.Identifier)

	prev, _ := a.CycleReciter(-1)
	assert.Equal(t, "ar.sudais", prev.Identifier)

	wrap, _ := a.CycleReciter(2)
	assert.Equal(t, "ar.sudais", wrap.Identifier)

	r, ok := a.ReciterByID("ar.minshawi")
	assert.True(t, ok)
	assert.Equal(t, third, r)
}
