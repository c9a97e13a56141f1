//go:build gui

package main

import (
	"context"
	"fmt"
	"time"

	"fyne.io/fyne/v2"
	fyneapp "fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/metcalfc/tilawa/internal/app"
	"github.com/metcalfc/tilawa/internal/audio"
	"github.com/metcalfc/tilawa/internal/player"
	"github.com/metcalfc/tilawa/internal/quran"
)

func reciterLabel(r quran.Reciter) string {
	if r.EnglishName == "" {
		return r.Name
	}
	return r.EnglishName + " · " + r.Name
}

// runFrontend runs the fyne window. All App and Synchronizer calls happen on
// the fyne main goroutine; background work hands results back via fyne.Do.
func runFrontend(ctx context.Context, a *app.App, handle audio.Handle, log *zap.Logger) error {
	fa := fyneapp.New()
	w := fa.NewWindow("Tilawa - " + appTitle)
	p := a.Player()

	done := make(chan struct{})
	var startupInFlight bool
	var refresh func()

	// Loading view
	loadingLabel := widget.NewLabel("Loading…")
	loadingLabel.Alignment = fyne.TextAlignCenter
	activity := widget.NewActivity()
	retryBtn := widget.NewButton("Retry", nil)
	loadingView := container.NewCenter(container.NewVBox(activity, loadingLabel, retryBtn))

	// Chapter list view
	chapterList := widget.NewList(
		func() int { return len(a.Chapters()) },
		func() fyne.CanvasObject {
			return container.NewVBox(
				widget.NewLabel("Title"),
				widget.NewLabel("Details"),
			)
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			ch := a.Chapters()[id]
			vbox := obj.(*fyne.Container)
			title := vbox.Objects[0].(*widget.Label)
			details := vbox.Objects[1].(*widget.Label)
			title.SetText(fmt.Sprintf("%d. %s (%s)", ch.Number, ch.EnglishName, ch.EnglishNameTranslation))
			title.TextStyle.Bold = true
			details.SetText(fmt.Sprintf("%s · %s · %d verses", ch.Name, ch.RevelationType, ch.NumberOfAyahs))
		},
	)

	var syncingReciter bool
	reciterSelect := widget.NewSelect(nil, nil)
	reciterSelect.PlaceHolder = "Reciter"

	listView := container.NewBorder(
		widget.NewLabelWithStyle(appTitle, fyne.TextAlignCenter, fyne.TextStyle{Bold: true}),
		reciterSelect,
		nil, nil,
		chapterList,
	)

	// Chapter detail view
	headerLabel := widget.NewLabelWithStyle("", fyne.TextAlignCenter, fyne.TextStyle{Bold: true})
	bismillahLabel := widget.NewLabelWithStyle(bismillah, fyne.TextAlignCenter, fyne.TextStyle{})

	verseList := widget.NewList(
		func() int { return len(p.Text()) },
		func() fyne.CanvasObject {
			l := widget.NewLabel("Verse")
			l.Wrapping = fyne.TextWrapWord
			l.Alignment = fyne.TextAlignTrailing
			return l
		},
		func(id widget.ListItemID, obj fyne.CanvasObject) {
			v := p.Text()[id]
			l := obj.(*widget.Label)
			l.Importance = widget.MediumImportance
			l.TextStyle.Bold = false
			if a.IsActive(v) {
				l.Importance = widget.HighImportance
				l.TextStyle.Bold = true
			}
			l.SetText(fmt.Sprintf("%s (%d)", v.Text, v.NumberInSurah))
		},
	)

	backBtn := widget.NewButton("Back", nil)
	prevBtn := widget.NewButton("⏮", nil)
	playBtn := widget.NewButton("▶", nil)
	nextBtn := widget.NewButton("⏭", nil)
	elapsedLabel := widget.NewLabel("0:00")
	durationLabel := widget.NewLabel("0:00")
	verseLabel := widget.NewLabel("")
	seekSlider := widget.NewSlider(0, 1)
	seekSlider.Step = 0.001
	detailReciter := widget.NewSelect(nil, nil)

	transport := container.NewVBox(
		container.NewBorder(nil, nil, elapsedLabel, durationLabel, seekSlider),
		container.NewHBox(backBtn, prevBtn, playBtn, nextBtn, verseLabel),
		detailReciter,
	)
	detailView := container.NewBorder(
		container.NewVBox(headerLabel, bismillahLabel),
		transport,
		nil, nil,
		verseList,
	)

	// fetch runs a content request and applies the result on the main
	// goroutine.
	fetch := func(req app.ContentRequest) {
		go func() {
			res := a.FetchContent(ctx, req)
			fyne.Do(func() {
				a.ApplyContent(res)
				refresh()
			})
		}()
	}

	startup := func(req app.StartupRequest) {
		startupInFlight = true
		go func() {
			res := a.FetchStartup(ctx, req)
			fyne.Do(func() {
				startupInFlight = false
				a.ApplyStartup(res)
				refresh()
			})
		}()
	}

	changeReciter := func(idx int) {
		if syncingReciter || idx < 0 || idx >= len(a.Reciters()) {
			return
		}
		if req, ok := a.ChangeReciter(a.Reciters()[idx]); ok {
			fetch(req)
		}
		refresh()
	}

	updateTransport := func() {
		elapsed, duration, fraction := p.Progress()
		elapsedLabel.SetText(player.FormatTime(elapsed))
		durationLabel.SetText(player.FormatTime(duration))
		seekSlider.SetValue(fraction)

		if p.Playing() {
			playBtn.SetText("⏸")
		} else {
			playBtn.SetText("▶")
		}
		if v, ok := p.ActiveVerse(); ok {
			verseLabel.SetText(fmt.Sprintf("Verse %d/%d", v.NumberInSurah, len(p.Audio())))
		} else {
			verseLabel.SetText("")
		}
	}

	refresh = func() {
		view := a.View()
		loadingView.Hide()
		listView.Hide()
		detailView.Hide()

		names := lo.Map(a.Reciters(), func(r quran.Reciter, _ int) string { return reciterLabel(r) })
		syncingReciter = true
		for _, sel := range []*widget.Select{reciterSelect, detailReciter} {
			sel.Options = names
			if r := a.Reciter(); r != nil {
				sel.SetSelected(reciterLabel(*r))
			}
			sel.Refresh()
		}
		syncingReciter = false

		switch view {
		case app.ViewLoading:
			if a.Loading() && !startupInFlight {
				activity.Stop()
				loadingLabel.SetText("Could not load the catalog.")
				retryBtn.Show()
			} else {
				activity.Start()
				loadingLabel.SetText("Loading…")
				retryBtn.Hide()
			}
			loadingView.Show()

		case app.ViewChapterList:
			activity.Stop()
			chapterList.Refresh()
			listView.Show()

		case app.ViewChapterDetail:
			activity.Stop()
			ch := a.Chapter()
			headerLabel.SetText(fmt.Sprintf("%s  %s", ch.Name, ch.EnglishName))
			if a.ShowBismillah() {
				bismillahLabel.Show()
			} else {
				bismillahLabel.Hide()
			}
			verseList.Refresh()
			updateTransport()
			detailView.Show()
		}
	}

	retryBtn.OnTapped = func() {
		startup(a.BeginStartup())
		refresh()
	}

	chapterList.OnSelected = func(id widget.ListItemID) {
		chapterList.UnselectAll()
		if id >= len(a.Chapters()) {
			return
		}
		if req, ok := a.SelectChapter(a.Chapters()[id]); ok {
			fetch(req)
		}
		refresh()
	}

	verseList.OnSelected = func(id widget.ListItemID) {
		verseList.UnselectAll()
		p.SelectVerse(id)
		refresh()
	}

	reciterSelect.OnChanged = func(string) { changeReciter(reciterSelect.SelectedIndex()) }
	detailReciter.OnChanged = func(string) { changeReciter(detailReciter.SelectedIndex()) }

	backBtn.OnTapped = func() {
		a.Back()
		refresh()
	}
	prevBtn.OnTapped = func() {
		p.Retreat()
		refresh()
	}
	playBtn.OnTapped = func() {
		p.TogglePlay()
		refresh()
	}
	nextBtn.OnTapped = func() {
		p.Advance()
		refresh()
	}
	seekSlider.OnChangeEnded = func(v float64) {
		if err := p.Seek(v); err != nil {
			log.Error("seek failed", zap.Error(err))
		}
		updateTransport()
	}

	w.Canvas().SetOnTypedKey(func(key *fyne.KeyEvent) {
		if a.View() != app.ViewChapterDetail {
			return
		}
		switch key.Name {
		case fyne.KeySpace:
			p.TogglePlay()
		case fyne.KeyRight:
			p.Advance()
		case fyne.KeyLeft:
			p.Retreat()
		case fyne.KeyEscape:
			a.Back()
		default:
			return
		}
		refresh()
	})

	w.Canvas().SetOnTypedRune(func(r rune) {
		switch r {
		case '[', ']':
			delta := seekStep
			if r == '[' {
				delta = -seekStep
			}
			if err := p.SeekBy(delta); err != nil {
				log.Error("seek failed", zap.Error(err))
			}
			updateTransport()
		case 'q', 'Q':
			fa.Quit()
		}
	})

	// Audio events
	go func() {
		for ev := range handle.Events() {
			fyne.Do(func() {
				p.HandleEvent(ev)
				refresh()
			})
		}
	}()

	// Progress updates while playing
	go func() {
		ticker := time.NewTicker(tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				fyne.Do(fa.Quit)
				return
			case <-ticker.C:
				fyne.Do(func() {
					if a.View() == app.ViewChapterDetail && p.Playing() {
						updateTransport()
					}
				})
			}
		}
	}()

	w.SetOnClosed(func() {
		close(done)
	})

	w.SetContent(container.NewStack(loadingView, listView, detailView))
	w.Resize(fyne.NewSize(800, 600))

	startup(a.BeginStartup())
	refresh()

	w.ShowAndRun()
	return nil
}
