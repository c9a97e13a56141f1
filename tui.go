//go:build !gui

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/metcalfc/tilawa/internal/app"
	"github.com/metcalfc/tilawa/internal/audio"
	"github.com/metcalfc/tilawa/internal/player"
	"github.com/metcalfc/tilawa/internal/quran"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#2E8B57"))

	bismillahStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#BBBBBB")).
			Align(lipgloss.Center)

	verseStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1)

	activeVerseStyle = verseStyle.
				Background(lipgloss.Color("#1F4D36")).
				Bold(true)

	cursorVerseStyle = verseStyle.
				Foreground(lipgloss.Color("#7FD1A8"))

	numberStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#3CB371"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			Padding(0, 1)

	playingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00FF00")).
			Bold(true)

	pausedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFAA00")).
			Bold(true)
)

type keyMap struct {
	Up, Down, Select     key.Binding
	Play, Next, Prev     key.Binding
	NextReciter, PrevRec key.Binding
	SeekBack, SeekFwd    key.Binding
	Back, Retry, Quit    key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		Up:          key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:        key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select:      key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Play:        key.NewBinding(key.WithKeys(" "), key.WithHelp("space", "play/pause")),
		Next:        key.NewBinding(key.WithKeys("right", "n"), key.WithHelp("→/n", "next")),
		Prev:        key.NewBinding(key.WithKeys("left", "p"), key.WithHelp("←/p", "prev")),
		NextReciter: key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "reciter")),
		PrevRec:     key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "prev reciter")),
		SeekBack:    key.NewBinding(key.WithKeys("["), key.WithHelp("[", "-5s")),
		SeekFwd:     key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "+5s")),
		Back:        key.NewBinding(key.WithKeys("esc", "backspace"), key.WithHelp("esc", "back")),
		Retry:       key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retry")),
		Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Play, k.Prev, k.Next, k.Select, k.NextReciter, k.SeekBack, k.SeekFwd, k.Back, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select},
		{k.Play, k.Prev, k.Next},
		{k.NextReciter, k.PrevRec, k.SeekBack, k.SeekFwd},
		{k.Back, k.Retry, k.Quit},
	}
}

type chapterItem quran.Chapter

func (c chapterItem) Title() string {
	return fmt.Sprintf("%3d. %s", c.Number, c.EnglishName)
}

func (c chapterItem) Description() string {
	return fmt.Sprintf("     %s · %s · %d verses", c.Name, c.RevelationType, c.NumberOfAyahs)
}

func (c chapterItem) FilterValue() string {
	return c.EnglishName + " " + c.Name
}

type (
	startupMsg     app.StartupResult
	contentMsg     app.ContentResult
	audioEventMsg  audio.Event
	audioClosedMsg struct{}
	tickMsg        time.Time
)

type model struct {
	app    *app.App
	events <-chan audio.Event
	ctx    context.Context
	log    *zap.Logger

	chapters list.Model
	spinner  spinner.Model
	progress progress.Model
	help     help.Model
	keys     keyMap

	startupReq      app.StartupRequest
	cursor          int
	ticking         bool
	startupInFlight bool
	quitting        bool
	width           int
	height          int
}

func newModel(ctx context.Context, a *app.App, events <-chan audio.Event, log *zap.Logger) model {
	chapters := list.New(nil, list.NewDefaultDelegate(), 80, 20)
	chapters.Title = appTitle
	chapters.DisableQuitKeybindings()

	return model{
		app:             a,
		events:          events,
		ctx:             ctx,
		log:             log,
		chapters:        chapters,
		spinner:         spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress:        progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
		help:            help.New(),
		keys:            newKeyMap(),
		startupReq:      a.BeginStartup(),
		startupInFlight: true,
		width:           80,
		height:          24,
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchStartup(m.startupReq), waitForEvent(m.events))
}

// retry issues a new catalog request.
func (m *model) retry() tea.Cmd {
	m.startupReq = m.app.BeginStartup()
	m.startupInFlight = true
	return m.fetchStartup(m.startupReq)
}

func (m model) fetchStartup(req app.StartupRequest) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return startupMsg(a.FetchStartup(ctx, req))
	}
}

func (m model) fetch(req app.ContentRequest) tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return contentMsg(a.FetchContent(ctx, req))
	}
}

func waitForEvent(events <-chan audio.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return audioClosedMsg{}
		}
		return audioEventMsg(ev)
	}
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.chapters.SetSize(msg.Width, max(1, msg.Height-2))
		m.progress.Width = max(10, min(60, msg.Width-30))
		return m, nil

	case startupMsg:
		if msg.Request == m.startupReq {
			m.startupInFlight = false
		}
		m.app.ApplyStartup(app.StartupResult(msg))
		if !m.app.Loading() {
			m.chapters.SetItems(chapterItems(m.app.Chapters()))
		}
		return m, nil

	case contentMsg:
		if m.app.ApplyContent(app.ContentResult(msg)) {
			m.cursor = m.app.Player().ActiveIndex()
		}
		return m, nil

	case audioEventMsg:
		m.app.Player().HandleEvent(audio.Event(msg))
		m.cursor = m.app.Player().ActiveIndex()
		cmd := m.ensureTick()
		return m, tea.Batch(waitForEvent(m.events), cmd)

	case audioClosedMsg:
		return m, nil

	case tickMsg:
		if m.app.Player().Playing() {
			return m, tick()
		}
		m.ticking = false
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) && m.chapters.FilterState() != list.Filtering {
			m.quitting = true
			return m, tea.Quit
		}
		switch m.app.View() {
		case app.ViewLoading:
			return m.updateLoading(msg)
		case app.ViewChapterList:
			return m.updateList(msg)
		case app.ViewChapterDetail:
			return m.updateDetail(msg)
		}
	}

	return m, nil
}

func (m model) updateLoading(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Retry) && m.app.Loading() && !m.startupInFlight {
		cmd := m.retry()
		return m, cmd
	}
	return m, nil
}

func (m model) updateList(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.chapters.FilterState() != list.Filtering {
		switch {
		case key.Matches(msg, m.keys.Select):
			item, ok := m.chapters.SelectedItem().(chapterItem)
			if !ok {
				return m, nil
			}
			if req, ok := m.app.SelectChapter(quran.Chapter(item)); ok {
				return m, m.fetch(req)
			}
			return m, nil
		case key.Matches(msg, m.keys.NextReciter):
			return m.changeReciter(1)
		case key.Matches(msg, m.keys.PrevRec):
			return m.changeReciter(-1)
		}
	}

	var cmd tea.Cmd
	m.chapters, cmd = m.chapters.Update(msg)
	return m, cmd
}

func (m model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.app.Player()

	switch {
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(p.Text())-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Select):
		p.SelectVerse(m.cursor)
	case key.Matches(msg, m.keys.Play):
		p.TogglePlay()
	case key.Matches(msg, m.keys.Next):
		p.Advance()
		m.cursor = p.ActiveIndex()
	case key.Matches(msg, m.keys.Prev):
		p.Retreat()
		m.cursor = p.ActiveIndex()
	case key.Matches(msg, m.keys.SeekBack):
		m.seek(-seekStep)
	case key.Matches(msg, m.keys.SeekFwd):
		m.seek(seekStep)
	case key.Matches(msg, m.keys.NextReciter):
		return m.changeReciter(1)
	case key.Matches(msg, m.keys.PrevRec):
		return m.changeReciter(-1)
	case key.Matches(msg, m.keys.Back):
		m.app.Back()
		m.cursor = 0
		return m, nil
	}

	cmd := m.ensureTick()
	return m, cmd
}

func (m model) changeReciter(delta int) (tea.Model, tea.Cmd) {
	r, ok := m.app.CycleReciter(delta)
	if !ok {
		return m, nil
	}
	if req, ok := m.app.ChangeReciter(r); ok {
		return m, m.fetch(req)
	}
	return m, nil
}

func (m *model) seek(delta time.Duration) {
	if err := m.app.Player().SeekBy(delta); err != nil {
		m.log.Error("seek failed", zap.Error(err))
	}
}

// ensureTick starts the progress tick if playback is running and no tick is
// pending.
func (m *model) ensureTick() tea.Cmd {
	if m.ticking || !m.app.Player().Playing() {
		return nil
	}
	m.ticking = true
	return tick()
}

func chapterItems(chapters []quran.Chapter) []list.Item {
	items := make([]list.Item, len(chapters))
	for i, c := range chapters {
		items[i] = chapterItem(c)
	}
	return items
}

func (m model) View() string {
	if m.quitting {
		return ""
	}

	switch m.app.View() {
	case app.ViewLoading:
		return m.loadingView()
	case app.ViewChapterList:
		return m.chapters.View() + "\n" + m.reciterLine()
	}
	return m.detailView()
}

func (m model) loadingView() string {
	msg := m.spinner.View() + " Loading…"
	if m.app.Loading() && !m.startupInFlight {
		msg += statusStyle.Render("(r: retry, q: quit)")
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, msg)
}

func (m model) reciterLine() string {
	name := "-"
	if r := m.app.Reciter(); r != nil {
		name = r.Name
		if r.EnglishName != "" {
			name = r.EnglishName + " · " + r.Name
		}
	}
	return statusStyle.Render("Reciter: " + name + "  (tab to change)")
}

func (m model) detailView() string {
	ch := m.app.Chapter()
	p := m.app.Player()

	var sb strings.Builder
	sb.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", ch.Name, ch.EnglishName)))
	sb.WriteString("\n")
	used := 1
	if m.app.ShowBismillah() {
		sb.WriteString(bismillahStyle.Width(m.width).Render(bismillah))
		sb.WriteString("\n")
		used++
	}

	transport := m.transportView()
	helpLine := m.help.View(m.keys)
	used += lipgloss.Height(transport) + lipgloss.Height(helpLine) + 1

	sb.WriteString(m.versesView(p.Text(), max(1, m.height-used)))
	sb.WriteString("\n")
	sb.WriteString(transport)
	sb.WriteString("\n")
	sb.WriteString(helpLine)
	return sb.String()
}

// versesView renders as many verses around the cursor as fit in rows lines.
func (m model) versesView(verses []quran.Verse, rows int) string {
	if len(verses) == 0 {
		return ""
	}
	cursor := max(0, min(m.cursor, len(verses)-1))

	rendered := make(map[int]string)
	render := func(i int) string {
		if s, ok := rendered[i]; ok {
			return s
		}
		v := verses[i]
		style := verseStyle
		switch {
		case m.app.IsActive(v):
			style = activeVerseStyle
		case i == cursor:
			style = cursorVerseStyle
		}
		s := style.Width(m.width).Render(v.Text + " " + numberStyle.Render(fmt.Sprintf("(%d)", v.NumberInSurah)))
		rendered[i] = s
		return s
	}

	start, end := cursor, cursor+1
	lines := lipgloss.Height(render(cursor))
	for lines < rows {
		grew := false
		if start > 0 && (end >= len(verses) || cursor-start < (end-cursor)) {
			if h := lipgloss.Height(render(start - 1)); lines+h <= rows {
				start--
				lines += h
				grew = true
			}
		} else if end < len(verses) {
			if h := lipgloss.Height(render(end)); lines+h <= rows {
				end++
				lines += h
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	parts := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		parts = append(parts, render(i))
	}
	return strings.Join(parts, "\n")
}

func (m model) transportView() string {
	p := m.app.Player()
	elapsed, duration, fraction := p.Progress()

	state := pausedStyle.Render("⏸ paused")
	if p.Playing() {
		state = playingStyle.Render("▶ playing")
	}

	verse := "-"
	if v, ok := p.ActiveVerse(); ok {
		verse = fmt.Sprint(v.NumberInSurah)
	}

	bar := fmt.Sprintf("%s  %s %s %s", state,
		player.FormatTime(elapsed), m.progress.ViewAs(fraction), player.FormatTime(duration))
	status := statusStyle.Render(fmt.Sprintf("Verse %s/%d", verse, len(p.Audio())))

	return bar + "  " + status + "\n" + m.reciterLine()
}

func runFrontend(ctx context.Context, a *app.App, handle audio.Handle, log *zap.Logger) error {
	m := newModel(ctx, a, handle.Events(), log)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
