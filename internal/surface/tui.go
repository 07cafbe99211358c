package surface

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/airwaves-cli/airwaves/internal/catalog"
	"github.com/airwaves-cli/airwaves/internal/config"
	"github.com/airwaves-cli/airwaves/internal/directory"
	"github.com/airwaves-cli/airwaves/internal/engine"
	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/airwaves-cli/airwaves/internal/player"
	"github.com/airwaves-cli/airwaves/internal/search"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"github.com/rs/zerolog/log"
)

const (
	VolumeStep     = 5
	HeaderHeight   = 3
	FooterHeight   = 3
	NowPanelHeight = 6
	BrowseTimeout  = 10 * time.Second
	AnimationFPS   = time.Second / 10
	SearchLimit    = 20
)

// browseMode selects what the list table shows.
type browseMode int

const (
	browseStations browseMode = iota
	browsePodcasts
	browseEpisodes
	browseSearch
)

// TUI is the terminal now-playing surface and browser. It issues engine
// commands from key handlers; engine snapshots flow back through Update on
// a dedicated drain goroutine, never re-entering the engine.
type TUI struct {
	app    *tview.Application
	engine *engine.Engine
	player *player.Player
	dir    *directory.Directory
	cat    catalog.Source
	index  *search.Index

	list        *tview.Table
	nowTitle    *tview.TextView
	nowDetail   *tview.TextView
	searchInput *tview.InputField
	layout      *tview.Flex
	pages       *tview.Pages

	status *StatusRenderer

	mu       sync.Mutex
	snap     engine.Snapshot
	mode     browseMode
	stations []media.Station
	podcasts []catalog.Item
	episodes []media.Episode

	snapCh chan struct{}
	stopCh chan struct{}

	colors struct {
		background tcell.Color
		foreground tcell.Color
		highlight  tcell.Color
		header     tcell.Color
		help       tcell.Color
	}
}

// NewTUI creates the terminal surface. The catalog source and search index
// may be nil; the corresponding browse modes are then unavailable.
func NewTUI(eng *engine.Engine, pl *player.Player, dir *directory.Directory, cat catalog.Source, index *search.Index) *TUI {
	t := &TUI{
		app:    tview.NewApplication(),
		engine: eng,
		player: pl,
		dir:    dir,
		cat:    cat,
		index:  index,
		status: NewStatusRenderer(),
		snapCh: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}

	t.colors.background = tcell.ColorDefault
	t.colors.foreground = tcell.ColorWhite
	t.colors.highlight = tcell.ColorAqua
	t.colors.header = tcell.ColorDarkSlateGray
	t.colors.help = tcell.ColorGray
	t.status.SetPrimaryColor(t.colors.highlight.String())

	return t
}

// Update implements engine.NowPlayingSurface. It is called synchronously
// under the engine's lock, so it only records the snapshot and signals the
// drain goroutine.
func (t *TUI) Update(snap engine.Snapshot) {
	t.mu.Lock()
	t.snap = snap
	t.mu.Unlock()

	select {
	case t.snapCh <- struct{}{}:
	default:
	}
}

// Run builds the layout and blocks until the UI exits.
func (t *TUI) Run() error {
	t.setup()

	go t.drainSnapshots()
	go t.animate()

	t.mu.Lock()
	t.stations = t.dir.Stations()
	t.mu.Unlock()
	t.renderList()

	return t.app.SetRoot(t.pages, true).EnableMouse(true).Run()
}

// Shutdown stops the UI from external callers such as signal handlers.
func (t *TUI) Shutdown() {
	t.app.QueueUpdateDraw(func() {
		t.stop()
	})
}

func (t *TUI) stop() {
	select {
	case <-t.stopCh:
	default:
		close(t.stopCh)
	}
	t.app.Stop()
}

func (t *TUI) setup() {
	header := t.createHeader()

	t.nowTitle = tview.NewTextView()
	t.nowTitle.SetDynamicColors(true)
	t.nowTitle.SetTextColor(t.colors.highlight)
	t.nowTitle.SetBackgroundColor(t.colors.background)
	t.nowTitle.SetTextStyle(tcell.StyleDefault.Background(t.colors.background).Attributes(tcell.AttrBold))

	t.nowDetail = tview.NewTextView()
	t.nowDetail.SetDynamicColors(true)
	t.nowDetail.SetTextColor(t.colors.foreground)
	t.nowDetail.SetBackgroundColor(t.colors.background)

	nowPanel := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(t.nowTitle, 2, 0, false).
		AddItem(t.nowDetail, 0, 1, false)
	nowPanel.SetBackgroundColor(t.colors.background)
	nowPanel.SetBorder(true).SetTitle(" Now Playing ").SetBorderColor(t.colors.header)

	t.list = tview.NewTable()
	t.list.SetSelectable(true, false)
	t.list.SetBackgroundColor(t.colors.background)
	t.list.SetSelectedStyle(tcell.StyleDefault.
		Background(t.colors.highlight).
		Foreground(tcell.ColorBlack))
	t.list.SetSelectedFunc(func(row, _ int) {
		t.activateRow(row)
	})

	t.searchInput = tview.NewInputField().
		SetLabel(" Search: ").
		SetFieldBackgroundColor(t.colors.background)
	t.searchInput.SetDoneFunc(func(key tcell.Key) {
		if key == tcell.KeyEnter {
			t.runSearch(t.searchInput.GetText())
		}
		t.layout.RemoveItem(t.searchInput)
		t.app.SetFocus(t.list)
	})

	footer := t.createFooter()

	t.layout = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(header, HeaderHeight, 0, false).
		AddItem(nowPanel, NowPanelHeight, 0, false).
		AddItem(t.list, 0, 1, true).
		AddItem(footer, FooterHeight, 0, false)
	t.layout.SetBackgroundColor(t.colors.background)

	t.pages = tview.NewPages().AddPage("main", t.layout, true, true)

	t.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if t.app.GetFocus() == t.searchInput {
			return event
		}
		return t.handleKey(event)
	})
}

func (t *TUI) createHeader() tview.Primitive {
	titleView := tview.NewTextView()
	titleView.SetText(" " + config.AppName)
	titleView.SetTextAlign(tview.AlignLeft)
	titleView.SetTextColor(t.colors.foreground)
	titleView.SetBackgroundColor(t.colors.header)

	versionView := tview.NewTextView()
	versionView.SetText("v" + config.AppVersion + " ")
	versionView.SetTextAlign(tview.AlignRight)
	versionView.SetTextColor(t.colors.foreground)
	versionView.SetBackgroundColor(t.colors.header)

	textFlex := tview.NewFlex().SetDirection(tview.FlexColumn).
		AddItem(titleView, 0, 1, false).
		AddItem(versionView, 10, 0, false)
	textFlex.SetBackgroundColor(t.colors.header)

	headerFlex := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(tview.NewBox().SetBackgroundColor(t.colors.header), 1, 0, false).
		AddItem(textFlex, 1, 0, false).
		AddItem(tview.NewBox().SetBackgroundColor(t.colors.header), 1, 0, false)
	headerFlex.SetBackgroundColor(t.colors.header)

	return headerFlex
}

func (t *TUI) createFooter() tview.Primitive {
	box := tview.NewBox().SetBackgroundColor(t.colors.background)

	box.SetDrawFunc(func(screen tcell.Screen, x, y, width, height int) (int, int, int, int) {
		t.mu.Lock()
		snap := t.snap
		t.mu.Unlock()

		helpText := t.helpText()
		statusText := " " + t.status.Render(snap) + " "

		helpWidth := width / 2
		centerY := y + height/2
		tview.Print(screen, helpText, x, centerY, helpWidth, tview.AlignLeft, t.colors.help)
		tview.Print(screen, statusText, x+helpWidth, centerY, width-helpWidth-1, tview.AlignRight, t.colors.foreground)

		return x, y, width, height
	})

	return box
}

func (t *TUI) helpText() string {
	key := t.colors.highlight.String()
	return fmt.Sprintf(" [%s]Enter[-] play  [%s]Space[-] pause  [%s]</>[-] skip  [%s]f[-] fav/sub  [%s]s[-]tations [%s]p[-]odcasts [%s]/[-] search  [%s]q[-] quit",
		key, key, key, key, key, key, key, key)
}

// drainSnapshots forwards engine snapshots onto the tview event loop.
func (t *TUI) drainSnapshots() {
	for {
		select {
		case <-t.stopCh:
			return
		case <-t.snapCh:
			t.app.QueueUpdateDraw(func() {
				t.renderNowPlaying()
			})
		}
	}
}

func (t *TUI) animate() {
	ticker := time.NewTicker(AnimationFPS)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopCh:
			return
		case <-ticker.C:
			t.status.AdvanceAnimation()
			t.app.QueueUpdateDraw(func() {})
		}
	}
}

func (t *TUI) renderNowPlaying() {
	t.mu.Lock()
	snap := t.snap
	t.mu.Unlock()

	title := snap.DisplayTitle()
	if title == "" {
		title = "Nothing playing"
	}
	t.nowTitle.SetText(fmt.Sprintf(" [%s]%s[-]", t.colors.highlight.String(), tview.Escape(title)))

	var lines []string
	switch {
	case snap.Station != nil:
		lines = append(lines, " Station: "+snap.Station.Title)
		if snap.Show.ProgrammeTitle != "" && snap.Show.ProgrammeTitle != title {
			lines = append(lines, " Programme: "+snap.Show.ProgrammeTitle)
		}
		if snap.Match != nil {
			lines = append(lines, " On-demand: "+snap.Match.Title+"  (press f to subscribe)")
		}
	case snap.Episode != nil:
		lines = append(lines, " Episode: "+snap.Episode.Title)
		lines = append(lines, " "+positionLabel(snap)+"  "+progressBar(snap, 40))
	default:
		if snap.Fatal {
			lines = append(lines, " Playback failed. Pick something else to play.")
		}
	}
	t.nowDetail.SetText(strings.Join(lines, "\n"))
}

func (t *TUI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q', 'Q':
			t.stop()
			return nil
		case ' ':
			t.togglePause()
			return nil
		case '>':
			t.engine.Skip(1)
			return nil
		case '<':
			t.engine.Skip(-1)
			return nil
		case 'f', 'F':
			t.engine.ToggleFavoriteOrSubscription()
			return nil
		case 's', 'S':
			t.showStations()
			return nil
		case 'p', 'P':
			t.showPodcasts()
			return nil
		case '/':
			t.openSearch()
			return nil
		case '+', '=':
			t.adjustVolume(VolumeStep)
			return nil
		case '-', '_':
			t.adjustVolume(-VolumeStep)
			return nil
		}
	case tcell.KeyEscape:
		t.mu.Lock()
		mode := t.mode
		t.mu.Unlock()
		if mode == browseEpisodes || mode == browseSearch {
			t.showPodcasts()
			return nil
		}
		t.stop()
		return nil
	case tcell.KeyLeft:
		t.engine.SeekBy(-engine.SeekBackStep)
		return nil
	case tcell.KeyRight:
		t.engine.SeekBy(engine.SeekForwardStep)
		return nil
	}
	return event
}

func (t *TUI) togglePause() {
	snap := t.engine.Snapshot()
	switch snap.State {
	case engine.StatePaused:
		t.engine.Resume()
	case engine.StatePlaying, engine.StateBuffering:
		t.engine.Pause()
	default:
		row, _ := t.list.GetSelection()
		t.activateRow(row)
	}
}

func (t *TUI) adjustVolume(delta int) {
	if t.player == nil {
		return
	}
	t.player.SetVolume(t.player.Volume() + delta)
}

// activateRow plays or drills into the selected list row.
func (t *TUI) activateRow(row int) {
	index := row - 1 // header row
	if index < 0 {
		return
	}

	t.mu.Lock()
	mode := t.mode
	var st *media.Station
	var pod *catalog.Item
	var ep *media.Episode
	switch mode {
	case browseStations:
		if index < len(t.stations) {
			st = &t.stations[index]
		}
	case browsePodcasts:
		if index < len(t.podcasts) {
			pod = &t.podcasts[index]
		}
	case browseEpisodes, browseSearch:
		if index < len(t.episodes) {
			ep = &t.episodes[index]
		}
	}
	t.mu.Unlock()

	switch {
	case st != nil:
		if err := t.engine.PlayStation(st.ID); err != nil {
			log.Warn().Err(err).Str("station", st.ID).Msg("Failed to start station")
		}
	case pod != nil:
		t.showEpisodes(*pod)
	case ep != nil:
		t.engine.PlayEpisode(*ep, ep.PodcastID)
	}
}

func (t *TUI) showStations() {
	t.mu.Lock()
	t.mode = browseStations
	t.stations = t.dir.Stations()
	t.mu.Unlock()
	t.renderList()
}

func (t *TUI) showPodcasts() {
	if t.cat == nil {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), BrowseTimeout)
		defer cancel()

		items, err := t.cat.FetchCatalog(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to fetch catalog")
			return
		}

		t.app.QueueUpdateDraw(func() {
			t.mu.Lock()
			t.mode = browsePodcasts
			t.podcasts = items
			t.mu.Unlock()
			t.renderList()
		})
	}()
}

func (t *TUI) showEpisodes(pod catalog.Item) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), BrowseTimeout)
		defer cancel()

		episodes, err := t.cat.FetchEpisodes(ctx, pod.ID)
		if err != nil {
			log.Warn().Err(err).Str("podcast", pod.ID).Msg("Failed to fetch episodes")
			return
		}
		if t.index != nil {
			t.index.Add(episodes...)
		}

		t.app.QueueUpdateDraw(func() {
			t.mu.Lock()
			t.mode = browseEpisodes
			t.episodes = episodes
			t.mu.Unlock()
			t.renderList()
		})
	}()
}

func (t *TUI) openSearch() {
	if t.index == nil {
		return
	}
	t.searchInput.SetText("")
	t.layout.RemoveItem(t.searchInput)
	t.layout.AddItem(t.searchInput, 1, 0, true)
	t.app.SetFocus(t.searchInput)
}

func (t *TUI) runSearch(query string) {
	query = strings.TrimSpace(query)
	if query == "" {
		return
	}

	results := t.index.SearchTitles(query, SearchLimit)
	t.mu.Lock()
	t.mode = browseSearch
	t.episodes = results
	t.mu.Unlock()
	t.renderList()
}

func (t *TUI) renderList() {
	t.mu.Lock()
	mode := t.mode
	stations := t.stations
	podcasts := t.podcasts
	episodes := t.episodes
	t.mu.Unlock()

	t.list.Clear()

	headerStyle := tcell.StyleDefault.
		Background(t.colors.header).
		Foreground(t.colors.foreground).
		Attributes(tcell.AttrBold)
	setHeader := func(cols ...string) {
		for c, label := range cols {
			cell := tview.NewTableCell(" " + label).
				SetStyle(headerStyle).
				SetSelectable(false).
				SetExpansion(1)
			t.list.SetCell(0, c, cell)
		}
	}

	switch mode {
	case browseStations:
		setHeader("Station", "Genre", "Listeners")
		for i, st := range stations {
			t.list.SetCell(i+1, 0, tview.NewTableCell(" "+st.Title).SetExpansion(2))
			t.list.SetCell(i+1, 1, tview.NewTableCell(st.Genre).SetExpansion(2))
			t.list.SetCell(i+1, 2, tview.NewTableCell(st.Listeners).SetExpansion(1))
		}
	case browsePodcasts:
		setHeader("Podcast")
		for i, pod := range podcasts {
			t.list.SetCell(i+1, 0, tview.NewTableCell(" "+pod.Title).SetExpansion(1))
		}
	case browseEpisodes, browseSearch:
		setHeader("Episode", "Published")
		for i, ep := range episodes {
			published := ""
			if !ep.PublishedAt.IsZero() {
				published = ep.PublishedAt.Format("2006-01-02")
			}
			t.list.SetCell(i+1, 0, tview.NewTableCell(" "+ep.Title).SetExpansion(3))
			t.list.SetCell(i+1, 1, tview.NewTableCell(published).SetExpansion(1))
		}
	}

	t.list.ScrollToBeginning()
	if t.list.GetRowCount() > 1 {
		t.list.Select(1, 0)
	}
}
