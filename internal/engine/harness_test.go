package engine

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/airwaves-cli/airwaves/internal/catalog"
	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/airwaves-cli/airwaves/internal/metadata"
	"github.com/airwaves-cli/airwaves/internal/progress"
)

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fakePlayer struct {
	mu          sync.Mutex
	handler     func(Event)
	uri         string
	live        bool
	loads       int
	stops       int
	playing     bool
	position    time.Duration
	duration    time.Duration
	hasDuration bool
	seeks       []time.Duration
	loadErr     error
}

func (p *fakePlayer) Load(uri string, live bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.loadErr != nil {
		return p.loadErr
	}
	p.uri = uri
	p.live = live
	p.loads++
	p.playing = false
	return nil
}

func (p *fakePlayer) Play() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = true
}

func (p *fakePlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.playing = false
}

func (p *fakePlayer) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stops++
	p.playing = false
}

func (p *fakePlayer) SeekTo(pos time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seeks = append(p.seeks, pos)
	p.position = pos
	return nil
}

func (p *fakePlayer) Position() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position
}

func (p *fakePlayer) Duration() (time.Duration, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.duration, p.hasDuration
}

func (p *fakePlayer) SetEventHandler(h func(Event)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.handler = h
}

func (p *fakePlayer) setPosition(pos time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = pos
}

func (p *fakePlayer) setDuration(dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.duration = dur
	p.hasDuration = true
}

func (p *fakePlayer) loadCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loads
}

func (p *fakePlayer) loadedURI() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.uri
}

func (p *fakePlayer) loadedLive() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *fakePlayer) seekLog() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Duration, len(p.seeks))
	copy(out, p.seeks)
	return out
}

func (p *fakePlayer) emit(ev Event) {
	p.mu.Lock()
	h := p.handler
	p.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (p *fakePlayer) emitReady() { p.emit(Event{Kind: EventReady}) }
func (p *fakePlayer) emitEnded() { p.emit(Event{Kind: EventEnded}) }
func (p *fakePlayer) emitError(err error) {
	p.emit(Event{Kind: EventError, Err: err})
}

// fakeScheduler records scheduled tasks and fires them only when the test
// says so, keyed by the delay they were scheduled with.
type fakeScheduler struct {
	mu    sync.Mutex
	next  Token
	tasks map[Token]*fakeTask
}

type fakeTask struct {
	delay     time.Duration
	repeating bool
	fn        func()
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{tasks: make(map[Token]*fakeTask)}
}

func (s *fakeScheduler) ScheduleOnce(d time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.tasks[s.next] = &fakeTask{delay: d, fn: fn}
	return s.next
}

func (s *fakeScheduler) ScheduleRepeating(interval time.Duration, fn func()) Token {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.tasks[s.next] = &fakeTask{delay: interval, repeating: true, fn: fn}
	return s.next
}

func (s *fakeScheduler) Cancel(tok Token) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tasks, tok)
}

// pending returns the number of live tasks scheduled with the given delay.
func (s *fakeScheduler) pending(d time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, task := range s.tasks {
		if task.delay == d {
			n++
		}
	}
	return n
}

// fire runs one task scheduled with the given delay. One-shot tasks are
// consumed; repeating tasks stay scheduled. Reports whether a task ran.
func (s *fakeScheduler) fire(d time.Duration) bool {
	s.mu.Lock()
	var fn func()
	for tok, task := range s.tasks {
		if task.delay == d {
			fn = task.fn
			if !task.repeating {
				delete(s.tasks, tok)
			}
			break
		}
	}
	s.mu.Unlock()

	if fn == nil {
		return false
	}
	fn()
	return true
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeMetadata serves canned ShowInfo per station. An optional gate channel
// blocks every fetch until the test releases it.
type fakeMetadata struct {
	mu    sync.Mutex
	shows map[string]metadata.ShowInfo
	errs  map[string]error
	gate  chan struct{}
	calls int
}

func newFakeMetadata() *fakeMetadata {
	return &fakeMetadata{
		shows: make(map[string]metadata.ShowInfo),
		errs:  make(map[string]error),
	}
}

func (m *fakeMetadata) set(stationID string, info metadata.ShowInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.shows[stationID] = info
	delete(m.errs, stationID)
}

func (m *fakeMetadata) fail(stationID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errs[stationID] = err
}

func (m *fakeMetadata) block() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = make(chan struct{})
}

func (m *fakeMetadata) release() {
	m.mu.Lock()
	gate := m.gate
	m.gate = nil
	m.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (m *fakeMetadata) FetchShowInfo(_ context.Context, stationID string) (metadata.ShowInfo, error) {
	m.mu.Lock()
	gate := m.gate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.errs[stationID]; err != nil {
		return metadata.ShowInfo{}, err
	}
	return m.shows[stationID], nil
}

// fakeCatalog serves a canned catalog. A gate channel, when set, blocks
// FetchEpisodes until released.
type fakeCatalog struct {
	mu           sync.Mutex
	items        []catalog.Item
	episodes     map[string][]media.Episode
	catalogErr   error
	episodesErr  error
	gate         chan struct{}
	catalogCalls int
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{episodes: make(map[string][]media.Episode)}
}

func (c *fakeCatalog) block() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gate = make(chan struct{})
}

func (c *fakeCatalog) release() {
	c.mu.Lock()
	gate := c.gate
	c.gate = nil
	c.mu.Unlock()
	if gate != nil {
		close(gate)
	}
}

func (c *fakeCatalog) FetchCatalog(_ context.Context) ([]catalog.Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.catalogCalls++
	if c.catalogErr != nil {
		return nil, c.catalogErr
	}
	out := make([]catalog.Item, len(c.items))
	copy(out, c.items)
	return out, nil
}

func (c *fakeCatalog) FetchEpisodes(_ context.Context, itemID string) ([]media.Episode, error) {
	c.mu.Lock()
	gate := c.gate
	c.mu.Unlock()
	if gate != nil {
		<-gate
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episodesErr != nil {
		return nil, c.episodesErr
	}
	out := make([]media.Episode, len(c.episodes[itemID]))
	copy(out, c.episodes[itemID])
	return out, nil
}

// fakeProgress is an in-memory progress.Store with the same semantics as
// the file-backed one.
type fakeProgress struct {
	mu      sync.Mutex
	records map[string]progress.Record
	marks   map[string]int
	resets  map[string]int
}

func newFakeProgress() *fakeProgress {
	return &fakeProgress{
		records: make(map[string]progress.Record),
		marks:   make(map[string]int),
		resets:  make(map[string]int),
	}
}

func (p *fakeProgress) Get(episodeID string) (progress.Record, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec, ok := p.records[episodeID]
	return rec, ok
}

func (p *fakeProgress) SetPosition(episodeID string, pos, dur time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.records[episodeID]
	rec.Position = pos
	if dur > 0 {
		rec.Duration = dur
	}
	p.records[episodeID] = rec
}

func (p *fakeProgress) MarkPlayed(episodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.records[episodeID]
	rec.Played = true
	p.records[episodeID] = rec
	p.marks[episodeID]++
}

func (p *fakeProgress) Reset(episodeID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	rec := p.records[episodeID]
	rec.Position = 0
	p.records[episodeID] = rec
	p.resets[episodeID]++
}

func (p *fakeProgress) markCount(episodeID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.marks[episodeID]
}

func (p *fakeProgress) resetCount(episodeID string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resets[episodeID]
}

func (p *fakeProgress) record(episodeID string) progress.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.records[episodeID]
}

type fakeDirectory struct {
	mu        sync.Mutex
	stations  []media.Station
	favorites map[string]bool
}

func newFakeDirectory(ids ...string) *fakeDirectory {
	d := &fakeDirectory{favorites: make(map[string]bool)}
	for _, id := range ids {
		d.stations = append(d.stations, media.Station{
			ID:    id,
			Title: "Station " + id,
			Streams: []media.Stream{
				{URL: "http://stream/" + id, Format: "mp3", Quality: "highest"},
			},
		})
	}
	return d
}

func (d *fakeDirectory) Stations() []media.Station {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]media.Station, len(d.stations))
	copy(out, d.stations)
	return out
}

func (d *fakeDirectory) Favorites() []media.Station {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []media.Station
	for _, st := range d.stations {
		if d.favorites[st.ID] {
			out = append(out, st)
		}
	}
	return out
}

func (d *fakeDirectory) StationByID(id string) (media.Station, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, st := range d.stations {
		if st.ID == id {
			return st, true
		}
	}
	return media.Station{}, false
}

type fakePrefs struct {
	mu            sync.Mutex
	autoResume    bool
	favoritesOnly bool
	lastPlayed    string
	favorites     map[string]bool
	subscriptions map[string]bool
}

func newFakePrefs() *fakePrefs {
	return &fakePrefs{
		favorites:     make(map[string]bool),
		subscriptions: make(map[string]bool),
	}
}

func (p *fakePrefs) AutoResume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoResume
}

func (p *fakePrefs) FavoritesOnly() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.favoritesOnly
}

func (p *fakePrefs) Quality() string { return "highest" }

func (p *fakePrefs) LastPlayed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lastPlayed
}

func (p *fakePrefs) SetLastPlayed(mediaID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastPlayed = mediaID
}

func (p *fakePrefs) ToggleFavorite(stationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.favorites[stationID] = !p.favorites[stationID]
	return p.favorites[stationID]
}

func (p *fakePrefs) ToggleSubscription(podcastID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subscriptions[podcastID] = !p.subscriptions[podcastID]
	return p.subscriptions[podcastID]
}

func (p *fakePrefs) subscribed(podcastID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.subscriptions[podcastID]
}

type fakeSurface struct {
	mu        sync.Mutex
	snapshots []Snapshot
}

func (s *fakeSurface) Update(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
}

func (s *fakeSurface) history() []Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Snapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}

type fakeSaved struct {
	mu       sync.Mutex
	episodes map[string]media.Episode
}

func (s *fakeSaved) Get(episodeID string) (media.Episode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[episodeID]
	return ep, ok
}

func (s *fakeSaved) Save(ep media.Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes[ep.ID] = ep
	return nil
}

type fakeSearch struct {
	episodes map[string]media.Episode
}

func (s *fakeSearch) EpisodeByID(episodeID string) (media.Episode, bool) {
	ep, ok := s.episodes[episodeID]
	return ep, ok
}

// testRig bundles an engine with all its fakes.
type testRig struct {
	engine   *Engine
	player   *fakePlayer
	sched    *fakeScheduler
	clock    *fakeClock
	meta     *fakeMetadata
	catalog  *fakeCatalog
	progress *fakeProgress
	dir      *fakeDirectory
	prefs    *fakePrefs
	surface  *fakeSurface
	saved    *fakeSaved
	search   *fakeSearch
}

func newTestRig(t *testing.T, stationIDs ...string) *testRig {
	t.Helper()
	if len(stationIDs) == 0 {
		stationIDs = []string{"alpha", "beta", "gamma"}
	}

	rig := &testRig{
		player:   &fakePlayer{},
		sched:    newFakeScheduler(),
		clock:    newFakeClock(),
		meta:     newFakeMetadata(),
		catalog:  newFakeCatalog(),
		progress: newFakeProgress(),
		dir:      newFakeDirectory(stationIDs...),
		prefs:    newFakePrefs(),
		surface:  &fakeSurface{},
		saved:    &fakeSaved{episodes: make(map[string]media.Episode)},
		search:   &fakeSearch{episodes: make(map[string]media.Episode)},
	}

	rig.engine = New(Options{
		Player:    rig.player,
		Metadata:  rig.meta,
		Catalog:   rig.catalog,
		Progress:  rig.progress,
		Surface:   rig.surface,
		Directory: rig.dir,
		Saved:     rig.saved,
		Search:    rig.search,
		Prefs:     rig.prefs,
		Scheduler: rig.sched,
		Clock:     rig.clock.Now,
	})
	t.Cleanup(func() {
		rig.meta.release()
		rig.catalog.release()
		rig.engine.Close()
	})
	return rig
}

// playStation starts the given station and fails the test on error.
func (r *testRig) playStation(t *testing.T, stationID string) {
	t.Helper()
	if err := r.engine.PlayStation(stationID); err != nil {
		t.Fatalf("PlayStation(%q) = %v", stationID, err)
	}
}

// episode builds a test episode.
func testEpisode(id, podcastID string, published time.Time) media.Episode {
	return media.Episode{
		ID:          id,
		Title:       "Episode " + id,
		AudioURL:    fmt.Sprintf("http://audio/%s.mp3", id),
		PodcastID:   podcastID,
		PublishedAt: published,
	}
}
