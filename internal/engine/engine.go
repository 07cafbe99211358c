// Package engine implements the playback orchestration core: it owns the
// current playback source, schedules metadata refresh and progress
// sampling, applies completion/resume/autoplay policy, and projects state
// to the now-playing surface and in-process listeners.
package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/airwaves-cli/airwaves/internal/catalog"
	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/airwaves-cli/airwaves/internal/metadata"
	"github.com/airwaves-cli/airwaves/internal/progress"
	"github.com/rs/zerolog/log"
)

const (
	// MetadataPollInterval is how often now-playing metadata is polled
	// while a live station plays.
	MetadataPollInterval = 30 * time.Second
	// MetadataApplyDelay compensates for stream-delivery latency: fetched
	// metadata is held back so the display does not precede the audio.
	MetadataApplyDelay = 15 * time.Second
	// ProgressSampleInterval is the episode position sampling cadence.
	ProgressSampleInterval = 500 * time.Millisecond
	// ProgressPersistAdvance is the minimum position advance between
	// persisted samples.
	ProgressPersistAdvance = 15 * time.Second
	// NearEndWindow is the remaining-time window in which every sample is
	// persisted, to capture near-end state densely.
	NearEndWindow = 30 * time.Second
	// PlayedThreshold is the position/duration ratio at which an episode
	// counts as played.
	PlayedThreshold = 0.95
	// ReconnectBackoff is the delay before the single automatic replay
	// after a stream playback failure.
	ReconnectBackoff = 3 * time.Second
	// ReconnectCooldown is the minimum interval between controller
	// reconnect actions for an already-seen client.
	ReconnectCooldown = 5 * time.Second
	// ResolveTimeout bounds remote lookups during reconnect resolution.
	ResolveTimeout = 4 * time.Second
	// SeekBackStep and SeekForwardStep are the relative seeks skip(±1)
	// maps to for on-demand episodes.
	SeekBackStep    = 10 * time.Second
	SeekForwardStep = 30 * time.Second
)

// Options carries the engine's collaborators. Player, Metadata, Catalog,
// Progress and Prefs are required; the rest may be nil where the feature
// is unused.
type Options struct {
	Player    StreamPlayer
	Metadata  metadata.Source
	Catalog   catalog.Source
	Progress  progress.Store
	Surface   NowPlayingSurface
	Directory StationDirectory
	Saved     SavedEpisodes
	Search    SearchIndex
	Prefs     Prefs
	Scheduler Scheduler        // defaults to a TimerScheduler
	Clock     func() time.Time // defaults to time.Now
}

// Engine is the single-writer owner of playback state. All mutation happens
// under mu; asynchronous results re-enter exclusively through generation
// checks, so a stale lookup from a superseded source is always a no-op.
type Engine struct {
	mu sync.Mutex
	wg sync.WaitGroup

	player    StreamPlayer
	metadata  metadata.Source
	catalog   catalog.Source
	progress  progress.Store
	surface   NowPlayingSurface
	directory StationDirectory
	saved     SavedEpisodes
	search    SearchIndex
	prefs     Prefs
	sched     Scheduler
	now       func() time.Time

	state  State
	source *media.Source
	show   metadata.ShowInfo
	match  *catalog.Item
	fatal  bool

	// generation tags every async lookup tied to the current source;
	// matchGen does the same for catalog-match lookups.
	generation uint64
	matchGen   uint64
	matchKey   string

	playWhenReady     bool
	resumeAt          time.Duration
	consecutiveErrors int

	firstFetchApplied bool
	pendingShow       *metadata.ShowInfo
	pendingToken      Token
	pollToken         Token
	sampleToken       Token

	playedMarked  bool
	lastPersisted time.Duration

	lastAutoResume time.Time
	lastRefresh    time.Time
	knownClients   map[string]struct{}

	listeners    map[int]func(Snapshot)
	nextListener int
}

// New creates an Engine and takes ownership of the stream player.
func New(opts Options) *Engine {
	sched := opts.Scheduler
	if sched == nil {
		sched = NewTimerScheduler()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{
		player:       opts.Player,
		metadata:     opts.Metadata,
		catalog:      opts.Catalog,
		progress:     opts.Progress,
		surface:      opts.Surface,
		directory:    opts.Directory,
		saved:        opts.Saved,
		search:       opts.Search,
		prefs:        opts.Prefs,
		sched:        sched,
		now:          clock,
		state:        StateStopped,
		knownClients: make(map[string]struct{}),
		listeners:    make(map[int]func(Snapshot)),
	}
	e.player.SetEventHandler(e.handlePlayerEvent)
	return e
}

// Close stops playback and waits for in-flight background lookups.
func (e *Engine) Close() {
	e.Stop()
	e.wg.Wait()
}

func (e *Engine) runAsync(fn func()) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn()
	}()
}

type playOpts struct {
	updateLastPlayed bool
	keepErrors       bool // preserved across the automatic error replay
}

// PlayStation switches playback to the station with the given id.
func (e *Engine) PlayStation(stationID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.directory == nil {
		return fmt.Errorf("no station directory configured")
	}
	st, ok := e.directory.StationByID(stationID)
	if !ok {
		return fmt.Errorf("station not found: %s", stationID)
	}

	e.playSourceLocked(media.StationSource(&st), playOpts{updateLastPlayed: true})
	return nil
}

// PlayEpisode switches playback to the given episode. podcastID overrides
// the episode's own podcast reference when non-empty (the caller's catalog
// context wins over feed-derived data).
func (e *Engine) PlayEpisode(ep media.Episode, podcastID string) {
	if podcastID != "" {
		ep.PodcastID = podcastID
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.playSourceLocked(media.EpisodeSource(&ep), playOpts{updateLastPlayed: true})
}

// playSourceLocked is the single entry point for source switches. It
// cancels everything scoped to the outgoing source, bumps the generation,
// and starts the new source's timers and lookups.
func (e *Engine) playSourceLocked(src *media.Source, opts playOpts) {
	e.cancelSourceTasksLocked()
	e.generation++
	e.matchGen++
	gen := e.generation

	prevStationID := ""
	if e.source.IsLive() {
		prevStationID = e.source.Station.ID
	}

	e.source = src
	e.state = StateBuffering
	e.fatal = false
	e.playWhenReady = true
	e.match = nil
	e.matchKey = ""
	e.pendingShow = nil
	e.firstFetchApplied = false
	e.resumeAt = 0
	e.playedMarked = false
	e.lastPersisted = 0
	if !opts.keepErrors {
		e.consecutiveErrors = 0
	}

	// Song-level fields never survive a switch. The programme title only
	// survives a refresh of the same station, so the display is not blanked
	// while the replacement stream buffers.
	if src.IsLive() && src.Station.ID == prevStationID {
		e.show.ClearSong()
	} else {
		e.show = metadata.ShowInfo{}
	}

	if opts.updateLastPlayed && e.prefs != nil {
		e.prefs.SetLastPlayed(src.ID())
	}

	switch {
	case src.IsLive():
		st := src.Station
		quality := "highest"
		if e.prefs != nil {
			quality = e.prefs.Quality()
		}
		uri := st.StreamURL(quality)
		log.Debug().Str("station", st.ID).Str("uri", uri).Msg("Switching to live station")
		if err := e.player.Load(uri, true); err != nil {
			e.handlePlayerErrorLocked(err)
			return
		}
		e.startMetadataLocked(gen, st.ID)

	case src.IsEpisode():
		ep := src.Episode
		if e.saved != nil {
			if err := e.saved.Save(*ep); err != nil {
				log.Warn().Err(err).Str("episode", ep.ID).Msg("Failed to save episode")
			}
		}
		e.resolveResumeLocked(ep)
		log.Debug().Str("episode", ep.ID).Dur("resumeAt", e.resumeAt).Msg("Switching to episode")
		if err := e.player.Load(ep.AudioURL, false); err != nil {
			e.handlePlayerErrorLocked(err)
			return
		}
		e.sampleToken = e.sched.ScheduleRepeating(ProgressSampleInterval, func() {
			e.sampleProgress(gen)
		})
	}

	e.notifyLocked()
}

// resolveResumeLocked applies the resume-vs-replay policy before playback
// starts. A played episode, or one whose persisted position crossed the
// played threshold, replays from zero with its persisted position reset;
// the played flag itself is never cleared by a replay.
func (e *Engine) resolveResumeLocked(ep *media.Episode) {
	rec, ok := e.progress.Get(ep.ID)
	if !ok {
		return
	}

	known := rec.Duration
	if known == 0 {
		known = ep.DurationHint
	}

	replay := rec.Played ||
		(known > 0 && float64(rec.Position) >= PlayedThreshold*float64(known))

	if replay {
		e.progress.Reset(ep.ID)
		log.Debug().Str("episode", ep.ID).Msg("Replay: starting from zero")
	} else {
		e.resumeAt = rec.Position
		e.lastPersisted = rec.Position
	}
	e.playedMarked = rec.Played
}

// Pause pauses playback. During buffering it cancels play-when-ready.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePlaying:
		e.player.Pause()
		e.state = StatePaused
		e.notifyLocked()
	case StateBuffering:
		e.playWhenReady = false
	}
}

// Resume resumes paused playback.
func (e *Engine) Resume() {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.state {
	case StatePaused:
		e.player.Play()
		e.state = StatePlaying
		e.notifyLocked()
	case StateBuffering:
		e.playWhenReady = true
	}
}

// Stop halts playback, cancels all timers and in-flight lookups scoped to
// the current source, and clears it.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopLocked(false)
}

func (e *Engine) stopLocked(fatal bool) {
	e.cancelSourceTasksLocked()
	e.generation++
	e.matchGen++

	e.player.Stop()
	e.source = nil
	e.state = StateStopped
	e.fatal = fatal
	e.show = metadata.ShowInfo{}
	e.match = nil
	e.matchKey = ""
	e.pendingShow = nil
	e.resumeAt = 0

	e.notifyLocked()
}

// SeekTo seeks to an absolute position. Live stations cannot seek.
func (e *Engine) SeekTo(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.source.IsEpisode() {
		return
	}
	if pos < 0 {
		pos = 0
	}
	if err := e.player.SeekTo(pos); err != nil {
		log.Warn().Err(err).Msg("Seek failed")
	}
	// The next sampling tick persists the new position per the normal cadence.
	e.notifyLocked()
}

// SeekBy seeks relative to the current position. Live stations cannot seek.
func (e *Engine) SeekBy(delta time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.seekByLocked(delta)
}

func (e *Engine) seekByLocked(delta time.Duration) {
	if !e.source.IsEpisode() {
		return
	}
	pos := e.player.Position() + delta
	if pos < 0 {
		pos = 0
	}
	if err := e.player.SeekTo(pos); err != nil {
		log.Warn().Err(err).Msg("Seek failed")
	}
	e.notifyLocked()
}

// Skip moves n steps through the station scroll scope for live stations,
// with wraparound. For episodes it is reinterpreted as a relative seek:
// back 10 s per step, forward 30 s per step.
func (e *Engine) Skip(n int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if n == 0 || e.source == nil {
		return
	}

	if e.source.IsEpisode() {
		if n > 0 {
			e.seekByLocked(time.Duration(n) * SeekForwardStep)
		} else {
			e.seekByLocked(time.Duration(n) * SeekBackStep)
		}
		return
	}

	if e.directory == nil {
		return
	}
	scope := e.directory.Stations()
	if e.prefs != nil && e.prefs.FavoritesOnly() {
		scope = e.directory.Favorites()
	}
	if len(scope) == 0 {
		return
	}

	idx := 0
	for i := range scope {
		if scope[i].ID == e.source.Station.ID {
			idx = i
			break
		}
	}
	next := ((idx+n)%len(scope) + len(scope)) % len(scope)
	e.playSourceLocked(media.StationSource(&scope[next]), playOpts{updateLastPlayed: true})
}

// ToggleFavoriteOrSubscription toggles the affordance appropriate for the
// current source: subscription for episodes and matched live shows,
// favorite for plain live stations.
func (e *Engine) ToggleFavoriteOrSubscription() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.prefs == nil {
		return
	}

	switch {
	case e.source.IsEpisode():
		on := e.prefs.ToggleSubscription(e.source.Episode.PodcastID)
		log.Debug().Str("podcast", e.source.Episode.PodcastID).Bool("subscribed", on).Msg("Toggled subscription")
	case e.source.IsLive() && e.match != nil:
		on := e.prefs.ToggleSubscription(e.match.ID)
		log.Debug().Str("podcast", e.match.ID).Bool("subscribed", on).Msg("Toggled subscription")
	case e.source.IsLive():
		on := e.prefs.ToggleFavorite(e.source.Station.ID)
		log.Debug().Str("station", e.source.Station.ID).Bool("favorite", on).Msg("Toggled favorite")
	default:
		return
	}

	e.notifyLocked()
}

// handlePlayerEvent reacts to stream player state changes. The player
// delivers these from its own goroutines.
func (e *Engine) handlePlayerEvent(ev Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.source == nil {
		return
	}

	switch ev.Kind {
	case EventBuffering:
		if e.state.IsActive() && e.state != StateBuffering {
			e.state = StateBuffering
			e.notifyLocked()
		}

	case EventReady:
		e.consecutiveErrors = 0
		if e.resumeAt > 0 {
			if err := e.player.SeekTo(e.resumeAt); err != nil {
				log.Warn().Err(err).Msg("Resume seek failed")
			}
			e.resumeAt = 0
		}
		if e.playWhenReady {
			e.player.Play()
			e.state = StatePlaying
		} else {
			e.state = StatePaused
		}
		e.notifyLocked()

	case EventEnded:
		if e.source.IsEpisode() {
			e.handleEndedLocked()
		}

	case EventError:
		e.handlePlayerErrorLocked(ev.Err)
	}
}

// handlePlayerErrorLocked schedules exactly one automatic replay after a
// fixed backoff. A second consecutive error for the same source is fatal.
func (e *Engine) handlePlayerErrorLocked(err error) {
	e.consecutiveErrors++
	if e.consecutiveErrors >= 2 {
		log.Error().Err(err).Msg("Playback failed after reconnect, giving up")
		e.stopLocked(true)
		return
	}

	src := e.source
	gen := e.generation
	log.Warn().Err(err).Dur("backoff", ReconnectBackoff).Msg("Stream error, scheduling reconnect")

	e.sched.ScheduleOnce(ReconnectBackoff, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if gen != e.generation || e.source != src {
			return
		}
		e.playSourceLocked(src, playOpts{keepErrors: true})
	})
}

// cancelSourceTasksLocked cancels the timers scoped to the current source.
// In-flight lookups are not interrupted; their results are discarded by
// the generation gate on arrival.
func (e *Engine) cancelSourceTasksLocked() {
	for _, tok := range []*Token{&e.pollToken, &e.pendingToken, &e.sampleToken} {
		if *tok != 0 {
			e.sched.Cancel(*tok)
			*tok = 0
		}
	}
}
