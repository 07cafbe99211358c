package engine

import (
	"context"

	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/rs/zerolog/log"
)

// OnControllerReconnect handles a remote controller's reconnect. Two
// independent checks run: auto-resume when nothing is playing, live
// refresh when a station is. At most one of them fires per reconnect, and
// an already-seen client is rate limited by the reconnect cooldown.
func (e *Engine) OnControllerReconnect(clientID string) {
	e.mu.Lock()

	_, seen := e.knownClients[clientID]
	e.knownClients[clientID] = struct{}{}
	isNew := !seen
	now := e.now()

	if !e.state.IsActive() {
		// Auto-resume path.
		if e.prefs == nil || !e.prefs.AutoResume() {
			e.mu.Unlock()
			return
		}
		last := e.prefs.LastPlayed()
		if last == "" {
			e.mu.Unlock()
			return
		}
		if !isNew && now.Sub(e.lastAutoResume) < ReconnectCooldown {
			e.mu.Unlock()
			return
		}
		e.lastAutoResume = now
		gen := e.generation
		e.mu.Unlock()

		log.Debug().Str("client", clientID).Str("media", last).Msg("Controller reconnect: auto-resuming")
		e.runAsync(func() {
			e.resolveAndResume(gen, last)
		})
		return
	}

	// Live refresh path: recover stream continuity the remote endpoint may
	// have missed, without touching persisted last-played state.
	if !e.source.IsLive() {
		e.mu.Unlock()
		return
	}
	if !isNew && now.Sub(e.lastRefresh) < ReconnectCooldown {
		e.mu.Unlock()
		return
	}
	e.lastRefresh = now
	src := e.source

	log.Debug().Str("client", clientID).Str("station", src.Station.ID).Msg("Controller reconnect: refreshing live stream")
	e.playSourceLocked(src, playOpts{updateLastPlayed: false})
	e.mu.Unlock()
}

// resolveAndResume resolves a last-played media id and replays it through
// the normal play path. Stations resolve via the directory; episode ids
// are tried against the live catalog, the saved-episodes store, then the
// local search index. Lookup timeouts count as not found.
func (e *Engine) resolveAndResume(gen uint64, mediaID string) {
	if e.directory != nil {
		if st, ok := e.directory.StationByID(mediaID); ok {
			e.mu.Lock()
			defer e.mu.Unlock()
			if gen != e.generation || e.state.IsActive() {
				return
			}
			e.playSourceLocked(media.StationSource(&st), playOpts{updateLastPlayed: true})
			return
		}
	}

	ep, ok := e.resolveEpisode(mediaID)
	if !ok {
		log.Warn().Str("media", mediaID).Msg("Could not resolve last played media, skipping auto-resume")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if gen != e.generation || e.state.IsActive() {
		return
	}
	e.playSourceLocked(media.EpisodeSource(&ep), playOpts{updateLastPlayed: true})
}

func (e *Engine) resolveEpisode(episodeID string) (media.Episode, bool) {
	if e.catalog != nil {
		if ep, ok := e.resolveFromCatalog(episodeID); ok {
			return ep, true
		}
	}
	if e.saved != nil {
		if ep, ok := e.saved.Get(episodeID); ok {
			return ep, true
		}
	}
	if e.search != nil {
		if ep, ok := e.search.EpisodeByID(episodeID); ok {
			return ep, true
		}
	}
	return media.Episode{}, false
}

// resolveFromCatalog walks the live catalog under a bounded timeout; a
// slow network must not block reconnect handling indefinitely.
func (e *Engine) resolveFromCatalog(episodeID string) (media.Episode, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), ResolveTimeout)
	defer cancel()

	items, err := e.catalog.FetchCatalog(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Catalog fetch during reconnect resolution failed")
		return media.Episode{}, false
	}

	for _, item := range items {
		episodes, err := e.catalog.FetchEpisodes(ctx, item.ID)
		if err != nil {
			if ctx.Err() != nil {
				return media.Episode{}, false
			}
			continue
		}
		for i := range episodes {
			if episodes[i].ID == episodeID {
				return episodes[i], true
			}
		}
	}

	return media.Episode{}, false
}
