package engine

import (
	"context"

	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/rs/zerolog/log"
)

// handleEndedLocked runs when the stream player reports the end of an
// on-demand episode. The engine transitions to Stopped and, when the
// episode belongs to a known catalog item, looks up the chronologically
// next-newer episode to autoplay.
func (e *Engine) handleEndedLocked() {
	ep := *e.source.Episode

	if !e.playedMarked {
		e.progress.MarkPlayed(ep.ID)
		e.playedMarked = true
	}

	e.cancelSourceTasksLocked()
	e.generation++
	e.matchGen++
	e.source = nil
	e.state = StateStopped
	e.show.ClearSong()
	e.notifyLocked()

	if ep.PodcastID == "" {
		log.Debug().Str("episode", ep.ID).Msg("Episode ended, no catalog item for autoplay")
		return
	}
	if ep.PublishedAt.IsZero() {
		log.Debug().Str("episode", ep.ID).Msg("Episode ended, publish date unknown, skipping autoplay")
		return
	}

	gen := e.generation
	e.runAsync(func() {
		e.autoplayNext(gen, ep)
	})
}

// autoplayNext fetches the episode list and picks the episode with the
// smallest publish timestamp strictly greater than the ended episode's.
// Episodes with unparseable dates are not candidates. The result is
// applied only if nothing else started playing in the meantime.
func (e *Engine) autoplayNext(gen uint64, ended media.Episode) {
	episodes, err := e.catalog.FetchEpisodes(context.Background(), ended.PodcastID)
	if err != nil {
		log.Warn().Err(err).Str("podcast", ended.PodcastID).Msg("Autoplay episode list fetch failed")
		return
	}

	var next *media.Episode
	for i := range episodes {
		cand := &episodes[i]
		if cand.PublishedAt.IsZero() || !cand.PublishedAt.After(ended.PublishedAt) {
			continue
		}
		if next == nil || cand.PublishedAt.Before(next.PublishedAt) {
			next = cand
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}
	if next == nil {
		log.Debug().Str("podcast", ended.PodcastID).Msg("No newer episode for autoplay")
		return
	}

	log.Debug().Str("episode", next.ID).Time("publishedAt", next.PublishedAt).Msg("Autoplaying next episode")
	e.playSourceLocked(media.EpisodeSource(next), playOpts{updateLastPlayed: true})
}
