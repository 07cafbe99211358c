package engine

import (
	"context"
	"strings"

	"github.com/airwaves-cli/airwaves/internal/catalog"
	"github.com/rs/zerolog/log"
)

// recomputeMatchLocked recomputes the catalog matching key after a
// ShowInfo apply. An unchanged key skips the lookup entirely, so polls
// that return the same titles cause no redundant catalog queries.
func (e *Engine) recomputeMatchLocked() {
	if !e.source.IsLive() || e.catalog == nil {
		return
	}

	st := e.source.Station
	key := strings.ToLower(strings.Join([]string{
		st.ID, e.show.ProgrammeTitle, e.show.EpisodeTitle, st.Title,
	}, "\x1f"))
	if key == e.matchKey {
		return
	}
	e.matchKey = key

	e.matchGen++
	mg := e.matchGen
	gen := e.generation
	showTitle := e.show.ProgrammeTitle
	episodeTitle := e.show.EpisodeTitle
	stationID := st.ID
	stationTitle := st.Title

	e.runAsync(func() {
		e.lookupMatch(gen, mg, stationID, showTitle, episodeTitle, stationTitle)
	})
}

// lookupMatch queries the catalog and applies the result only if both the
// match generation and the owning station are still current.
func (e *Engine) lookupMatch(gen, mg uint64, stationID, showTitle, episodeTitle, stationTitle string) {
	items, err := e.catalog.FetchCatalog(context.Background())
	if err != nil {
		// Transient failure: keep the prior match state.
		log.Debug().Err(err).Msg("Catalog match lookup failed")
		return
	}

	found := matchCatalogItem(items, showTitle, episodeTitle, stationTitle)

	e.mu.Lock()
	defer e.mu.Unlock()

	if mg != e.matchGen || gen != e.generation {
		return
	}
	if !e.source.IsLive() || e.source.Station.ID != stationID {
		return
	}

	e.match = found
	if found != nil {
		log.Debug().Str("item", found.ID).Str("title", found.Title).Msg("Catalog match found")
	}
	e.notifyLocked()
}

// matchCatalogItem looks for an exact case-insensitive title match, in
// priority order: show title, episode title, station title.
func matchCatalogItem(items []catalog.Item, showTitle, episodeTitle, stationTitle string) *catalog.Item {
	for _, want := range []string{showTitle, episodeTitle, stationTitle} {
		if strings.TrimSpace(want) == "" {
			continue
		}
		for i := range items {
			if strings.EqualFold(items[i].Title, want) {
				return &items[i]
			}
		}
	}
	return nil
}
