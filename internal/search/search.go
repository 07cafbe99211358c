// Package search provides a local in-memory index over the on-demand
// catalog. It is the last-resort resolver for episode ids during
// controller reconnect, and backs title search in the UI.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/lithammer/fuzzysearch/fuzzy"
)

// Index holds episodes keyed by id with a title list for fuzzy lookup.
type Index struct {
	mu       sync.RWMutex
	episodes map[string]media.Episode
	titles   []string          // lowercase titles, for fuzzy ranking
	byTitle  map[string]string // lowercase title -> episode id
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		episodes: make(map[string]media.Episode),
		byTitle:  make(map[string]string),
	}
}

// Add indexes episodes, replacing entries with the same id.
func (ix *Index) Add(episodes ...media.Episode) {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	for _, ep := range episodes {
		if ep.ID == "" {
			continue
		}
		if _, exists := ix.episodes[ep.ID]; !exists {
			title := strings.ToLower(ep.Title)
			ix.titles = append(ix.titles, title)
			ix.byTitle[title] = ep.ID
		}
		ix.episodes[ep.ID] = ep
	}
}

// EpisodeByID returns the indexed episode with the given id.
func (ix *Index) EpisodeByID(episodeID string) (media.Episode, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ep, ok := ix.episodes[episodeID]
	return ep, ok
}

// SearchTitles returns up to limit episodes whose titles fuzzy-match the
// query, best matches first.
func (ix *Index) SearchTitles(query string, limit int) []media.Episode {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	ranks := fuzzy.RankFindFold(query, ix.titles)
	sort.Sort(ranks)

	results := make([]media.Episode, 0, limit)
	for _, r := range ranks {
		if len(results) >= limit {
			break
		}
		id, ok := ix.byTitle[r.Target]
		if !ok {
			continue
		}
		if ep, ok := ix.episodes[id]; ok {
			results = append(results, ep)
		}
	}
	return results
}

// Len returns the number of indexed episodes.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.episodes)
}
