// Package catalog provides the on-demand podcast catalog contract and its
// HTTP client implementation.
package catalog

import (
	"context"

	"github.com/airwaves-cli/airwaves/internal/media"
)

// Item is a single on-demand series in the catalog.
type Item struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	FeedURL    string `json:"feedUrl"`
	ArtworkURL string `json:"artworkUrl"`
}

// Source is the asynchronous contract for the on-demand catalog.
type Source interface {
	FetchCatalog(ctx context.Context) ([]Item, error)
	FetchEpisodes(ctx context.Context, itemID string) ([]media.Episode, error)
}
