package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

const requestTimeout = 30 * time.Second

// Client is the HTTP client for the on-demand catalog API.
type Client struct {
	client *resty.Client
}

// NewClient creates a catalog API client with sensible defaults.
func NewClient(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout),
	}
}

// FetchCatalog fetches the list of on-demand series.
func (c *Client) FetchCatalog(ctx context.Context) ([]Item, error) {
	resp, err := c.client.R().SetContext(ctx).Get("/catalog.json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch catalog: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response struct {
		Items []Item `json:"items"`
	}

	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse catalog response: %w", err)
	}

	return response.Items, nil
}

type episodeResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	AudioURL    string `json:"audioUrl"`
	ArtworkURL  string `json:"artworkUrl"`
	PublishedAt string `json:"publishedAt"`
	DurationSec int    `json:"durationSeconds"`
}

// FetchEpisodes fetches the episode list for a catalog item. Episodes with
// unparseable publish dates are kept but carry a zero PublishedAt; autoplay
// candidacy filters them out.
func (c *Client) FetchEpisodes(ctx context.Context, itemID string) ([]media.Episode, error) {
	resp, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("/catalog/%s/episodes.json", itemID))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch episodes for %s: %w", itemID, err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response struct {
		Episodes []episodeResponse `json:"episodes"`
	}

	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse episodes response: %w", err)
	}

	episodes := make([]media.Episode, 0, len(response.Episodes))
	for _, ep := range response.Episodes {
		publishedAt, err := ParsePublishedAt(ep.PublishedAt)
		if err != nil {
			log.Debug().Str("episode", ep.ID).Str("date", ep.PublishedAt).Msg("Unparseable publish date")
		}
		episodes = append(episodes, media.Episode{
			ID:           ep.ID,
			Title:        ep.Title,
			Description:  ep.Description,
			AudioURL:     ep.AudioURL,
			ArtworkURL:   ep.ArtworkURL,
			PodcastID:    itemID,
			PublishedAt:  publishedAt,
			DurationHint: time.Duration(ep.DurationSec) * time.Second,
		})
	}

	return episodes, nil
}
