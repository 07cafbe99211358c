package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/go-resty/resty/v2"
)

const requestTimeout = 30 * time.Second

// Client is the HTTP client for the station directory and now-playing API.
type Client struct {
	client *resty.Client
}

// NewClient creates a metadata API client with sensible defaults.
func NewClient(baseURL string) *Client {
	return &Client{
		client: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(requestTimeout),
	}
}

// FetchStations fetches the list of available live stations.
func (c *Client) FetchStations(ctx context.Context) ([]media.Station, error) {
	resp, err := c.client.R().SetContext(ctx).Get("/stations.json")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch stations: %w", err)
	}

	if !resp.IsSuccess() {
		return nil, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response struct {
		Stations []media.Station `json:"stations"`
	}

	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse stations response: %w", err)
	}

	return response.Stations, nil
}

type showInfoResponse struct {
	Programme    string `json:"programme"`
	EpisodeTitle string `json:"episodeTitle"`
	Artist       string `json:"artist"`
	Track        string `json:"track"`
	Artwork      string `json:"artwork"`
	SegmentStart string `json:"segmentStart"`
	SegmentSecs  int    `json:"segmentSeconds"`
}

// FetchShowInfo fetches the current show description for a station.
func (c *Client) FetchShowInfo(ctx context.Context, stationID string) (ShowInfo, error) {
	resp, err := c.client.R().SetContext(ctx).Get(fmt.Sprintf("/nowplaying/%s.json", stationID))
	if err != nil {
		return ShowInfo{}, fmt.Errorf("failed to fetch show info for station %s: %w", stationID, err)
	}

	if !resp.IsSuccess() {
		return ShowInfo{}, fmt.Errorf("api returned status %d: %s", resp.StatusCode(), resp.Status())
	}

	var response showInfoResponse
	if err := json.Unmarshal(resp.Body(), &response); err != nil {
		return ShowInfo{}, fmt.Errorf("failed to parse show info response: %w", err)
	}

	info := ShowInfo{
		ProgrammeTitle: response.Programme,
		EpisodeTitle:   response.EpisodeTitle,
		ArtworkURL:     response.Artwork,
	}

	// Song-level fields only come in as a pair
	if response.Artist != "" && response.Track != "" {
		info.Artist = response.Artist
		info.Track = response.Track
	}

	if response.SegmentStart != "" {
		if start, err := time.Parse(time.RFC3339, response.SegmentStart); err == nil {
			info.SegmentStart = start
			info.SegmentDuration = time.Duration(response.SegmentSecs) * time.Second
		}
	}

	return info, nil
}
