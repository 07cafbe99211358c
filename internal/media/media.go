// Package media defines the playback sources the engine can own: live
// broadcast stations and on-demand podcast episodes.
package media

import "time"

// Stream represents a streaming endpoint for a live station.
type Stream struct {
	URL     string `json:"url"`
	Format  string `json:"format"`  // Audio format (e.g., "mp3", "aac")
	Quality string `json:"quality"` // Quality level (e.g., "highest", "high")
}

// Station represents a live broadcast station. Live stations are continuous
// and server-timed: no fixed duration, no seeking.
type Station struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Genre       string   `json:"genre"` // Pipe-separated genre list
	LogoURL     string   `json:"image"`
	Listeners   string   `json:"listeners"`
	Streams     []Stream `json:"streams"`
}

// StreamURL returns the URL of the stream matching the requested quality,
// preferring MP3. Falls back to the best available stream when no exact
// match exists.
func (s *Station) StreamURL(quality string) string {
	for _, st := range s.Streams {
		if st.Format == "mp3" && st.Quality == quality {
			return st.URL
		}
	}
	for _, st := range s.Streams {
		if st.Quality == quality {
			return st.URL
		}
	}
	return s.BestStreamURL()
}

// BestStreamURL returns the highest quality MP3 stream URL, falling back to
// the first available stream.
func (s *Station) BestStreamURL() string {
	for _, st := range s.Streams {
		if st.Format == "mp3" && st.Quality == "highest" {
			return st.URL
		}
	}
	for _, st := range s.Streams {
		if st.Format == "mp3" {
			return st.URL
		}
	}
	if len(s.Streams) > 0 {
		return s.Streams[0].URL
	}
	return ""
}

// Episode represents a finite, seekable on-demand audio item belonging to a
// podcast series.
type Episode struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Description  string        `json:"description"`
	AudioURL     string        `json:"audioUrl"`
	ArtworkURL   string        `json:"artworkUrl"`
	PodcastID    string        `json:"podcastId"`
	PublishedAt  time.Time     `json:"publishedAt"`
	DurationHint time.Duration `json:"-"`
}

// Source is the tagged union of the two playback source families. Exactly
// one of Station and Episode is non-nil; a nil Source means stopped.
type Source struct {
	Station *Station
	Episode *Episode
}

// StationSource wraps a station as a playback source.
func StationSource(s *Station) *Source {
	return &Source{Station: s}
}

// EpisodeSource wraps an episode as a playback source.
func EpisodeSource(e *Episode) *Source {
	return &Source{Episode: e}
}

// IsLive reports whether the source is a live station.
func (s *Source) IsLive() bool {
	return s != nil && s.Station != nil
}

// IsEpisode reports whether the source is an on-demand episode.
func (s *Source) IsEpisode() bool {
	return s != nil && s.Episode != nil
}

// ID returns the identifier of the underlying station or episode.
func (s *Source) ID() string {
	switch {
	case s == nil:
		return ""
	case s.Station != nil:
		return s.Station.ID
	case s.Episode != nil:
		return s.Episode.ID
	default:
		return ""
	}
}

// Title returns the display title of the underlying station or episode.
func (s *Source) Title() string {
	switch {
	case s == nil:
		return ""
	case s.Station != nil:
		return s.Station.Title
	case s.Episode != nil:
		return s.Episode.Title
	default:
		return ""
	}
}
