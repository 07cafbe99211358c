// Package metadata provides the "now playing" metadata contract for live
// stations and its HTTP client implementation.
package metadata

import (
	"context"
	"strings"
	"time"

	"github.com/airwaves-cli/airwaves/internal/media"
)

// ShowInfo describes what is audibly "now playing" on a live station at a
// point in time. Artist and Track are song-level fields: they are always
// set and cleared together.
type ShowInfo struct {
	ProgrammeTitle  string
	EpisodeTitle    string
	Artist          string
	Track           string
	ArtworkURL      string
	SegmentStart    time.Time
	SegmentDuration time.Duration
}

// Source is the asynchronous contract for fetching now-playing metadata.
// Implementations may fail transiently; callers keep prior state on error.
type Source interface {
	FetchShowInfo(ctx context.Context, stationID string) (ShowInfo, error)
}

// StationSource additionally lists the station directory.
type StationSource interface {
	Source
	FetchStations(ctx context.Context) ([]media.Station, error)
}

// HasSong reports whether song-level metadata is present. Both fields must
// be set; a lone artist or track is treated as absent.
func (s ShowInfo) HasSong() bool {
	return s.Artist != "" && s.Track != ""
}

// DisplayTitle returns "artist - track" when song-level data is present,
// otherwise the programme title.
func (s ShowInfo) DisplayTitle() string {
	if s.HasSong() {
		return s.Artist + " - " + s.Track
	}
	return s.ProgrammeTitle
}

// ClearSong removes song-level fields as a pair.
func (s *ShowInfo) ClearSong() {
	s.Artist = ""
	s.Track = ""
}

// placeholderTitles are programme titles the metadata service reports when
// it has nothing better. They never overwrite a known good title.
var placeholderTitles = map[string]struct{}{
	"":        {},
	"-":       {},
	"unknown": {},
	"n/a":     {},
}

// IsPlaceholderTitle reports whether the given programme title is a generic
// sentinel rather than real programme information.
func IsPlaceholderTitle(title string) bool {
	_, ok := placeholderTitles[strings.ToLower(strings.TrimSpace(title))]
	return ok
}
