package engine

import (
	"time"

	"github.com/airwaves-cli/airwaves/internal/media"
)

// EventKind identifies a stream player state-change event.
type EventKind int

const (
	EventBuffering EventKind = iota
	EventReady
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventBuffering:
		return "buffering"
	case EventReady:
		return "ready"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a state-change notification from the stream player.
type Event struct {
	Kind EventKind
	Err  error
}

// StreamPlayer is the audio decode/output pipeline. It is exclusively owned
// by the engine: only the engine issues control calls. Implementations must
// deliver events asynchronously, never from within a control call.
type StreamPlayer interface {
	// Load starts loading the given URI. live distinguishes continuous
	// broadcast streams (no seeking, unknown duration) from finite items.
	Load(uri string, live bool) error
	Play()
	Pause()
	Stop()
	SeekTo(pos time.Duration) error
	Position() time.Duration
	// Duration returns the total duration and whether it is known.
	Duration() (time.Duration, bool)
	SetEventHandler(h func(Event))
}

// NowPlayingSurface renders the engine's state to an external display
// (system notification, remote-control session, terminal panel). Update is
// called synchronously from the engine; implementations must not call back
// into the engine.
type NowPlayingSurface interface {
	Update(Snapshot)
}

// StationDirectory provides the station lists used for skip(±1) scrolling
// and id resolution.
type StationDirectory interface {
	Stations() []media.Station
	Favorites() []media.Station
	StationByID(id string) (media.Station, bool)
}

// SavedEpisodes is the saved-episodes store. The engine records every
// episode it starts playing so the id can be resolved again on controller
// reconnect after a restart, when the live catalog may no longer list it.
type SavedEpisodes interface {
	Get(episodeID string) (media.Episode, bool)
	Save(ep media.Episode) error
}

// SearchIndex is the local search index, the last-resort episode id
// resolver on controller reconnect.
type SearchIndex interface {
	EpisodeByID(episodeID string) (media.Episode, bool)
}

// Prefs exposes the user-level preferences the engine consults. Mutating
// calls persist immediately and are idempotent.
type Prefs interface {
	AutoResume() bool
	FavoritesOnly() bool
	Quality() string
	LastPlayed() string
	SetLastPlayed(mediaID string)
	// ToggleFavorite flips a station's favorite flag and reports the new state.
	ToggleFavorite(stationID string) bool
	// ToggleSubscription flips a podcast subscription and reports the new state.
	ToggleSubscription(podcastID string) bool
}
