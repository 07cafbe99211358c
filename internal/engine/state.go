package engine

import (
	"time"

	"github.com/airwaves-cli/airwaves/internal/catalog"
	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/airwaves-cli/airwaves/internal/metadata"
)

// State is the engine's playback state.
type State int

const (
	StateStopped State = iota
	StateBuffering
	StatePlaying
	StatePaused
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "STOPPED"
	case StateBuffering:
		return "BUFFERING"
	case StatePlaying:
		return "PLAYING"
	case StatePaused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// IsActive reports whether a source is loaded (playing, paused or buffering).
func (s State) IsActive() bool {
	return s != StateStopped
}

// Snapshot is the engine's externally visible state, pushed to the Now
// Playing Surface and to subscribed listeners on every meaningful change.
type Snapshot struct {
	State    State
	Fatal    bool // a fatal playback failure occurred; State is Stopped
	Station  *media.Station
	Episode  *media.Episode
	Show     metadata.ShowInfo
	Position time.Duration
	Duration time.Duration
	Match    *catalog.Item // matched catalog entry, drives the subscribe affordance
}

// DisplayTitle returns the primary line for the now-playing surface.
func (s Snapshot) DisplayTitle() string {
	switch {
	case s.Station != nil:
		if t := s.Show.DisplayTitle(); t != "" {
			return t
		}
		return s.Station.Title
	case s.Episode != nil:
		return s.Episode.Title
	default:
		return ""
	}
}

// CanSubscribe reports whether a subscribe affordance should be shown.
func (s Snapshot) CanSubscribe() bool {
	return s.Match != nil || s.Episode != nil
}
