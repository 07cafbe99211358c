// Package progress persists per-episode playback position and played state.
package progress

import "time"

// Record is the persisted playback state for one episode.
type Record struct {
	Position time.Duration `yaml:"position"`
	Duration time.Duration `yaml:"duration"`
	Played   bool          `yaml:"played"`
}

// Store is an idempotent key-value store of episode progress. Writes for a
// given episode id need only best-effort recency; positions are
// monotonically increasing except on explicit replay reset.
type Store interface {
	Get(episodeID string) (Record, bool)
	SetPosition(episodeID string, position, duration time.Duration)
	MarkPlayed(episodeID string)
	Reset(episodeID string)
}
