// Package surface provides Now Playing Surface implementations: a tview
// terminal panel and a zerolog surface for headless operation.
package surface

import (
	"sync"

	"github.com/airwaves-cli/airwaves/internal/engine"
	"github.com/rs/zerolog/log"
)

// LogSurface writes now-playing changes to the log. It deduplicates
// consecutive identical lines so progress sampling does not flood output.
type LogSurface struct {
	mu       sync.Mutex
	lastLine string
}

// NewLogSurface creates a LogSurface.
func NewLogSurface() *LogSurface {
	return &LogSurface{}
}

// Update implements engine.NowPlayingSurface.
func (s *LogSurface) Update(snap engine.Snapshot) {
	line := snap.State.String() + " " + snap.DisplayTitle()

	s.mu.Lock()
	if line == s.lastLine {
		s.mu.Unlock()
		return
	}
	s.lastLine = line
	s.mu.Unlock()

	ev := log.Info().
		Stringer("state", snap.State).
		Str("title", snap.DisplayTitle())
	if snap.Station != nil {
		ev = ev.Str("station", snap.Station.ID)
	}
	if snap.Episode != nil {
		ev = ev.Str("episode", snap.Episode.ID).
			Dur("position", snap.Position).
			Dur("duration", snap.Duration)
	}
	if snap.Fatal {
		ev = ev.Bool("fatal", true)
	}
	ev.Msg("Now playing")
}
