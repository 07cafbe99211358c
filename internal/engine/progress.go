package engine

import "github.com/rs/zerolog/log"

// sampleProgress runs on the scheduler at the sampling cadence while an
// episode is loaded. It marks completion at the played threshold and
// persists the position when enough has advanced or the episode is near
// its end.
func (e *Engine) sampleProgress(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || !e.source.IsEpisode() {
		return
	}
	if e.state != StatePlaying {
		return
	}

	ep := e.source.Episode
	pos := e.player.Position()
	dur, known := e.player.Duration()
	if known && dur <= 0 {
		known = false
	}

	if known && !e.playedMarked && float64(pos) >= PlayedThreshold*float64(dur) {
		e.progress.MarkPlayed(ep.ID)
		e.playedMarked = true
		log.Debug().Str("episode", ep.ID).Msg("Episode marked played")
	}

	nearEnd := known && dur-pos <= NearEndWindow
	if pos-e.lastPersisted >= ProgressPersistAdvance || nearEnd {
		persistDur := dur
		if !known {
			persistDur = 0
		}
		e.progress.SetPosition(ep.ID, pos, persistDur)
		e.lastPersisted = pos
	}

	e.notifyLocked()
}
