package engine

import (
	"context"

	"github.com/airwaves-cli/airwaves/internal/metadata"
	"github.com/rs/zerolog/log"
)

// startMetadataLocked kicks off the now-playing pipeline for a live
// station: one immediate fetch, then a fixed-interval poll. Every lookup
// carries the generation and station id captured here.
func (e *Engine) startMetadataLocked(gen uint64, stationID string) {
	e.runAsync(func() {
		e.fetchShowInfo(gen, stationID)
	})
	e.pollToken = e.sched.ScheduleRepeating(MetadataPollInterval, func() {
		e.pollTick(gen, stationID)
	})
}

// pollTick runs on the scheduler; it skips the fetch when the station is no
// longer current or playback is paused.
func (e *Engine) pollTick(gen uint64, stationID string) {
	e.mu.Lock()
	if gen != e.generation || !e.source.IsLive() || e.source.Station.ID != stationID {
		e.mu.Unlock()
		return
	}
	if e.state != StatePlaying && e.state != StateBuffering {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.fetchShowInfo(gen, stationID)
}

func (e *Engine) fetchShowInfo(gen uint64, stationID string) {
	info, err := e.metadata.FetchShowInfo(context.Background(), stationID)
	e.applyFetchedShow(gen, stationID, info, err)
}

// applyFetchedShow is the re-entry point for fetched metadata. Stale
// generations and mismatched stations are discarded silently; transient
// failures keep the prior ShowInfo untouched.
//
// The first successful fetch after a source switch is applied immediately,
// so the display is never blank right after switching. Subsequent fetches
// are held in a pending slot and applied after the compensation delay: a
// newer fetch replaces the pending payload without resetting the timer.
func (e *Engine) applyFetchedShow(gen uint64, stationID string, info metadata.ShowInfo, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation || !e.source.IsLive() || e.source.Station.ID != stationID {
		return
	}

	if err != nil {
		log.Warn().Err(err).Str("station", stationID).Msg("Metadata fetch failed, keeping prior state")
		return
	}

	if !e.firstFetchApplied {
		e.firstFetchApplied = true
		// An immediate apply invalidates any pending delayed apply outright.
		if e.pendingToken != 0 {
			e.sched.Cancel(e.pendingToken)
			e.pendingToken = 0
		}
		e.pendingShow = nil
		e.applyShowLocked(info)
		return
	}

	e.pendingShow = &info
	if e.pendingToken == 0 {
		e.pendingToken = e.sched.ScheduleOnce(MetadataApplyDelay, func() {
			e.applyPendingShow(gen)
		})
	}
}

// applyPendingShow fires when the compensation delay elapses and applies
// whatever payload currently occupies the pending slot.
func (e *Engine) applyPendingShow(gen uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.generation {
		return
	}
	e.pendingToken = 0
	if e.pendingShow == nil {
		return
	}
	info := *e.pendingShow
	e.pendingShow = nil
	e.applyShowLocked(info)
}

// applyShowLocked installs fetched ShowInfo as current. A placeholder
// programme title never overwrites a known good one; song-level fields are
// taken from the fetch alone, so an empty fetch clears them as a pair.
func (e *Engine) applyShowLocked(info metadata.ShowInfo) {
	if metadata.IsPlaceholderTitle(info.ProgrammeTitle) && !metadata.IsPlaceholderTitle(e.show.ProgrammeTitle) {
		info.ProgrammeTitle = e.show.ProgrammeTitle
	}

	e.show = info
	log.Debug().Str("title", info.DisplayTitle()).Msg("Now playing updated")
	e.notifyLocked()
	e.recomputeMatchLocked()
}
