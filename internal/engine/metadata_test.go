package engine

import (
	"errors"
	"testing"

	"github.com/airwaves-cli/airwaves/internal/metadata"
)

func show(programme, artist, track string) metadata.ShowInfo {
	return metadata.ShowInfo{ProgrammeTitle: programme, Artist: artist, Track: track}
}

func (r *testRig) currentShow() metadata.ShowInfo {
	return r.engine.Snapshot().Show
}

func TestFirstFetchAppliesImmediately(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "Artist A", "Track A"))

	rig.playStation(t, "alpha")

	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().ProgrammeTitle == "Morning Show"
	})
	if got := rig.sched.pending(MetadataApplyDelay); got != 0 {
		t.Errorf("pending delayed applies = %d, want 0 (first fetch is immediate)", got)
	}
}

func TestSubsequentFetchHeldForCompensationDelay(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "Artist A", "Track A"))
	rig.playStation(t, "alpha")
	rig.player.emitReady()
	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().ProgrammeTitle == "Morning Show"
	})

	rig.meta.set("alpha", show("Morning Show", "Artist B", "Track B"))
	rig.sched.fire(MetadataPollInterval)

	waitFor(t, "pending delayed apply", func() bool {
		return rig.sched.pending(MetadataApplyDelay) == 1
	})
	if got := rig.currentShow().Artist; got != "Artist A" {
		t.Fatalf("artist before delay = %q, want %q (apply must wait)", got, "Artist A")
	}

	rig.sched.fire(MetadataApplyDelay)
	if got := rig.currentShow().Artist; got != "Artist B" {
		t.Errorf("artist after delay = %q, want %q", got, "Artist B")
	}
}

func TestNewerFetchSwapsPendingPayloadWithoutTimerReset(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "Artist A", "Track A"))
	rig.playStation(t, "alpha")
	rig.player.emitReady()
	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().Artist == "Artist A"
	})

	rig.meta.set("alpha", show("Morning Show", "Artist B", "Track B"))
	rig.sched.fire(MetadataPollInterval)
	waitFor(t, "pending delayed apply", func() bool {
		return rig.sched.pending(MetadataApplyDelay) == 1
	})

	rig.meta.set("alpha", show("Morning Show", "Artist C", "Track C"))
	rig.sched.fire(MetadataPollInterval)
	waitFor(t, "swapped pending payload", func() bool {
		rig.engine.mu.Lock()
		defer rig.engine.mu.Unlock()
		return rig.engine.pendingShow != nil && rig.engine.pendingShow.Artist == "Artist C"
	})

	if got := rig.sched.pending(MetadataApplyDelay); got != 1 {
		t.Fatalf("pending delayed applies = %d, want 1 (timer must not reset)", got)
	}

	rig.sched.fire(MetadataApplyDelay)
	if got := rig.currentShow().Artist; got != "Artist C" {
		t.Errorf("applied artist = %q, want %q", got, "Artist C")
	}

	// B must never have been visible.
	for _, snap := range rig.surface.history() {
		if snap.Show.Artist == "Artist B" {
			t.Error("superseded payload B should never have been applied")
		}
	}
}

func TestFetchErrorKeepsPriorShow(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "Artist A", "Track A"))
	rig.playStation(t, "alpha")
	rig.player.emitReady()
	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().Artist == "Artist A"
	})

	rig.meta.fail("alpha", errors.New("service unavailable"))
	rig.sched.fire(MetadataPollInterval)

	// Give the failed fetch a chance to land, then confirm nothing changed.
	waitFor(t, "failed fetch processed", func() bool {
		rig.meta.mu.Lock()
		defer rig.meta.mu.Unlock()
		return rig.meta.calls >= 2
	})
	if got := rig.currentShow(); got.Artist != "Artist A" || got.ProgrammeTitle != "Morning Show" {
		t.Errorf("show after failed fetch = %+v, want prior state retained", got)
	}
}

func TestPlaceholderTitleDoesNotOverwriteKnownTitle(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "Artist A", "Track A"))
	rig.playStation(t, "alpha")
	rig.player.emitReady()
	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().ProgrammeTitle == "Morning Show"
	})

	rig.meta.set("alpha", show("-", "Artist B", "Track B"))
	rig.sched.fire(MetadataPollInterval)
	waitFor(t, "pending delayed apply", func() bool {
		return rig.sched.pending(MetadataApplyDelay) == 1
	})
	rig.sched.fire(MetadataApplyDelay)

	got := rig.currentShow()
	if got.ProgrammeTitle != "Morning Show" {
		t.Errorf("programme title = %q, want retained %q", got.ProgrammeTitle, "Morning Show")
	}
	if got.Artist != "Artist B" || got.Track != "Track B" {
		t.Errorf("song = %q/%q, want new pair applied", got.Artist, got.Track)
	}
}

func TestEmptyFetchClearsSongPair(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "Artist A", "Track A"))
	rig.playStation(t, "alpha")
	rig.player.emitReady()
	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().Artist == "Artist A"
	})

	rig.meta.set("alpha", show("Morning Show", "", ""))
	rig.sched.fire(MetadataPollInterval)
	waitFor(t, "pending delayed apply", func() bool {
		return rig.sched.pending(MetadataApplyDelay) == 1
	})
	rig.sched.fire(MetadataApplyDelay)

	got := rig.currentShow()
	if got.Artist != "" || got.Track != "" {
		t.Errorf("song = %q/%q, want cleared pair", got.Artist, got.Track)
	}
	if got.HasSong() {
		t.Error("HasSong() should be false after clearing")
	}
}

func TestStationSwitchDiscardsInFlightFetch(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Alpha Show", "", ""))
	rig.meta.set("beta", show("Beta Show", "", ""))

	rig.meta.block()
	rig.playStation(t, "alpha")
	rig.playStation(t, "beta")
	rig.meta.release()

	waitFor(t, "beta metadata apply", func() bool {
		return rig.currentShow().ProgrammeTitle == "Beta Show"
	})

	for _, snap := range rig.surface.history() {
		if snap.Show.ProgrammeTitle == "Alpha Show" {
			t.Error("stale fetch for the previous station should have been discarded")
		}
	}
}

func TestSameStationRefreshKeepsProgrammeClearsSong(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "Artist A", "Track A"))
	rig.playStation(t, "alpha")
	rig.player.emitReady()
	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().Artist == "Artist A"
	})

	// Same-station restart (e.g. reconnect refresh path). Block the new
	// fetch so the transitional display state is observable.
	rig.meta.block()
	rig.playStation(t, "alpha")

	got := rig.currentShow()
	if got.ProgrammeTitle != "Morning Show" {
		t.Errorf("programme title = %q, want retained across same-station refresh", got.ProgrammeTitle)
	}
	if got.Artist != "" || got.Track != "" {
		t.Errorf("song = %q/%q, want cleared on refresh", got.Artist, got.Track)
	}
}

func TestStationSwitchClearsWholeShow(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Alpha Show", "Artist A", "Track A"))
	rig.playStation(t, "alpha")
	waitFor(t, "alpha metadata apply", func() bool {
		return rig.currentShow().ProgrammeTitle == "Alpha Show"
	})

	rig.meta.block()
	rig.playStation(t, "beta")

	got := rig.currentShow()
	if got.ProgrammeTitle != "" || got.Artist != "" || got.Track != "" {
		t.Errorf("show after station switch = %+v, want fully cleared", got)
	}
}

func TestPollSkippedWhilePaused(t *testing.T) {
	rig := newTestRig(t)
	rig.meta.set("alpha", show("Morning Show", "", ""))
	rig.playStation(t, "alpha")
	rig.player.emitReady()
	waitFor(t, "first metadata apply", func() bool {
		return rig.currentShow().ProgrammeTitle == "Morning Show"
	})
	rig.meta.mu.Lock()
	calls := rig.meta.calls
	rig.meta.mu.Unlock()

	rig.engine.Pause()
	rig.sched.fire(MetadataPollInterval)

	rig.meta.mu.Lock()
	defer rig.meta.mu.Unlock()
	if rig.meta.calls != calls {
		t.Errorf("fetch calls = %d, want %d (paused poll must not fetch)", rig.meta.calls, calls)
	}
}
