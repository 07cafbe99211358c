package surface

import (
	"fmt"
	"runtime"
	"time"

	"github.com/airwaves-cli/airwaves/internal/engine"
)

// PauseIcon uses a platform-specific character (Windows renders ⏸ as emoji).
var PauseIcon = func() string {
	if runtime.GOOS == "windows" {
		return "❚❚"
	}
	return "⏸"
}()

// StatusRenderer renders the footer status line from engine snapshots.
type StatusRenderer struct {
	animFrame     int
	tickCount     int
	ticksPerFrame int
	primaryColor  string
}

func NewStatusRenderer() *StatusRenderer {
	return &StatusRenderer{
		ticksPerFrame: 8, // Slow down animation (8 ticks per frame)
	}
}

func (s *StatusRenderer) SetPrimaryColor(color string) {
	s.primaryColor = color
}

func (s *StatusRenderer) AdvanceAnimation() {
	s.tickCount++
	if s.tickCount >= s.ticksPerFrame {
		s.tickCount = 0
		s.animFrame = (s.animFrame + 1) % 4
	}
}

func (s *StatusRenderer) Render(snap engine.Snapshot) string {
	switch snap.State {
	case engine.StateBuffering:
		circles := []string{"◐", "◓", "◑", "◒"}
		return fmt.Sprintf("%s BUFFERING", circles[s.animFrame])
	case engine.StatePlaying:
		return s.renderPlaying(snap)
	case engine.StatePaused:
		return s.renderPaused(snap)
	default:
		if snap.Fatal {
			return "✗ PLAYBACK FAILED"
		}
		return "○ IDLE │ Select a station or episode"
	}
}

func (s *StatusRenderer) renderPlaying(snap engine.Snapshot) string {
	dots := []string{"●", "◉", "○", "◉"}
	dot := dots[s.animFrame]

	if s.primaryColor != "" {
		dot = fmt.Sprintf("[%s]%s[-]", s.primaryColor, dot)
	}

	if snap.Episode != nil {
		return fmt.Sprintf("%s %s │ %s", dot, positionLabel(snap), progressBar(snap, 20))
	}
	return dot + " LIVE"
}

func (s *StatusRenderer) renderPaused(snap engine.Snapshot) string {
	if snap.Episode != nil {
		return fmt.Sprintf("%s PAUSED │ %s", PauseIcon, positionLabel(snap))
	}
	return PauseIcon + " PAUSED"
}

func positionLabel(snap engine.Snapshot) string {
	if snap.Duration > 0 {
		return fmt.Sprintf("%s / %s", formatDuration(snap.Position), formatDuration(snap.Duration))
	}
	return formatDuration(snap.Position)
}

func progressBar(snap engine.Snapshot, width int) string {
	if snap.Duration <= 0 || width <= 0 {
		return ""
	}

	filled := int(float64(width) * float64(snap.Position) / float64(snap.Duration))
	if filled > width {
		filled = width
	}

	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d.Seconds())
	h := total / 3600
	m := (total % 3600) / 60
	sec := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}
