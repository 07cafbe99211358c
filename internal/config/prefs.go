package config

import (
	"sync"

	"github.com/rs/zerolog/log"
)

// Prefs wraps a Config with synchronized access and write-through
// persistence, exposing the preference operations the playback engine
// consults.
type Prefs struct {
	mu  sync.Mutex
	cfg *Config
}

// NewPrefs wraps the given config.
func NewPrefs(cfg *Config) *Prefs {
	return &Prefs{cfg: cfg}
}

func (p *Prefs) AutoResume() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.AutoResume
}

func (p *Prefs) FavoritesOnly() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.FavoritesOnly
}

func (p *Prefs) Quality() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.Quality
}

func (p *Prefs) LastPlayed() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.LastPlayed
}

func (p *Prefs) SetLastPlayed(mediaID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cfg.LastPlayed == mediaID {
		return
	}
	p.cfg.SetLastPlayed(mediaID)
	p.saveLocked()
}

// ToggleFavorite flips a station's favorite flag, persists, and reports
// the new state.
func (p *Prefs) ToggleFavorite(stationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg.ToggleFavorite(stationID)
	p.saveLocked()
	return p.cfg.IsFavorite(stationID)
}

// ToggleSubscription flips a podcast subscription, persists, and reports
// the new state.
func (p *Prefs) ToggleSubscription(podcastID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.cfg.ToggleSubscription(podcastID)
	p.saveLocked()
	return p.cfg.IsSubscribed(podcastID)
}

// IsFavorite reports whether a station is marked favorite.
func (p *Prefs) IsFavorite(stationID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cfg.IsFavorite(stationID)
}

func (p *Prefs) saveLocked() {
	if err := p.cfg.Save(); err != nil {
		log.Warn().Err(err).Msg("Failed to save config")
	}
}
