// Package directory manages the live-station list: fetching, caching,
// periodic background refresh, and the favorites scroll scope.
package directory

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/airwaves-cli/airwaves/internal/media"
	"github.com/airwaves-cli/airwaves/internal/metadata"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

// FavoriteChecker reports whether a station is marked favorite.
type FavoriteChecker interface {
	IsFavorite(stationID string) bool
}

// Directory caches the station list and serves the engine's scroll scopes.
type Directory struct {
	source    metadata.StationSource
	favorites FavoriteChecker

	mu            sync.RWMutex
	stations      []media.Station
	refreshTicker *time.Ticker
	stopRefresh   chan struct{}
	onRefresh     func([]media.Station)
}

// New creates a Directory backed by the given station source.
func New(source metadata.StationSource, favorites FavoriteChecker) *Directory {
	return &Directory{
		source:    source,
		favorites: favorites,
	}
}

// Refresh fetches the station list and replaces the cached copy.
func (d *Directory) Refresh(ctx context.Context) ([]media.Station, error) {
	stations, err := d.source.FetchStations(ctx)
	if err != nil {
		return nil, err
	}

	sortByListeners(stations)

	d.mu.Lock()
	d.stations = stations
	d.mu.Unlock()

	return stations, nil
}

// Stations returns a copy of the cached station list.
func (d *Directory) Stations() []media.Station {
	d.mu.RLock()
	defer d.mu.RUnlock()
	result := make([]media.Station, len(d.stations))
	copy(result, d.stations)
	return result
}

// Favorites returns the cached stations marked favorite, in list order.
func (d *Directory) Favorites() []media.Station {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.favorites == nil {
		return nil
	}
	return lo.Filter(d.stations, func(st media.Station, _ int) bool {
		return d.favorites.IsFavorite(st.ID)
	})
}

// StationByID returns a copy of the station with the given id.
func (d *Directory) StationByID(id string) (media.Station, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for i := range d.stations {
		if d.stations[i].ID == id {
			return d.stations[i], true
		}
	}
	return media.Station{}, false
}

// ValidIDs returns the set of known station ids, for favorites cleanup.
func (d *Directory) ValidIDs() map[string]bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	validIDs := make(map[string]bool, len(d.stations))
	for _, st := range d.stations {
		validIDs[st.ID] = true
	}
	return validIDs
}

// Count returns the number of cached stations.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.stations)
}

func sortByListeners(stations []media.Station) {
	sort.SliceStable(stations, func(i, j int) bool {
		listenersI, errI := strconv.Atoi(stations[i].Listeners)
		listenersJ, errJ := strconv.Atoi(stations[j].Listeners)

		if errI != nil {
			return false
		}
		if errJ != nil {
			return true
		}

		return listenersI > listenersJ
	})
}

// StartPeriodicRefresh refreshes the station list in the background at the
// given interval. The callback receives each refreshed list.
func (d *Directory) StartPeriodicRefresh(interval time.Duration, callback func([]media.Station)) {
	d.StopPeriodicRefresh()

	d.mu.Lock()
	d.onRefresh = callback
	d.stopRefresh = make(chan struct{})
	d.refreshTicker = time.NewTicker(interval)
	ticker := d.refreshTicker
	stopCh := d.stopRefresh
	d.mu.Unlock()

	go func() {
		for {
			select {
			case <-ticker.C:
				d.refreshInBackground()
			case <-stopCh:
				ticker.Stop()
				return
			}
		}
	}()

	log.Debug().Dur("interval", interval).Msg("Started periodic station refresh")
}

// StopPeriodicRefresh stops the background refresh loop.
func (d *Directory) StopPeriodicRefresh() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopRefresh != nil {
		close(d.stopRefresh)
		d.stopRefresh = nil
	}
}

func (d *Directory) refreshInBackground() {
	newStations, err := d.source.FetchStations(context.Background())
	if err != nil {
		log.Warn().Err(err).Msg("Background station refresh failed, keeping cached data")
		return
	}

	sortByListeners(newStations)

	d.mu.Lock()
	d.stations = newStations
	callback := d.onRefresh
	d.mu.Unlock()

	if callback != nil {
		callback(newStations)
	}

	log.Debug().Int("count", len(newStations)).Msg("Station data refreshed in background")
}
