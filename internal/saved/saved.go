// Package saved persists the user's saved episodes so they remain
// resolvable when the live catalog no longer lists them.
package saved

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/airwaves-cli/airwaves/internal/media"
	"gopkg.in/yaml.v3"
)

// Store is a YAML-backed saved-episodes store.
type Store struct {
	mu       sync.Mutex
	path     string
	episodes map[string]media.Episode
}

// NewStore loads (or initializes) the saved-episodes file at path.
func NewStore(path string) (*Store, error) {
	s := &Store{
		path:     path,
		episodes: make(map[string]media.Episode),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read saved episodes file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.episodes); err != nil {
		return nil, fmt.Errorf("failed to parse saved episodes file: %w", err)
	}

	return s, nil
}

// Get returns a saved episode by id.
func (s *Store) Get(episodeID string) (media.Episode, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ep, ok := s.episodes[episodeID]
	return ep, ok
}

// Save stores an episode. Saving the same episode twice is a no-op update.
func (s *Store) Save(ep media.Episode) error {
	if ep.ID == "" {
		return fmt.Errorf("episode has no id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.episodes[ep.ID] = ep
	return s.persistLocked()
}

// Remove deletes a saved episode. Removing an unknown id is a no-op.
func (s *Store) Remove(episodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.episodes[episodeID]; !ok {
		return nil
	}
	delete(s.episodes, episodeID)
	return s.persistLocked()
}

// All returns all saved episodes.
func (s *Store) All() []media.Episode {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := make([]media.Episode, 0, len(s.episodes))
	for _, ep := range s.episodes {
		result = append(result, ep)
	}
	return result
}

func (s *Store) persistLocked() error {
	data, err := yaml.Marshal(s.episodes)
	if err != nil {
		return fmt.Errorf("failed to marshal saved episodes: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".saved-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write saved episodes: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close saved episodes file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename saved episodes file: %w", err)
	}

	return nil
}
