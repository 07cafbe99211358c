package progress

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// FileStore is a YAML-backed Store. All mutations rewrite the file
// atomically (temp file + rename); a failed write keeps the in-memory
// state, so the next mutation retries persistence.
type FileStore struct {
	mu      sync.Mutex
	path    string
	records map[string]Record
}

// NewFileStore loads (or initializes) the progress file at path.
func NewFileStore(path string) (*FileStore, error) {
	s := &FileStore{
		path:    path,
		records: make(map[string]Record),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read progress file: %w", err)
	}

	if err := yaml.Unmarshal(data, &s.records); err != nil {
		return nil, fmt.Errorf("failed to parse progress file: %w", err)
	}

	return s, nil
}

// Get returns the record for an episode, if any.
func (s *FileStore) Get(episodeID string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[episodeID]
	return rec, ok
}

// SetPosition stores the latest position sample. The played flag is left
// untouched: sampling never un-marks a played episode.
func (s *FileStore) SetPosition(episodeID string, position, duration time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[episodeID]
	rec.Position = position
	if duration > 0 {
		rec.Duration = duration
	}
	s.records[episodeID] = rec
	s.save()
}

// MarkPlayed sets the played flag for an episode.
func (s *FileStore) MarkPlayed(episodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[episodeID]
	if rec.Played {
		return
	}
	rec.Played = true
	s.records[episodeID] = rec
	s.save()
}

// Reset zeroes the persisted position for a replay. The played flag is
// preserved: replaying an episode does not "unwatch" it.
func (s *FileStore) Reset(episodeID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := s.records[episodeID]
	rec.Position = 0
	s.records[episodeID] = rec
	s.save()
}

// save writes the records atomically. Callers hold the mutex.
func (s *FileStore) save() {
	data, err := yaml.Marshal(s.records)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to marshal progress records")
		return
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Warn().Err(err).Msg("Failed to create progress directory")
		return
	}

	tmpFile, err := os.CreateTemp(dir, ".progress-*.tmp")
	if err != nil {
		log.Warn().Err(err).Msg("Failed to create temp progress file")
		return
	}
	tmpPath := tmpFile.Name()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		log.Warn().Err(err).Msg("Failed to write progress file")
		return
	}
	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		log.Warn().Err(err).Msg("Failed to close progress file")
		return
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		log.Warn().Err(err).Msg("Failed to rename progress file")
	}
}
