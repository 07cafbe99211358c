// Package cache provides disk-based caching of downloaded episode audio,
// keyed by source URL.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	// AudioExpiry is how long cached episode audio is kept (3 days).
	AudioExpiry = 3 * 24 * time.Hour
	// AudioSubdir is the subdirectory for cached episode audio.
	AudioSubdir = "audio"
	// AppName is used for the cache directory name.
	AppName = "airwaves"
)

// Cache manages disk-based caching of remote files.
type Cache struct {
	baseDir string
}

// NewCache creates a new Cache instance rooted at the user cache dir.
func NewCache() (*Cache, error) {
	cacheDir, err := GetCacheDir()
	if err != nil {
		return nil, err
	}

	return &Cache{baseDir: cacheDir}, nil
}

// GetCacheDir returns the platform-specific cache directory for the application.
func GetCacheDir() (string, error) {
	userCacheDir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user cache directory: %w", err)
	}

	return filepath.Join(userCacheDir, AppName), nil
}

func hashURL(url string) string {
	hash := md5.Sum([]byte(url))
	return hex.EncodeToString(hash[:])
}

func (c *Cache) audioPath(url string) string {
	return filepath.Join(c.baseDir, AudioSubdir, hashURL(url)+".mp3")
}

// AudioPath returns the path of a cached audio file for the URL, or ""
// if not cached or expired.
func (c *Cache) AudioPath(url string) string {
	return c.lookup(c.audioPath(url), AudioExpiry)
}

func (c *Cache) lookup(path string, expiry time.Duration) string {
	info, err := os.Stat(path)
	if err != nil {
		return ""
	}

	if time.Since(info.ModTime()) > expiry {
		if err := os.Remove(path); err != nil {
			log.Debug().Err(err).Str("file", path).Msg("Failed to remove expired cache file")
		}
		return ""
	}

	return path
}

// SaveAudio streams r into the audio cache, keyed by URL, and returns the
// resulting file path. A partial download is discarded.
func (c *Cache) SaveAudio(url string, r io.Reader) (string, error) {
	return c.saveFile(c.audioPath(url), r)
}

func (c *Cache) saveFile(path string, r io.Reader) (string, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(dir, ".download-*.tmp")
	if err != nil {
		return "", fmt.Errorf("failed to create temp cache file: %w", err)
	}
	tmpPath := tmpFile.Name()

	if _, err := io.Copy(tmpFile, r); err != nil {
		tmpFile.Close()
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to write cache file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to close cache file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("failed to rename cache file: %w", err)
	}

	return path, nil
}

// CleanExpired removes cache files older than their expiry duration.
func (c *Cache) CleanExpired() error {
	return c.cleanDir(filepath.Join(c.baseDir, AudioSubdir), AudioExpiry)
}

func (c *Cache) cleanDir(dir string, expiry time.Duration) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read cache directory: %w", err)
	}

	now := time.Now()
	var removed, failed int
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			log.Debug().Err(err).Str("file", entry.Name()).Msg("Failed to get file info")
			continue
		}

		if now.Sub(info.ModTime()) > expiry {
			filePath := filepath.Join(dir, entry.Name())
			if err := os.Remove(filePath); err != nil {
				log.Debug().Err(err).Str("file", filePath).Msg("Failed to remove expired cache file")
				failed++
			} else {
				removed++
			}
		}
	}

	if removed > 0 || failed > 0 {
		log.Debug().Int("removed", removed).Int("failed", failed).Str("dir", dir).Msg("Cache cleanup completed")
	}

	return nil
}
