package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	AppName        = "Airwaves"
	AppTagline     = "Terminal radio and podcast player"
	AppDescription = "A terminal player for live radio stations and on-demand episodes"

	ConfigDir      = ".config/airwaves"
	ConfigFileName = "config.yml"
	ProgressFile   = "progress.yml"
	SavedFile      = "saved.yml"
	DefaultVolume  = 70
	MinVolume      = 0
	MaxVolume      = 100
	DefaultQuality = "highest"
)

// ClampVolume ensures volume is within the valid range [0, 100].
func ClampVolume(volume int) int {
	if volume < MinVolume {
		return MinVolume
	}
	if volume > MaxVolume {
		return MaxVolume
	}
	return volume
}

// AppVersion can be overridden at build time using ldflags:
// go build -ldflags "-X github.com/airwaves-cli/airwaves/internal/config.AppVersion=1.0.0"
var AppVersion = "dev"

type Config struct {
	Volume        int      `yaml:"volume"`
	Quality       string   `yaml:"quality"`
	LastPlayed    string   `yaml:"last_played"`    // last played media id (station or episode)
	AutoResume    bool     `yaml:"auto_resume"`    // replay last media on controller reconnect
	FavoritesOnly bool     `yaml:"favorites_only"` // skip(±1) scroll scope
	MetadataURL   string   `yaml:"metadata_url"`
	CatalogURL    string   `yaml:"catalog_url"`
	Favorites     []string `yaml:"favorites"`
	Subscriptions []string `yaml:"subscriptions"`
}

func GetConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ConfigDir, ConfigFileName), nil
}

// GetProgressPath returns the path of the episode progress file.
func GetProgressPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ConfigDir, ProgressFile), nil
}

// GetSavedPath returns the path of the saved-episodes file.
func GetSavedPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}

	return filepath.Join(home, ConfigDir, SavedFile), nil
}

func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return DefaultConfig(), err
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return DefaultConfig(), nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.Volume = ClampVolume(cfg.Volume)
	if cfg.Quality == "" {
		cfg.Quality = DefaultQuality
	}

	return cfg, nil
}

// Save writes the configuration to disk atomically using temp file + rename.
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}

	configDir := filepath.Dir(configPath)
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmpFile, err := os.CreateTemp(configDir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	defer func() {
		if tmpPath != "" {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, configPath); err != nil {
		return fmt.Errorf("failed to rename config file: %w", err)
	}

	tmpPath = "" // Prevent defer from removing the final file
	return nil
}

func DefaultConfig() *Config {
	return &Config{
		Volume:        DefaultVolume,
		Quality:       DefaultQuality,
		LastPlayed:    "",
		AutoResume:    false,
		FavoritesOnly: false,
		MetadataURL:   "https://api.airwaves.example",
		CatalogURL:    "https://catalog.airwaves.example",
		Favorites:     []string{},
		Subscriptions: []string{},
	}
}

func (c *Config) IsFavorite(stationID string) bool {
	for _, id := range c.Favorites {
		if id == stationID {
			return true
		}
	}
	return false
}

func (c *Config) ToggleFavorite(stationID string) {
	for i, id := range c.Favorites {
		if id == stationID {
			c.Favorites = append(c.Favorites[:i], c.Favorites[i+1:]...)
			return
		}
	}
	c.Favorites = append(c.Favorites, stationID)
}

func (c *Config) IsSubscribed(podcastID string) bool {
	for _, id := range c.Subscriptions {
		if id == podcastID {
			return true
		}
	}
	return false
}

func (c *Config) ToggleSubscription(podcastID string) {
	for i, id := range c.Subscriptions {
		if id == podcastID {
			c.Subscriptions = append(c.Subscriptions[:i], c.Subscriptions[i+1:]...)
			return
		}
	}
	c.Subscriptions = append(c.Subscriptions, podcastID)
}

func (c *Config) CleanupFavorites(validStationIDs map[string]bool) {
	cleaned := []string{}
	for _, id := range c.Favorites {
		if validStationIDs[id] {
			cleaned = append(cleaned, id)
		}
	}
	c.Favorites = cleaned
}

// SetLastPlayed records the most recently played media id.
func (c *Config) SetLastPlayed(mediaID string) {
	c.LastPlayed = mediaID
}
