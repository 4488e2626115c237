package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	AudioFeat AudioFeatConfig `yaml:"audio_features"`
	Tabs      TabsConfig      `yaml:"tabs"`
	Search    SearchConfig    `yaml:"search"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file_path"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb"`
	FileMaxFiles   int    `yaml:"file_max_files"`
	FileMaxAgeDays int    `yaml:"file_max_age_days"`
}

// CatalogConfig holds settings for the external song catalog.
type CatalogConfig struct {
	BaseURL string `yaml:"base_url"`
}

// AudioFeatConfig holds settings for the audio-features API used for tempo.
// ClientID and ClientSecret are client-credentials OAuth credentials; when
// either is empty the tempo resolver skips the API and uses the static
// fallback table only.
type AudioFeatConfig struct {
	BaseURL      string `yaml:"base_url"`
	TokenURL     string `yaml:"token_url"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
}

// TabsConfig holds settings for the tab/tuning database.
type TabsConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SearchConfig holds discovery pipeline tunables.
type SearchConfig struct {
	// MaxResults caps the number of songs a search returns (existing + new).
	MaxResults int `yaml:"max_results"`
	// AmbiguityWindow is the score distance from the best candidate within
	// which a bulk match item is classified as ambiguous.
	AmbiguityWindow int `yaml:"ambiguity_window"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: "/data/greenroom.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Catalog: CatalogConfig{
			BaseURL: "https://itunes.apple.com",
		},
		AudioFeat: AudioFeatConfig{
			BaseURL:  "https://api.spotify.com/v1",
			TokenURL: "https://accounts.spotify.com/api/token",
		},
		Tabs: TabsConfig{
			BaseURL: "https://www.songsterr.com",
		},
		Search: SearchConfig{
			MaxResults:      10,
			AmbiguityWindow: 25,
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("GR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("GR_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("GR_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("GR_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("GR_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("GR_CATALOG_URL"); v != "" {
		c.Catalog.BaseURL = v
	}
	if v := os.Getenv("GR_SPOTIFY_CLIENT_ID"); v != "" {
		c.AudioFeat.ClientID = v
	}
	if v := os.Getenv("GR_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.AudioFeat.ClientSecret = v
	}
	if v := os.Getenv("GR_TABS_URL"); v != "" {
		c.Tabs.BaseURL = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Search.MaxResults < 1 {
		return fmt.Errorf("search.max_results must be positive")
	}
	if c.Search.AmbiguityWindow < 0 {
		return fmt.Errorf("search.ambiguity_window must not be negative")
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}
