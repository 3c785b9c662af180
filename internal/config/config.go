// Package config loads the server configuration from defaults, an optional
// YAML file, the environment and command-line flags, in that order.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables
const (
	EnvLastFMAPIKey = "LASTFM_API_KEY"
	EnvPort         = "CHARTFY_PORT"
	EnvCacheDB      = "CHARTFY_CACHE_DB"
	EnvDebug        = "CHARTFY_DEBUG"
)

// Config is the full server configuration.
type Config struct {
	Port      string        `yaml:"port"`
	Debug     bool          `yaml:"debug"`
	StaticDir string        `yaml:"static_dir"`
	LastFM    LastFMConfig  `yaml:"lastfm"`
	Spotify   SpotifyConfig `yaml:"spotify"`
	Cache     CacheConfig   `yaml:"cache"`
	Export    ExportConfig  `yaml:"export"`
}

// LastFMConfig configures the Last.fm provider.
type LastFMConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
	Period  string `yaml:"period"`
	Limit   int    `yaml:"limit"`
}

// SpotifyConfig configures the Spotify provider.
type SpotifyConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeRange string `yaml:"time_range"`
}

// CacheConfig configures the lookup cache. An empty DB disables it.
type CacheConfig struct {
	DB  string        `yaml:"db"`
	TTL time.Duration `yaml:"ttl"`
}

// ExportConfig configures server-side collage export.
type ExportConfig struct {
	Format   string `yaml:"format"`
	Scale    int    `yaml:"scale"`
	CellSize int    `yaml:"cell_size"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Port: "3001",
		LastFM: LastFMConfig{
			BaseURL: "https://ws.audioscrobbler.com/2.0/",
			Period:  "1month",
			Limit:   25,
		},
		Spotify: SpotifyConfig{
			TimeRange: "short",
		},
		Cache: CacheConfig{
			TTL: 7 * 24 * time.Hour,
		},
		Export: ExportConfig{
			Format:   "png",
			Scale:    2,
			CellSize: 100,
		},
	}
}

// Load builds the configuration for the command line args (without the program name).
func Load(args []string) (*Config, error) {
	return load(args, os.Stderr)
}

func load(args []string, usage io.Writer) (*Config, error) {
	cfg := Default()

	fs := flag.NewFlagSet("chartfy", flag.ContinueOnError)
	fs.SetOutput(usage)
	configPath := fs.String("config", "", "YAML configuration file (optional)")
	envFile := fs.String("env-file", ".env", "dotenv file loaded into the environment if present")
	port := fs.String("port", cfg.Port, "HTTP server port")
	debug := fs.Bool("debug", cfg.Debug, "Enable debug logging")
	staticDir := fs.String("static", cfg.StaticDir, "Directory to serve static files from (optional)")
	lastfmKey := fs.String("lastfm-key", "", "Last.fm API key")
	lastfmPeriod := fs.String("lastfm-period", cfg.LastFM.Period, "Last.fm chart period")
	spotifyRange := fs.String("spotify-range", cfg.Spotify.TimeRange, "Spotify time range (short, medium, long)")
	cacheDB := fs.String("cache-db", cfg.Cache.DB, "SQLite lookup cache path (empty disables the cache)")
	cacheTTL := fs.Duration("cache-ttl", cfg.Cache.TTL, "Lookup cache entry lifetime")
	exportFormat := fs.String("export-format", cfg.Export.Format, "Export image format (png, jpeg, webp)")
	exportScale := fs.Int("export-scale", cfg.Export.Scale, "Export pixel ratio")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return nil, err
		}
	}

	if *envFile != "" {
		if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load env file %s: %w", *envFile, err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}

	// Only flags given on the command line override earlier layers.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "debug":
			cfg.Debug = *debug
		case "static":
			cfg.StaticDir = *staticDir
		case "lastfm-key":
			cfg.LastFM.APIKey = *lastfmKey
		case "lastfm-period":
			cfg.LastFM.Period = *lastfmPeriod
		case "spotify-range":
			cfg.Spotify.TimeRange = *spotifyRange
		case "cache-db":
			cfg.Cache.DB = *cacheDB
		case "cache-ttl":
			cfg.Cache.TTL = *cacheTTL
		case "export-format":
			cfg.Export.Format = *exportFormat
		case "export-scale":
			cfg.Export.Scale = *exportScale
		}
	})

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv(EnvLastFMAPIKey); v != "" {
		cfg.LastFM.APIKey = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		cfg.Port = v
	}
	if v := os.Getenv(EnvCacheDB); v != "" {
		cfg.Cache.DB = v
	}
	if v := os.Getenv(EnvDebug); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvDebug, err)
		}
		cfg.Debug = b
	}
	return nil
}

// Validate checks ranges that would otherwise fail at request time.
func (c *Config) Validate() error {
	if c.Port == "" {
		return errors.New("port must not be empty")
	}
	if n, err := strconv.Atoi(c.Port); err != nil || n <= 0 || n > 65535 {
		return fmt.Errorf("invalid port %q", c.Port)
	}
	if c.LastFM.Limit <= 0 {
		return fmt.Errorf("lastfm limit must be positive, got %d", c.LastFM.Limit)
	}
	if c.Export.Scale <= 0 || c.Export.Scale > 8 {
		return fmt.Errorf("export scale must be between 1 and 8, got %d", c.Export.Scale)
	}
	if c.Export.CellSize <= 0 {
		return fmt.Errorf("export cell size must be positive, got %d", c.Export.CellSize)
	}
	if c.Cache.TTL < 0 {
		return fmt.Errorf("cache ttl must not be negative, got %s", c.Cache.TTL)
	}
	return nil
}
