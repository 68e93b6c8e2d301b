package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kalambet/cadence/internal/suggest"
)

type Config struct {
	Server   ServerConfig
	Storage  StorageConfig
	Log      LogConfig
	Suggest  SuggestConfig
	Identity IdentityConfig
	Ingest   IngestConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

type StorageConfig struct {
	DataDir string
}

type LogConfig struct {
	Level string
}

// SuggestConfig holds the tunable subset of suggest.Config.
type SuggestConfig struct {
	LookAheadDays       int
	MaxSuggestions      int
	MaxPerDay           int
	MaxPerType          int
	MinPatternFrequency int
	HalfLifeDays        float64
	BusyThreshold       int
	HistoryDays         int
}

type IdentityConfig struct {
	CacheTTL  time.Duration
	CacheSize int
}

type IngestConfig struct {
	PollInterval time.Duration
}

func defaults() Config {
	eng := suggest.DefaultConfig()
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Log: LogConfig{
			Level: "info",
		},
		Suggest: SuggestConfig{
			LookAheadDays:       eng.DefaultLookAheadDays,
			MaxSuggestions:      eng.MaxSuggestions,
			MaxPerDay:           eng.MaxPerDay,
			MaxPerType:          eng.MaxPerType,
			MinPatternFrequency: eng.Patterns.MinFrequency,
			HalfLifeDays:        eng.Patterns.HalfLifeDays,
			BusyThreshold:       eng.BusyThreshold,
			HistoryDays:         eng.HistoryDays,
		},
		Identity: IdentityConfig{
			CacheTTL:  10 * time.Minute,
			CacheSize: 1024,
		},
		Ingest: IngestConfig{
			PollInterval: 500 * time.Millisecond,
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/cadence/config.json, then applies CADENCE_* environment
// variable overrides. The API token comes from CADENCE_API_TOKEN or the
// secrets file, which is created with a random token on first use.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()), fileSecrets{path: secretsFilePath()})
}

func loadWith(b ConfigBackend, sec secretStore) (Config, error) {
	cfg := defaults()
	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	if err := ensureAPIToken(&cfg, sec); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d is out of range", c.Server.Port)
	}
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	s := c.Suggest
	for _, f := range []struct {
		key string
		v   int
	}{
		{"suggest.look_ahead_days", s.LookAheadDays},
		{"suggest.max_suggestions", s.MaxSuggestions},
		{"suggest.max_per_day", s.MaxPerDay},
		{"suggest.max_per_type", s.MaxPerType},
		{"suggest.min_pattern_frequency", s.MinPatternFrequency},
		{"suggest.busy_threshold", s.BusyThreshold},
		{"suggest.history_days", s.HistoryDays},
		{"identity.cache_size", c.Identity.CacheSize},
	} {
		if f.v <= 0 {
			return fmt.Errorf("%s must be positive, got %d", f.key, f.v)
		}
	}
	if s.HalfLifeDays <= 0 {
		return fmt.Errorf("suggest.half_life_days must be positive, got %v", s.HalfLifeDays)
	}
	return nil
}

// Engine returns the suggestion engine configuration.
func (c Config) Engine() suggest.Config {
	eng := suggest.DefaultConfig()
	eng.DefaultLookAheadDays = c.Suggest.LookAheadDays
	if eng.DefaultLookAheadDays > eng.MaxLookAheadDays {
		eng.DefaultLookAheadDays = eng.MaxLookAheadDays
	}
	eng.MaxSuggestions = c.Suggest.MaxSuggestions
	eng.MaxPerDay = c.Suggest.MaxPerDay
	eng.MaxPerType = c.Suggest.MaxPerType
	eng.BusyThreshold = c.Suggest.BusyThreshold
	eng.HistoryDays = c.Suggest.HistoryDays
	eng.Patterns.MinFrequency = c.Suggest.MinPatternFrequency
	eng.Patterns.HalfLifeDays = c.Suggest.HalfLifeDays
	return eng
}

// SlogLevel maps Log.Level to a slog level. Unknown names mean info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "cadence-data"
		}
	}
	return filepath.Join(dir, "cadence")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "cadence", "config.json")
}
