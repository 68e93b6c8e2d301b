package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kFloat
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "CADENCE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "CADENCE_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CADENCE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "log.level", typ: kString, env: "CADENCE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "suggest.look_ahead_days", typ: kInt, env: "CADENCE_SUGGEST_LOOK_AHEAD_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Suggest.LookAheadDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Suggest.LookAheadDays },
	},
	{
		key: "suggest.max_suggestions", typ: kInt, env: "CADENCE_SUGGEST_MAX_SUGGESTIONS",
		apply:   func(cfg *Config, v any) { cfg.Suggest.MaxSuggestions = v.(int) },
		extract: func(cfg Config) any { return cfg.Suggest.MaxSuggestions },
	},
	{
		key: "suggest.max_per_day", typ: kInt, env: "CADENCE_SUGGEST_MAX_PER_DAY",
		apply:   func(cfg *Config, v any) { cfg.Suggest.MaxPerDay = v.(int) },
		extract: func(cfg Config) any { return cfg.Suggest.MaxPerDay },
	},
	{
		key: "suggest.max_per_type", typ: kInt, env: "CADENCE_SUGGEST_MAX_PER_TYPE",
		apply:   func(cfg *Config, v any) { cfg.Suggest.MaxPerType = v.(int) },
		extract: func(cfg Config) any { return cfg.Suggest.MaxPerType },
	},
	{
		key: "suggest.min_pattern_frequency", typ: kInt, env: "CADENCE_SUGGEST_MIN_PATTERN_FREQUENCY",
		apply:   func(cfg *Config, v any) { cfg.Suggest.MinPatternFrequency = v.(int) },
		extract: func(cfg Config) any { return cfg.Suggest.MinPatternFrequency },
	},
	{
		key: "suggest.half_life_days", typ: kFloat, env: "CADENCE_SUGGEST_HALF_LIFE_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Suggest.HalfLifeDays = v.(float64) },
		extract: func(cfg Config) any { return cfg.Suggest.HalfLifeDays },
	},
	{
		key: "suggest.busy_threshold", typ: kInt, env: "CADENCE_SUGGEST_BUSY_THRESHOLD",
		apply:   func(cfg *Config, v any) { cfg.Suggest.BusyThreshold = v.(int) },
		extract: func(cfg Config) any { return cfg.Suggest.BusyThreshold },
	},
	{
		key: "suggest.history_days", typ: kInt, env: "CADENCE_SUGGEST_HISTORY_DAYS",
		apply:   func(cfg *Config, v any) { cfg.Suggest.HistoryDays = v.(int) },
		extract: func(cfg Config) any { return cfg.Suggest.HistoryDays },
	},
	{
		key: "identity.cache_ttl", typ: kDuration, env: "CADENCE_IDENTITY_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Identity.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Identity.CacheTTL },
	},
	{
		key: "identity.cache_size", typ: kInt, env: "CADENCE_IDENTITY_CACHE_SIZE",
		apply:   func(cfg *Config, v any) { cfg.Identity.CacheSize = v.(int) },
		extract: func(cfg Config) any { return cfg.Identity.CacheSize },
	},
	{
		key: "ingest.poll_interval", typ: kDuration, env: "CADENCE_INGEST_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Ingest.PollInterval = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Ingest.PollInterval },
	},
}

func lookupSpec(key string) (keySpec, bool) {
	for _, s := range specs {
		if s.key == key {
			return s, true
		}
	}
	return keySpec{}, false
}

// parse converts raw into the Go value for s.
func (s keySpec) parse(raw string) (any, error) {
	switch s.typ {
	case kInt:
		return strconv.Atoi(raw)
	case kFloat:
		return strconv.ParseFloat(raw, 64)
	case kDuration:
		d, err := time.ParseDuration(raw)
		if err == nil && d <= 0 {
			err = fmt.Errorf("duration must be positive")
		}
		return d, err
	default:
		return raw, nil
	}
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kFloat, kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if !ok || v == "" {
				continue
			}
			if pv, err := s.parse(v); err == nil {
				s.apply(cfg, pv)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse config key %s=%q: %v. Using default value.\n", s.key, v, err)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		if v, err := s.parse(raw); err == nil {
			s.apply(cfg, v)
		} else {
			fmt.Fprintf(os.Stderr, "[WARN] could not parse env var %s=%q: %v. Using default value.\n", s.env, raw, err)
		}
	}
}
