package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// memSecrets is an in-memory secretStore.
type memSecrets struct {
	data map[string]string
	sets int
	err  error
}

func (m *memSecrets) Get(account string) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	return m.data[account], nil
}

func (m *memSecrets) Set(account, value string) error {
	if m.data == nil {
		m.data = map[string]string{}
	}
	m.sets++
	m.data[account] = value
	return nil
}

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, s := range specs {
		t.Setenv(s.env, "")
	}
}

func TestDefaults(t *testing.T) {
	clearEnv(t)
	b := newFileBackend(filepath.Join(t.TempDir(), "missing.json"))

	cfg, err := loadWith(b, &memSecrets{data: map[string]string{"api_token": "tok"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 4100 {
		t.Errorf("Server.Port = %d, want 4100", cfg.Server.Port)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want info", cfg.Log.Level)
	}
	if cfg.Suggest.LookAheadDays != 14 {
		t.Errorf("Suggest.LookAheadDays = %d, want 14", cfg.Suggest.LookAheadDays)
	}
	if cfg.Suggest.MaxSuggestions != 15 {
		t.Errorf("Suggest.MaxSuggestions = %d, want 15", cfg.Suggest.MaxSuggestions)
	}
	if cfg.Suggest.MinPatternFrequency != 3 {
		t.Errorf("Suggest.MinPatternFrequency = %d, want 3", cfg.Suggest.MinPatternFrequency)
	}
	if cfg.Identity.CacheTTL != 10*time.Minute {
		t.Errorf("Identity.CacheTTL = %v, want 10m", cfg.Identity.CacheTTL)
	}
	if cfg.Ingest.PollInterval != 500*time.Millisecond {
		t.Errorf("Ingest.PollInterval = %v, want 500ms", cfg.Ingest.PollInterval)
	}
	if cfg.Server.APIToken != "tok" {
		t.Errorf("Server.APIToken = %q, want tok", cfg.Server.APIToken)
	}
}

func TestFileValues(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{
  "server.port": 5000,
  "log.level": "debug",
  "suggest.max_per_day": 4,
  "suggest.half_life_days": "14.5",
  "identity.cache_ttl": "90s"
}`)

	cfg, err := loadWith(newFileBackend(path), &memSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
	if cfg.Suggest.MaxPerDay != 4 {
		t.Errorf("Suggest.MaxPerDay = %d, want 4", cfg.Suggest.MaxPerDay)
	}
	if cfg.Suggest.HalfLifeDays != 14.5 {
		t.Errorf("Suggest.HalfLifeDays = %v, want 14.5", cfg.Suggest.HalfLifeDays)
	}
	if cfg.Identity.CacheTTL != 90*time.Second {
		t.Errorf("Identity.CacheTTL = %v, want 90s", cfg.Identity.CacheTTL)
	}
}

func TestEnvOverride(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, `{"server.port": 5000}`)

	t.Setenv("CADENCE_SERVER_PORT", "6000")
	t.Setenv("CADENCE_API_TOKEN", "env-token")
	t.Setenv("CADENCE_INGEST_POLL_INTERVAL", "2s")

	sec := &memSecrets{}
	cfg, err := loadWith(newFileBackend(path), sec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Port != 6000 {
		t.Errorf("Server.Port = %d, want 6000", cfg.Server.Port)
	}
	if cfg.Server.APIToken != "env-token" {
		t.Errorf("Server.APIToken = %q, want env-token", cfg.Server.APIToken)
	}
	if cfg.Ingest.PollInterval != 2*time.Second {
		t.Errorf("Ingest.PollInterval = %v, want 2s", cfg.Ingest.PollInterval)
	}
	if sec.sets != 0 {
		t.Error("secret store should not be written when the token comes from env")
	}
}

func TestInvalidEnvKeepsDefault(t *testing.T) {
	clearEnv(t)
	t.Setenv("CADENCE_SUGGEST_MAX_SUGGESTIONS", "lots")
	t.Setenv("CADENCE_IDENTITY_CACHE_TTL", "-5m")

	cfg, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "c.json")), &memSecrets{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Suggest.MaxSuggestions != 15 {
		t.Errorf("Suggest.MaxSuggestions = %d, want default 15", cfg.Suggest.MaxSuggestions)
	}
	if cfg.Identity.CacheTTL != 10*time.Minute {
		t.Errorf("Identity.CacheTTL = %v, want default 10m", cfg.Identity.CacheTTL)
	}
}

func TestValidationRejectsNonPositive(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		config string
	}{
		{"port", `{"server.port": 0}`},
		{"max per day", `{"suggest.max_per_day": 0}`},
		{"min frequency", `{"suggest.min_pattern_frequency": -1}`},
		{"half life", `{"suggest.half_life_days": "0"}`},
		{"data dir", `{"storage.data_dir": ""}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeTempConfig(t, tt.config)
			if _, err := loadWith(newFileBackend(path), &memSecrets{}); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestAPIToken_GeneratedOnce(t *testing.T) {
	clearEnv(t)
	sec := fileSecrets{path: filepath.Join(t.TempDir(), "cadence", "secrets.json")}
	b := newFileBackend(filepath.Join(t.TempDir(), "c.json"))

	first, err := loadWith(b, sec)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if first.Server.APIToken == "" {
		t.Fatal("expected a generated token")
	}
	second, err := loadWith(b, sec)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if second.Server.APIToken != first.Server.APIToken {
		t.Errorf("token changed between loads: %q vs %q", first.Server.APIToken, second.Server.APIToken)
	}

	info, err := os.Stat(sec.path)
	if err != nil {
		t.Fatalf("stat secrets: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("secrets perm = %o, want 600", perm)
	}
}

func TestAPIToken_SecretStoreError(t *testing.T) {
	clearEnv(t)
	sec := &memSecrets{err: errors.New("disk gone")}
	if _, err := loadWith(newFileBackend(filepath.Join(t.TempDir(), "c.json")), sec); err == nil {
		t.Error("expected error from secret store")
	}
}

func TestEngineConfig(t *testing.T) {
	cfg := defaults()
	cfg.Suggest.LookAheadDays = 60
	cfg.Suggest.MaxPerType = 1
	cfg.Suggest.MinPatternFrequency = 5
	cfg.Suggest.HalfLifeDays = 7

	eng := cfg.Engine()
	if eng.DefaultLookAheadDays != eng.MaxLookAheadDays {
		t.Errorf("DefaultLookAheadDays = %d, want capped at %d", eng.DefaultLookAheadDays, eng.MaxLookAheadDays)
	}
	if eng.MaxPerType != 1 {
		t.Errorf("MaxPerType = %d, want 1", eng.MaxPerType)
	}
	if eng.Patterns.MinFrequency != 5 {
		t.Errorf("Patterns.MinFrequency = %d, want 5", eng.Patterns.MinFrequency)
	}
	if eng.Patterns.HalfLifeDays != 7 {
		t.Errorf("Patterns.HalfLifeDays = %v, want 7", eng.Patterns.HalfLifeDays)
	}
}

func TestSlogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		cfg := Config{Log: LogConfig{Level: name}}
		if got := cfg.SlogLevel(); got != want {
			t.Errorf("SlogLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSetKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	b := newFileBackend(path)

	if err := setKeyWith(b, "suggest.max_per_day", "5"); err != nil {
		t.Fatalf("set int: %v", err)
	}
	if err := setKeyWith(b, "identity.cache_ttl", "30s"); err != nil {
		t.Fatalf("set duration: %v", err)
	}
	if err := setKeyWith(b, "suggest.max_per_day", "five"); err == nil {
		t.Error("expected error for non-integer value")
	}
	if err := setKeyWith(b, "server.api_token", "x"); err == nil {
		t.Error("expected error for secret key")
	}
	if err := setKeyWith(b, "nope", "x"); err == nil {
		t.Error("expected error for unknown key")
	}

	reloaded := newFileBackend(path)
	if v, ok, err := reloaded.GetInt("suggest.max_per_day"); err != nil || !ok || v != 5 {
		t.Errorf("GetInt = %d, %v, %v; want 5", v, ok, err)
	}
	if v, ok, _ := reloaded.GetString("identity.cache_ttl"); !ok || v != "30s" {
		t.Errorf("GetString = %q, %v; want 30s", v, ok)
	}
}

func TestShowAll_HidesSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Server.APIToken = "secret"
	for _, info := range ShowAll(cfg) {
		if info.Key == "server.api_token" || info.Value == "secret" {
			t.Errorf("ShowAll leaked secret: %+v", info)
		}
	}
	if len(ShowAll(cfg)) != len(ValidKeys()) {
		t.Errorf("ShowAll and ValidKeys disagree: %d vs %d", len(ShowAll(cfg)), len(ValidKeys()))
	}
}

func TestFileBackend_RejectsFractionalInt(t *testing.T) {
	path := writeTempConfig(t, `{"server.port": 4000.5}`)
	if _, _, err := newFileBackend(path).GetInt("server.port"); err == nil {
		t.Error("expected error for fractional integer")
	}
}
