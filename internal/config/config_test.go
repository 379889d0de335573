package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "xdg"))
	t.Setenv("ROUNDS_CONFIG", "")
	t.Chdir(dir)
	return dir
}

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NotNil(t, cfg)
	assert.Equal(t, "auto", cfg.Format)
	assert.Equal(t, "info", cfg.Level)
	assert.False(t, cfg.Quiet)
	assert.Equal(t, "boxing", cfg.Defaults.Preset)
	assert.Equal(t, "file", cfg.Persistence.Driver)
	assert.Equal(t, 6*time.Hour, cfg.Persistence.StaleAfter)
	assert.Equal(t, "sqlite", cfg.Records.Driver)
	assert.Equal(t, "session-proofs", cfg.Supabase.Bucket)
	assert.Equal(t, 1500*time.Millisecond, cfg.Voice.Debounce)
	assert.Equal(t, ":8080", cfg.Server.Addr)
}

func TestLoad(t *testing.T) {
	t.Run("returns defaults when no config file exists", func(t *testing.T) {
		isolate(t)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "auto", cfg.Format)
		assert.Empty(t, ConfigFile())
	})

	t.Run("finds rounds.yaml in the working directory", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rounds.yaml"), []byte("format: text\ndefaults:\n  preset: mma\n"), 0o644))

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "text", cfg.Format)
		assert.Equal(t, "mma", cfg.Defaults.Preset)
		assert.Equal(t, filepath.Join(dir, "rounds.yaml"), ConfigFile())
	})

	t.Run("environment overrides file", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, ".rounds.yaml"), []byte("persistence:\n  driver: memory\n"), 0o644))
		t.Setenv("ROUNDS_PERSISTENCE_DRIVER", "redis")
		t.Setenv("ROUNDS_PERSISTENCE_STALE_AFTER", "90m")
		t.Setenv("ROUNDS_SERVER_ADDR", "127.0.0.1:9999")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "redis", cfg.Persistence.Driver)
		assert.Equal(t, 90*time.Minute, cfg.Persistence.StaleAfter)
		assert.Equal(t, "127.0.0.1:9999", cfg.Server.Addr)
	})

	t.Run("ROUNDS_CONFIG points at an explicit file", func(t *testing.T) {
		dir := isolate(t)
		path := filepath.Join(dir, "elsewhere.yaml")
		require.NoError(t, os.WriteFile(path, []byte("level: debug\n"), 0o644))
		t.Setenv("ROUNDS_CONFIG", path)

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, "debug", cfg.Level)
	})

	t.Run("broken file is reported", func(t *testing.T) {
		dir := isolate(t)
		require.NoError(t, os.WriteFile(filepath.Join(dir, "rounds.yaml"), []byte("format: [\n"), 0o644))

		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLoadFromFile(t *testing.T) {
	t.Run("returns error for non-existent file", func(t *testing.T) {
		cfg, err := LoadFromFile("/nonexistent/path/config.yaml")
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("returns error for invalid YAML", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		require.NoError(t, os.WriteFile(path, []byte("invalid: yaml: content: ["), 0o644))

		cfg, err := LoadFromFile(path)
		assert.Error(t, err)
		assert.Nil(t, cfg)
	})

	t.Run("fills every section", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "rounds.yaml")
		content := `
format: ndjson
quiet: true
defaults:
  rounds: 5
  round_seconds: 120
  rest_seconds: 30
  scale: categorical
  voice: true
persistence:
  driver: redis
  redis_addr: "cache:6379"
  redis_db: 2
  stale_after: 2h
records:
  driver: supabase
supabase:
  url: https://proj.supabase.co
  api_key: anon
identity:
  user_id: u-7
cues:
  speech_command: espeak
  bell: false
voice:
  command: "whisper-stream"
  debounce: 500ms
server:
  addr: ":9090"
`
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

		cfg, err := LoadFromFile(path)
		require.NoError(t, err)
		assert.True(t, cfg.Quiet)
		assert.Equal(t, 5, cfg.Defaults.Rounds)
		assert.Equal(t, 120, cfg.Defaults.RoundSeconds)
		assert.Equal(t, 30, cfg.Defaults.RestSeconds)
		assert.Equal(t, "categorical", cfg.Defaults.Scale)
		assert.True(t, cfg.Defaults.Voice)
		assert.Equal(t, "cache:6379", cfg.Persistence.RedisAddr)
		assert.Equal(t, 2, cfg.Persistence.RedisDB)
		assert.Equal(t, 2*time.Hour, cfg.Persistence.StaleAfter)
		assert.Equal(t, "supabase", cfg.Records.Driver)
		assert.Equal(t, "https://proj.supabase.co", cfg.Supabase.URL)
		assert.Equal(t, "finished_sessions", cfg.Supabase.Table)
		assert.Equal(t, "u-7", cfg.Identity.UserID)
		assert.Equal(t, "espeak", cfg.Cues.SpeechCommand)
		assert.False(t, cfg.Cues.Bell)
		assert.Equal(t, 500*time.Millisecond, cfg.Voice.Debounce)
		assert.Equal(t, ":9090", cfg.Server.Addr)
	})
}
