package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const appName = "rounds"

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format"` // auto, ndjson or text
	Level   string `mapstructure:"level"`
	Quiet   bool   `mapstructure:"quiet"`
	Verbose bool   `mapstructure:"verbose"`

	Defaults    DefaultsConfig    `mapstructure:"defaults"`
	Persistence PersistenceConfig `mapstructure:"persistence"`
	Records     RecordsConfig     `mapstructure:"records"`
	Supabase    SupabaseConfig    `mapstructure:"supabase"`
	Identity    IdentityConfig    `mapstructure:"identity"`
	Cues        CuesConfig        `mapstructure:"cues"`
	Voice       VoiceConfig       `mapstructure:"voice"`
	Server      ServerConfig      `mapstructure:"server"`
}

// DefaultsConfig holds session setup defaults used when no flags are given.
type DefaultsConfig struct {
	Preset       string `mapstructure:"preset"`
	Rounds       int    `mapstructure:"rounds"`
	RoundSeconds int    `mapstructure:"round_seconds"`
	RestSeconds  int    `mapstructure:"rest_seconds"`
	Scale        string `mapstructure:"scale"`
	Voice        bool   `mapstructure:"voice"`
	PresetFile   string `mapstructure:"preset_file"`
}

// PersistenceConfig selects the snapshot store.
type PersistenceConfig struct {
	Driver     string        `mapstructure:"driver"` // file, memory or redis
	Dir        string        `mapstructure:"dir"`
	RedisAddr  string        `mapstructure:"redis_addr"`
	RedisDB    int           `mapstructure:"redis_db"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// RecordsConfig selects where finished sessions are written.
type RecordsConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, postgres or supabase
	DBPath string `mapstructure:"db_path"`
	DSN    string `mapstructure:"dsn"`
}

type SupabaseConfig struct {
	URL         string `mapstructure:"url"`
	APIKey      string `mapstructure:"api_key"`
	AccessToken string `mapstructure:"access_token"`
	Bucket      string `mapstructure:"bucket"`
	Table       string `mapstructure:"table"`
}

// IdentityConfig is the local user when no backend identity is configured.
type IdentityConfig struct {
	UserID      string `mapstructure:"user_id"`
	DisplayName string `mapstructure:"display_name"`
}

type CuesConfig struct {
	SpeechCommand string `mapstructure:"speech_command"`
	Bell          bool   `mapstructure:"bell"`
	Haptics       bool   `mapstructure:"haptics"`
}

type VoiceConfig struct {
	Command  string        `mapstructure:"command"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format: "auto",
		Level:  "info",
		Defaults: DefaultsConfig{
			Preset: "boxing",
			Scale:  "numeric",
		},
		Persistence: PersistenceConfig{
			Driver:     "file",
			Dir:        defaultDataDir("snapshots"),
			RedisAddr:  "localhost:6379",
			StaleAfter: 6 * time.Hour,
		},
		Records: RecordsConfig{
			Driver: "sqlite",
			DBPath: defaultDataDir("rounds.db"),
		},
		Supabase: SupabaseConfig{
			Bucket: "session-proofs",
			Table:  "finished_sessions",
		},
		Identity: IdentityConfig{
			UserID:      "local",
			DisplayName: defaultDisplayName(),
		},
		Cues: CuesConfig{
			Bell: true,
		},
		Voice: VoiceConfig{
			Debounce: 1500 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr: ":8080",
		},
	}
}

func defaultDataDir(name string) string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, "."+appName, name)
	}
	return filepath.Join("."+appName, name)
}

func defaultDisplayName() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "athlete"
}

// newViper wires env overrides and defaults shared by every loader.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetEnvPrefix("ROUNDS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	cfg := Default()
	v.SetDefault("format", cfg.Format)
	v.SetDefault("level", cfg.Level)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)

	v.SetDefault("defaults.preset", cfg.Defaults.Preset)
	v.SetDefault("defaults.rounds", cfg.Defaults.Rounds)
	v.SetDefault("defaults.round_seconds", cfg.Defaults.RoundSeconds)
	v.SetDefault("defaults.rest_seconds", cfg.Defaults.RestSeconds)
	v.SetDefault("defaults.scale", cfg.Defaults.Scale)
	v.SetDefault("defaults.voice", cfg.Defaults.Voice)
	v.SetDefault("defaults.preset_file", cfg.Defaults.PresetFile)

	v.SetDefault("persistence.driver", cfg.Persistence.Driver)
	v.SetDefault("persistence.dir", cfg.Persistence.Dir)
	v.SetDefault("persistence.redis_addr", cfg.Persistence.RedisAddr)
	v.SetDefault("persistence.redis_db", cfg.Persistence.RedisDB)
	v.SetDefault("persistence.stale_after", cfg.Persistence.StaleAfter)

	v.SetDefault("records.driver", cfg.Records.Driver)
	v.SetDefault("records.db_path", cfg.Records.DBPath)
	v.SetDefault("records.dsn", cfg.Records.DSN)

	v.SetDefault("supabase.url", cfg.Supabase.URL)
	v.SetDefault("supabase.api_key", cfg.Supabase.APIKey)
	v.SetDefault("supabase.access_token", cfg.Supabase.AccessToken)
	v.SetDefault("supabase.bucket", cfg.Supabase.Bucket)
	v.SetDefault("supabase.table", cfg.Supabase.Table)

	v.SetDefault("identity.user_id", cfg.Identity.UserID)
	v.SetDefault("identity.display_name", cfg.Identity.DisplayName)

	v.SetDefault("cues.speech_command", cfg.Cues.SpeechCommand)
	v.SetDefault("cues.bell", cfg.Cues.Bell)
	v.SetDefault("cues.haptics", cfg.Cues.Haptics)

	v.SetDefault("voice.command", cfg.Voice.Command)
	v.SetDefault("voice.debounce", cfg.Voice.Debounce)

	v.SetDefault("server.addr", cfg.Server.Addr)
	return v
}

func searchPaths() []string {
	paths := []string{filepath.Join("/etc", appName)}
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths, filepath.Join(dir, appName))
	}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	return append(paths, ".")
}

// Load loads configuration from the first config file found and the environment.
// A missing file is not an error.
func Load() (*Config, error) {
	v := newViper()
	if path := ConfigFile(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the path of the config file Load would read, or "".
// rounds.yaml wins over .rounds.yaml within the same directory; later
// search paths (home, working directory) win over earlier ones.
func ConfigFile() string {
	if p := os.Getenv("ROUNDS_CONFIG"); p != "" {
		return p
	}
	paths := searchPaths()
	for i := len(paths) - 1; i >= 0; i-- {
		for _, name := range []string{appName, "." + appName} {
			v := viper.New()
			v.SetConfigName(name)
			v.SetConfigType("yaml")
			v.AddConfigPath(paths[i])
			err := v.ReadInConfig()
			if err == nil {
				return v.ConfigFileUsed()
			}
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && v.ConfigFileUsed() != "" {
				// Present but unreadable: let Load report it.
				return v.ConfigFileUsed()
			}
		}
	}
	return ""
}
