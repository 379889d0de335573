package cli

import (
	"fmt"

	"github.com/vburojevic/rounds/internal/config"
	"github.com/vburojevic/rounds/internal/output"
)

// ConfigCmd groups configuration inspection commands
type ConfigCmd struct {
	Show ConfigShowCmd `cmd:"" default:"1" help:"Show the effective configuration"`
	Path ConfigPathCmd `cmd:"" help:"Show which config file is loaded"`
}

// ConfigShowCmd prints the effective configuration with secrets masked
type ConfigShowCmd struct{}

// ConfigOutput is the NDJSON form of the effective configuration.
type ConfigOutput struct {
	Type          string         `json:"type"`
	SchemaVersion int            `json:"schemaVersion"`
	Format        string         `json:"format"`
	Level         string         `json:"level"`
	Quiet         bool           `json:"quiet"`
	Verbose       bool           `json:"verbose"`
	Defaults      map[string]any `json:"defaults"`
	Persistence   map[string]any `json:"persistence"`
	Records       map[string]any `json:"records"`
	Supabase      map[string]any `json:"supabase"`
	Identity      map[string]any `json:"identity"`
	Cues          map[string]any `json:"cues"`
	Voice         map[string]any `json:"voice"`
	Server        map[string]any `json:"server"`
}

func newConfigOutput(globals *Globals) ConfigOutput {
	cfg := globals.Config
	return ConfigOutput{
		Type:          "config",
		SchemaVersion: output.SchemaVersion,
		Format:        globals.Format,
		Level:         globals.Level,
		Quiet:         globals.Quiet,
		Verbose:       globals.Verbose,
		Defaults: map[string]any{
			"preset":        cfg.Defaults.Preset,
			"preset_file":   cfg.Defaults.PresetFile,
			"rounds":        cfg.Defaults.Rounds,
			"round_seconds": cfg.Defaults.RoundSeconds,
			"rest_seconds":  cfg.Defaults.RestSeconds,
			"scale":         cfg.Defaults.Scale,
			"voice":         cfg.Defaults.Voice,
		},
		Persistence: map[string]any{
			"driver":      cfg.Persistence.Driver,
			"dir":         cfg.Persistence.Dir,
			"redis_addr":  cfg.Persistence.RedisAddr,
			"redis_db":    cfg.Persistence.RedisDB,
			"stale_after": cfg.Persistence.StaleAfter.String(),
		},
		Records: map[string]any{
			"driver":  cfg.Records.Driver,
			"db_path": cfg.Records.DBPath,
			"dsn":     mask(cfg.Records.DSN),
		},
		Supabase: map[string]any{
			"url":          cfg.Supabase.URL,
			"api_key":      mask(cfg.Supabase.APIKey),
			"access_token": mask(cfg.Supabase.AccessToken),
			"bucket":       cfg.Supabase.Bucket,
			"table":        cfg.Supabase.Table,
		},
		Identity: map[string]any{
			"user_id":      cfg.Identity.UserID,
			"display_name": cfg.Identity.DisplayName,
		},
		Cues: map[string]any{
			"speech_command": cfg.Cues.SpeechCommand,
			"bell":           cfg.Cues.Bell,
			"haptics":        cfg.Cues.Haptics,
		},
		Voice: map[string]any{
			"command":  cfg.Voice.Command,
			"debounce": cfg.Voice.Debounce.String(),
		},
		Server: map[string]any{
			"addr": cfg.Server.Addr,
		},
	}
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	return "********"
}

// Run executes the config show command
func (c *ConfigShowCmd) Run(globals *Globals) error {
	out := newConfigOutput(globals)
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteJSON(out)
	}

	cfg := globals.Config
	w := globals.Stdout
	fmt.Fprintln(w, "Current Configuration:")
	fmt.Fprintf(w, "  format: %s\n", out.Format)
	fmt.Fprintf(w, "  level: %s\n", out.Level)
	fmt.Fprintf(w, "  quiet: %t\n", out.Quiet)
	fmt.Fprintf(w, "  verbose: %t\n", out.Verbose)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Defaults:")
	fmt.Fprintf(w, "  preset: %s\n", cfg.Defaults.Preset)
	if cfg.Defaults.PresetFile != "" {
		fmt.Fprintf(w, "  preset_file: %s\n", cfg.Defaults.PresetFile)
	}
	fmt.Fprintf(w, "  scale: %s\n", cfg.Defaults.Scale)
	fmt.Fprintf(w, "  voice: %t\n", cfg.Defaults.Voice)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Persistence:")
	fmt.Fprintf(w, "  driver: %s\n", cfg.Persistence.Driver)
	fmt.Fprintf(w, "  dir: %s\n", cfg.Persistence.Dir)
	fmt.Fprintf(w, "  stale_after: %s\n", cfg.Persistence.StaleAfter)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Records:")
	fmt.Fprintf(w, "  driver: %s\n", cfg.Records.Driver)
	fmt.Fprintf(w, "  db_path: %s\n", cfg.Records.DBPath)
	if cfg.Supabase.URL != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Supabase:")
		fmt.Fprintf(w, "  url: %s\n", cfg.Supabase.URL)
		fmt.Fprintf(w, "  api_key: %s\n", mask(cfg.Supabase.APIKey))
		fmt.Fprintf(w, "  bucket: %s\n", cfg.Supabase.Bucket)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Identity: %s (%s)\n", cfg.Identity.DisplayName, cfg.Identity.UserID)
	fmt.Fprintf(w, "Server: %s\n", cfg.Server.Addr)
	return nil
}

// ConfigPathCmd shows the config file in use
type ConfigPathCmd struct{}

// ConfigPathOutput is the NDJSON form of config path.
type ConfigPathOutput struct {
	Type          string `json:"type"`
	SchemaVersion int    `json:"schemaVersion"`
	Path          string `json:"path"`
	Found         bool   `json:"found"`
}

// Run executes the config path command
func (c *ConfigPathCmd) Run(globals *Globals) error {
	path := config.ConfigFile()
	if globals.Format == "ndjson" {
		return output.NewNDJSONWriter(globals.Stdout).WriteJSON(ConfigPathOutput{
			Type:          "config_path",
			SchemaVersion: output.SchemaVersion,
			Path:          path,
			Found:         path != "",
		})
	}
	if path == "" {
		fmt.Fprintln(globals.Stdout, "No configuration file found (looked for rounds.yaml and .rounds.yaml)")
		return nil
	}
	fmt.Fprintf(globals.Stdout, "Config file: %s\n", path)
	return nil
}
