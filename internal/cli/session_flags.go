package cli

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/backend/supabase"
	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/config"
	"github.com/vburojevic/rounds/internal/cue"
	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/finalize"
	"github.com/vburojevic/rounds/internal/persist"
	"github.com/vburojevic/rounds/internal/preset"
	"github.com/vburojevic/rounds/internal/records"
	"github.com/vburojevic/rounds/internal/session"
)

// SessionFlags are shared by every command that hosts a session.
type SessionFlags struct {
	Preset       string `short:"p" default:"${config_preset}" help:"Preset name (see 'rounds presets')"`
	PresetFile   string `default:"${config_preset_file}" help:"YAML or plist file with extra presets"`
	Rounds       int    `short:"n" help:"Number of rounds (overrides the preset)"`
	RoundSeconds int    `help:"Round length in seconds (overrides the preset)"`
	RestSeconds  int    `default:"-1" help:"Rest length in seconds, 0 for none (overrides the preset)"`
	Scale        string `help:"Intensity scale: numeric or categorical (overrides the preset)"`

	SessionID string `help:"Session id to resume or create"`
	Fresh     bool   `help:"Ignore any saved session and start a new one"`

	Voice     bool   `default:"${config_voice}" negatable:"" help:"Forward recognized voice commands"`
	VoiceCmd  string `default:"${config_voice_cmd}" help:"Speech-to-text command printing one utterance per line"`
	VoiceFile string `help:"Read utterances from a file or FIFO, one per line" type:"path"`
	Speak     bool   `help:"Speak cue phrases with the speech command"`
}

// buildSessionConfig layers the preset, then non-zero config defaults, then flags.
func (f *SessionFlags) buildSessionConfig(cfg *config.Config) (domain.SessionConfig, error) {
	var user []preset.Preset
	if path := firstNonEmpty(f.PresetFile, cfg.Defaults.PresetFile); path != "" {
		loaded, err := preset.LoadFile(path)
		if err != nil {
			return domain.SessionConfig{}, err
		}
		user = loaded
	}

	p := preset.Preset{Name: "custom"}
	if name := firstNonEmpty(f.Preset, cfg.Defaults.Preset); name != "" {
		found, err := preset.Lookup(name, user...)
		if err != nil {
			return domain.SessionConfig{}, err
		}
		p = found
	}

	d := cfg.Defaults
	if d.Rounds > 0 {
		p.Rounds = d.Rounds
	}
	if d.RoundSeconds > 0 {
		p.RoundSeconds = d.RoundSeconds
	}
	if d.RestSeconds > 0 {
		p.RestSeconds = d.RestSeconds
	}

	if f.Rounds > 0 {
		p.Rounds = f.Rounds
	}
	if f.RoundSeconds > 0 {
		p.RoundSeconds = f.RoundSeconds
	}
	if f.RestSeconds >= 0 {
		p.RestSeconds = f.RestSeconds
	}
	if f.Scale != "" {
		p.Scale = domain.Scale(f.Scale)
	}
	if len(p.Focus) > p.Rounds && p.Rounds > 0 {
		p.Focus = p.Focus[:p.Rounds]
	}
	return p.Config()
}

// sessionDeps owns everything opened for a session host.
type sessionDeps struct {
	opts    session.Options
	closers []func() error
}

func (d *sessionDeps) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		_ = d.closers[i]()
	}
}

// openDeps resolves stores, backends, cue outputs and the voice source from config and flags.
func (f *SessionFlags) openDeps(ctx context.Context, globals *Globals, logger *zap.Logger) (*sessionDeps, error) {
	cfg := globals.Config
	sessCfg, err := f.buildSessionConfig(cfg)
	if err != nil {
		return nil, outputErrorCommon(globals, "INVALID_SESSION", err.Error(), "check the preset and round flags")
	}

	deps := &sessionDeps{opts: session.Options{
		ID:           f.SessionID,
		Config:       sessCfg,
		VoiceEnabled: f.Voice,
		Fresh:        f.Fresh,
		StaleAfter:   cfg.Persistence.StaleAfter,
		Debounce:     cfg.Voice.Debounce,
		Speech:       f.Speak,
		Logger:       logger,
	}}
	fail := func(code, msg, hint string) (*sessionDeps, error) {
		deps.Close()
		return nil, outputErrorCommon(globals, code, msg, hint)
	}

	store, err := openSnapshotStore(cfg.Persistence)
	if err != nil {
		return fail("PERSISTENCE_UNAVAILABLE", err.Error(), "check persistence.driver and its settings")
	}
	deps.opts.Store = store
	deps.closers = append(deps.closers, store.Close)

	var backend *supabase.Client
	if cfg.Supabase.URL != "" && cfg.Supabase.APIKey != "" {
		backend, err = supabase.New(supabase.Config{
			URL:         cfg.Supabase.URL,
			APIKey:      cfg.Supabase.APIKey,
			AccessToken: cfg.Supabase.AccessToken,
			Bucket:      cfg.Supabase.Bucket,
			Table:       cfg.Supabase.Table,
		})
		if err != nil {
			return fail("BACKEND_UNAVAILABLE", err.Error(), "check supabase.url and supabase.api_key")
		}
		deps.opts.Files = backend
	}

	switch {
	case backend != nil && cfg.Supabase.AccessToken != "":
		deps.opts.Identity = backend
	default:
		deps.opts.Identity = finalize.StaticIdentity{User: domain.User{
			ID:          cfg.Identity.UserID,
			DisplayName: cfg.Identity.DisplayName,
		}}
	}

	switch cfg.Records.Driver {
	case "supabase":
		if backend == nil {
			return fail("RECORDS_UNAVAILABLE", "records.driver is supabase but supabase is not configured", "set supabase.url and supabase.api_key")
		}
		deps.opts.Records = backend
	default:
		rs, err := openRecordStore(ctx, cfg.Records)
		if err != nil {
			return fail("RECORDS_UNAVAILABLE", err.Error(), "check records.driver and records.db_path or records.dsn")
		}
		deps.opts.Records = rs
		deps.closers = append(deps.closers, rs.Close)
	}

	if cfg.Cues.Bell {
		deps.opts.CueOutputs = append(deps.opts.CueOutputs, cue.WithTone(cue.NewBell(globals.Stderr)))
	}
	if f.Speak {
		speaker, err := cue.NewExecSpeaker(speechCommand(cfg.Cues.SpeechCommand))
		if err != nil {
			return fail("INVALID_FLAGS", err.Error(), "set cues.speech_command")
		}
		deps.opts.CueOutputs = append(deps.opts.CueOutputs, cue.WithSpeaker(speaker))
	}
	if cfg.Cues.Haptics {
		deps.opts.CueOutputs = append(deps.opts.CueOutputs, cue.WithHaptics(cue.NewLogHaptics(logger.Named("haptics"))))
	}

	switch {
	case f.VoiceFile != "":
		file, err := os.Open(f.VoiceFile)
		if err != nil {
			return fail("VOICE_UNAVAILABLE", err.Error(), "check --voice-file")
		}
		deps.closers = append(deps.closers, file.Close)
		deps.opts.Recognizer = command.NewReaderRecognizer(file)
	case strings.TrimSpace(f.VoiceCmd) != "":
		deps.opts.Recognizer = command.NewExecRecognizer(f.VoiceCmd)
	}
	return deps, nil
}

func openSnapshotStore(p config.PersistenceConfig) (persist.Store, error) {
	switch persist.StoreType(p.Driver) {
	case persist.StoreTypeMemory:
		return persist.NewStore(persist.StoreTypeMemory)
	case persist.StoreTypeRedis:
		client := redis.NewClient(&redis.Options{Addr: p.RedisAddr, DB: p.RedisDB})
		return persist.NewStore(persist.StoreTypeRedis,
			persist.WithRedisClient(client),
			persist.WithRedisTTL(p.StaleAfter),
		)
	case persist.StoreTypeFile, "":
		return persist.NewStore(persist.StoreTypeFile, persist.WithDir(p.Dir))
	default:
		return nil, fmt.Errorf("%w: %q", persist.ErrInvalidStoreType, p.Driver)
	}
}

// openRecordStore opens the SQL record store selected by records.driver.
func openRecordStore(ctx context.Context, rc config.RecordsConfig) (*records.Store, error) {
	target := rc.DBPath
	if rc.Driver == records.DriverPostgres {
		target = rc.DSN
	}
	return records.Open(ctx, rc.Driver, target)
}

func speechCommand(configured string) string {
	if strings.TrimSpace(configured) != "" {
		return configured
	}
	if runtime.GOOS == "darwin" {
		return "say"
	}
	return "espeak"
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
