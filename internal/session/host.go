// Package session assembles a runnable session: state machine, runner, cues, snapshot
// writer, optional voice source and finalizer.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/cue"
	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/engine"
	"github.com/vburojevic/rounds/internal/finalize"
	"github.com/vburojevic/rounds/internal/intensity"
	"github.com/vburojevic/rounds/internal/persist"
)

var (
	ErrVoiceOff      = errors.New("voice commands are disabled")
	ErrNotRecognized = errors.New("utterance is not a command")
	ErrDebounced     = errors.New("repeated voice command ignored")
	ErrAbandoned     = errors.New("session was abandoned")
	ErrNoFinalizer   = errors.New("no record store configured")
)

// Notice codes published by the host.
const (
	NoticeVoiceDisabled = "voice_disabled"
	NoticeSaveFailed    = "save_failed"
)

// Options describes how to open a session.
type Options struct {
	// ID resumes or names a specific session. Empty means "newest resumable, or a new id".
	ID           string
	Config       domain.SessionConfig
	VoiceEnabled bool
	// Fresh skips recovery.
	Fresh      bool
	Store      persist.Store
	StaleAfter time.Duration

	Recognizer command.Recognizer
	Debounce   time.Duration

	CueOutputs []cue.Option
	Speech     bool

	Identity finalize.Identity
	Records  finalize.RecordStore
	Files    finalize.FileStore

	Clock  clock.Clock
	Logger *zap.Logger
}

// Host owns one session and the goroutines serving it.
type Host struct {
	runner    *engine.Runner
	cmds      *command.Channel
	cues      *cue.Dispatcher
	writer    *persist.Writer
	voice     *command.VoiceSource
	finalizer *finalize.Finalizer
	debounce  *command.Debounce
	clk       clock.Clock
	logger    *zap.Logger
	recovered bool

	closeOnce sync.Once
}

// Open recovers or creates a session. The store must outlive the host.
func Open(ctx context.Context, opts Options) (*Host, error) {
	if opts.Store == nil {
		return nil, errors.New("session: snapshot store is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = persist.DefaultStaleAfter
	}

	m, recovered, err := openMachine(ctx, opts)
	if err != nil {
		return nil, err
	}

	h := &Host{
		cmds:      command.NewChannel(),
		clk:       opts.Clock,
		logger:    opts.Logger.With(zap.String("session_id", m.ID())),
		recovered: recovered,
		debounce:  command.NewDebounce(opts.Debounce),
	}

	cueOpts := append([]cue.Option{cue.WithLogger(opts.Logger.Named("cue"))}, opts.CueOutputs...)
	h.cues = cue.NewDispatcher(cueOpts...)
	h.cues.SetSpeech(opts.Speech)

	h.writer = persist.NewWriter(opts.Store,
		persist.WithWriterLogger(opts.Logger.Named("persist")),
		persist.WithErrorHook(func(err error) {
			h.runner.Notify(NoticeSaveFailed, "progress could not be saved; retrying on the next change")
		}),
	)

	runnerOpts := []engine.RunnerOption{
		engine.WithClock(opts.Clock),
		engine.WithCues(h.cues),
		engine.WithSnapshots(h.writer),
		engine.WithLogger(opts.Logger.Named("engine")),
	}
	if opts.Recognizer != nil {
		h.voice = command.NewVoiceSource(opts.Recognizer, h.cmds,
			command.WithDebounce(h.debounce),
			command.WithActive(func() bool { return h.runner.Active() }),
			command.WithNotice(func(code, message string) { h.runner.Notify(code, message) }),
			command.WithLogger(opts.Logger.Named("voice")),
			command.WithClock(opts.Clock),
		)
		runnerOpts = append(runnerOpts, engine.WithVoice(h.voice))
	}
	h.runner = engine.NewRunner(m, h.cmds, runnerOpts...)

	if opts.Records != nil {
		identity := opts.Identity
		if identity == nil {
			identity = finalize.StaticIdentity{User: domain.User{ID: "local"}}
		}
		fopts := []finalize.Option{
			finalize.WithSnapshots(h.writer),
			finalize.WithLogger(opts.Logger.Named("finalize")),
		}
		if opts.Files != nil {
			fopts = append(fopts, finalize.WithFileStore(opts.Files))
		}
		h.finalizer = finalize.New(identity, opts.Records, fopts...)
	}
	return h, nil
}

func openMachine(ctx context.Context, opts Options) (*engine.Machine, bool, error) {
	if !opts.Fresh {
		rec := persist.Recovery{
			Store:      opts.Store,
			StaleAfter: opts.StaleAfter,
			Clock:      opts.Clock,
			Logger:     opts.Logger.Named("recovery"),
		}
		snap, err := rec.Find(ctx, opts.ID)
		if err != nil {
			return nil, false, fmt.Errorf("recover session: %w", err)
		}
		if snap != nil {
			m, err := engine.Restore(snap)
			if err != nil {
				return nil, false, fmt.Errorf("restore session: %w", err)
			}
			opts.Logger.Info("resuming session",
				zap.String("session_id", snap.SessionID),
				zap.String("phase", string(snap.State.Phase)),
				zap.Int("round", snap.State.CurrentRound))
			return m, true, nil
		}
	}

	id := opts.ID
	if id == "" {
		id = uuid.NewString()
	}
	m, err := engine.New(id, opts.Config, opts.VoiceEnabled)
	return m, false, err
}

// ID is the session id.
func (h *Host) ID() string { return h.runner.ID() }

// Config is the session configuration.
func (h *Host) Config() domain.SessionConfig { return h.runner.Config() }

// State returns a copy of the current state.
func (h *Host) State() domain.SessionState { return h.runner.State() }

// Recovered reports whether the session was resumed from a snapshot.
func (h *Host) Recovered() bool { return h.recovered }

// Done is closed once the session loop has stopped.
func (h *Host) Done() <-chan struct{} { return h.runner.Done() }

// Abandoned reports whether the session ended without a record.
func (h *Host) Abandoned() bool { return h.runner.Abandoned() }

// Subscribe observes state, cue and notice events.
func (h *Host) Subscribe(buffer int) (<-chan engine.Event, func()) {
	return h.runner.Subscribe(buffer)
}

// Notify publishes a notice to observers.
func (h *Host) Notify(code, message string) { h.runner.Notify(code, message) }

// Run drives the session until it finishes or ctx is cancelled, then flushes the last
// snapshot.
func (h *Host) Run(ctx context.Context) error {
	if h.voice != nil {
		h.voice.Start(ctx)
	}
	err := h.runner.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if ferr := h.writer.Flush(flushCtx); ferr != nil {
		h.logger.Warn("final snapshot flush failed", zap.Error(ferr))
	}
	return err
}

// Submit queues a manual command without waiting.
func (h *Host) Submit(kind command.Kind) bool {
	return h.cmds.Submit(command.Command{Kind: kind, Source: command.SourceManual, At: h.clk.Now()})
}

// Send queues a manual command and waits for its result.
func (h *Host) Send(ctx context.Context, kind command.Kind) (command.Result, error) {
	return h.cmds.Send(ctx, command.Command{Kind: kind, Source: command.SourceManual, At: h.clk.Now()})
}

// SetVoice toggles voice input.
func (h *Host) SetVoice(ctx context.Context, on bool) (command.Result, error) {
	return h.cmds.Send(ctx, command.Command{
		Kind:    command.SetVoiceEnabled,
		Source:  command.SourceManual,
		Enabled: on,
		At:      h.clk.Now(),
	})
}

// RecordIntensity parses input on the session's scale and records it for the round just
// completed. Parse failures and rejected scores return an error so the caller can re-prompt.
func (h *Host) RecordIntensity(ctx context.Context, input string) (command.Result, error) {
	score, err := intensity.Parse(h.Config().Scale, input)
	if err != nil {
		return command.Result{State: h.State()}, err
	}
	res, err := h.cmds.Send(ctx, command.Command{
		Kind:      command.RecordIntensity,
		Source:    command.SourceManual,
		Intensity: score,
		At:        h.clk.Now(),
	})
	if err != nil {
		return res, err
	}
	return res, res.Err
}

// Hear classifies an utterance delivered by an external recognizer and queues the command
// it names. It honours the voice toggle and the debounce window.
func (h *Host) Hear(ctx context.Context, utterance string) (command.Kind, command.Result, error) {
	if !h.State().VoiceEnabled {
		return "", command.Result{}, ErrVoiceOff
	}
	kind, ok := command.Classify(utterance)
	if !ok {
		return "", command.Result{}, ErrNotRecognized
	}
	if !h.debounce.Allow(kind, h.clk.Now()) {
		return kind, command.Result{}, ErrDebounced
	}
	res, err := h.cmds.Send(ctx, command.Command{Kind: kind, Source: command.SourceVoice, At: h.clk.Now()})
	return kind, res, err
}

// Finalize records the finished session once.
func (h *Host) Finalize(ctx context.Context, photo *finalize.Photo) (*domain.FinishedSession, error) {
	if h.finalizer == nil {
		return nil, ErrNoFinalizer
	}
	if h.Abandoned() {
		return nil, ErrAbandoned
	}
	return h.finalizer.Finalize(ctx, finalize.Request{
		SessionID: h.ID(),
		Config:    h.Config(),
		State:     h.State(),
		Photo:     photo,
	})
}

// Close stops the cue worker and the snapshot writer, flushing pending writes.
func (h *Host) Close(ctx context.Context) error {
	var err error
	h.closeOnce.Do(func() {
		if h.voice != nil {
			h.voice.Stop()
		}
		h.cues.Close()
		err = h.writer.Close(ctx)
	})
	return err
}

// ParseManual maps a typed line to a command. Intensity values are not commands; callers
// try RecordIntensity when the session is awaiting a score.
func ParseManual(line string) (command.Command, bool) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(line)))
	if len(fields) == 0 {
		return command.Command{}, false
	}
	if fields[0] == "voice" && len(fields) == 2 {
		switch fields[1] {
		case "on":
			return command.Command{Kind: command.SetVoiceEnabled, Enabled: true}, true
		case "off":
			return command.Command{Kind: command.SetVoiceEnabled, Enabled: false}, true
		}
		return command.Command{}, false
	}
	if len(fields) != 1 {
		return command.Command{}, false
	}
	kind, ok := command.ParseKind(fields[0])
	if !ok {
		return command.Command{}, false
	}
	return command.Command{Kind: kind}, true
}

// Apply queues a parsed manual command and waits for its result.
func (h *Host) Apply(ctx context.Context, cmd command.Command) (command.Result, error) {
	cmd.Source = command.SourceManual
	if cmd.At.IsZero() {
		cmd.At = h.clk.Now()
	}
	return h.cmds.Send(ctx, cmd)
}
