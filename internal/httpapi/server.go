// Package httpapi exposes a running session over HTTP so a phone or watch can drive it.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/command"
	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/engine"
	"github.com/vburojevic/rounds/internal/finalize"
	"github.com/vburojevic/rounds/internal/intensity"
	"github.com/vburojevic/rounds/internal/output"
	"github.com/vburojevic/rounds/internal/session"
)

const maxPhotoBytes = 10 << 20

// Session is the slice of session.Host the API drives.
type Session interface {
	ID() string
	Config() domain.SessionConfig
	State() domain.SessionState
	Subscribe(buffer int) (<-chan engine.Event, func())
	Apply(ctx context.Context, cmd command.Command) (command.Result, error)
	RecordIntensity(ctx context.Context, input string) (command.Result, error)
	Hear(ctx context.Context, utterance string) (command.Kind, command.Result, error)
	Finalize(ctx context.Context, photo *finalize.Photo) (*domain.FinishedSession, error)
}

// Server routes requests to one session.
type Server struct {
	sess   Session
	clk    clock.Clock
	logger *zap.Logger
	router chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option { return func(s *Server) { s.logger = l } }

// WithClock sets the time source for response timestamps.
func WithClock(c clock.Clock) Option { return func(s *Server) { s.clk = c } }

// New builds the router for sess.
func New(sess Session, opts ...Option) *Server {
	s := &Server{sess: sess, clk: clock.New(), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.logRequests)
	r.Use(middleware.Recoverer)

	r.Route("/session", func(r chi.Router) {
		r.Get("/", s.getSession)
		r.Post("/commands", s.postCommand)
		r.Post("/intensity", s.postIntensity)
		r.Post("/voice", s.postVoice)
		r.Post("/finalize", s.postFinalize)
		r.Get("/events", s.streamEvents)
	})
	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := s.clk.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("took", s.clk.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

type sessionView struct {
	SessionID string               `json:"session_id"`
	Config    domain.SessionConfig `json:"config"`
	State     domain.SessionState  `json:"state"`
	Status    string               `json:"status"`
	Prompt    string               `json:"prompt,omitempty"`
	Choices   []intensity.Choice   `json:"choices,omitempty"`
}

type commandResponse struct {
	Accepted bool        `json:"accepted"`
	Command  string      `json:"command,omitempty"`
	Session  sessionView `json:"session"`
}

func (s *Server) view(st domain.SessionState) sessionView {
	cfg := s.sess.Config()
	ev := domain.NewStateEvent(s.sess.ID(), "query", cfg, st, s.clk.Now())
	v := sessionView{
		SessionID: s.sess.ID(),
		Config:    cfg,
		State:     st,
		Status:    output.StatusLine(ev),
	}
	if st.Phase == domain.PhaseAwaitingIntensity {
		v.Prompt = intensity.Prompt(st.CurrentRound, cfg.Scale)
		v.Choices = intensity.Choices(cfg.Scale)
	}
	return v
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, s.view(s.sess.State()), http.StatusOK)
}

func (s *Server) postCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Command string `json:"command"`
		Enabled *bool  `json:"enabled,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "BAD_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	var cmd command.Command
	switch req.Command {
	case "voice", string(command.SetVoiceEnabled):
		if req.Enabled == nil {
			respondError(w, "BAD_REQUEST", "voice command needs \"enabled\"", http.StatusBadRequest)
			return
		}
		cmd = command.Command{Kind: command.SetVoiceEnabled, Enabled: *req.Enabled}
	default:
		kind, ok := command.ParseKind(req.Command)
		if !ok {
			respondError(w, "UNKNOWN_COMMAND", "unknown command "+req.Command, http.StatusBadRequest)
			return
		}
		cmd = command.Command{Kind: kind}
	}

	res, err := s.sess.Apply(r.Context(), cmd)
	if err != nil {
		s.respondCommandError(w, err)
		return
	}
	respondJSON(w, commandResponse{Accepted: res.Accepted, Command: string(cmd.Kind), Session: s.view(res.State)}, http.StatusOK)
}

func (s *Server) postIntensity(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		respondError(w, "BAD_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}
	// Accept both "4" and 4.
	input := string(req.Value)
	var str string
	if json.Unmarshal(req.Value, &str) == nil {
		input = str
	}

	res, err := s.sess.RecordIntensity(r.Context(), input)
	switch {
	case errors.Is(err, domain.ErrInvalidScore), errors.Is(err, engine.ErrWrongScale):
		cfg := s.sess.Config()
		respondError(w, "INVALID_SCORE", err.Error(), http.StatusUnprocessableEntity, "answer with "+intensity.Hint(cfg.Scale))
		return
	case err != nil:
		s.respondCommandError(w, err)
		return
	}
	respondJSON(w, commandResponse{Accepted: res.Accepted, Command: string(command.RecordIntensity), Session: s.view(res.State)}, http.StatusOK)
}

func (s *Server) postVoice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Utterance string `json:"utterance"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "BAD_REQUEST", "invalid request body", http.StatusBadRequest)
		return
	}

	kind, res, err := s.sess.Hear(r.Context(), req.Utterance)
	switch {
	case errors.Is(err, session.ErrVoiceOff):
		respondError(w, "VOICE_OFF", err.Error(), http.StatusConflict, "enable voice with {\"command\":\"voice\",\"enabled\":true}")
	case errors.Is(err, session.ErrNotRecognized):
		respondError(w, "NOT_A_COMMAND", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, session.ErrDebounced):
		respondJSON(w, commandResponse{Accepted: false, Command: string(kind), Session: s.view(s.sess.State())}, http.StatusOK)
	case err != nil:
		s.respondCommandError(w, err)
	default:
		respondJSON(w, commandResponse{Accepted: res.Accepted, Command: string(kind), Session: s.view(res.State)}, http.StatusOK)
	}
}

func (s *Server) postFinalize(w http.ResponseWriter, r *http.Request) {
	var photo *finalize.Photo
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxPhotoBytes); err != nil {
			respondError(w, "BAD_REQUEST", "invalid multipart body", http.StatusBadRequest)
			return
		}
		file, hdr, err := r.FormFile("photo")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			respondError(w, "BAD_REQUEST", "unreadable photo", http.StatusBadRequest)
			return
		default:
			defer file.Close()
			photo = &finalize.Photo{Name: hdr.Filename, ContentType: hdr.Header.Get("Content-Type"), Data: file}
		}
	}

	rec, err := s.sess.Finalize(r.Context(), photo)
	switch {
	case err == nil:
		respondJSON(w, rec, http.StatusCreated)
	case errors.Is(err, finalize.ErrNotFinished):
		respondError(w, "NOT_FINISHED", err.Error(), http.StatusConflict, "end the session first")
	case errors.Is(err, finalize.ErrNothingToRecord):
		respondError(w, "NOTHING_TO_RECORD", err.Error(), http.StatusConflict)
	case errors.Is(err, finalize.ErrAlreadyFinalized):
		respondError(w, "ALREADY_FINALIZED", err.Error(), http.StatusConflict)
	case errors.Is(err, session.ErrAbandoned):
		respondError(w, "ABANDONED", err.Error(), http.StatusConflict)
	case errors.Is(err, finalize.ErrIdentity):
		respondError(w, "NOT_SIGNED_IN", err.Error(), http.StatusUnauthorized, "sign in and retry")
	case errors.Is(err, finalize.ErrRecordWrite):
		respondError(w, "RECORD_WRITE_FAILED", err.Error(), http.StatusBadGateway, "retry; the session is kept until it is saved")
	case errors.Is(err, session.ErrNoFinalizer):
		respondError(w, "NO_RECORD_STORE", err.Error(), http.StatusNotImplemented)
	default:
		respondError(w, "INTERNAL", err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) respondCommandError(w http.ResponseWriter, err error) {
	if errors.Is(err, command.ErrClosed) {
		respondError(w, "SESSION_CLOSED", "session is no longer running", http.StatusConflict)
		return
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		respondError(w, "TIMEOUT", err.Error(), http.StatusServiceUnavailable)
		return
	}
	respondError(w, "INTERNAL", err.Error(), http.StatusInternalServerError)
}

func respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, code, message string, status int, hint ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = output.NewNDJSONWriter(w).WriteError(code, message, hint...)
}
