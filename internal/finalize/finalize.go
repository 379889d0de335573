// Package finalize writes the single finished-session record for a completed session.
package finalize

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"path"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/intensity"
)

var (
	ErrNotFinished      = errors.New("session is not finished")
	ErrNothingToRecord  = errors.New("session ended before any round started")
	ErrAlreadyFinalized = errors.New("session already finalized")
	ErrIdentity         = errors.New("cannot resolve current user")
	ErrRecordWrite      = errors.New("cannot save finished session")
)

// Identity resolves the signed-in user.
type Identity interface {
	CurrentUser(ctx context.Context) (domain.User, error)
}

// FileStore uploads a blob and returns its public URL.
type FileStore interface {
	Upload(ctx context.Context, name, contentType string, r io.Reader) (string, error)
}

// RecordStore persists finished sessions. Implementations upsert on SessionID.
type RecordStore interface {
	CreateFinishedSession(ctx context.Context, rec *domain.FinishedSession) error
}

// SnapshotClearer removes the local snapshot once the record is safe.
type SnapshotClearer interface {
	Clear(ctx context.Context, key string) error
}

// Photo is an optional proof image.
type Photo struct {
	Name        string
	ContentType string
	Data        io.Reader
}

// Request carries the finished session to record.
type Request struct {
	SessionID string
	Config    domain.SessionConfig
	State     domain.SessionState
	Photo     *Photo
}

// Finalizer records each session at most once per process. A failed attempt leaves the
// snapshot in place so it can be retried.
type Finalizer struct {
	identity  Identity
	files     FileStore
	records   RecordStore
	snapshots SnapshotClearer
	logger    *zap.Logger

	mu   sync.Mutex
	done map[string]bool
}

// Option configures a Finalizer.
type Option func(*Finalizer)

func WithFileStore(fs FileStore) Option { return func(f *Finalizer) { f.files = fs } }
func WithSnapshots(s SnapshotClearer) Option { return func(f *Finalizer) { f.snapshots = s } }
func WithLogger(l *zap.Logger) Option { return func(f *Finalizer) { f.logger = l } }

// New creates a Finalizer. Without a FileStore photos are ignored.
func New(identity Identity, records RecordStore, opts ...Option) *Finalizer {
	f := &Finalizer{
		identity: identity,
		records:  records,
		logger:   zap.NewNop(),
		done:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Finalize builds and writes the record. Photo upload failures are logged and the record is
// written without a photo. Only a successful write clears the snapshot.
func (f *Finalizer) Finalize(ctx context.Context, req Request) (*domain.FinishedSession, error) {
	if req.State.Phase != domain.PhaseFinished {
		return nil, ErrNotFinished
	}

	f.mu.Lock()
	if f.done[req.SessionID] {
		f.mu.Unlock()
		return nil, ErrAlreadyFinalized
	}
	f.mu.Unlock()

	log := f.logger.With(zap.String("session_id", req.SessionID))

	if !req.State.Started() {
		f.markDone(req.SessionID)
		f.clearSnapshot(ctx, req.SessionID, log)
		return nil, ErrNothingToRecord
	}

	user, err := f.identity.CurrentUser(ctx)
	if err != nil {
		log.Error("finalize: identity lookup failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrIdentity, err)
	}

	rec, err := BuildRecord(req, user)
	if err != nil {
		return nil, err
	}
	rec.ProofPhotoURL = f.uploadPhoto(ctx, req, user, log)

	if err := f.records.CreateFinishedSession(ctx, rec); err != nil {
		log.Error("finalize: record write failed; snapshot kept for retry", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrRecordWrite, err)
	}

	f.markDone(req.SessionID)
	f.clearSnapshot(ctx, req.SessionID, log)
	log.Info("session finalized",
		zap.String("record_id", rec.ID),
		zap.Int("duration_minutes", rec.DurationMinutes),
		zap.Int("rounds_completed", rec.RoundsCompleted))
	return rec, nil
}

// BuildRecord assembles the finished-session record for user.
func BuildRecord(req Request, user domain.User) (*domain.FinishedSession, error) {
	id, err := RecordID(req.SessionID, req.State.StartedAt)
	if err != nil {
		return nil, err
	}
	st := req.State.Clone()
	scores := st.IntensityByRound
	if scores == nil {
		scores = map[int]domain.Intensity{}
	}
	return &domain.FinishedSession{
		Type:             "record",
		SchemaVersion:    domain.SchemaVersion,
		ID:               id,
		SessionID:        req.SessionID,
		UserID:           user.ID,
		Status:           domain.StatusFinished,
		StartedAt:        st.StartedAt.UTC(),
		FinishedAt:       st.FinishedAt.UTC(),
		DurationMinutes:  domain.DurationMinutes(st.StartedAt, st.FinishedAt),
		RoundCount:       req.Config.RoundCount,
		RoundsCompleted:  len(scores),
		IntensityByRound: scores,
		AverageIntensity: intensity.Summarize(scores).Average,
	}, nil
}

// RecordID derives a ULID from the session id so retries reuse the same record id. The
// timestamp part is the session start, which keeps ids sortable.
func RecordID(sessionID string, startedAt time.Time) (string, error) {
	sum := sha256.Sum256([]byte(sessionID))
	id, err := ulid.New(ulid.Timestamp(startedAt), bytes.NewReader(sum[:]))
	if err != nil {
		return "", fmt.Errorf("derive record id: %w", err)
	}
	return id.String(), nil
}

func (f *Finalizer) uploadPhoto(ctx context.Context, req Request, user domain.User, log *zap.Logger) string {
	if req.Photo == nil || req.Photo.Data == nil {
		return ""
	}
	if f.files == nil {
		log.Warn("proof photo ignored: no file store configured")
		return ""
	}
	name := req.Photo.Name
	if name == "" {
		name = "proof.jpg"
	}
	objectPath := path.Join(user.ID, req.SessionID, path.Base(name))
	url, err := f.files.Upload(ctx, objectPath, req.Photo.ContentType, req.Photo.Data)
	if err != nil {
		log.Warn("proof photo upload failed; finalizing without it", zap.Error(err))
		return ""
	}
	return url
}

func (f *Finalizer) markDone(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.done[id] = true
}

func (f *Finalizer) clearSnapshot(ctx context.Context, id string, log *zap.Logger) {
	if f.snapshots == nil {
		return
	}
	if err := f.snapshots.Clear(ctx, id); err != nil {
		log.Warn("finalize: snapshot clear failed", zap.Error(err))
	}
}
