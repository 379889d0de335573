package cli

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/domain"
	"github.com/vburojevic/rounds/internal/finalize"
	"github.com/vburojevic/rounds/internal/session"
)

const (
	noticeInterrupted     = "interrupted"
	noticeNothingToRecord = "nothing_to_record"
	noticeAbandoned       = "abandoned"
	noticePhotoSkipped    = "photo_skipped"
)

// openHost validates flags, opens the session's dependencies and recovers or creates the
// session. The caller closes deps after the host.
func openHost(ctx context.Context, globals *Globals, f *SessionFlags, cmd string) (*session.Host, *sessionDeps, error) {
	if err := validateFlags(globals, f); err != nil {
		return nil, nil, err
	}
	logger := sessionLogger(globals, cmd, f.SessionID)
	deps, err := f.openDeps(ctx, globals, logger)
	if err != nil {
		return nil, nil, err
	}
	host, err := session.Open(ctx, deps.opts)
	if err != nil {
		deps.Close()
		return nil, nil, outputErrorCommon(globals, "SESSION_OPEN_FAILED", err.Error(), "run with --fresh to start a new session")
	}
	if host.Recovered() {
		globals.Debug("resumed session %s", host.ID())
	} else {
		globals.Debug("new session %s: %s", host.ID(), planLine(host.Config()))
	}
	return host, deps, nil
}

func closeHost(globals *Globals, host *session.Host) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := host.Close(ctx); err != nil {
		globals.Logger().Warn("close session", zap.String("session_id", host.ID()), zap.Error(err))
	}
}

// finishSession runs after the host stops. A finished session is recorded; an
// interrupted one stays saved for the next run.
func finishSession(globals *Globals, host *session.Host, photoPath string) (*domain.FinishedSession, error) {
	w := globals.Writer()
	now := time.Now()

	if host.State().Phase != domain.PhaseFinished {
		return nil, w.WriteNotice(domain.NewNotice(host.ID(), noticeInterrupted, "progress saved; run again to resume", now))
	}
	if host.Abandoned() {
		return nil, w.WriteNotice(domain.NewNotice(host.ID(), noticeAbandoned, "session abandoned; nothing was saved", now))
	}

	photo, closePhoto, err := openPhoto(photoPath)
	if err != nil {
		// A missing photo never blocks the record.
		globals.Logger().Warn("skipping proof photo", zap.String("path", photoPath), zap.Error(err))
		if werr := w.WriteNotice(domain.NewNotice(host.ID(), noticePhotoSkipped, err.Error(), now)); werr != nil {
			return nil, werr
		}
		photo, closePhoto = nil, func() {}
	}
	defer closePhoto()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	rec, err := host.Finalize(ctx, photo)
	switch {
	case err == nil:
		return rec, w.WriteRecord(rec)
	case errors.Is(err, finalize.ErrNothingToRecord):
		return nil, w.WriteNotice(domain.NewNotice(host.ID(), noticeNothingToRecord, "session ended before any round started; nothing was saved", now))
	}
	return nil, finalizeError(globals, err)
}

func openPhoto(path string) (*finalize.Photo, func(), error) {
	if path == "" {
		return nil, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open photo: %w", err)
	}
	photo := &finalize.Photo{
		Name:        filepath.Base(path),
		ContentType: mime.TypeByExtension(filepath.Ext(path)),
		Data:        f,
	}
	return photo, func() { _ = f.Close() }, nil
}
