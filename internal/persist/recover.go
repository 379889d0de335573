package persist

import (
	"context"
	"errors"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/domain"
)

// DefaultStaleAfter is how long a snapshot stays resumable.
const DefaultStaleAfter = 6 * time.Hour

// Recovery applies the resume policy at session start.
type Recovery struct {
	Store      Store
	StaleAfter time.Duration
	Clock      clock.Clock
	Logger     *zap.Logger
}

// Find returns the snapshot to resume, or nil to start fresh. With an empty key the newest
// usable snapshot wins. Stale and corrupt snapshots are cleared on the way.
func (r Recovery) Find(ctx context.Context, key string) (*domain.Snapshot, error) {
	if key != "" {
		return r.check(ctx, key)
	}

	keys, err := r.Store.Keys(ctx)
	if err != nil {
		return nil, err
	}
	var found []*domain.Snapshot
	for _, k := range keys {
		snap, err := r.check(ctx, k)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			found = append(found, snap)
		}
	}
	if len(found) == 0 {
		return nil, nil
	}
	return lo.MaxBy(found, func(a, b *domain.Snapshot) bool { return a.SavedAt.After(b.SavedAt) }), nil
}

func (r Recovery) check(ctx context.Context, key string) (*domain.Snapshot, error) {
	log := r.logger().With(zap.String("session_id", key))

	snap, err := r.Store.Load(ctx, key)
	switch {
	case errors.Is(err, domain.ErrCorruptSnapshot):
		log.Warn("discarding unreadable snapshot", zap.Error(err))
		return nil, r.Store.Clear(ctx, key)
	case err != nil:
		return nil, err
	case snap == nil:
		return nil, nil
	}

	staleAfter := r.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if snap.IsStale(r.now(), staleAfter) {
		log.Info("discarding stale snapshot", zap.Time("saved_at", snap.SavedAt))
		return nil, r.Store.Clear(ctx, key)
	}
	return snap, nil
}

func (r Recovery) now() time.Time {
	if r.Clock == nil {
		return time.Now()
	}
	return r.Clock.Now()
}

func (r Recovery) logger() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}
