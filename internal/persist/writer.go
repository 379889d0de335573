package persist

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/vburojevic/rounds/internal/domain"
)

// Writer saves snapshots off the caller's goroutine. Only the newest pending snapshot is
// written; a failed write is retried by the next Save or by Flush.
type Writer struct {
	store   Store
	logger  *zap.Logger
	onError func(error)

	mu      sync.Mutex
	pending *domain.Snapshot
	failed  *domain.Snapshot
	cleared map[string]bool
	closed  bool

	// ioMu orders store I/O so a Clear can never be overtaken by an older Save.
	ioMu sync.Mutex

	wake chan struct{}
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// WriterOption configures a Writer.
type WriterOption func(*Writer)

// WithWriterLogger sets the logger.
func WithWriterLogger(l *zap.Logger) WriterOption {
	return func(w *Writer) { w.logger = l }
}

// WithErrorHook is called after each failed background save.
func WithErrorHook(fn func(error)) WriterOption {
	return func(w *Writer) { w.onError = fn }
}

// NewWriter starts the background writer for store.
func NewWriter(store Store, opts ...WriterOption) *Writer {
	w := &Writer{
		store:   store,
		logger:  zap.NewNop(),
		cleared: make(map[string]bool),
		wake:    make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	go w.run()
	return w
}

// Save queues snap without blocking, replacing any snapshot not yet written. Saves for a
// session that was already cleared are ignored.
func (w *Writer) Save(snap *domain.Snapshot) {
	if snap == nil {
		return
	}
	w.mu.Lock()
	if w.closed || w.cleared[snap.SessionID] {
		w.mu.Unlock()
		return
	}
	w.pending = snap
	w.failed = nil
	w.mu.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Flush synchronously writes whatever is pending, including a previously failed snapshot.
func (w *Writer) Flush(ctx context.Context) error {
	w.ioMu.Lock()
	defer w.ioMu.Unlock()

	w.mu.Lock()
	snap := w.pending
	if snap == nil {
		snap = w.failed
	}
	w.pending, w.failed = nil, nil
	w.mu.Unlock()

	if snap == nil {
		return nil
	}
	return w.write(ctx, snap)
}

// Clear drops any pending snapshot for key, waits for an in-flight save and removes the
// stored snapshot. Later saves for key are ignored.
func (w *Writer) Clear(ctx context.Context, key string) error {
	w.mu.Lock()
	w.cleared[key] = true
	if w.pending != nil && w.pending.SessionID == key {
		w.pending = nil
	}
	if w.failed != nil && w.failed.SessionID == key {
		w.failed = nil
	}
	w.mu.Unlock()

	w.ioMu.Lock()
	defer w.ioMu.Unlock()
	return w.store.Clear(ctx, key)
}

// Close flushes pending work and stops the background goroutine. Safe to call repeatedly.
func (w *Writer) Close(ctx context.Context) error {
	var err error
	w.once.Do(func() {
		close(w.stop)
		<-w.done
		err = w.Flush(ctx)
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
	})
	return err
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case <-w.wake:
			w.ioMu.Lock()
			w.mu.Lock()
			snap := w.pending
			w.pending = nil
			w.mu.Unlock()
			if snap != nil {
				_ = w.write(context.Background(), snap)
			}
			w.ioMu.Unlock()
		}
	}
}

// write must be called with ioMu held.
func (w *Writer) write(ctx context.Context, snap *domain.Snapshot) error {
	err := w.store.Save(ctx, snap)
	if err == nil {
		return nil
	}
	w.logger.Warn("snapshot save failed; will retry on next transition",
		zap.String("session_id", snap.SessionID), zap.Error(err))

	w.mu.Lock()
	if w.pending == nil && !w.cleared[snap.SessionID] {
		w.failed = snap
	}
	w.mu.Unlock()
	if w.onError != nil {
		w.onError(err)
	}
	return err
}
