// Package records keeps finished sessions in a SQL database: SQLite locally, Postgres when a
// DSN is configured.
package records

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/vburojevic/rounds/internal/domain"
)

var ErrUnknownDriver = errors.New("unknown record store driver")

// Driver names accepted by Open.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store implements finalize.RecordStore over database/sql.
type Store struct {
	db       *sql.DB
	postgres bool
}

// Open connects to driver at target (a file path for sqlite, a DSN for postgres) and
// applies the schema.
func Open(ctx context.Context, driver, target string) (*Store, error) {
	switch driver {
	case DriverSQLite, "":
		return OpenSQLite(ctx, target)
	case DriverPostgres:
		return OpenPostgres(ctx, target)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, driver)
	}
}

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(ctx context.Context, path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One writer at a time; concurrent writers would hit "database is locked".
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode=WAL", "PRAGMA busy_timeout=5000"} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	s := &Store{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// OpenPostgres connects with a lib/pq DSN.
func OpenPostgres(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db, postgres: true}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS finished_sessions (
	id                TEXT PRIMARY KEY,
	session_id        TEXT NOT NULL UNIQUE,
	user_id           TEXT NOT NULL,
	status            TEXT NOT NULL,
	started_at        TEXT NOT NULL,
	finished_at       TEXT NOT NULL,
	duration_minutes  INTEGER NOT NULL,
	round_count       INTEGER NOT NULL,
	rounds_completed  INTEGER NOT NULL,
	intensity_json    TEXT NOT NULL,
	average_intensity REAL NOT NULL,
	proof_photo_url   TEXT
);
CREATE INDEX IF NOT EXISTS idx_finished_sessions_finished_at ON finished_sessions(finished_at);
`

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for Postgres.
func rebind(postgres bool, query string) string {
	if !postgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

const upsert = `
INSERT INTO finished_sessions (
	id, session_id, user_id, status, started_at, finished_at, duration_minutes,
	round_count, rounds_completed, intensity_json, average_intensity, proof_photo_url
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (session_id) DO UPDATE SET
	user_id = excluded.user_id,
	status = excluded.status,
	started_at = excluded.started_at,
	finished_at = excluded.finished_at,
	duration_minutes = excluded.duration_minutes,
	round_count = excluded.round_count,
	rounds_completed = excluded.rounds_completed,
	intensity_json = excluded.intensity_json,
	average_intensity = excluded.average_intensity,
	proof_photo_url = excluded.proof_photo_url`

// CreateFinishedSession writes rec, replacing an earlier write for the same session.
func (s *Store) CreateFinishedSession(ctx context.Context, rec *domain.FinishedSession) error {
	scores, err := json.Marshal(rec.IntensityByRound)
	if err != nil {
		return fmt.Errorf("encode intensity: %w", err)
	}
	var photo sql.NullString
	if rec.ProofPhotoURL != "" {
		photo = sql.NullString{String: rec.ProofPhotoURL, Valid: true}
	}
	_, err = s.db.ExecContext(ctx, rebind(s.postgres, upsert),
		rec.ID, rec.SessionID, rec.UserID, rec.Status,
		formatTime(rec.StartedAt), formatTime(rec.FinishedAt), rec.DurationMinutes,
		rec.RoundCount, rec.RoundsCompleted, string(scores), rec.AverageIntensity, photo,
	)
	if err != nil {
		return fmt.Errorf("insert finished session: %w", err)
	}
	return nil
}

// ListFinished returns the most recent sessions first. limit<=0 returns all.
func (s *Store) ListFinished(ctx context.Context, limit int) ([]*domain.FinishedSession, error) {
	query := `SELECT id, session_id, user_id, status, started_at, finished_at, duration_minutes,
		round_count, rounds_completed, intensity_json, average_intensity, proof_photo_url
		FROM finished_sessions ORDER BY finished_at DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, rebind(s.postgres, query), args...)
	if err != nil {
		return nil, fmt.Errorf("list finished sessions: %w", err)
	}
	defer rows.Close()

	var out []*domain.FinishedSession
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Stats aggregates all recorded sessions.
type Stats struct {
	Sessions         int     `json:"sessions"`
	Minutes          int     `json:"minutes"`
	Rounds           int     `json:"rounds"`
	AverageIntensity float64 `json:"average_intensity"`
}

// Stats totals every stored session. The intensity average weights sessions equally.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	var avg sql.NullFloat64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(SUM(duration_minutes), 0),
		COALESCE(SUM(rounds_completed), 0), AVG(average_intensity) FROM finished_sessions`).
		Scan(&st.Sessions, &st.Minutes, &st.Rounds, &avg)
	if err != nil {
		return Stats{}, fmt.Errorf("session stats: %w", err)
	}
	st.AverageIntensity = avg.Float64
	return st, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanRecord(rows *sql.Rows) (*domain.FinishedSession, error) {
	var (
		rec               domain.FinishedSession
		started, finished string
		scores            string
		photo             sql.NullString
	)
	if err := rows.Scan(&rec.ID, &rec.SessionID, &rec.UserID, &rec.Status, &started, &finished,
		&rec.DurationMinutes, &rec.RoundCount, &rec.RoundsCompleted, &scores, &rec.AverageIntensity, &photo); err != nil {
		return nil, fmt.Errorf("scan finished session: %w", err)
	}
	var err error
	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if err := json.Unmarshal([]byte(scores), &rec.IntensityByRound); err != nil {
		return nil, fmt.Errorf("decode intensity: %w", err)
	}
	rec.Type = "record"
	rec.SchemaVersion = domain.SchemaVersion
	rec.ProofPhotoURL = photo.String
	return &rec, nil
}

// timeLayout keeps every stored timestamp the same width so text ordering is time ordering.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}
