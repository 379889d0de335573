// Package supabase backs identity, proof photo storage and finished-session records with a
// Supabase project.
package supabase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/supabase-community/gotrue-go/types"
	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"

	"github.com/vburojevic/rounds/internal/domain"
)

var ErrNotSignedIn = errors.New("supabase access token is required")

// Config holds Supabase connection settings.
type Config struct {
	URL         string
	APIKey      string
	AccessToken string // user JWT used to resolve the current user
	Bucket      string // proof photos
	Table       string // finished sessions
}

// Client implements finalize.Identity, finalize.FileStore and finalize.RecordStore.
type Client struct {
	client *supabase.Client
	cfg    Config
}

// New creates a Supabase client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("supabase URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("supabase API key is required")
	}
	if cfg.Bucket == "" {
		cfg.Bucket = "session-proofs"
	}
	if cfg.Table == "" {
		cfg.Table = "finished_sessions"
	}

	client, err := supabase.NewClient(strings.TrimRight(cfg.URL, "/"), cfg.APIKey, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return &Client{client: client, cfg: cfg}, nil
}

// CurrentUser resolves the user behind the configured access token.
func (c *Client) CurrentUser(_ context.Context) (domain.User, error) {
	if c.cfg.AccessToken == "" {
		return domain.User{}, ErrNotSignedIn
	}
	resp, err := c.client.Auth.WithToken(c.cfg.AccessToken).GetUser()
	if err != nil {
		return domain.User{}, fmt.Errorf("get user: %w", err)
	}
	return userFromResponse(resp), nil
}

// userFromResponse prefers the display_name metadata and falls back to the email.
func userFromResponse(resp *types.UserResponse) domain.User {
	name := resp.Email
	if v, ok := resp.UserMetadata["display_name"].(string); ok && v != "" {
		name = v
	}
	return domain.User{ID: resp.ID.String(), DisplayName: name}
}

// Upload stores a proof photo and returns its public URL.
func (c *Client) Upload(_ context.Context, name, contentType string, r io.Reader) (string, error) {
	upsert := true
	opts := storage_go.FileOptions{Upsert: &upsert}
	if contentType != "" {
		opts.ContentType = &contentType
	}
	if _, err := c.client.Storage.UploadFile(c.cfg.Bucket, name, r, opts); err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return c.client.Storage.GetPublicUrl(c.cfg.Bucket, name).SignedURL, nil
}

type sessionRow struct {
	ID               string                   `json:"id"`
	SessionID        string                   `json:"session_id"`
	UserID           string                   `json:"user_id"`
	Status           string                   `json:"status"`
	StartedAt        string                   `json:"started_at"`
	FinishedAt       string                   `json:"finished_at"`
	DurationMinutes  int                      `json:"duration_minutes"`
	RoundCount       int                      `json:"round_count"`
	RoundsCompleted  int                      `json:"rounds_completed"`
	IntensityByRound map[int]domain.Intensity `json:"intensity_by_round"`
	AverageIntensity float64                  `json:"average_intensity"`
	ProofPhotoURL    *string                  `json:"proof_photo_url"`
}

// CreateFinishedSession upserts rec on session_id so a retried write cannot duplicate it.
func (c *Client) CreateFinishedSession(_ context.Context, rec *domain.FinishedSession) error {
	row := sessionRow{
		ID:               rec.ID,
		SessionID:        rec.SessionID,
		UserID:           rec.UserID,
		Status:           rec.Status,
		StartedAt:        rec.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		FinishedAt:       rec.FinishedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		DurationMinutes:  rec.DurationMinutes,
		RoundCount:       rec.RoundCount,
		RoundsCompleted:  rec.RoundsCompleted,
		IntensityByRound: rec.IntensityByRound,
		AverageIntensity: rec.AverageIntensity,
	}
	if rec.ProofPhotoURL != "" {
		row.ProofPhotoURL = &rec.ProofPhotoURL
	}

	if _, _, err := c.client.From(c.cfg.Table).Insert(row, true, "session_id", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("insert into %s: %w", c.cfg.Table, err)
	}
	return nil
}
