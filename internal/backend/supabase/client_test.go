package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/supabase-community/gotrue-go/types"

	"github.com/vburojevic/rounds/internal/domain"
)

type fakeProject struct {
	mu       sync.Mutex
	requests []string
	inserted []map[string]any
	uploaded string
}

func (f *fakeProject) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.requests = append(f.requests, r.Method+" "+r.URL.Path)
		f.mu.Unlock()

		switch {
		case r.URL.Path == "/auth/v1/user":
			if r.Header.Get("Authorization") != "Bearer user-jwt" {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"id":"6f1c2a9e-8a1e-4d6b-9a43-2f3b1a7c9d10","email":"ana@example.com","user_metadata":{"display_name":"Ana"}}`)

		case strings.HasPrefix(r.URL.Path, "/storage/v1/object/"):
			b, _ := io.ReadAll(r.Body)
			f.mu.Lock()
			f.uploaded = string(b)
			f.mu.Unlock()
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, `{"Key":"proofs/u/s/me.jpg"}`)

		case r.URL.Path == "/rest/v1/finished_sessions":
			var row map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
			assert.Equal(t, "session_id", r.URL.Query().Get("on_conflict"))
			f.mu.Lock()
			f.inserted = append(f.inserted, row)
			f.mu.Unlock()
			w.WriteHeader(http.StatusCreated)

		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})
}

func newTestClient(t *testing.T, token string) (*Client, *fakeProject) {
	t.Helper()
	fp := &fakeProject{}
	srv := httptest.NewServer(fp.handler(t))
	t.Cleanup(srv.Close)

	c, err := New(Config{URL: srv.URL, APIKey: "anon", AccessToken: token, Bucket: "proofs"})
	require.NoError(t, err)
	return c, fp
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{APIKey: "k"})
	assert.Error(t, err)
	_, err = New(Config{URL: "http://x"})
	assert.Error(t, err)
}

func TestCurrentUser(t *testing.T) {
	c, _ := newTestClient(t, "user-jwt")
	u, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "6f1c2a9e-8a1e-4d6b-9a43-2f3b1a7c9d10", u.ID)
	assert.Equal(t, "Ana", u.DisplayName)
}

func TestCurrentUserWithoutToken(t *testing.T) {
	c, _ := newTestClient(t, "")
	_, err := c.CurrentUser(context.Background())
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestUserFromResponseFallsBackToEmail(t *testing.T) {
	id := uuid.MustParse("6f1c2a9e-8a1e-4d6b-9a43-2f3b1a7c9d10")
	resp := &types.UserResponse{User: types.User{ID: id, Email: "ana@example.com"}}
	assert.Equal(t, domain.User{ID: id.String(), DisplayName: "ana@example.com"}, userFromResponse(resp))

	resp.UserMetadata = map[string]interface{}{"display_name": ""}
	assert.Equal(t, "ana@example.com", userFromResponse(resp).DisplayName)
}

func TestUploadReturnsPublicURL(t *testing.T) {
	c, fp := newTestClient(t, "user-jwt")
	url, err := c.Upload(context.Background(), "u/s/me.jpg", "image/jpeg", strings.NewReader("jpeg-bytes"))
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(url, "/object/public/proofs/u/s/me.jpg"), url)
	assert.Equal(t, "jpeg-bytes", fp.uploaded)
}

func TestCreateFinishedSessionUpserts(t *testing.T) {
	c, fp := newTestClient(t, "user-jwt")
	started := time.Date(2026, 1, 5, 6, 0, 0, 0, time.UTC)
	rec := &domain.FinishedSession{
		ID:               "01J0000000000000000000000",
		SessionID:        "sess-1",
		UserID:           "u-1",
		Status:           domain.StatusFinished,
		StartedAt:        started,
		FinishedAt:       started.Add(15 * time.Minute),
		DurationMinutes:  15,
		RoundCount:       3,
		RoundsCompleted:  3,
		IntensityByRound: map[int]domain.Intensity{0: {Scale: domain.ScaleNumeric, Value: 4}},
		AverageIntensity: 4,
	}
	require.NoError(t, c.CreateFinishedSession(context.Background(), rec))

	require.Len(t, fp.inserted, 1)
	row := fp.inserted[0]
	assert.Equal(t, "sess-1", row["session_id"])
	assert.Equal(t, "finished", row["status"])
	assert.Equal(t, float64(15), row["duration_minutes"])
	assert.Nil(t, row["proof_photo_url"])
}
