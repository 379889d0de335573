package domain

import (
	"math"
	"time"
)

// StatusFinished is the only status written for completed sessions.
const StatusFinished = "finished"

// User attributes a finished session.
type User struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

// FinishedSession is the single record written for a completed session.
type FinishedSession struct {
	Type             string            `json:"type"` // "record"
	SchemaVersion    int               `json:"schemaVersion"`
	ID               string            `json:"id"`
	SessionID        string            `json:"session_id"`
	UserID           string            `json:"user_id"`
	Status           string            `json:"status"`
	StartedAt        time.Time         `json:"started_at"`
	FinishedAt       time.Time         `json:"finished_at"`
	DurationMinutes  int               `json:"duration_minutes"`
	RoundCount       int               `json:"round_count"`
	RoundsCompleted  int               `json:"rounds_completed"`
	IntensityByRound map[int]Intensity `json:"intensity_by_round"`
	AverageIntensity float64           `json:"average_intensity"`
	ProofPhotoURL    string            `json:"proof_photo_url,omitempty"`
}

// DurationMinutes rounds the elapsed wall time to the nearest whole minute.
func DurationMinutes(startedAt, finishedAt time.Time) int {
	d := finishedAt.Sub(startedAt)
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Minutes()))
}
