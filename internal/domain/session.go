package domain

import "time"

type SessionState string

const (
	StateIdle    SessionState = "idle"
	StateRunning SessionState = "running"
)

type Frame struct {
	JPEG       []byte
	Width      int
	Height     int
	CapturedAt time.Time
}

type SessionSnapshot struct {
	State         SessionState   `json:"state"`
	SessionID     string         `json:"session_id,omitempty"`
	StartedAt     *time.Time     `json:"started_at,omitempty"`
	SampleCount   int            `json:"sample_count"`
	LatestEmotion *EmotionSample `json:"latest_emotion,omitempty"`
	LastError     string         `json:"last_error,omitempty"`
}
