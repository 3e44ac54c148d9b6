package domain

// MQTT payloads

type EmotionEvent struct {
	DashboardID string `json:"dashboard_id"`
	SessionID   string `json:"session_id"`
	Emotion     string `json:"emotion"`
	TS          string `json:"ts"`
}

type CommandEvent struct {
	DashboardID string `json:"dashboard_id,omitempty"`
	Kind        string `json:"kind"`
	Command     string `json:"command,omitempty"`
	Pan         *int   `json:"pan,omitempty"`
	Tilt        *int   `json:"tilt,omitempty"`
	Delivered   bool   `json:"delivered"`
	Error       string `json:"error,omitempty"`
	TS          string `json:"ts"`
}

const (
	CommandKindDrive   = "drive"
	CommandKindPanTilt = "pantilt"
)

type StateEvent struct {
	DashboardID string       `json:"dashboard_id,omitempty"`
	SessionID   string       `json:"session_id,omitempty"`
	State       SessionState `json:"state"`
	Error       string       `json:"error,omitempty"`
	TS          string       `json:"ts"`
}
