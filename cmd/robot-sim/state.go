package main

import (
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"emobot/internal/domain"
)

const maxLogLines = 200

type robotState struct {
	mu         sync.RWMutex
	motion     string
	pan        int
	tilt       int
	lastAction string
	updatedAt  time.Time
	commands   int
	logs       []string
}

type stateSnapshot struct {
	Motion     string    `json:"motion"`
	Pan        int       `json:"pan"`
	Tilt       int       `json:"tilt"`
	LastAction string    `json:"last_action"`
	UpdatedAt  time.Time `json:"updated_at"`
	Commands   int       `json:"commands"`
	Logs       []string  `json:"logs"`
}

func newRobotState() *robotState {
	return &robotState{motion: string(domain.CommandStop)}
}

// handleControl and handlePanTilt mirror the firmware: GET with query
// parameters, plain "OK" body, 400 on malformed input.
func (s *robotState) handleControl(w http.ResponseWriter, req *http.Request) {
	cmd, err := domain.ParseRobotCommand(req.URL.Query().Get("cmd"))
	if err != nil {
		s.appendLog(fmt.Sprintf("%s /control rejected: %v", time.Now().Format(time.RFC3339), err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.applyMotion(cmd, time.Now())
	_, _ = w.Write([]byte("OK"))
}

func (s *robotState) handlePanTilt(w http.ResponseWriter, req *http.Request) {
	q := req.URL.Query()
	pan, panErr := strconv.Atoi(q.Get("pan"))
	tilt, tiltErr := strconv.Atoi(q.Get("tilt"))
	if panErr != nil || tiltErr != nil {
		s.appendLog(fmt.Sprintf("%s /pantilt rejected: %s", time.Now().Format(time.RFC3339), req.URL.RawQuery))
		http.Error(w, "pan and tilt must be integers", http.StatusBadRequest)
		return
	}
	s.applyPanTilt(pan, tilt, time.Now())
	_, _ = w.Write([]byte("OK"))
}

func (s *robotState) applyMotion(cmd domain.RobotCommand, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motion = string(cmd)
	s.lastAction = "motion: " + string(cmd)
	s.updatedAt = now
	s.commands++
	s.appendLogLocked(fmt.Sprintf("%s control cmd=%s", now.Format(time.RFC3339), cmd))
}

// applyPanTilt clamps to the servo range; the dashboard does not.
func (s *robotState) applyPanTilt(pan, tilt int, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pan = clamp(pan, domain.PanMin, domain.PanMax)
	s.tilt = clamp(tilt, domain.TiltMin, domain.TiltMax)
	s.lastAction = fmt.Sprintf("pan-tilt: %d/%d", s.pan, s.tilt)
	s.updatedAt = now
	s.commands++
	s.appendLogLocked(fmt.Sprintf("%s pantilt pan=%d tilt=%d", now.Format(time.RFC3339), pan, tilt))
}

func (s *robotState) observeDashboardCommand(dashboardID string, ev domain.CommandEvent) {
	detail := ev.Command
	if ev.Kind == domain.CommandKindPanTilt && ev.Pan != nil && ev.Tilt != nil {
		detail = fmt.Sprintf("pan=%d tilt=%d", *ev.Pan, *ev.Tilt)
	}
	line := fmt.Sprintf("%s [mqtt][dashboard:%s] %s %s delivered=%v", time.Now().Format(time.RFC3339), dashboardID, ev.Kind, detail, ev.Delivered)
	if ev.Error != "" {
		line += " error=" + ev.Error
	}
	s.appendLog(line)
}

func (s *robotState) snapshot() stateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logs := make([]string, len(s.logs))
	copy(logs, s.logs)
	return stateSnapshot{
		Motion:     s.motion,
		Pan:        s.pan,
		Tilt:       s.tilt,
		LastAction: s.lastAction,
		UpdatedAt:  s.updatedAt,
		Commands:   s.commands,
		Logs:       logs,
	}
}

func (s *robotState) appendLog(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.appendLogLocked(line)
}

func (s *robotState) appendLogLocked(line string) {
	s.logs = append(s.logs, line)
	if len(s.logs) > maxLogLines {
		s.logs = s.logs[len(s.logs)-maxLogLines:]
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
