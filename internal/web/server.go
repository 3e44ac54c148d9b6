package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"emobot/internal/domain"
	"emobot/internal/emotionlog"
	"emobot/internal/session"
)

type Session interface {
	Start(ctx context.Context) (string, error)
	Stop() error
	Toggle(ctx context.Context) (domain.SessionState, error)
	Snapshot() domain.SessionSnapshot
	LatestFrame() (domain.Frame, bool)
	Log() *emotionlog.Log
}

type Robot interface {
	Command(ctx context.Context, cmd domain.RobotCommand)
	PanTilt(ctx context.Context, pan, tilt int)
}

type Server struct {
	session Session
	robot   Robot
	hub     *Hub
	logger  *slog.Logger
}

type statsRow struct {
	Emotion string  `json:"emotion"`
	Seconds float64 `json:"seconds"`
}

func NewServer(sess Session, robot Robot, hub *Hub, logger *slog.Logger) *Server {
	return &Server{session: sess, robot: robot, hub: hub, logger: logger}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/", servePage(emotionPageHTML))
	r.Get("/stats", servePage(statsPageHTML))
	r.Get("/control", servePage(controlPageHTML))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/ws", s.hub.ServeWS)

	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/session/start", s.handleStart)
		r.Post("/session/stop", s.handleStop)
		r.Post("/session/toggle", s.handleToggle)
		r.Get("/frame.jpg", s.handleFrame)
		r.Get("/stats", s.handleStats)
		r.Get("/samples", s.handleSamples)
		r.Post("/robot/command", s.handleCommand)
		r.Post("/robot/pantilt", s.handlePanTilt)
	})
	return r
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.session.Snapshot())
}

func (s *Server) handleStart(w http.ResponseWriter, req *http.Request) {
	sessionID, err := s.session.Start(req.Context())
	switch {
	case errors.Is(err, session.ErrAlreadyRunning):
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
	case err != nil:
		s.logger.Error("start session failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error()})
	default:
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "session_id": sessionID})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	if err := s.session.Stop(); err != nil {
		writeJSON(w, http.StatusConflict, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleToggle(w http.ResponseWriter, req *http.Request) {
	state, err := s.session.Toggle(req.Context())
	if err != nil {
		s.logger.Error("toggle session failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"state": state, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": state})
}

func (s *Server) handleFrame(w http.ResponseWriter, _ *http.Request) {
	frame, ok := s.session.LatestFrame()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": "no frame captured yet"})
		return
	}
	w.Header().Set("content-type", "image/jpeg")
	w.Header().Set("cache-control", "no-store")
	w.Header().Set("x-captured-at", frame.CapturedAt.UTC().Format(time.RFC3339Nano))
	w.Header().Set("content-length", strconv.Itoa(len(frame.JPEG)))
	_, _ = w.Write(frame.JPEG)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	log := s.session.Log()
	summary := log.Summarize()
	rows := make([]statsRow, 0, len(summary))
	for _, row := range summary.Rows() {
		rows = append(rows, statsRow{Emotion: row.Emotion, Seconds: row.Seconds()})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"rows":          rows,
		"total_seconds": summary.Total().Seconds(),
		"sample_count":  log.Len(),
		"labels":        domain.Labels,
	})
}

func (s *Server) handleSamples(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"samples": s.session.Log().Samples()})
}

func (s *Server) handleCommand(w http.ResponseWriter, req *http.Request) {
	var in struct {
		Cmd string `json:"cmd"`
	}
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	cmd, err := domain.ParseRobotCommand(in.Cmd)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": err.Error()})
		return
	}
	s.robot.Command(req.Context(), cmd)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "cmd": cmd})
}

func (s *Server) handlePanTilt(w http.ResponseWriter, req *http.Request) {
	var in domain.PanTilt
	if err := json.NewDecoder(req.Body).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid json"})
		return
	}
	if !in.InRange() {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "pan must be within [-90,90] and tilt within [-45,45]"})
		return
	}
	s.robot.PanTilt(req.Context(), in.Pan, in.Tilt)
	writeJSON(w, http.StatusAccepted, map[string]any{"ok": true, "pan": in.Pan, "tilt": in.Tilt})
}

func servePage(html string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("content-type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(html))
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
