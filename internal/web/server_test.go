package web

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"emobot/internal/domain"
	"emobot/internal/emotionlog"
	"emobot/internal/session"
)

type fakeSession struct {
	log      *emotionlog.Log
	state    domain.SessionState
	startErr error
	frame    domain.Frame
}

func (f *fakeSession) Start(context.Context) (string, error) {
	if f.startErr != nil {
		return "", f.startErr
	}
	if f.state == domain.StateRunning {
		return "", session.ErrAlreadyRunning
	}
	f.state = domain.StateRunning
	return "s-1", nil
}

func (f *fakeSession) Stop() error {
	if f.state != domain.StateRunning {
		return session.ErrNotRunning
	}
	f.state = domain.StateIdle
	return nil
}

func (f *fakeSession) Toggle(ctx context.Context) (domain.SessionState, error) {
	if f.state == domain.StateRunning {
		return domain.StateIdle, f.Stop()
	}
	_, err := f.Start(ctx)
	return f.state, err
}

func (f *fakeSession) Snapshot() domain.SessionSnapshot {
	return domain.SessionSnapshot{State: f.state, SampleCount: f.log.Len()}
}

func (f *fakeSession) LatestFrame() (domain.Frame, bool) {
	return f.frame, len(f.frame.JPEG) > 0
}

func (f *fakeSession) Log() *emotionlog.Log {
	return f.log
}

type fakeRobot struct {
	mu       sync.Mutex
	commands []domain.RobotCommand
	panTilt  []domain.PanTilt
}

func (r *fakeRobot) Command(_ context.Context, cmd domain.RobotCommand) {
	r.mu.Lock()
	r.commands = append(r.commands, cmd)
	r.mu.Unlock()
}

func (r *fakeRobot) PanTilt(_ context.Context, pan, tilt int) {
	r.mu.Lock()
	r.panTilt = append(r.panTilt, domain.PanTilt{Pan: pan, Tilt: tilt})
	r.mu.Unlock()
}

func newTestServer() (*Server, *fakeSession, *fakeRobot) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sess := &fakeSession{log: emotionlog.New(), state: domain.StateIdle}
	robot := &fakeRobot{}
	return NewServer(sess, robot, NewHub(logger), logger), sess, robot
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestStatsEmpty(t *testing.T) {
	srv, _, _ := newTestServer()
	rec := do(t, srv.Routes(), http.MethodGet, "/api/stats", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status=%d", rec.Code)
	}
	var out struct {
		Rows        []statsRow `json:"rows"`
		SampleCount int        `json:"sample_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Rows == nil || len(out.Rows) != 0 || out.SampleCount != 0 {
		t.Fatalf("stats=%s, want empty rows array", rec.Body.String())
	}
}

func TestStatsAggregatesLog(t *testing.T) {
	srv, sess, _ := newTestServer()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sess.log.Record("happy", base)
	sess.log.Record("sad", base.Add(time.Second))
	sess.log.Record("happy", base.Add(3*time.Second))

	rec := do(t, srv.Routes(), http.MethodGet, "/api/stats", "")
	var out struct {
		Rows         []statsRow `json:"rows"`
		TotalSeconds float64    `json:"total_seconds"`
		SampleCount  int        `json:"sample_count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Rows) != 2 || out.Rows[0].Emotion != "sad" || out.Rows[0].Seconds != 2 || out.Rows[1].Emotion != "happy" || out.Rows[1].Seconds != 1 {
		t.Fatalf("rows=%+v", out.Rows)
	}
	if out.TotalSeconds != 3 || out.SampleCount != 3 {
		t.Fatalf("total=%v count=%d", out.TotalSeconds, out.SampleCount)
	}
}

func TestRobotCommandValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "forward", body: `{"cmd":"forward"}`, wantStatus: http.StatusAccepted},
		{name: "stop", body: `{"cmd":"stop"}`, wantStatus: http.StatusAccepted},
		{name: "unknown", body: `{"cmd":"jump"}`, wantStatus: http.StatusBadRequest},
		{name: "bad json", body: `{`, wantStatus: http.StatusBadRequest},
	}

	srv, _, robot := newTestServer()
	h := srv.Routes()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(t, h, http.MethodPost, "/api/robot/command", tt.body); rec.Code != tt.wantStatus {
				t.Fatalf("status=%d, want %d body=%s", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
	if len(robot.commands) != 2 || robot.commands[0] != domain.CommandForward || robot.commands[1] != domain.CommandStop {
		t.Fatalf("commands=%v", robot.commands)
	}
}

func TestPanTiltValidation(t *testing.T) {
	tests := []struct {
		body       string
		wantStatus int
	}{
		{body: `{"pan":-90,"tilt":-45}`, wantStatus: http.StatusAccepted},
		{body: `{"pan":90,"tilt":45}`, wantStatus: http.StatusAccepted},
		{body: `{"pan":91,"tilt":0}`, wantStatus: http.StatusBadRequest},
		{body: `{"pan":0,"tilt":-46}`, wantStatus: http.StatusBadRequest},
	}

	srv, _, robot := newTestServer()
	h := srv.Routes()
	for _, tt := range tests {
		if rec := do(t, h, http.MethodPost, "/api/robot/pantilt", tt.body); rec.Code != tt.wantStatus {
			t.Fatalf("%s: status=%d, want %d", tt.body, rec.Code, tt.wantStatus)
		}
	}
	want := []domain.PanTilt{{Pan: -90, Tilt: -45}, {Pan: 90, Tilt: 45}}
	if len(robot.panTilt) != 2 || robot.panTilt[0] != want[0] || robot.panTilt[1] != want[1] {
		t.Fatalf("pan-tilt=%v, want %v", robot.panTilt, want)
	}
}

func TestSessionEndpoints(t *testing.T) {
	srv, sess, _ := newTestServer()
	h := srv.Routes()

	if rec := do(t, h, http.MethodPost, "/api/session/stop", ""); rec.Code != http.StatusConflict {
		t.Fatalf("stop while idle status=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/session/start", ""); rec.Code != http.StatusOK {
		t.Fatalf("start status=%d", rec.Code)
	}
	if rec := do(t, h, http.MethodPost, "/api/session/start", ""); rec.Code != http.StatusConflict {
		t.Fatalf("second start status=%d", rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/session/toggle", "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"idle"`) {
		t.Fatalf("toggle status=%d body=%s", rec.Code, rec.Body.String())
	}

	sess.startErr = io.ErrUnexpectedEOF
	if rec := do(t, h, http.MethodPost, "/api/session/start", ""); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("start with broken camera status=%d", rec.Code)
	}
}

func TestFrameEndpoint(t *testing.T) {
	srv, sess, _ := newTestServer()
	h := srv.Routes()

	if rec := do(t, h, http.MethodGet, "/api/frame.jpg", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("status=%d, want 404 before first frame", rec.Code)
	}
	sess.frame = domain.Frame{JPEG: []byte{0xff, 0xd8, 0xff, 0xd9}, CapturedAt: time.Now()}
	rec := do(t, h, http.MethodGet, "/api/frame.jpg", "")
	if rec.Code != http.StatusOK || rec.Header().Get("content-type") != "image/jpeg" || rec.Body.Len() != 4 {
		t.Fatalf("status=%d type=%s len=%d", rec.Code, rec.Header().Get("content-type"), rec.Body.Len())
	}
}

func TestPagesRender(t *testing.T) {
	srv, _, _ := newTestServer()
	h := srv.Routes()
	for path, marker := range map[string]string{
		"/":        "Real-time Emotion Detection",
		"/stats":   "Emotion Statistics",
		"/control": "Pan-Tilt Control",
	} {
		rec := do(t, h, http.MethodGet, path, "")
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), marker) {
			t.Fatalf("%s: status=%d, missing %q", path, rec.Code, marker)
		}
	}
}

func TestHubPushesSamples(t *testing.T) {
	srv, _, _ := newTestServer()
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.hub.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(time.Millisecond)
	}

	srv.hub.OnSample(context.Background(), "s-1", domain.EmotionSample{Emotion: "surprise", At: time.Now()})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev liveEvent
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Type != "sample" || ev.Sample == nil || ev.Sample.Emotion != "surprise" {
		t.Fatalf("event=%+v", ev)
	}
}
