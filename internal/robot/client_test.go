package robot

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"emobot/internal/domain"
)

type recordedRequest struct {
	Path  string
	Query url.Values
}

func newFirmware(t *testing.T) (*httptest.Server, func() []recordedRequest) {
	t.Helper()
	var mu sync.Mutex
	var got []recordedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("method=%s, want GET", r.Method)
		}
		mu.Lock()
		got = append(got, recordedRequest{Path: r.URL.Path, Query: r.URL.Query()})
		mu.Unlock()
		_, _ = io.WriteString(w, "OK")
	}))
	t.Cleanup(srv.Close)
	return srv, func() []recordedRequest {
		mu.Lock()
		defer mu.Unlock()
		return append([]recordedRequest{}, got...)
	}
}

func TestSendEncodesCommand(t *testing.T) {
	srv, requests := newFirmware(t)
	c := NewClient(srv.URL+"/", time.Second)

	for _, cmd := range domain.RobotCommands() {
		if err := c.Send(context.Background(), cmd); err != nil {
			t.Fatalf("Send(%s) err: %v", cmd, err)
		}
	}

	got := requests()
	if len(got) != 3 {
		t.Fatalf("requests=%d, want 3", len(got))
	}
	for i, cmd := range domain.RobotCommands() {
		if got[i].Path != "/control" {
			t.Fatalf("path=%s, want /control", got[i].Path)
		}
		if got[i].Query.Get("cmd") != string(cmd) {
			t.Fatalf("cmd=%s, want %s", got[i].Query.Get("cmd"), cmd)
		}
	}
}

func TestSendPanTiltBoundariesRoundTrip(t *testing.T) {
	srv, requests := newFirmware(t)
	c := NewClient(srv.URL, time.Second)

	cases := []domain.PanTilt{
		{Pan: domain.PanMin, Tilt: domain.TiltMin},
		{Pan: domain.PanMax, Tilt: domain.TiltMax},
		{Pan: domain.PanMin, Tilt: domain.TiltMax},
		{Pan: 0, Tilt: 0},
	}
	for _, pt := range cases {
		if err := c.SendPanTilt(context.Background(), pt.Pan, pt.Tilt); err != nil {
			t.Fatalf("SendPanTilt(%d,%d) err: %v", pt.Pan, pt.Tilt, err)
		}
	}

	got := requests()
	if len(got) != len(cases) {
		t.Fatalf("requests=%d, want %d", len(got), len(cases))
	}
	for i, pt := range cases {
		if got[i].Path != "/pantilt" {
			t.Fatalf("path=%s, want /pantilt", got[i].Path)
		}
		wantPan := map[int]string{-90: "-90", 90: "90", 0: "0"}[pt.Pan]
		wantTilt := map[int]string{-45: "-45", 45: "45", 0: "0"}[pt.Tilt]
		if got[i].Query.Get("pan") != wantPan || got[i].Query.Get("tilt") != wantTilt {
			t.Fatalf("query=%v, want pan=%s tilt=%s", got[i].Query, wantPan, wantTilt)
		}
	}
}

func TestSendIgnoresErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "busy", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := NewClient(srv.URL, time.Second).Send(context.Background(), domain.CommandStop); err != nil {
		t.Fatalf("Send err: %v, want nil (status is not an acknowledgement)", err)
	}
}

func TestSendUnreachableReturnsWithinTimeout(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	_ = ln.Close()

	c := NewClient("http://"+addr, 100*time.Millisecond)
	start := time.Now()
	if err := c.Send(context.Background(), domain.CommandForward); err == nil {
		t.Fatalf("expected transport error for closed port")
	}
	if cost := time.Since(start); cost > time.Second {
		t.Fatalf("Send took %s, want bounded by timeout", cost)
	}
}

func TestSendSlowDeviceTimesOut(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := NewClient(srv.URL, 50*time.Millisecond)
	start := time.Now()
	if err := c.SendPanTilt(context.Background(), 10, -10); err == nil {
		t.Fatalf("expected timeout error")
	}
	if cost := time.Since(start); cost > 500*time.Millisecond {
		t.Fatalf("SendPanTilt took %s, want about 50ms", cost)
	}
}

func TestUnconfiguredClient(t *testing.T) {
	c := NewClient("  ", 0)
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	if err := c.Send(context.Background(), domain.CommandStop); err == nil {
		t.Fatalf("expected error for unconfigured client")
	}
}

type fakeSender struct {
	err      error
	commands []domain.RobotCommand
	panTilt  []domain.PanTilt
}

func (f *fakeSender) Send(_ context.Context, cmd domain.RobotCommand) error {
	f.commands = append(f.commands, cmd)
	return f.err
}

func (f *fakeSender) SendPanTilt(_ context.Context, pan, tilt int) error {
	f.panTilt = append(f.panTilt, domain.PanTilt{Pan: pan, Tilt: tilt})
	return f.err
}

type eventCollector struct {
	events []domain.CommandEvent
}

func (c *eventCollector) OnCommand(_ context.Context, ev domain.CommandEvent) {
	c.events = append(c.events, ev)
}

func TestDispatcherSwallowsFailures(t *testing.T) {
	sender := &fakeSender{err: io.ErrUnexpectedEOF}
	events := &eventCollector{}
	d := NewDispatcher(sender, slog.New(slog.NewTextHandler(io.Discard, nil)), events)

	d.Command(context.Background(), domain.CommandForward)
	d.PanTilt(context.Background(), -90, 45)
	d.Close()

	if len(sender.commands) != 1 || len(sender.panTilt) != 1 {
		t.Fatalf("sender calls: commands=%v pantilt=%v", sender.commands, sender.panTilt)
	}
	if len(events.events) != 2 {
		t.Fatalf("events=%d, want 2", len(events.events))
	}
	for _, ev := range events.events {
		if ev.Delivered || ev.Error == "" {
			t.Fatalf("event=%+v, want undelivered with error", ev)
		}
	}
	pt := events.events[1]
	if pt.Kind != domain.CommandKindPanTilt || *pt.Pan != -90 || *pt.Tilt != 45 {
		t.Fatalf("pan-tilt event=%+v", pt)
	}
}

func TestDispatcherReportsDelivery(t *testing.T) {
	sender := &fakeSender{}
	events := &eventCollector{}
	d := NewDispatcher(sender, slog.New(slog.NewTextHandler(io.Discard, nil)), events)

	d.Command(context.Background(), domain.CommandStop)
	d.Close()

	if len(events.events) != 1 || !events.events[0].Delivered || events.events[0].Command != "stop" {
		t.Fatalf("events=%+v", events.events)
	}
}

// stalledNotifier behaves like an archive write against an unresponsive
// database: it holds the call until its own deadline expires.
type stalledNotifier struct {
	wait time.Duration
	mu   sync.Mutex
	seen int
}

func (n *stalledNotifier) OnCommand(ctx context.Context, _ domain.CommandEvent) {
	ctx, cancel := context.WithTimeout(ctx, n.wait)
	defer cancel()
	<-ctx.Done()
	n.mu.Lock()
	n.seen++
	n.mu.Unlock()
}

func TestDispatcherDoesNotWaitForNotifiers(t *testing.T) {
	sender := &fakeSender{err: io.ErrUnexpectedEOF}
	slow := &stalledNotifier{wait: 300 * time.Millisecond}
	d := NewDispatcher(sender, slog.New(slog.NewTextHandler(io.Discard, nil)), slow)

	start := time.Now()
	d.PanTilt(context.Background(), 10, -10)
	d.Command(context.Background(), domain.CommandStop)
	if elapsed := time.Since(start); elapsed > DefaultTimeout {
		t.Fatalf("dispatch took %s, want under %s", elapsed, DefaultTimeout)
	}

	d.Close()
	slow.mu.Lock()
	defer slow.mu.Unlock()
	if slow.seen != 2 {
		t.Fatalf("notifier calls got=%d want=2", slow.seen)
	}
}
