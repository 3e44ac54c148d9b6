package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"emobot/internal/config"
	"emobot/internal/mqtt"
)

func main() {
	config.LoadDotEnv()
	cfg := config.LoadRobotSimConfig()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	state := newRobotState()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.MQTT.Enabled() {
		err := mqtt.SubscribeCommands(ctx, mqtt.Config{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
		}, logger, state.observeDashboardCommand)
		if err != nil {
			logger.Error("subscribe dashboard commands failed", "error", err)
			os.Exit(1)
		}
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           newRouter(state),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("robot simulator started", "addr", cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("robot simulator http error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("robot simulator shutdown signal")
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("robot simulator shutdown failed", "error", err)
	}
}

func newRouter(state *robotState) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	r.Get("/control", state.handleControl)
	r.Get("/pantilt", state.handlePanTilt)
	r.Get("/state", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, state.snapshot())
	})
	r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("content-type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(indexHTML))
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

const indexHTML = `<!doctype html>
<html lang="en">
<head>
  <meta charset="UTF-8" />
  <meta name="viewport" content="width=device-width,initial-scale=1" />
  <title>Robot Simulator</title>
  <style>
    body { margin: 0; padding: 24px; font-family: "Avenir Next", "Segoe UI", sans-serif; background: #0b1224; color: #e2e8f0; }
    .panel { border: 1px solid rgba(148, 163, 184, 0.25); border-radius: 14px; padding: 16px; margin-bottom: 16px; background: rgba(15, 23, 42, 0.72); }
    .stage { position: relative; height: 220px; }
    .base { position: absolute; left: 50%; bottom: 20px; width: 160px; height: 60px; margin-left: -80px; border-radius: 14px; background: #64748b; transition: transform 0.4s ease; }
    .head { position: absolute; left: 50%; bottom: 90px; width: 90px; height: 70px; margin-left: -45px; border-radius: 12px; background: #cbd5e1; transition: transform 0.2s ease; }
    .lens { position: absolute; left: 30px; top: 20px; width: 30px; height: 30px; border-radius: 50%; background: #0f172a; }
    pre { max-height: 320px; overflow: auto; font-size: 12px; color: #94a3b8; }
  </style>
</head>
<body>
  <h2>Robot Simulator</h2>
  <div class="panel stage">
    <div class="base" id="base"></div>
    <div class="head" id="head"><div class="lens"></div></div>
  </div>
  <div class="panel" id="status"></div>
  <div class="panel"><pre id="logs"></pre></div>
  <script>
    const offsets = { forward: -40, backward: 40, stop: 0 };
    async function refresh() {
      const resp = await fetch('/state');
      const s = await resp.json();
      document.getElementById('base').style.transform = 'translateY(' + (offsets[s.motion] || 0) + 'px)';
      document.getElementById('head').style.transform = 'rotateY(' + s.pan + 'deg) rotateX(' + s.tilt + 'deg)';
      document.getElementById('status').textContent = 'motion=' + s.motion + ' pan=' + s.pan + ' tilt=' + s.tilt + ' commands=' + s.commands + ' last=' + (s.last_action || '-');
      document.getElementById('logs').textContent = (s.logs || []).slice().reverse().join('\n');
    }
    refresh();
    setInterval(refresh, 500);
  </script>
</body>
</html>`
