package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"emobot/internal/camera"
	"emobot/internal/classifier"
	"emobot/internal/config"
	"emobot/internal/db"
	"emobot/internal/emotionlog"
	"emobot/internal/mqtt"
	"emobot/internal/robot"
	"emobot/internal/session"
	"emobot/internal/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the web dashboard",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context())
		},
	}
}

func runServe(parent context.Context) error {
	cfg, err := config.LoadDashboardConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.LogLevel)

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	svc := session.New(session.Config{
		DashboardID:    cfg.DashboardID,
		SampleInterval: cfg.SampleInterval,
		FrameInterval:  cfg.FrameInterval,
	}, emotionlog.New(),
		camera.NewHTTPSource(cfg.CameraURL, cfg.CameraTimeout),
		classifier.NewClient(cfg.ClassifierURL, cfg.ClassifierTimeout),
		logger,
	)

	hub := web.NewHub(logger)
	svc.AddSampleSink(hub)
	svc.AddStateSink(hub)
	var notifiers []robot.CommandNotifier

	if cfg.DBDSN != "" {
		store, err := db.New(ctx, cfg.DBDSN, cfg.DashboardID, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		svc.AddSampleSink(store)
		svc.AddStateSink(store)
		notifiers = append(notifiers, store)
		logger.Info("sample archive enabled")
	}

	if cfg.MQTT.Enabled() {
		publisher := mqtt.NewPublisher(mqtt.Config{
			BrokerURL:   cfg.MQTT.BrokerURL,
			ClientID:    cfg.MQTT.ClientID,
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			DashboardID: cfg.DashboardID,
		}, logger)
		if err := publisher.Start(ctx); err != nil {
			return err
		}
		svc.AddSampleSink(publisher)
		svc.AddStateSink(publisher)
		notifiers = append(notifiers, publisher)
		logger.Info("mqtt telemetry enabled", "broker", cfg.MQTT.BrokerURL, "prefix", cfg.MQTT.TopicPrefix)
	}

	dispatcher := robot.NewDispatcher(robot.NewClient(cfg.RobotBaseURL, cfg.RobotTimeout), logger, notifiers...)
	server := web.NewServer(svc, dispatcher, hub, logger)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("dashboard started",
			"addr", cfg.HTTPAddr,
			"dashboard_id", cfg.DashboardID,
			"robot", cfg.RobotBaseURL,
			"camera", cfg.CameraURL,
			"classifier", cfg.ClassifierURL,
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		logger.Info("received shutdown signal")
	case <-ctx.Done():
	}

	svc.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	dispatcher.Close()
	return nil
}
