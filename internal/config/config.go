package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
)

type DashboardConfig struct {
	HTTPAddr          string
	DashboardID       string
	RobotBaseURL      string
	RobotTimeout      time.Duration
	CameraURL         string
	CameraTimeout     time.Duration
	ClassifierURL     string
	ClassifierTimeout time.Duration
	SampleInterval    time.Duration
	FrameInterval     time.Duration
	MQTT              MQTTConfig
	DBDSN             string
	LogLevel          slog.Level
}

type MQTTConfig struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

func (c MQTTConfig) Enabled() bool {
	return c.BrokerURL != ""
}

type RobotSimConfig struct {
	HTTPAddr string
	MQTT     MQTTConfig
	LogLevel slog.Level
}

// LoadDotEnv reads .env files into the environment without overriding
// variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		_ = godotenv.Load(f)
	}
}

func LoadDashboardConfig() (DashboardConfig, error) {
	dashboardID := getenvDefault("DASHBOARD_ID", uuid.NewString())
	cfg := DashboardConfig{
		HTTPAddr:          getenvDefault("EMOBOT_HTTP_ADDR", ":8501"),
		DashboardID:       dashboardID,
		RobotBaseURL:      strings.TrimRight(getenvDefault("ROBOT_BASE_URL", "http://192.168.1.100"), "/"),
		RobotTimeout:      getenvMillisDefault("ROBOT_TIMEOUT_MS", 100),
		CameraURL:         getenvDefault("CAMERA_URL", "http://192.168.1.101/capture"),
		CameraTimeout:     getenvMillisDefault("CAMERA_TIMEOUT_MS", 2000),
		ClassifierURL:     strings.TrimRight(getenvDefault("CLASSIFIER_URL", "http://localhost:5005"), "/"),
		ClassifierTimeout: getenvMillisDefault("CLASSIFIER_TIMEOUT_MS", 5000),
		SampleInterval:    getenvMillisDefault("SAMPLE_INTERVAL_MS", 1000),
		FrameInterval:     getenvMillisDefault("FRAME_INTERVAL_MS", 100),
		MQTT:              loadMQTTConfig("EMOBOT_MQTT_CLIENT_ID", "emobot-"+shortID(dashboardID)),
		DBDSN:             os.Getenv("DB_DSN"),
		LogLevel:          parseLevel(os.Getenv("LOG_LEVEL")),
	}

	if err := validateHTTPURL("ROBOT_BASE_URL", cfg.RobotBaseURL); err != nil {
		return DashboardConfig{}, err
	}
	if err := validateHTTPURL("CAMERA_URL", cfg.CameraURL); err != nil {
		return DashboardConfig{}, err
	}
	if err := validateHTTPURL("CLASSIFIER_URL", cfg.ClassifierURL); err != nil {
		return DashboardConfig{}, err
	}
	if cfg.RobotTimeout <= 0 || cfg.CameraTimeout <= 0 || cfg.ClassifierTimeout <= 0 {
		return DashboardConfig{}, fmt.Errorf("timeouts must be positive")
	}
	if cfg.SampleInterval <= 0 || cfg.FrameInterval <= 0 {
		return DashboardConfig{}, fmt.Errorf("SAMPLE_INTERVAL_MS and FRAME_INTERVAL_MS must be positive")
	}

	return cfg, nil
}

func LoadRobotSimConfig() RobotSimConfig {
	return RobotSimConfig{
		HTTPAddr: getenvDefault("ROBOT_SIM_HTTP_ADDR", ":8090"),
		MQTT:     loadMQTTConfig("ROBOT_SIM_MQTT_CLIENT_ID", "emobot-robot-sim"),
		LogLevel: parseLevel(os.Getenv("LOG_LEVEL")),
	}
}

func loadMQTTConfig(clientIDKey, clientIDDefault string) MQTTConfig {
	return MQTTConfig{
		BrokerURL:   os.Getenv("MQTT_BROKER_URL"),
		ClientID:    getenvDefault(clientIDKey, clientIDDefault),
		Username:    os.Getenv("MQTT_USERNAME"),
		Password:    os.Getenv("MQTT_PASSWORD"),
		TopicPrefix: getenvDefault("MQTT_TOPIC_PREFIX", "emobot"),
	}
}

func validateHTTPURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s is invalid: %w", key, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%s must be an absolute http(s) url, got %q", key, raw)
	}
	return nil
}

func parseLevel(v string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func getenvDefault(key, val string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return val
}

func getenvIntDefault(key string, val int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return val
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return val
	}
	return n
}

func getenvMillisDefault(key string, val int) time.Duration {
	return time.Duration(getenvIntDefault(key, val)) * time.Millisecond
}
