package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"emobot/internal/domain"
)

const publishTimeout = 500 * time.Millisecond

type Config struct {
	BrokerURL   string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	DashboardID string
}

// Publisher mirrors dashboard activity onto the broker. Every publish is
// best effort: failures are logged and never reach the caller.
type Publisher struct {
	cfg    Config
	client paho.Client
	logger *slog.Logger
}

func NewPublisher(cfg Config, logger *slog.Logger) *Publisher {
	return &Publisher{cfg: cfg, logger: logger}
}

func (p *Publisher) Start(ctx context.Context) error {
	onlineTopic := TopicOnline(p.cfg.TopicPrefix, p.cfg.DashboardID)
	opts := clientOptions(p.cfg, p.logger)
	opts.SetWill(onlineTopic, "offline", 1, true)

	p.client = paho.NewClient(opts)
	if token := p.client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}
	if token := p.client.Publish(onlineTopic, 1, true, "online"); token.Wait() && token.Error() != nil {
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		p.client.Publish(onlineTopic, 1, true, "offline").WaitTimeout(publishTimeout)
		p.client.Disconnect(100)
	}()
	return nil
}

func (p *Publisher) OnSample(_ context.Context, sessionID string, sample domain.EmotionSample) {
	p.publish(TopicEmotion(p.cfg.TopicPrefix, p.cfg.DashboardID), 0, false, domain.EmotionEvent{
		DashboardID: p.cfg.DashboardID,
		SessionID:   sessionID,
		Emotion:     sample.Emotion,
		TS:          sample.At.UTC().Format(time.RFC3339Nano),
	})
}

func (p *Publisher) OnState(_ context.Context, ev domain.StateEvent) {
	ev.DashboardID = p.cfg.DashboardID
	p.publish(TopicState(p.cfg.TopicPrefix, p.cfg.DashboardID), 1, true, ev)
}

func (p *Publisher) OnCommand(_ context.Context, ev domain.CommandEvent) {
	ev.DashboardID = p.cfg.DashboardID
	p.publish(TopicCommand(p.cfg.TopicPrefix, p.cfg.DashboardID), 0, false, ev)
}

func (p *Publisher) publish(topic string, qos byte, retained bool, payload any) {
	if p.client == nil {
		return
	}
	body, err := json.Marshal(payload)
	if err != nil {
		p.logger.Warn("mqtt payload encode failed", "topic", topic, "error", err)
		return
	}
	token := p.client.Publish(topic, qos, retained, body)
	if !token.WaitTimeout(publishTimeout) {
		p.logger.Warn("mqtt publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		p.logger.Warn("mqtt publish failed", "topic", topic, "error", err)
	}
}

// SubscribeCommands connects a separate client that listens to command events
// from every dashboard under the prefix.
func SubscribeCommands(ctx context.Context, cfg Config, logger *slog.Logger, handle func(dashboardID string, ev domain.CommandEvent)) error {
	client := paho.NewClient(clientOptions(cfg, logger))
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return fmt.Errorf("mqtt connect: %w", token.Error())
	}

	topic := TopicAnyCommand(cfg.TopicPrefix)
	token := client.Subscribe(topic, 0, func(_ paho.Client, msg paho.Message) {
		dashboardID, err := ParseDashboardID(msg.Topic(), cfg.TopicPrefix)
		if err != nil {
			logger.Warn("skip invalid command topic", "topic", msg.Topic(), "error", err)
			return
		}
		var ev domain.CommandEvent
		if err := json.Unmarshal(msg.Payload(), &ev); err != nil {
			logger.Warn("invalid command payload", "dashboard_id", dashboardID, "error", err)
			return
		}
		handle(dashboardID, ev)
	})
	if token.Wait() && token.Error() != nil {
		client.Disconnect(100)
		return token.Error()
	}

	go func() {
		<-ctx.Done()
		client.Disconnect(100)
	}()
	return nil
}

func clientOptions(cfg Config, logger *slog.Logger) *paho.ClientOptions {
	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Error("mqtt connection lost", "error", err)
	})
	return opts
}
