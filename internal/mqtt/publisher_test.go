package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"emobot/internal/domain"
)

type doneToken struct {
	err error
}

func (t doneToken) Wait() bool                     { return true }
func (t doneToken) WaitTimeout(time.Duration) bool { return true }
func (t doneToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}
func (t doneToken) Error() error { return t.err }

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	paho.Client
	err  error
	sent []published
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token {
	c.sent = append(c.sent, published{topic: topic, qos: qos, retained: retained, payload: payload.([]byte)})
	return doneToken{err: c.err}
}

func newTestPublisher(client paho.Client) *Publisher {
	p := NewPublisher(Config{TopicPrefix: "emobot", DashboardID: "dash-1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.client = client
	return p
}

func TestPublisherEmotionPayload(t *testing.T) {
	client := &fakeClient{}
	p := newTestPublisher(client)
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	p.OnSample(context.Background(), "s-1", domain.EmotionSample{At: at, Emotion: "happy"})

	if len(client.sent) != 1 {
		t.Fatalf("published=%d, want 1", len(client.sent))
	}
	msg := client.sent[0]
	if msg.topic != "emobot/dashboard/dash-1/emotion" || msg.retained {
		t.Fatalf("topic=%s retained=%v", msg.topic, msg.retained)
	}
	var ev domain.EmotionEvent
	if err := json.Unmarshal(msg.payload, &ev); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ev.Emotion != "happy" || ev.SessionID != "s-1" || ev.DashboardID != "dash-1" || ev.TS != "2024-03-01T12:00:00Z" {
		t.Fatalf("event=%+v", ev)
	}
}

func TestPublisherStateIsRetained(t *testing.T) {
	client := &fakeClient{}
	p := newTestPublisher(client)

	p.OnState(context.Background(), domain.StateEvent{SessionID: "s-1", State: domain.StateRunning})

	if len(client.sent) != 1 || client.sent[0].topic != "emobot/dashboard/dash-1/state" || !client.sent[0].retained || client.sent[0].qos != 1 {
		t.Fatalf("sent=%+v", client.sent)
	}
}

func TestPublisherSwallowsErrors(t *testing.T) {
	client := &fakeClient{err: errors.New("not connected")}
	p := newTestPublisher(client)

	p.OnCommand(context.Background(), domain.CommandEvent{Kind: domain.CommandKindDrive, Command: "stop"})

	if len(client.sent) != 1 || client.sent[0].topic != "emobot/dashboard/dash-1/command" {
		t.Fatalf("sent=%+v", client.sent)
	}
}

func TestPublisherWithoutClientIsNoop(t *testing.T) {
	p := NewPublisher(Config{TopicPrefix: "emobot", DashboardID: "dash-1"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	p.OnSample(context.Background(), "s-1", domain.EmotionSample{Emotion: "sad"})
}
