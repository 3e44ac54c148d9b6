package robot

import (
	"context"
	"log/slog"
	"time"

	"emobot/internal/domain"
	"emobot/internal/fanout"
)

type Sender interface {
	Send(ctx context.Context, cmd domain.RobotCommand) error
	SendPanTilt(ctx context.Context, pan, tilt int) error
}

type CommandNotifier interface {
	OnCommand(ctx context.Context, ev domain.CommandEvent)
}

// Dispatcher is the fire-and-forget front of a Sender: failures are logged
// and dropped, there is no retry. Notifiers run on a background queue so a
// slow archive or broker never holds the caller past the robot timeout.
type Dispatcher struct {
	sender    Sender
	notifiers []CommandNotifier
	events    *fanout.Queue
	logger    *slog.Logger
	now       func() time.Time
}

func NewDispatcher(sender Sender, logger *slog.Logger, notifiers ...CommandNotifier) *Dispatcher {
	return &Dispatcher{
		sender:    sender,
		notifiers: notifiers,
		events:    fanout.New(context.Background(), "robot-commands", fanout.DefaultSize, logger),
		logger:    logger,
		now:       time.Now,
	}
}

// Close waits for queued notifications to be delivered.
func (d *Dispatcher) Close() {
	d.events.Close()
}

func (d *Dispatcher) Command(ctx context.Context, cmd domain.RobotCommand) {
	err := d.sender.Send(ctx, cmd)
	ev := domain.CommandEvent{
		Kind:      domain.CommandKindDrive,
		Command:   string(cmd),
		Delivered: err == nil,
		TS:        d.now().UTC().Format(time.RFC3339Nano),
	}
	if err != nil {
		ev.Error = err.Error()
		d.logger.Debug("robot command dropped", "cmd", cmd, "error", err)
	}
	d.notify(ev)
}

func (d *Dispatcher) PanTilt(ctx context.Context, pan, tilt int) {
	err := d.sender.SendPanTilt(ctx, pan, tilt)
	ev := domain.CommandEvent{
		Kind:      domain.CommandKindPanTilt,
		Pan:       &pan,
		Tilt:      &tilt,
		Delivered: err == nil,
		TS:        d.now().UTC().Format(time.RFC3339Nano),
	}
	if err != nil {
		ev.Error = err.Error()
		d.logger.Debug("pan-tilt command dropped", "pan", pan, "tilt", tilt, "error", err)
	}
	d.notify(ev)
}

func (d *Dispatcher) notify(ev domain.CommandEvent) {
	if len(d.notifiers) == 0 {
		return
	}
	d.events.Push(func(ctx context.Context) {
		for _, n := range d.notifiers {
			if n != nil {
				n.OnCommand(ctx, ev)
			}
		}
	})
}
