package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownCommand = errors.New("unknown robot command")

type RobotCommand string

const (
	CommandForward  RobotCommand = "forward"
	CommandBackward RobotCommand = "backward"
	CommandStop     RobotCommand = "stop"
)

func RobotCommands() []RobotCommand {
	return []RobotCommand{CommandForward, CommandBackward, CommandStop}
}

func ParseRobotCommand(v string) (RobotCommand, error) {
	switch cmd := RobotCommand(strings.ToLower(strings.TrimSpace(v))); cmd {
	case CommandForward, CommandBackward, CommandStop:
		return cmd, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownCommand, v)
	}
}

// Slider bounds of the pan-tilt mount.
const (
	PanMin  = -90
	PanMax  = 90
	TiltMin = -45
	TiltMax = 45
)

type PanTilt struct {
	Pan  int `json:"pan"`
	Tilt int `json:"tilt"`
}

func (p PanTilt) InRange() bool {
	return p.Pan >= PanMin && p.Pan <= PanMax && p.Tilt >= TiltMin && p.Tilt <= TiltMax
}
