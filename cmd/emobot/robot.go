package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"emobot/internal/config"
	"emobot/internal/domain"
	"emobot/internal/robot"
)

func newRobotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "robot",
		Short: "Send a single command to the robot controller",
	}

	cmd.AddCommand(&cobra.Command{
		Use:       "send <forward|backward|stop>",
		Short:     "Send a locomotion command",
		Args:      cobra.ExactArgs(1),
		ValidArgs: commandNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			robotCmd, err := domain.ParseRobotCommand(args[0])
			if err != nil {
				return err
			}
			client, err := robotClient()
			if err != nil {
				return err
			}
			if err := client.Send(cmd.Context(), robotCmd); err != nil {
				return fmt.Errorf("send %s to %s: %w", robotCmd, client.BaseURL(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent %s\n", robotCmd)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "pantilt <pan> <tilt>",
		Short: "Point the camera mount (pan -90..90, tilt -45..45)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			pt, err := parsePanTilt(args[0], args[1])
			if err != nil {
				return err
			}
			client, err := robotClient()
			if err != nil {
				return err
			}
			if err := client.SendPanTilt(cmd.Context(), pt.Pan, pt.Tilt); err != nil {
				return fmt.Errorf("send pan-tilt to %s: %w", client.BaseURL(), err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent pan=%d tilt=%d\n", pt.Pan, pt.Tilt)
			return nil
		},
	})
	return cmd
}

func commandNames() []string {
	var out []string
	for _, c := range domain.RobotCommands() {
		out = append(out, string(c))
	}
	return out
}

func robotClient() (*robot.Client, error) {
	cfg, err := config.LoadDashboardConfig()
	if err != nil {
		return nil, err
	}
	return robot.NewClient(cfg.RobotBaseURL, cfg.RobotTimeout), nil
}

func parsePanTilt(panArg, tiltArg string) (domain.PanTilt, error) {
	pan, err := strconv.Atoi(panArg)
	if err != nil {
		return domain.PanTilt{}, fmt.Errorf("pan must be an integer: %w", err)
	}
	tilt, err := strconv.Atoi(tiltArg)
	if err != nil {
		return domain.PanTilt{}, fmt.Errorf("tilt must be an integer: %w", err)
	}
	pt := domain.PanTilt{Pan: pan, Tilt: tilt}
	if !pt.InRange() {
		return domain.PanTilt{}, fmt.Errorf("pan must be within [%d,%d] and tilt within [%d,%d]", domain.PanMin, domain.PanMax, domain.TiltMin, domain.TiltMax)
	}
	return pt, nil
}
