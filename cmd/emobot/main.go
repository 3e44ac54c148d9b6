package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"emobot/internal/config"
)

func main() {
	config.LoadDotEnv()

	rootCmd := &cobra.Command{
		Use:           "emobot",
		Short:         "Emotion dashboard and robot controller",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context())
		},
	}
	rootCmd.AddCommand(newServeCmd(), newRobotCmd(), newHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
