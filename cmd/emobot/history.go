package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"emobot/internal/config"
	"emobot/internal/db"
	"emobot/internal/domain"
	"emobot/internal/emotionlog"
)

func newHistoryCmd() *cobra.Command {
	var (
		limit     int
		sessionID string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Print per-emotion durations of archived sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadDashboardConfig()
			if err != nil {
				return err
			}
			if cfg.DBDSN == "" {
				return fmt.Errorf("DB_DSN is required for history")
			}
			store, err := db.New(cmd.Context(), cfg.DBDSN, cfg.DashboardID, newLogger(cfg.LogLevel))
			if err != nil {
				return err
			}
			defer store.Close()

			if sessionID != "" {
				samples, err := store.SessionSamples(cmd.Context(), sessionID)
				if err != nil {
					return err
				}
				return printSamples(cmd.OutOrStdout(), samples)
			}
			summaries, err := store.SessionSummaries(cmd.Context(), limit)
			if err != nil {
				return err
			}
			return printHistory(cmd.OutOrStdout(), summaries)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of most recent sessions")
	cmd.Flags().StringVarP(&sessionID, "session", "s", "", "print the samples of one session")
	return cmd
}

func printHistory(w io.Writer, summaries []db.SessionSummary) error {
	if len(summaries) == 0 {
		_, err := fmt.Fprintln(w, "No data collected yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SESSION\tSTARTED\tSAMPLES\tDURATIONS\tEND")
	for _, s := range summaries {
		parts := make([]string, 0, len(s.Durations))
		for _, row := range s.Durations.Rows() {
			parts = append(parts, fmt.Sprintf("%s=%.1fs", row.Emotion, row.Seconds()))
		}
		end := "running"
		if s.EndedAt != nil {
			end = s.EndedAt.Local().Format(time.TimeOnly)
			if s.EndError != "" {
				end += " (" + s.EndError + ")"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			s.SessionID,
			s.StartedAt.Local().Format(time.DateTime),
			s.SampleCount,
			strings.Join(parts, " "),
			end,
		)
	}
	return tw.Flush()
}

// printSamples lists the raw samples followed by the same per-emotion
// totals the dashboard statistics page shows.
func printSamples(w io.Writer, samples []domain.EmotionSample) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, "No data collected yet")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tEMOTION")
	for _, s := range samples {
		fmt.Fprintf(tw, "%s\t%s\n", s.At.Local().Format(time.DateTime), s.Emotion)
	}
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "EMOTION\tSECONDS")
	for _, row := range emotionlog.Summarize(samples).Rows() {
		fmt.Fprintf(tw, "%s\t%.1f\n", row.Emotion, row.Seconds())
	}
	return tw.Flush()
}
