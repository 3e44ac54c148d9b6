package db

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"emobot/internal/domain"
)

var ErrSessionNotFound = errors.New("session not found")

const writeTimeout = 2 * time.Second

// Store archives what the dashboard saw. The running process never reads its
// emotion log back from here; the archive only feeds history queries.
type Store struct {
	pool        *pgxpool.Pool
	dashboardID string
	logger      *slog.Logger
}

type SessionSummary struct {
	SessionID   string
	DashboardID string
	StartedAt   time.Time
	EndedAt     *time.Time
	EndError    string
	SampleCount int
	Durations   domain.DurationSummary
}

func New(ctx context.Context, dsn, dashboardID string, logger *slog.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	return &Store{pool: pool, dashboardID: dashboardID, logger: logger}, nil
}

func (s *Store) Close() {
	s.pool.Close()
}

func (s *Store) Migrate(ctx context.Context) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS dashboard_sessions (
			session_id TEXT PRIMARY KEY,
			dashboard_id TEXT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			ended_at TIMESTAMPTZ,
			end_error TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE TABLE IF NOT EXISTS emotion_samples (
			id BIGSERIAL PRIMARY KEY,
			session_id TEXT NOT NULL REFERENCES dashboard_sessions(session_id) ON DELETE CASCADE,
			emotion TEXT NOT NULL,
			at TIMESTAMPTZ NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_emotion_samples_session_at ON emotion_samples(session_id, at, id);`,
		`CREATE TABLE IF NOT EXISTS robot_commands (
			id BIGSERIAL PRIMARY KEY,
			dashboard_id TEXT NOT NULL,
			kind TEXT NOT NULL,
			command TEXT,
			pan INT,
			tilt INT,
			delivered BOOLEAN NOT NULL,
			error TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_robot_commands_dashboard_created ON robot_commands(dashboard_id, created_at);`,
	}

	for _, q := range queries {
		if _, err := s.pool.Exec(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) OnState(ctx context.Context, ev domain.StateEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	ts := parseTS(ev.TS)
	var err error
	switch ev.State {
	case domain.StateRunning:
		_, err = s.pool.Exec(ctx, `
			INSERT INTO dashboard_sessions(session_id, dashboard_id, started_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (session_id) DO NOTHING
		`, ev.SessionID, s.dashboardID, ts)
	case domain.StateIdle:
		_, err = s.pool.Exec(ctx, `
			UPDATE dashboard_sessions
			SET ended_at = $2, end_error = $3
			WHERE session_id = $1
		`, ev.SessionID, ts, ev.Error)
	}
	if err != nil {
		s.logger.Warn("archive session state failed", "session_id", ev.SessionID, "state", ev.State, "error", err)
	}
}

func (s *Store) OnSample(ctx context.Context, sessionID string, sample domain.EmotionSample) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	if _, err := s.pool.Exec(ctx, `
		INSERT INTO emotion_samples(session_id, emotion, at)
		VALUES ($1, $2, $3)
	`, sessionID, sample.Emotion, sample.At); err != nil {
		s.logger.Warn("archive emotion sample failed", "session_id", sessionID, "error", err)
	}
}

func (s *Store) OnCommand(ctx context.Context, ev domain.CommandEvent) {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()

	var command *string
	if ev.Command != "" {
		command = &ev.Command
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO robot_commands(dashboard_id, kind, command, pan, tilt, delivered, error, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, s.dashboardID, ev.Kind, command, ev.Pan, ev.Tilt, ev.Delivered, ev.Error, parseTS(ev.TS)); err != nil {
		s.logger.Warn("archive robot command failed", "kind", ev.Kind, "error", err)
	}
}

// summaryQuery applies the in-memory rule in SQL: each sample lasts until the
// next one in the same session, the last lasts zero, negative gaps clamp to zero.
const summaryQuery = `
	WITH gaps AS (
		SELECT session_id, emotion,
			GREATEST(EXTRACT(EPOCH FROM (LEAD(at) OVER w - at)), 0) AS seconds
		FROM emotion_samples
		WHERE session_id = ANY($1)
		WINDOW w AS (PARTITION BY session_id ORDER BY id)
	)
	SELECT session_id, emotion, COUNT(*), COALESCE(SUM(seconds), 0)::float8
	FROM gaps
	GROUP BY session_id, emotion
`

func (s *Store) SessionSummaries(ctx context.Context, limit int) ([]SessionSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, `
		SELECT session_id, dashboard_id, started_at, ended_at, end_error
		FROM dashboard_sessions
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionSummary
	index := make(map[string]int)
	for rows.Next() {
		var item SessionSummary
		if err := rows.Scan(&item.SessionID, &item.DashboardID, &item.StartedAt, &item.EndedAt, &item.EndError); err != nil {
			return nil, err
		}
		item.Durations = make(domain.DurationSummary)
		index[item.SessionID] = len(out)
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return out, nil
	}

	ids := make([]string, 0, len(out))
	for _, item := range out {
		ids = append(ids, item.SessionID)
	}
	durRows, err := s.pool.Query(ctx, summaryQuery, ids)
	if err != nil {
		return nil, err
	}
	defer durRows.Close()
	for durRows.Next() {
		var (
			sessionID, emotion string
			count              int
			seconds            float64
		)
		if err := durRows.Scan(&sessionID, &emotion, &count, &seconds); err != nil {
			return nil, err
		}
		i, ok := index[sessionID]
		if !ok {
			continue
		}
		out[i].SampleCount += count
		out[i].Durations[emotion] += secondsToDuration(seconds)
	}
	return out, durRows.Err()
}

func (s *Store) SessionSamples(ctx context.Context, sessionID string) ([]domain.EmotionSample, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `SELECT TRUE FROM dashboard_sessions WHERE session_id=$1`, sessionID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT emotion, at FROM emotion_samples
		WHERE session_id=$1
		ORDER BY id
	`, sessionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.EmotionSample, error) {
		var sample domain.EmotionSample
		err := row.Scan(&sample.Emotion, &sample.At)
		return sample, err
	})
}

func parseTS(ts string) time.Time {
	if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
		return t
	}
	return time.Now().UTC()
}

func secondsToDuration(seconds float64) time.Duration {
	return time.Duration(seconds * float64(time.Second))
}
