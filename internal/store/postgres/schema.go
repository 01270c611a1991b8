// Package postgres provides a PostgreSQL-backed [store.Store] on a single
// [pgxpool.Pool].
//
//	s, err := postgres.New(ctx, dsn)
//	if err != nil { … }
//	defer s.Close()
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

const ddlSessions = `
CREATE TABLE IF NOT EXISTS interview_sessions (
    id          TEXT         PRIMARY KEY,
    user_id     TEXT         NOT NULL DEFAULT '',
    status      TEXT         NOT NULL,
    start_time  TIMESTAMPTZ  NOT NULL,
    end_time    TIMESTAMPTZ,
    metadata    JSONB        NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_interview_sessions_start_time
    ON interview_sessions (start_time DESC);
`

const ddlResults = `
CREATE TABLE IF NOT EXISTS interview_results (
    session_id      TEXT              PRIMARY KEY REFERENCES interview_sessions (id) ON DELETE CASCADE,
    user_id         TEXT              NOT NULL DEFAULT '',
    transcript      JSONB             NOT NULL DEFAULT '[]',
    video_analysis  JSONB,
    overall_score   DOUBLE PRECISION,
    feedback        TEXT              NOT NULL DEFAULT '',
    duration        DOUBLE PRECISION,
    created_at      TIMESTAMPTZ       NOT NULL DEFAULT now()
);
`

// Migrate creates the tables if they do not exist. It is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, ddl := range []string{ddlSessions, ddlResults} {
		if _, err := pool.Exec(ctx, ddl); err != nil {
			return fmt.Errorf("postgres: migrate: %w", err)
		}
	}
	return nil
}
