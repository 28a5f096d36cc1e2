package repository

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrationStatements = []string{
	`DO $$ BEGIN CREATE TYPE transcription_state AS ENUM ('running', 'completed', 'failed'); EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	`CREATE TABLE IF NOT EXISTS transcription_sessions (
		id UUID PRIMARY KEY,
		answer_id TEXT NOT NULL,
		question TEXT NOT NULL,
		state transcription_state NOT NULL DEFAULT 'running',
		end_reason TEXT NOT NULL DEFAULT '',
		started_at TIMESTAMPTZ NOT NULL,
		ended_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_transcription_sessions_answer ON transcription_sessions (answer_id)`,
	`CREATE TABLE IF NOT EXISTS transcript_fragments (
		session_id UUID NOT NULL REFERENCES transcription_sessions(id) ON DELETE CASCADE,
		sequence INTEGER NOT NULL,
		window_id INTEGER NOT NULL,
		content TEXT NOT NULL,
		is_final BOOLEAN NOT NULL,
		received_at TIMESTAMPTZ NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (session_id, sequence)
	)`,
	`CREATE TABLE IF NOT EXISTS consolidations (
		session_id UUID PRIMARY KEY REFERENCES transcription_sessions(id) ON DELETE CASCADE,
		method TEXT NOT NULL,
		content TEXT NOT NULL,
		source_fragment_count INTEGER NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS evaluations (
		session_id UUID PRIMARY KEY REFERENCES transcription_sessions(id) ON DELETE CASCADE,
		payload JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

func RunMigration(ctx context.Context, pool *pgxpool.Pool) error {
	for _, s := range migrationStatements {
		stmt := strings.TrimSpace(s)
		if stmt == "" {
			continue
		}
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
