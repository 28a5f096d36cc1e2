package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/leep66666/smart-job-assistant-backend/internal/repository"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO transcription_sessions (id, answer_id, question, state, started_at)
		 VALUES ($1, $2, $3, 'running', $4)
		 ON CONFLICT (id) DO NOTHING`,
		input.SessionID, input.AnswerID, input.Question, input.StartedAt)
	return err
}

func (r *PostgresRepository) RecordArtifacts(ctx context.Context, input repository.RecordArtifactsInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if _, err := tx.Exec(ctx,
		`UPDATE transcription_sessions SET state = $2, end_reason = $3, ended_at = $4 WHERE id = $1`,
		input.SessionID, string(input.State), input.EndReason, input.EndedAt); err != nil {
		return err
	}
	for _, f := range input.Fragments {
		if _, err := tx.Exec(ctx,
			`INSERT INTO transcript_fragments (session_id, sequence, window_id, content, is_final, received_at)
			 VALUES ($1, $2, $3, $4, $5, $6)
			 ON CONFLICT (session_id, sequence) DO NOTHING`,
			input.SessionID, f.Sequence, f.WindowID, f.Content, f.IsFinal, f.ReceivedAt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO consolidations (session_id, method, content, source_fragment_count)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (session_id) DO UPDATE SET method = $2, content = $3, source_fragment_count = $4`,
		input.SessionID, input.Method, input.ConsolidatedText, input.SourceFragmentCount); err != nil {
		return err
	}
	if input.EvaluationJSON != nil {
		if _, err := tx.Exec(ctx,
			`INSERT INTO evaluations (session_id, payload)
			 VALUES ($1, $2)
			 ON CONFLICT (session_id) DO UPDATE SET payload = $2`,
			input.SessionID, input.EvaluationJSON); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) ListFragmentsBySessionID(ctx context.Context, sessionID string) ([]repository.Fragment, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, sequence, window_id, content, is_final, received_at
		 FROM transcript_fragments WHERE session_id = $1 ORDER BY sequence ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []repository.Fragment
	for rows.Next() {
		var f repository.Fragment
		var receivedAt time.Time
		if err := rows.Scan(&f.SessionID, &f.Sequence, &f.WindowID, &f.Content, &f.IsFinal, &receivedAt); err != nil {
			return nil, err
		}
		f.ReceivedAt = receivedAt
		list = append(list, f)
	}
	return list, rows.Err()
}
