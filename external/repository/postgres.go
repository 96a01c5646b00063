package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) repository.Repository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateSession(ctx context.Context, input repository.CreateSessionInput) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO live_sessions (id, provider, model, diarization_enabled, similarity_threshold, started_at, status)
		 VALUES ($1, $2, $3, $4, $5, $6, 'running')`,
		input.ID, input.Provider, input.Model, input.DiarizationEnabled, input.SimilarityThreshold, input.StartedAt)
	return err
}

// CompleteSession stores the full message log and marks the session
// completed in one transaction.
func (r *PostgresRepository) CompleteSession(ctx context.Context, input repository.CompleteSessionInput) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE live_sessions SET status = 'completed', ended_at = $2, speaker_count = $3 WHERE id = $1`,
		input.SessionID, input.EndedAt, input.SpeakerCount)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrSessionNotFound
	}

	if len(input.Messages) > 0 {
		rows := make([][]any, len(input.Messages))
		for i, m := range input.Messages {
			rows[i] = []any{input.SessionID, m.MessageIndex, m.SpeakerID, m.SpeakerName, m.Color, m.Content, m.StartTime, m.EndTime, m.SpokenAt}
		}
		if _, err := tx.CopyFrom(ctx,
			pgx.Identifier{"transcript_messages"},
			[]string{"session_id", "message_index", "speaker_id", "speaker_name", "color", "content", "start_time", "end_time", "spoken_at"},
			pgx.CopyFromRows(rows),
		); err != nil {
			return fmt.Errorf("copy transcript messages: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (r *PostgresRepository) GetSession(ctx context.Context, sessionID string) (*repository.Session, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT s.id, s.provider, s.model, s.diarization_enabled, s.similarity_threshold,
		        s.started_at, s.ended_at, s.status::text, s.speaker_count,
		        (SELECT COUNT(*) FROM transcript_messages m WHERE m.session_id = s.id)
		 FROM live_sessions s WHERE s.id = $1`,
		sessionID)
	var s repository.Session
	err := row.Scan(&s.ID, &s.Provider, &s.Model, &s.DiarizationEnabled, &s.SimilarityThreshold,
		&s.StartedAt, &s.EndedAt, &s.Status, &s.SpeakerCount, &s.MessageCount)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrSessionNotFound
		}
		return nil, err
	}
	return &s, nil
}

func (r *PostgresRepository) ListMessagesBySessionID(ctx context.Context, sessionID string) ([]repository.TranscriptMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT session_id, message_index, speaker_id, speaker_name, color, content, start_time, end_time, spoken_at
		 FROM transcript_messages WHERE session_id = $1 ORDER BY message_index ASC`,
		sessionID)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (repository.TranscriptMessage, error) {
		var m repository.TranscriptMessage
		err := row.Scan(&m.SessionID, &m.MessageIndex, &m.SpeakerID, &m.SpeakerName, &m.Color, &m.Content, &m.StartTime, &m.EndTime, &m.SpokenAt)
		return m, err
	})
}
