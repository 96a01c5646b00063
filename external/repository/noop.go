package repository

import (
	"context"

	"github.com/foxseedlab/livescribe/internal/repository"
)

// NoopRepository is used when no database is configured. Nothing is
// archived and every lookup misses.
type NoopRepository struct{}

func (NoopRepository) CreateSession(context.Context, repository.CreateSessionInput) error {
	return nil
}

func (NoopRepository) CompleteSession(context.Context, repository.CompleteSessionInput) error {
	return nil
}

func (NoopRepository) GetSession(context.Context, string) (*repository.Session, error) {
	return nil, repository.ErrSessionNotFound
}

func (NoopRepository) ListMessagesBySessionID(context.Context, string) ([]repository.TranscriptMessage, error) {
	return nil, nil
}
