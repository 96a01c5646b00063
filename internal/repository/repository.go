package repository

import (
	"context"
	"errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

type CreateSessionInput struct {
	ID                  string
	Provider            string
	Model               string
	DiarizationEnabled  bool
	SimilarityThreshold float64
	StartedAt           time.Time
}

type CompleteSessionInput struct {
	SessionID    string
	EndedAt      time.Time
	SpeakerCount int
	Messages     []TranscriptMessage
}

type SessionRepository interface {
	CreateSession(ctx context.Context, input CreateSessionInput) error
	CompleteSession(ctx context.Context, input CompleteSessionInput) error
	GetSession(ctx context.Context, sessionID string) (*Session, error)
}

type TranscriptRepository interface {
	ListMessagesBySessionID(ctx context.Context, sessionID string) ([]TranscriptMessage, error)
}

type Repository interface {
	SessionRepository
	TranscriptRepository
}
