package repository

import "time"

type SessionStatus string

const (
	SessionStatusRunning   SessionStatus = "running"
	SessionStatusCompleted SessionStatus = "completed"
)

type Session struct {
	ID                  string
	Provider            string
	Model               string
	DiarizationEnabled  bool
	SimilarityThreshold float64
	StartedAt           time.Time
	EndedAt             *time.Time
	Status              SessionStatus
	MessageCount        int
	SpeakerCount        int
}

type TranscriptMessage struct {
	SessionID    string
	MessageIndex int
	SpeakerID    string
	SpeakerName  string
	Color        string
	Content      string
	StartTime    float64
	EndTime      float64
	SpokenAt     time.Time
}
