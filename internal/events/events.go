package events

import (
	"context"
	"time"
)

// TranscriptionEvent is published once per processed chunk that produced
// at least one message.
type TranscriptionEvent struct {
	SessionID  string    `json:"session_id"`
	ChunkSeq   int       `json:"chunk_seq"`
	ChunkStart float64   `json:"chunk_start"`
	Provider   string    `json:"provider"`
	Model      string    `json:"model"`
	Messages   []Message `json:"messages"`
	ProducedAt time.Time `json:"produced_at"`
}

type Message struct {
	Speaker   string  `json:"speaker"`
	SpeakerID string  `json:"speaker_id"`
	Text      string  `json:"text"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

type Publisher interface {
	PublishTranscription(ctx context.Context, event TranscriptionEvent) error
	Close() error
}
