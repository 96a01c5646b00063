package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/foxseedlab/livescribe/internal/speaker"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type Settings struct {
	DiarizationEnabled  bool
	SimilarityThreshold float64 `validate:"gte=0,lte=1"`
	Provider            transcriber.Spec `validate:"-"`
}

func (s Settings) Validate() error {
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("similarity_threshold must be within [0, 1], got %v", s.SimilarityThreshold)
	}
	return s.Provider.Validate()
}

// Collaborators are the per-process services a Session calls into.
type Collaborators struct {
	Fallback  *diarization.Fallback
	Extractor speaker.Extractor
	Metrics   *metrics.Metrics
}

// Session pairs immutable settings and a provider with the connection's
// shared State. Configuration changes produce a new Session via Derive.
type Session struct {
	id       string
	settings Settings
	provider transcriber.Provider
	collab   Collaborators
	state    *State
	now      func() time.Time
}

func New(id string, settings Settings, provider transcriber.Provider, collab Collaborators) *Session {
	return &Session{
		id:       id,
		settings: settings,
		provider: provider,
		collab:   collab,
		state:    NewState(),
		now:      time.Now,
	}
}

// Derive returns a Session with new settings and provider that shares this
// session's ID and State.
func (s *Session) Derive(settings Settings, provider transcriber.Provider) *Session {
	next := *s
	next.settings = settings
	next.provider = provider
	return &next
}

func (s *Session) ID() string                     { return s.id }
func (s *Session) Settings() Settings             { return s.settings }
func (s *Session) Provider() transcriber.Provider { return s.provider }
func (s *Session) State() *State                  { return s.state }

// ProcessChunk transcribes one chunk, attributes its segments to session
// speakers and appends the resulting messages to the log. chunkStart is the
// chunk's offset in the conversation, in seconds.
func (s *Session) ProcessChunk(ctx context.Context, audio []byte, chunkStart float64) ([]TranscriptMessage, error) {
	result, err := s.provider.Transcribe(ctx, audio, s.settings.DiarizationEnabled)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.provider.Name(), err)
	}
	if result.IsEmpty() {
		slog.Debug("provider returned no segments", "session_id", s.id, "chunk_start", chunkStart)
		return []TranscriptMessage{}, nil
	}

	segments := result.Segments
	if diarization.ShouldFallback(s.provider.Type().Kind(), s.settings.DiarizationEnabled, segments) {
		var applied bool
		segments, applied = s.collab.Fallback.Apply(ctx, audio, segments)
		s.collab.Metrics.RecordFallback(applied)
	}

	ranges := speaker.Ranges(segments)
	vecs := make([][]float64, len(ranges))
	for i, r := range ranges {
		vecs[i] = s.embed(ctx, audio, r)
	}

	batch, minted := s.state.commit(segments, ranges, vecs, s.settings.SimilarityThreshold, chunkStart, s.now())
	if minted > 0 && s.collab.Metrics != nil {
		s.collab.Metrics.SpeakersCreated.Add(float64(minted))
	}
	slog.Debug("chunk attributed",
		"session_id", s.id,
		"chunk_start", chunkStart,
		"segments", len(segments),
		"local_speakers", len(ranges),
		"new_speakers", minted,
		"messages", len(batch))
	return batch, nil
}

func (s *Session) embed(ctx context.Context, audio []byte, r speaker.Range) []float64 {
	if s.collab.Extractor == nil {
		return nil
	}
	vec, err := s.collab.Extractor.Extract(ctx, audio, r.Start, r.End)
	if err != nil {
		slog.Warn("speaker embedding failed", "session_id", s.id, "label", r.Label, "start", r.Start, "end", r.End, "error", err)
		return nil
	}
	return vec
}

func (s *Session) ExportText() string {
	return formatTranscriptText(s.state.Messages())
}

func (s *Session) ExportSRT() string {
	return formatTranscriptSRT(s.state.Messages())
}

func (s *Session) Clear() {
	s.state.Clear()
}
