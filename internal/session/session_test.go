package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/foxseedlab/livescribe/internal/speaker"
	"github.com/foxseedlab/livescribe/internal/transcriber"
)

type mockProvider struct {
	typ         transcriber.ProviderType
	model       string
	diarization bool
	transcribe  func(ctx context.Context, audio []byte, enableDiarization bool) (*transcriber.Result, error)

	mu    sync.Mutex
	calls []string
}

func (m *mockProvider) Name() string {
	return "Mock " + string(m.typ)
}
func (m *mockProvider) Type() transcriber.ProviderType      { return m.typ }
func (m *mockProvider) Model() string                       { return m.model }
func (m *mockProvider) SupportsDiarization() bool           { return m.diarization }
func (m *mockProvider) IsAvailable(_ context.Context) error { return nil }
func (m *mockProvider) Transcribe(ctx context.Context, audio []byte, enableDiarization bool) (*transcriber.Result, error) {
	m.mu.Lock()
	m.calls = append(m.calls, string(audio))
	m.mu.Unlock()
	if m.transcribe == nil {
		return &transcriber.Result{}, nil
	}
	return m.transcribe(ctx, audio, enableDiarization)
}

func (m *mockProvider) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// segmentsByAudio returns a transcribe func that answers with the segments
// registered for the chunk's audio bytes.
func segmentsByAudio(table map[string][]transcriber.Segment) func(context.Context, []byte, bool) (*transcriber.Result, error) {
	return func(_ context.Context, audio []byte, _ bool) (*transcriber.Result, error) {
		return &transcriber.Result{Segments: table[string(audio)]}, nil
	}
}

type mockExtractor struct {
	embed func(audio []byte, start, end float64) ([]float64, error)
}

func (m *mockExtractor) Extract(_ context.Context, audio []byte, start, end float64) ([]float64, error) {
	return m.embed(audio, start, end)
}

type mockDiarizer struct {
	result *diarization.Result
	err    error
	calls  int
}

func (m *mockDiarizer) Name() string                        { return "mock" }
func (m *mockDiarizer) IsAvailable(_ context.Context) error { return nil }
func (m *mockDiarizer) Diarize(_ context.Context, _ []byte) (*diarization.Result, error) {
	m.calls++
	return m.result, m.err
}

func newTestSettings(t transcriber.ProviderType) Settings {
	return Settings{
		DiarizationEnabled:  true,
		SimilarityThreshold: speaker.DefaultSimilarityThreshold,
		Provider:            transcriber.DefaultSpec(t, ""),
	}
}

func TestProcessChunk_ReusesIdentityAboveThreshold(t *testing.T) {
	provider := &mockProvider{
		typ: transcriber.ProviderParakeet,
		transcribe: segmentsByAudio(map[string][]transcriber.Segment{
			"a": {{Text: "hello", Start: 0, End: 2, Speaker: "SPEAKER_00"}},
			"b": {{Text: "again", Start: 0, End: 2, Speaker: "SPEAKER_00"}},
			"c": {{Text: "someone else", Start: 0, End: 2, Speaker: "SPEAKER_00"}},
		}),
	}
	vectors := map[string][]float64{
		"a": {1, 0},
		"b": {0.9, 0.1},
		"c": {0, 1},
	}
	extractor := &mockExtractor{embed: func(audio []byte, _, _ float64) ([]float64, error) {
		return vectors[string(audio)], nil
	}}
	s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), provider, Collaborators{Extractor: extractor})

	first, err := s.ProcessChunk(context.Background(), []byte("a"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := s.ProcessChunk(context.Background(), []byte("b"), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	third, err := s.ProcessChunk(context.Background(), []byte("c"), 60)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if first[0].SpeakerID != "GLOBAL_SPEAKER_00" || second[0].SpeakerID != "GLOBAL_SPEAKER_00" {
		t.Fatalf("expected identity reuse, got %s and %s", first[0].SpeakerID, second[0].SpeakerID)
	}
	if second[0].Speaker != "Speaker 1" || second[0].Color != speaker.Palette[0] {
		t.Fatalf("unexpected reused identity: %+v", second[0])
	}
	if third[0].SpeakerID != "GLOBAL_SPEAKER_01" || third[0].Speaker != "Speaker 2" || third[0].Color != speaker.Palette[1] {
		t.Fatalf("expected a new identity, got %+v", third[0])
	}
	if second[0].StartTime != 30 || second[0].EndTime != 32 {
		t.Fatalf("expected absolute times 30..32, got %v..%v", second[0].StartTime, second[0].EndTime)
	}
	if got := len(s.State().Messages()); got != 3 {
		t.Fatalf("expected 3 messages in log, got %d", got)
	}
}

func TestProcessChunk_ThresholdControlsReuse(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		wantIDs   int
	}{
		{name: "permissive threshold reuses", threshold: 0.1, wantIDs: 1},
		{name: "strict threshold mints", threshold: 0.99, wantIDs: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{
				typ: transcriber.ProviderParakeet,
				transcribe: segmentsByAudio(map[string][]transcriber.Segment{
					"a": {{Text: "one", Start: 0, End: 2}},
					"b": {{Text: "two", Start: 0, End: 2}},
				}),
			}
			vectors := map[string][]float64{"a": {1, 0}, "b": {0.7, 0.7}}
			extractor := &mockExtractor{embed: func(audio []byte, _, _ float64) ([]float64, error) {
				return vectors[string(audio)], nil
			}}
			settings := newTestSettings(transcriber.ProviderParakeet)
			settings.SimilarityThreshold = tt.threshold
			s := New("abcd1234", settings, provider, Collaborators{Extractor: extractor})

			for _, chunk := range []string{"a", "b"} {
				if _, err := s.ProcessChunk(context.Background(), []byte(chunk), 0); err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
			if got := len(s.State().Speakers()); got != tt.wantIDs {
				t.Fatalf("expected %d identities, got %d", tt.wantIDs, got)
			}
		})
	}
}

func TestProcessChunk_PaletteCyclesAfterEightSpeakers(t *testing.T) {
	segments := make([]transcriber.Segment, 9)
	for i := range segments {
		segments[i] = transcriber.Segment{
			Text:    "line",
			Start:   float64(i * 2),
			End:     float64(i*2 + 2),
			Speaker: "SPEAKER_0" + string(rune('0'+i)),
		}
	}
	provider := &mockProvider{
		typ: transcriber.ProviderParakeet,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: segments}, nil
		},
	}
	s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), provider, Collaborators{})

	messages, err := s.ProcessChunk(context.Background(), []byte("a"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 9 {
		t.Fatalf("expected 9 messages, got %d", len(messages))
	}
	if messages[8].Speaker != "Speaker 9" || messages[8].Color != speaker.Palette[0] {
		t.Fatalf("expected ninth speaker to wrap to first color, got %+v", messages[8])
	}
	if messages[7].Color != speaker.Palette[7] {
		t.Fatalf("expected eighth speaker to use last color, got %s", messages[7].Color)
	}
}

func TestProcessChunk_EmptyInputs(t *testing.T) {
	tests := []struct {
		name   string
		result *transcriber.Result
	}{
		{name: "nil result", result: nil},
		{name: "no segments", result: &transcriber.Result{}},
		{name: "blank text only", result: &transcriber.Result{Segments: []transcriber.Segment{{Text: "   ", Start: 0, End: 1}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &mockProvider{
				typ: transcriber.ProviderParakeet,
				transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
					return tt.result, nil
				},
			}
			s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), provider, Collaborators{})
			messages, err := s.ProcessChunk(context.Background(), []byte("a"), 0)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if messages == nil || len(messages) != 0 {
				t.Fatalf("expected empty non-nil batch, got %#v", messages)
			}
			if len(s.State().Messages()) != 0 {
				t.Fatal("expected empty log")
			}
		})
	}
}

func TestProcessChunk_ProviderErrorIsScoped(t *testing.T) {
	provider := &mockProvider{
		typ: transcriber.ProviderDeepgram,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return nil, errors.New("upstream 503")
		},
	}
	s := New("abcd1234", newTestSettings(transcriber.ProviderDeepgram), provider, Collaborators{})

	_, err := s.ProcessChunk(context.Background(), []byte("a"), 0)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "Mock deepgram") || !strings.Contains(err.Error(), "upstream 503") {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s.State().Messages()) != 0 {
		t.Fatal("expected log unchanged after provider error")
	}
}

func TestProcessChunk_FallbackRelabelsCollapsedCloudChunk(t *testing.T) {
	provider := &mockProvider{
		typ: transcriber.ProviderDeepgram,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: []transcriber.Segment{
				{Text: "question", Start: 0, End: 2, Speaker: "SPEAKER_00"},
				{Text: "answer", Start: 3, End: 5, Speaker: "SPEAKER_00"},
			}}, nil
		},
	}
	diarizer := &mockDiarizer{result: diarization.NewResult([]diarization.Turn{
		{Speaker: "A", Start: 0, End: 2.5},
		{Speaker: "B", Start: 2.5, End: 5},
	}, 2)}
	s := New("abcd1234", newTestSettings(transcriber.ProviderDeepgram), provider, Collaborators{
		Fallback: diarization.NewFallback(diarizer),
	})

	messages, err := s.ProcessChunk(context.Background(), []byte("a"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diarizer.calls != 1 {
		t.Fatalf("expected one fallback run, got %d", diarizer.calls)
	}
	if messages[0].SpeakerID == messages[1].SpeakerID {
		t.Fatalf("expected two identities after fallback, got %+v", messages)
	}
}

func TestProcessChunk_NoFallbackForLocalProvider(t *testing.T) {
	provider := &mockProvider{
		typ: transcriber.ProviderParakeet,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: []transcriber.Segment{
				{Text: "one", Start: 0, End: 2},
				{Text: "two", Start: 3, End: 5},
			}}, nil
		},
	}
	diarizer := &mockDiarizer{}
	s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), provider, Collaborators{
		Fallback: diarization.NewFallback(diarizer),
	})
	if _, err := s.ProcessChunk(context.Background(), []byte("a"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if diarizer.calls != 0 {
		t.Fatalf("expected no fallback run, got %d", diarizer.calls)
	}
}

func TestProcessChunk_EmbeddingFailureStillMints(t *testing.T) {
	provider := &mockProvider{
		typ: transcriber.ProviderParakeet,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: []transcriber.Segment{{Text: "hi", Start: 0, End: 2}}}, nil
		},
	}
	extractor := &mockExtractor{embed: func([]byte, float64, float64) ([]float64, error) {
		return nil, errors.New("sidecar down")
	}}
	s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), provider, Collaborators{Extractor: extractor})

	messages, err := s.ProcessChunk(context.Background(), []byte("a"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(messages) != 1 || messages[0].SpeakerID != "GLOBAL_SPEAKER_00" {
		t.Fatalf("unexpected messages: %+v", messages)
	}
	speakers := s.State().Speakers()
	if len(speakers) != 1 || speakers[0].Embedding != nil {
		t.Fatalf("expected one identity without embedding, got %+v", speakers)
	}
}

func TestDerive_PreservesStateAcrossProviderSwap(t *testing.T) {
	local := &mockProvider{
		typ: transcriber.ProviderParakeet,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: []transcriber.Segment{{Text: "before", Start: 0, End: 2}}}, nil
		},
	}
	cloud := &mockProvider{
		typ: transcriber.ProviderDeepgram,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: []transcriber.Segment{{Text: "after", Start: 0, End: 2, Speaker: "SPEAKER_00"}}}, nil
		},
	}
	extractor := &mockExtractor{embed: func([]byte, float64, float64) ([]float64, error) {
		return []float64{1, 0, 0}, nil
	}}
	s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), local, Collaborators{Extractor: extractor})
	if _, err := s.ProcessChunk(context.Background(), []byte("a"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	settings := newTestSettings(transcriber.ProviderDeepgram)
	next := s.Derive(settings, cloud)
	messages, err := next.ProcessChunk(context.Background(), []byte("b"), 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if next.ID() != s.ID() {
		t.Fatalf("expected derived session to keep id %s, got %s", s.ID(), next.ID())
	}
	if messages[0].SpeakerID != "GLOBAL_SPEAKER_00" {
		t.Fatalf("expected identity to survive provider swap, got %s", messages[0].SpeakerID)
	}
	log := next.State().Messages()
	if len(log) != 2 || log[0].Text != "before" || log[1].Text != "after" {
		t.Fatalf("unexpected log after swap: %+v", log)
	}
	if s.Provider() != local || s.Settings().Provider.Type != transcriber.ProviderParakeet {
		t.Fatal("expected original session to stay unchanged")
	}
}

func TestClear_ResetsLogAndIdentities(t *testing.T) {
	provider := &mockProvider{
		typ: transcriber.ProviderParakeet,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: []transcriber.Segment{{Text: "hi", Start: 0, End: 2}}}, nil
		},
	}
	s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), provider, Collaborators{})
	if _, err := s.ProcessChunk(context.Background(), []byte("a"), 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.Clear()
	if len(s.State().Messages()) != 0 || len(s.State().Speakers()) != 0 {
		t.Fatal("expected empty state after clear")
	}

	messages, err := s.ProcessChunk(context.Background(), []byte("b"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if messages[0].Speaker != "Speaker 1" {
		t.Fatalf("expected numbering to restart, got %s", messages[0].Speaker)
	}
}

func TestSettingsValidate(t *testing.T) {
	settings := newTestSettings(transcriber.ProviderParakeet)
	if err := settings.Validate(); err != nil {
		t.Fatalf("expected valid settings, got %v", err)
	}
	settings.SimilarityThreshold = 1.5
	if err := settings.Validate(); err == nil {
		t.Fatal("expected error for threshold above 1")
	}
}

func TestStateTimestamp(t *testing.T) {
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	provider := &mockProvider{
		typ: transcriber.ProviderParakeet,
		transcribe: func(context.Context, []byte, bool) (*transcriber.Result, error) {
			return &transcriber.Result{Segments: []transcriber.Segment{{Text: " padded ", Start: 0, End: 1}}}, nil
		},
	}
	s := New("abcd1234", newTestSettings(transcriber.ProviderParakeet), provider, Collaborators{})
	s.now = func() time.Time { return fixed }

	messages, err := s.ProcessChunk(context.Background(), []byte("a"), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !messages[0].Timestamp.Equal(fixed) {
		t.Fatalf("unexpected timestamp: %v", messages[0].Timestamp)
	}
	if messages[0].Text != "padded" {
		t.Fatalf("expected trimmed text, got %q", messages[0].Text)
	}
}
