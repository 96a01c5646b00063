package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/foxseedlab/livescribe/internal/events"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/speaker"
	"github.com/foxseedlab/livescribe/internal/stream"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"github.com/foxseedlab/livescribe/internal/webhook"
	"github.com/google/uuid"
)

const (
	sessionIDLength      = 8
	finalizeTimeout      = 30 * time.Second
	providerProbeTimeout = 5 * time.Second
	maxSessionIDAttempts = 16
)

// Manager owns the table of live sessions, one per client connection.
type Manager struct {
	cfg       *config.Config
	factory   transcriber.Factory
	collab    Collaborators
	repo      repository.Repository
	webhook   webhook.Sender
	publisher events.Publisher
	metrics   *metrics.Metrics
	newID     func() string

	mu       sync.Mutex
	sessions map[string]*connection
	closed   bool

	handlers   sync.WaitGroup
	finalizers sync.WaitGroup
}

func NewManager(
	cfg *config.Config,
	factory transcriber.Factory,
	fallback *diarization.Fallback,
	extractor speaker.Extractor,
	repo repository.Repository,
	wh webhook.Sender,
	publisher events.Publisher,
	m *metrics.Metrics,
) *Manager {
	return &Manager{
		cfg:       cfg,
		factory:   factory,
		collab:    Collaborators{Fallback: fallback, Extractor: extractor, Metrics: m},
		repo:      repo,
		webhook:   wh,
		publisher: publisher,
		metrics:   m,
		newID:     func() string { return uuid.NewString()[:sessionIDLength] },
		sessions:  make(map[string]*connection),
	}
}

// DefaultSettings returns the settings a new connection starts with.
func (m *Manager) DefaultSettings() (Settings, error) {
	t, err := transcriber.ParseProviderType(m.cfg.DefaultProvider)
	if err != nil {
		return Settings{}, err
	}
	settings := Settings{
		DiarizationEnabled:  m.cfg.DiarizationEnabled,
		SimilarityThreshold: m.cfg.SimilarityThreshold,
		Provider:            transcriber.DefaultSpec(t, ""),
	}
	return settings, settings.Validate()
}

// HandleConnection runs the protocol for one client until it disconnects.
func (m *Manager) HandleConnection(ctx context.Context, conn stream.Conn) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	settings, err := m.DefaultSettings()
	if err != nil {
		m.rejectConnection(conn, err)
		return
	}
	provider, err := m.factory.New(ctx, settings.Provider)
	if err != nil {
		m.rejectConnection(conn, err)
		return
	}

	c, err := m.register(ctx, conn, settings, provider)
	if err != nil {
		m.rejectConnection(conn, err)
		return
	}
	defer m.handlers.Done()
	sess := c.worker.Session()
	slog.Info("session started",
		"session_id", sess.ID(),
		"remote_addr", conn.RemoteAddr(),
		"provider", provider.Type().String(),
		"model", provider.Model(),
		"diarization_enabled", settings.DiarizationEnabled)

	startedAt := time.Now()
	m.archiveStart(ctx, sess, startedAt)

	c.send(connectedEvent{
		Type:                 eventTypeConnected,
		SessionID:            sess.ID(),
		Provider:             provider.Name(),
		ProviderType:         provider.Type().String(),
		Model:                provider.Model(),
		DiarizationAvailable: provider.SupportsDiarization(),
		DiarizationEnabled:   settings.DiarizationEnabled,
		SimilarityThreshold:  settings.SimilarityThreshold,
	})

	c.run(ctx)

	c.worker.Stop()
	m.unregister(sess.ID())
	final := c.worker.Session()
	slog.Info("session ended",
		"session_id", final.ID(),
		"messages", len(final.State().Messages()),
		"duration_seconds", time.Since(startedAt).Seconds())

	m.finalizers.Add(1)
	go func() {
		defer m.finalizers.Done()
		m.finalize(final)
	}()
}

func (m *Manager) rejectConnection(conn stream.Conn, err error) {
	slog.Error("failed to start session", "remote_addr", conn.RemoteAddr(), "error", err)
	if sendErr := conn.Send(newErrorEvent(fmt.Sprintf(errorSessionStartFormat, err))); sendErr != nil {
		slog.Debug("failed to send event", "error", sendErr)
	}
	_ = conn.Close()
}

func (m *Manager) register(ctx context.Context, conn stream.Conn, settings Settings, provider transcriber.Provider) (*connection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("server is shutting down")
	}

	id := ""
	for range maxSessionIDAttempts {
		candidate := m.newID()
		if _, taken := m.sessions[candidate]; !taken {
			id = candidate
			break
		}
	}
	if id == "" {
		return nil, errors.New("could not allocate a session id")
	}

	sess := New(id, settings, provider, m.collab)
	c := &connection{
		manager: m,
		conn:    conn,
		worker:  NewWorker(ctx, sess, conn, m.publisher, m.metrics),
	}
	m.sessions[id] = c
	m.handlers.Add(1)
	m.metrics.ConnectionOpened()
	return c, nil
}

func (m *Manager) unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	m.metrics.ConnectionClosed()
}

// Active returns the number of open sessions.
func (m *Manager) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Transcript returns the messages of a live session, or of an archived one
// when the session has ended.
func (m *Manager) Transcript(ctx context.Context, id string) ([]TranscriptMessage, error) {
	m.mu.Lock()
	c, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		return c.worker.Session().State().Messages(), nil
	}
	if m.repo == nil {
		return nil, repository.ErrSessionNotFound
	}
	if _, err := m.repo.GetSession(ctx, id); err != nil {
		return nil, err
	}
	stored, err := m.repo.ListMessagesBySessionID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages for session %s: %w", id, err)
	}
	out := make([]TranscriptMessage, len(stored))
	for i, msg := range stored {
		out[i] = TranscriptMessage{
			Speaker:   msg.SpeakerName,
			SpeakerID: msg.SpeakerID,
			Text:      msg.Content,
			StartTime: msg.StartTime,
			EndTime:   msg.EndTime,
			Color:     msg.Color,
			Timestamp: msg.SpokenAt,
		}
	}
	return out, nil
}

type ProviderStatus struct {
	Type                string `json:"type"`
	Kind                string `json:"kind"`
	Name                string `json:"name,omitempty"`
	Model               string `json:"model,omitempty"`
	SupportsDiarization bool   `json:"supports_diarization"`
	Available           bool   `json:"available"`
	Error               string `json:"error,omitempty"`
}

// Providers probes every provider type with its default settings.
func (m *Manager) Providers(ctx context.Context) []ProviderStatus {
	types := transcriber.ProviderTypes()
	out := make([]ProviderStatus, 0, len(types))
	for _, t := range types {
		status := ProviderStatus{Type: t.String(), Kind: t.Kind().String()}
		p, err := m.factory.New(ctx, transcriber.DefaultSpec(t, ""))
		if err != nil {
			status.Error = err.Error()
			out = append(out, status)
			continue
		}
		status.Name = p.Name()
		status.Model = p.Model()
		status.SupportsDiarization = p.SupportsDiarization()

		probeCtx, cancel := context.WithTimeout(ctx, providerProbeTimeout)
		err = p.IsAvailable(probeCtx)
		cancel()
		if err != nil {
			status.Error = err.Error()
		} else {
			status.Available = true
		}
		out = append(out, status)
	}
	return out
}

// Shutdown closes every open connection and waits for their transcripts to
// be archived.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	open := make([]*connection, 0, len(m.sessions))
	for _, c := range m.sessions {
		open = append(open, c)
	}
	m.mu.Unlock()

	for _, c := range open {
		_ = c.conn.Close()
	}

	done := make(chan struct{})
	go func() {
		m.handlers.Wait()
		m.finalizers.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) archiveStart(ctx context.Context, sess *Session, startedAt time.Time) {
	if m.repo == nil {
		return
	}
	settings := sess.Settings()
	err := m.repo.CreateSession(ctx, repository.CreateSessionInput{
		ID:                  sess.ID(),
		Provider:            sess.Provider().Type().String(),
		Model:               sess.Provider().Model(),
		DiarizationEnabled:  settings.DiarizationEnabled,
		SimilarityThreshold: settings.SimilarityThreshold,
		StartedAt:           startedAt,
	})
	if err != nil {
		slog.Warn("failed to archive session start", "session_id", sess.ID(), "error", err)
	}
}

func (m *Manager) finalize(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), finalizeTimeout)
	defer cancel()

	messages := sess.State().Messages()
	if m.repo != nil {
		stored := make([]repository.TranscriptMessage, len(messages))
		for i, msg := range messages {
			stored[i] = repository.TranscriptMessage{
				SessionID:    sess.ID(),
				MessageIndex: i,
				SpeakerID:    msg.SpeakerID,
				SpeakerName:  msg.Speaker,
				Color:        msg.Color,
				Content:      msg.Text,
				StartTime:    msg.StartTime,
				EndTime:      msg.EndTime,
				SpokenAt:     msg.Timestamp,
			}
		}
		if err := m.repo.CompleteSession(ctx, repository.CompleteSessionInput{
			SessionID:    sess.ID(),
			EndedAt:      time.Now(),
			SpeakerCount: len(sess.State().Speakers()),
			Messages:     stored,
		}); err != nil {
			slog.Error("failed to archive session", "session_id", sess.ID(), "error", err)
		}
	}

	if m.webhook == nil || len(messages) == 0 {
		return
	}
	filename := exportFilename(sess.ID(), ExportFormatText)
	if err := m.webhook.SendTranscript(ctx, filename, []byte(sess.ExportText())); err != nil {
		slog.Error("failed to send webhook transcript", "session_id", sess.ID(), "error", err)
	}
}
