package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/foxseedlab/livescribe/internal/stream"
	"github.com/foxseedlab/livescribe/internal/transcriber"
)

// connection is the protocol state of one client. Its methods run on the
// receive loop goroutine only.
type connection struct {
	manager *Manager
	conn    stream.Conn
	worker  *Worker
	seq     int
}

func (c *connection) run(ctx context.Context) {
	id := c.worker.Session().ID()
	for {
		raw, err := c.conn.Receive(ctx)
		if err != nil {
			if errors.Is(err, stream.ErrClosed) || errors.Is(err, context.Canceled) {
				slog.Info("client disconnected", "session_id", id)
			} else {
				slog.Warn("receive failed", "session_id", id, "error", err)
			}
			return
		}
		c.dispatch(ctx, raw)
	}
}

func (c *connection) dispatch(ctx context.Context, raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(errorInvalidJSON)
		return
	}
	switch msg.Type {
	case messageTypeConfig:
		c.handleConfig(ctx, raw)
	case messageTypeAudioChunk:
		c.handleAudioChunk(raw)
	case messageTypeExport:
		c.handleExport(raw)
	case messageTypeClear:
		c.handleClear()
	default:
		c.sendError(fmt.Sprintf(errorUnknownTypeFormat, msg.Type))
	}
}

func (c *connection) handleConfig(ctx context.Context, raw []byte) {
	var msg configMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(errorInvalidJSON)
		return
	}

	current := c.worker.Session()
	settings := current.Settings()
	if msg.EnableDiarization != nil {
		settings.DiarizationEnabled = *msg.EnableDiarization
	}
	if msg.SimilarityThreshold != nil {
		settings.SimilarityThreshold = *msg.SimilarityThreshold
	}

	switchProvider := msg.Provider != nil || msg.Model != nil || hasOptions(msg.Options)
	if switchProvider {
		spec := settings.Provider
		if msg.Provider != nil {
			t, err := transcriber.ParseProviderType(*msg.Provider)
			if err != nil {
				c.sendError(fmt.Sprintf(errorProviderSwitchFormat, err))
				return
			}
			if t != spec.Type {
				spec = transcriber.DefaultSpec(t, "")
			}
		}
		model := ""
		if msg.Model != nil {
			model = *msg.Model
		}
		next, err := spec.With(model, msg.Options)
		if err != nil {
			c.sendError(fmt.Sprintf(errorInvalidConfigFormat, err))
			return
		}
		settings.Provider = next
	}

	if err := settings.Validate(); err != nil {
		c.sendError(fmt.Sprintf(errorInvalidConfigFormat, err))
		return
	}

	provider := current.Provider()
	if switchProvider {
		p, err := c.manager.factory.New(ctx, settings.Provider)
		if err != nil {
			slog.Warn("provider switch failed", "session_id", current.ID(), "provider", settings.Provider.Type.String(), "error", err)
			c.sendError(fmt.Sprintf(errorProviderSwitchFormat, err))
			return
		}
		provider = p
	}

	c.worker.Swap(current.Derive(settings, provider))
	slog.Info("session reconfigured",
		"session_id", current.ID(),
		"provider", provider.Type().String(),
		"model", provider.Model(),
		"diarization_enabled", settings.DiarizationEnabled,
		"similarity_threshold", settings.SimilarityThreshold)

	if switchProvider {
		c.send(providerChangedEvent{
			Type:                 eventTypeProviderChanged,
			Provider:             provider.Name(),
			ProviderType:         provider.Type().String(),
			Model:                provider.Model(),
			DiarizationAvailable: provider.SupportsDiarization(),
		})
		return
	}
	c.send(newStatusEvent(fmt.Sprintf(statusConfigUpdatedFormat, settings.SimilarityThreshold)))
}

func (c *connection) handleAudioChunk(raw []byte) {
	var msg audioChunkMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(errorInvalidJSON)
		return
	}
	if msg.Data == "" {
		c.sendError(errorNoAudioData)
		return
	}
	audio, err := base64.StdEncoding.DecodeString(msg.Data)
	if err != nil {
		c.sendError(fmt.Sprintf(errorInvalidAudioFormat, err))
		return
	}
	if len(audio) == 0 {
		c.sendError(errorNoAudioData)
		return
	}
	c.seq++
	c.worker.Enqueue(audio, msg.ChunkStart, c.seq)
}

func (c *connection) handleExport(raw []byte) {
	var msg exportMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(errorInvalidJSON)
		return
	}
	format := ExportFormat(strings.ToLower(strings.TrimSpace(msg.Format)))
	if format == "" {
		format = ExportFormatText
	}

	sess := c.worker.Session()
	var content string
	switch format {
	case ExportFormatText:
		content = sess.ExportText()
	case ExportFormatSRT:
		content = sess.ExportSRT()
	default:
		c.sendError(fmt.Sprintf(errorUnknownExportFormat, msg.Format))
		return
	}
	c.send(exportResultEvent{
		Type:     eventTypeExportResult,
		Content:  content,
		Filename: exportFilename(sess.ID(), format),
	})
}

func (c *connection) handleClear() {
	sess := c.worker.Session()
	sess.Clear()
	slog.Info("session cleared", "session_id", sess.ID())
	c.send(newStatusEvent(statusSessionCleared))
}

func (c *connection) send(v any) {
	if err := c.conn.Send(v); err != nil {
		slog.Debug("failed to send event", "error", err)
	}
}

func (c *connection) sendError(message string) {
	c.send(newErrorEvent(message))
}

func hasOptions(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}
