package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/foxseedlab/livescribe/internal/transcriber"
)

const parakeetName = "Parakeet-MLX (Local)"

// ParakeetProvider transcribes on the local engine sidecar and attributes
// speakers with the local diarizer.
type ParakeetProvider struct {
	baseURL  string
	model    string
	opts     transcriber.ParakeetOptions
	diarizer diarization.Diarizer
	client   *http.Client
}

func (p *ParakeetProvider) Name() string                   { return parakeetName }
func (p *ParakeetProvider) Type() transcriber.ProviderType { return transcriber.ProviderParakeet }
func (p *ParakeetProvider) Model() string                  { return p.model }
func (p *ParakeetProvider) SupportsDiarization() bool      { return p.diarizer != nil }

func (p *ParakeetProvider) IsAvailable(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: parakeet sidecar unreachable: %v", transcriber.ErrProviderUnavailable, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: parakeet sidecar returned status %d", transcriber.ErrProviderUnavailable, resp.StatusCode)
	}
	return nil
}

func (p *ParakeetProvider) Transcribe(ctx context.Context, audio []byte, enableDiarization bool) (*transcriber.Result, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("audio", "chunk.wav")
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return nil, fmt.Errorf("write audio data: %w", err)
	}
	_ = writer.WriteField("model", p.model)
	_ = writer.WriteField("chunk_duration", strconv.FormatFloat(p.opts.ChunkDuration, 'f', -1, 64))
	if p.opts.Language != "" {
		_ = writer.WriteField("language", p.opts.Language)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/transcribe", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("parakeet request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("parakeet error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded parakeetResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode parakeet response: %w", err)
	}

	result := &transcriber.Result{
		FullText: decoded.Text,
		Language: decoded.Language,
		Segments: make([]transcriber.Segment, 0, len(decoded.Segments)),
	}
	if result.Language == "" {
		result.Language = p.opts.Language
	}
	for _, seg := range decoded.Segments {
		result.Segments = append(result.Segments, transcriber.Segment{Text: seg.Text, Start: seg.Start, End: seg.End})
	}
	if n := len(result.Segments); n > 0 {
		result.Duration = result.Segments[n-1].End
	}

	if enableDiarization && p.diarizer != nil && len(result.Segments) > 0 {
		turns, err := p.diarizer.Diarize(ctx, audio)
		if err != nil {
			slog.Warn("local diarization failed; segments left unlabeled", "diarizer", p.diarizer.Name(), "error", err)
			return result, nil
		}
		result.Segments = diarization.Assign(result.Segments, turns)
	}
	return result, nil
}

type parakeetResponse struct {
	Text     string            `json:"text"`
	Segments []parakeetSegment `json:"segments"`
	Language string            `json:"language"`
}

type parakeetSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}
