package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

const deepgramListenURL = "https://api.deepgram.com/v1/listen"

var deepgramModels = map[string]string{
	"nova-3":           "Nova-3 (General)",
	"nova-3-general":   "Nova-3 General",
	"nova-3-meeting":   "Nova-3 Meeting",
	"nova-3-phonecall": "Nova-3 Phone",
	"nova-3-voicemail": "Nova-3 Voicemail",
	"nova-3-finance":   "Nova-3 Finance",
	"nova-3-medical":   "Nova-3 Medical",
	"nova-2":           "Nova-2 (General)",
	"nova-2-meeting":   "Nova-2 Meeting",
	"nova-2-phonecall": "Nova-2 Phone",
	"nova-2-voicemail": "Nova-2 Voicemail",
	"nova-2-finance":   "Nova-2 Finance",
	"nova-2-medical":   "Nova-2 Medical",
}

var errDeepgramKeyMissing = fmt.Errorf("%w: Deepgram API key not configured", transcriber.ErrProviderUnavailable)

type DeepgramProvider struct {
	apiKey   string
	model    string
	opts     transcriber.DeepgramOptions
	endpoint string
	client   *http.Client
}

func (p *DeepgramProvider) Name() string {
	if name, ok := deepgramModels[p.model]; ok {
		return "Deepgram " + name
	}
	return "Deepgram " + p.model
}

func (p *DeepgramProvider) Type() transcriber.ProviderType { return transcriber.ProviderDeepgram }
func (p *DeepgramProvider) Model() string                  { return p.model }
func (p *DeepgramProvider) SupportsDiarization() bool      { return true }

func (p *DeepgramProvider) IsAvailable(_ context.Context) error {
	if p.apiKey == "" {
		return errDeepgramKeyMissing
	}
	return nil
}

func (p *DeepgramProvider) query(enableDiarization bool) url.Values {
	q := url.Values{}
	q.Set("model", p.model)
	flags := []struct {
		name string
		on   bool
	}{
		{"smart_format", p.opts.SmartFormat},
		{"punctuate", p.opts.Punctuate},
		{"paragraphs", p.opts.Paragraphs},
		{"utterances", p.opts.Utterances},
		{"profanity_filter", p.opts.ProfanityFilter},
		{"numerals", p.opts.Numerals},
	}
	for _, f := range flags {
		if f.on {
			q.Set(f.name, "true")
		}
	}
	if enableDiarization {
		q.Set("diarize", "true")
		q.Set("words", "true")
	}
	if p.opts.Language != "" {
		q.Set("language", p.opts.Language)
	} else {
		q.Set("detect_language", "true")
	}
	return q
}

func (p *DeepgramProvider) Transcribe(ctx context.Context, audio []byte, enableDiarization bool) (*transcriber.Result, error) {
	if p.apiKey == "" {
		return nil, errDeepgramKeyMissing
	}

	endpoint := p.endpoint + "?" + p.query(enableDiarization).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(audio))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+p.apiKey)
	req.Header.Set("Content-Type", "audio/wav")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("deepgram request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("deepgram API error (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var decoded deepgramResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode deepgram response: %w", err)
	}
	return parseDeepgramResponse(&decoded, enableDiarization), nil
}

// parseDeepgramResponse prefers utterances when diarizing, then runs of
// words by speaker, then the whole transcript as one segment.
func parseDeepgramResponse(resp *deepgramResponse, enableDiarization bool) *transcriber.Result {
	result := &transcriber.Result{Duration: resp.Metadata.Duration}
	if len(resp.Results.Channels) == 0 || len(resp.Results.Channels[0].Alternatives) == 0 {
		return result
	}
	channel := resp.Results.Channels[0]
	alt := channel.Alternatives[0]
	result.Language = channel.DetectedLanguage

	label := func(speaker int) string {
		if !enableDiarization {
			return ""
		}
		return fmt.Sprintf("SPEAKER_%02d", speaker)
	}

	switch {
	case enableDiarization && resp.Results.Utterances != nil:
		for _, u := range resp.Results.Utterances {
			result.Segments = append(result.Segments, transcriber.Segment{
				Text:       u.Transcript,
				Start:      u.Start,
				End:        u.End,
				Speaker:    label(u.Speaker),
				Confidence: u.Confidence,
			})
		}
	case len(alt.Words) > 0:
		result.Segments = wordRuns(alt.Words, enableDiarization, label)
	case alt.Transcript != "":
		result.Segments = []transcriber.Segment{{
			Text:    alt.Transcript,
			Start:   0,
			End:     resp.Metadata.Duration,
			Speaker: label(0),
		}}
	}

	texts := make([]string, len(result.Segments))
	for i, s := range result.Segments {
		texts[i] = s.Text
	}
	result.FullText = strings.Join(texts, " ")
	return result
}

func wordRuns(words []deepgramWord, enableDiarization bool, label func(int) string) []transcriber.Segment {
	var (
		segments []transcriber.Segment
		run      []deepgramWord
		current  int
	)
	flush := func() {
		if len(run) == 0 {
			return
		}
		texts := make([]string, len(run))
		var total float64
		for i, w := range run {
			texts[i] = w.Word
			total += w.Confidence
		}
		confidence := total / float64(len(run))
		segments = append(segments, transcriber.Segment{
			Text:       strings.Join(texts, " "),
			Start:      run[0].Start,
			End:        run[len(run)-1].End,
			Speaker:    label(current),
			Confidence: &confidence,
		})
	}
	for i, w := range words {
		speaker := 0
		if enableDiarization {
			speaker = w.Speaker
		}
		if i > 0 && speaker != current {
			flush()
			run = run[:0]
		}
		current = speaker
		run = append(run, w)
	}
	flush()
	return segments
}

type deepgramResponse struct {
	Metadata struct {
		Duration float64 `json:"duration"`
	} `json:"metadata"`
	Results struct {
		Channels   []deepgramChannel   `json:"channels"`
		Utterances []deepgramUtterance `json:"utterances"`
	} `json:"results"`
}

type deepgramChannel struct {
	DetectedLanguage string                `json:"detected_language"`
	Alternatives     []deepgramAlternative `json:"alternatives"`
}

type deepgramAlternative struct {
	Transcript string         `json:"transcript"`
	Words      []deepgramWord `json:"words"`
}

type deepgramWord struct {
	Word       string  `json:"word"`
	Start      float64 `json:"start"`
	End        float64 `json:"end"`
	Confidence float64 `json:"confidence"`
	Speaker    int     `json:"speaker"`
}

type deepgramUtterance struct {
	Transcript string   `json:"transcript"`
	Start      float64  `json:"start"`
	End        float64  `json:"end"`
	Speaker    int      `json:"speaker"`
	Confidence *float64 `json:"confidence"`
}
