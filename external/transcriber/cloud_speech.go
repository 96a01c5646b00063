package transcriber

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/auth"
	"cloud.google.com/go/auth/credentials"
	speech "cloud.google.com/go/speech/apiv2"
	speechpb "cloud.google.com/go/speech/apiv2/speechpb"
	"github.com/foxseedlab/livescribe/internal/transcriber"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	speechAPIEndpointPort = 443
	autoDetectLanguage    = "auto"
)

// CloudSpeechProvider calls the Cloud Speech-to-Text v2 Recognize API with
// speaker diarization.
type CloudSpeechProvider struct {
	projectID       string
	credentialsJSON string
	location        string
	model           string
	opts            transcriber.GoogleSpeechOptions
}

func (p *CloudSpeechProvider) Name() string {
	return fmt.Sprintf("Google Cloud Speech (%s)", p.model)
}

func (p *CloudSpeechProvider) Type() transcriber.ProviderType { return transcriber.ProviderGoogleSpeech }
func (p *CloudSpeechProvider) Model() string                  { return p.model }
func (p *CloudSpeechProvider) SupportsDiarization() bool      { return true }

func (p *CloudSpeechProvider) IsAvailable(_ context.Context) error {
	if p.projectID == "" || p.credentialsJSON == "" {
		return fmt.Errorf("%w: Google Cloud credentials not configured", transcriber.ErrProviderUnavailable)
	}
	if _, err := p.detectCredentials(); err != nil {
		return fmt.Errorf("%w: %v", transcriber.ErrProviderUnavailable, err)
	}
	return nil
}

func (p *CloudSpeechProvider) detectCredentials() (*auth.Credentials, error) {
	creds, err := credentials.DetectDefault(&credentials.DetectOptions{
		CredentialsJSON: []byte(p.credentialsJSON),
		Scopes:          []string{"https://www.googleapis.com/auth/cloud-platform"},
	})
	if err != nil {
		return nil, fmt.Errorf("detect credentials: %w", err)
	}
	return creds, nil
}

func (p *CloudSpeechProvider) Transcribe(ctx context.Context, audio []byte, enableDiarization bool) (*transcriber.Result, error) {
	if p.projectID == "" || p.credentialsJSON == "" {
		return nil, fmt.Errorf("%w: Google Cloud credentials not configured", transcriber.ErrProviderUnavailable)
	}
	creds, err := p.detectCredentials()
	if err != nil {
		return nil, err
	}

	opts := []option.ClientOption{
		option.WithAuthCredentials(creds),
	}
	if p.location != "global" {
		opts = append(opts, option.WithEndpoint(fmt.Sprintf("%s-speech.googleapis.com:%d", p.location, speechAPIEndpointPort)))
	}
	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create speech client: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	resp, err := client.Recognize(ctx, p.recognizeRequest(audio, enableDiarization))
	if err != nil {
		return nil, classifySpeechError(err)
	}
	return parseRecognizeResponse(resp, enableDiarization), nil
}

func (p *CloudSpeechProvider) recognizeRequest(audio []byte, enableDiarization bool) *speechpb.RecognizeRequest {
	language := p.opts.Language
	if language == "" {
		language = autoDetectLanguage
	}
	features := &speechpb.RecognitionFeatures{
		EnableWordTimeOffsets:      true,
		EnableAutomaticPunctuation: p.opts.AutomaticPunctuation,
	}
	if enableDiarization {
		features.DiarizationConfig = &speechpb.SpeakerDiarizationConfig{
			MinSpeakerCount: p.opts.MinSpeakers,
			MaxSpeakerCount: p.opts.MaxSpeakers,
		}
	}
	return &speechpb.RecognizeRequest{
		Recognizer: fmt.Sprintf("projects/%s/locations/%s/recognizers/_", p.projectID, p.location),
		Config: &speechpb.RecognitionConfig{
			DecodingConfig: &speechpb.RecognitionConfig_AutoDecodingConfig{
				AutoDecodingConfig: &speechpb.AutoDetectDecodingConfig{},
			},
			Model:         p.model,
			LanguageCodes: []string{language},
			Features:      features,
		},
		AudioSource: &speechpb.RecognizeRequest_Content{Content: audio},
	}
}

// parseRecognizeResponse groups consecutive words with the same speaker
// label into segments. Results without word timings become one segment.
func parseRecognizeResponse(resp *speechpb.RecognizeResponse, enableDiarization bool) *transcriber.Result {
	result := &transcriber.Result{}
	var texts []string
	var offset float64
	for _, r := range resp.GetResults() {
		if result.Language == "" {
			result.Language = r.GetLanguageCode()
		}
		end := r.GetResultEndOffset().AsDuration().Seconds()
		alts := r.GetAlternatives()
		if len(alts) == 0 {
			offset = end
			continue
		}
		alt := alts[0]
		words := alt.GetWords()
		if len(words) == 0 {
			if text := strings.TrimSpace(alt.GetTranscript()); text != "" {
				result.Segments = append(result.Segments, transcriber.Segment{Text: text, Start: offset, End: end})
				texts = append(texts, text)
			}
			offset = end
			continue
		}

		var run []*speechpb.WordInfo
		flush := func() {
			if len(run) == 0 {
				return
			}
			parts := make([]string, len(run))
			for i, w := range run {
				parts[i] = w.GetWord()
			}
			confidence := float64(alt.GetConfidence())
			seg := transcriber.Segment{
				Text:       strings.Join(parts, " "),
				Start:      run[0].GetStartOffset().AsDuration().Seconds(),
				End:        run[len(run)-1].GetEndOffset().AsDuration().Seconds(),
				Confidence: &confidence,
			}
			if enableDiarization {
				seg.Speaker = run[0].GetSpeakerLabel()
			}
			result.Segments = append(result.Segments, seg)
			texts = append(texts, seg.Text)
			run = nil
		}
		for _, w := range words {
			if len(run) > 0 && enableDiarization && w.GetSpeakerLabel() != run[0].GetSpeakerLabel() {
				flush()
			}
			run = append(run, w)
		}
		flush()
		offset = end
	}
	result.FullText = strings.Join(texts, " ")
	if n := len(result.Segments); n > 0 {
		result.Duration = result.Segments[n-1].End
	}
	return result
}

func classifySpeechError(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return fmt.Errorf("google speech recognize: %w", err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return fmt.Errorf("%w: google speech %s: %s", transcriber.ErrProviderUnavailable, st.Code(), st.Message())
	default:
		return fmt.Errorf("google speech recognize (%s): %w", st.Code(), err)
	}
}
