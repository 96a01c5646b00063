package transcriber

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/foxseedlab/livescribe/internal/config"
	"github.com/foxseedlab/livescribe/internal/diarization"
	"github.com/foxseedlab/livescribe/internal/transcriber"
)

// Factory builds providers from a transcriber.Spec, filling unset models and
// languages from the process configuration.
type Factory struct {
	cfg      *config.Config
	diarizer diarization.Diarizer
	client   *http.Client
}

func NewFactory(cfg *config.Config, diarizer diarization.Diarizer) *Factory {
	return &Factory{
		cfg:      cfg,
		diarizer: diarizer,
		client:   &http.Client{Timeout: cfg.ProviderTimeout},
	}
}

func (f *Factory) New(_ context.Context, spec transcriber.Spec) (transcriber.Provider, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	model := strings.TrimSpace(spec.Model)

	switch spec.Type {
	case transcriber.ProviderParakeet:
		if model == "" {
			model = f.cfg.ParakeetModel
		}
		opts := spec.Parakeet
		if opts.Language == "" {
			opts.Language = f.cfg.DefaultTranscribeLanguage
		}
		return &ParakeetProvider{
			baseURL:  strings.TrimRight(f.cfg.ParakeetURL, "/"),
			model:    model,
			opts:     opts,
			diarizer: f.diarizer,
			client:   f.client,
		}, nil

	case transcriber.ProviderDeepgram:
		if f.cfg.DeepgramAPIKey == "" {
			return nil, errDeepgramKeyMissing
		}
		if model == "" {
			model = f.cfg.DeepgramModel
		}
		opts := spec.Deepgram
		if opts.Language == "" {
			opts.Language = f.cfg.DefaultTranscribeLanguage
		}
		return &DeepgramProvider{
			apiKey:   f.cfg.DeepgramAPIKey,
			model:    model,
			opts:     opts,
			endpoint: deepgramListenURL,
			client:   f.client,
		}, nil

	case transcriber.ProviderGoogleSpeech:
		if f.cfg.GoogleCloudProjectID == "" || f.cfg.GoogleCloudCredentialsJSON == "" {
			return nil, fmt.Errorf("%w: Google Cloud credentials not configured", transcriber.ErrProviderUnavailable)
		}
		if model == "" {
			model = f.cfg.GoogleCloudSpeechModel
		}
		opts := spec.Google
		if opts.Language == "" {
			opts.Language = f.cfg.DefaultTranscribeLanguage
		}
		return &CloudSpeechProvider{
			projectID:       f.cfg.GoogleCloudProjectID,
			credentialsJSON: f.cfg.GoogleCloudCredentialsJSON,
			location:        strings.TrimSpace(f.cfg.GoogleCloudSpeechLocation),
			model:           model,
			opts:            opts,
		}, nil
	}
	return nil, fmt.Errorf("%w: %q", transcriber.ErrUnknownProvider, spec.Type)
}
