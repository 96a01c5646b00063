package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

type Config struct {
	Env                        string
	ListenAddr                 string
	DefaultProvider            string
	DiarizationEnabled         bool
	SimilarityThreshold        float64
	DefaultTranscribeLanguage  string
	ProviderTimeout            time.Duration
	ParakeetURL                string
	ParakeetModel              string
	PyannoteURL                string
	EmbeddingURL               string
	DeepgramAPIKey             string
	DeepgramModel              string
	GoogleCloudProjectID       string
	GoogleCloudCredentialsJSON string
	GoogleCloudSpeechLocation  string
	GoogleCloudSpeechModel     string
	DatabaseURL                string
	TranscriptWebhookURL       string
	KafkaBrokers               []string
	KafkaTopic                 string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	provider, err := transcriber.ParseProviderType(c.DefaultProvider)
	if err != nil {
		return fmt.Errorf("DEFAULT_PROVIDER is invalid: %w", err)
	}
	switch provider {
	case transcriber.ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return fmt.Errorf("DEEPGRAM_API_KEY is required when DEFAULT_PROVIDER=deepgram")
		}
	case transcriber.ProviderGoogleSpeech:
		if c.GoogleCloudProjectID == "" || c.GoogleCloudCredentialsJSON == "" {
			return fmt.Errorf("GOOGLE_CLOUD_PROJECT_ID and GOOGLE_CLOUD_CREDENTIALS_JSON are required when DEFAULT_PROVIDER=google")
		}
	}
	if c.SimilarityThreshold < 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be within [0, 1], got %v", c.SimilarityThreshold)
	}
	if c.ProviderTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT must be positive, got %s", c.ProviderTimeout)
	}
	for _, u := range c.sidecarURLChecks() {
		if _, err := url.ParseRequestURI(u.value); err != nil {
			return fmt.Errorf("%s is invalid: %w", u.name, err)
		}
	}
	if len(c.KafkaBrokers) > 0 && c.KafkaTopic == "" {
		return fmt.Errorf("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

type requiredEnvField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "LISTEN_ADDR", value: c.ListenAddr},
		{name: "DEFAULT_PROVIDER", value: c.DefaultProvider},
		{name: "PARAKEET_URL", value: c.ParakeetURL},
		{name: "PYANNOTE_URL", value: c.PyannoteURL},
		{name: "EMBEDDING_URL", value: c.EmbeddingURL},
	}
}

func (c *Config) sidecarURLChecks() []requiredEnvField {
	return []requiredEnvField{
		{name: "PARAKEET_URL", value: c.ParakeetURL},
		{name: "PYANNOTE_URL", value: c.PyannoteURL},
		{name: "EMBEDDING_URL", value: c.EmbeddingURL},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) ArchiveEnabled() bool {
	return c.DatabaseURL != ""
}
