package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/foxseedlab/livescribe/internal/config"
	"github.com/joho/godotenv"
)

type envConfig struct {
	Env                        string        `env:"ENV" envDefault:"production"`
	ListenAddr                 string        `env:"LISTEN_ADDR" envDefault:":8765"`
	DefaultProvider            string        `env:"DEFAULT_PROVIDER" envDefault:"parakeet"`
	DiarizationEnabled         bool          `env:"DIARIZATION_ENABLED" envDefault:"true"`
	SimilarityThreshold        float64       `env:"SIMILARITY_THRESHOLD" envDefault:"0.45"`
	DefaultTranscribeLanguage  string        `env:"DEFAULT_TRANSCRIBE_LANGUAGE"`
	ProviderTimeout            time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"120s"`
	ParakeetURL                string        `env:"PARAKEET_URL" envDefault:"http://localhost:8387"`
	ParakeetModel              string        `env:"PARAKEET_MODEL" envDefault:"mlx-community/parakeet-tdt-0.6b-v3"`
	PyannoteURL                string        `env:"PYANNOTE_URL" envDefault:"http://localhost:8388"`
	EmbeddingURL               string        `env:"EMBEDDING_URL" envDefault:"http://localhost:8389"`
	DeepgramAPIKey             string        `env:"DEEPGRAM_API_KEY"`
	DeepgramModel              string        `env:"DEEPGRAM_MODEL" envDefault:"nova-3"`
	GoogleCloudProjectID       string        `env:"GOOGLE_CLOUD_PROJECT_ID"`
	GoogleCloudCredentialsJSON string        `env:"GOOGLE_CLOUD_CREDENTIALS_JSON"`
	GoogleCloudSpeechLocation  string        `env:"GOOGLE_CLOUD_SPEECH_LOCATION" envDefault:"global"`
	GoogleCloudSpeechModel     string        `env:"GOOGLE_CLOUD_SPEECH_MODEL" envDefault:"chirp_3"`
	DatabaseURL                string        `env:"DATABASE_URL"`
	TranscriptWebhookURL       string        `env:"TRANSCRIPT_WEBHOOK_URL"`
	KafkaBrokers               []string      `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic                 string        `env:"KAFKA_TOPIC" envDefault:"live.transcription"`
}

// Load reads an optional .env file, then the process environment.
// Variables already set in the environment win over the file.
func Load(files ...string) (*internalconfig.Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
		slog.Info("loaded environment file", "path", f)
	}

	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	cfg := &internalconfig.Config{
		Env:                        raw.Env,
		ListenAddr:                 raw.ListenAddr,
		DefaultProvider:            raw.DefaultProvider,
		DiarizationEnabled:         raw.DiarizationEnabled,
		SimilarityThreshold:        raw.SimilarityThreshold,
		DefaultTranscribeLanguage:  raw.DefaultTranscribeLanguage,
		ProviderTimeout:            raw.ProviderTimeout,
		ParakeetURL:                raw.ParakeetURL,
		ParakeetModel:              raw.ParakeetModel,
		PyannoteURL:                raw.PyannoteURL,
		EmbeddingURL:               raw.EmbeddingURL,
		DeepgramAPIKey:             raw.DeepgramAPIKey,
		DeepgramModel:              raw.DeepgramModel,
		GoogleCloudProjectID:       raw.GoogleCloudProjectID,
		GoogleCloudCredentialsJSON: raw.GoogleCloudCredentialsJSON,
		GoogleCloudSpeechLocation:  raw.GoogleCloudSpeechLocation,
		GoogleCloudSpeechModel:     raw.GoogleCloudSpeechModel,
		DatabaseURL:                raw.DatabaseURL,
		TranscriptWebhookURL:       raw.TranscriptWebhookURL,
		KafkaBrokers:               raw.KafkaBrokers,
		KafkaTopic:                 raw.KafkaTopic,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
