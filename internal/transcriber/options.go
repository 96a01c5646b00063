package transcriber

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type ParakeetOptions struct {
	Language      string  `json:"language" validate:"omitempty,max=16"`
	ChunkDuration float64 `json:"chunk_duration" validate:"gt=0,lte=600"`
}

type DeepgramOptions struct {
	SmartFormat     bool   `json:"smart_format"`
	Punctuate       bool   `json:"punctuate"`
	Paragraphs      bool   `json:"paragraphs"`
	Utterances      bool   `json:"utterances"`
	ProfanityFilter bool   `json:"profanity_filter"`
	Numerals        bool   `json:"numerals"`
	Language        string `json:"language" validate:"omitempty,max=16"`
}

type GoogleSpeechOptions struct {
	Language             string `json:"language" validate:"omitempty,max=16"`
	MinSpeakers          int32  `json:"min_speakers" validate:"gte=1,lte=6"`
	MaxSpeakers          int32  `json:"max_speakers" validate:"gte=1,lte=6,gtefield=MinSpeakers"`
	AutomaticPunctuation bool   `json:"automatic_punctuation"`
}

// Spec selects a provider and carries the options for that provider type.
// Only the options matching Type are meaningful.
type Spec struct {
	Type     ProviderType
	Model    string
	Parakeet ParakeetOptions
	Deepgram DeepgramOptions
	Google   GoogleSpeechOptions
}

func DefaultSpec(t ProviderType, model string) Spec {
	return Spec{
		Type:  t,
		Model: strings.TrimSpace(model),
		Parakeet: ParakeetOptions{
			ChunkDuration: 30,
		},
		Deepgram: DeepgramOptions{
			SmartFormat: true,
			Punctuate:   true,
			Paragraphs:  true,
			Utterances:  true,
		},
		Google: GoogleSpeechOptions{
			MinSpeakers:          1,
			MaxSpeakers:          6,
			AutomaticPunctuation: true,
		},
	}
}

// NewSpec builds a spec for t with defaults, then overlays raw options.
func NewSpec(t ProviderType, model string, raw json.RawMessage) (Spec, error) {
	return DefaultSpec(t, model).With("", raw)
}

// With returns a copy of s with model replaced when non-empty and raw
// options decoded over the current ones. Unknown option keys are rejected.
func (s Spec) With(model string, raw json.RawMessage) (Spec, error) {
	if m := strings.TrimSpace(model); m != "" {
		s.Model = m
	}
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return s, s.Validate()
	}

	var target any
	switch s.Type {
	case ProviderParakeet:
		target = &s.Parakeet
	case ProviderDeepgram:
		target = &s.Deepgram
	case ProviderGoogleSpeech:
		target = &s.Google
	default:
		return s, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Type)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return s, fmt.Errorf("%w for %s: %v", ErrInvalidOptions, s.Type, err)
	}
	return s, s.Validate()
}

func (s Spec) Validate() error {
	var opts any
	switch s.Type {
	case ProviderParakeet:
		opts = s.Parakeet
	case ProviderDeepgram:
		opts = s.Deepgram
	case ProviderGoogleSpeech:
		opts = s.Google
	default:
		return fmt.Errorf("%w: %q", ErrUnknownProvider, s.Type)
	}
	if err := validate.Struct(opts); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s failed %s", fe.Field(), fe.Tag()))
			}
			return fmt.Errorf("%w for %s: %s", ErrInvalidOptions, s.Type, strings.Join(fields, "; "))
		}
		return fmt.Errorf("%w for %s: %v", ErrInvalidOptions, s.Type, err)
	}
	return nil
}

// Language returns the language code requested by the active options.
func (s Spec) Language() string {
	switch s.Type {
	case ProviderParakeet:
		return s.Parakeet.Language
	case ProviderDeepgram:
		return s.Deepgram.Language
	case ProviderGoogleSpeech:
		return s.Google.Language
	}
	return ""
}
