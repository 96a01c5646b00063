package transcriber

import (
	"context"
	"errors"
	"strings"
)

var (
	ErrUnknownProvider     = errors.New("unknown provider")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidOptions      = errors.New("invalid provider options")
)

// Segment is a span of recognized speech. Times are seconds relative to the
// start of the submitted audio. Speaker is the provider-local label and is
// empty when the provider did not attribute the span.
type Segment struct {
	Text       string
	Start      float64
	End        float64
	Speaker    string
	Confidence *float64
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

func (s Segment) Midpoint() float64 {
	return (s.Start + s.End) / 2
}

func (s Segment) HasText() bool {
	return strings.TrimSpace(s.Text) != ""
}

type Result struct {
	Segments []Segment
	FullText string
	Language string
	Duration float64
}

func (r *Result) IsEmpty() bool {
	return r == nil || len(r.Segments) == 0
}

type Provider interface {
	Name() string
	Type() ProviderType
	Model() string
	SupportsDiarization() bool
	IsAvailable(ctx context.Context) error
	Transcribe(ctx context.Context, audio []byte, enableDiarization bool) (*Result, error)
}

type Factory interface {
	New(ctx context.Context, spec Spec) (Provider, error)
}
