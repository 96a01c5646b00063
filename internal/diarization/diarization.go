package diarization

import (
	"context"
	"math"
	"sort"
)

// Turn is a span of audio attributed to one speaker by the diarizer.
type Turn struct {
	Speaker string
	Start   float64
	End     float64
}

type Result struct {
	Turns       []Turn
	NumSpeakers int
}

type Diarizer interface {
	Name() string
	IsAvailable(ctx context.Context) error
	Diarize(ctx context.Context, audio []byte) (*Result, error)
}

// NewResult sorts turns by start time. numSpeakers may be zero when the
// engine does not report it.
func NewResult(turns []Turn, numSpeakers int) *Result {
	sorted := make([]Turn, len(turns))
	copy(sorted, turns)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
	return &Result{Turns: sorted, NumSpeakers: numSpeakers}
}

func (r *Result) SpeakerCount() int {
	if r == nil {
		return 0
	}
	if r.NumSpeakers > 0 {
		return r.NumSpeakers
	}
	seen := make(map[string]struct{}, len(r.Turns))
	for _, t := range r.Turns {
		seen[t.Speaker] = struct{}{}
	}
	return len(seen)
}

// SpeakerAt returns the speaker of the first turn whose bounds include at.
func (r *Result) SpeakerAt(at float64) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, t := range r.Turns {
		if t.Start <= at && at <= t.End {
			return t.Speaker, true
		}
	}
	return "", false
}

// Closest returns the speaker of the turn with the nearest boundary to at.
// Ties go to the earliest turn.
func (r *Result) Closest(at float64) (string, bool) {
	if r == nil || len(r.Turns) == 0 {
		return "", false
	}
	best := 0
	bestDist := math.Inf(1)
	for i, t := range r.Turns {
		d := math.Min(math.Abs(t.Start-at), math.Abs(t.End-at))
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return r.Turns[best].Speaker, true
}
