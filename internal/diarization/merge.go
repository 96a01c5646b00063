package diarization

import (
	"context"
	"log/slog"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

// Assign labels each segment with the speaker active at its midpoint,
// falling back to the nearest turn. The input slice is not modified.
func Assign(segments []transcriber.Segment, result *Result) []transcriber.Segment {
	out := make([]transcriber.Segment, len(segments))
	copy(out, segments)
	if result == nil || len(result.Turns) == 0 {
		return out
	}
	for i := range out {
		mid := out[i].Midpoint()
		speaker, ok := result.SpeakerAt(mid)
		if !ok {
			speaker, _ = result.Closest(mid)
		}
		out[i].Speaker = speaker
	}
	return out
}

// ShouldFallback reports whether a cloud provider collapsed a multi-segment
// chunk onto a single speaker label. Unlabeled segments count as one label.
func ShouldFallback(kind transcriber.Kind, diarizationEnabled bool, segments []transcriber.Segment) bool {
	if kind != transcriber.KindCloud || !diarizationEnabled || len(segments) <= 1 {
		return false
	}
	first := segments[0].Speaker
	for _, s := range segments[1:] {
		if s.Speaker != first {
			return false
		}
	}
	return true
}

type Fallback struct {
	diarizer Diarizer
}

func NewFallback(d Diarizer) *Fallback {
	return &Fallback{diarizer: d}
}

// Apply re-diarizes audio locally and relabels segments when the local
// diarizer finds more than one speaker. Otherwise the input is returned
// unchanged with false.
func (f *Fallback) Apply(ctx context.Context, audio []byte, segments []transcriber.Segment) ([]transcriber.Segment, bool) {
	if f == nil || f.diarizer == nil {
		return segments, false
	}
	result, err := f.diarizer.Diarize(ctx, audio)
	if err != nil {
		slog.Warn("fallback diarization failed; keeping provider labels", "diarizer", f.diarizer.Name(), "error", err)
		return segments, false
	}
	n := result.SpeakerCount()
	if n <= 1 {
		slog.Debug("fallback diarization found a single speaker", "diarizer", f.diarizer.Name(), "speakers", n, "segments", len(segments))
		return segments, false
	}
	slog.Info("fallback diarization relabeled segments", "diarizer", f.diarizer.Name(), "speakers", n, "segments", len(segments))
	return Assign(segments, result), true
}
