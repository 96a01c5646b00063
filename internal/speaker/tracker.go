package speaker

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

const (
	DefaultSimilarityThreshold = 0.45

	// DefaultLabel groups segments the provider left unattributed.
	DefaultLabel = "SPEAKER_00"

	minRangeSeconds = 1.0
	smoothingKeep   = 0.8
	smoothingAdd    = 0.2
)

var Palette = [...]string{
	"#E3F2FD",
	"#FFF3E0",
	"#E8F5E9",
	"#FCE4EC",
	"#F3E5F5",
	"#FFFDE7",
	"#E0F7FA",
	"#FBE9E7",
}

// Extractor returns a voice embedding for [start, end] seconds of audio.
// A nil vector with a nil error means the span was too short to embed.
type Extractor interface {
	Extract(ctx context.Context, audio []byte, start, end float64) ([]float64, error)
}

type Identity struct {
	ID        string
	Index     int
	Embedding []float64
}

func (i Identity) Name() string {
	return fmt.Sprintf("Speaker %d", i.Index+1)
}

func (i Identity) Color() string {
	return Palette[i.Index%len(Palette)]
}

// Range is the span of audio chosen to represent one local label.
type Range struct {
	Label string
	Start float64
	End   float64
}

// Ranges picks one representative span per local label, in first-seen
// order: the label's longest segment, widened to the union of all its
// segments when shorter than a second.
func Ranges(segments []transcriber.Segment) []Range {
	type group struct {
		longest  transcriber.Segment
		minStart float64
		maxEnd   float64
	}
	order := make([]string, 0)
	groups := make(map[string]*group)
	for _, s := range segments {
		label := LabelOf(s)
		g, ok := groups[label]
		if !ok {
			groups[label] = &group{longest: s, minStart: s.Start, maxEnd: s.End}
			order = append(order, label)
			continue
		}
		if s.Duration() > g.longest.Duration() {
			g.longest = s
		}
		g.minStart = math.Min(g.minStart, s.Start)
		g.maxEnd = math.Max(g.maxEnd, s.End)
	}

	out := make([]Range, 0, len(order))
	for _, label := range order {
		g := groups[label]
		r := Range{Label: label, Start: g.longest.Start, End: g.longest.End}
		if r.End-r.Start < minRangeSeconds {
			r.Start, r.End = g.minStart, g.maxEnd
		}
		out = append(out, r)
	}
	return out
}

func LabelOf(s transcriber.Segment) string {
	if s.Speaker == "" {
		return DefaultLabel
	}
	return s.Speaker
}

// Tracker maps per-chunk speaker labels onto identities that persist for the
// lifetime of a session. It is not safe for concurrent use.
type Tracker struct {
	identities []*Identity
	next       int
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Resolve matches vec against known embeddings and reuses the best identity
// when its cosine similarity reaches threshold, smoothing its embedding.
// Otherwise a new identity is minted.
func (t *Tracker) Resolve(vec []float64, threshold float64) Identity {
	if len(vec) > 0 {
		best, sim := t.bestMatch(vec)
		if best != nil && sim >= threshold {
			best.Embedding = smooth(best.Embedding, vec)
			slog.Debug("speaker matched", "speaker_id", best.ID, "similarity", sim, "threshold", threshold)
			return best.snapshot()
		}
		slog.Debug("speaker not matched", "best_similarity", sim, "threshold", threshold)
	}

	id := &Identity{
		ID:    fmt.Sprintf("GLOBAL_SPEAKER_%02d", t.next),
		Index: t.next,
	}
	if len(vec) > 0 {
		id.Embedding = append([]float64(nil), vec...)
	}
	t.next++
	t.identities = append(t.identities, id)
	slog.Debug("speaker created", "speaker_id", id.ID, "has_embedding", id.Embedding != nil, "total", len(t.identities))
	return id.snapshot()
}

func (t *Tracker) Identities() []Identity {
	out := make([]Identity, len(t.identities))
	for i, id := range t.identities {
		out[i] = id.snapshot()
	}
	return out
}

func (t *Tracker) Len() int {
	return len(t.identities)
}

func (t *Tracker) Reset() {
	t.identities = nil
	t.next = 0
}

func (t *Tracker) bestMatch(vec []float64) (*Identity, float64) {
	var best *Identity
	bestSim := 0.0
	for _, id := range t.identities {
		if id.Embedding == nil {
			continue
		}
		sim := Cosine(vec, id.Embedding)
		if sim > bestSim {
			best = id
			bestSim = sim
		}
	}
	return best, bestSim
}

func (i *Identity) snapshot() Identity {
	out := *i
	if i.Embedding != nil {
		out.Embedding = append([]float64(nil), i.Embedding...)
	}
	return out
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector has zero norm.
func Cosine(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func smooth(old, observed []float64) []float64 {
	if len(old) != len(observed) {
		return old
	}
	out := make([]float64, len(old))
	for i := range old {
		out[i] = smoothingKeep*old[i] + smoothingAdd*observed[i]
	}
	return out
}
