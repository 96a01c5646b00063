package speaker

import (
	"math"
	"testing"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

func TestCosine(t *testing.T) {
	cases := []struct {
		name string
		a, b []float64
		want float64
	}{
		{name: "identical", a: []float64{1, 2, 3}, b: []float64{1, 2, 3}, want: 1},
		{name: "orthogonal", a: []float64{1, 0}, b: []float64{0, 1}, want: 0},
		{name: "opposite", a: []float64{1, 0}, b: []float64{-1, 0}, want: -1},
		{name: "length mismatch", a: []float64{1, 0}, b: []float64{1, 0, 0}, want: 0},
		{name: "zero norm", a: []float64{0, 0}, b: []float64{1, 1}, want: 0},
		{name: "empty", a: nil, b: nil, want: 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Cosine(tc.a, tc.b); math.Abs(got-tc.want) > 1e-9 {
				t.Fatalf("Cosine = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestResolve_ReuseAboveThreshold(t *testing.T) {
	tr := NewTracker()
	first := tr.Resolve([]float64{1, 0}, DefaultSimilarityThreshold)
	second := tr.Resolve([]float64{0.9, 0.1}, DefaultSimilarityThreshold)
	if first.ID != "GLOBAL_SPEAKER_00" {
		t.Fatalf("first id = %q", first.ID)
	}
	if second.ID != first.ID {
		t.Fatalf("expected reuse of %q, got %q", first.ID, second.ID)
	}
	if tr.Len() != 1 {
		t.Fatalf("expected 1 identity, got %d", tr.Len())
	}
	got := tr.Identities()[0].Embedding
	want := []float64{0.8*1 + 0.2*0.9, 0.2 * 0.1}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-9 {
			t.Fatalf("smoothed embedding = %v, want %v", got, want)
		}
	}
}

func TestResolve_MintBelowThreshold(t *testing.T) {
	tr := NewTracker()
	tr.Resolve([]float64{1, 0}, 0.45)
	second := tr.Resolve([]float64{0.3, 1}, 0.45)
	if second.ID != "GLOBAL_SPEAKER_01" || second.Name() != "Speaker 2" {
		t.Fatalf("unexpected identity: %+v name=%q", second, second.Name())
	}
}

func TestResolve_NilEmbeddingAlwaysMintsAndIsNeverMatched(t *testing.T) {
	tr := NewTracker()
	a := tr.Resolve(nil, 0.45)
	b := tr.Resolve([]float64{1, 1}, 0.45)
	c := tr.Resolve(nil, 0.45)
	if a.ID == b.ID || b.ID == c.ID || a.ID == c.ID {
		t.Fatalf("expected three identities, got %q %q %q", a.ID, b.ID, c.ID)
	}
	if a.Embedding != nil {
		t.Fatal("identity without embedding should keep a nil vector")
	}
}

func TestIdentity_NameAndColorCycle(t *testing.T) {
	tr := NewTracker()
	var ids []Identity
	for i := 0; i < 10; i++ {
		ids = append(ids, tr.Resolve(nil, 0.45))
	}
	for n, id := range ids {
		if id.Color() != Palette[n%8] {
			t.Fatalf("identity %d color = %q, want %q", n, id.Color(), Palette[n%8])
		}
	}
	if ids[8].Color() != ids[0].Color() || ids[9].Name() != "Speaker 10" {
		t.Fatalf("palette should cycle after 8 identities")
	}
}

func TestTracker_Reset(t *testing.T) {
	tr := NewTracker()
	tr.Resolve([]float64{1}, 0.45)
	tr.Reset()
	if tr.Len() != 0 {
		t.Fatal("expected empty tracker after reset")
	}
	if id := tr.Resolve(nil, 0.45); id.ID != "GLOBAL_SPEAKER_00" {
		t.Fatalf("numbering should restart, got %q", id.ID)
	}
}

func TestRanges(t *testing.T) {
	segs := []transcriber.Segment{
		{Speaker: "SPEAKER_01", Start: 0, End: 0.3},
		{Speaker: "SPEAKER_00", Start: 0.3, End: 2.5},
		{Speaker: "SPEAKER_01", Start: 2.5, End: 3.0},
		{Speaker: "SPEAKER_00", Start: 3.0, End: 3.5},
		{Start: 4, End: 4.2},
	}
	got := Ranges(segs)
	want := []Range{
		{Label: "SPEAKER_01", Start: 0, End: 3.0},
		{Label: "SPEAKER_00", Start: 0.3, End: 2.5},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d ranges, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("range %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
