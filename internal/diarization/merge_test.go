package diarization

import (
	"context"
	"errors"
	"testing"

	"github.com/foxseedlab/livescribe/internal/transcriber"
)

type mockDiarizer struct {
	result *Result
	err    error
	calls  int
}

func (m *mockDiarizer) Name() string { return "mock" }
func (m *mockDiarizer) IsAvailable(ctx context.Context) error { return nil }
func (m *mockDiarizer) Diarize(ctx context.Context, audio []byte) (*Result, error) {
	m.calls++
	return m.result, m.err
}

func segs(labels ...string) []transcriber.Segment {
	out := make([]transcriber.Segment, len(labels))
	for i, l := range labels {
		out[i] = transcriber.Segment{Text: "x", Start: float64(i), End: float64(i) + 1, Speaker: l}
	}
	return out
}

func TestShouldFallback(t *testing.T) {
	cases := []struct {
		name    string
		kind    transcriber.Kind
		enabled bool
		segs    []transcriber.Segment
		want    bool
	}{
		{name: "cloud collapsed", kind: transcriber.KindCloud, enabled: true, segs: segs("SPEAKER_00", "SPEAKER_00"), want: true},
		{name: "cloud unlabeled", kind: transcriber.KindCloud, enabled: true, segs: segs("", ""), want: true},
		{name: "cloud two labels", kind: transcriber.KindCloud, enabled: true, segs: segs("SPEAKER_00", "SPEAKER_01"), want: false},
		{name: "single segment", kind: transcriber.KindCloud, enabled: true, segs: segs("SPEAKER_00"), want: false},
		{name: "no segments", kind: transcriber.KindCloud, enabled: true, segs: nil, want: false},
		{name: "local provider", kind: transcriber.KindLocal, enabled: true, segs: segs("SPEAKER_00", "SPEAKER_00"), want: false},
		{name: "diarization off", kind: transcriber.KindCloud, enabled: false, segs: segs("SPEAKER_00", "SPEAKER_00"), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldFallback(tc.kind, tc.enabled, tc.segs); got != tc.want {
				t.Fatalf("ShouldFallback = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAssign_MidpointInclusiveAndClosest(t *testing.T) {
	result := NewResult([]Turn{
		{Speaker: "B", Start: 2, End: 4},
		{Speaker: "A", Start: 0, End: 2},
		{Speaker: "C", Start: 10, End: 12},
	}, 0)
	in := []transcriber.Segment{
		{Text: "a", Start: 0, End: 1},   // mid 0.5 inside A
		{Text: "b", Start: 1, End: 3},   // mid 2.0 on A/B boundary, first turn wins
		{Text: "c", Start: 5, End: 6},   // mid 5.5 closest to B end
		{Text: "d", Start: 8, End: 9.5}, // mid 8.75 closest to C start
	}
	out := Assign(in, result)
	want := []string{"A", "A", "B", "C"}
	for i, w := range want {
		if out[i].Speaker != w {
			t.Fatalf("segment %d speaker = %q, want %q", i, out[i].Speaker, w)
		}
	}
	if in[0].Speaker != "" {
		t.Fatal("input segments must not be modified")
	}
}

func TestClosest_TieGoesToEarliestTurn(t *testing.T) {
	result := NewResult([]Turn{
		{Speaker: "A", Start: 0, End: 1},
		{Speaker: "B", Start: 3, End: 4},
	}, 2)
	got, ok := result.Closest(2)
	if !ok || got != "A" {
		t.Fatalf("Closest = %q, %v; want A", got, ok)
	}
}

func TestSpeakerCount_DerivedWhenMissing(t *testing.T) {
	result := NewResult([]Turn{{Speaker: "A"}, {Speaker: "B"}, {Speaker: "A"}}, 0)
	if n := result.SpeakerCount(); n != 2 {
		t.Fatalf("SpeakerCount = %d, want 2", n)
	}
}

func TestFallbackApply_RelabelsOnMultipleSpeakers(t *testing.T) {
	d := &mockDiarizer{result: NewResult([]Turn{
		{Speaker: "SPEAKER_00", Start: 0, End: 1},
		{Speaker: "SPEAKER_01", Start: 1, End: 2},
	}, 2)}
	out, applied := NewFallback(d).Apply(context.Background(), []byte("wav"), segs("SPEAKER_00", "SPEAKER_00"))
	if !applied {
		t.Fatal("expected fallback to apply")
	}
	if out[0].Speaker != "SPEAKER_00" || out[1].Speaker != "SPEAKER_01" {
		t.Fatalf("unexpected labels: %q %q", out[0].Speaker, out[1].Speaker)
	}
}

func TestFallbackApply_KeepsLabels(t *testing.T) {
	in := segs("SPEAKER_00", "SPEAKER_00")
	cases := []struct {
		name string
		d    *mockDiarizer
	}{
		{name: "single speaker", d: &mockDiarizer{result: NewResult([]Turn{{Speaker: "X", Start: 0, End: 2}}, 1)}},
		{name: "error", d: &mockDiarizer{err: errors.New("sidecar down")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, applied := NewFallback(tc.d).Apply(context.Background(), nil, in)
			if applied {
				t.Fatal("fallback should not apply")
			}
			if out[0].Speaker != "SPEAKER_00" || out[1].Speaker != "SPEAKER_00" {
				t.Fatal("labels should be unchanged")
			}
		})
	}

	var nilFallback *Fallback
	if _, applied := nilFallback.Apply(context.Background(), nil, in); applied {
		t.Fatal("nil fallback should not apply")
	}
}
