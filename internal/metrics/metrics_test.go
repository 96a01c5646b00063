package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordChunk(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.RecordChunk("deepgram", nil, 0.5)
	m.RecordChunk("deepgram", errors.New("boom"), 0.1)
	m.RecordChunk("deepgram", nil, 0.2)

	if got := testutil.ToFloat64(m.ChunksProcessed.WithLabelValues("deepgram", "success")); got != 2 {
		t.Fatalf("success count = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ChunksProcessed.WithLabelValues("deepgram", "error")); got != 1 {
		t.Fatalf("error count = %v, want 1", got)
	}
}

func TestConnectionGauge(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()
	if got := testutil.ToFloat64(m.ConnectionsActive); got != 1 {
		t.Fatalf("active = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ConnectionsTotal); got != 2 {
		t.Fatalf("total = %v, want 2", got)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordChunk("p", nil, 1)
	m.RecordFallback(true)
	m.RecordKafkaPublish("t", nil, 1)
	m.ConnectionOpened()
	m.ConnectionClosed()
}
