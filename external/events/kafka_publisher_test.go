package events

import (
	"context"
	"testing"
	"time"

	"github.com/foxseedlab/livescribe/internal/events"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestKafkaPublisher_DisabledLogsOnly(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	p := NewKafkaPublisher(nil, "live.transcription", m)
	if p.Enabled() {
		t.Fatal("expected publisher to be disabled without brokers")
	}

	err := p.PublishTranscription(context.Background(), events.TranscriptionEvent{
		SessionID:  "abcd1234",
		ChunkSeq:   1,
		Provider:   "parakeet",
		Messages:   []events.Message{{Speaker: "Speaker 1", Text: "hello"}},
		ProducedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	got := testutil.ToFloat64(m.KafkaPublishTotal.WithLabelValues("live.transcription", "success"))
	if got != 1 {
		t.Fatalf("expected one recorded publish, got %v", got)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("expected nil close error, got %v", err)
	}
}

func TestKafkaPublisher_EnabledWithBrokers(t *testing.T) {
	p := NewKafkaPublisher([]string{"localhost:9092"}, "live.transcription", nil)
	defer func() {
		_ = p.Close()
	}()
	if !p.Enabled() {
		t.Fatal("expected publisher to be enabled with brokers")
	}
	if p.writer.Topic != "live.transcription" {
		t.Fatalf("unexpected topic: %s", p.writer.Topic)
	}
}
