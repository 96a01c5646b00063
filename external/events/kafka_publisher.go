package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/foxseedlab/livescribe/internal/events"
	"github.com/foxseedlab/livescribe/internal/metrics"
	"github.com/segmentio/kafka-go"
)

const (
	eventTypeTranscription = "transcription"
	dialTimeout            = 10 * time.Second
	writeTimeout           = 10 * time.Second
)

// KafkaPublisher writes transcription events keyed by session ID, so one
// session's events stay ordered within a partition. With no brokers it only
// logs.
type KafkaPublisher struct {
	writer  *kafka.Writer
	topic   string
	metrics *metrics.Metrics
}

func NewKafkaPublisher(brokers []string, topic string, m *metrics.Metrics) *KafkaPublisher {
	if len(brokers) == 0 {
		slog.Info("kafka disabled; transcription events are logged only")
		return &KafkaPublisher{topic: topic, metrics: m}
	}

	dialer := &kafka.Dialer{
		Timeout:   dialTimeout,
		DualStack: true,
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Transport:    &kafka.Transport{Dial: dialer.DialFunc},
	}
	slog.Info("kafka publisher initialized", "brokers", brokers, "topic", topic)
	return &KafkaPublisher{writer: writer, topic: topic, metrics: m}
}

func (p *KafkaPublisher) Enabled() bool {
	return p.writer != nil
}

func (p *KafkaPublisher) PublishTranscription(ctx context.Context, event events.TranscriptionEvent) error {
	start := time.Now()
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal transcription event: %w", err)
	}
	slog.Debug("publishing transcription event",
		"topic", p.topic,
		"session_id", event.SessionID,
		"chunk_num", event.ChunkSeq,
		"messages", len(event.Messages))

	if p.writer == nil {
		p.metrics.RecordKafkaPublish(p.topic, nil, time.Since(start).Seconds())
		return nil
	}

	msg := kafka.Message{
		Key:   []byte(event.SessionID),
		Value: payload,
		Time:  event.ProducedAt,
		Headers: []kafka.Header{
			{Key: "eventType", Value: []byte(eventTypeTranscription)},
			{Key: "provider", Value: []byte(event.Provider)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.metrics.RecordKafkaPublish(p.topic, err, time.Since(start).Seconds())
		return fmt.Errorf("write kafka message: %w", err)
	}
	p.metrics.RecordKafkaPublish(p.topic, nil, time.Since(start).Seconds())
	return nil
}

func (p *KafkaPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
