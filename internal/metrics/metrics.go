// Package metrics holds the Prometheus collectors for the live transcription
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "livescribe"

type Metrics struct {
	ConnectionsTotal  prometheus.Counter
	ConnectionsActive prometheus.Gauge

	ChunksQueued    prometheus.Counter
	ChunksProcessed *prometheus.CounterVec
	ChunksDropped   prometheus.Counter
	QueueWait       prometheus.Histogram

	TranscribeLatency *prometheus.HistogramVec
	RealTimeFactor    *prometheus.HistogramVec
	MessagesEmitted   prometheus.Counter

	FallbackRuns    *prometheus.CounterVec
	SpeakersCreated prometheus.Counter

	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishLatency prometheus.Histogram
}

// New registers collectors on reg. Pass prometheus.DefaultRegisterer to
// expose them on /metrics.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ConnectionsTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of live transcription connections accepted",
		}),
		ConnectionsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of open live transcription connections",
		}),
		ChunksQueued: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_queued_total",
			Help:      "Total number of audio chunks queued",
		}),
		ChunksProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_processed_total",
			Help:      "Total number of audio chunks processed",
		}, []string{"provider", "status"}),
		ChunksDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_dropped_total",
			Help:      "Queued chunks discarded because the connection closed",
		}),
		QueueWait: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "queue_wait_seconds",
			Help:      "Time a chunk spent queued before processing",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		TranscribeLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_processing_seconds",
			Help:      "Time to process one chunk end to end",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider"}),
		RealTimeFactor: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "real_time_factor",
			Help:      "Processing time divided by audio duration",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4},
		}, []string{"provider"}),
		MessagesEmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_emitted_total",
			Help:      "Total number of transcript messages sent to clients",
		}),
		FallbackRuns: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "diarization_fallback_total",
			Help:      "Local diarization fallback runs by outcome",
		}, []string{"outcome"}),
		SpeakersCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speakers_created_total",
			Help:      "Total number of speaker identities minted",
		}),
		KafkaPublishTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Kafka publish attempts by status",
		}, []string{"topic", "status"}),
		KafkaPublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) RecordChunk(provider string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.ChunksProcessed.WithLabelValues(provider, status).Inc()
	m.TranscribeLatency.WithLabelValues(provider).Observe(seconds)
}

func (m *Metrics) RecordRealTimeFactor(provider string, rtf float64) {
	if m == nil || rtf <= 0 {
		return
	}
	m.RealTimeFactor.WithLabelValues(provider).Observe(rtf)
}

func (m *Metrics) RecordFallback(applied bool) {
	if m == nil {
		return
	}
	outcome := "kept"
	if applied {
		outcome = "relabeled"
	}
	m.FallbackRuns.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordKafkaPublish(topic string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.KafkaPublishTotal.WithLabelValues(topic, status).Inc()
	m.KafkaPublishLatency.Observe(seconds)
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}
