package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/foxseedlab/livescribe/internal/audio"
	"github.com/foxseedlab/livescribe/internal/events"
	"github.com/foxseedlab/livescribe/internal/metrics"
)

const publishTimeout = 5 * time.Second

// Sink receives the events the worker emits. Send must be safe for
// concurrent use.
type Sink interface {
	Send(v any) error
}

type chunkJob struct {
	audio      []byte
	chunkStart float64
	seq        int
	queuedAt   time.Time
	// announced is closed once the queued status for this chunk was sent.
	announced chan struct{}
}

// Worker processes one connection's chunks strictly in arrival order on a
// single goroutine.
type Worker struct {
	current   atomic.Pointer[Session]
	sink      Sink
	publisher events.Publisher
	metrics   *metrics.Metrics

	mu    sync.Mutex
	queue []chunkJob
	wake  chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

func NewWorker(ctx context.Context, s *Session, sink Sink, publisher events.Publisher, m *metrics.Metrics) *Worker {
	ctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		sink:      sink,
		publisher: publisher,
		metrics:   m,
		wake:      make(chan struct{}, 1),
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	w.current.Store(s)
	go w.run()
	return w
}

func (w *Worker) Session() *Session {
	return w.current.Load()
}

// Swap replaces the session used for chunks dequeued from now on. A chunk
// already in flight completes against the session it started with.
func (w *Worker) Swap(s *Session) {
	w.current.Store(s)
}

func (w *Worker) Pending() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.queue)
}

// Enqueue appends a chunk and returns without waiting for it. The queued
// status is sent before the worker can emit the chunk's result.
func (w *Worker) Enqueue(audio []byte, chunkStart float64, seq int) {
	job := chunkJob{audio: audio, chunkStart: chunkStart, seq: seq, queuedAt: time.Now(), announced: make(chan struct{})}
	w.mu.Lock()
	if w.ctx.Err() != nil {
		w.mu.Unlock()
		return
	}
	w.queue = append(w.queue, job)
	size := len(w.queue)
	w.mu.Unlock()

	if w.metrics != nil {
		w.metrics.ChunksQueued.Inc()
	}
	slog.Debug("chunk queued", "session_id", w.Session().ID(), "chunk_num", seq, "queue_size", size)
	w.emit(newStatusEvent(fmt.Sprintf(statusChunkQueuedFormat, seq, size)))
	close(job.announced)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Stop discards queued chunks and waits for the in-flight chunk, if any, to
// finish. That chunk still lands in the session log but nothing more is
// emitted for it.
func (w *Worker) Stop() {
	w.cancel()
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		job, ok := w.next()
		if !ok {
			return
		}
		w.process(job)
	}
}

func (w *Worker) next() (chunkJob, bool) {
	for {
		w.mu.Lock()
		if w.ctx.Err() != nil {
			dropped := len(w.queue)
			w.queue = nil
			w.mu.Unlock()
			if dropped > 0 {
				slog.Info("discarded queued chunks on shutdown", "session_id", w.Session().ID(), "dropped", dropped)
				if w.metrics != nil {
					w.metrics.ChunksDropped.Add(float64(dropped))
				}
			}
			return chunkJob{}, false
		}
		if len(w.queue) > 0 {
			job := w.queue[0]
			w.queue[0] = chunkJob{}
			w.queue = w.queue[1:]
			w.mu.Unlock()
			return job, true
		}
		w.mu.Unlock()

		select {
		case <-w.ctx.Done():
		case <-w.wake:
		}
	}
}

func (w *Worker) process(job chunkJob) {
	s := w.current.Load()
	providerName := s.Provider().Type().String()
	if w.metrics != nil {
		w.metrics.QueueWait.Observe(time.Since(job.queuedAt).Seconds())
	}

	select {
	case <-job.announced:
	case <-w.ctx.Done():
	}

	audioDuration := audio.Duration(job.audio)
	if w.ctx.Err() == nil {
		w.emit(newStatusEvent(fmt.Sprintf(statusProcessingFormat,
			job.seq, float64(len(job.audio))/1024, audioDuration.Seconds(), job.chunkStart)))
	}
	slog.Info("processing chunk",
		"session_id", s.ID(),
		"chunk_num", job.seq,
		"chunk_start", job.chunkStart,
		"audio_bytes", len(job.audio),
		"audio_seconds", audioDuration.Seconds(),
		"provider", providerName)

	started := time.Now()
	messages, err := s.ProcessChunk(context.WithoutCancel(w.ctx), job.audio, job.chunkStart)
	elapsed := time.Since(started)
	w.metrics.RecordChunk(providerName, err, elapsed.Seconds())

	if w.ctx.Err() != nil {
		slog.Info("dropping chunk result after disconnect", "session_id", s.ID(), "chunk_num", job.seq)
		return
	}

	if err != nil {
		slog.Error("chunk transcription failed", "session_id", s.ID(), "chunk_num", job.seq, "error", err)
		w.emit(newErrorEvent(fmt.Sprintf(errorTranscriptionFormat, err)))
	} else {
		rtf := 0.0
		if audioDuration > 0 {
			rtf = elapsed.Seconds() / audioDuration.Seconds()
		}
		w.metrics.RecordRealTimeFactor(providerName, rtf)
		slog.Info("chunk complete",
			"session_id", s.ID(),
			"chunk_num", job.seq,
			"messages", len(messages),
			"elapsed_seconds", elapsed.Seconds(),
			"rtf", rtf)
		w.emit(newStatusEvent(fmt.Sprintf(statusChunkDoneFormat,
			job.seq, len(messages), elapsed.Seconds(), rtf, strings.Join(speakerNames(messages), ", "))))
		w.emit(newTranscriptionEvent(messages))
		if w.metrics != nil {
			w.metrics.MessagesEmitted.Add(float64(len(messages)))
		}
		w.publish(s, job, messages)
	}

	if remaining := w.Pending(); remaining > 0 {
		w.emit(newStatusEvent(fmt.Sprintf(statusChunksPendingFormat, remaining)))
	}
}

func (w *Worker) publish(s *Session, job chunkJob, messages []TranscriptMessage) {
	if w.publisher == nil || len(messages) == 0 {
		return
	}
	out := make([]events.Message, len(messages))
	for i, m := range messages {
		out[i] = events.Message{
			Speaker:   m.Speaker,
			SpeakerID: m.SpeakerID,
			Text:      m.Text,
			StartTime: m.StartTime,
			EndTime:   m.EndTime,
		}
	}
	ctx, cancel := context.WithTimeout(w.ctx, publishTimeout)
	defer cancel()
	err := w.publisher.PublishTranscription(ctx, events.TranscriptionEvent{
		SessionID:  s.ID(),
		ChunkSeq:   job.seq,
		ChunkStart: job.chunkStart,
		Provider:   s.Provider().Type().String(),
		Model:      s.Provider().Model(),
		Messages:   out,
		ProducedAt: time.Now().UTC(),
	})
	if err != nil {
		slog.Warn("failed to publish transcription event", "session_id", s.ID(), "chunk_num", job.seq, "error", err)
	}
}

// speakerNames lists the speakers of a batch in order of first appearance.
func speakerNames(messages []TranscriptMessage) []string {
	seen := make(map[string]bool, len(messages))
	var names []string
	for _, m := range messages {
		if seen[m.Speaker] {
			continue
		}
		seen[m.Speaker] = true
		names = append(names, m.Speaker)
	}
	return names
}

func (w *Worker) emit(v any) {
	if err := w.sink.Send(v); err != nil {
		slog.Debug("failed to send event", "error", err)
	}
}
