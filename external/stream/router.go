package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/foxseedlab/livescribe/internal/repository"
	"github.com/foxseedlab/livescribe/internal/session"
	streampkg "github.com/foxseedlab/livescribe/internal/stream"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SessionService is the part of session.Manager the HTTP surface needs.
type SessionService interface {
	HandleConnection(ctx context.Context, conn streampkg.Conn)
	Providers(ctx context.Context) []session.ProviderStatus
	Transcript(ctx context.Context, id string) ([]session.TranscriptMessage, error)
	Active() int
}

type transcriptResponse struct {
	SessionID string                      `json:"session_id"`
	Messages  []session.TranscriptMessage `json:"messages"`
}

type providersResponse struct {
	Providers []session.ProviderStatus `json:"providers"`
}

type readinessResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewRouter constructs the HTTP router for the service.
func NewRouter(svc SessionService, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, readinessResponse{Status: "ready", ActiveSessions: svc.Active()})
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Get("/ws/live-transcribe", liveTranscribeHandler(svc))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, providersResponse{Providers: svc.Providers(r.Context())})
		})
		r.Get("/sessions/{id}/transcript", func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			messages, err := svc.Transcript(r.Context(), id)
			if errors.Is(err, repository.ErrSessionNotFound) {
				writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
				return
			}
			if err != nil {
				slog.Error("failed to load transcript", "error", err, "session_id", id)
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "failed to load transcript"})
				return
			}
			if messages == nil {
				messages = []session.TranscriptMessage{}
			}
			writeJSON(w, http.StatusOK, transcriptResponse{SessionID: id, Messages: messages})
		})
	})

	return r
}

func liveTranscribeHandler(svc SessionService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrade(w, r)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err, "remote_addr", r.RemoteAddr)
			return
		}
		svc.HandleConnection(r.Context(), conn)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
