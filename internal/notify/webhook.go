package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lake-loader/internal/domain"
	"lake-loader/internal/metrics"
	"lake-loader/internal/middleware"
	"lake-loader/internal/service/ingestion"
)

// MaxEventBytes bounds a webhook request body.
const MaxEventBytes = 4 << 20

// WebhookConfig configures the HTTP transport.
type WebhookConfig struct {
	// Token is the bearer token required by POST /events. Empty disables auth.
	Token     string
	RateLimit middleware.RateLimitConfig
}

// Webhook receives S3-shaped event notifications over HTTP, as sent by
// MinIO bucket notifications and similar. Each request is one delivery and
// the response is the acknowledgement: 200 means every notification was
// handled, 503 asks the sender to retry.
type Webhook struct {
	proc   Processor
	cfg    WebhookConfig
	logger *slog.Logger
}

// NewWebhook creates a Webhook.
func NewWebhook(proc Processor, cfg WebhookConfig, logger *slog.Logger) *Webhook {
	return &Webhook{proc: proc, cfg: cfg, logger: logger.With("component", "webhook")}
}

// Router returns the HTTP routes. The rate limiter's housekeeping stops when
// ctx is done.
func (h *Webhook) Router(ctx context.Context) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerToken(h.cfg.Token))
		if h.cfg.RateLimit.RequestsPerSecond > 0 {
			r.Use(middleware.RateLimiter(ctx, h.cfg.RateLimit))
		}
		r.Post("/events", h.events)
	})
	return r
}

type eventsResponse struct {
	Delivery string                    `json:"delivery"`
	Handled  bool                      `json:"handled"`
	Outcomes map[ingestion.Outcome]int `json:"outcomes"`
}

func (h *Webhook) events(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxEventBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("event exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}
	notifications, err := ParseS3Event(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := middleware.RequestIDFromContext(r.Context())
	metrics.DeliveriesReceived.WithLabelValues("webhook").Inc()
	sum := h.proc.Process(r.Context(), []domain.Delivery{{ID: id, Notifications: notifications}})

	resp := eventsResponse{Delivery: id, Handled: sum.Unacked == 0, Outcomes: sum.Outcomes}
	if !resp.Handled {
		w.Header().Set("Retry-After", "30")
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Serve runs an HTTP server for the webhook until ctx is done, then shuts it
// down gracefully.
func (h *Webhook) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Router(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		h.logger.Info("shutting down webhook")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	h.logger.Info("webhook listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"code": status, "message": message})
}
