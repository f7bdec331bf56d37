package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gyaneshwarpardhi/gamestats/internal/bus"
	"github.com/gyaneshwarpardhi/gamestats/internal/config"
	"github.com/gyaneshwarpardhi/gamestats/internal/event"
	"github.com/gyaneshwarpardhi/gamestats/internal/metrics"
	"github.com/gyaneshwarpardhi/gamestats/internal/session"
)

const maxBatchSize = 100

// Handler holds all HTTP handler dependencies.
type Handler struct {
	sess   *session.Session
	queue  *bus.Queue
	loader *config.Loader // nil when running without a config file
	logger *slog.Logger
	mux    *http.ServeMux
}

// eventRequest is the body accepted by the ingestion endpoints.
type eventRequest struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

// New creates an HTTP handler and registers all routes.
func New(sess *session.Session, queue *bus.Queue, loader *config.Loader, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		sess:   sess,
		queue:  queue,
		loader: loader,
		logger: logger.With("component", "api"),
		mux:    http.NewServeMux(),
	}

	h.mux.HandleFunc("POST /v1/events", h.publishEvent)
	h.mux.HandleFunc("POST /v1/events/batch", h.enqueueBatch)
	h.mux.HandleFunc("GET /v1/history", h.history)
	h.mux.HandleFunc("DELETE /v1/history", h.clearHistory)
	h.mux.HandleFunc("GET /v1/subscribers", h.subscribers)
	h.mux.HandleFunc("POST /v1/reports", h.generateReport)
	h.mux.HandleFunc("GET /v1/reports/latest", h.latestReport)
	h.mux.HandleFunc("GET /v1/statistics/{name}", h.section)
	h.mux.HandleFunc("POST /v1/config/reload", h.reloadConfig)
	h.mux.HandleFunc("GET /healthz", h.healthz)
	h.mux.HandleFunc("GET /readyz", h.readyz)
	h.mux.Handle("GET /metrics", promhttp.Handler())

	return loggingMiddleware(h.logger, h.mux)
}

// POST /v1/events: synchronous publish; returns once every subscriber ran.
func (h *Handler) publishEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "event type is required")
		return
	}
	ev := event.NewAt(req.Type, req.Payload, h.sess.Bus.Now())
	if err := h.sess.Bus.Dispatch(r.Context(), ev); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// POST /v1/events/batch: async ingestion through the dispatch queue (up to 100 events).
func (h *Handler) enqueueBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []eventRequest
	if err := json.NewDecoder(r.Body).Decode(&reqs); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid JSON: %s", err))
		return
	}
	if len(reqs) == 0 {
		writeError(w, http.StatusBadRequest, "batch must contain at least one event")
		return
	}
	if len(reqs) > maxBatchSize {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("batch size %d exceeds max %d", len(reqs), maxBatchSize))
		return
	}

	jobID := uuid.New().String()
	queued := 0
	var ids []string
	for _, req := range reqs {
		if req.Type == "" {
			continue
		}
		ev, err := h.queue.Submit(r.Context(), req.Type, req.Payload)
		if err != nil {
			h.logger.Warn("batch event rejected", "job_id", jobID, "event_type", req.Type, "err", err)
			continue
		}
		queued++
		ids = append(ids, ev.ID())
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id":    jobID,
		"total":     len(reqs),
		"queued":    queued,
		"rejected":  len(reqs) - queued,
		"event_ids": ids,
	})
}

// GET /v1/history: every recorded event in publish order.
func (h *Handler) history(w http.ResponseWriter, r *http.Request) {
	hist := h.sess.Bus.History()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":  len(hist),
		"events": hist,
	})
}

// DELETE /v1/history: drop recorded events; subscriptions stay.
func (h *Handler) clearHistory(w http.ResponseWriter, r *http.Request) {
	h.sess.Bus.ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// GET /v1/subscribers[?type=]: per-type or total subscriber count.
func (h *Handler) subscribers(w http.ResponseWriter, r *http.Request) {
	typ := r.URL.Query().Get("type")
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"type":  typ,
		"count": h.sess.Bus.SubscriberCount(typ),
	})
}

// POST /v1/reports: build a report now.
func (h *Handler) generateReport(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.sess.Report(r.Context()))
}

// GET /v1/reports/latest: the most recent report, 404 if none yet.
func (h *Handler) latestReport(w http.ResponseWriter, r *http.Request) {
	rep, ok := h.sess.Reports.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no report generated yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// GET /v1/statistics/{name}: one source's current snapshot.
func (h *Handler) section(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	v, ok := h.sess.Section(r.Context(), name)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("unknown statistics source %q", name))
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"name":       name,
		"statistics": v,
	})
}

// POST /v1/config/reload: re-read the config file now.
func (h *Handler) reloadConfig(w http.ResponseWriter, r *http.Request) {
	if h.loader == nil {
		writeError(w, http.StatusConflict, "no config file in use")
		return
	}
	cfg, err := h.loader.Reload()
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded":  true,
		"log_level": cfg.Log.Level,
	})
}

// GET /healthz: always 200 (liveness probe).
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /readyz: 503 if the dispatch queue is more than 80% full.
func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	util := h.queue.Utilization()
	metrics.QueueUtilization.Set(util)
	if util > 0.8 {
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":            "overloaded",
			"queue_utilization": util,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":            "ready",
		"queue_utilization": util,
	})
}
