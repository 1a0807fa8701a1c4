// Package webhook receives telemetry push notifications from the cloud
// IoT platform and serves the dashboard's read-side API.
package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kipp7/Landslide-monitor/internal/devices"
	"github.com/kipp7/Landslide-monitor/internal/pipeline"
	"github.com/kipp7/Landslide-monitor/internal/storage"
)

// Version is injected at build time via ldflags.
var Version = "dev"

// MappingLister lists known device mappings for the dashboard.
type MappingLister interface {
	ListAll(ctx context.Context) ([]*devices.Mapping, error)
}

// LatestReader reads the cached most-recent reading for a device.
type LatestReader interface {
	GetLatest(ctx context.Context, deviceID string) (*storage.LatestReading, error)
}

// Stats tracks receiver counters surfaced on /info.
type Stats struct {
	EnvelopesReceived int64     `json:"envelopes_received"`
	EnvelopesRejected int64     `json:"envelopes_rejected"`
	LastEnvelopeAt    time.Time `json:"last_envelope_at"`
}

// Handler wires HTTP endpoints to the ingestion pipeline.
type Handler struct {
	pipeline    *pipeline.Pipeline
	mappings    MappingLister // optional
	latest      LatestReader  // optional
	logger      *zap.Logger
	maxBodySize int64

	mu    sync.Mutex
	stats Stats
}

// NewHandler creates the webhook handler.
func NewHandler(p *pipeline.Pipeline, mappings MappingLister, latest LatestReader, maxBodySize int64, logger *zap.Logger) *Handler {
	return &Handler{
		pipeline:    p,
		mappings:    mappings,
		latest:      latest,
		logger:      logger,
		maxBodySize: maxBodySize,
	}
}

// Routes mounts all endpoints on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/health", h.handleHealth)
	r.Get("/info", h.handleInfo)

	// The platform's push destination; the path is registered with the
	// cloud platform and must stay stable.
	r.Post("/iot/huawei", h.handleIngest)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/devices", h.handleListDevices)
		r.Get("/devices/{id}/latest", h.handleDeviceLatest)
	})
}

// handleIngest processes one push notification. A well-formed envelope is
// always acknowledged with 200, even when some service reports failed; the
// platform retries whole deliveries, and duplicate rows are worse than
// missing ones.
func (h *Handler) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	body, err := io.ReadAll(io.LimitReader(r.Body, h.maxBodySize))
	if err != nil {
		h.reject(w, start, "unreadable_body", "failed to read request body")
		return
	}

	env, err := pipeline.ParseEnvelope(body)
	if err != nil {
		h.reject(w, start, "invalid_payload", "request body is not valid JSON")
		return
	}

	receipt, verr := h.pipeline.Process(r.Context(), env)
	if verr != nil {
		h.reject(w, start, verr.Code, verr.Message)
		return
	}

	h.mu.Lock()
	h.stats.EnvelopesReceived++
	h.stats.LastEnvelopeAt = time.Now().UTC()
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, receipt)
}

type rejection struct {
	StatusCode       int    `json:"Status Code"`
	Message          string `json:"message"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	Timestamp        string `json:"timestamp"`
	ProcessingTimeMS int64  `json:"processing_time_ms"`
}

func (h *Handler) reject(w http.ResponseWriter, start time.Time, code, message string) {
	h.mu.Lock()
	h.stats.EnvelopesRejected++
	h.mu.Unlock()

	h.logger.Warn("envelope rejected", zap.String("error_code", code))
	writeJSON(w, http.StatusBadRequest, rejection{
		StatusCode:       http.StatusBadRequest,
		Message:          "malformed envelope",
		ErrorCode:        code,
		Error:            message,
		Timestamp:        time.Now().UTC().Format(time.RFC3339Nano),
		ProcessingTimeMS: time.Since(start).Milliseconds(),
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "OK",
		"service":   "landslide-iot-service",
		"version":   Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339Nano),
	})
}

func (h *Handler) handleInfo(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	stats := h.stats
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "Landslide IoT Service",
		"version":     Version,
		"description": "landslide monitoring telemetry ingestion service",
		"stats":       stats,
		"endpoints": map[string]string{
			"health":        "GET /health",
			"info":          "GET /info",
			"iot_data":      "POST /iot/huawei",
			"devices":       "GET /api/v1/devices",
			"device_latest": "GET /api/v1/devices/{id}/latest",
		},
	})
}

func (h *Handler) handleListDevices(w http.ResponseWriter, r *http.Request) {
	if h.mappings == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "mapping store not configured"})
		return
	}

	mappings, err := h.mappings.ListAll(r.Context())
	if err != nil {
		h.logger.Error("failed to list device mappings", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list devices"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"devices": mappings,
		"count":   len(mappings),
	})
}

func (h *Handler) handleDeviceLatest(w http.ResponseWriter, r *http.Request) {
	if h.latest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "latest-reading cache not configured"})
		return
	}

	deviceID := chi.URLParam(r, "id")
	reading, err := h.latest.GetLatest(r.Context(), deviceID)
	if errors.Is(err, storage.ErrNoLatest) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no recent reading for device"})
		return
	}
	if err != nil {
		h.logger.Error("failed to read latest reading",
			zap.String("device_id", deviceID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to read latest reading"})
		return
	}

	writeJSON(w, http.StatusOK, reading)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
