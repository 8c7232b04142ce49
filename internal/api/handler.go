package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wazeportal/ingest/internal/logger"
	"github.com/wazeportal/ingest/internal/models"
	"github.com/wazeportal/ingest/internal/store"
)

// Handler handles HTTP requests for the read-only portal API
type Handler struct {
	store     store.Store
	version   string
	buildTime string
	gitCommit string
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(st store.Store, version, buildTime, gitCommit string) *Handler {
	return &Handler{
		store:     st,
		version:   version,
		buildTime: buildTime,
		gitCommit: gitCommit,
		startTime: time.Now(),
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {
		// Health check endpoints
		r.Get("/health", h.healthHandler)
		r.Get("/health/ready", h.readinessHandler)
		r.Get("/health/live", h.livenessHandler)

		// Read-only portal data
		r.Get("/alerts", h.getAlertsHandler)
		r.Get("/alerts/{uuid}", h.getAlertHandler)
		r.Get("/jams", h.getJamsHandler)

		// System info
		r.Get("/version", h.versionHandler)
	})

	// Root health check
	r.Get("/health", h.healthHandler)
}

// healthHandler provides basic health check
func (h *Handler) healthHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"version":   h.version,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// readinessHandler checks if the application is ready to serve traffic
func (h *Handler) readinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	checks := map[string]string{
		"store": "ok",
	}

	statusCode := http.StatusOK

	if err := h.store.Health(ctx); err != nil {
		checks["store"] = "error: " + err.Error()
		statusCode = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":    "ready",
		"timestamp": time.Now().UTC(),
		"checks":    checks,
	}

	h.writeJSONResponse(w, statusCode, response)
}

// livenessHandler checks if the application is alive
func (h *Handler) livenessHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":    "alive",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// versionHandler returns version information
func (h *Handler) versionHandler(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"version":    h.version,
		"build_time": h.buildTime,
		"git_commit": h.gitCommit,
	}

	h.writeJSONResponse(w, http.StatusOK, response)
}

// getAlertsHandler handles GET /v1/alerts
func (h *Handler) getAlertsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseAlertQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	alerts, err := h.store.QueryAlerts(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query alerts", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"data":      alerts,
		"count":     len(alerts),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// getAlertHandler handles GET /v1/alerts/{uuid}
func (h *Handler) getAlertHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	alertUUID := chi.URLParam(r, "uuid")

	if alertUUID == "" {
		h.writeErrorResponse(w, r, http.StatusBadRequest, "alert uuid is required")
		return
	}

	alert, err := h.store.GetAlert(ctx, alertUUID)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to get alert", "error", err, "alert_uuid", alertUUID)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	if alert == nil {
		h.writeErrorResponse(w, r, http.StatusNotFound, "Alert not found")
		return
	}

	w.Header().Set("Cache-Control", "public, max-age=300")
	h.writeJSONResponse(w, http.StatusOK, alert)
}

// getJamsHandler handles GET /v1/jams
func (h *Handler) getJamsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	q, err := h.parseJamQuery(r)
	if err != nil {
		h.writeErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}

	jams, err := h.store.QueryJams(ctx, q)
	if err != nil {
		logger.WithContext(ctx).Error("Failed to query jams", "error", err)
		h.writeErrorResponse(w, r, http.StatusInternalServerError, "Internal server error")
		return
	}

	response := map[string]interface{}{
		"data":      jams,
		"count":     len(jams),
		"timestamp": time.Now().UTC(),
	}

	w.Header().Set("Cache-Control", "public, max-age=60")
	h.writeJSONResponse(w, http.StatusOK, response)
}

// parseAlertQuery parses query parameters into AlertQuery. partner=99 is the
// administrative scope that sees every partner.
func (h *Handler) parseAlertQuery(r *http.Request) (models.AlertQuery, error) {
	q := models.AlertQuery{}

	limit, offset, err := parsePagination(r)
	if err != nil {
		return q, err
	}
	q.Limit, q.Offset = limit, offset

	if partnerStr := r.URL.Query().Get("partner"); partnerStr != "" {
		partner, err := strconv.Atoi(partnerStr)
		if err != nil {
			return q, fmt.Errorf("invalid partner: %s", partnerStr)
		}
		q.PartnerID = partner
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status, err := strconv.Atoi(statusStr)
		if err != nil || (status != models.StatusInactive && status != models.StatusActive) {
			return q, fmt.Errorf("invalid status: %s", statusStr)
		}
		q.Status = &status
	}

	q.Types = r.URL.Query()["type"]
	q.SourceURL = r.URL.Query().Get("source_url")

	return q, nil
}

// parseJamQuery parses query parameters into JamQuery
func (h *Handler) parseJamQuery(r *http.Request) (models.JamQuery, error) {
	q := models.JamQuery{}

	limit, offset, err := parsePagination(r)
	if err != nil {
		return q, err
	}
	q.Limit, q.Offset = limit, offset

	if partnerStr := r.URL.Query().Get("partner"); partnerStr != "" {
		partner, err := strconv.Atoi(partnerStr)
		if err != nil {
			return q, fmt.Errorf("invalid partner: %s", partnerStr)
		}
		q.PartnerID = partner
	}

	if statusStr := r.URL.Query().Get("status"); statusStr != "" {
		status, err := strconv.Atoi(statusStr)
		if err != nil || (status != models.StatusInactive && status != models.StatusActive) {
			return q, fmt.Errorf("invalid status: %s", statusStr)
		}
		q.Status = &status
	}

	if levelStr := r.URL.Query().Get("min_level"); levelStr != "" {
		level, err := strconv.Atoi(levelStr)
		if err != nil || level < 0 || level > 5 {
			return q, fmt.Errorf("invalid min_level: %s", levelStr)
		}
		q.MinLevel = level
	}

	q.SourceURL = r.URL.Query().Get("source_url")

	return q, nil
}

func parsePagination(r *http.Request) (limit, offset int, err error) {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid limit: %s", limitStr)
		}
		if limit < 0 || limit > 1000 {
			return 0, 0, fmt.Errorf("limit must be between 0 and 1000")
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		offset, err = strconv.Atoi(offsetStr)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid offset: %s", offsetStr)
		}
		if offset < 0 {
			return 0, 0, fmt.Errorf("offset must be non-negative")
		}
	}

	return limit, offset, nil
}

// writeJSONResponse writes a JSON response
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// writeErrorResponse writes a standardized error response
func (h *Handler) writeErrorResponse(w http.ResponseWriter, r *http.Request, statusCode int, message string) {
	response := ErrorResponse{
		Error:     http.StatusText(statusCode),
		Message:   message,
		Timestamp: time.Now().UTC(),
		RequestID: r.Header.Get("X-Request-ID"),
	}

	h.writeJSONResponse(w, statusCode, response)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error     string    `json:"error"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}
