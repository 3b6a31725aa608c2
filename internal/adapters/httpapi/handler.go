// Package httpapi exposes the plant Service over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"plantcore/internal/core"
	"plantcore/internal/seed"
	"plantcore/pkg/domain"
)

// MaxBodyBytes caps request bodies, seed uploads included.
const MaxBodyBytes = 4 << 20

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Error(msg string, args ...any)
}

// Handler serves the plant API.
type Handler struct {
	Service *core.Service
	Logger  Logger
	Timeout time.Duration
	Version string
}

type errorResponse struct {
	Ok      bool   `json:"ok"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RegisterRoutes mounts every plant route on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleRoot)
	r.Get("/health", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", h.handleState)
		r.Get("/telemetry", h.handleTelemetry)
		r.Get("/stations/{id}", h.handleStation)
		r.Get("/events", h.handleRecentEvents)
		r.Get("/maintenance/{id}", h.handleMaintenanceLogs)
		r.Post("/maintenance/{id}", h.handleLogMaintenance)
		r.Post("/reset", h.handleReset)
		r.Post("/shock", h.handleShock)
		r.Post("/kaizen", h.handleKaizen)
		r.Route("/v1", func(r chi.Router) {
			r.Get("/status", h.handleStatus)
			r.Get("/lines", h.handleLines)
			r.Get("/stations", h.handleStations)
			r.Get("/events", h.handleEvents)
			r.Get("/orders", h.handleOrders)
			r.Get("/seed/status", h.handleSeedStatus)
			r.Post("/seed/upload", h.handleSeedUpload)
			r.Get("/seed/history", h.handleSeedHistory)
		})
	})
}

func (h *Handler) ctx(r *http.Request) (context.Context, context.CancelFunc) {
	if h.Timeout <= 0 {
		return context.WithCancel(r.Context())
	}
	return context.WithTimeout(r.Context(), h.Timeout)
}

func (h *Handler) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "plantcore API",
		"version": h.Version,
		"status":  "operational",
		"site_id": h.Service.SiteID(),
		"endpoints": map[string]string{
			"state":       "/api/state",
			"events":      "/api/events",
			"maintenance": "/api/maintenance/{station_id}",
			"control":     "/api/reset, /api/shock, /api/kaizen",
			"v1":          "/api/v1/{status,lines,stations,events,orders}",
			"seed":        "/api/v1/seed/{status,upload,history}",
		},
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	state, err := h.Service.State(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *Handler) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	state, err := h.Service.State(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state.Telemetry)
}

func (h *Handler) handleStation(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	station, err := h.Service.Station(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, station)
}

func (h *Handler) handleRecentEvents(w http.ResponseWriter, r *http.Request) {
	q, ok := parseEventsQuery(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	events, err := h.Service.RecentEvents(ctx, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleMaintenanceLogs(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	logs, err := h.Service.MaintenanceLogs(ctx, id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *Handler) handleLogMaintenance(w http.ResponseWriter, r *http.Request) {
	id, ok := stationID(w, r)
	if !ok {
		return
	}
	var req core.MaintenanceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	rec, err := h.Service.LogMaintenance(ctx, id, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	res, err := h.Service.Reset(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleShock(w http.ResponseWriter, r *http.Request) {
	var req core.ShockRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	res, err := h.Service.Shock(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleKaizen(w http.ResponseWriter, r *http.Request) {
	var req core.KaizenRequest
	if !decodeOptionalBody(w, r, &req) {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	res, err := h.Service.Kaizen(ctx, req)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	view, err := h.Service.Status(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleLines(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	view, err := h.Service.Lines(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleStations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	view, err := h.Service.Stations(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	q, ok := parseEventsQuery(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	view, err := h.Service.Events(ctx, q)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleOrders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	view, err := h.Service.Orders(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *Handler) handleSeedStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	status, err := h.Service.SeedStatus(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (h *Handler) handleSeedUpload(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Code: "BODY_TOO_LARGE", Message: "request body too large"})
		return
	}
	ctx, cancel := h.ctx(r)
	defer cancel()
	res, err := h.Service.SeedUpload(ctx, raw)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleSeedHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := h.ctx(r)
	defer cancel()
	entries, err := h.Service.SeedHistory(ctx)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// decodeOptionalBody decodes a JSON body into dst. An empty body leaves dst
// at its zero value.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	return readBody(w, r, dst, true)
}

// decodeBody is decodeOptionalBody for routes that need a body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	return readBody(w, r, dst, false)
}

func readBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Code: "BODY_TOO_LARGE", Message: "request body too large"})
		return false
	}
	if len(raw) == 0 {
		if optional {
			return true
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "request body required"})
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "invalid JSON body"})
		return false
	}
	return true
}

func stationID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "station id must be an integer"})
		return 0, false
	}
	return id, true
}

// parseEventsQuery reads limit and the RFC 3339 since/until window.
func parseEventsQuery(w http.ResponseWriter, r *http.Request) (core.EventsQuery, bool) {
	var q core.EventsQuery
	values := r.URL.Query()
	if raw := values.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "limit must be a non-negative integer"})
			return q, false
		}
		q.Limit = limit
	}
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"since", &q.Since}, {"until", &q.Until}} {
		raw := values.Get(p.name)
		if raw == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: p.name + " must be an RFC 3339 timestamp"})
			return q, false
		}
		*p.dst = &ts
	}
	if q.Since != nil && q.Until != nil && !q.Since.Before(*q.Until) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: "since must be before until"})
		return q, false
	}
	return q, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var shape *seed.ShapeError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Code: "NOT_FOUND", Message: err.Error()})
	case errors.Is(err, domain.ErrNoStationsAvailable):
		writeJSON(w, http.StatusConflict, errorResponse{Code: "NO_STATIONS", Message: err.Error()})
	case errors.As(err, &shape):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "INVALID_SEED", Message: shape.Error()})
	case errors.Is(err, domain.ErrInvalidMaintenance):
		writeJSON(w, http.StatusBadRequest, errorResponse{Code: "INVALID_MAINTENANCE", Message: err.Error()})
	case errors.Is(err, context.DeadlineExceeded):
		writeJSON(w, http.StatusGatewayTimeout, errorResponse{Code: "TIMEOUT", Message: "request timed out"})
	default:
		if h.Logger != nil {
			h.Logger.Error("request failed", "error", err)
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Code: "INTERNAL", Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
