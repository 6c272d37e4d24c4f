package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/prewarm/prewarm/internal/models"
	"github.com/prewarm/prewarm/internal/registry"
	"github.com/prewarm/prewarm/internal/warmer"
)

// Response is the envelope every endpoint returns.
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries a machine-readable code and a human message.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Handler serves the source management endpoints.
type Handler struct {
	registry  *registry.Registry
	scheduler *warmer.Scheduler
	logger    zerolog.Logger
}

// NewHandler builds a Handler.
func NewHandler(reg *registry.Registry, sched *warmer.Scheduler, logger zerolog.Logger) *Handler {
	return &Handler{
		registry:  reg,
		scheduler: sched,
		logger:    logger.With().Str("component", "api").Logger(),
	}
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    map[string]any{"status": "ok", "sources": h.registry.Len()},
	})
}

// ListSources returns every registered source definition.
func (h *Handler) ListSources(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.registry.All()})
}

// GetSource returns one source definition.
func (h *Handler) GetSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	src, ok := h.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, "source_not_found", "source not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: src})
}

// DeleteSource unregisters a source. It fails with 409 while other sources
// depend on it.
func (h *Handler) DeleteSource(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	if err := h.scheduler.Unregister(id); err != nil {
		switch {
		case errors.Is(err, models.ErrSourceNotFound):
			writeError(w, http.StatusNotFound, "source_not_found", err.Error())
		case errors.Is(err, models.ErrSourceInUse):
			writeError(w, http.StatusConflict, "source_in_use", err.Error())
		default:
			h.logger.Error().Err(err).Str("source", id).Msg("unregister failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "failed to unregister source")
		}
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: map[string]string{"id": id}})
}

// GetStatus returns the warming status of one source.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	status, err := h.scheduler.Status(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "source_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: status})
}

// ListStatuses returns the warming status of every source.
func (h *Handler) ListStatuses(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{Success: true, Data: h.scheduler.Statuses()})
}

// Warm triggers an immediate warm, dependencies first, and waits for it.
func (h *Handler) Warm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sourceID")
	if err := h.scheduler.TriggerWarm(r.Context(), id); err != nil {
		if errors.Is(err, models.ErrSourceNotFound) {
			writeError(w, http.StatusNotFound, "source_not_found", err.Error())
			return
		}
		writeError(w, http.StatusBadGateway, "warm_failed", err.Error())
		return
	}

	status, err := h.scheduler.Status(id)
	if err != nil {
		writeError(w, http.StatusNotFound, "source_not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Data: status})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Response{
		Success: false,
		Error:   &ErrorInfo{Code: code, Message: message},
	})
}
