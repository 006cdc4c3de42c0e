package analytics_api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-scanner/internal/analytics"
	"ms-scanner/internal/logger"
)

// Handler serves the pull-based analytics query. The display layer polls it
// on an interval and on manual refresh.
type Handler struct {
	Service *analytics.Service
	Cache   *analytics.SnapshotCache
	Logger  *logger.Logger
}

func NewHandler(service *analytics.Service, cache *analytics.SnapshotCache, log *logger.Logger) *Handler {
	return &Handler{Service: service, Cache: cache, Logger: log}
}

// RegisterRoutes registers the analytics routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/analytics/{selector}", h.GetAnalytics)
}

// GetAnalytics returns the snapshot for one event id, or for every known
// event when the selector is "all".
func (h *Handler) GetAnalytics(w http.ResponseWriter, r *http.Request) {
	selector := chi.URLParam(r, "selector")
	if selector == "" {
		sendJSONResponse(w, http.StatusBadRequest, map[string]string{"error": "event selector is required"})
		return
	}

	if snapshot, ok := h.Cache.Get(r.Context(), selector); ok {
		h.logAnalytics(selector, "Served snapshot from cache")
		sendJSONResponse(w, http.StatusOK, snapshot)
		return
	}

	snapshot, err := h.Service.Summarize(r.Context(), selector)
	if err != nil {
		if h.Logger != nil {
			h.Logger.Error("ANALYTICS", fmt.Sprintf("Summarize failed for %s: %v", selector, err))
		}
		sendJSONResponse(w, http.StatusInternalServerError, map[string]string{"error": "failed to aggregate analytics"})
		return
	}

	h.Cache.Put(r.Context(), selector, snapshot)
	h.logAnalytics(selector, "Computed fresh snapshot")
	sendJSONResponse(w, http.StatusOK, snapshot)
}

func (h *Handler) logAnalytics(selector, message string) {
	if h.Logger != nil {
		h.Logger.LogAnalytics(selector, message)
	}
}

func sendJSONResponse(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
