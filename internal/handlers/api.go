package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/RemyAM27/projet-dashboard/internal/errors"
	"github.com/RemyAM27/projet-dashboard/internal/observability"
	"github.com/RemyAM27/projet-dashboard/internal/services"
)

const cacheMaxAge = "public, max-age=300"

type APIHandlers struct {
	charts      services.Charts
	stats       StatsProvider
	geoJSONPath string
	logger      *slog.Logger
}

// StatsProvider feeds the admin stats endpoint; separate from Charts
// because it is not a visualization query.
type StatsProvider interface {
	Stats(ctx context.Context) (map[string]any, error)
}

func NewAPIHandlers(charts services.Charts, stats StatsProvider, geoJSONPath string, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{
		charts:      charts,
		stats:       stats,
		geoJSONPath: geoJSONPath,
		logger:      logger,
	}
}

func (h *APIHandlers) HandleDepartments(w http.ResponseWriter, r *http.Request) {
	data, err := h.charts.DepartmentCounts(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleDepartmentInfo(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	data, err := h.charts.DepartmentInfo(r.Context(), code)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleAgeHistogram(w http.ResponseWriter, r *http.Request) {
	population, err := services.ParsePopulation(r.URL.Query().Get("population"))
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	data, err := h.charts.AgeHistogram(r.Context(), population)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleSeverity(w http.ResponseWriter, r *http.Request) {
	profile, err := services.ParseProfile(r.URL.Query().Get("profile"))
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	data, err := h.charts.SeverityDistribution(r.Context(), profile)
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheMaxAge})
}

func (h *APIHandlers) HandleMonthlyTrend(w http.ResponseWriter, r *http.Request) {
	data, err := h.charts.MonthlyTrend(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccessWithHeaders(w, data, map[string]string{"Cache-Control": cacheMaxAge})
}

// HandleGeoJSON serves the department boundary polygons consumed by the
// choropleth. The file ships with the deployment, not with the store.
func (h *APIHandlers) HandleGeoJSON(w http.ResponseWriter, r *http.Request) {
	if _, err := os.Stat(h.geoJSONPath); err != nil {
		appErr := errors.NotFound("department boundaries not available")
		errors.WriteError(w, h.logger, appErr, observability.GetRequestID(r.Context()))
		return
	}

	w.Header().Set("Content-Type", "application/geo+json")
	w.Header().Set("Cache-Control", cacheMaxAge)
	http.ServeFile(w, r, h.geoJSONPath)
}

func (h *APIHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	healthData := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
	}

	errors.WriteSuccess(w, healthData)
}

func (h *APIHandlers) HandleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.stats.Stats(r.Context())
	if err != nil {
		errors.WriteError(w, h.logger, err, observability.GetRequestID(r.Context()))
		return
	}

	errors.WriteSuccess(w, stats)
}
