package server

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/RemyAM27/projet-dashboard/internal/handlers"
	"github.com/RemyAM27/projet-dashboard/internal/services"
)

type Server struct {
	mux         *http.ServeMux
	logger      *slog.Logger
	apiHandlers *handlers.APIHandlers
	sseHandlers *handlers.SSEHandlers
}

type TemplateHandlers struct {
	Dashboard http.HandlerFunc
}

func NewServer(charts services.Charts, stats handlers.StatsProvider, geoJSONPath string, logger *slog.Logger, templateHandlers *TemplateHandlers) *Server {
	s := &Server{
		mux:         http.NewServeMux(),
		logger:      logger,
		apiHandlers: handlers.NewAPIHandlers(charts, stats, geoJSONPath, logger),
		sseHandlers: handlers.NewSSEHandlers(charts, logger),
	}
	s.setupRoutes(templateHandlers)
	return s
}

func (s *Server) setupRoutes(templateHandlers *TemplateHandlers) {
	// Dashboard routes
	s.mux.HandleFunc("GET /{$}", templateHandlers.Dashboard)
	s.mux.HandleFunc("GET /health", s.apiHandlers.HandleHealth)
	s.mux.HandleFunc("GET /admin/stats", s.apiHandlers.HandleStats)
	s.mux.Handle("GET /metrics", promhttp.Handler())

	// REST API endpoints, one per visualization
	s.mux.HandleFunc("GET /api/departments", s.apiHandlers.HandleDepartments)
	s.mux.HandleFunc("GET /api/departments/{code}", s.apiHandlers.HandleDepartmentInfo)
	s.mux.HandleFunc("GET /api/age-histogram", s.apiHandlers.HandleAgeHistogram)
	s.mux.HandleFunc("GET /api/severity", s.apiHandlers.HandleSeverity)
	s.mux.HandleFunc("GET /api/monthly-trend", s.apiHandlers.HandleMonthlyTrend)
	s.mux.HandleFunc("GET /api/geo/departments", s.apiHandlers.HandleGeoJSON)

	// Datastar SSE endpoints re-run queries on filter change
	s.mux.HandleFunc("GET /sse/choropleth", s.sseHandlers.HandleChoropleth)
	s.mux.HandleFunc("GET /sse/department-info", s.sseHandlers.HandleDepartmentInfo)
	s.mux.HandleFunc("GET /sse/age-histogram", s.sseHandlers.HandleAgeHistogram)
	s.mux.HandleFunc("GET /sse/severity", s.sseHandlers.HandleSeverity)
	s.mux.HandleFunc("GET /sse/monthly-trend", s.sseHandlers.HandleMonthlyTrend)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
