package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/analytics"
	"github.com/radiusdt/vidpulse/internal/config"
	"github.com/radiusdt/vidpulse/internal/metrics"
)

// retryableMessage is the only detail a client sees for server-side
// failures.
const retryableMessage = "analytics temporarily unavailable, please retry"

// HealthChecker reports whether a backing store is reachable.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Dependencies holds everything the server needs.
type Dependencies struct {
	Pipeline *analytics.Pipeline
	Query    *analytics.QueryService
	Reports  *analytics.ReportService
	Config   *config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Gatherer prometheus.Gatherer
	// Health maps a store name to its checker. Nil checkers are skipped.
	Health map[string]HealthChecker
}

// Server wraps the HTTP handlers around the analytics services.
type Server struct {
	pipeline *analytics.Pipeline
	query    *analytics.QueryService
	reports  *analytics.ReportService
	health   map[string]HealthChecker
	logger   *zap.Logger
	config   *config.Config
	metrics  *metrics.Metrics
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		pipeline: deps.Pipeline,
		query:    deps.Query,
		reports:  deps.Reports,
		health:   deps.Health,
		logger:   logger,
		config:   deps.Config,
		metrics:  deps.Metrics,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	if deps.Config.Metrics.Enabled {
		mux.Handle("GET "+deps.Config.Metrics.Path, metrics.Handler(deps.Gatherer))
	}

	// Campaign analytics
	mux.HandleFunc("POST /campaigns/{id}/analytics/recompute", s.handleRecompute)
	mux.HandleFunc("GET /campaigns/{id}/analytics", s.handleCampaignAnalytics)
	mux.HandleFunc("GET /analytics", s.handleCombinedAnalytics)
	mux.HandleFunc("GET /analytics/dimensions", s.handleDimensions)
	mux.HandleFunc("GET /analytics/snapshots", s.handleSnapshots)

	// Reports
	mux.HandleFunc("POST /reports", s.handleCreateReport)
	mux.HandleFunc("PUT /reports/{id}/hidden-videos", s.handleUpdateHiddenVideos)
	mux.HandleFunc("GET /public/reports/{shareId}", s.handlePublicReport)

	return mux
}

// ---- Helpers ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// analyticsError maps service errors to HTTP responses. Internal details
// are logged, never returned.
func (s *Server) analyticsError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, analytics.ErrNotFound):
		s.errorResponse(w, "not found", http.StatusNotFound)
	case errors.Is(err, analytics.ErrInvalidArgument):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, analytics.ErrPartialSourceUnavailable):
		s.logger.Warn("source unavailable", zap.String("path", r.URL.Path), zap.Error(err))
		w.Header().Set("Retry-After", "30")
		s.errorResponse(w, retryableMessage, http.StatusServiceUnavailable)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("request aborted", zap.String("path", r.URL.Path), zap.Error(err))
		s.errorResponse(w, retryableMessage, http.StatusServiceUnavailable)
	default:
		s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		s.errorResponse(w, retryableMessage, http.StatusInternalServerError)
	}
}

// splitList parses a comma separated query value.
func splitList(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseDays reads the days query parameter; missing means def.
func parseDays(r *http.Request, def int) (int, error) {
	v := r.URL.Query().Get("days")
	if v == "" {
		return def, nil
	}
	days, err := strconv.Atoi(v)
	if err != nil || days < 0 || days > 3650 {
		return 0, errors.New("days must be an integer between 0 and 3650")
	}
	return days, nil
}
