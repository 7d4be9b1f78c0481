package httpserver

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/analytics"
)

// defaultDays is the window used when a request does not pass days.
const defaultDays = 30

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{"status": "ok"}
	code := http.StatusOK
	for name, h := range s.health {
		if h == nil {
			continue
		}
		if err := h.Health(r.Context()); err != nil {
			s.logger.Warn("health check failed", zap.String("store", name), zap.Error(err))
			status[name] = "unavailable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		status[name] = "ok"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

// ---- Campaign analytics ----

func (s *Server) handleRecompute(w http.ResponseWriter, r *http.Request) {
	res, err := s.pipeline.RecomputeCampaignAnalytics(r.Context(), r.PathValue("id"))
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	s.jsonResponse(w, res)
}

func (s *Server) handleCampaignAnalytics(w http.ResponseWriter, r *http.Request) {
	c, err := s.query.GetCampaignAnalytics(r.Context(), r.PathValue("id"))
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	s.jsonResponse(w, c)
}

func (s *Server) handleCombinedAnalytics(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r, defaultDays)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := r.URL.Query()
	resp, err := s.query.GetCombinedAnalytics(r.Context(), analytics.CombinedQuery{
		CampaignIDs:    splitList(q.Get("campaignIds")),
		Days:           days,
		HiddenVideoIDs: splitList(q.Get("hiddenVideoIds")),
	})
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	s.jsonResponse(w, resp)
}

func (s *Server) handleDimensions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	campaignID := q.Get("campaignId")
	if campaignID == "" {
		s.errorResponse(w, "campaignId is required", http.StatusBadRequest)
		return
	}
	dim, err := analytics.ParseDimension(q.Get("by"))
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	stats, err := s.query.GetDimensionStats(r.Context(), campaignID, dim)
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	s.jsonResponse(w, map[string]interface{}{
		"campaignId": campaignID,
		"dimension":  dim,
		"groups":     stats,
	})
}

func (s *Server) handleSnapshots(w http.ResponseWriter, r *http.Request) {
	campaignID := r.URL.Query().Get("campaignId")
	if campaignID == "" {
		s.errorResponse(w, "campaignId is required", http.StatusBadRequest)
		return
	}
	series, err := s.query.GetSnapshotSeries(r.Context(), campaignID)
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	s.jsonResponse(w, series)
}

// ---- Reports ----

func (s *Server) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	var in analytics.ReportInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	report, err := s.reports.CreateReport(r.Context(), in)
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(report)
}

func (s *Server) handleUpdateHiddenVideos(w http.ResponseWriter, r *http.Request) {
	var body struct {
		HiddenVideoIDs []string `json:"hiddenVideoIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	report, err := s.reports.UpdateHiddenVideos(r.Context(), r.PathValue("id"), body.HiddenVideoIDs)
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	s.jsonResponse(w, report)
}

func (s *Server) handlePublicReport(w http.ResponseWriter, r *http.Request) {
	days, err := parseDays(r, defaultDays)
	if err != nil {
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := s.query.GetPublicReport(r.Context(), r.PathValue("shareId"), days)
	if err != nil {
		s.analyticsError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=60")
	s.jsonResponse(w, resp)
}
