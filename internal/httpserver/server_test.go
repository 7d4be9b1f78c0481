package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/analytics"
	"github.com/radiusdt/vidpulse/internal/config"
	"github.com/radiusdt/vidpulse/internal/metrics"
	"github.com/radiusdt/vidpulse/internal/models"
	"github.com/radiusdt/vidpulse/internal/storage"
)

type stubHealth struct{ err error }

func (s stubHealth) Health(ctx context.Context) error { return s.err }

type failingSnapshots struct{}

func (failingSnapshots) ListIntervalSnapshots(ctx context.Context, campaignID string) ([]models.IntervalSnapshot, error) {
	return nil, errors.New("dial tcp: connection refused")
}

func newTestServer(t *testing.T, snapshots storage.SnapshotReader, health map[string]HealthChecker) (http.Handler, *storage.MemoryStore) {
	t.Helper()
	store := storage.NewMemoryStore()
	store.PutCampaign(&models.Campaign{ID: "c1", Name: "One"})
	store.AddPostSources("c1",
		models.BundlePost{CampaignID: "c1", PostID: "A"},
		models.BundlePost{CampaignID: "c1", PostID: "Y"},
	)
	store.AddPlatformStats(
		models.PlatformStat{CampaignID: "c1", PostID: "A", Platform: models.PlatformTikTok, PostedAt: 1735689600, Metrics: models.Metrics{Views: 100}},
		models.PlatformStat{CampaignID: "c1", PostID: "Y", Platform: models.PlatformTikTok, PostedAt: 1735689600, Metrics: models.Metrics{Views: 1000}},
	)
	if snapshots == nil {
		snapshots = store
	}

	reg := prometheus.NewRegistry()
	m := metrics.NewMetrics("test", reg)
	p := analytics.NewPipeline(analytics.Sources{
		Campaigns: store, Ledger: store, Stats: store, Snapshots: snapshots,
	}, store, 100, zap.NewNop(), m)

	h := NewServer(&Dependencies{
		Pipeline: p,
		Query:    analytics.NewQueryService(p, store, nil, 2, zap.NewNop(), m),
		Reports:  analytics.NewReportService(store, store, nil, zap.NewNop()),
		Config:   &config.Config{Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"}},
		Logger:   zap.NewNop(),
		Metrics:  m,
		Gatherer: reg,
		Health:   health,
	})
	return h, store
}

func serve(h http.Handler, method, target string, body []byte) *httptest.ResponseRecorder {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRecomputeThenRead(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)

	rec := serve(h, http.MethodPost, "/campaigns/c1/analytics/recompute", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var res analytics.RecomputeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, int64(1100), res.TotalViews)
	assert.Equal(t, storage.UpsertInserted, res.Write)

	rec = serve(h, http.MethodGet, "/campaigns/c1/analytics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var c models.CampaignAnalyticsCache
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &c))
	assert.Equal(t, int64(2), c.Totals.Posts)
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)

	testCases := []struct {
		name   string
		method string
		target string
		want   int
		body   string
	}{
		{name: "unknown campaign", method: http.MethodPost, target: "/campaigns/nope/analytics/recompute", want: http.StatusNotFound, body: "not found"},
		{name: "not yet computed", method: http.MethodGet, target: "/campaigns/c1/analytics", want: http.StatusNotFound, body: "not found"},
		{name: "bad days", method: http.MethodGet, target: "/analytics?days=-3", want: http.StatusBadRequest},
		{name: "unknown share id", method: http.MethodGet, target: "/public/reports/nope", want: http.StatusNotFound, body: "not found"},
		{name: "dimension required", method: http.MethodGet, target: "/analytics/dimensions?by=folder", want: http.StatusBadRequest},
		{name: "bad dimension", method: http.MethodGet, target: "/analytics/dimensions?campaignId=c1&by=color", want: http.StatusBadRequest},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(h, tc.method, tc.target, nil)
			assert.Equal(t, tc.want, rec.Code)
			if tc.body != "" {
				assert.JSONEq(t, `{"error":"`+tc.body+`"}`, rec.Body.String())
			}
		})
	}
}

func TestSourceUnavailableIsRetryable(t *testing.T) {
	h, store := newTestServer(t, failingSnapshots{}, nil)

	rec := serve(h, http.MethodPost, "/campaigns/c1/analytics/recompute", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"`+retryableMessage+`"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "connection refused")

	c, err := store.GetCampaignAnalytics(context.Background(), "c1")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestPublicReportFlow(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)

	body, _ := json.Marshal(analytics.ReportInput{Name: "Client", CampaignIDs: []string{"c1"}})
	rec := serve(h, http.MethodPost, "/reports", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	var report models.Report
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))

	rec = serve(h, http.MethodPut, "/reports/"+report.ID+"/hidden-videos", []byte(`{"hiddenVideoIds":["Y"]}`))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, http.MethodGet, "/public/reports/"+report.PublicShareID+"?days=0", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=60", rec.Header().Get("Cache-Control"))

	var resp analytics.AnalyticsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.VideoMetrics, 1)
	assert.Equal(t, "A", resp.VideoMetrics[0].VideoID)
	assert.Equal(t, int64(100), resp.Metrics.Views)
}

func TestCreateReport_Invalid(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)

	rec := serve(h, http.MethodPost, "/reports", []byte(`{"name":"x"}`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, http.MethodPost, "/reports", []byte(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDimensionsAndSnapshots(t *testing.T) {
	h, store := newTestServer(t, nil, nil)
	store.AddIntervalSnapshots(
		models.IntervalSnapshot{SubjectID: "A", SubjectKind: models.SubjectVideo, CampaignID: "c1", PostID: "A", Platform: models.PlatformTikTok, SnapshotAt: 2025010110, Hour: 10, Metrics: models.Metrics{Views: 10}},
		models.IntervalSnapshot{SubjectID: "A", SubjectKind: models.SubjectVideo, CampaignID: "c1", PostID: "A", Platform: models.PlatformTikTok, SnapshotAt: 2025010111, Hour: 11, Metrics: models.Metrics{Views: 8}},
	)

	rec := serve(h, http.MethodGet, "/analytics/dimensions?campaignId=c1&by=folder", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"dimension":"folder"`)

	rec = serve(h, http.MethodGet, "/analytics/snapshots?campaignId=c1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var series analytics.SnapshotSeries
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &series))
	require.Len(t, series.NegativeDeltas, 1)
	assert.Equal(t, int64(-2), series.NegativeDeltas[0].Delta)
}

func TestHealth(t *testing.T) {
	h, _ := newTestServer(t, nil, map[string]HealthChecker{
		"postgres": stubHealth{},
		"redis":    stubHealth{err: errors.New("down")},
	})

	rec := serve(h, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"degraded","postgres":"ok","redis":"unavailable"}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	h, _ := newTestServer(t, nil, nil)
	serve(h, http.MethodPost, "/campaigns/c1/analytics/recompute", nil)

	rec := serve(h, http.MethodGet, "/metrics", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_pipeline_runs_total")
}

func TestParseDays(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/analytics", nil)
	d, err := parseDays(r, defaultDays)
	require.NoError(t, err)
	assert.Equal(t, 30, d)

	r = httptest.NewRequest(http.MethodGet, "/analytics?days=0", nil)
	d, err = parseDays(r, defaultDays)
	require.NoError(t, err)
	assert.Equal(t, 0, d)

	r = httptest.NewRequest(http.MethodGet, "/analytics?days=abc", nil)
	_, err = parseDays(r, defaultDays)
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, splitList(""))
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b "))
}
