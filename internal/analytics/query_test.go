package analytics

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/models"
	"github.com/radiusdt/vidpulse/internal/storage"
)

// racingReports runs onGet once, right after a report is read, to simulate
// an update landing while a public read is in flight.
type racingReports struct {
	storage.ReportRepo
	onGet func()
}

func (r *racingReports) GetReportByShareID(ctx context.Context, shareID string) (*models.Report, error) {
	rep, err := r.ReportRepo.GetReportByShareID(ctx, shareID)
	if fn := r.onGet; fn != nil {
		r.onGet = nil
		fn()
	}
	return rep, err
}

// recordingCache is a ResponseCache kept in a map.
type recordingCache struct {
	entries map[string][]byte
	deleted []string
}

func newRecordingCache() *recordingCache {
	return &recordingCache{entries: make(map[string][]byte)}
}

func (c *recordingCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := c.entries[key]
	return v, ok, nil
}

func (c *recordingCache) Set(ctx context.Context, key string, value []byte) error {
	c.entries[key] = value
	return nil
}

func (c *recordingCache) DeletePrefix(ctx context.Context, prefix string) error {
	c.deleted = append(c.deleted, prefix)
	for k := range c.entries {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			delete(c.entries, k)
		}
	}
	return nil
}

type queryFixture struct {
	store     *storage.MemoryStore
	pipeline  *Pipeline
	query     *QueryService
	reports   *ReportService
	responses *recordingCache
}

func newQueryFixture(t *testing.T) *queryFixture {
	t.Helper()
	store := storage.NewMemoryStore()
	store.PutCampaign(&models.Campaign{ID: "c1", Name: "One"})
	store.PutCampaign(&models.Campaign{ID: "c2", Name: "Two"})
	store.AddPostSources("c1",
		models.BundlePost{CampaignID: "c1", PostID: "A"},
		models.BundlePost{CampaignID: "c1", PostID: "Y"},
	)
	store.AddPostSources("c2", models.ManualPost{CampaignID: "c2", PostID: "B"})
	store.AddPlatformStats(
		stat("c1", "A", models.PlatformTikTok, jan1, 100),
		stat("c1", "Y", models.PlatformTikTok, jan1, 1000),
		stat("c2", "B", models.PlatformYouTube, jan2, 300),
	)

	p := newTestPipeline(store, nil)
	responses := newRecordingCache()
	q := NewQueryService(p, store, responses, 2, zap.NewNop(), nil)
	q.now = func() time.Time { return time.Date(2025, 1, 3, 15, 0, 0, 0, time.UTC) }

	return &queryFixture{
		store:     store,
		pipeline:  p,
		query:     q,
		reports:   NewReportService(store, store, responses, zap.NewNop()),
		responses: responses,
	}
}

func videoIDs(resp *AnalyticsResponse) []string {
	ids := make([]string, 0, len(resp.VideoMetrics))
	for _, v := range resp.VideoMetrics {
		ids = append(ids, v.VideoID)
	}
	return ids
}

func TestGetCombinedAnalytics(t *testing.T) {
	f := newQueryFixture(t)

	resp, err := f.query.GetCombinedAnalytics(context.Background(), CombinedQuery{Days: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(3), resp.Metrics.Posts)
	assert.Equal(t, int64(1400), resp.Metrics.Views)
	assert.Equal(t, []string{"Y", "B", "A"}, videoIDs(resp))
	assert.Equal(t, []string{"c1", "c2"}, resp.Metadata.CampaignIDs)

	require.Len(t, resp.DailyMetrics, 3)
	assert.Equal(t, "2025-01-01", resp.DailyMetrics[0].Date)
	assert.Equal(t, int64(2), resp.DailyMetrics[0].Posts)
	assert.Equal(t, "2025-01-03", resp.DailyMetrics[2].Date)
	assert.Equal(t, int64(0), resp.DailyMetrics[2].Posts)
	assert.Len(t, resp.Growth, len(GrowthMetrics))
}

func TestGetCombinedAnalytics_WindowExcludesOlderPosts(t *testing.T) {
	f := newQueryFixture(t)

	resp, err := f.query.GetCombinedAnalytics(context.Background(), CombinedQuery{Days: 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, videoIDs(resp))
	require.Len(t, resp.DailyMetrics, 2)
	assert.Equal(t, "2025-01-02", resp.DailyMetrics[0].Date)
}

func TestGetCombinedAnalytics_AllTime(t *testing.T) {
	f := newQueryFixture(t)

	resp, err := f.query.GetCombinedAnalytics(context.Background(), CombinedQuery{CampaignIDs: []string{"c1", "c2"}, Days: 0})
	require.NoError(t, err)

	require.Len(t, resp.DailyMetrics, 2)
	assert.Equal(t, "2025-01-01", resp.DailyMetrics[0].Date)
	assert.Equal(t, "2025-01-02", resp.DailyMetrics[1].Date)
}

func TestGetCombinedAnalytics_Errors(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	_, err := f.query.GetCombinedAnalytics(ctx, CombinedQuery{Days: -1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.query.GetCombinedAnalytics(ctx, CombinedQuery{CampaignIDs: []string{"c1", "nope"}})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCombinedAnalytics_LastUpdatedFromCache(t *testing.T) {
	f := newQueryFixture(t)
	stamp := time.Date(2025, 1, 2, 8, 0, 0, 0, time.UTC)
	f.store.SetClock(func() time.Time { return stamp })
	_, err := f.pipeline.RecomputeCampaignAnalytics(context.Background(), "c1")
	require.NoError(t, err)

	resp, err := f.query.GetCombinedAnalytics(context.Background(), CombinedQuery{})
	require.NoError(t, err)
	assert.Equal(t, stamp, resp.Metadata.LastUpdatedAt)
}

func TestGetPublicReport_HidesVideos(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	_, err := f.pipeline.RecomputeCampaignAnalytics(ctx, "c1")
	require.NoError(t, err)

	report, err := f.reports.CreateReport(ctx, ReportInput{
		Name:           "Client view",
		CampaignIDs:    []string{"c1"},
		HiddenVideoIDs: []string{"Y"},
	})
	require.NoError(t, err)

	resp, err := f.query.GetPublicReport(ctx, report.PublicShareID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, videoIDs(resp))
	assert.Equal(t, int64(100), resp.Metrics.Views)
	assert.Equal(t, int64(1), resp.Metrics.Posts)

	// The internal rollup still counts the hidden video.
	c, err := f.query.GetCampaignAnalytics(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, int64(1100), c.Totals.Views)
	assert.Equal(t, "Y", c.TopVideos[0].VideoID)

	stored, err := f.store.GetReportByShareID(ctx, report.PublicShareID)
	require.NoError(t, err)
	_, cached := f.responses.entries[PublicReportKey(stored, 0)]
	assert.True(t, cached)
}

func TestGetPublicReport_InvalidatedOnHiddenChange(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	report, err := f.reports.CreateReport(ctx, ReportInput{CampaignIDs: []string{"c1"}})
	require.NoError(t, err)

	resp, err := f.query.GetPublicReport(ctx, report.PublicShareID, 30)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"A", "Y"}, videoIDs(resp))

	_, err = f.reports.UpdateHiddenVideos(ctx, report.ID, []string{"Y"})
	require.NoError(t, err)
	assert.Empty(t, f.responses.entries)

	resp, err = f.query.GetPublicReport(ctx, report.PublicShareID, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, videoIDs(resp))
}

func TestGetPublicReport_UnknownShareID(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.query.GetPublicReport(context.Background(), "missing", 30)

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetCampaignAnalytics_NotComputed(t *testing.T) {
	f := newQueryFixture(t)

	_, err := f.query.GetCampaignAnalytics(context.Background(), "c2")

	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetSnapshotSeries(t *testing.T) {
	f := newQueryFixture(t)
	f.store.AddIntervalSnapshots(
		videoSnapshot("c1", "A", 2025010110, 1000),
		videoSnapshot("c1", "A", 2025010111, 950),
	)

	series, err := f.query.GetSnapshotSeries(context.Background(), "c1")
	require.NoError(t, err)

	require.Len(t, series.Hourly, 2)
	assert.Equal(t, int64(0), series.Hourly[1].Gained.Views)
	require.Len(t, series.NegativeDeltas, 1)
	assert.Equal(t, int64(-50), series.NegativeDeltas[0].Delta)
}

func TestWindowStart(t *testing.T) {
	now := time.Date(2025, 1, 10, 23, 59, 0, 0, time.UTC)

	since, ok := windowStart(now, 7)
	assert.True(t, ok)
	assert.Equal(t, time.Date(2025, 1, 4, 0, 0, 0, 0, time.UTC), since)

	_, ok = windowStart(now, 0)
	assert.False(t, ok)
}

func TestReportService_Validation(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	_, err := f.reports.CreateReport(ctx, ReportInput{Name: "empty"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = f.reports.CreateReport(ctx, ReportInput{CampaignIDs: []string{"c9"}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.reports.UpdateHiddenVideos(ctx, "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPublicReport_UpdateDuringRead(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	report, err := f.reports.CreateReport(ctx, ReportInput{CampaignIDs: []string{"c1"}})
	require.NoError(t, err)

	repo := &racingReports{ReportRepo: f.store}
	repo.onGet = func() {
		_, err := f.reports.UpdateHiddenVideos(ctx, report.ID, []string{"Y"})
		require.NoError(t, err)
	}
	q := NewQueryService(f.pipeline, repo, f.responses, 2, zap.NewNop(), nil)
	q.now = f.query.now

	// The in-flight read was resolved before the update and may still see Y.
	_, err = q.GetPublicReport(ctx, report.PublicShareID, 30)
	require.NoError(t, err)

	resp, err := q.GetPublicReport(ctx, report.PublicShareID, 30)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, videoIDs(resp))
}

func TestPublicReportKey(t *testing.T) {
	a := &models.Report{PublicShareID: "s1", CampaignIDs: []string{"c1", "c2"}, HiddenVideoIDs: []string{"x", "y"}}
	b := &models.Report{PublicShareID: "s1", CampaignIDs: []string{"c2", "c1"}, HiddenVideoIDs: []string{"y", "x"}}
	c := &models.Report{PublicShareID: "s1", CampaignIDs: []string{"c1", "c2"}, HiddenVideoIDs: []string{"x"}}

	assert.Equal(t, PublicReportKey(a, 30), PublicReportKey(b, 30))
	assert.NotEqual(t, PublicReportKey(a, 30), PublicReportKey(c, 30))
	assert.NotEqual(t, PublicReportKey(a, 30), PublicReportKey(a, 7))
	assert.True(t, strings.HasPrefix(PublicReportKey(a, 30), publicReportPrefix("s1")))
}

func TestGetCombinedAnalytics_RepeatedCampaignIDs(t *testing.T) {
	f := newQueryFixture(t)

	resp, err := f.query.GetCombinedAnalytics(context.Background(), CombinedQuery{CampaignIDs: []string{"c2", "c2"}})
	require.NoError(t, err)

	assert.Equal(t, int64(1), resp.Metrics.Posts)
	assert.Equal(t, int64(300), resp.Metrics.Views)
	assert.Equal(t, []string{"B"}, videoIDs(resp))
	assert.Equal(t, []string{"c2"}, resp.Metadata.CampaignIDs)
}

func TestCreateReport_DropsRepeatedCampaignIDs(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()

	report, err := f.reports.CreateReport(ctx, ReportInput{CampaignIDs: []string{"c2", "c1", "c2"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"c2", "c1"}, report.CampaignIDs)

	resp, err := f.query.GetPublicReport(ctx, report.PublicShareID, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), resp.Metrics.Posts)
}

func TestGetCombinedAnalytics_FuturePostsOutsideWindow(t *testing.T) {
	f := newQueryFixture(t)
	f.store.AddPostSources("c2", models.ManualPost{CampaignID: "c2", PostID: "F"})
	// 2025-01-05, two days after the fixture's clock.
	f.store.AddPlatformStats(stat("c2", "F", models.PlatformTikTok, jan1+4*day, 700))

	resp, err := f.query.GetCombinedAnalytics(context.Background(), CombinedQuery{Days: 3})
	require.NoError(t, err)

	assert.NotContains(t, videoIDs(resp), "F")
	var posts, views int64
	for _, d := range resp.DailyMetrics {
		posts += d.Posts
		views += d.Views
	}
	assert.Equal(t, resp.Metrics.Posts, posts)
	assert.Equal(t, resp.Metrics.Views, views)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, uniqueIDs([]string{"b", "", "a", "b", "a"}))
	assert.Equal(t, []string{}, uniqueIDs(nil))
}

type failingDeleteCache struct{ *recordingCache }

func (failingDeleteCache) DeletePrefix(ctx context.Context, prefix string) error {
	return errors.New("READONLY You can't write against a read only replica")
}

func TestUpdateHiddenVideos_CacheDeleteFailure(t *testing.T) {
	f := newQueryFixture(t)
	ctx := context.Background()
	reports := NewReportService(f.store, f.store, failingDeleteCache{f.responses}, zap.NewNop())

	report, err := reports.CreateReport(ctx, ReportInput{CampaignIDs: []string{"c1"}})
	require.NoError(t, err)
	_, err = f.query.GetPublicReport(ctx, report.PublicShareID, 0)
	require.NoError(t, err)

	updated, err := reports.UpdateHiddenVideos(ctx, report.ID, []string{"Y"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Y"}, updated.HiddenVideoIDs)

	resp, err := f.query.GetPublicReport(ctx, report.PublicShareID, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, videoIDs(resp))
}
