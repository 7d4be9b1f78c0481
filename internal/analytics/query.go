package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radiusdt/vidpulse/internal/metrics"
	"github.com/radiusdt/vidpulse/internal/models"
	"github.com/radiusdt/vidpulse/internal/storage"
)

// CombinedQuery selects campaigns and a trailing window of days.
type CombinedQuery struct {
	CampaignIDs    []string // empty means every campaign
	Days           int      // 0 means all time
	HiddenVideoIDs []string
}

// SummaryMetrics are the headline totals of a combined response.
type SummaryMetrics struct {
	Views          int64   `json:"views"`
	Likes          int64   `json:"likes"`
	Comments       int64   `json:"comments"`
	Shares         int64   `json:"shares"`
	Saves          int64   `json:"saves"`
	Posts          int64   `json:"posts"`
	EngagementRate float64 `json:"engagementRate"`
}

// VideoMetric is one post in a combined response.
type VideoMetric struct {
	VideoID    string         `json:"videoId"`
	CampaignID string         `json:"campaignId"`
	Platform   string         `json:"platform"`
	VideoURL   string         `json:"videoUrl,omitempty"`
	PostedAt   int64          `json:"postedAt"`
	Metrics    models.Metrics `json:"metrics"`
}

// ResponseMetadata describes the freshness of a combined response.
type ResponseMetadata struct {
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
	CampaignIDs   []string  `json:"campaignIds"`
	Days          int       `json:"days"`
}

// AnalyticsResponse is the dashboard and public report payload.
type AnalyticsResponse struct {
	Metrics      SummaryMetrics    `json:"metrics"`
	Growth       map[string]Growth `json:"growth"`
	DailyMetrics []DailyPoint      `json:"dailyMetrics"`
	VideoMetrics []VideoMetric     `json:"videoMetrics"`
	Metadata     ResponseMetadata  `json:"metadata"`
}

// SnapshotSeries is the hourly gained series of one campaign together with
// the negative delta flags raised while diffing.
type SnapshotSeries struct {
	CampaignID     string                        `json:"campaignId"`
	Hourly         []HourlyPoint                 `json:"hourly"`
	Daily          map[string]models.DaySnapshot `json:"daily"`
	NegativeDeltas []NegativeDelta               `json:"negativeDeltas"`
}

// QueryService answers on-demand analytics reads by running the reconcile
// and aggregate steps synchronously over the sources.
type QueryService struct {
	pipeline    *Pipeline
	reports     storage.ReportRepo
	responses   storage.ResponseCache
	concurrency int
	logger      *zap.Logger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewQueryService constructs a QueryService. concurrency bounds how many
// campaigns are loaded at once.
func NewQueryService(p *Pipeline, reports storage.ReportRepo, responses storage.ResponseCache, concurrency int, logger *zap.Logger, m *metrics.Metrics) *QueryService {
	if concurrency <= 0 {
		concurrency = 4
	}
	if responses == nil {
		responses = storage.NoopResponseCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryService{
		pipeline:    p,
		reports:     reports,
		responses:   responses,
		concurrency: concurrency,
		logger:      logger,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// GetCampaignAnalytics returns the materialized rollup of a campaign.
func (q *QueryService) GetCampaignAnalytics(ctx context.Context, campaignID string) (*models.CampaignAnalyticsCache, error) {
	c, err := q.pipeline.cache.GetCampaignAnalytics(ctx, campaignID)
	if err != nil {
		return nil, fmt.Errorf("get analytics cache %s: %w", campaignID, err)
	}
	if c == nil {
		return nil, fmt.Errorf("analytics for campaign %s: %w", campaignID, ErrNotFound)
	}
	return c, nil
}

// GetCombinedAnalytics aggregates one or more campaigns over a window.
func (q *QueryService) GetCombinedAnalytics(ctx context.Context, cq CombinedQuery) (*AnalyticsResponse, error) {
	if cq.Days < 0 {
		return nil, fmt.Errorf("days must be >= 0: %w", ErrInvalidArgument)
	}

	ids := cq.CampaignIDs
	if len(ids) == 0 {
		all, err := q.pipeline.src.Campaigns.ListCampaignIDs(ctx)
		if err != nil {
			return nil, sourceErr(SourceCampaigns, err)
		}
		ids = all
	}
	ids = uniqueIDs(ids)

	loaded, err := q.loadAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	hidden := models.ToSet(cq.HiddenVideoIDs)
	now := q.now()
	since, windowed := windowStart(now, cq.Days)
	until := since.AddDate(0, 0, cq.Days)

	var posts []Post
	for _, l := range loaded {
		set := l.inputs.Reconcile(hidden)
		for _, p := range set.Posts {
			// Posts dated after today fall outside the daily series too.
			if windowed && (p.PostedAt < since.Unix() || p.PostedAt >= until.Unix()) {
				continue
			}
			posts = append(posts, p)
		}
	}

	resp := buildResponse(posts, since, windowed, cq.Days)
	resp.Metadata.CampaignIDs = ids
	resp.Metadata.LastUpdatedAt = lastUpdated(loaded, now)
	return resp, nil
}

// GetPublicReport resolves a share id and serves the report with its hidden
// videos removed before aggregation. Responses are cached per share id,
// report contents and window, so a response built from an older hidden list
// is never served for a newer one.
func (q *QueryService) GetPublicReport(ctx context.Context, shareID string, days int) (*AnalyticsResponse, error) {
	report, err := q.reports.GetReportByShareID(ctx, shareID)
	if err != nil {
		return nil, fmt.Errorf("get report by share id: %w", err)
	}
	if report == nil {
		return nil, fmt.Errorf("report %s: %w", shareID, ErrNotFound)
	}

	key := PublicReportKey(report, days)
	if raw, ok, err := q.responses.Get(ctx, key); err != nil {
		q.logger.Warn("response cache get failed", zap.String("key", key), zap.Error(err))
	} else if ok {
		var resp AnalyticsResponse
		if err := json.Unmarshal(raw, &resp); err == nil {
			q.metrics.RecordResponseCache(true)
			return &resp, nil
		}
		q.logger.Warn("discarding unreadable cached response", zap.String("key", key))
	}
	q.metrics.RecordResponseCache(false)

	resp, err := q.GetCombinedAnalytics(ctx, CombinedQuery{
		CampaignIDs:    report.CampaignIDs,
		Days:           days,
		HiddenVideoIDs: report.HiddenVideoIDs,
	})
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(resp); err == nil {
		if err := q.responses.Set(ctx, key, raw); err != nil {
			q.logger.Warn("response cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return resp, nil
}

// GetDimensionStats groups a campaign's visible posts by dim.
func (q *QueryService) GetDimensionStats(ctx context.Context, campaignID string, dim Dimension) ([]DimensionStat, error) {
	in, err := q.pipeline.Load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	set := in.Reconcile(nil)
	return DimensionStats(set.Posts, dim), nil
}

// GetSnapshotSeries diffs a campaign's visible interval snapshots.
func (q *QueryService) GetSnapshotSeries(ctx context.Context, campaignID string) (*SnapshotSeries, error) {
	in, err := q.pipeline.Load(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	diff := DiffSnapshots(in.Reconcile(nil).Snapshots)
	return &SnapshotSeries{
		CampaignID:     campaignID,
		Hourly:         diff.HourlyGained(),
		Daily:          diff.DailyTotalSnapshots(),
		NegativeDeltas: diff.NegativeDeltas,
	}, nil
}

// PublicReportKey is the response cache key of a public report window. The
// key carries a hash of the report's campaign and hidden video lists.
func PublicReportKey(r *models.Report, days int) string {
	return fmt.Sprintf("%s%016x:%d", publicReportPrefix(r.PublicShareID), reportContentHash(r), days)
}

// reportContentHash hashes the sorted campaign and hidden video ids.
func reportContentHash(r *models.Report) uint64 {
	campaigns := append([]string(nil), r.CampaignIDs...)
	hidden := append([]string(nil), r.HiddenVideoIDs...)
	sort.Strings(campaigns)
	sort.Strings(hidden)

	h := xxhash.New()
	_, _ = h.WriteString(strings.Join(campaigns, ","))
	_, _ = h.WriteString("|")
	_, _ = h.WriteString(strings.Join(hidden, ","))
	return h.Sum64()
}

func publicReportPrefix(shareID string) string {
	return "report:public:" + shareID + ":"
}

// uniqueIDs drops repeated and empty ids, keeping first-seen order.
func uniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

type loadedCampaign struct {
	inputs *Inputs
	cached *models.CampaignAnalyticsCache
}

// loadAll reads every campaign concurrently, bounded by q.concurrency.
// Results keep the order of ids.
func (q *QueryService) loadAll(ctx context.Context, ids []string) ([]loadedCampaign, error) {
	out := make([]loadedCampaign, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.concurrency)
	for i, id := range ids {
		i, id := i, id
		g.Go(func() error {
			in, err := q.pipeline.Load(gctx, id)
			if err != nil {
				return err
			}
			out[i].inputs = in

			c, err := q.pipeline.cache.GetCampaignAnalytics(gctx, id)
			if err != nil {
				q.logger.Warn("read analytics cache for metadata", zap.String("campaign_id", id), zap.Error(err))
				return nil
			}
			out[i].cached = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// windowStart returns the first UTC midnight inside a trailing window of
// days ending today.
func windowStart(now time.Time, days int) (time.Time, bool) {
	if days <= 0 {
		return time.Time{}, false
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.AddDate(0, 0, -(days - 1)), true
}

func buildResponse(posts []Post, since time.Time, windowed bool, days int) *AnalyticsResponse {
	var totals models.Totals
	for _, p := range posts {
		totals.AddPost(p.Metrics)
	}

	series := dailySeries(DailyBuckets(posts), since, windowed, days)

	ranked := append([]Post(nil), posts...)
	sort.SliceStable(ranked, func(i, j int) bool { return rankLess(ranked[i], ranked[j]) })
	videos := make([]VideoMetric, 0, len(ranked))
	for _, p := range ranked {
		videos = append(videos, VideoMetric{
			VideoID:    p.PostID,
			CampaignID: p.CampaignID,
			Platform:   p.Platform,
			VideoURL:   p.VideoURL,
			PostedAt:   p.PostedAt,
			Metrics:    p.Metrics,
		})
	}

	return &AnalyticsResponse{
		Metrics: SummaryMetrics{
			Views:          totals.Views,
			Likes:          totals.Likes,
			Comments:       totals.Comments,
			Shares:         totals.Shares,
			Saves:          totals.Saves,
			Posts:          totals.Posts,
			EngagementRate: EngagementRate(totals.Metrics),
		},
		Growth:       CalculateAllGrowth(series),
		DailyMetrics: series,
		VideoMetrics: videos,
		Metadata:     ResponseMetadata{Days: days},
	}
}

// dailySeries expands buckets into one point per day: every day of the
// window when windowed, otherwise every day from the first to the last
// bucket. Days without posts are zero.
func dailySeries(buckets []DailyBucket, since time.Time, windowed bool, days int) []DailyPoint {
	byDate := make(map[string]DailyBucket, len(buckets))
	for _, b := range buckets {
		byDate[b.Date] = b
	}

	var start time.Time
	n := days
	switch {
	case windowed:
		start = since
	case len(buckets) == 0:
		return []DailyPoint{}
	default:
		first, err1 := time.Parse(models.DateLayout, buckets[0].Date)
		last, err2 := time.Parse(models.DateLayout, buckets[len(buckets)-1].Date)
		if err := errors.Join(err1, err2); err != nil {
			return []DailyPoint{}
		}
		start = first
		n = int(last.Sub(first).Hours()/24) + 1
	}

	out := make([]DailyPoint, 0, n)
	for i := 0; i < n; i++ {
		date := start.AddDate(0, 0, i).Format(models.DateLayout)
		b := byDate[date]
		out = append(out, DailyPoint{Date: date, Posts: b.Totals.Posts, Metrics: b.Totals.Metrics})
	}
	return out
}

func lastUpdated(loaded []loadedCampaign, fallback time.Time) time.Time {
	var latest time.Time
	for _, l := range loaded {
		if l.cached != nil && l.cached.UpdatedAt.After(latest) {
			latest = l.cached.UpdatedAt
		}
	}
	if latest.IsZero() {
		return fallback
	}
	return latest
}
