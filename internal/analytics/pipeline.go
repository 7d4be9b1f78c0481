package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/metrics"
	"github.com/radiusdt/vidpulse/internal/models"
	"github.com/radiusdt/vidpulse/internal/storage"
)

// Recompute triggers, used as a metrics label.
const (
	TriggerOnDemand  = "on_demand"
	TriggerScheduled = "scheduled"
)

// Sources bundles the four source families read by the pipeline.
type Sources struct {
	Campaigns storage.CampaignRepo
	Ledger    storage.PostingLedger
	Stats     storage.PlatformStatReader
	Snapshots storage.SnapshotReader
}

// Inputs is everything read from the sources for one campaign.
type Inputs struct {
	Campaign  *models.Campaign
	Postings  []models.PostingRecord
	Stats     []models.PlatformStat
	Snapshots []models.IntervalSnapshot
}

// Reconcile runs the reconciler over the inputs with the campaign's own
// minimum-views floor and the given hidden ids.
func (in *Inputs) Reconcile(hidden map[string]struct{}) PostSet {
	return Reconcile(in.Campaign.ID, in.Postings, in.Stats, in.Snapshots, ReconcileOptions{
		HiddenVideoIDs: hidden,
		MinViews:       in.Campaign.MinViews,
	})
}

// RecomputeResult summarizes a successful recomputation.
type RecomputeResult struct {
	CampaignID          string                        `json:"campaignId"`
	TotalPosts          int64                         `json:"totalPosts"`
	TotalViews          int64                         `json:"totalViews"`
	TotalLikes          int64                         `json:"totalLikes"`
	TotalComments       int64                         `json:"totalComments"`
	TotalShares         int64                         `json:"totalShares"`
	TotalSaves          int64                         `json:"totalSaves"`
	TopVideosCount      int                           `json:"topVideosCount"`
	DailyTotalSnapshots map[string]models.DaySnapshot `json:"dailyTotalSnapshots"`
	NegativeDeltas      int                           `json:"negativeDeltas"`
	Write               storage.UpsertResult          `json:"write"`
}

// Pipeline recomputes and materializes per-campaign analytics. Each run is
// sequential and depends only on the campaign's current source data.
type Pipeline struct {
	src     Sources
	cache   storage.AnalyticsCacheStore
	topN    int
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewPipeline constructs a Pipeline. topN <= 0 uses models.TopVideosLimit.
func NewPipeline(src Sources, cache storage.AnalyticsCacheStore, topN int, logger *zap.Logger, m *metrics.Metrics) *Pipeline {
	if topN <= 0 || topN > models.TopVideosLimit {
		topN = models.TopVideosLimit
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		src:     src,
		cache:   cache,
		topN:    topN,
		logger:  logger,
		metrics: m,
	}
}

// Load reads every source family for the campaign. An unknown campaign
// returns ErrNotFound. A failed read returns a *SourceError; an empty
// result is not an error.
func (p *Pipeline) Load(ctx context.Context, campaignID string) (*Inputs, error) {
	campaign, err := p.src.Campaigns.GetCampaign(ctx, campaignID)
	if err != nil {
		p.metrics.RecordSourceFailure(SourceCampaigns)
		return nil, sourceErr(SourceCampaigns, err)
	}
	if campaign == nil {
		return nil, fmt.Errorf("campaign %s: %w", campaignID, ErrNotFound)
	}

	in := &Inputs{Campaign: campaign}

	sources, err := p.src.Ledger.ListPostSources(ctx, campaignID)
	if err != nil {
		p.metrics.RecordSourceFailure(SourceLedger)
		return nil, sourceErr(SourceLedger, err)
	}
	in.Postings = models.NormalizePostings(sources)

	in.Stats, err = p.src.Stats.ListPlatformStats(ctx, campaignID)
	if err != nil {
		p.metrics.RecordSourceFailure(SourcePlatformStats)
		return nil, sourceErr(SourcePlatformStats, err)
	}

	in.Snapshots, err = p.src.Snapshots.ListIntervalSnapshots(ctx, campaignID)
	if err != nil {
		p.metrics.RecordSourceFailure(SourceSnapshots)
		return nil, sourceErr(SourceSnapshots, err)
	}
	return in, nil
}

// Rollup is the computed, not yet persisted, result of one run.
type Rollup struct {
	Cache *models.CampaignAnalyticsCache
	Set   PostSet
	Diff  DiffResult
}

// Build computes the campaign rollup from loaded inputs. The returned cache
// value is complete and carries its fingerprint; it is never mutated after.
func (p *Pipeline) Build(in *Inputs) (*Rollup, error) {
	set := in.Reconcile(nil)
	agg := Aggregate(set.Posts, p.topN)
	diff := DiffSnapshots(set.Snapshots)

	c := &models.CampaignAnalyticsCache{
		CampaignID:          in.Campaign.ID,
		CampaignName:        in.Campaign.Name,
		Artist:              in.Campaign.Artist,
		Song:                in.Campaign.Song,
		Totals:              agg.Totals,
		TopVideos:           agg.TopVideos,
		PostCountsByDate:    agg.PostCountsByDate,
		DailyTotalSnapshots: diff.DailyTotalSnapshots(),
		MinViewsExcluded:    set.MinViewsExcludedStats,
	}
	fp, err := Fingerprint(c)
	if err != nil {
		return nil, err
	}
	c.Fingerprint = fp

	return &Rollup{Cache: c, Set: set, Diff: diff}, nil
}

// Fingerprint hashes the canonical JSON of a rollup, ignoring UpdatedAt.
func Fingerprint(c *models.CampaignAnalyticsCache) (uint64, error) {
	cp := *c
	cp.UpdatedAt = time.Time{}
	b, err := json.Marshal(cp)
	if err != nil {
		return 0, fmt.Errorf("fingerprint rollup: %w", err)
	}
	return xxhash.Sum64(b), nil
}

// RecomputeCampaignAnalytics recomputes a campaign on demand and writes the
// rollup to the cache. Nothing is written unless every step succeeds.
func (p *Pipeline) RecomputeCampaignAnalytics(ctx context.Context, campaignID string) (RecomputeResult, error) {
	return p.Recompute(ctx, campaignID, TriggerOnDemand)
}

// Recompute is RecomputeCampaignAnalytics with an explicit trigger label.
func (p *Pipeline) Recompute(ctx context.Context, campaignID, trigger string) (RecomputeResult, error) {
	start := time.Now()
	runID := uuid.NewString()
	log := p.logger.With(
		zap.String("run_id", runID),
		zap.String("campaign_id", campaignID),
		zap.String("trigger", trigger),
	)

	res, err := p.recompute(ctx, campaignID, log)
	took := time.Since(start)
	if err != nil {
		p.metrics.RecordPipelineRun(trigger, "error", took)
		if errors.Is(err, ErrNotFound) {
			log.Info("campaign not found")
		} else {
			log.Error("recompute failed", zap.Error(err), zap.Duration("took", took))
		}
		return RecomputeResult{}, err
	}

	p.metrics.RecordPipelineRun(trigger, "ok", took)
	log.Info("recompute complete",
		zap.Int64("posts", res.TotalPosts),
		zap.Int64("views", res.TotalViews),
		zap.Int("top_videos", res.TopVideosCount),
		zap.Int("negative_deltas", res.NegativeDeltas),
		zap.String("write", string(res.Write)),
		zap.Duration("took", took),
	)
	return res, nil
}

func (p *Pipeline) recompute(ctx context.Context, campaignID string, log *zap.Logger) (RecomputeResult, error) {
	in, err := p.Load(ctx, campaignID)
	if err != nil {
		return RecomputeResult{}, err
	}

	r, err := p.Build(in)
	if err != nil {
		return RecomputeResult{}, err
	}

	p.metrics.RecordUnmatched(r.Set.Unmatched)
	for _, nd := range r.Diff.NegativeDeltas {
		p.metrics.RecordNegativeDelta(nd.Metric)
		log.Warn("negative snapshot delta",
			zap.String("subject_id", nd.SubjectID),
			zap.String("interval_id", nd.IntervalID),
			zap.String("metric", nd.Metric),
			zap.Int64("delta", nd.Delta),
		)
	}

	written, err := p.cache.UpsertCampaignAnalytics(ctx, r.Cache)
	if err != nil {
		p.metrics.RecordCacheWrite("error")
		return RecomputeResult{}, fmt.Errorf("campaign %s: %w: %w", campaignID, ErrUpsertConflict, err)
	}
	p.metrics.RecordCacheWrite(string(written))

	c := r.Cache
	return RecomputeResult{
		CampaignID:          c.CampaignID,
		TotalPosts:          c.Totals.Posts,
		TotalViews:          c.Totals.Views,
		TotalLikes:          c.Totals.Likes,
		TotalComments:       c.Totals.Comments,
		TotalShares:         c.Totals.Shares,
		TotalSaves:          c.Totals.Saves,
		TopVideosCount:      len(c.TopVideos),
		DailyTotalSnapshots: c.DailyTotalSnapshots,
		NegativeDeltas:      len(r.Diff.NegativeDeltas),
		Write:               written,
	}, nil
}
