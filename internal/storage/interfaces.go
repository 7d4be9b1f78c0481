package storage

import (
	"context"

	"github.com/radiusdt/vidpulse/internal/models"
)

// =============================================
// SOURCE READERS
// =============================================

// PostingLedger reads the campaign's posting records from every ledger family.
type PostingLedger interface {
	ListPostSources(ctx context.Context, campaignID string) ([]models.PostSource, error)
}

// PlatformStatReader reads scraped per-platform counters for a campaign.
type PlatformStatReader interface {
	ListPlatformStats(ctx context.Context, campaignID string) ([]models.PlatformStat, error)
}

// SnapshotReader reads hourly interval snapshots for a campaign.
type SnapshotReader interface {
	ListIntervalSnapshots(ctx context.Context, campaignID string) ([]models.IntervalSnapshot, error)
}

// CampaignRepo reads campaign metadata. GetCampaign returns (nil, nil) when
// the campaign does not exist.
type CampaignRepo interface {
	GetCampaign(ctx context.Context, id string) (*models.Campaign, error)
	ListCampaignIDs(ctx context.Context) ([]string, error)
}

// =============================================
// REPORTS
// =============================================

// ReportRepo stores shareable report definitions. Getters return (nil, nil)
// when the report does not exist.
type ReportRepo interface {
	GetReport(ctx context.Context, id string) (*models.Report, error)
	GetReportByShareID(ctx context.Context, shareID string) (*models.Report, error)
	UpsertReport(ctx context.Context, r *models.Report) error
}

// =============================================
// ANALYTICS CACHE
// =============================================

// UpsertResult tells what a cache write did to the stored row.
type UpsertResult string

const (
	UpsertInserted  UpsertResult = "inserted"
	UpsertReplaced  UpsertResult = "replaced"
	UpsertUnchanged UpsertResult = "unchanged"
)

// AnalyticsCacheStore persists the materialized per-campaign rollup. The
// upsert replaces every field of an existing row or inserts a new one; a
// row whose fingerprint already matches is left untouched.
type AnalyticsCacheStore interface {
	UpsertCampaignAnalytics(ctx context.Context, c *models.CampaignAnalyticsCache) (UpsertResult, error)
	GetCampaignAnalytics(ctx context.Context, campaignID string) (*models.CampaignAnalyticsCache, error)
}

// ResponseCache caches serialized query responses by key.
type ResponseCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	DeletePrefix(ctx context.Context, prefix string) error
}
