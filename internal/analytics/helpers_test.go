package analytics

import (
	"github.com/radiusdt/vidpulse/internal/models"
)

const (
	jan1 int64 = 1735689600 // 2025-01-01T00:00:00Z
	jan2 int64 = 1735776000 // 2025-01-02T00:00:00Z
	day  int64 = 86400
)

func ledger(campaignID string, postIDs ...string) []models.PostingRecord {
	sources := make([]models.PostSource, 0, len(postIDs))
	for _, id := range postIDs {
		sources = append(sources, models.BundlePost{CampaignID: campaignID, PostID: id})
	}
	return models.NormalizePostings(sources)
}

func stat(campaignID, postID, platform string, postedAt, views int64) models.PlatformStat {
	return models.PlatformStat{
		CampaignID: campaignID,
		PostID:     postID,
		Platform:   platform,
		PostedAt:   postedAt,
		Metrics:    models.Metrics{Views: views, Likes: views / 10},
	}
}

func videoSnapshot(campaignID, postID string, at int64, views int64) models.IntervalSnapshot {
	return models.IntervalSnapshot{
		SubjectID:   postID,
		SubjectKind: models.SubjectVideo,
		CampaignID:  campaignID,
		Platform:    models.PlatformTikTok,
		PostID:      postID,
		SnapshotAt:  at,
		Hour:        int(at % 100),
		Metrics:     models.Metrics{Views: views},
	}
}

func int64Ptr(v int64) *int64 { return &v }
