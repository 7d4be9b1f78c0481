package models

import "time"

// TopVideosLimit caps the number of ranked videos kept per campaign.
const TopVideosLimit = 100

// TopVideo is the display projection of a ranked post.
type TopVideo struct {
	VideoID  string `json:"videoId"`
	Platform string `json:"platform"`
	PostedAt int64  `json:"postedAt"`
	VideoURL string `json:"videoUrl,omitempty"`
	MediaURL string `json:"mediaUrl,omitempty"`
	Metrics
}

// DateCount is the number of posts published on a date.
type DateCount struct {
	Date  string `json:"date"`
	Count int64  `json:"count"`
}

// DaySnapshot summarizes interval snapshots for one UTC day: the cumulative
// counters at end of day across all subjects, the per-platform split and the
// counters gained during the day.
type DaySnapshot struct {
	Totals     Metrics            `json:"totals"`
	ByPlatform map[string]Metrics `json:"byPlatform,omitempty"`
	Gained     Metrics            `json:"gained"`
}

// CampaignAnalyticsCache is the materialized per-campaign rollup. It is a
// disposable value rebuilt from sources and replaced wholesale on write.
type CampaignAnalyticsCache struct {
	CampaignID          string                 `json:"campaignId"`
	CampaignName        string                 `json:"campaignName"`
	Artist              string                 `json:"artist,omitempty"`
	Song                string                 `json:"song,omitempty"`
	Totals              Totals                 `json:"totals"`
	TopVideos           []TopVideo             `json:"topVideos"`
	PostCountsByDate    []DateCount            `json:"postCountsByDate"`
	DailyTotalSnapshots map[string]DaySnapshot `json:"dailyTotalSnapshots"`
	MinViewsExcluded    Totals                 `json:"minViewsExcludedStats"`
	Fingerprint         uint64                 `json:"-"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}
