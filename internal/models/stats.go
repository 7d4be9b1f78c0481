package models

import (
	"fmt"
	"strconv"
	"time"
)

// Supported platforms.
const (
	PlatformTikTok    = "tiktok"
	PlatformInstagram = "instagram"
	PlatformYouTube   = "youtube"
)

// ===========================================
// PLATFORM STATS
// ===========================================

// PlatformStat is the latest scraped cumulative counters for one post on one
// platform. Rows are upserted on every scrape cycle.
type PlatformStat struct {
	CampaignID string `json:"campaignId"`
	PostID     string `json:"postId"`
	Platform   string `json:"platform"`
	PostedAt   int64  `json:"postedAt"` // unix seconds
	MediaURL   string `json:"mediaUrl,omitempty"`
	VideoURL   string `json:"videoUrl,omitempty"`
	Metrics
}

// Key returns the (platform, postId) dedup key.
func (s PlatformStat) Key() string {
	return s.Platform + ":" + s.PostID
}

// DateKey returns the UTC calendar date of the post as YYYY-MM-DD.
func (s PlatformStat) DateKey() string {
	return DateKey(s.PostedAt)
}

// DateKey converts unix seconds to a UTC YYYY-MM-DD key.
func DateKey(unix int64) string {
	return time.Unix(unix, 0).UTC().Format(DateLayout)
}

// DateLayout is the layout for daily bucket keys.
const DateLayout = "2006-01-02"

// ===========================================
// INTERVAL SNAPSHOTS
// ===========================================

// SubjectKind distinguishes per-video snapshots from campaign/platform rollups.
type SubjectKind string

const (
	SubjectVideo            SubjectKind = "video"
	SubjectCampaignPlatform SubjectKind = "campaign_platform"
)

// IntervalSnapshot is a cumulative counter reading captured at an hourly
// checkpoint. A row is immutable once written; a new hour writes a new row.
type IntervalSnapshot struct {
	SubjectID   string      `json:"subjectId"`
	SubjectKind SubjectKind `json:"subjectKind"`
	CampaignID  string      `json:"campaignId"`
	Platform    string      `json:"platform"`
	PostID      string      `json:"postId,omitempty"`
	IntervalID  string      `json:"intervalId"`
	SnapshotAt  int64       `json:"snapshotAt"` // YYYYMMDDHH
	Hour        int         `json:"hour"`
	Metrics
}

// IntervalID builds the interval key for a subject at a YYYYMMDDHH checkpoint.
func IntervalID(subjectID string, snapshotAt int64) string {
	return subjectID + "_" + strconv.FormatInt(snapshotAt, 10)
}

// SnapshotHour formats t (in UTC) as a YYYYMMDDHH checkpoint.
func SnapshotHour(t time.Time) int64 {
	t = t.UTC()
	return int64(t.Year())*1000000 + int64(t.Month())*10000 + int64(t.Day())*100 + int64(t.Hour())
}

// SnapshotTime parses a YYYYMMDDHH checkpoint back to a UTC time.
func SnapshotTime(snapshotAt int64) (time.Time, error) {
	hour := int(snapshotAt % 100)
	day := int(snapshotAt / 100 % 100)
	month := int(snapshotAt / 10000 % 100)
	year := int(snapshotAt / 1000000)
	if hour > 23 || day < 1 || day > 31 || month < 1 || month > 12 || year < 1970 {
		return time.Time{}, fmt.Errorf("invalid snapshot checkpoint %d", snapshotAt)
	}
	return time.Date(year, time.Month(month), day, hour, 0, 0, 0, time.UTC), nil
}

// SnapshotDateKey returns the YYYY-MM-DD part of a YYYYMMDDHH checkpoint.
func SnapshotDateKey(snapshotAt int64) string {
	d := snapshotAt / 100
	return fmt.Sprintf("%04d-%02d-%02d", d/10000, d/100%100, d%100)
}
