package storage

import (
	"context"
	"fmt"

	"github.com/radiusdt/vidpulse/internal/models"
)

// SnapshotsTableName is the ClickHouse table holding hourly interval snapshots.
// The table is a ReplacingMergeTree(inserted_at) ordered by (campaign_id,
// subject_id, snapshot_at): a re-inserted hour is a retried capture and the
// latest insert is the one read back through FINAL.
const SnapshotsTableName = "interval_snapshots"

// ClickHouseSelecter is the subset of clickhouse driver.Conn used here.
type ClickHouseSelecter interface {
	Select(ctx context.Context, dest any, query string, args ...any) error
}

// snapshotRow mirrors the interval_snapshots columns.
type snapshotRow struct {
	SubjectID   string `ch:"subject_id"`
	SubjectKind string `ch:"subject_kind"`
	CampaignID  string `ch:"campaign_id"`
	Platform    string `ch:"platform"`
	PostID      string `ch:"post_id"`
	SnapshotAt  int64  `ch:"snapshot_at"`
	Hour        uint8  `ch:"hour"`
	Views       int64  `ch:"views"`
	Likes       int64  `ch:"likes"`
	Comments    int64  `ch:"comments"`
	Shares      int64  `ch:"shares"`
	Saves       int64  `ch:"saves"`
}

// ClickHouseSnapshotReader implements SnapshotReader on ClickHouse.
type ClickHouseSnapshotReader struct {
	conn ClickHouseSelecter
}

func NewClickHouseSnapshotReader(conn ClickHouseSelecter) *ClickHouseSnapshotReader {
	return &ClickHouseSnapshotReader{conn: conn}
}

func (r *ClickHouseSnapshotReader) ListIntervalSnapshots(ctx context.Context, campaignID string) ([]models.IntervalSnapshot, error) {
	var rows []snapshotRow
	query := `
		SELECT subject_id, subject_kind, campaign_id, platform, post_id,
		       snapshot_at, hour, views, likes, comments, shares, saves
		FROM ` + SnapshotsTableName + ` FINAL
		WHERE campaign_id = ?
		ORDER BY subject_id, snapshot_at`

	if err := r.conn.Select(ctx, &rows, query, campaignID); err != nil {
		return nil, fmt.Errorf("failed to list interval snapshots: %w", err)
	}

	out := make([]models.IntervalSnapshot, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.IntervalSnapshot{
			SubjectID:   row.SubjectID,
			SubjectKind: models.SubjectKind(row.SubjectKind),
			CampaignID:  row.CampaignID,
			Platform:    row.Platform,
			PostID:      row.PostID,
			IntervalID:  models.IntervalID(row.SubjectID, row.SnapshotAt),
			SnapshotAt:  row.SnapshotAt,
			Hour:        int(row.Hour),
			Metrics: models.Metrics{
				Views:    row.Views,
				Likes:    row.Likes,
				Comments: row.Comments,
				Shares:   row.Shares,
				Saves:    row.Saves,
			},
		})
	}
	return out, nil
}
