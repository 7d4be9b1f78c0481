package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/radiusdt/vidpulse/internal/models"
)

// PostgresAnalyticsCache implements AnalyticsCacheStore on the
// campaign_analytics_cache table (one row per campaign).
type PostgresAnalyticsCache struct {
	db  DBTX
	now func() time.Time
}

func NewPostgresAnalyticsCache(db DBTX) *PostgresAnalyticsCache {
	return &PostgresAnalyticsCache{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// UpsertCampaignAnalytics replaces the whole row in one statement. The
// WHERE clause on the conflict branch skips rows whose fingerprint already
// matches, in which case no row is returned.
func (c *PostgresAnalyticsCache) UpsertCampaignAnalytics(ctx context.Context, a *models.CampaignAnalyticsCache) (UpsertResult, error) {
	topVideos, err := json.Marshal(a.TopVideos)
	if err != nil {
		return "", fmt.Errorf("failed to marshal top videos: %w", err)
	}
	postCounts, err := json.Marshal(a.PostCountsByDate)
	if err != nil {
		return "", fmt.Errorf("failed to marshal post counts: %w", err)
	}
	daily, err := json.Marshal(a.DailyTotalSnapshots)
	if err != nil {
		return "", fmt.Errorf("failed to marshal daily snapshots: %w", err)
	}
	excluded, err := json.Marshal(a.MinViewsExcluded)
	if err != nil {
		return "", fmt.Errorf("failed to marshal min views stats: %w", err)
	}

	var inserted bool
	err = c.db.QueryRow(ctx, `
		INSERT INTO campaign_analytics_cache (
			campaign_id, campaign_name, artist, song,
			total_posts, total_views, total_likes, total_comments, total_shares, total_saves,
			top_videos, post_counts_by_date, daily_total_snapshots, min_views_excluded,
			fingerprint, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (campaign_id) DO UPDATE SET
			campaign_name = EXCLUDED.campaign_name,
			artist = EXCLUDED.artist,
			song = EXCLUDED.song,
			total_posts = EXCLUDED.total_posts,
			total_views = EXCLUDED.total_views,
			total_likes = EXCLUDED.total_likes,
			total_comments = EXCLUDED.total_comments,
			total_shares = EXCLUDED.total_shares,
			total_saves = EXCLUDED.total_saves,
			top_videos = EXCLUDED.top_videos,
			post_counts_by_date = EXCLUDED.post_counts_by_date,
			daily_total_snapshots = EXCLUDED.daily_total_snapshots,
			min_views_excluded = EXCLUDED.min_views_excluded,
			fingerprint = EXCLUDED.fingerprint,
			updated_at = EXCLUDED.updated_at
		WHERE campaign_analytics_cache.fingerprint IS DISTINCT FROM EXCLUDED.fingerprint
		RETURNING (xmax = 0) AS inserted
	`,
		a.CampaignID, a.CampaignName, a.Artist, a.Song,
		a.Totals.Posts, a.Totals.Views, a.Totals.Likes, a.Totals.Comments, a.Totals.Shares, a.Totals.Saves,
		topVideos, postCounts, daily, excluded,
		int64(a.Fingerprint), c.now(),
	).Scan(&inserted)

	if errors.Is(err, pgx.ErrNoRows) {
		return UpsertUnchanged, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to upsert campaign analytics: %w", err)
	}
	if inserted {
		return UpsertInserted, nil
	}
	return UpsertReplaced, nil
}

func (c *PostgresAnalyticsCache) GetCampaignAnalytics(ctx context.Context, campaignID string) (*models.CampaignAnalyticsCache, error) {
	var a models.CampaignAnalyticsCache
	var topVideos, postCounts, daily, excluded []byte
	var fingerprint int64

	err := c.db.QueryRow(ctx, `
		SELECT campaign_id, campaign_name, artist, song,
			   total_posts, total_views, total_likes, total_comments, total_shares, total_saves,
			   top_videos, post_counts_by_date, daily_total_snapshots, min_views_excluded,
			   fingerprint, updated_at
		FROM campaign_analytics_cache WHERE campaign_id = $1
	`, campaignID).Scan(
		&a.CampaignID, &a.CampaignName, &a.Artist, &a.Song,
		&a.Totals.Posts, &a.Totals.Views, &a.Totals.Likes, &a.Totals.Comments, &a.Totals.Shares, &a.Totals.Saves,
		&topVideos, &postCounts, &daily, &excluded,
		&fingerprint, &a.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign analytics: %w", err)
	}

	if err := json.Unmarshal(topVideos, &a.TopVideos); err != nil {
		return nil, fmt.Errorf("failed to parse top videos: %w", err)
	}
	if err := json.Unmarshal(postCounts, &a.PostCountsByDate); err != nil {
		return nil, fmt.Errorf("failed to parse post counts: %w", err)
	}
	if err := json.Unmarshal(daily, &a.DailyTotalSnapshots); err != nil {
		return nil, fmt.Errorf("failed to parse daily snapshots: %w", err)
	}
	if err := json.Unmarshal(excluded, &a.MinViewsExcluded); err != nil {
		return nil, fmt.Errorf("failed to parse min views stats: %w", err)
	}
	a.Fingerprint = uint64(fingerprint)
	return &a, nil
}
