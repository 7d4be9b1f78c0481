package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/radiusdt/vidpulse/internal/models"
)

// PostgresPostingLedger reads the four ledger tables (bundle, late, airtable
// and manual posts) and returns them as tagged PostSource values.
type PostgresPostingLedger struct {
	db DBTX
}

func NewPostgresPostingLedger(db DBTX) *PostgresPostingLedger {
	return &PostgresPostingLedger{db: db}
}

func (l *PostgresPostingLedger) ListPostSources(ctx context.Context, campaignID string) ([]models.PostSource, error) {
	var sources []models.PostSource

	bundle, err := l.listBundlePosts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sources = append(sources, bundle...)

	late, err := l.listLatePosts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sources = append(sources, late...)

	airtable, err := l.listAirtablePosts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	sources = append(sources, airtable...)

	manual, err := l.listManualPosts(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	return append(sources, manual...), nil
}

func (l *PostgresPostingLedger) listBundlePosts(ctx context.Context, campaignID string) ([]models.PostSource, error) {
	rows, err := l.db.Query(ctx, `
		SELECT post_id, caption, folder_name, overlay_style, error, video_id
		FROM bundle_posts WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bundle posts: %w", err)
	}
	defer rows.Close()

	var out []models.PostSource
	for rows.Next() {
		var p models.BundlePost
		var caption, folder, overlay, errState, videoID *string
		if err := rows.Scan(&p.PostID, &caption, &folder, &overlay, &errState, &videoID); err != nil {
			return nil, err
		}
		p.CampaignID = campaignID
		p.Caption = deref(caption)
		p.FolderName = deref(folder)
		p.OverlayStyle = deref(overlay)
		p.Error = deref(errState)
		p.VideoID = deref(videoID)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *PostgresPostingLedger) listLatePosts(ctx context.Context, campaignID string) ([]models.PostSource, error) {
	rows, err := l.db.Query(ctx, `
		SELECT late_post_id, content, status, failure_reason, platform_post_id
		FROM late_posts WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list late posts: %w", err)
	}
	defer rows.Close()

	var out []models.PostSource
	for rows.Next() {
		var p models.LatePost
		var content, failure, platformPostID *string
		if err := rows.Scan(&p.LatePostID, &content, &p.Status, &failure, &platformPostID); err != nil {
			return nil, err
		}
		p.CampaignID = campaignID
		p.Content = deref(content)
		p.FailureReason = deref(failure)
		p.PlatformPostID = deref(platformPostID)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *PostgresPostingLedger) listAirtablePosts(ctx context.Context, campaignID string) ([]models.PostSource, error) {
	rows, err := l.db.Query(ctx, `
		SELECT record_id, post_id, caption, folder
		FROM airtable_posts WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list airtable posts: %w", err)
	}
	defer rows.Close()

	var out []models.PostSource
	for rows.Next() {
		var p models.AirtablePost
		var postID, caption, folder *string
		if err := rows.Scan(&p.RecordID, &postID, &caption, &folder); err != nil {
			return nil, err
		}
		p.CampaignID = campaignID
		p.PostID = deref(postID)
		p.Caption = deref(caption)
		p.Folder = deref(folder)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *PostgresPostingLedger) listManualPosts(ctx context.Context, campaignID string) ([]models.PostSource, error) {
	rows, err := l.db.Query(ctx, `
		SELECT post_id, caption, video_url
		FROM manual_posts WHERE campaign_id = $1
	`, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list manual posts: %w", err)
	}
	defer rows.Close()

	var out []models.PostSource
	for rows.Next() {
		var p models.ManualPost
		var caption, videoURL *string
		if err := rows.Scan(&p.PostID, &caption, &videoURL); err != nil {
			return nil, err
		}
		p.CampaignID = campaignID
		p.Caption = deref(caption)
		p.VideoURL = deref(videoURL)
		out = append(out, p)
	}
	return out, rows.Err()
}

// PostgresPlatformStatReader reads one stat table per platform.
type PostgresPlatformStatReader struct {
	db     DBTX
	tables map[string]string // platform -> table
}

// NewPostgresPlatformStatReader creates a reader over the given
// platform -> table mapping.
func NewPostgresPlatformStatReader(db DBTX, tables map[string]string) *PostgresPlatformStatReader {
	return &PostgresPlatformStatReader{db: db, tables: tables}
}

func (r *PostgresPlatformStatReader) ListPlatformStats(ctx context.Context, campaignID string) ([]models.PlatformStat, error) {
	platforms := make([]string, 0, len(r.tables))
	for p := range r.tables {
		platforms = append(platforms, p)
	}
	sort.Strings(platforms)

	var out []models.PlatformStat
	for _, platform := range platforms {
		stats, err := r.listTable(ctx, campaignID, platform, r.tables[platform])
		if err != nil {
			return nil, err
		}
		out = append(out, stats...)
	}
	return out, nil
}

func (r *PostgresPlatformStatReader) listTable(ctx context.Context, campaignID, platform, table string) ([]models.PlatformStat, error) {
	query := fmt.Sprintf(`
		SELECT post_id, posted_at, views, likes, comments, shares, saves, media_url, video_url
		FROM %s WHERE campaign_id = $1
	`, pgx.Identifier{table}.Sanitize())

	rows, err := r.db.Query(ctx, query, campaignID)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s stats: %w", platform, err)
	}
	defer rows.Close()

	var out []models.PlatformStat
	for rows.Next() {
		st := models.PlatformStat{CampaignID: campaignID, Platform: platform}
		var mediaURL, videoURL *string
		if err := rows.Scan(
			&st.PostID, &st.PostedAt,
			&st.Views, &st.Likes, &st.Comments, &st.Shares, &st.Saves,
			&mediaURL, &videoURL,
		); err != nil {
			return nil, err
		}
		st.MediaURL = deref(mediaURL)
		st.VideoURL = deref(videoURL)
		out = append(out, st)
	}
	return out, rows.Err()
}
