package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/radiusdt/vidpulse/internal/models"
)

// PostgresReportRepo implements ReportRepo using PostgreSQL.
type PostgresReportRepo struct {
	db DBTX
}

func NewPostgresReportRepo(db DBTX) *PostgresReportRepo {
	return &PostgresReportRepo{db: db}
}

const reportColumns = `id, public_share_id, name, campaign_ids, hidden_video_ids, created_at, updated_at`

func (r *PostgresReportRepo) GetReport(ctx context.Context, id string) (*models.Report, error) {
	return r.getOne(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
}

func (r *PostgresReportRepo) GetReportByShareID(ctx context.Context, shareID string) (*models.Report, error) {
	return r.getOne(ctx, `SELECT `+reportColumns+` FROM reports WHERE public_share_id = $1`, shareID)
}

func (r *PostgresReportRepo) getOne(ctx context.Context, query, arg string) (*models.Report, error) {
	var rep models.Report
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&rep.ID, &rep.PublicShareID, &rep.Name,
		&rep.CampaignIDs, &rep.HiddenVideoIDs,
		&rep.CreatedAt, &rep.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return &rep, nil
}

func (r *PostgresReportRepo) UpsertReport(ctx context.Context, rep *models.Report) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO reports (id, public_share_id, name, campaign_ids, hidden_video_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			public_share_id = EXCLUDED.public_share_id,
			name = EXCLUDED.name,
			campaign_ids = EXCLUDED.campaign_ids,
			hidden_video_ids = EXCLUDED.hidden_video_ids,
			updated_at = EXCLUDED.updated_at
	`, rep.ID, rep.PublicShareID, rep.Name, rep.CampaignIDs, rep.HiddenVideoIDs, rep.CreatedAt, rep.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert report: %w", err)
	}
	return nil
}
