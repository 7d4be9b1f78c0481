package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/radiusdt/vidpulse/internal/models"
)

// DBTX is the subset of *pgxpool.Pool the repositories need.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresCampaignRepo implements CampaignRepo using PostgreSQL.
type PostgresCampaignRepo struct {
	db DBTX
}

func NewPostgresCampaignRepo(db DBTX) *PostgresCampaignRepo {
	return &PostgresCampaignRepo{db: db}
}

func (r *PostgresCampaignRepo) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	var c models.Campaign
	var artist, song *string

	err := r.db.QueryRow(ctx, `
		SELECT id, name, artist, song, min_views, created_at
		FROM campaigns WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &artist, &song, &c.MinViews, &c.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get campaign: %w", err)
	}

	c.Artist = deref(artist)
	c.Song = deref(song)
	return &c, nil
}

func (r *PostgresCampaignRepo) ListCampaignIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM campaigns ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list campaigns: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
