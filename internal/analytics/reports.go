package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/models"
	"github.com/radiusdt/vidpulse/internal/storage"
)

// ReportInput is the user-supplied part of a report.
type ReportInput struct {
	Name           string   `json:"name"`
	CampaignIDs    []string `json:"campaignIds"`
	HiddenVideoIDs []string `json:"hiddenVideoIds"`
}

// ReportService maintains shareable reports and keeps the public response
// cache consistent with their hidden video lists.
type ReportService struct {
	repo      storage.ReportRepo
	campaigns storage.CampaignRepo
	responses storage.ResponseCache
	logger    *zap.Logger
	now       func() time.Time
}

// NewReportService constructs a ReportService.
func NewReportService(repo storage.ReportRepo, campaigns storage.CampaignRepo, responses storage.ResponseCache, logger *zap.Logger) *ReportService {
	if responses == nil {
		responses = storage.NoopResponseCache{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:      repo,
		campaigns: campaigns,
		responses: responses,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// CreateReport validates the input, checks every campaign exists and stores
// a new report with a fresh public share id.
func (s *ReportService) CreateReport(ctx context.Context, in ReportInput) (*models.Report, error) {
	now := s.now()
	r := &models.Report{
		ID:             uuid.NewString(),
		PublicShareID:  uuid.NewString(),
		Name:           in.Name,
		CampaignIDs:    in.CampaignIDs,
		HiddenVideoIDs: in.HiddenVideoIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if r.HiddenVideoIDs == nil {
		r.HiddenVideoIDs = []string{}
	}
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidArgument, err)
	}
	r.CampaignIDs = uniqueIDs(r.CampaignIDs)

	for _, id := range r.CampaignIDs {
		c, err := s.campaigns.GetCampaign(ctx, id)
		if err != nil {
			return nil, sourceErr(SourceCampaigns, err)
		}
		if c == nil {
			return nil, fmt.Errorf("campaign %s: %w", id, ErrNotFound)
		}
	}

	if err := s.repo.UpsertReport(ctx, r); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}
	s.logger.Info("report created",
		zap.String("report_id", r.ID),
		zap.String("share_id", r.PublicShareID),
		zap.Int("campaigns", len(r.CampaignIDs)),
	)
	return r, nil
}

// UpdateHiddenVideos replaces a report's hidden video list and drops the
// cached public responses built from earlier lists.
func (s *ReportService) UpdateHiddenVideos(ctx context.Context, reportID string, hidden []string) (*models.Report, error) {
	r, err := s.repo.GetReport(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("get report: %w", err)
	}
	if r == nil {
		return nil, fmt.Errorf("report %s: %w", reportID, ErrNotFound)
	}

	if hidden == nil {
		hidden = []string{}
	}
	r.HiddenVideoIDs = hidden
	r.UpdatedAt = s.now()
	if err := s.repo.UpsertReport(ctx, r); err != nil {
		return nil, fmt.Errorf("save report: %w", err)
	}

	// Cached keys hash the hidden list, so old entries are already
	// unreachable; a failed delete only leaves them to expire.
	if err := s.responses.DeletePrefix(ctx, publicReportPrefix(r.PublicShareID)); err != nil {
		s.logger.Warn("invalidate public report cache",
			zap.String("share_id", r.PublicShareID),
			zap.Error(err),
		)
	}
	s.logger.Info("report hidden videos updated",
		zap.String("report_id", r.ID),
		zap.Int("hidden", len(hidden)),
	)
	return r, nil
}
