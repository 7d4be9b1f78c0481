package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radiusdt/vidpulse/internal/models"
)

func TestMemoryStore_AnalyticsCache(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	s.SetClock(func() time.Time { return t0 })

	got, err := s.GetCampaignAnalytics(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got)

	res, err := s.UpsertCampaignAnalytics(ctx, &models.CampaignAnalyticsCache{CampaignID: "c1", Fingerprint: 1})
	require.NoError(t, err)
	assert.Equal(t, UpsertInserted, res)

	s.SetClock(func() time.Time { return t0.Add(time.Hour) })
	res, err = s.UpsertCampaignAnalytics(ctx, &models.CampaignAnalyticsCache{CampaignID: "c1", Fingerprint: 1})
	require.NoError(t, err)
	assert.Equal(t, UpsertUnchanged, res)

	got, err = s.GetCampaignAnalytics(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, t0, got.UpdatedAt)

	res, err = s.UpsertCampaignAnalytics(ctx, &models.CampaignAnalyticsCache{CampaignID: "c1", Fingerprint: 2})
	require.NoError(t, err)
	assert.Equal(t, UpsertReplaced, res)

	got, err = s.GetCampaignAnalytics(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, t0.Add(time.Hour), got.UpdatedAt)
}

func TestMemoryStore_Reports(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	r := &models.Report{ID: "r1", PublicShareID: "s1", CampaignIDs: []string{"c1"}}
	require.NoError(t, s.UpsertReport(ctx, r))

	// Stored copies are isolated from the caller.
	r.CampaignIDs[0] = "mutated"
	got, err := s.GetReportByShareID(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, got.CampaignIDs)

	r2 := &models.Report{ID: "r1", PublicShareID: "s2", CampaignIDs: []string{"c1"}}
	require.NoError(t, s.UpsertReport(ctx, r2))
	got, err = s.GetReportByShareID(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, got)

	got, err = s.GetReport(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "s2", got.PublicShareID)
}

func TestMemoryStore_Sources(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	s.PutCampaign(&models.Campaign{ID: "b"})
	s.PutCampaign(&models.Campaign{ID: "a"})
	s.AddIntervalSnapshots(models.IntervalSnapshot{SubjectID: "v1", CampaignID: "a", SnapshotAt: 2025010110})

	ids, err := s.ListCampaignIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, ids)

	snaps, err := s.ListIntervalSnapshots(ctx, "a")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "v1_2025010110", snaps[0].IntervalID)

	c, err := s.GetCampaign(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, c)
}
