package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/analytics"
	"github.com/radiusdt/vidpulse/internal/models"
	"github.com/radiusdt/vidpulse/internal/storage"
)

type fakeRecomputer struct {
	mu      sync.Mutex
	calls   []string
	failFor map[string]bool
}

func (f *fakeRecomputer) Recompute(ctx context.Context, campaignID, trigger string) (analytics.RecomputeResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, campaignID+"/"+trigger)
	f.mu.Unlock()
	if f.failFor[campaignID] {
		return analytics.RecomputeResult{}, errors.New("source unavailable")
	}
	return analytics.RecomputeResult{CampaignID: campaignID}, nil
}

type staticLister struct {
	ids []string
	err error
}

func (l staticLister) ListCampaignIDs(ctx context.Context) ([]string, error) {
	return l.ids, l.err
}

func TestRunOnce_FailureDoesNotStopOthers(t *testing.T) {
	r := &fakeRecomputer{failFor: map[string]bool{"c2": true}}
	s := New(r, staticLister{ids: []string{"c1", "c2", "c3"}}, 2, time.Minute, zap.NewNop(), nil)

	summary, err := s.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Campaigns)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Failed)

	sort.Strings(r.calls)
	assert.Equal(t, []string{"c1/scheduled", "c2/scheduled", "c3/scheduled"}, r.calls)
}

func TestRunOnce_ListError(t *testing.T) {
	s := New(&fakeRecomputer{}, staticLister{err: errors.New("connection refused")}, 1, 0, nil, nil)

	_, err := s.RunOnce(context.Background())

	assert.ErrorContains(t, err, "list campaigns")
}

func TestRunOnce_WithPipeline(t *testing.T) {
	store := storage.NewMemoryStore()
	store.PutCampaign(&models.Campaign{ID: "c1", Name: "One"})
	store.AddPostSources("c1", models.BundlePost{CampaignID: "c1", PostID: "p1"})
	store.AddPlatformStats(models.PlatformStat{
		CampaignID: "c1", PostID: "p1", Platform: models.PlatformTikTok, PostedAt: 1735689600,
		Metrics: models.Metrics{Views: 42},
	})
	p := analytics.NewPipeline(analytics.Sources{
		Campaigns: store, Ledger: store, Stats: store, Snapshots: store,
	}, store, 10, zap.NewNop(), nil)

	summary, err := New(p, store, 4, 0, zap.NewNop(), nil).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)

	c, err := store.GetCampaignAnalytics(context.Background(), "c1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, int64(42), c.Totals.Views)
}

func TestStart_InvalidSchedule(t *testing.T) {
	s := New(&fakeRecomputer{}, staticLister{}, 1, 0, zap.NewNop(), nil)

	err := s.Start(context.Background(), "every hour")

	assert.Error(t, err)
}

func TestStartStop(t *testing.T) {
	s := New(&fakeRecomputer{}, staticLister{}, 1, 0, zap.NewNop(), nil)

	require.NoError(t, s.Start(context.Background(), "5 * * * *"))
	s.Stop()
}
