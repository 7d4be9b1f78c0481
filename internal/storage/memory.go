package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/radiusdt/vidpulse/internal/models"
)

// MemoryStore is an in-memory implementation of every source reader, the
// report repo and the analytics cache. It backs tests and local development
// when PostgreSQL or ClickHouse are not reachable.
type MemoryStore struct {
	mu        sync.RWMutex
	campaigns map[string]*models.Campaign
	postings  map[string][]models.PostSource       // campaign_id -> sources
	stats     map[string][]models.PlatformStat     // campaign_id -> stats
	snapshots map[string][]models.IntervalSnapshot // campaign_id -> snapshots
	reports   map[string]*models.Report
	cache     map[string]*models.CampaignAnalyticsCache

	// Indexes for faster lookups
	reportsByShareID map[string]string // share_id -> report_id

	now func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		campaigns:        make(map[string]*models.Campaign),
		postings:         make(map[string][]models.PostSource),
		stats:            make(map[string][]models.PlatformStat),
		snapshots:        make(map[string][]models.IntervalSnapshot),
		reports:          make(map[string]*models.Report),
		cache:            make(map[string]*models.CampaignAnalyticsCache),
		reportsByShareID: make(map[string]string),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// =============================================
// Seeding
// =============================================

// PutCampaign stores campaign metadata.
func (s *MemoryStore) PutCampaign(c *models.Campaign) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *c
	s.campaigns[c.ID] = &cp
}

// AddPostSources appends ledger records for a campaign.
func (s *MemoryStore) AddPostSources(campaignID string, sources ...models.PostSource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postings[campaignID] = append(s.postings[campaignID], sources...)
}

// AddPlatformStats appends platform stat rows, keyed by their campaign id.
func (s *MemoryStore) AddPlatformStats(stats ...models.PlatformStat) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, st := range stats {
		s.stats[st.CampaignID] = append(s.stats[st.CampaignID], st)
	}
}

// AddIntervalSnapshots appends snapshot rows, keyed by their campaign id.
func (s *MemoryStore) AddIntervalSnapshots(snaps ...models.IntervalSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sn := range snaps {
		if sn.IntervalID == "" {
			sn.IntervalID = models.IntervalID(sn.SubjectID, sn.SnapshotAt)
		}
		s.snapshots[sn.CampaignID] = append(s.snapshots[sn.CampaignID], sn)
	}
}

// =============================================
// Source readers
// =============================================

func (s *MemoryStore) ListPostSources(ctx context.Context, campaignID string) ([]models.PostSource, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PostSource(nil), s.postings[campaignID]...), nil
}

func (s *MemoryStore) ListPlatformStats(ctx context.Context, campaignID string) ([]models.PlatformStat, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.PlatformStat(nil), s.stats[campaignID]...), nil
}

func (s *MemoryStore) ListIntervalSnapshots(ctx context.Context, campaignID string) ([]models.IntervalSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.IntervalSnapshot(nil), s.snapshots[campaignID]...), nil
}

func (s *MemoryStore) GetCampaign(ctx context.Context, id string) (*models.Campaign, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.campaigns[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListCampaignIDs(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.campaigns))
	for id := range s.campaigns {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// =============================================
// Reports
// =============================================

func (s *MemoryStore) GetReport(ctx context.Context, id string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, nil
	}
	return cloneReport(r), nil
}

func (s *MemoryStore) GetReportByShareID(ctx context.Context, shareID string) (*models.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.reportsByShareID[shareID]
	if !ok {
		return nil, nil
	}
	return cloneReport(s.reports[id]), nil
}

func (s *MemoryStore) UpsertReport(ctx context.Context, r *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.reports[r.ID]; ok && old.PublicShareID != r.PublicShareID {
		delete(s.reportsByShareID, old.PublicShareID)
	}
	s.reports[r.ID] = cloneReport(r)
	s.reportsByShareID[r.PublicShareID] = r.ID
	return nil
}

func cloneReport(r *models.Report) *models.Report {
	cp := *r
	cp.CampaignIDs = append([]string(nil), r.CampaignIDs...)
	cp.HiddenVideoIDs = append([]string(nil), r.HiddenVideoIDs...)
	return &cp
}

// =============================================
// Analytics cache
// =============================================

func (s *MemoryStore) UpsertCampaignAnalytics(ctx context.Context, c *models.CampaignAnalyticsCache) (UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.cache[c.CampaignID]
	if ok && existing.Fingerprint == c.Fingerprint {
		return UpsertUnchanged, nil
	}

	cp := *c
	cp.UpdatedAt = s.now()
	s.cache[c.CampaignID] = &cp
	if ok {
		return UpsertReplaced, nil
	}
	return UpsertInserted, nil
}

func (s *MemoryStore) GetCampaignAnalytics(ctx context.Context, campaignID string) (*models.CampaignAnalyticsCache, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cache[campaignID]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

// SetClock overrides the clock used for UpdatedAt stamps.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}
