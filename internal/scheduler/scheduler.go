// Package scheduler runs periodic analytics recomputation for every
// campaign.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radiusdt/vidpulse/internal/analytics"
	"github.com/radiusdt/vidpulse/internal/metrics"
)

// Recomputer recomputes one campaign.
type Recomputer interface {
	Recompute(ctx context.Context, campaignID, trigger string) (analytics.RecomputeResult, error)
}

// CampaignLister lists the campaigns to recompute.
type CampaignLister interface {
	ListCampaignIDs(ctx context.Context) ([]string, error)
}

// CycleSummary reports the outcome of one recomputation cycle.
type CycleSummary struct {
	Campaigns int
	Succeeded int
	Failed    int
	Took      time.Duration
}

// Scheduler fans recomputation out over campaigns on a cron schedule.
// A failing campaign is logged and counted; it never stops the others.
type Scheduler struct {
	recomputer  Recomputer
	campaigns   CampaignLister
	concurrency int
	runTimeout  time.Duration
	logger      *zap.Logger
	metrics     *metrics.Metrics

	cron       *cron.Cron
	cronParser cron.Parser

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Scheduler. concurrency bounds parallel recomputations;
// runTimeout bounds a whole cycle (0 disables it).
func New(r Recomputer, campaigns CampaignLister, concurrency int, runTimeout time.Duration, logger *zap.Logger, m *metrics.Metrics) *Scheduler {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cl := cronLogger{logger: logger.Sugar()}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &Scheduler{
		recomputer:  r,
		campaigns:   campaigns,
		concurrency: concurrency,
		runTimeout:  runTimeout,
		logger:      logger,
		metrics:     m,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		cronParser: parser,
	}
}

// Start registers the cycle under spec and starts the cron loop. The
// scheduler stops when ctx is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	if _, err := s.cronParser.Parse(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	if _, err := s.cron.AddFunc(spec, func() {
		if _, err := s.RunOnce(s.ctx); err != nil {
			s.logger.Error("recompute cycle failed", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("schedule recompute cycle: %w", err)
	}

	s.cron.Start()
	s.logger.Info("scheduler started",
		zap.String("schedule", spec),
		zap.Int("concurrency", s.concurrency),
	)
	return nil
}

// Stop cancels any running cycle and waits for it to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// RunOnce recomputes every campaign once. It only returns an error when the
// campaign list cannot be read; per-campaign failures are in the summary.
func (s *Scheduler) RunOnce(ctx context.Context) (CycleSummary, error) {
	start := time.Now()
	if s.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.runTimeout)
		defer cancel()
	}

	ids, err := s.campaigns.ListCampaignIDs(ctx)
	if err != nil {
		return CycleSummary{}, fmt.Errorf("list campaigns: %w", err)
	}
	s.metrics.SetScheduledCampaigns(len(ids))

	var ok, failed atomic.Int64

	// A plain Group: one campaign's error must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			if _, err := s.recomputer.Recompute(ctx, id, analytics.TriggerScheduled); err != nil {
				failed.Add(1)
				return nil
			}
			ok.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	summary := CycleSummary{
		Campaigns: len(ids),
		Succeeded: int(ok.Load()),
		Failed:    int(failed.Load()),
		Took:      time.Since(start),
	}
	s.logger.Info("recompute cycle complete",
		zap.Int("campaigns", summary.Campaigns),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.Duration("took", summary.Took),
	)
	return summary, nil
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
