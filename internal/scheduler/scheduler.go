package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/ubuygold/keygate/internal/metrics"
)

// statsTimeout bounds a single statistics run.
const statsTimeout = 30 * time.Second

// StatsSource reports how many keys are stored and how many are active.
type StatsSource interface {
	Stats(ctx context.Context) (total, active int, err error)
}

type Scheduler struct {
	source  StatsSource
	metrics *metrics.Metrics
	logger  *slog.Logger
	c       *cron.Cron
}

func NewScheduler(source StatsSource, m *metrics.Metrics, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		source:  source,
		metrics: m,
		logger:  logger.With("component", "scheduler"),
		c:       cron.New(),
	}
}

// Start runs the statistics job once and then on every tick of schedule.
func (s *Scheduler) Start(schedule string) error {
	if _, err := s.c.AddFunc(schedule, s.ReportStats); err != nil {
		return fmt.Errorf("error scheduling stats job %q: %w", schedule, err)
	}
	s.ReportStats()
	s.c.Start()
	return nil
}

// Stop halts the scheduler and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.c.Stop().Done()
}

// ReportStats logs the key counts and publishes them as gauges.
func (s *Scheduler) ReportStats() {
	ctx, cancel := context.WithTimeout(context.Background(), statsTimeout)
	defer cancel()

	total, active, err := s.source.Stats(ctx)
	if err != nil {
		s.logger.Error("Error collecting key statistics", "error", err)
		return
	}
	s.metrics.SetKeyCounts(total, active)
	s.logger.Info("Key statistics", "total", total, "active", active)
}
