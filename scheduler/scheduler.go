package scheduler

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"rentease/database"
)

// Analytics is the part of the analytics service the scheduler drives
type Analytics interface {
	Flush(ctx context.Context) (int, error)
	RollupAll(ctx context.Context, period database.AnalyticsPeriod, at time.Time) (int, error)
}

// Scheduler periodically flushes engagement counters and rolls analytics
// buckets up from the operational tables.
type Scheduler struct {
	analytics     Analytics
	logger        *logrus.Logger
	flushInterval time.Duration
	now           func() time.Time
	stopChan      chan struct{}
	wg            sync.WaitGroup
	jobMutex      sync.Mutex // Ensures sequential job execution
	lastRollup    time.Time
}

// NewScheduler creates a new scheduler
func NewScheduler(analytics Analytics, logger *logrus.Logger, flushInterval time.Duration) *Scheduler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
		logger.SetLevel(logrus.InfoLevel)
	}
	if flushInterval <= 0 {
		flushInterval = 5 * time.Minute
	}

	return &Scheduler{
		analytics:     analytics,
		logger:        logger,
		flushInterval: flushInterval,
		now:           func() time.Time { return time.Now().UTC() },
		stopChan:      make(chan struct{}),
	}
}

// Start begins the scheduled tasks
func (s *Scheduler) Start() {
	s.wg.Add(1)
	go s.run()
}

func (s *Scheduler) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			s.Tick(context.Background())
			return
		case <-ticker.C:
			s.Tick(context.Background())
		}
	}
}

// Tick flushes the counters and, once per UTC day, rolls up yesterday's
// daily bucket and the current weekly and monthly buckets.
func (s *Scheduler) Tick(ctx context.Context) {
	s.jobMutex.Lock()
	defer s.jobMutex.Unlock()

	start := time.Now()
	n, err := s.analytics.Flush(ctx)
	if err != nil {
		s.logger.WithError(err).Error("Analytics flush failed")
	}
	if n > 0 {
		s.logger.WithFields(logrus.Fields{
			"buckets":  n,
			"duration": time.Since(start).String(),
		}).Info("Flushed engagement counters")
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if !s.lastRollup.Before(today) {
		return
	}

	yesterday := today.AddDate(0, 0, -1)
	for _, job := range []struct {
		period database.AnalyticsPeriod
		at     time.Time
	}{
		{database.PeriodDaily, yesterday},
		{database.PeriodWeekly, yesterday},
		{database.PeriodMonthly, yesterday},
		{database.PeriodWeekly, today},
		{database.PeriodMonthly, today},
	} {
		done, err := s.analytics.RollupAll(ctx, job.period, job.at)
		fields := logrus.Fields{
			"period":     job.period,
			"date":       job.at.Format("2006-01-02"),
			"properties": done,
		}
		if err != nil {
			s.logger.WithError(err).WithFields(fields).Error("Analytics rollup failed")
			continue
		}
		s.logger.WithFields(fields).Info("Analytics rollup completed")
	}
	s.lastRollup = today
}

// Stop runs a final flush and waits for the worker to exit
func (s *Scheduler) Stop() {
	close(s.stopChan)
	s.wg.Wait()
}
