// Package jobs runs the periodic background work of the service.
package jobs

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// DueScanner is the notification core's due-soon scan.
type DueScanner interface {
	CheckDueTodos(ctx context.Context) ([]uint, error)
}

// Scheduler owns the cron runner.
type Scheduler struct {
	cron    *cron.Cron
	scanner DueScanner
	logger  *zap.Logger
	runs    atomic.Int64
}

func NewScheduler(scanner DueScanner, logger *zap.Logger) *Scheduler {
	cronLog := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLog),
			cron.SkipIfStillRunning(cronLog),
		)),
		scanner: scanner,
		logger:  logger,
	}
}

// RegisterDueScan schedules the due-soon scan. An empty spec leaves the scan
// to manual triggers only.
func (s *Scheduler) RegisterDueScan(spec string) error {
	if spec == "" {
		s.logger.Info("due-soon scan schedule empty, periodic scan disabled")
		return nil
	}
	if _, err := s.cron.AddFunc(spec, func() { s.RunDueScan(context.Background()) }); err != nil {
		return fmt.Errorf("schedule due-soon scan %q: %w", spec, err)
	}
	s.logger.Info("due-soon scan scheduled", zap.String("schedule", spec))
	return nil
}

// RunDueScan performs one scan and logs its outcome.
func (s *Scheduler) RunDueScan(ctx context.Context) {
	s.runs.Add(1)
	ids, err := s.scanner.CheckDueTodos(ctx)
	if err != nil {
		s.logger.Error("scheduled due-soon scan failed", zap.Int("notified", len(ids)), zap.Error(err))
		return
	}
	s.logger.Info("scheduled due-soon scan", zap.Int("notified", len(ids)))
}

// Runs reports how many scans have been started.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Entries reports the number of registered jobs.
func (s *Scheduler) Entries() int { return len(s.cron.Entries()) }

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("cron jobs started", zap.Int("jobs", s.Entries()))
}

// Stop stops scheduling and waits for a running job until ctx expires.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for cron jobs: %w", ctx.Err())
	}
}
