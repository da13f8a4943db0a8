// Package scheduler triggers ingestion runs on a cron expression.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Scheduler owns the cron loop. The job runs in cron's own goroutine;
// overlapping triggers are the orchestrator's problem to refuse.
type Scheduler struct {
	cron   *cron.Cron
	spec   string
	logger *zap.Logger
}

// New builds a Scheduler that invokes job on the given cron spec.
func New(spec string, job func(), logger *zap.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	return &Scheduler{cron: c, spec: spec, logger: logger}, nil
}

// Start begins firing the schedule.
func (s *Scheduler) Start() {
	s.logger.Info("scheduler started", zap.String("spec", s.spec))
	s.cron.Start()
}

// Stop halts the schedule and waits for a running job to return.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("scheduler stopped")
}
