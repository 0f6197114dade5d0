// Package schedule drives recurring pipeline runs from a cron expression.
// Each tick runs every configured disease in sequence; a tick that fires
// while the previous one is still running is skipped, not queued.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/epiwatch/outbreak-engine/internal/pipeline"
)

// Runner executes one pipeline invocation. Implemented by pipeline.Orchestrator.
type Runner interface {
	Run(ctx context.Context, req pipeline.Request) (pipeline.Report, error)
}

// Scheduler runs the pipeline for a fixed set of diseases, either once or on
// a cron schedule. It retains the most recent report per disease.
type Scheduler struct {
	runner   Runner
	diseases []string
	base     pipeline.Request // template; Disease is filled per run
	cron     *cron.Cron
	running  atomic.Bool
	logger   *slog.Logger

	mu     sync.Mutex
	latest map[string]pipeline.Report
}

// New creates a scheduler. base carries the per-run settings (horizon,
// granularity, model, reset, seasonal); its Disease field is ignored.
func New(runner Runner, diseases []string, base pipeline.Request, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		runner:   runner,
		diseases: diseases,
		base:     base,
		logger:   logger,
		latest:   make(map[string]pipeline.Report),
	}
}

// RunAll runs the pipeline once for every configured disease. A failure for
// one disease is logged and does not stop the others; the first error is
// returned after all diseases have been attempted.
func (s *Scheduler) RunAll(ctx context.Context) error {
	var firstErr error
	for _, disease := range s.diseases {
		req := s.base
		req.Disease = disease
		report, err := s.runner.Run(ctx, req)
		if err != nil {
			s.logger.Error("pipeline run failed", "disease", disease, "error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("run %s: %w", disease, err)
			}
			continue
		}
		s.mu.Lock()
		s.latest[report.Disease] = report
		s.mu.Unlock()
	}
	return firstErr
}

// Start schedules RunAll at the cron spec and begins ticking. Ticks that
// arrive while a previous RunAll is in flight are skipped.
func (s *Scheduler) Start(ctx context.Context, spec string) error {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		if !s.running.CompareAndSwap(false, true) {
			s.logger.Warn("skipping scheduled run, previous run still in flight")
			return
		}
		defer s.running.Store(false)

		start := time.Now()
		if err := s.RunAll(ctx); err != nil {
			s.logger.Error("scheduled run finished with errors", "error", err, "elapsed", time.Since(start))
			return
		}
		s.logger.Info("scheduled run complete", "elapsed", time.Since(start))
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", spec, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("scheduler started", "spec", spec, "diseases", s.diseases)
	return nil
}

// Stop halts the cron loop and waits for an in-flight run to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// LatestReports returns the most recent report per disease, for the status
// endpoint.
func (s *Scheduler) LatestReports() []pipeline.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]pipeline.Report, 0, len(s.latest))
	for _, disease := range s.diseases {
		if r, ok := s.latest[disease]; ok {
			out = append(out, r)
		}
	}
	return out
}
