package worker

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"linkreach/pipeline"
)

// PipelineWorker runs the orchestrator on a fixed interval when the
// server is deployed without an external cron.
type PipelineWorker struct {
	orch     *pipeline.Orchestrator
	log      *logrus.Logger
	interval time.Duration
}

func NewPipelineWorker(orch *pipeline.Orchestrator, log *logrus.Logger, interval time.Duration) *PipelineWorker {
	return &PipelineWorker{orch: orch, log: log, interval: interval}
}

func (pw *PipelineWorker) Start(ctx context.Context) {
	// let the server finish starting before the first cycle
	select {
	case <-ctx.Done():
		return
	case <-time.After(10 * time.Second):
	}

	pw.log.WithField("interval", pw.interval).Info("pipeline worker started")

	ticker := time.NewTicker(pw.interval)
	defer ticker.Stop()

	pw.runOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			pw.log.Info("pipeline worker shutting down")
			return
		case <-ticker.C:
			pw.runOnce(ctx)
		}
	}
}

func (pw *PipelineWorker) runOnce(ctx context.Context) {
	err := pw.orch.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, pipeline.ErrLocked):
		// an external cron or api trigger holds the lock
		pw.log.Info("pipeline cycle skipped, another run in progress")
	default:
		pw.log.WithError(err).Error("pipeline cycle failed")
	}
}
