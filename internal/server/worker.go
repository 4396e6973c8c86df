package server

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cwbudde/blendopt/internal/config"
	"github.com/cwbudde/blendopt/internal/plan"
	"github.com/cwbudde/blendopt/internal/store"
)

// worker runs jobs in the background. A nil store disables persistence.
type worker struct {
	jm     *JobManager
	orch   *plan.Orchestrator
	optCfg config.OptimizerConfig
	store  *store.FSStore
	logger *zap.Logger
}

// runJob executes an optimization job and records its outcome.
func (wk *worker) runJob(ctx context.Context, jobID string) error {
	job, exists := wk.jm.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	select {
	case <-ctx.Done():
		wk.markJobCancelled(jobID)
		return ctx.Err()
	default:
	}

	if err := wk.jm.UpdateJob(jobID, func(j *Job) { j.State = StateRunning }); err != nil {
		return err
	}
	wk.logger.Info("starting job", zap.String("jobID", jobID), zap.String("mode", string(job.Mode)), zap.Int("tanks", job.Tanks))

	start := time.Now()
	res, err := wk.orch.Optimize(ctx, job.input, job.Mode)
	if err != nil {
		if ctx.Err() != nil {
			wk.markJobCancelled(jobID)
			return ctx.Err()
		}
		wk.markJobFailed(jobID, err)
		return err
	}

	report := plan.NewReport(job.input, res)
	persisted := false
	if wk.store != nil {
		if err := wk.persist(jobID, job.Mode, report, res.Outcomes); err != nil {
			wk.logger.Error("failed to persist run", zap.String("jobID", jobID), zap.Error(err))
		} else {
			persisted = true
		}
	}

	endTime := time.Now()
	err = wk.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.Cost = res.MinCost
		j.Feasible = res.Feasible
		j.Optimizer = res.Winner
		j.Report = report
		j.Persisted = persisted
		j.EndTime = &endTime
	})
	if err != nil {
		return err
	}

	wk.logger.Info("job completed",
		zap.String("jobID", jobID),
		zap.Duration("elapsed", time.Since(start)),
		zap.Float64("cost", res.MinCost),
		zap.Bool("feasible", res.Feasible),
		zap.String("optimizer", res.Winner),
	)
	return nil
}

func (wk *worker) persist(jobID string, mode plan.Mode, report *plan.Report, outcomes []plan.Outcome) error {
	rec := store.NewRunRecord(jobID, store.RunConfig{Mode: string(mode), Optimizer: wk.optCfg}, report)
	if err := wk.store.SaveRun(rec); err != nil {
		return err
	}
	return wk.store.SaveTrace(jobID, outcomes)
}

// markJobFailed marks a job as failed with an error message
func (wk *worker) markJobFailed(jobID string, err error) {
	endTime := time.Now()
	wk.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	wk.logger.Error("job failed", zap.String("jobID", jobID), zap.Error(err))
}

// markJobCancelled marks a job as cancelled
func (wk *worker) markJobCancelled(jobID string) {
	endTime := time.Now()
	wk.jm.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.EndTime = &endTime
	})
	wk.logger.Info("job cancelled", zap.String("jobID", jobID))
}
