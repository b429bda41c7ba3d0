// Package sweep runs the background funding sweep: a periodic job that
// checks every escrow still awaiting payment, so deposits are detected even
// when no client is polling.
package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/riverqueue/river"
)

// FundingSweepArgs is the periodic job payload. It carries no data; the
// sweep always scans the full pending set.
type FundingSweepArgs struct{}

func (FundingSweepArgs) Kind() string { return "funding_sweep" }

// EscrowService is the escrow surface the sweep needs.
type EscrowService interface {
	PendingTaskIDs(ctx context.Context) ([]string, error)
	CheckFunding(ctx context.Context, taskID string) (bool, error)
}

type FundingSweepWorker struct {
	river.WorkerDefaults[FundingSweepArgs]
	escrows EscrowService
	log     *slog.Logger
}

func NewFundingSweepWorker(escrows EscrowService, log *slog.Logger) *FundingSweepWorker {
	return &FundingSweepWorker{escrows: escrows, log: log}
}

func (w *FundingSweepWorker) Work(ctx context.Context, job *river.Job[FundingSweepArgs]) error {
	taskIDs, err := w.escrows.PendingTaskIDs(ctx)
	if err != nil {
		return err
	}
	funded := 0
	for _, taskID := range taskIDs {
		ok, err := w.escrows.CheckFunding(ctx, taskID)
		if err != nil {
			// One unreachable escrow must not stall the rest of the sweep.
			w.log.Warn("funding check failed", "task_id", taskID, "error", err)
			continue
		}
		if ok {
			funded++
		}
	}
	if len(taskIDs) > 0 {
		w.log.Info("funding sweep done", "checked", len(taskIDs), "funded", funded)
	}
	return nil
}

// PeriodicJob returns the river periodic job definition for the sweep.
func PeriodicJob(interval time.Duration) *river.PeriodicJob {
	return river.NewPeriodicJob(
		river.PeriodicInterval(interval),
		func() (river.JobArgs, *river.InsertOpts) {
			return FundingSweepArgs{}, nil
		},
		&river.PeriodicJobOpts{RunOnStart: true},
	)
}
