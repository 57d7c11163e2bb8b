// Package jobs contains implementations of scheduled jobs for the results core.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/fastresult/results-core/internal/application/command"
	"github.com/fastresult/results-core/internal/domain/approval"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AGGREGATES JOB
// ══════════════════════════════════════════════════════════════════════════════

// Recomputer rebuilds one student's aggregates in its own transaction.
type Recomputer interface {
	RecomputeAggregates(ctx context.Context, cmd command.RecomputeAggregatesCommand) (*command.RecomputeResult, error)
}

// ReconcileAggregatesJob rebuilds stored GPA and CGPA for every student with
// counted grades. Transitions already keep aggregates current; the job repairs
// drift left by manual data fixes or a changed grade scale.
type ReconcileAggregatesJob struct {
	tx         approval.Transactor
	recomputer Recomputer
	logger     *slog.Logger
	config     ReconcileAggregatesConfig

	lastStats atomic.Value // *ReconcileStats
}

// ReconcileAggregatesConfig contains configuration for the job.
type ReconcileAggregatesConfig struct {
	// Concurrency is how many students are recomputed in parallel.
	Concurrency int

	// Timeout is the maximum duration for one run.
	Timeout time.Duration
}

// DefaultReconcileAggregatesConfig returns sensible defaults.
func DefaultReconcileAggregatesConfig() ReconcileAggregatesConfig {
	return ReconcileAggregatesConfig{
		Concurrency: 4,
		Timeout:     30 * time.Minute,
	}
}

// ReconcileStats contains statistics from one run.
type ReconcileStats struct {
	RunID       string
	StartedAt   time.Time
	CompletedAt time.Time
	Students    int
	Repaired    int
	Failed      int
}

// NewReconcileAggregatesJob creates the job.
func NewReconcileAggregatesJob(
	tx approval.Transactor,
	recomputer Recomputer,
	logger *slog.Logger,
	config ReconcileAggregatesConfig,
) *ReconcileAggregatesJob {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &ReconcileAggregatesJob{
		tx:         tx,
		recomputer: recomputer,
		logger:     logger.With("job", "reconcile_aggregates"),
		config:     config,
	}
}

// Name returns the job name.
func (j *ReconcileAggregatesJob) Name() string {
	return "reconcile_aggregates"
}

// Description returns a human-readable description.
func (j *ReconcileAggregatesJob) Description() string {
	return "Rebuilds stored GPA/CGPA aggregates from counted grades and repairs drift"
}

// Run executes the job. One student's failure does not stop the others;
// the run fails if any student failed.
func (j *ReconcileAggregatesJob) Run(ctx context.Context) error {
	if j.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.config.Timeout)
		defer cancel()
	}

	stats := &ReconcileStats{RunID: uuid.NewString(), StartedAt: time.Now()}
	defer func() {
		stats.CompletedAt = time.Now()
		j.lastStats.Store(stats)
	}()

	var students []string
	err := j.tx.InReadTx(ctx, func(ctx context.Context, uow approval.UnitOfWork) error {
		var err error
		students, err = uow.Results().ListStudentsWithCounted(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("list students: %w", err)
	}
	stats.Students = len(students)

	var repaired, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(j.config.Concurrency)

	for _, studentID := range students {
		g.Go(func() error {
			res, err := j.recomputer.RecomputeAggregates(gctx, command.RecomputeAggregatesCommand{
				StudentID:     studentID,
				CorrelationID: stats.RunID,
			})
			if err != nil {
				// Cancellation stops the run; anything else is per-student.
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
				failed.Add(1)
				j.logger.Error("recompute failed", "student_id", studentID, "error", err)
				return nil
			}
			if res.Changed {
				repaired.Add(1)
				j.logger.Info("aggregates repaired",
					"student_id", studentID,
					"cgpa", res.Cumulative.Display(),
				)
			}
			return nil
		})
	}

	err = g.Wait()
	stats.Repaired = int(repaired.Load())
	stats.Failed = int(failed.Load())

	j.logger.Info("reconcile finished",
		"run_id", stats.RunID,
		"students", stats.Students,
		"repaired", stats.Repaired,
		"failed", stats.Failed,
		"duration", time.Since(stats.StartedAt).String(),
	)

	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		return fmt.Errorf("reconcile: %d of %d students failed", stats.Failed, stats.Students)
	}
	return nil
}

// LastStats returns statistics of the last run, or nil before the first run.
func (j *ReconcileAggregatesJob) LastStats() *ReconcileStats {
	v, _ := j.lastStats.Load().(*ReconcileStats)
	return v
}
