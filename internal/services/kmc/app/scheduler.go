package app

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

const tracerName = "github.com/louisbranch/morphkmc/internal/services/kmc/app"

// SchedulerConfig configures a Scheduler.
type SchedulerConfig struct {
	Engine *domain.Engine
	Params domain.Params
	Store  storage.CheckpointStore
	Logs   LogFactory
	// RunID defaults to a random UUID.
	RunID              string
	CheckpointInterval time.Duration
	Resume             bool
	Clock              func() time.Time
	NewBackOff         func() backoff.BackOff
	SaveAttempts       uint
}

// Scheduler fans a job plan out to workers and gathers their results.
type Scheduler struct {
	cfg SchedulerConfig
}

// RunReport is the coordinator's view of a finished run. Outcomes holds the
// workers that returned a result, in worker order.
type RunReport struct {
	RunID    string
	Outcomes []WorkerOutcome
	Failures []error
}

// Results returns the per-worker simulation results in worker order.
func (r RunReport) Results() []domain.SimulationResult {
	results := make([]domain.SimulationResult, len(r.Outcomes))
	for i, outcome := range r.Outcomes {
		results[i] = outcome.Result
	}
	return results
}

// Interrupted reports whether any worker stopped on an external signal.
func (r RunReport) Interrupted() bool {
	for _, outcome := range r.Outcomes {
		if outcome.Interrupted {
			return true
		}
	}
	return false
}

// NewScheduler validates cfg.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Logs == nil {
		return nil, fmt.Errorf("log factory is required")
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.NewString()
	}
	return &Scheduler{cfg: cfg}, nil
}

// Run executes every assignment of plan on its own goroutine. Each worker
// hands its outcome back on a one-shot channel; a channel closed without a
// value marks an aborted worker, which is reported in Failures while its
// siblings carry on.
func (s *Scheduler) Run(ctx context.Context, plan domain.JobPlan) (RunReport, error) {
	if len(plan.Assignments) == 0 {
		return RunReport{RunID: s.cfg.RunID}, fmt.Errorf("job plan has no assignments")
	}
	tracer := otel.Tracer(tracerName)
	ctx, span := tracer.Start(ctx, "kmc.run", trace.WithAttributes(
		attribute.String("kmc.run_id", s.cfg.RunID),
		attribute.Int("kmc.jobs", plan.Total),
		attribute.Int("kmc.workers", len(plan.Assignments)),
	))
	defer span.End()

	report := RunReport{RunID: s.cfg.RunID}
	results := make([]chan WorkerOutcome, len(plan.Assignments))
	failures := make([]error, len(plan.Assignments))

	var group errgroup.Group
	for i, assignment := range plan.Assignments {
		done := make(chan WorkerOutcome, 1)
		results[i] = done
		group.Go(func() error {
			defer close(done)
			defer func() {
				if recovered := recover(); recovered != nil {
					failures[i] = panicError{value: recovered}
				}
			}()
			outcome, err := s.runWorker(ctx, tracer, assignment)
			if err != nil {
				failures[i] = err
				return err
			}
			done <- outcome
			return nil
		})
	}

	for _, done := range results {
		if outcome, ok := <-done; ok {
			report.Outcomes = append(report.Outcomes, outcome)
		}
	}
	// An aborted worker never cancels its siblings; Wait only surfaces the
	// first abort for the run span.
	if err := group.Wait(); err != nil {
		span.RecordError(err)
	}
	for i, err := range failures {
		if err == nil {
			continue
		}
		log.Printf("worker %d exited without a result: %v", plan.Assignments[i].Worker, err)
		report.Failures = append(report.Failures, apperrors.Wrap(
			apperrors.CodeWorkerAborted,
			fmt.Sprintf("worker %d aborted", plan.Assignments[i].Worker),
			err,
		))
	}
	if len(report.Failures) > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d workers aborted", len(report.Failures)))
	}
	return report, nil
}

func (s *Scheduler) runWorker(ctx context.Context, tracer trace.Tracer, assignment domain.Assignment) (outcome WorkerOutcome, err error) {
	ctx, span := tracer.Start(ctx, "kmc.worker", trace.WithAttributes(
		attribute.Int("kmc.worker", assignment.Worker),
		attribute.Int("kmc.jobs", len(assignment.Jobs)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "worker aborted")
		}
		span.End()
	}()

	logger, closeLog, err := s.cfg.Logs(assignment.Worker)
	if err != nil {
		return WorkerOutcome{}, err
	}
	defer func() {
		if closeErr := closeLog(); closeErr != nil {
			log.Printf("close worker %d log: %v", assignment.Worker, closeErr)
		}
	}()

	worker, err := NewWorker(WorkerConfig{
		RunID:              s.cfg.RunID,
		Assignment:         assignment,
		Engine:             s.cfg.Engine,
		RecordHistory:      s.cfg.Params.RecordCarrierHistory,
		ExcludeLastStart:   s.cfg.Params.ExcludeLastStartChromophore,
		Store:              s.cfg.Store,
		Logger:             logger,
		CheckpointInterval: s.cfg.CheckpointInterval,
		Resume:             s.cfg.Resume,
		Clock:              s.cfg.Clock,
		NewBackOff:         s.cfg.NewBackOff,
		SaveAttempts:       s.cfg.SaveAttempts,
	})
	if err != nil {
		return WorkerOutcome{}, err
	}
	return worker.Run(ctx)
}
