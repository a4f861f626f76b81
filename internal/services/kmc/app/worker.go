package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"
	apperrors "github.com/louisbranch/morphkmc/internal/platform/errors"
	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultCheckpointInterval = time.Hour
	defaultSaveAttempts       = 5
)

// WorkerConfig configures one worker.
type WorkerConfig struct {
	RunID      string
	Assignment domain.Assignment
	Engine     *domain.Engine
	// RecordHistory and ExcludeLastStart mirror the run parameters.
	RecordHistory      bool
	ExcludeLastStart   bool
	Store              storage.CheckpointStore
	Logger             *log.Logger
	CheckpointInterval time.Duration
	Resume             bool
	// Clock defaults to time.Now.
	Clock func() time.Time
	// NewBackOff builds the retry policy for checkpoint writes.
	NewBackOff   func() backoff.BackOff
	SaveAttempts uint
}

// WorkerOutcome is what a worker hands back to the coordinator.
type WorkerOutcome struct {
	Worker      int
	Result      domain.SimulationResult
	Completed   int
	Total       int
	Interrupted bool
}

// Worker runs its assignment sequentially, one carrier at a time.
type Worker struct {
	cfg WorkerConfig
}

// NewWorker validates cfg and applies defaults.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}
	if cfg.Store == nil {
		return nil, fmt.Errorf("checkpoint store is required")
	}
	if cfg.Logger == nil {
		return nil, fmt.Errorf("worker logger is required")
	}
	if cfg.CheckpointInterval <= 0 {
		cfg.CheckpointInterval = defaultCheckpointInterval
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NewBackOff == nil {
		cfg.NewBackOff = func() backoff.BackOff {
			return backoff.NewExponentialBackOff()
		}
	}
	if cfg.SaveAttempts == 0 {
		cfg.SaveAttempts = defaultSaveAttempts
	}
	return &Worker{cfg: cfg}, nil
}

// Run simulates every job of the assignment. Cancelling ctx interrupts the
// carrier in flight; the worker then persists and returns normally with
// Interrupted set. Any other failure persists what has accumulated and
// returns a *WorkerAbortError.
func (w *Worker) Run(ctx context.Context) (WorkerOutcome, error) {
	assignment := w.cfg.Assignment
	logger := w.cfg.Logger
	span := trace.SpanFromContext(ctx)

	outcome := WorkerOutcome{
		Worker: assignment.Worker,
		Result: domain.NewSimulationResult(assignment.Seed, w.cfg.Engine.Network().Len(), w.cfg.RecordHistory),
		Total:  len(assignment.Jobs),
	}
	if w.cfg.Resume {
		resumed, err := w.resume(ctx)
		if err != nil {
			return outcome, &WorkerAbortError{Worker: assignment.Worker, Cause: err}
		}
		if resumed != nil {
			outcome.Result = resumed.Result
			outcome.Completed = resumed.Completed
			logger.Printf("Resuming from checkpoint with %d/%d jobs completed", resumed.Completed, outcome.Total)
		}
	}

	token := newCancelToken(ctx)

	logger.Printf("Found %d jobs to run", outcome.Total-outcome.Completed)
	runStart := w.cfg.Clock()
	lastCheckpoint := runStart
	// truncated is the history of a carrier cut short by the interrupt.
	var truncated *domain.HistoryMatrix

	for index := outcome.Completed; index < outcome.Total; index++ {
		if token.Interrupted() {
			outcome.Interrupted = true
			break
		}
		carrier, took, err := w.runJob(index, token)
		if err != nil {
			logger.Printf("Unexpected error on job %d: %v", index, err)
			w.persistBestEffort(ctx, outcome)
			return outcome, &WorkerAbortError{Worker: assignment.Worker, Completed: outcome.Completed, Cause: err}
		}
		if err := outcome.Result.Append(carrier); err != nil {
			logger.Printf("Unexpected error recording job %d: %v", index, err)
			w.persistBestEffort(ctx, outcome)
			return outcome, &WorkerAbortError{Worker: assignment.Worker, Completed: outcome.Completed, Cause: err}
		}
		outcome.Completed++
		logCarrier(logger, outcome.Result.Carriers[len(outcome.Result.Carriers)-1], took)

		if carrier.Reason() == domain.ReasonInterrupted {
			outcome.Interrupted = true
			truncated = carrier.History()
			break
		}
		if now := w.cfg.Clock(); now.Sub(lastCheckpoint) >= w.cfg.CheckpointInterval {
			if err := w.persist(ctx, outcome, nil); err != nil {
				logger.Printf("Checkpoint failed: %v", err)
				return outcome, &WorkerAbortError{Worker: assignment.Worker, Completed: outcome.Completed, Cause: err}
			}
			lastCheckpoint = now
			span.AddEvent("checkpoint", trace.WithAttributes(attribute.Int("kmc.completed", outcome.Completed)))
			logProgress(logger, outcome.Completed, outcome.Total)
		}
	}

	if outcome.Interrupted {
		logger.Print("Saving the checkpoint cleanly before termination...")
		span.AddEvent("interrupted", trace.WithAttributes(attribute.Int("kmc.completed", outcome.Completed)))
	}
	if err := w.persist(ctx, outcome, truncated); err != nil {
		logger.Printf("Final checkpoint failed: %v", err)
		return outcome, &WorkerAbortError{Worker: assignment.Worker, Completed: outcome.Completed, Cause: err}
	}
	if !outcome.Interrupted {
		logProgress(logger, outcome.Completed, outcome.Total)
		logger.Printf("All jobs completed in %s", w.cfg.Clock().Sub(runStart).Round(time.Millisecond))
	}
	logger.Print("Exiting normally...")
	return outcome, nil
}

// runJob simulates one carrier on its own random stream. Panics are
// returned as errors.
func (w *Worker) runJob(index int, token *cancelToken) (carrier *domain.Carrier, took time.Duration, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			carrier, err = nil, panicError{value: recovered}
		}
	}()

	job := w.cfg.Assignment.Jobs[index]
	network := w.cfg.Engine.Network()
	rng := domain.NewRand(w.cfg.Assignment.Seed, uint64(index))
	start, err := domain.ChooseStart(network, job.Type, rng, w.cfg.ExcludeLastStart)
	if err != nil {
		return nil, 0, err
	}
	carrier, err = domain.NewCarrier(job.CarrierNo, job.Type, start, job.Lifetime, network, w.cfg.RecordHistory)
	if err != nil {
		return nil, 0, err
	}
	began := w.cfg.Clock()
	w.cfg.Engine.Run(carrier, rng, token)
	return carrier, w.cfg.Clock().Sub(began), nil
}

// resume loads the worker's checkpoint. It returns nil when there is none.
// A carrier cut short by an interrupt is removed from the loaded result so
// that its job runs again from the start.
func (w *Worker) resume(ctx context.Context) (*storage.CheckpointRecord, error) {
	assignment := w.cfg.Assignment
	record, err := w.cfg.Store.LoadCheckpoint(ctx, assignment.Worker)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if record.Seed != assignment.Seed || record.Total != len(assignment.Jobs) {
		return nil, apperrors.WithMetadata(
			apperrors.CodeCheckpointMismatch,
			fmt.Sprintf("checkpoint for worker %d was written for a different job plan", assignment.Worker),
			map[string]string{
				"checkpoint_seed": fmt.Sprint(record.Seed),
				"plan_seed":       fmt.Sprint(assignment.Seed),
			},
		)
	}
	if (record.Result.HoleHistory != nil) != w.cfg.RecordHistory {
		return nil, apperrors.New(
			apperrors.CodeCheckpointMismatch,
			fmt.Sprintf("checkpoint for worker %d disagrees with record_carrier_history", assignment.Worker),
		)
	}
	if record.Truncated() {
		if w.cfg.RecordHistory && record.TruncatedHistory == nil {
			return nil, apperrors.New(
				apperrors.CodeCheckpointMismatch,
				fmt.Sprintf("checkpoint for worker %d has an interrupted carrier without its history", assignment.Worker),
			)
		}
		removed, err := record.Result.RemoveLast(record.TruncatedHistory)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.CodeCheckpointMismatch, "rewind interrupted carrier", err)
		}
		record.Completed--
		record.Interrupted = false
		record.TruncatedHistory = nil
		w.cfg.Logger.Printf("Rerunning job %d, interrupted after %d hops", record.Completed, removed.Hops)
	}
	return &record, nil
}

func (w *Worker) checkpoint(outcome WorkerOutcome, truncated *domain.HistoryMatrix) storage.CheckpointRecord {
	return storage.CheckpointRecord{
		RunID:            w.cfg.RunID,
		Worker:           outcome.Worker,
		Seed:             w.cfg.Assignment.Seed,
		Completed:        outcome.Completed,
		Total:            outcome.Total,
		Interrupted:      outcome.Interrupted,
		Result:           outcome.Result,
		TruncatedHistory: truncated,
		UpdatedAt:        w.cfg.Clock().UTC(),
	}
}

// persist saves the outcome with retries. It ignores cancellation of ctx so
// that an interrupted worker can still write its final checkpoint.
func (w *Worker) persist(ctx context.Context, outcome WorkerOutcome, truncated *domain.HistoryMatrix) error {
	ctx = context.WithoutCancel(ctx)
	record := w.checkpoint(outcome, truncated)
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, w.cfg.Store.SaveCheckpoint(ctx, record)
	}, backoff.WithBackOff(w.cfg.NewBackOff()), backoff.WithMaxTries(w.cfg.SaveAttempts))
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (w *Worker) persistBestEffort(ctx context.Context, outcome WorkerOutcome) {
	if err := w.persist(ctx, outcome, nil); err != nil {
		w.cfg.Logger.Printf("Best-effort checkpoint failed: %v", err)
		return
	}
	w.cfg.Logger.Printf("Saved %d completed jobs before aborting", outcome.Completed)
}
