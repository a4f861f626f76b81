// Package storage defines checkpoint persistence for mobility runs.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
)

// ErrNotFound indicates a missing checkpoint.
var ErrNotFound = errors.New("checkpoint not found")

// CombinedSlot is the reserved worker slot holding the merged result of a run.
const CombinedSlot = -1

// CheckpointRecord is the durable state of one worker, or of the combined
// result when Worker is CombinedSlot. A record is overwritten in place.
type CheckpointRecord struct {
	RunID  string
	Worker int
	Seed   uint64
	// Completed counts the leading jobs of the worker's assignment whose
	// carriers are already in Result.
	Completed int
	Total     int
	// Interrupted is set when the worker stopped on an external signal.
	Interrupted bool
	Result      domain.SimulationResult
	// TruncatedHistory holds the hops of the trailing carrier when the
	// interrupt cut it short. Those hops are also folded into Result, and
	// resume subtracts them before rerunning the job.
	TruncatedHistory *domain.HistoryMatrix
	UpdatedAt        time.Time
}

// Truncated reports whether the last carrier in Result was cut short by an
// interrupt and must be rerun on resume.
func (r CheckpointRecord) Truncated() bool {
	if !r.Interrupted || len(r.Result.Carriers) == 0 {
		return false
	}
	return r.Result.Carriers[len(r.Result.Carriers)-1].Reason == domain.ReasonInterrupted
}

// Validate checks the record before it is persisted.
func (r CheckpointRecord) Validate() error {
	if r.Worker < CombinedSlot {
		return fmt.Errorf("worker slot %d is invalid", r.Worker)
	}
	if r.Completed < 0 || r.Total < 0 || r.Completed > r.Total {
		return fmt.Errorf("completed %d of %d jobs is invalid", r.Completed, r.Total)
	}
	if r.Completed != r.Result.Len() {
		return fmt.Errorf("completed %d jobs but result holds %d carriers", r.Completed, r.Result.Len())
	}
	if r.TruncatedHistory != nil && !r.Truncated() {
		return fmt.Errorf("truncated history without an interrupted trailing carrier")
	}
	return nil
}

// CheckpointStore persists checkpoint records keyed by worker slot.
type CheckpointStore interface {
	SaveCheckpoint(ctx context.Context, record CheckpointRecord) error
	// LoadCheckpoint returns ErrNotFound when the slot has never been saved.
	LoadCheckpoint(ctx context.Context, worker int) (CheckpointRecord, error)
	Close() error
}
