// Package storagetest provides reusable checkpoint fixtures and a conformance
// suite that every CheckpointStore backend runs.
package storagetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"gonum.org/v1/gonum/spatial/r3"
)

// SampleRecord returns a two-carrier checkpoint for worker with history
// recording enabled.
func SampleRecord(worker int) storage.CheckpointRecord {
	holes := domain.NewHistoryMatrix(4)
	holes.Increment(0, 1)
	holes.Increment(0, 1)
	holes.Increment(1, 3)
	electrons := domain.NewHistoryMatrix(4)
	electrons.Increment(2, 2)

	return storage.CheckpointRecord{
		RunID:     "run-1",
		Worker:    worker,
		Seed:      1 << 40,
		Completed: 2,
		Total:     5,
		UpdatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Result: domain.SimulationResult{
			Seeds: []uint64{1 << 40},
			Carriers: []domain.CarrierRecord{
				{
					ID:               0,
					Type:             domain.CarrierHole,
					Image:            domain.Image{1, 0, -1},
					Lifetime:         1e-9,
					ElapsedTime:      8.5e-10,
					Hops:             3,
					Displacement:     12.5,
					InitialPosition:  r3.Vec{X: 1, Y: 2, Z: 3},
					FinalPosition:    r3.Vec{X: 4, Y: 5, Z: 6},
					StartChromophore: 0,
					FinalChromophore: 3,
					Reason:           domain.ReasonLifetimeExceeded,
				},
				{
					ID:               1,
					Type:             domain.CarrierElectron,
					Lifetime:         1e-9,
					ElapsedTime:      2e-10,
					Hops:             1,
					InitialPosition:  r3.Vec{X: -1},
					FinalPosition:    r3.Vec{X: -1},
					StartChromophore: 2,
					FinalChromophore: 2,
					Reason:           domain.ReasonHopLimitExceeded,
				},
			},
			HoleHistory:     holes,
			ElectronHistory: electrons,
		},
	}
}

// InterruptedRecord returns SampleRecord with a third, interrupted hole
// appended and its two hops kept as the truncated history.
func InterruptedRecord(worker int) storage.CheckpointRecord {
	record := SampleRecord(worker)
	truncated := domain.NewHistoryMatrix(4)
	truncated.Increment(0, 1)
	truncated.Increment(1, 0)
	if err := record.Result.HoleHistory.Add(truncated); err != nil {
		panic(err)
	}
	record.Result.Carriers = append(record.Result.Carriers, domain.CarrierRecord{
		ID:               2,
		Type:             domain.CarrierHole,
		Lifetime:         1e-9,
		ElapsedTime:      1e-10,
		Hops:             2,
		StartChromophore: 0,
		FinalChromophore: 0,
		Reason:           domain.ReasonInterrupted,
	})
	record.Completed = 3
	record.Interrupted = true
	record.TruncatedHistory = truncated
	return record
}

// AssertRecordEqual fails t when got and want differ in any persisted field.
func AssertRecordEqual(t *testing.T, got, want storage.CheckpointRecord) {
	t.Helper()
	if got.RunID != want.RunID || got.Worker != want.Worker || got.Seed != want.Seed {
		t.Fatalf("record identity = (%q, %d, %d), want (%q, %d, %d)",
			got.RunID, got.Worker, got.Seed, want.RunID, want.Worker, want.Seed)
	}
	if got.Completed != want.Completed || got.Total != want.Total || got.Interrupted != want.Interrupted {
		t.Fatalf("progress = %d/%d interrupted=%t, want %d/%d interrupted=%t",
			got.Completed, got.Total, got.Interrupted, want.Completed, want.Total, want.Interrupted)
	}
	if !got.UpdatedAt.Equal(want.UpdatedAt) {
		t.Fatalf("updated at = %v, want %v", got.UpdatedAt, want.UpdatedAt)
	}
	if !got.TruncatedHistory.Equal(want.TruncatedHistory) {
		t.Fatalf("truncated history = %v, want %v", got.TruncatedHistory.Entries(), want.TruncatedHistory.Entries())
	}
	if (got.TruncatedHistory == nil) != (want.TruncatedHistory == nil) {
		t.Fatalf("truncated history present = %t, want %t", got.TruncatedHistory != nil, want.TruncatedHistory != nil)
	}
	AssertResultEqual(t, got.Result, want.Result)
}

// AssertResultEqual fails t when two simulation results differ.
func AssertResultEqual(t *testing.T, got, want domain.SimulationResult) {
	t.Helper()
	if len(got.Seeds) != len(want.Seeds) {
		t.Fatalf("seeds = %v, want %v", got.Seeds, want.Seeds)
	}
	for i := range want.Seeds {
		if got.Seeds[i] != want.Seeds[i] {
			t.Fatalf("seeds = %v, want %v", got.Seeds, want.Seeds)
		}
	}
	if len(got.Carriers) != len(want.Carriers) {
		t.Fatalf("carriers = %d, want %d", len(got.Carriers), len(want.Carriers))
	}
	for i := range want.Carriers {
		if got.Carriers[i] != want.Carriers[i] {
			t.Fatalf("carrier %d = %+v, want %+v", i, got.Carriers[i], want.Carriers[i])
		}
	}
	if !got.HoleHistory.Equal(want.HoleHistory) {
		t.Fatalf("hole history = %v, want %v", got.HoleHistory.Entries(), want.HoleHistory.Entries())
	}
	if !got.ElectronHistory.Equal(want.ElectronHistory) {
		t.Fatalf("electron history = %v, want %v", got.ElectronHistory.Entries(), want.ElectronHistory.Entries())
	}
}

// RunCheckpointStoreConformance exercises the CheckpointStore contract
// against stores produced by open.
func RunCheckpointStoreConformance(t *testing.T, open func(t *testing.T) storage.CheckpointStore) {
	t.Helper()

	t.Run("missing slot", func(t *testing.T) {
		store := open(t)
		if _, err := store.LoadCheckpoint(context.Background(), 3); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("load missing = %v, want ErrNotFound", err)
		}
	})

	t.Run("round trip", func(t *testing.T) {
		store := open(t)
		want := SampleRecord(2)
		if err := store.SaveCheckpoint(context.Background(), want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := store.LoadCheckpoint(context.Background(), 2)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		AssertRecordEqual(t, got, want)
	})

	t.Run("interrupted round trip", func(t *testing.T) {
		store := open(t)
		want := InterruptedRecord(1)
		if err := store.SaveCheckpoint(context.Background(), want); err != nil {
			t.Fatalf("save: %v", err)
		}
		got, err := store.LoadCheckpoint(context.Background(), 1)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		if !got.Truncated() {
			t.Fatal("loaded record should report a truncated carrier")
		}
		AssertRecordEqual(t, got, want)
	})

	t.Run("overwrite in place", func(t *testing.T) {
		store := open(t)
		first := SampleRecord(0)
		first.Completed, first.Result.Carriers = 1, first.Result.Carriers[:1]
		if err := store.SaveCheckpoint(context.Background(), first); err != nil {
			t.Fatalf("save first: %v", err)
		}
		second := SampleRecord(0)
		second.Interrupted = true
		if err := store.SaveCheckpoint(context.Background(), second); err != nil {
			t.Fatalf("save second: %v", err)
		}
		got, err := store.LoadCheckpoint(context.Background(), 0)
		if err != nil {
			t.Fatalf("load: %v", err)
		}
		AssertRecordEqual(t, got, second)
	})

	t.Run("slots are independent", func(t *testing.T) {
		store := open(t)
		combined := SampleRecord(storage.CombinedSlot)
		combined.Result.HoleHistory, combined.Result.ElectronHistory = nil, nil
		for _, record := range []storage.CheckpointRecord{SampleRecord(1), combined} {
			if err := store.SaveCheckpoint(context.Background(), record); err != nil {
				t.Fatalf("save slot %d: %v", record.Worker, err)
			}
		}
		got, err := store.LoadCheckpoint(context.Background(), storage.CombinedSlot)
		if err != nil {
			t.Fatalf("load combined: %v", err)
		}
		AssertRecordEqual(t, got, combined)
		if _, err := store.LoadCheckpoint(context.Background(), 0); !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("load slot 0 = %v, want ErrNotFound", err)
		}
	})

	t.Run("rejects inconsistent record", func(t *testing.T) {
		store := open(t)
		record := SampleRecord(0)
		record.Completed = 1
		if err := store.SaveCheckpoint(context.Background(), record); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("honours cancelled context", func(t *testing.T) {
		store := open(t)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := store.SaveCheckpoint(ctx, SampleRecord(0)); !errors.Is(err, context.Canceled) {
			t.Fatalf("save cancelled = %v, want context.Canceled", err)
		}
	})
}
