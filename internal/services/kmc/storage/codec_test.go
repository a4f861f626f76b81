package storage_test

import (
	"testing"

	"github.com/louisbranch/morphkmc/internal/services/kmc/domain"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage/storagetest"
)

func TestCheckpointCodecPreservesRecord(t *testing.T) {
	want := storagetest.SampleRecord(4)
	want.Interrupted = true

	data, err := storage.EncodeCheckpoint(want)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := storage.DecodeCheckpoint(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	storagetest.AssertRecordEqual(t, got, want)
}

func TestCheckpointCodecKeepsDisabledHistoryAbsent(t *testing.T) {
	record := storagetest.SampleRecord(0)
	record.Result.HoleHistory, record.Result.ElectronHistory = nil, nil

	data, err := storage.EncodeCheckpoint(record)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := storage.DecodeCheckpoint(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Result.HoleHistory != nil || got.Result.ElectronHistory != nil {
		t.Fatal("disabled history should decode as absent")
	}
}

func TestCheckpointCodecIsDeterministic(t *testing.T) {
	a, err := storage.EncodeCheckpoint(storagetest.SampleRecord(1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	b, err := storage.EncodeCheckpoint(storagetest.SampleRecord(1))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(a) != string(b) {
		t.Fatal("identical records encoded differently")
	}
}

func TestDecodeCheckpointRejectsGarbage(t *testing.T) {
	if _, err := storage.DecodeCheckpoint([]byte{0xff, 0x00}); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestCheckpointRecordValidate(t *testing.T) {
	cases := map[string]func(*storage.CheckpointRecord){
		"bad slot":         func(r *storage.CheckpointRecord) { r.Worker = -2 },
		"over complete":    func(r *storage.CheckpointRecord) { r.Total = 1 },
		"negative":         func(r *storage.CheckpointRecord) { r.Completed = -1 },
		"carrier mismatch": func(r *storage.CheckpointRecord) { r.Result.Carriers = r.Result.Carriers[:1] },
		"stray truncated history": func(r *storage.CheckpointRecord) {
			r.TruncatedHistory = domain.NewHistoryMatrix(4)
		},
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			record := storagetest.SampleRecord(0)
			mutate(&record)
			if err := record.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := storagetest.SampleRecord(storage.CombinedSlot).Validate(); err != nil {
		t.Fatalf("combined slot: %v", err)
	}
	if err := storagetest.InterruptedRecord(0).Validate(); err != nil {
		t.Fatalf("interrupted record: %v", err)
	}
}
