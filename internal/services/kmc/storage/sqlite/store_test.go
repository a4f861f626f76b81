package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage/storagetest"
)

func TestStoreConformance(t *testing.T) {
	storagetest.RunCheckpointStoreConformance(t, func(t *testing.T) storage.CheckpointStore {
		return openTempStore(t)
	})
}

func TestReopenKeepsCheckpoints(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kmc.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	want := storagetest.SampleRecord(1)
	if err := store.SaveCheckpoint(context.Background(), want); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })
	got, err := reopened.LoadCheckpoint(context.Background(), 1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	storagetest.AssertRecordEqual(t, got, want)
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "kmc.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}
