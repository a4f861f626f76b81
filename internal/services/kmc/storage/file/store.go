// Package file stores checkpoints as one binary file per worker slot.
package file

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
)

// Store writes kmc_NN.ckpt files into a directory.
type Store struct {
	dir string
}

// Open prepares dir for checkpoint files.
func Open(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanDir := filepath.Clean(dir)
	if err := os.MkdirAll(cleanDir, 0o755); err != nil {
		return nil, fmt.Errorf("create checkpoint dir: %w", err)
	}
	return &Store{dir: cleanDir}, nil
}

// Close is a no-op; files are closed after every write.
func (s *Store) Close() error {
	return nil
}

// Path returns the checkpoint file for a worker slot.
func (s *Store) Path(worker int) string {
	if worker == storage.CombinedSlot {
		return filepath.Join(s.dir, "kmc_combined.ckpt")
	}
	return filepath.Join(s.dir, fmt.Sprintf("kmc_%02d.ckpt", worker))
}

// SaveCheckpoint replaces the slot's file atomically.
func (s *Store) SaveCheckpoint(ctx context.Context, record storage.CheckpointRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.dir == "" {
		return fmt.Errorf("storage is not configured")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	payload, err := storage.EncodeCheckpoint(record)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, ".kmc-*.tmp")
	if err != nil {
		return fmt.Errorf("create checkpoint temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(payload); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, s.Path(record.Worker)); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint reads the slot's file.
func (s *Store) LoadCheckpoint(ctx context.Context, worker int) (storage.CheckpointRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CheckpointRecord{}, err
	}
	if s == nil || s.dir == "" {
		return storage.CheckpointRecord{}, fmt.Errorf("storage is not configured")
	}
	payload, err := os.ReadFile(s.Path(worker))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return storage.CheckpointRecord{}, storage.ErrNotFound
		}
		return storage.CheckpointRecord{}, fmt.Errorf("read checkpoint: %w", err)
	}
	return storage.DecodeCheckpoint(payload)
}
