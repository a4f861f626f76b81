// Package bbolt stores checkpoints in a BoltDB file.
package bbolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"go.etcd.io/bbolt"
)

const checkpointBucket = "checkpoints"

// Store provides a BoltDB-backed checkpoint store.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveCheckpoint persists a checkpoint record.
func (s *Store) SaveCheckpoint(ctx context.Context, record storage.CheckpointRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.db == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := record.Validate(); err != nil {
		return err
	}

	payload, err := storage.EncodeCheckpoint(record)
	if err != nil {
		return err
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket is missing")
		}
		return bucket.Put(workerKey(record.Worker), payload)
	})
}

// LoadCheckpoint fetches a checkpoint record by worker slot.
func (s *Store) LoadCheckpoint(ctx context.Context, worker int) (storage.CheckpointRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CheckpointRecord{}, err
	}
	if s == nil || s.db == nil {
		return storage.CheckpointRecord{}, fmt.Errorf("storage is not configured")
	}

	var record storage.CheckpointRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(checkpointBucket))
		if bucket == nil {
			return fmt.Errorf("checkpoint bucket is missing")
		}
		payload := bucket.Get(workerKey(worker))
		if payload == nil {
			return storage.ErrNotFound
		}
		decoded, err := storage.DecodeCheckpoint(payload)
		if err != nil {
			return err
		}
		record = decoded
		return nil
	})
	if err != nil {
		return storage.CheckpointRecord{}, err
	}
	return record, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(checkpointBucket)); err != nil {
			return fmt.Errorf("create checkpoint bucket: %w", err)
		}
		return nil
	})
}

// workerKey orders slots numerically, with the combined slot first.
func workerKey(worker int) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(int64(worker))^(1<<63))
	return key
}
