// Package sqlite stores checkpoints in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sqlitemigrate "github.com/louisbranch/morphkmc/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage"
	"github.com/louisbranch/morphkmc/internal/services/kmc/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed checkpoint persistence.
type Store struct {
	sqlDB *sql.DB
}

// Open opens a checkpoint SQLite store and applies migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{sqlDB: sqlDB}
	if err := sqlitemigrate.ApplyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

// Close releases the SQLite connection.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// SaveCheckpoint upserts the record for its worker slot.
func (s *Store) SaveCheckpoint(ctx context.Context, record storage.CheckpointRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	if err := record.Validate(); err != nil {
		return err
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = time.Now().UTC()
	}
	payload, err := storage.EncodeCheckpoint(record)
	if err != nil {
		return err
	}

	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO kmc_checkpoints (
	worker,
	run_id,
	seed,
	completed,
	total,
	payload,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(worker) DO UPDATE SET
	run_id = excluded.run_id,
	seed = excluded.seed,
	completed = excluded.completed,
	total = excluded.total,
	payload = excluded.payload,
	updated_at = excluded.updated_at
`,
		record.Worker,
		record.RunID,
		strconv.FormatUint(record.Seed, 10),
		record.Completed,
		record.Total,
		payload,
		record.UpdatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

// LoadCheckpoint fetches the record for a worker slot.
func (s *Store) LoadCheckpoint(ctx context.Context, worker int) (storage.CheckpointRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.CheckpointRecord{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.CheckpointRecord{}, fmt.Errorf("storage is not configured")
	}

	var payload []byte
	row := s.sqlDB.QueryRowContext(ctx, `SELECT payload FROM kmc_checkpoints WHERE worker = ?`, worker)
	if err := row.Scan(&payload); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.CheckpointRecord{}, storage.ErrNotFound
		}
		return storage.CheckpointRecord{}, fmt.Errorf("load checkpoint: %w", err)
	}
	return storage.DecodeCheckpoint(payload)
}
