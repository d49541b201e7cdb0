package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/codetrek/cloudsync/internal/storage/types"
	"github.com/codetrek/cloudsync/pkg/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	fields TEXT NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (collection, doc_id)
);

CREATE TABLE IF NOT EXISTS cloud_outbox (
	seq INTEGER PRIMARY KEY AUTOINCREMENT,
	operation_id TEXT NOT NULL,
	origin TEXT NOT NULL,
	collection TEXT NOT NULL,
	doc_id TEXT NOT NULL,
	op_type TEXT NOT NULL,
	payload TEXT,
	created_at INTEGER NOT NULL,
	cloud_ts INTEGER NOT NULL,
	status TEXT NOT NULL,
	payload_hash TEXT
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_outbox_operation_id
ON cloud_outbox(operation_id);

CREATE INDEX IF NOT EXISTS idx_outbox_cloud_ts
ON cloud_outbox(cloud_ts);
`

// Store is a SQLite-backed implementation of both the document store and
// the outbox store, for embedded single-node deployments. Timestamps are
// stored as unix milliseconds, matching the engine's cloudTs granularity.
type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("sqlite path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Init(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA journal_mode = WAL;"); err != nil {
		return fmt.Errorf("enable wal: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Upsert merges fields into the stored document. The merge happens in Go
// inside a transaction: read the current field set, overlay the new
// fields, write the result back.
func (s *Store) Upsert(ctx context.Context, collection, id string, fields map[string]interface{}, updatedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	merged := make(map[string]interface{})
	var existing string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	).Scan(&existing)
	switch {
	case err == nil:
		if err := json.Unmarshal([]byte(existing), &merged); err != nil {
			return fmt.Errorf("decode stored fields %s/%s: %w", collection, id, err)
		}
	case errors.Is(err, sql.ErrNoRows):
		// New document
	default:
		return fmt.Errorf("read document %s/%s: %w", collection, id, err)
	}

	for k, v := range fields {
		if k == "_id" || k == "updatedAt" {
			// Reserved keys; the updatedAt stamp is authoritative.
			continue
		}
		merged[k] = v
	}
	encoded, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode fields %s/%s: %w", collection, id, err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (collection, doc_id, fields, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (collection, doc_id) DO UPDATE SET
			fields = excluded.fields,
			updated_at = excluded.updated_at
	`, collection, id, string(encoded), updatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return tx.Commit()
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*types.Document, error) {
	var encoded string
	var updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT fields, updated_at FROM documents WHERE collection = ? AND doc_id = ?`,
		collection, id,
	).Scan(&encoded, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	fields := make(map[string]interface{})
	if err := json.Unmarshal([]byte(encoded), &fields); err != nil {
		return nil, fmt.Errorf("decode stored fields %s/%s: %w", collection, id, err)
	}
	return &types.Document{
		Collection: collection,
		ID:         id,
		Fields:     fields,
		UpdatedAt:  time.UnixMilli(updatedAt).UTC(),
	}, nil
}
