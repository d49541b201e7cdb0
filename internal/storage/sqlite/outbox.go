package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/codetrek/cloudsync/pkg/model"
)

// Find returns the outbox record for operationID, or model.ErrNotFound.
func (s *Store) Find(ctx context.Context, operationID string) (*model.OutboxRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT operation_id, origin, collection, doc_id, op_type, payload,
		       created_at, cloud_ts, status, payload_hash
		FROM cloud_outbox
		WHERE operation_id = ?
	`, operationID)

	rec, err := scanRecord(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find outbox record %s: %w", operationID, err)
	}
	return rec, nil
}

// Append inserts a new outbox record. INSERT OR IGNORE plus the unique
// operation_id index makes the duplicate race detectable through the
// affected-row count without depending on driver error codes.
func (s *Store) Append(ctx context.Context, rec *model.OutboxRecord) error {
	var payload any
	if len(rec.Payload) > 0 {
		encoded, err := json.Marshal(rec.Payload)
		if err != nil {
			return fmt.Errorf("encode payload %s: %w", rec.OperationID, err)
		}
		payload = string(encoded)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO cloud_outbox
			(operation_id, origin, collection, doc_id, op_type, payload,
			 created_at, cloud_ts, status, payload_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		rec.OperationID, rec.Origin, rec.Collection, rec.DocumentID,
		string(rec.OpType), payload,
		rec.CreatedAt.UnixMilli(), rec.CloudTs.UnixMilli(),
		rec.Status, rec.PayloadHash,
	)
	if err != nil {
		return fmt.Errorf("append outbox record %s: %w", rec.OperationID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("append outbox record %s: %w", rec.OperationID, err)
	}
	if affected == 0 {
		return model.ErrDuplicateOperation
	}
	return nil
}

// Query returns records with cloud_ts strictly greater than since,
// ascending, capped at limit. The autoincrement seq breaks cloud_ts ties
// in insertion order.
func (s *Store) Query(ctx context.Context, since time.Time, limit int) ([]model.OutboxRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT operation_id, origin, collection, doc_id, op_type, payload,
		       created_at, cloud_ts, status, payload_hash
		FROM cloud_outbox
		WHERE cloud_ts > ?
		ORDER BY cloud_ts ASC, seq ASC
		LIMIT ?
	`, since.UnixMilli(), limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	records := make([]model.OutboxRecord, 0)
	for rows.Next() {
		rec, err := scanRecord(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan outbox record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox records: %w", err)
	}
	return records, nil
}

func scanRecord(scan func(dest ...any) error) (*model.OutboxRecord, error) {
	var rec model.OutboxRecord
	var opType string
	var payload sql.NullString
	var createdAt, cloudTs int64

	err := scan(
		&rec.OperationID, &rec.Origin, &rec.Collection, &rec.DocumentID,
		&opType, &payload, &createdAt, &cloudTs, &rec.Status, &rec.PayloadHash,
	)
	if err != nil {
		return nil, err
	}

	rec.OpType = model.OpType(opType)
	rec.CreatedAt = time.UnixMilli(createdAt).UTC()
	rec.CloudTs = time.UnixMilli(cloudTs).UTC()
	if payload.Valid && payload.String != "" {
		if err := json.Unmarshal([]byte(payload.String), &rec.Payload); err != nil {
			return nil, fmt.Errorf("decode payload %s: %w", rec.OperationID, err)
		}
	}
	return &rec, nil
}
