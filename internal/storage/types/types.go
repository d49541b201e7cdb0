package types

import (
	"context"
	"time"

	"github.com/codetrek/cloudsync/pkg/model"
)

// Document is the engine's view of a stored document. The sync engine
// treats documents as opaque field sets identified by collection name and
// document id; it never interprets the fields.
type Document struct {
	Collection string                 `json:"collection"`
	ID         string                 `json:"id"`
	Fields     map[string]interface{} `json:"fields"`

	// UpdatedAt carries the client-assigned createdAt of the last applied
	// insert/update, not server time.
	UpdatedAt time.Time `json:"updatedAt"`
}

// DocumentStore is the mutation surface the apply engine needs from the
// target collections. Backends must provide single-document atomicity for
// Upsert and Delete; the engine layers no locking on top.
type DocumentStore interface {
	// Upsert merges fields into the document identified by (collection, id),
	// creating it when absent. Fields not present in the map are left
	// untouched (partial update, not full replace). The reserved _id and
	// updatedAt keys are discarded from the field map: the updatedAt stamp
	// passed here is authoritative.
	Upsert(ctx context.Context, collection, id string, fields map[string]interface{}, updatedAt time.Time) error

	// Delete removes the document. Absence is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Get retrieves the current document, or model.ErrNotFound.
	Get(ctx context.Context, collection, id string) (*Document, error)
}

// OutboxStore is the durable, append-only log of applied operations. It is
// the source of truth for idempotency and the replication feed.
type OutboxStore interface {
	// Find returns the record for operationID, or model.ErrNotFound.
	Find(ctx context.Context, operationID string) (*model.OutboxRecord, error)

	// Append durably persists a new record. The store enforces uniqueness
	// on operationId; a violation surfaces as model.ErrDuplicateOperation
	// so concurrent retries collapse into the duplicate ack.
	Append(ctx context.Context, rec *model.OutboxRecord) error

	// Query returns records with cloudTs strictly greater than since,
	// ascending by cloudTs (ties broken by insertion order), capped at limit.
	Query(ctx context.Context, since time.Time, limit int) ([]model.OutboxRecord, error)
}

// Factory abstracts the configured backend topology. Both stores usually
// share one connection; Close tears the whole thing down.
type Factory interface {
	// Documents returns the target-collection store.
	Documents() DocumentStore

	// Outbox returns the outbox store.
	Outbox() OutboxStore

	// Close closes all underlying providers and connections.
	Close(ctx context.Context) error
}
