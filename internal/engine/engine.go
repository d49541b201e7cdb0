package engine

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/codetrek/cloudsync/internal/feed"
	"github.com/codetrek/cloudsync/internal/storage"
	"github.com/codetrek/cloudsync/pkg/model"
)

// Engine applies client operations exactly once and serves the
// incremental pull stream. It is stateless between requests apart from
// the cloudTs clock; all durable state lives in the stores.
type Engine struct {
	docs     storage.DocumentStore
	outbox   storage.OutboxStore
	feed     feed.Publisher
	pageSize int

	// cloudTs clock. Guarded so assigned timestamps are strictly
	// increasing at millisecond granularity within this process, which
	// keeps the strictly-greater pull cursor gap-free.
	mu     sync.Mutex
	lastTs time.Time
}

// DefaultPageSize caps pull responses when no page size is configured.
const DefaultPageSize = 200

type Options struct {
	// PageSize caps the number of records returned per pull.
	PageSize int

	// Feed receives every applied record, best-effort.
	Feed feed.Publisher
}

func New(docs storage.DocumentStore, outbox storage.OutboxStore, opts Options) *Engine {
	if opts.PageSize <= 0 {
		opts.PageSize = DefaultPageSize
	}
	if opts.Feed == nil {
		opts.Feed = feed.NopPublisher{}
	}
	return &Engine{
		docs:     docs,
		outbox:   outbox,
		feed:     opts.Feed,
		pageSize: opts.PageSize,
	}
}

// Apply executes one operation against its target collection and returns
// the acknowledgment. Duplicate submissions resolve from the outbox
// without touching the target collection; mutation failures produce an
// error ack and persist nothing, so the identical operation is safe to
// resubmit.
func (e *Engine) Apply(ctx context.Context, op model.Operation) model.Ack {
	if err := op.Validate(); err != nil {
		return model.Ack{OperationID: op.OperationID, Status: model.StatusError, Error: err.Error()}
	}

	existing, err := e.outbox.Find(ctx, op.OperationID)
	if err == nil {
		return e.duplicateAck(op, existing)
	}
	if !errors.Is(err, model.ErrNotFound) {
		// Outbox unavailable: fail this operation only, retryable.
		return model.Ack{OperationID: op.OperationID, Status: model.StatusError, Error: err.Error()}
	}

	switch op.OpType {
	case model.OpInsert, model.OpUpdate:
		// insert and update are both upserts; the distinction is kept in
		// the record for audit only. updatedAt carries the client-local
		// mutation time.
		err = e.docs.Upsert(ctx, op.Collection, op.DocumentID, op.Payload, op.CreatedAt)
	case model.OpDelete:
		err = e.docs.Delete(ctx, op.Collection, op.DocumentID)
	}
	if err != nil {
		return model.Ack{OperationID: op.OperationID, Status: model.StatusError, Error: err.Error()}
	}

	rec := &model.OutboxRecord{
		Operation:   op,
		CloudTs:     e.nextCloudTs(),
		Status:      model.RecordApplied,
		PayloadHash: op.PayloadHash(),
	}
	if err := e.outbox.Append(ctx, rec); err != nil {
		if errors.Is(err, model.ErrDuplicateOperation) {
			// Lost the race against a concurrent retry of the same
			// operation; resolve to the winner's record.
			winner, findErr := e.outbox.Find(ctx, op.OperationID)
			if findErr != nil {
				return model.Ack{OperationID: op.OperationID, Status: model.StatusError, Error: findErr.Error()}
			}
			return e.duplicateAck(op, winner)
		}
		// Mutation applied but not recorded: the ack is an error and a
		// resubmit will re-run the upsert/delete, which is safe.
		return model.Ack{OperationID: op.OperationID, Status: model.StatusError, Error: err.Error()}
	}

	if err := e.feed.Publish(ctx, rec); err != nil {
		// Feed is best-effort; the outbox is the durable replication log.
		log.Printf("[Error] Feed publish failed for %s: %v", rec.OperationID, err)
	}

	return model.Ack{OperationID: op.OperationID, Status: model.StatusOK, CloudTs: rec.CloudTs}
}

func (e *Engine) duplicateAck(op model.Operation, existing *model.OutboxRecord) model.Ack {
	if hash := op.PayloadHash(); hash != "" && existing.PayloadHash != "" && hash != existing.PayloadHash {
		log.Printf("[Warn] Operation %s retried with a different payload (origin=%s)", op.OperationID, op.Origin)
	}
	return model.Ack{OperationID: op.OperationID, Status: model.StatusDuplicate, CloudTs: existing.CloudTs}
}

// Pull returns outbox records with cloudTs strictly greater than since,
// ascending, capped at the configured page size. Pull never mutates
// state.
func (e *Engine) Pull(ctx context.Context, since time.Time) ([]model.OutboxRecord, error) {
	return e.outbox.Query(ctx, since, e.pageSize)
}

// GetDocument returns the current state of a target document.
func (e *Engine) GetDocument(ctx context.Context, collection, id string) (*storage.Document, error) {
	return e.docs.Get(ctx, collection, id)
}

func (e *Engine) nextCloudTs() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Millisecond)
	if !now.After(e.lastTs) {
		now = e.lastTs.Add(time.Millisecond)
	}
	e.lastTs = now
	return now
}
