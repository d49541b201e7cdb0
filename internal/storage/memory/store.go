package memory

import (
	"context"
	"sync"
	"time"

	"github.com/codetrek/cloudsync/internal/storage/types"
	"github.com/codetrek/cloudsync/pkg/model"
)

// Store is an in-memory implementation of the document and outbox stores.
// Used by unit tests and the dev-mode storage driver; state is lost on
// restart, so it is not a conforming production backend.
type Store struct {
	mu sync.RWMutex

	// docs: collection -> doc id -> document
	docs map[string]map[string]*types.Document

	// outbox in insertion order, plus an operationId index into it
	outbox  []model.OutboxRecord
	applied map[string]int
}

func New() *Store {
	return &Store{
		docs:    make(map[string]map[string]*types.Document),
		applied: make(map[string]int),
	}
}

func (s *Store) Upsert(ctx context.Context, collection, id string, fields map[string]interface{}, updatedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	coll := s.docs[collection]
	if coll == nil {
		coll = make(map[string]*types.Document)
		s.docs[collection] = coll
	}

	doc := coll[id]
	if doc == nil {
		doc = &types.Document{
			Collection: collection,
			ID:         id,
			Fields:     make(map[string]interface{}),
		}
		coll[id] = doc
	}
	for k, v := range fields {
		if k == "_id" || k == "updatedAt" {
			// Reserved keys; the updatedAt stamp is authoritative.
			continue
		}
		doc.Fields[k] = v
	}
	doc.UpdatedAt = updatedAt
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if coll := s.docs[collection]; coll != nil {
		delete(coll, id)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*types.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc := s.docs[collection][id]
	if doc == nil {
		return nil, model.ErrNotFound
	}

	// Copy so callers can't mutate stored state.
	out := &types.Document{
		Collection: doc.Collection,
		ID:         doc.ID,
		Fields:     make(map[string]interface{}, len(doc.Fields)),
		UpdatedAt:  doc.UpdatedAt,
	}
	for k, v := range doc.Fields {
		out.Fields[k] = v
	}
	return out, nil
}

func (s *Store) Find(ctx context.Context, operationID string) (*model.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	idx, ok := s.applied[operationID]
	if !ok {
		return nil, model.ErrNotFound
	}
	rec := cloneRecord(s.outbox[idx])
	return &rec, nil
}

func (s *Store) Append(ctx context.Context, rec *model.OutboxRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.applied[rec.OperationID]; exists {
		return model.ErrDuplicateOperation
	}
	s.outbox = append(s.outbox, *rec)
	s.applied[rec.OperationID] = len(s.outbox) - 1
	return nil
}

func (s *Store) Query(ctx context.Context, since time.Time, limit int) ([]model.OutboxRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// The outbox slice is already in insertion order and cloudTs is
	// non-decreasing in insertion order, so a linear scan preserves the
	// required ordering.
	records := make([]model.OutboxRecord, 0)
	for _, rec := range s.outbox {
		if !rec.CloudTs.After(since) {
			continue
		}
		records = append(records, cloneRecord(rec))
		if len(records) >= limit {
			break
		}
	}
	return records, nil
}

// cloneRecord copies the payload map so callers can't mutate stored
// outbox state, mirroring what Get does for document fields.
func cloneRecord(rec model.OutboxRecord) model.OutboxRecord {
	if rec.Payload != nil {
		payload := make(map[string]interface{}, len(rec.Payload))
		for k, v := range rec.Payload {
			payload[k] = v
		}
		rec.Payload = payload
	}
	return rec
}
