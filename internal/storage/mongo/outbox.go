package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codetrek/cloudsync/pkg/model"
)

// Find returns the outbox record for operationID, or model.ErrNotFound.
func (s *Store) Find(ctx context.Context, operationID string) (*model.OutboxRecord, error) {
	var rec model.OutboxRecord
	err := s.db.Collection(outboxCollection).
		FindOne(ctx, bson.M{"operation_id": operationID}).
		Decode(&rec)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("find outbox record %s: %w", operationID, err)
	}
	return &rec, nil
}

// Append inserts a new outbox record. The unique operation_id index turns
// a concurrent double-insert into model.ErrDuplicateOperation.
func (s *Store) Append(ctx context.Context, rec *model.OutboxRecord) error {
	_, err := s.db.Collection(outboxCollection).InsertOne(ctx, rec)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrDuplicateOperation
		}
		return fmt.Errorf("append outbox record %s: %w", rec.OperationID, err)
	}
	return nil
}

// Query returns records with cloud_ts strictly greater than since,
// ascending, capped at limit. Insertion order (_id) breaks cloud_ts ties.
func (s *Store) Query(ctx context.Context, since time.Time, limit int) ([]model.OutboxRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "cloud_ts", Value: 1}, {Key: "_id", Value: 1}}).
		SetLimit(int64(limit))

	cursor, err := s.db.Collection(outboxCollection).
		Find(ctx, bson.M{"cloud_ts": bson.M{"$gt": since}}, opts)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer cursor.Close(ctx)

	records := make([]model.OutboxRecord, 0)
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode outbox records: %w", err)
	}
	return records, nil
}
