package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/codetrek/cloudsync/internal/storage/types"
	"github.com/codetrek/cloudsync/pkg/model"
)

// Store implements both the document store and the outbox store on a
// single MongoDB database. Target collections are addressed by name;
// the outbox lives in the reserved cloud_outbox collection.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
}

const outboxCollection = "cloud_outbox"

// New connects to MongoDB and ensures the outbox indexes.
func New(ctx context.Context, uri, dbName string) (*Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &Store{client: client, db: client.Database(dbName)}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the unique operation_id index that backs
// idempotency and the cloud_ts index that backs the pull cursor.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.db.Collection(outboxCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "operation_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "cloud_ts", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("ensure outbox indexes: %w", err)
	}
	return nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

// DB exposes the underlying database for integration tests.
func (s *Store) DB() *mongo.Database {
	return s.db
}

// Upsert merges fields into the target document with a $set, creating the
// document when absent. The engine passes payloads through untouched, so
// the reserved _id and updatedAt keys are stripped here rather than
// trusted to be absent; the server stamp always wins over a payload
// updatedAt.
func (s *Store) Upsert(ctx context.Context, collection, id string, fields map[string]interface{}, updatedAt time.Time) error {
	set := bson.M{"updatedAt": updatedAt}
	for k, v := range fields {
		if k == "_id" || k == "updatedAt" {
			continue
		}
		set[k] = v
	}

	_, err := s.db.Collection(collection).UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": set},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete removes the target document. Deleting an absent document is a
// no-op, not an error.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.Collection(collection).DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, id string) (*types.Document, error) {
	var raw bson.M
	err := s.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&raw)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}

	doc := &types.Document{
		Collection: collection,
		ID:         id,
		Fields:     make(map[string]interface{}, len(raw)),
	}
	for k, v := range raw {
		switch k {
		case "_id":
		case "updatedAt":
			if ts, ok := v.(primitive.DateTime); ok {
				doc.UpdatedAt = ts.Time()
			} else if ts, ok := v.(time.Time); ok {
				doc.UpdatedAt = ts
			}
		default:
			doc.Fields[k] = v
		}
	}
	return doc, nil
}
