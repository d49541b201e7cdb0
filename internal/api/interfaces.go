package api

import (
	"context"
	"time"

	"github.com/codetrek/cloudsync/internal/storage"
	"github.com/codetrek/cloudsync/pkg/model"
)

// SyncService is the engine surface the HTTP handlers need.
type SyncService interface {
	Apply(ctx context.Context, op model.Operation) model.Ack
	Pull(ctx context.Context, since time.Time) ([]model.OutboxRecord, error)
	GetDocument(ctx context.Context, collection, id string) (*storage.Document, error)
}
