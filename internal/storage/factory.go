package storage

import (
	"context"
	"fmt"

	"github.com/codetrek/cloudsync/internal/config"
	"github.com/codetrek/cloudsync/internal/storage/memory"
	"github.com/codetrek/cloudsync/internal/storage/mongo"
	"github.com/codetrek/cloudsync/internal/storage/sqlite"
	"github.com/codetrek/cloudsync/internal/storage/types"
)

// NewFactory builds the storage backend selected by cfg.Driver.
func NewFactory(ctx context.Context, cfg config.StorageConfig) (types.Factory, error) {
	switch cfg.Driver {
	case "mongo":
		store, err := mongo.New(ctx, cfg.MongoURI, cfg.DatabaseName)
		if err != nil {
			return nil, fmt.Errorf("mongo backend: %w", err)
		}
		return &singleFactory{docs: store, outbox: store, closer: store.Close}, nil

	case "sqlite":
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite backend: %w", err)
		}
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("sqlite backend: %w", err)
		}
		return &singleFactory{docs: store, outbox: store, closer: func(context.Context) error { return store.Close() }}, nil

	case "memory":
		store := memory.New()
		return &singleFactory{docs: store, outbox: store, closer: func(context.Context) error { return nil }}, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// singleFactory serves both stores from one shared backend connection.
type singleFactory struct {
	docs   types.DocumentStore
	outbox types.OutboxStore
	closer func(ctx context.Context) error
}

func (f *singleFactory) Documents() types.DocumentStore { return f.docs }

func (f *singleFactory) Outbox() types.OutboxStore { return f.outbox }

func (f *singleFactory) Close(ctx context.Context) error { return f.closer(ctx) }
