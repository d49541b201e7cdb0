package storage

import "github.com/codetrek/cloudsync/internal/storage/types"

// Aliases so callers outside the storage tree don't need to import the
// types subpackage directly.
type (
	Document      = types.Document
	DocumentStore = types.DocumentStore
	OutboxStore   = types.OutboxStore
	Factory       = types.Factory
)
