package model

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zeebo/blake3"
)

// OpType is the kind of mutation carried by an Operation.
type OpType string

const (
	OpInsert OpType = "insert"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
)

// Valid reports whether t is one of the recognized operation kinds.
func (t OpType) Valid() bool {
	switch t {
	case OpInsert, OpUpdate, OpDelete:
		return true
	}
	return false
}

// Operation is a single client-originated mutation, immutable once sent.
// OperationID is the idempotency key and must be stable across retries of
// the same logical mutation.
type Operation struct {
	OperationID string `json:"operationId" bson:"operation_id"`

	// Origin identifies the submitting client/replica.
	Origin string `json:"origin" bson:"origin"`

	// Collection is the target resource collection name.
	Collection string `json:"collection" bson:"collection"`

	// DocumentID is the opaque identifier of the target document.
	DocumentID string `json:"documentId" bson:"document_id"`

	OpType OpType `json:"opType" bson:"op_type"`

	// Payload holds the field set for insert/update; ignored for delete.
	Payload map[string]interface{} `json:"payload,omitempty" bson:"payload,omitempty"`

	// CreatedAt is the client-assigned timestamp of the local mutation.
	CreatedAt time.Time `json:"createdAt" bson:"created_at"`
}

// Validate checks that the operation envelope is complete enough to apply.
// Errors wrap ErrInvalidOperation.
func (op *Operation) Validate() error {
	if op.OperationID == "" {
		return fmt.Errorf("%w: missing operationId", ErrInvalidOperation)
	}
	if op.Collection == "" {
		return fmt.Errorf("%w: missing collection", ErrInvalidOperation)
	}
	if op.DocumentID == "" {
		return fmt.Errorf("%w: missing documentId", ErrInvalidOperation)
	}
	if op.OpType == "" {
		return fmt.Errorf("%w: missing opType", ErrInvalidOperation)
	}
	if !op.OpType.Valid() {
		return fmt.Errorf("%w: unknown opType %q", ErrInvalidOperation, op.OpType)
	}
	return nil
}

// PayloadHash returns a 128-bit BLAKE3 digest of the payload, hex encoded.
// json.Marshal sorts map keys, so the digest is stable for equal payloads.
// Audit-only: lets the engine spot a retry that reused an operationId with
// a different payload.
func (op *Operation) PayloadHash() string {
	if len(op.Payload) == 0 {
		return ""
	}
	data, err := json.Marshal(op.Payload)
	if err != nil {
		return ""
	}
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:16])
}
