package model

import "time"

// RecordApplied is the status of every persisted outbox record. Failed
// applies are never recorded and duplicates resolve to the original
// record, so no other status reaches storage.
const RecordApplied = "applied"

// OutboxRecord is the durable, append-only trace of an applied Operation.
// CloudTs is server-assigned at the moment the operation was durably
// applied and is the pull cursor; records are never mutated after
// creation.
type OutboxRecord struct {
	Operation `bson:",inline"`

	CloudTs time.Time `json:"cloudTs" bson:"cloud_ts"`
	Status  string    `json:"status" bson:"status"`

	// PayloadHash is an audit digest of the payload as applied.
	PayloadHash string `json:"payloadHash,omitempty" bson:"payload_hash,omitempty"`
}

// Ack statuses returned per operation by the push endpoint.
const (
	StatusOK        = "ok"
	StatusDuplicate = "duplicate"
	StatusError     = "error"
)

// Ack is the per-operation acknowledgment returned by push.
type Ack struct {
	OperationID string    `json:"operationId"`
	Status      string    `json:"status"`
	CloudTs     time.Time `json:"cloudTs,omitzero"`
	Error       string    `json:"error,omitempty"`
}
