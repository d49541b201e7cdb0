package api

import "github.com/codetrek/cloudsync/pkg/model"

// PushRequest is one client's batch of offline operations.
type PushRequest struct {
	Origin string            `json:"origin"`
	Batch  []model.Operation `json:"batch"`
}

// PushResponse carries one ack per submitted operation, in input order.
// Callers must inspect acks per-operation; the HTTP status says nothing
// about individual outcomes.
type PushResponse struct {
	BatchID string      `json:"batchId"`
	Acks    []model.Ack `json:"acks"`
}

// PullResponse is a page of outbox records, ascending by cloudTs.
type PullResponse struct {
	Updates []model.OutboxRecord `json:"updates"`
}

type errorResponse struct {
	Error string `json:"error"`
}
