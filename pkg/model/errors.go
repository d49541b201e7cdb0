package model

import "errors"

var (
	// ErrNotFound is returned when a document or outbox record is not found
	ErrNotFound = errors.New("not found")
	// ErrDuplicateOperation is returned when appending an outbox record whose
	// operationId already has an applied record
	ErrDuplicateOperation = errors.New("operation already applied")
	// ErrInvalidOperation is returned when an operation envelope fails validation
	ErrInvalidOperation = errors.New("invalid operation")
)
