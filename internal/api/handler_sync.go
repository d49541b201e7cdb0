package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/codetrek/cloudsync/internal/auth"
	"github.com/codetrek/cloudsync/pkg/model"
)

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Batch) == 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Invalid batch"})
		return
	}

	// When auth is on, the claimed origin must match the token subject.
	if subject := auth.OriginFromContext(r.Context()); subject != "" && req.Origin != subject {
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "Origin does not match token subject"})
		return
	}

	batchID := uuid.New().String()

	// Operations are applied sequentially in array order: later operations
	// in a batch may depend on earlier ones. There is no cross-operation
	// transaction; a failure mid-batch leaves earlier effects applied and
	// later operations are still attempted.
	acks := make([]model.Ack, 0, len(req.Batch))
	failures := 0
	for _, op := range req.Batch {
		if op.Origin == "" {
			op.Origin = req.Origin
		}
		ack := s.engine.Apply(r.Context(), op)
		if ack.Status == model.StatusError {
			failures++
		}
		acks = append(acks, ack)
	}

	if failures > 0 {
		log.Printf("[Sync] Push batch=%s origin=%s ops=%d failures=%d", batchID, req.Origin, len(req.Batch), failures)
	}

	writeJSON(w, http.StatusOK, PushResponse{BatchID: batchID, Acks: acks})
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	// An absent or unparsable checkpoint means "from the beginning".
	var since time.Time
	if raw := r.URL.Query().Get("since"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			since = parsed
		}
	}

	updates, err := s.engine.Pull(r.Context(), since)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, PullResponse{Updates: updates})
}

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	collection := r.PathValue("collection")
	id := r.PathValue("id")

	if err := validateCollection(collection); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validateDocumentID(id); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	doc, err := s.engine.GetDocument(r.Context(), collection, id)
	if err != nil {
		if errors.Is(err, model.ErrNotFound) {
			http.Error(w, "Document not found", http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, doc)
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
