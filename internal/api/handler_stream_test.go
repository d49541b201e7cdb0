package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStream_DeliversAppliedOperations(t *testing.T) {
	s := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		s.ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the handler to subscribe before applying anything.
	time.Sleep(100 * time.Millisecond)

	doPush(t, s, pushBody(t, "clientA",
		operationJSON("op1", "bookings", "b1", "insert", map[string]interface{}{"name": "Alice"}),
	))

	time.Sleep(100 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	assert.Contains(t, body, "data: ")
	assert.Contains(t, body, `"operationId":"op1"`)
	assert.Contains(t, body, `"documentId":"b1"`)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
}
