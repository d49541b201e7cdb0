package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrek/cloudsync/internal/api"
	"github.com/codetrek/cloudsync/internal/config"
	"github.com/codetrek/cloudsync/internal/services"
	"github.com/codetrek/cloudsync/pkg/model"
)

func startManager(t *testing.T, cfg *config.Config) *services.Manager {
	t.Helper()

	manager := services.NewManager(cfg, services.Options{RunAPI: true})
	require.NoError(t, manager.Init(context.Background()))
	manager.Run()

	t.Cleanup(func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		manager.Shutdown(shutdownCtx)
	})

	waitForPort(t, cfg.API.Port)
	return manager
}

func waitForPort(t *testing.T, port int) {
	t.Helper()
	addr := fmt.Sprintf("localhost:%d", port)
	for i := 0; i < 50; i++ {
		conn, err := net.DialTimeout("tcp", addr, 100*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("port %d never came up", port)
}

func op(id, docID string, opType model.OpType, payload map[string]interface{}) model.Operation {
	return model.Operation{
		OperationID: id,
		Collection:  "bookings",
		DocumentID:  docID,
		OpType:      opType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
}

func TestSyncAPIIntegration(t *testing.T) {
	apiPort := 18082
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "cloudsync.db"),
		},
		API:  config.APIConfig{Port: apiPort},
		Sync: config.SyncConfig{PageSize: 200},
	}

	startManager(t, cfg)
	apiURL := fmt.Sprintf("http://localhost:%d", apiPort)

	push := func(t *testing.T, req api.PushRequest) api.PushResponse {
		t.Helper()
		body, _ := json.Marshal(req)
		resp, err := http.Post(apiURL+"/ops", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out api.PushResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out
	}

	batch := api.PushRequest{
		Origin: "clientA",
		Batch: []model.Operation{
			op("op1", "b1", model.OpInsert, map[string]interface{}{"name": "Alice", "guests": float64(2)}),
			op("op2", "b1", model.OpUpdate, map[string]interface{}{"guests": float64(3)}),
			op("op3", "b2", model.OpInsert, map[string]interface{}{"name": "Bob"}),
			op("op4", "b2", model.OpDelete, nil),
		},
	}

	var firstAcks []model.Ack

	t.Run("Push Batch", func(t *testing.T) {
		out := push(t, batch)
		assert.NotEmpty(t, out.BatchID)
		require.Len(t, out.Acks, 4)
		for i, ack := range out.Acks {
			assert.Equal(t, batch.Batch[i].OperationID, ack.OperationID)
			assert.Equal(t, model.StatusOK, ack.Status)
			assert.False(t, ack.CloudTs.IsZero())
		}
		firstAcks = out.Acks
	})

	t.Run("Resubmit Is Idempotent", func(t *testing.T) {
		out := push(t, batch)
		require.Len(t, out.Acks, 4)
		for i, ack := range out.Acks {
			assert.Equal(t, model.StatusDuplicate, ack.Status)
			assert.True(t, ack.CloudTs.Equal(firstAcks[i].CloudTs),
				"duplicate ack must carry the original cloudTs")
		}
	})

	t.Run("Document State", func(t *testing.T) {
		resp, err := http.Get(apiURL + "/docs/bookings/b1")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var doc struct {
			Fields map[string]interface{} `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&doc))
		assert.EqualValues(t, "Alice", doc.Fields["name"])
		assert.EqualValues(t, 3, doc.Fields["guests"])

		// b2 was deleted by op4.
		resp, err = http.Get(apiURL + "/docs/bookings/b2")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})

	t.Run("Pull From Epoch And Checkpoint", func(t *testing.T) {
		resp, err := http.Get(apiURL + "/pull?since=" + time.Time{}.Format(time.RFC3339Nano))
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var page api.PullResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
		require.Len(t, page.Updates, 4)
		for i, rec := range page.Updates {
			assert.Equal(t, batch.Batch[i].OperationID, rec.OperationID)
			assert.Equal(t, "clientA", rec.Origin)
			if i > 0 {
				assert.True(t, rec.CloudTs.After(page.Updates[i-1].CloudTs))
			}
		}

		// Pulling from the last checkpoint returns nothing new.
		since := page.Updates[3].CloudTs.Format(time.RFC3339Nano)
		resp, err = http.Get(apiURL + "/pull?since=" + since)
		require.NoError(t, err)
		defer resp.Body.Close()

		var tail api.PullResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&tail))
		assert.Empty(t, tail.Updates)
	})

	t.Run("Invalid Batch", func(t *testing.T) {
		resp, err := http.Post(apiURL+"/ops", "application/json", bytes.NewBufferString(`{"origin":"clientA","batch":[]}`))
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		var body map[string]string
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "Invalid batch", body["error"])
	})
}

func TestSyncAPIAuthIntegration(t *testing.T) {
	apiPort := 18083
	cfg := &config.Config{
		Storage: config.StorageConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "cloudsync.db"),
		},
		API:  config.APIConfig{Port: apiPort},
		Sync: config.SyncConfig{PageSize: 200},
		Auth: config.AuthConfig{
			Enabled:        true,
			PrivateKeyPath: filepath.Join(t.TempDir(), "cloudsync.pem"),
		},
	}

	manager := startManager(t, cfg)
	apiURL := fmt.Sprintf("http://localhost:%d", apiPort)

	body, _ := json.Marshal(api.PushRequest{
		Origin: "clientA",
		Batch:  []model.Operation{op("op1", "b1", model.OpInsert, map[string]interface{}{"name": "Alice"})},
	})

	t.Run("Rejects Missing Token", func(t *testing.T) {
		resp, err := http.Post(apiURL+"/ops", "application/json", bytes.NewReader(body))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("Accepts Matching Origin Token", func(t *testing.T) {
		token, err := manager.TokenService().GenerateOriginToken("clientA")
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodPost, apiURL+"/ops", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out api.PushResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		require.Len(t, out.Acks, 1)
		assert.Equal(t, model.StatusOK, out.Acks[0].Status)
	})

	t.Run("Rejects Foreign Origin", func(t *testing.T) {
		token, err := manager.TokenService().GenerateOriginToken("clientB")
		require.NoError(t, err)

		req, _ := http.NewRequest(http.MethodPost, apiURL+"/ops", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
