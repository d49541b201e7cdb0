package feed

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codetrek/cloudsync/pkg/model"
)

func record(id string) model.OutboxRecord {
	return model.OutboxRecord{
		Operation: model.Operation{
			OperationID: id,
			Origin:      "clientA",
			Collection:  "bookings",
			DocumentID:  "b1",
			OpType:      model.OpUpdate,
		},
		CloudTs: time.Now().UTC(),
		Status:  model.RecordApplied,
	}
}

func TestHub_BroadcastReachesAllSubscribers(t *testing.T) {
	hub := NewHub()

	ch1, cancel1 := hub.Subscribe(4)
	defer cancel1()
	ch2, cancel2 := hub.Subscribe(4)
	defer cancel2()

	hub.Broadcast(record("op1"))

	select {
	case rec := <-ch1:
		assert.Equal(t, "op1", rec.OperationID)
	case <-time.After(time.Second):
		t.Fatal("subscriber 1 did not receive the record")
	}
	select {
	case rec := <-ch2:
		assert.Equal(t, "op1", rec.OperationID)
	case <-time.After(time.Second):
		t.Fatal("subscriber 2 did not receive the record")
	}
}

func TestHub_SlowSubscriberIsSkipped(t *testing.T) {
	hub := NewHub()

	slow, cancelSlow := hub.Subscribe(1)
	defer cancelSlow()
	fast, cancelFast := hub.Subscribe(4)
	defer cancelFast()

	// The slow subscriber's buffer fills but Broadcast never blocks.
	hub.Broadcast(record("op1"))
	hub.Broadcast(record("op2"))
	hub.Broadcast(record("op3"))

	assert.Len(t, slow, 1)
	require.Len(t, fast, 3)
	assert.Equal(t, "op1", (<-fast).OperationID)
	assert.Equal(t, "op2", (<-fast).OperationID)
	assert.Equal(t, "op3", (<-fast).OperationID)
}

func TestHub_CancelClosesChannel(t *testing.T) {
	hub := NewHub()

	ch, cancel := hub.Subscribe(1)
	cancel()
	cancel() // idempotent

	_, open := <-ch
	assert.False(t, open)

	// Broadcasting after cancel must not panic on the removed channel.
	hub.Broadcast(record("op1"))
}

func TestHubPublisher(t *testing.T) {
	hub := NewHub()
	ch, cancel := hub.Subscribe(1)
	defer cancel()

	rec := record("op1")
	require.NoError(t, HubPublisher{Hub: hub}.Publish(context.Background(), &rec))
	assert.Equal(t, "op1", (<-ch).OperationID)
}

func TestSubject(t *testing.T) {
	assert.Equal(t, "sync.ops.bookings", Subject("bookings"))
	assert.Equal(t, "sync.ops.my_coll", Subject("my.coll"))
	assert.Equal(t, "sync.ops.a_b_c_d_e", Subject("a.b*c>d e"))
	assert.Equal(t, "sync.ops._", Subject(""))
}
