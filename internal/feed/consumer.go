package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codetrek/cloudsync/pkg/model"
)

// Consumer bridges the JetStream feed into the in-process Hub so every
// API replica can serve live stream subscribers regardless of which
// replica applied the operation.
type Consumer struct {
	js  jetstream.JetStream
	hub *Hub
}

func NewConsumer(nc *nats.Conn, hub *Hub) (*Consumer, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}
	return &Consumer{js: js, hub: hub}, nil
}

// Start begins consuming feed messages. It blocks until the context is
// cancelled. Each replica reads the full stream from now with its own
// ephemeral ordered consumer; no acks, no shared cursor.
func (c *Consumer) Start(ctx context.Context) error {
	consumer, err := c.js.OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{subjectPrefix + ".>"},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create feed consumer: %w", err)
	}

	iter, err := consumer.Messages()
	if err != nil {
		return fmt.Errorf("failed to create message iterator: %w", err)
	}

	// Next blocks, so unblock it by stopping the iterator on cancel.
	go func() {
		<-ctx.Done()
		iter.Stop()
	}()

	log.Println("Feed consumer started, relaying applied operations...")

	for {
		msg, err := iter.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			continue
		}

		var rec model.OutboxRecord
		if err := json.Unmarshal(msg.Data(), &rec); err != nil {
			log.Printf("[Error] Invalid feed payload on %s: %v", msg.Subject(), err)
			continue
		}
		c.hub.Broadcast(rec)
	}
}
