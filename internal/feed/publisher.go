package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/codetrek/cloudsync/pkg/model"
)

const (
	// StreamName is the JetStream stream carrying applied operations.
	StreamName = "SYNC"

	subjectPrefix = "sync.ops"
)

// Publisher defines the interface for emitting applied outbox records to
// the change feed.
type Publisher interface {
	Publish(ctx context.Context, rec *model.OutboxRecord) error
}

// NatsPublisher implements Publisher using NATS JetStream.
type NatsPublisher struct {
	js jetstream.JetStream
}

func NewNatsPublisher(ctx context.Context, nc *nats.Conn) (*NatsPublisher, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, err
	}

	// Ensure the stream exists. Limits retention with an age cap: the feed
	// is a live tail, the outbox store is the durable replication log.
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamName,
		Subjects:  []string{subjectPrefix + ".>"},
		Storage:   jetstream.FileStorage,
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream: %w", err)
	}

	return &NatsPublisher{js: js}, nil
}

func (p *NatsPublisher) Publish(ctx context.Context, rec *model.OutboxRecord) error {
	subject := Subject(rec.Collection)

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(ctx, subject, data)
	return err
}

// Subject returns the feed subject for a collection. Collection names are
// opaque client input, so token separators are sanitized to keep the
// subject hierarchy intact.
func Subject(collection string) string {
	return subjectPrefix + "." + sanitizeToken(collection)
}

func sanitizeToken(token string) string {
	if token == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', '/', ' ':
			return '_'
		}
		return r
	}, token)
}

// NopPublisher is used when the NATS feed is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, rec *model.OutboxRecord) error {
	return nil
}
