// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	genoserr "github.com/genos-dev/genos/pkg/errors"
)

const publishTimeout = 10 * time.Second

// PubSubEmitter publishes events as JSON messages on a Pub/Sub topic.
// Publishing happens in the background; Close waits for in-flight
// messages.
type PubSubEmitter struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	wg     sync.WaitGroup
}

// NewPubSubEmitter connects to projectID and binds topicID. The topic must
// already exist.
func NewPubSubEmitter(ctx context.Context, projectID, topicID string, opts ...option.ClientOption) (*PubSubEmitter, error) {
	if projectID == "" || topicID == "" {
		return nil, genoserr.New(genoserr.CodeConfigValidateInvalidValue, "pubsub emitter requires project_id and topic")
	}
	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, genoserr.Wrap(err, genoserr.CodeEventsFailure, "creating pubsub client")
	}
	return &PubSubEmitter{
		client: client,
		topic:  client.Topic(topicID),
	}, nil
}

func (e *PubSubEmitter) Emit(ctx context.Context, event Event) {
	event = stamp(event)
	b, err := json.Marshal(event)
	if err != nil {
		slog.Warn("pubsub event marshal failed", "type", event.Type, "error", err)
		return
	}

	// The request context may end before the publish is acknowledged.
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	res := e.topic.Publish(pubCtx, &pubsub.Message{
		Data: b,
		Attributes: map[string]string{
			"type":            event.Type,
			"organization_id": event.OrganizationID,
		},
	})

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		defer cancel()
		if _, err := res.Get(pubCtx); err != nil {
			slog.Warn("pubsub publish failed", "type", event.Type, "error", err)
		}
	}()
}

// Close flushes pending messages and releases the client.
func (e *PubSubEmitter) Close() error {
	e.wg.Wait()
	e.topic.Stop()
	if err := e.client.Close(); err != nil {
		return genoserr.Wrap(err, genoserr.CodeEventsFailure, "closing pubsub client")
	}
	return nil
}
