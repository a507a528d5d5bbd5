// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Genos Contributors

package events_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/genos-dev/genos/internal/events"
)

type recorder struct{ got []events.Event }

func (r *recorder) Emit(_ context.Context, e events.Event) { r.got = append(r.got, e) }

func TestMultiEmitter_FansOutInOrder(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := events.NewMultiEmitter(a, events.Nop{}, b)

	m.Emit(context.Background(), events.Event{Type: events.TypeAIGenerated, OrganizationID: "org-a"})

	require.Len(t, a.got, 1)
	require.Len(t, b.got, 1)
	assert.Equal(t, a.got[0], b.got[0])
	assert.False(t, a.got[0].Timestamp.IsZero(), "timestamp is stamped once before fan-out")
}

func TestLogEmitter_WritesStructuredRecord(t *testing.T) {
	var buf bytes.Buffer
	e := events.NewLogEmitter(slog.New(slog.NewJSONHandler(&buf, nil)))

	e.Emit(context.Background(), events.Event{
		Type:           events.TypeTenantViolation,
		OrganizationID: "org-a",
		Data:           map[string]any{"table_name": "brands"},
	})

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "event", rec["msg"])
	assert.Equal(t, events.TypeTenantViolation, rec["type"])
	assert.Equal(t, "org-a", rec["organization_id"])
}

func TestPubSubEmitter_Publishes(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	admin, err := pubsub.NewClient(ctx, "genos-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	_, err = admin.CreateTopic(ctx, "genos-events")
	require.NoError(t, err)

	e, err := events.NewPubSubEmitter(ctx, "genos-test", "genos-events", option.WithGRPCConn(conn))
	require.NoError(t, err)

	e.Emit(ctx, events.Event{
		Type:           events.TypeScheduleOptimized,
		OrganizationID: "org-a",
		Data:           map[string]any{"method": "heuristic"},
	})
	require.NoError(t, e.Close())

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, events.TypeScheduleOptimized, msgs[0].Attributes["type"])
	assert.Equal(t, "org-a", msgs[0].Attributes["organization_id"])

	var got events.Event
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	assert.Equal(t, "heuristic", got.Data["method"])
}

func TestNewPubSubEmitter_RequiresTopic(t *testing.T) {
	_, err := events.NewPubSubEmitter(context.Background(), "genos-test", "")
	require.Error(t, err)
}
