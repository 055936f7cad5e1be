//go:build integration

package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"medvault/internal/consent"
	"medvault/internal/notify"
	id "medvault/pkg/domain"
	"medvault/pkg/testutil/containers"
)

func TestKafkaSinkPublishesDecisions(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	kc := containers.NewKafkaContainer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const topic = "medvault.decisions.test"
	sink, err := notify.NewKafkaSink(ctx, []string{kc.Broker}, topic)
	require.NoError(t, err)
	defer sink.Close()

	grantID := id.GrantID(uuid.New())
	decision := consent.Decision{
		RequestID: id.RequestID(uuid.New()),
		GrantID:   grantID,
		Outcome:   consent.OutcomeApproved,
		ItemIDs:   []id.ItemID{id.ItemID(uuid.New())},
		DecidedAt: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, sink.Publish(ctx, decision))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(kc.Broker),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	defer consumer.Close()

	fetches := consumer.PollFetches(ctx)
	require.NoError(t, fetches.Err())
	records := fetches.Records()
	require.Len(t, records, 1)

	require.Equal(t, grantID.String(), string(records[0].Key),
		"records are keyed by grant id so a grant's lifecycle stays ordered")

	var payload map[string]any
	require.NoError(t, json.Unmarshal(records[0].Value, &payload))
	require.Equal(t, "approved", payload["outcome"])
	require.Equal(t, decision.RequestID.String(), payload["request_id"])
	require.Equal(t, grantID.String(), payload["grant_id"])
}
