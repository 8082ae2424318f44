//go:build integration

package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"runadata/pkg/testutil/containers"
)

func TestKafkaSink_Integration(t *testing.T) {
	rp := containers.NewRedpandaContainer(t)
	ctx := context.Background()

	const topic = "runadata.audit.test"
	require.NoError(t, rp.CreateTopic(ctx, topic))

	sink, err := NewKafkaSink(rp.Brokers, topic)
	require.NoError(t, err)
	t.Cleanup(sink.Close)

	want := Event{
		Category:   CategorySecurity,
		Timestamp:  time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC),
		TenantID:   "acme",
		ActorID:    "admin-1",
		Action:     ActionReidentApproved,
		ResourceID: "req-1",
		Decision:   "granted",
		Success:    true,
	}
	require.NoError(t, sink.Append(ctx, want))

	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(rp.Brokers...),
		kgo.ConsumeTopics(topic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	require.NoError(t, err)
	t.Cleanup(consumer.Close)

	fetchCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	fetches := consumer.PollFetches(fetchCtx)
	require.NoError(t, fetches.Err())

	records := fetches.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "acme", string(records[0].Key), "events are keyed by tenant")

	var got Event
	require.NoError(t, json.Unmarshal(records[0].Value, &got))
	assert.Equal(t, want.Action, got.Action)
	assert.Equal(t, want.Decision, got.Decision)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))
}
