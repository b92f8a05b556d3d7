package eventport

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.com/baseline-2025.net/internal/adapter/logging"
	"gitlab.com/baseline-2025.net/internal/domain"
)

func TestPublishedEventReachesSubscriber(t *testing.T) {
	s := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	defer client.Close()
	ctx := context.Background()

	sub := client.Subscribe(ctx, "pipeline-events")
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	batchID := uuid.New()
	publisher := NewPublisher(client, "pipeline-events", logging.NewNopLogger())
	require.NoError(t, publisher.Notify(ctx, domain.Event{
		Type:          domain.EventBatchSealed,
		TeamSlug:      "acme",
		SuiteSlug:     "web",
		BatchID:       &batchID,
		Version:       "v1",
		SubscriberIDs: []string{"alice"},
		OccurredAt:    time.Now().UTC(),
	}))

	select {
	case msg := <-sub.Channel():
		var got domain.Event
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, domain.EventBatchSealed, got.Type)
		assert.Equal(t, batchID, *got.BatchID)
		assert.Equal(t, []string{"alice"}, got.SubscriberIDs)
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
}
