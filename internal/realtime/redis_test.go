package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisBrokerRoundTrip(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := context.Background()
	publisher := NewRedisBroker(client, "vibehub:changes")
	receiver := NewRedisBroker(client, "vibehub:changes")
	require.NoError(t, receiver.Start(ctx))
	defer receiver.Close()

	got := make(chan Change, 1)
	_, err := receiver.Subscribe(Eq("wallets", "user_id", "u1"), func(ch Change) { got <- ch })
	require.NoError(t, err)
	assert.Equal(t, 1, receiver.ActiveSubscriptions())

	require.NoError(t, publisher.Publish(ctx, Change{
		Table: "wallets",
		Type:  EventUpdate,
		New:   map[string]interface{}{"user_id": "u1", "balance": 40},
		Old:   map[string]interface{}{"user_id": "u1", "balance": 50},
	}))

	select {
	case ch := <-got:
		assert.Equal(t, "u1", ch.RecordID())
		assert.Equal(t, EventUpdate, ch.Type)
		assert.Equal(t, float64(40), ch.New["balance"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}
}

func TestDecodeNotification(t *testing.T) {
	ch, err := DecodeNotification(`{"table":"posts","type":"DELETE","old":{"id":"p1"},"at":"2024-05-01T10:00:00+00:00"}`)
	require.NoError(t, err)
	assert.Equal(t, "posts", ch.Table)
	assert.Equal(t, EventDelete, ch.Type)
	assert.Equal(t, "p1", ch.RecordID())

	_, err = DecodeNotification(`{"type":"INSERT"}`)
	assert.Error(t, err)
	_, err = DecodeNotification(`{"table":"posts","type":"TRUNCATE"}`)
	assert.Error(t, err)
	_, err = DecodeNotification(`not json`)
	assert.Error(t, err)
}
