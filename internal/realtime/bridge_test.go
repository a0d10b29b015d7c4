package realtime

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBridgeCloseReleasesSubscriptions(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	bridge := Open(b, "feed:home")
	require.NoError(t, bridge.OnInsert(Table("posts"), func(Change) {}))
	require.NoError(t, bridge.OnDelete(Table("posts"), func(Change) {}))
	assert.Equal(t, 2, bridge.Subscriptions())
	assert.Equal(t, 2, b.ActiveSubscriptions())

	closed := false
	bridge.OnClose(func() { closed = true })
	bridge.Close()
	bridge.Close()

	assert.True(t, closed)
	assert.True(t, bridge.Closed())
	assert.Equal(t, 0, b.ActiveSubscriptions())
	assert.ErrorIs(t, bridge.On(Table("posts"), func(Change) {}), ErrBridgeClosed)
}

func TestBridgeNoHandlerAfterClose(t *testing.T) {
	b := NewMemoryBroker()
	defer b.Close()

	var calls atomic.Int32
	entered := make(chan struct{})
	release := make(chan struct{})

	bridge := Open(b, "chat:p1")
	require.NoError(t, bridge.On(Eq("collab_messages", "post_id", "p1"), func(Change) {
		if calls.Add(1) == 1 {
			close(entered)
			<-release
		}
	}))

	ctx := context.Background()
	require.NoError(t, b.Publish(ctx, insertChange("collab_messages", "m1", "post_id", "p1")))
	<-entered

	closeDone := make(chan struct{})
	go func() {
		bridge.Close()
		close(closeDone)
	}()

	select {
	case <-closeDone:
		t.Fatal("Close returned while a handler was running")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	<-closeDone

	require.NoError(t, b.Publish(ctx, insertChange("collab_messages", "m2", "post_id", "p1")))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), calls.Load())
}
