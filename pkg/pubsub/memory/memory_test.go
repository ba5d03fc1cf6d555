package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/qabel/blockserver/pkg/pubsub/memory"
)

func TestPublishDeliversToExactSubscriber(t *testing.T) {
	bus, err := memory.New(nil)
	require.NoError(t, err)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), "storage_abc/file.txt", false)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(context.Background(), "storage_abc/file.txt", map[string]interface{}{"action": "upload"}))

	select {
	case msg := <-sub.Messages():
		require.Equal(t, "upload", msg["action"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestPublishDoesNotLeakAcrossChannels(t *testing.T) {
	bus, err := memory.New(nil)
	require.NoError(t, err)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), "storage_abc/file.txt", false)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(context.Background(), "storage_def/other.txt", map[string]interface{}{"action": "upload"}))

	select {
	case msg := <-sub.Messages():
		t.Fatalf("unexpected message delivered: %v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWildcardSubscriptionMatchesPrefixGlob(t *testing.T) {
	bus, err := memory.New(nil)
	require.NoError(t, err)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), "storage_abc/*", true)
	require.NoError(t, err)
	defer sub.Close()

	require.NoError(t, bus.Publish(context.Background(), "storage_abc/file.txt", map[string]interface{}{"action": "delete"}))

	select {
	case msg := <-sub.Messages():
		require.Equal(t, "delete", msg["action"])
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestCloseStopsDelivery(t *testing.T) {
	bus, err := memory.New(nil)
	require.NoError(t, err)
	defer bus.Close()

	sub, err := bus.Subscribe(context.Background(), "storage_abc/file.txt", false)
	require.NoError(t, err)
	require.NoError(t, sub.Close())

	_, ok := <-sub.Messages()
	require.False(t, ok)
}
