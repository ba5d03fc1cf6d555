package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/cache/memory"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/storageobject"
)

func TestStorageRoundTrip(t *testing.T) {
	c, err := memory.New(nil)
	require.NoError(t, err)
	ctx := context.Background()

	so := storageobject.New("p", "f")
	so.Etag = "abc"
	so.Size = 42

	require.NoError(t, c.SetStorage(ctx, so))

	got, err := c.GetStorage(ctx, storageobject.New("p", "f"))
	require.NoError(t, err)
	assert.Equal(t, "abc", got.Etag)
	assert.Equal(t, int64(42), got.Size)
}

func TestStorageMissingIsNotFound(t *testing.T) {
	c, err := memory.New(nil)
	require.NoError(t, err)
	_, err = c.GetStorage(context.Background(), storageobject.New("p", "missing"))
	_, ok := err.(errtypes.IsNotFound)
	assert.True(t, ok)
}

func TestSetStorageRequiresEtag(t *testing.T) {
	c, err := memory.New(nil)
	require.NoError(t, err)
	err = c.SetStorage(context.Background(), storageobject.New("p", "f"))
	assert.Error(t, err)
}

func TestAuthRoundTripByHeaderAndUserID(t *testing.T) {
	c, err := memory.New(nil)
	require.NoError(t, err)
	ctx := context.Background()

	u := cache.User{UserID: 7, Active: true, BlockQuota: 100, MonthlyTrafficQuota: 200}
	require.NoError(t, c.SetAuth(ctx, "Token abc", u))

	byHeader, err := c.GetAuth(ctx, "Token abc")
	require.NoError(t, err)
	assert.Equal(t, u, byHeader)

	byID, err := c.GetUser(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, u, byID)
}

func TestInvalidateStorage(t *testing.T) {
	c, err := memory.New(nil)
	require.NoError(t, err)
	ctx := context.Background()

	so := storageobject.New("p", "f")
	so.Etag, so.Size = "abc", 1
	require.NoError(t, c.SetStorage(ctx, so))
	require.NoError(t, c.InvalidateStorage(ctx, so))

	_, err = c.GetStorage(ctx, so)
	assert.Error(t, err)
}
