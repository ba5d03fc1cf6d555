package local_test

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/storageobject"
	"github.com/qabel/blockserver/pkg/store"
	"github.com/qabel/blockserver/pkg/store/local"
)

func newDriver(t *testing.T) store.Driver {
	t.Helper()
	d, err := local.New(map[string]interface{}{"base_dir": t.TempDir()})
	require.NoError(t, err)
	return d
}

func spool(t *testing.T, content string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "spool")
	require.NoError(t, err)
	_, err = f.WriteString(content)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func TestStoreThenRetrieveRoundTrip(t *testing.T) {
	drv := newDriver(t)
	ctx := context.Background()

	so := storageobject.New("prefix1", "block/a")
	so.LocalFile = spool(t, "hello world")

	stored, delta, err := drv.Store(ctx, so)
	require.NoError(t, err)
	assert.Equal(t, int64(11), delta)
	assert.NotEmpty(t, stored.Etag)

	got, err := drv.Retrieve(ctx, storageobject.New("prefix1", "block/a"))
	require.NoError(t, err)
	defer got.Body.Close()

	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
	assert.Equal(t, stored.Etag, got.Etag)
}

func TestRetrieveMissingIsNotFound(t *testing.T) {
	drv := newDriver(t)
	_, err := drv.Retrieve(context.Background(), storageobject.New("p", "missing"))
	assert.True(t, isNotFound(err))
}

func isNotFound(err error) bool {
	_, ok := err.(errtypes.IsNotFound)
	return ok
}

func TestRetrieveWithMatchingEtagIsNotModified(t *testing.T) {
	drv := newDriver(t)
	ctx := context.Background()

	so := storageobject.New("p", "f")
	so.LocalFile = spool(t, "content")
	stored, _, err := drv.Store(ctx, so)
	require.NoError(t, err)

	_, err = drv.Retrieve(ctx, storageobject.New("p", "f").WithEtag(stored.Etag))
	if _, ok := err.(errtypes.IsNotModified); !ok {
		t.Fatalf("expected IsNotModified, got %v", err)
	}
}

func TestDeleteMissingIsIdempotent(t *testing.T) {
	drv := newDriver(t)
	size, err := drv.Delete(context.Background(), storageobject.New("p", "missing"))
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestOverwriteSizeDelta(t *testing.T) {
	drv := newDriver(t)
	ctx := context.Background()

	so := storageobject.New("p", "f")
	so.LocalFile = spool(t, strings.Repeat("a", 100))
	_, _, err := drv.Store(ctx, so)
	require.NoError(t, err)

	so2 := storageobject.New("p", "f")
	so2.LocalFile = spool(t, strings.Repeat("b", 40))
	_, delta, err := drv.Store(ctx, so2)
	require.NoError(t, err)
	assert.Equal(t, int64(-60), delta)
}
