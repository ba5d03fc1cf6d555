// Package store defines the object store driver contract. A driver persists,
// retrieves, stats and deletes opaque blobs keyed by a StorageObject's
// (prefix, file_path) pair; nothing in this package, nor in its concrete
// implementations, knows about quotas, the usage ledger or HTTP.
package store

import (
	"context"

	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/storageobject"
)

// Driver stores and retrieves opaque blobs.
type Driver interface {
	// Store persists the file at so.LocalFile and returns the stored object
	// with Etag and Size populated, plus the size delta versus whatever was
	// previously stored at the same key (0 if nothing was). The local driver
	// also accepts so.Body when LocalFile is empty; the s3 driver reads only
	// LocalFile.
	Store(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, int64, error)

	// Retrieve opens the object for reading. If so.Etag is set it is treated
	// as an If-None-Match precondition: a match returns errtypes.NotModified
	// with no Body. A missing object returns errtypes.NotFound.
	Retrieve(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error)

	// Meta returns so with Etag and Size populated without transferring the
	// body. A missing object returns errtypes.NotFound.
	Meta(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error)

	// Delete removes the object and returns the number of bytes that were
	// freed (0 if the object did not exist). Deleting a missing object is not
	// an error.
	Delete(ctx context.Context, so storageobject.StorageObject) (int64, error)
}

// NewFunc is the function a driver implementation registers at init time.
type NewFunc func(options map[string]interface{}) (Driver, error)

// CacheWirer is implemented by drivers that write their metadata through to
// a shared cache.Cache rather than hitting the backing store on every
// lookup. Wired once at startup, after both the store and cache registries
// have produced their instances.
type CacheWirer interface {
	WithCache(cache.Cache)
}
