// Package cache defines the metadata cache contract: a short-lived mapping
// from object keys to (etag, size) and from auth tokens/user ids to User
// records.
package cache

import (
	"context"
	"strconv"

	"github.com/qabel/blockserver/pkg/storageobject"
)

// User mirrors the subset of identity the remote user service returns,
// cached alongside the token that resolved it.
type User struct {
	UserID              int64
	Active              bool
	BlockQuota          int64
	MonthlyTrafficQuota int64
}

// Cache is the metadata cache contract shared by the memory and redis
// implementations.
type Cache interface {
	// GetStorage returns so with Etag/Size populated, or errtypes.NotFound.
	GetStorage(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error)
	// SetStorage write-through caches so, which must carry Etag and Size.
	SetStorage(ctx context.Context, so storageobject.StorageObject) error
	// InvalidateStorage drops any cached entry for so's key.
	InvalidateStorage(ctx context.Context, so storageobject.StorageObject) error

	// GetAuth returns the User cached for the given Authorization header
	// value, or errtypes.NotFound.
	GetAuth(ctx context.Context, header string) (User, error)
	// GetUser returns the User cached for the given user id, or
	// errtypes.NotFound.
	GetUser(ctx context.Context, userID int64) (User, error)
	// SetAuth write-through caches u under both the header and the
	// "user-{id}" key, each with a 60s TTL.
	SetAuth(ctx context.Context, header string, u User) error

	// Flush clears the entire cache. Used by tests.
	Flush(ctx context.Context) error
}

// NewFunc is the function a cache implementation registers at init time.
type NewFunc func(options map[string]interface{}) (Cache, error)

// AuthTTLSeconds is the TTL applied to cached User records.
const AuthTTLSeconds = 60

// StorageKey returns the cache key for an object's metadata entry.
func StorageKey(so storageobject.StorageObject) string {
	return "storage_" + so.Key()
}

// UserKey returns the cache key for a user's record, addressed by id.
func UserKey(userID int64) string {
	return "user-" + strconv.FormatInt(userID, 10)
}
