// Package memory implements the metadata cache in-process, for single-node
// deployments, development and tests. It mirrors the semantics of the redis
// implementation (TTL on auth entries, no TTL on storage entries) using
// jellydator/ttlcache for the auth namespace and a plain map for storage.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v2"

	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/cache/registry"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/storageobject"
)

func init() {
	registry.Register("memory", New)
}

type storageEntry struct {
	etag string
	size int64
}

// Cache is an in-process implementation of cache.Cache.
type Cache struct {
	mu      sync.RWMutex
	storage map[string]storageEntry

	auth *ttlcache.Cache
}

// New returns a fresh in-process cache. The options map is accepted for
// symmetry with the registry but is currently unused.
func New(_ map[string]interface{}) (cache.Cache, error) {
	auth := ttlcache.NewCache()
	auth.SetTTL(cache.AuthTTLSeconds * time.Second)
	return &Cache{
		storage: make(map[string]storageEntry),
		auth:    auth,
	}, nil
}

func (c *Cache) GetStorage(_ context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.storage[cache.StorageKey(so)]
	if !ok {
		return storageobject.StorageObject{}, errtypes.NotFound(so.Key())
	}
	so.Etag = e.etag
	so.Size = e.size
	return so, nil
}

func (c *Cache) SetStorage(_ context.Context, so storageobject.StorageObject) error {
	if so.Etag == "" {
		return errtypes.BadRequest("no etag set on storage object")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.storage[cache.StorageKey(so)] = storageEntry{etag: so.Etag, size: so.Size}
	return nil
}

func (c *Cache) InvalidateStorage(_ context.Context, so storageobject.StorageObject) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.storage, cache.StorageKey(so))
	return nil
}

func (c *Cache) GetAuth(_ context.Context, header string) (cache.User, error) {
	return c.getUser(header)
}

func (c *Cache) GetUser(_ context.Context, userID int64) (cache.User, error) {
	return c.getUser(cache.UserKey(userID))
}

func (c *Cache) getUser(key string) (cache.User, error) {
	v, err := c.auth.Get(key)
	if err != nil {
		return cache.User{}, errtypes.NotFound(key)
	}
	u, ok := v.(cache.User)
	if !ok {
		return cache.User{}, errtypes.NotFound(key)
	}
	return u, nil
}

func (c *Cache) SetAuth(_ context.Context, header string, u cache.User) error {
	if err := c.auth.Set(header, u); err != nil {
		return err
	}
	return c.auth.Set(cache.UserKey(u.UserID), u)
}

func (c *Cache) Flush(_ context.Context) error {
	c.mu.Lock()
	c.storage = make(map[string]storageEntry)
	c.mu.Unlock()
	return c.auth.Purge()
}
