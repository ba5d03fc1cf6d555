// Package redis implements the metadata cache against Redis using go-redis.
// Storage entries are stored as hashes with no expiration; auth entries are
// stored as hashes under both the raw header and the "user-{id}" key, each
// with a 60s TTL, mirroring the original RedisCache's hmset/hmget/expire
// sequence.
package redis

import (
	"context"
	"strconv"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/cache/registry"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/storageobject"
)

func init() {
	registry.Register("redis", New)
}

type config struct {
	Address  string `mapstructure:"address"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{Address: "localhost:6379"}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "redis cache: error decoding config")
	}
	return c, nil
}

// Cache is a Redis-backed implementation of cache.Cache.
type Cache struct {
	client *goredis.Client
}

// New returns a Redis-backed metadata cache.
func New(m map[string]interface{}) (cache.Cache, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     c.Address,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
	})
	return &Cache{client: client}, nil
}

func (c *Cache) GetStorage(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error) {
	key := cache.StorageKey(so)
	vals, err := c.client.HMGet(ctx, key, "etag", "size").Result()
	if err != nil {
		return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
	}
	if vals[0] == nil || vals[1] == nil {
		return storageobject.StorageObject{}, errtypes.NotFound(so.Key())
	}
	size, err := strconv.ParseInt(vals[1].(string), 10, 64)
	if err != nil {
		return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
	}
	so.Etag = vals[0].(string)
	so.Size = size
	return so, nil
}

func (c *Cache) SetStorage(ctx context.Context, so storageobject.StorageObject) error {
	if so.Etag == "" {
		return errtypes.BadRequest("no etag set on storage object")
	}
	key := cache.StorageKey(so)
	return c.client.HSet(ctx, key, "etag", so.Etag, "size", so.Size).Err()
}

func (c *Cache) InvalidateStorage(ctx context.Context, so storageobject.StorageObject) error {
	return c.client.Del(ctx, cache.StorageKey(so)).Err()
}

func (c *Cache) getUser(ctx context.Context, key string) (cache.User, error) {
	vals, err := c.client.HMGet(ctx, key, "user_id", "active", "block_quota", "monthly_traffic_quota").Result()
	if err != nil {
		return cache.User{}, errtypes.StoreFatal(err.Error())
	}
	if vals[0] == nil {
		return cache.User{}, errtypes.NotFound(key)
	}
	userID, _ := strconv.ParseInt(asString(vals[0]), 10, 64)
	blockQuota, _ := strconv.ParseInt(asString(vals[2]), 10, 64)
	trafficQuota, _ := strconv.ParseInt(asString(vals[3]), 10, 64)
	return cache.User{
		UserID:              userID,
		Active:              asString(vals[1]) == "1",
		BlockQuota:          blockQuota,
		MonthlyTrafficQuota: trafficQuota,
	}, nil
}

func asString(v interface{}) string {
	if v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (c *Cache) GetAuth(ctx context.Context, header string) (cache.User, error) {
	return c.getUser(ctx, header)
}

func (c *Cache) GetUser(ctx context.Context, userID int64) (cache.User, error) {
	return c.getUser(ctx, cache.UserKey(userID))
}

func (c *Cache) SetAuth(ctx context.Context, header string, u cache.User) error {
	active := "0"
	if u.Active {
		active = "1"
	}
	fields := map[string]interface{}{
		"user_id":                strconv.FormatInt(u.UserID, 10),
		"active":                 active,
		"block_quota":            strconv.FormatInt(u.BlockQuota, 10),
		"monthly_traffic_quota":  strconv.FormatInt(u.MonthlyTrafficQuota, 10),
	}

	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, header, fields)
	pipe.Expire(ctx, header, cache.AuthTTLSeconds*time.Second)
	userKey := cache.UserKey(u.UserID)
	pipe.HSet(ctx, userKey, fields)
	pipe.Expire(ctx, userKey, cache.AuthTTLSeconds*time.Second)
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Cache) Flush(ctx context.Context) error {
	return c.client.FlushDB(ctx).Err()
}
