// Package s3 implements an object store driver against an S3-compatible
// endpoint using minio-go.
package s3

import (
	"context"
	"os"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/storageobject"
	"github.com/qabel/blockserver/pkg/store"
	"github.com/qabel/blockserver/pkg/store/registry"
)

func init() {
	registry.Register("s3", New)
}

type config struct {
	Endpoint        string `mapstructure:"endpoint"`
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

func (c *config) init() {
	if c.Region == "" {
		c.Region = "eu-west-1"
	}
	if c.Bucket == "" {
		c.Bucket = "qabel"
	}
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "s3: error decoding config")
	}
	c.init()
	return c, nil
}

type driver struct {
	client *minio.Client
	bucket string
	cache  cache.Cache
}

// New returns an object store driver backed by an S3-compatible endpoint.
func New(m map[string]interface{}) (store.Driver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}

	client, err := minio.New(c.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(c.AccessKeyID, c.SecretAccessKey, ""),
		Secure: c.UseSSL,
		Region: c.Region,
	})
	if err != nil {
		return nil, errors.Wrap(err, "s3: error creating client")
	}

	return &driver{client: client, bucket: c.Bucket}, nil
}

// WithCache attaches the shared metadata cache this driver writes through
// to and invalidates against. Satisfies store.CacheWirer.
func (d *driver) WithCache(c cache.Cache) {
	d.cache = c
}

func (d *driver) statSize(ctx context.Context, key string) (int64, error) {
	info, err := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return 0, nil
		}
		return 0, errtypes.StoreFatal(err.Error())
	}
	return info.Size, nil
}

// oldSize looks up so's current size, preferring the cache over a
// StatObject round-trip.
func (d *driver) oldSize(ctx context.Context, so storageobject.StorageObject) (int64, error) {
	if d.cache != nil {
		if cached, err := d.cache.GetStorage(ctx, so); err == nil {
			return cached.Size, nil
		}
	}
	return d.statSize(ctx, so.Key())
}

func (d *driver) Store(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, int64, error) {
	key := so.Key()

	oldSize, err := d.oldSize(ctx, so)
	if err != nil {
		return storageobject.StorageObject{}, 0, err
	}

	f, err := os.Open(so.LocalFile)
	if err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}

	info, err := d.client.PutObject(ctx, d.bucket, key, f, fi.Size(), minio.PutObjectOptions{})
	if err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}

	so.Etag = info.ETag
	so.Size = info.Size
	if d.cache != nil {
		_ = d.cache.SetStorage(ctx, so)
	}
	return so, info.Size - oldSize, nil
}

func (d *driver) Retrieve(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error) {
	key := so.Key()

	opts := minio.GetObjectOptions{}
	if so.Etag != "" {
		if err := opts.SetMatchETagExcept(so.Etag); err != nil {
			return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
		}
	}

	obj, err := d.client.GetObject(ctx, d.bucket, key, opts)
	if err != nil {
		return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
	}

	info, err := obj.Stat()
	if err != nil {
		resp := minio.ToErrorResponse(err)
		switch {
		case resp.StatusCode == 304:
			return so, errtypes.NotModified(key)
		case resp.Code == "NoSuchKey" || resp.StatusCode == 404:
			return storageobject.StorageObject{}, errtypes.NotFound(key)
		default:
			return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
		}
	}

	so.Body = obj
	so.Etag = info.ETag
	so.Size = info.Size
	return so, nil
}

func (d *driver) Meta(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error) {
	info, err := d.client.StatObject(ctx, d.bucket, so.Key(), minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
			return storageobject.StorageObject{}, errtypes.NotFound(so.Key())
		}
		return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
	}
	so.Etag = info.ETag
	so.Size = info.Size
	if d.cache != nil {
		_ = d.cache.SetStorage(ctx, so)
	}
	return so, nil
}

func (d *driver) Delete(ctx context.Context, so storageobject.StorageObject) (int64, error) {
	key := so.Key()
	size, err := d.statSize(ctx, key)
	if err != nil {
		return 0, err
	}
	if size == 0 {
		if _, statErr := d.client.StatObject(ctx, d.bucket, key, minio.StatObjectOptions{}); statErr != nil {
			resp := minio.ToErrorResponse(statErr)
			if resp.Code == "NoSuchKey" || resp.StatusCode == 404 {
				return 0, nil
			}
		}
	}
	if err := d.client.RemoveObject(ctx, d.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code != "NoSuchKey" && resp.StatusCode != 404 {
			return 0, errtypes.StoreFatal(err.Error())
		}
	}
	if d.cache != nil {
		_ = d.cache.InvalidateStorage(ctx, so)
	}
	return size, nil
}
