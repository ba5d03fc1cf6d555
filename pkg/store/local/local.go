// Package local implements an object store driver against the local
// filesystem, for single-node deployments and tests. Writes are made
// crash-atomic with google/renameio so a reader never observes a partially
// written object.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/google/renameio/v2"
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"

	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/storageobject"
	"github.com/qabel/blockserver/pkg/store"
	"github.com/qabel/blockserver/pkg/store/registry"
)

func init() {
	registry.Register("local", New)
}

type config struct {
	BaseDir string `mapstructure:"base_dir"`
}

func parseConfig(m map[string]interface{}) (*config, error) {
	c := &config{}
	if err := mapstructure.Decode(m, c); err != nil {
		return nil, errors.Wrap(err, "local: error decoding config")
	}
	if c.BaseDir == "" {
		return nil, errors.New("local: base_dir must be set")
	}
	return c, nil
}

type driver struct {
	baseDir string
	cache   cache.Cache
}

// New returns an object store driver backed by the local filesystem rooted
// at the configured base_dir.
func New(m map[string]interface{}) (store.Driver, error) {
	c, err := parseConfig(m)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(c.BaseDir, 0750); err != nil {
		return nil, errors.Wrap(err, "local: could not create base dir")
	}
	return &driver{baseDir: c.BaseDir}, nil
}

// WithCache attaches the shared metadata cache this driver writes through
// to and invalidates against. Satisfies store.CacheWirer.
func (d *driver) WithCache(c cache.Cache) {
	d.cache = c
}

func (d *driver) path(so storageobject.StorageObject) string {
	return filepath.Join(d.baseDir, filepath.FromSlash(so.Prefix), filepath.FromSlash(so.FilePath))
}

func etagFor(fi os.FileInfo) string {
	return strconv.FormatInt(fi.ModTime().UnixNano(), 10)
}

func statSize(path string) (int64, error) {
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, errtypes.StoreFatal(err.Error())
	}
	return fi.Size(), nil
}

// oldSize looks up so's current size, preferring the cache over a stat
// call.
func (d *driver) oldSize(ctx context.Context, so storageobject.StorageObject, path string) (int64, error) {
	if d.cache != nil {
		if cached, err := d.cache.GetStorage(ctx, so); err == nil {
			return cached.Size, nil
		}
	}
	return statSize(path)
}

func (d *driver) Store(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, int64, error) {
	dest := d.path(so)

	oldSize, err := d.oldSize(ctx, so, dest)
	if err != nil {
		return storageobject.StorageObject{}, 0, err
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0750); err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}

	var src io.Reader = so.Body
	if so.LocalFile != "" {
		f, err := os.Open(so.LocalFile)
		if err != nil {
			return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
		}
		defer f.Close()
		src = f
	}

	t, err := renameio.TempFile("", dest)
	if err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}
	defer t.Cleanup()

	n, err := io.Copy(t, src)
	if err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}
	if err := t.CloseAtomicallyReplace(); err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}

	fi, err := os.Stat(dest)
	if err != nil {
		return storageobject.StorageObject{}, 0, errtypes.StoreFatal(err.Error())
	}

	so.Etag = etagFor(fi)
	so.Size = n
	if d.cache != nil {
		_ = d.cache.SetStorage(ctx, so)
	}
	return so, n - oldSize, nil
}

func (d *driver) Retrieve(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error) {
	path := d.path(so)

	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return storageobject.StorageObject{}, errtypes.NotFound(path)
		}
		return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
	}

	etag := etagFor(fi)
	if so.Etag != "" && so.Etag == etag {
		so.Etag = etag
		return so, errtypes.NotModified(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
	}

	so.Body = f
	so.Etag = etag
	so.Size = fi.Size()
	return so, nil
}

func (d *driver) Meta(ctx context.Context, so storageobject.StorageObject) (storageobject.StorageObject, error) {
	path := d.path(so)
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return storageobject.StorageObject{}, errtypes.NotFound(path)
		}
		return storageobject.StorageObject{}, errtypes.StoreFatal(err.Error())
	}
	so.Etag = etagFor(fi)
	so.Size = fi.Size()
	if d.cache != nil {
		_ = d.cache.SetStorage(ctx, so)
	}
	return so, nil
}

func (d *driver) Delete(ctx context.Context, so storageobject.StorageObject) (int64, error) {
	path := d.path(so)
	size, err := statSize(path)
	if err != nil {
		return 0, err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return 0, errtypes.StoreFatal(err.Error())
	}
	if d.cache != nil {
		_ = d.cache.InvalidateStorage(ctx, so)
	}
	return size, nil
}
