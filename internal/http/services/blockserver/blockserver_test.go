package blockserver_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	authinterceptor "github.com/qabel/blockserver/internal/http/interceptors/auth"
	"github.com/qabel/blockserver/internal/http/services/blockserver"
	"github.com/qabel/blockserver/pkg/auth/manager/dev"
	"github.com/qabel/blockserver/pkg/cache/memory"
	"github.com/qabel/blockserver/pkg/pubsub"
	pubsubmemory "github.com/qabel/blockserver/pkg/pubsub/memory"
	"github.com/qabel/blockserver/pkg/store/local"
)

// fakeDB is a minimal in-memory userdb.Database, enough to exercise the
// request engine's ownership, quota and traffic accounting without a real
// Postgres instance.
type fakeDB struct {
	mu       sync.Mutex
	owners   map[string]int64
	sizes    map[int64]int64
	quotas   map[int64]int64
	traffic  map[int64]int64
	prefixes map[int64][]string
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		owners:   map[string]int64{},
		sizes:    map[int64]int64{},
		quotas:   map[int64]int64{},
		traffic:  map[int64]int64{},
		prefixes: map[int64][]string{},
	}
}

func (d *fakeDB) AssertUser(ctx context.Context, userID int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.quotas[userID]; !ok {
		d.quotas[userID] = 8 * 1024 * 1024
	}
	return nil
}

func (d *fakeDB) CreatePrefix(ctx context.Context, userID int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	p := uuid.NewString()
	d.owners[p] = userID
	d.prefixes[userID] = append(d.prefixes[userID], p)
	return p, nil
}

func (d *fakeDB) HasPrefix(ctx context.Context, userID int64, prefix string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.owners[prefix] == userID, nil
}

func (d *fakeDB) GetPrefixOwner(ctx context.Context, prefix string) (int64, bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id, ok := d.owners[prefix]
	return id, ok, nil
}

func (d *fakeDB) GetPrefixes(ctx context.Context, userID int64) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.prefixes[userID], nil
}

func (d *fakeDB) GetSize(ctx context.Context, userID int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.sizes[userID], nil
}

func (d *fakeDB) GetQuota(ctx context.Context, userID int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if q, ok := d.quotas[userID]; ok {
		return q, nil
	}
	return 8 * 1024 * 1024, nil
}

func (d *fakeDB) UpdateSize(ctx context.Context, prefix string, delta int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sizes[d.owners[prefix]] += delta
	return nil
}

func (d *fakeDB) GetTraffic(ctx context.Context, userID int64) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.traffic[userID], nil
}

func (d *fakeDB) GetTrafficByPrefix(ctx context.Context, prefix string) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.traffic[d.owners[prefix]], nil
}

func (d *fakeDB) UpdateTraffic(ctx context.Context, prefix string, delta int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.traffic[d.owners[prefix]] += delta
	return nil
}

func (d *fakeDB) setQuota(userID, quota int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.quotas[userID] = quota
}

const bypassToken = "Token dev"

type testGateway struct {
	handler http.Handler
	db      *fakeDB
	bus     pubsub.Bus
	prefix  string
}

func newTestGateway(t *testing.T) *testGateway {
	t.Helper()

	storeDriver, err := local.New(map[string]interface{}{"base_dir": t.TempDir()})
	require.NoError(t, err)

	cacheDriver, err := memory.New(nil)
	require.NoError(t, err)

	bus, err := pubsubmemory.New(nil)
	require.NoError(t, err)

	resolver, err := dev.New(map[string]interface{}{"bypass_token": bypassToken, "user_id": 1})
	require.NoError(t, err)

	db := newFakeDB()
	require.NoError(t, db.AssertUser(context.Background(), 1))
	prefix, err := db.CreatePrefix(context.Background(), 1)
	require.NoError(t, err)

	gw := blockserver.New(blockserver.Options{
		Store:         storeDriver,
		Cache:         cacheDriver,
		Pubsub:        bus,
		Auth:          resolver,
		DB:            db,
		WorkerPool:    4,
		MaxUploadSize: 1024 * 1024,
	})

	handler := authinterceptor.New(resolver)(gw.Handler())

	return &testGateway{handler: handler, db: db, bus: bus, prefix: prefix}
}

func (g *testGateway) do(t *testing.T, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func authed(extra ...map[string]string) map[string]string {
	h := map[string]string{"Authorization": bypassToken}
	for _, e := range extra {
		for k, v := range e {
			h[k] = v
		}
	}
	return h
}

func TestUploadDownloadRoundTrip(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/greeting", "hello world", authed())
	require.Equal(t, http.StatusNoContent, res.Code)
	etag := res.Header().Get("ETag")
	require.NotEmpty(t, etag)

	res = gw.do(t, http.MethodGet, "/api/v0/files/"+gw.prefix+"/greeting", "", nil)
	require.Equal(t, http.StatusOK, res.Code)
	require.Equal(t, "hello world", res.Body.String())
	require.Equal(t, etag, res.Header().Get("ETag"))
}

func TestDownloadMissingObjectIsNotFound(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodGet, "/api/v0/files/"+gw.prefix+"/missing", "", nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestDownloadWithMatchingIfNoneMatchIsNotModified(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/f", "content", authed())
	require.Equal(t, http.StatusNoContent, res.Code)
	etag := res.Header().Get("ETag")

	res = gw.do(t, http.MethodGet, "/api/v0/files/"+gw.prefix+"/f", "", map[string]string{"If-None-Match": etag})
	require.Equal(t, http.StatusNotModified, res.Code)
}

func TestUploadWithStaleIfMatchIsPreconditionFailed(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/f", "v1", authed())
	require.Equal(t, http.StatusNoContent, res.Code)

	res = gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/f", "v2", authed(map[string]string{"If-Match": "\"stale-etag\""}))
	require.Equal(t, http.StatusPreconditionFailed, res.Code)
}

func TestUploadOverQuotaIsPaymentRequired(t *testing.T) {
	gw := newTestGateway(t)
	gw.db.setQuota(1, 4)

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/too-big", "way more than four bytes", authed())
	require.Equal(t, http.StatusPaymentRequired, res.Code)
}

func TestDeleteRemovesObjectAndFreesQuota(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/f", "some content", authed())
	require.Equal(t, http.StatusNoContent, res.Code)

	size, err := gw.db.GetSize(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, len("some content"), size)

	res = gw.do(t, http.MethodDelete, "/api/v0/files/"+gw.prefix+"/f", "", authed())
	require.Equal(t, http.StatusNoContent, res.Code)

	size, err = gw.db.GetSize(context.Background(), 1)
	require.NoError(t, err)
	require.EqualValues(t, 0, size)

	res = gw.do(t, http.MethodGet, "/api/v0/files/"+gw.prefix+"/f", "", nil)
	require.Equal(t, http.StatusNotFound, res.Code)
}

func TestPrefixCreateAndList(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodPost, "/api/v0/prefix/", "", authed())
	require.Equal(t, http.StatusCreated, res.Code)
	require.Contains(t, res.Body.String(), "prefix")

	res = gw.do(t, http.MethodGet, "/api/v0/prefix/", "", authed())
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), gw.prefix)
}

func TestQuotaEndpointReportsUsage(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/f", "12345", authed())
	require.Equal(t, http.StatusNoContent, res.Code)

	res = gw.do(t, http.MethodGet, "/api/v0/quota/", "", authed())
	require.Equal(t, http.StatusOK, res.Code)
	require.Contains(t, res.Body.String(), `"size":5`)
}

func TestUploadWithoutAuthenticationIsForbidden(t *testing.T) {
	gw := newTestGateway(t)

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/f", "x", nil)
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestUploadPublishesChangeNotification(t *testing.T) {
	gw := newTestGateway(t)

	sub, err := gw.bus.Subscribe(context.Background(), gw.prefix+"/*", true)
	require.NoError(t, err)
	defer sub.Close()

	res := gw.do(t, http.MethodPost, "/api/v0/files/"+gw.prefix+"/notified", bytes.NewBufferString("x").String(), authed())
	require.Equal(t, http.StatusNoContent, res.Code)

	select {
	case msg := <-sub.Messages():
		require.Equal(t, "POST", msg["operation"])
		require.Equal(t, "notified", msg["path"])
	default:
		t.Fatal("expected a pub/sub message to have been published synchronously before the response was written")
	}
}
