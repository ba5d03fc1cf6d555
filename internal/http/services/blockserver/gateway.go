// Package blockserver implements the gateway's HTTP and WebSocket surface:
// streaming upload/download/delete of blocks, prefix and quota management,
// and change notifications, orchestrating the store driver, metadata cache,
// usage ledger, auth resolver and pub/sub bus.
package blockserver

import (
	"net/http"

	"github.com/gorilla/mux"
	"golang.org/x/sync/semaphore"

	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/cache"
	"github.com/qabel/blockserver/pkg/pubsub"
	"github.com/qabel/blockserver/pkg/store"
	"github.com/qabel/blockserver/pkg/userdb"
)

// Gateway holds every component the request handlers orchestrate, built
// once at startup and shared for the process lifetime.
type Gateway struct {
	Store  store.Driver
	Cache  cache.Cache
	Pubsub pubsub.Bus
	Auth   auth.Resolver
	DB     userdb.Database

	sem           *semaphore.Weighted
	maxUploadSize int64
}

// Options configures a Gateway.
type Options struct {
	Store         store.Driver
	Cache         cache.Cache
	Pubsub        pubsub.Bus
	Auth          auth.Resolver
	DB            userdb.Database
	WorkerPool    int64
	MaxUploadSize int64
}

// New builds a Gateway from already-constructed components.
func New(o Options) *Gateway {
	pool := o.WorkerPool
	if pool <= 0 {
		pool = 10
	}
	return &Gateway{
		Store:         o.Store,
		Cache:         o.Cache,
		Pubsub:        o.Pubsub,
		Auth:          o.Auth,
		DB:            o.DB,
		sem:           semaphore.NewWeighted(pool),
		maxUploadSize: o.MaxUploadSize,
	}
}

// Handler returns the gateway's complete HTTP handler, routes mounted under
// /api/v0/.
func (g *Gateway) Handler() http.Handler {
	r := mux.NewRouter()
	g.registerRoutes(r.PathPrefix("/api/v0/").Subrouter())
	return r
}
