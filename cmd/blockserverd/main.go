// Copyright 2018-2023 CERN
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//
// In applying this license, CERN does not waive the privileges and immunities
// granted to it by virtue of its status as an Intergovernmental Organization
// or submit itself to any jurisdiction.

// Command blockserverd runs the block storage gateway: it wires the
// configured object store, metadata cache, pub/sub bus, auth resolver and
// usage ledger into an HTTP server and serves the request engine's routes
// until told to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/qabel/blockserver/internal/http/interceptors/appctx"
	"github.com/qabel/blockserver/internal/http/interceptors/auth"
	"github.com/qabel/blockserver/internal/http/interceptors/log"
	"github.com/qabel/blockserver/internal/http/interceptors/metrics"
	"github.com/qabel/blockserver/internal/http/interceptors/trace"
	"github.com/qabel/blockserver/internal/http/services/blockserver"
	pkgauth "github.com/qabel/blockserver/pkg/auth"
	authregistry "github.com/qabel/blockserver/pkg/auth/manager/registry"
	"github.com/qabel/blockserver/pkg/cache"
	cacheregistry "github.com/qabel/blockserver/pkg/cache/registry"
	"github.com/qabel/blockserver/pkg/config"
	"github.com/qabel/blockserver/pkg/pubsub"
	pubsubregistry "github.com/qabel/blockserver/pkg/pubsub/registry"
	"github.com/qabel/blockserver/pkg/store"
	storeregistry "github.com/qabel/blockserver/pkg/store/registry"
	"github.com/qabel/blockserver/pkg/userdb/postgres"

	// Driver implementations register themselves in their package init().
	_ "github.com/qabel/blockserver/pkg/auth/manager/dev"
	_ "github.com/qabel/blockserver/pkg/auth/manager/memory"
	_ "github.com/qabel/blockserver/pkg/auth/manager/remote"
	_ "github.com/qabel/blockserver/pkg/cache/memory"
	_ "github.com/qabel/blockserver/pkg/cache/redis"
	_ "github.com/qabel/blockserver/pkg/pubsub/memory"
	_ "github.com/qabel/blockserver/pkg/pubsub/redis"
	_ "github.com/qabel/blockserver/pkg/store/local"
	_ "github.com/qabel/blockserver/pkg/store/s3"
)

// Version is set via ldflags at build time.
var Version = "dev"

var configFile string

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "blockserverd",
	Short:   "Multi-tenant block storage HTTP gateway",
	Version: Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(configFile)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "path to a YAML/TOML/JSON config file")
}

func run(configFile string) error {
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	adjustCPU()

	logger := newLogger(cfg.Log)
	logger.Info().Str("version", Version).Int("pid", os.Getpid()).Msg("starting blockserverd")

	gw, cleanup, err := buildGateway(cfg, logger)
	if err != nil {
		return fmt.Errorf("error wiring gateway: %w", err)
	}
	defer cleanup()

	handler := chain(gw.Handler(),
		trace.New(),
		appctx.New(logger),
		log.New(),
		metrics.New(),
		auth.New(gw.Auth),
	)

	srv := &http.Server{
		Addr:    cfg.Address,
		Handler: handler,
	}

	metricsSrv := newMetricsServer(cfg.Metrics.Address)

	errCh := make(chan error, 2)
	go func() {
		logger.Info().Str("address", cfg.Address).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		logger.Info().Str("address", cfg.Metrics.Address).Msg("metrics server listening")
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("metrics server: %w", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	select {
	case sig := <-sigCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-errCh:
		logger.Error().Err(err).Msg("server error, shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("error during http server shutdown")
	}
	if err := metricsSrv.Shutdown(ctx); err != nil {
		logger.Warn().Err(err).Msg("error during metrics server shutdown")
	}
	logger.Info().Msg("shutdown complete")
	return nil
}

// buildGateway constructs every driver named in cfg from its registry,
// opens the usage ledger, and wires them into a Gateway. The returned
// cleanup func closes everything that owns a connection.
func buildGateway(cfg *config.Config, logger zerolog.Logger) (*blockserver.Gateway, func(), error) {
	storeDriver, err := newStore(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("store driver %q: %w", cfg.Store.Driver, err)
	}

	cacheDriver, err := newCache(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("cache driver %q: %w", cfg.Cache.Driver, err)
	}
	if cacheable, ok := storeDriver.(store.CacheWirer); ok {
		cacheable.WithCache(cacheDriver)
	}

	bus, err := newPubsub(cfg.Pubsub)
	if err != nil {
		return nil, nil, fmt.Errorf("pubsub driver %q: %w", cfg.Pubsub.Driver, err)
	}

	resolver, err := newAuth(cfg.Auth, cacheDriver)
	if err != nil {
		return nil, nil, fmt.Errorf("auth driver %q: %w", cfg.Auth.Driver, err)
	}

	db, err := postgres.Open(cfg.Database.DSN, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)
	if err != nil {
		return nil, nil, fmt.Errorf("usage ledger: %w", err)
	}
	db.WithDefaultQuota(cfg.DefaultQuota)

	cleanup := func() {
		if err := bus.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing pub/sub bus")
		}
		if err := db.Close(); err != nil {
			logger.Warn().Err(err).Msg("error closing usage ledger")
		}
	}

	gw := blockserver.New(blockserver.Options{
		Store:         storeDriver,
		Cache:         cacheDriver,
		Pubsub:        bus,
		Auth:          resolver,
		DB:            db,
		WorkerPool:    int64(cfg.WorkerPoolSize),
		MaxUploadSize: cfg.MaxUploadSize,
	})
	return gw, cleanup, nil
}

func newStore(d config.Driver) (store.Driver, error) {
	f, ok := storeregistry.NewFuncs[d.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown store driver %q", d.Driver)
	}
	return f(d.Options)
}

func newCache(d config.Driver) (cache.Cache, error) {
	f, ok := cacheregistry.NewFuncs[d.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown cache driver %q", d.Driver)
	}
	return f(d.Options)
}

func newPubsub(d config.Driver) (pubsub.Bus, error) {
	f, ok := pubsubregistry.NewFuncs[d.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown pubsub driver %q", d.Driver)
	}
	return f(d.Options)
}

// newAuth constructs the auth resolver and, for the remote driver, wires it
// to the shared metadata cache so lookups write through rather than opening
// a second cache of their own.
func newAuth(d config.Driver, c cache.Cache) (pkgauth.Resolver, error) {
	f, ok := authregistry.NewFuncs[d.Driver]
	if !ok {
		return nil, fmt.Errorf("unknown auth driver %q", d.Driver)
	}
	resolver, err := f(d.Options)
	if err != nil {
		return nil, err
	}
	if cacheable, ok := resolver.(pkgauth.CacheWirer); ok {
		cacheable.WithCache(c)
	}
	return resolver, nil
}

func newMetricsServer(addr string) *http.Server {
	reg := prometheus.NewRegistry()
	reg.MustRegister(metrics.Collectors()...)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	return &http.Server{Addr: addr, Handler: mux}
}

// chain wraps h with mws in the order listed, so the first middleware runs
// first on the way in.
func chain(h http.Handler, mws ...func(http.Handler) http.Handler) http.Handler {
	for i := len(mws) - 1; i >= 0; i-- {
		h = mws[i](h)
	}
	return h
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var w = os.Stderr
	zl := zerolog.New(w).Level(level).With().Timestamp().Int("pid", os.Getpid()).Logger()
	if cfg.Mode == "" || cfg.Mode == "dev" {
		zl = zl.Output(zerolog.ConsoleWriter{Out: w})
	}
	return zl
}

// adjustCPU sets GOMAXPROCS to the number of available CPUs. The gateway's
// hot path is I/O bound (object store, database, network), bounded
// separately by the worker pool semaphore, so the default of NumCPU is
// always appropriate here.
func adjustCPU() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}
