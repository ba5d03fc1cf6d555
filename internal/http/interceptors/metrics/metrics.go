// Package metrics instruments every request with the standard prometheus
// HTTP middlewares, against the collectors held in pkg/metrics so domain
// code (the auth resolvers' cache hit/miss counter, in particular) can
// record against the same series.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/qabel/blockserver/pkg/metrics"
)

// Collectors returns every metric this middleware instruments, for wiring
// into a prometheus.Registry at startup.
func Collectors() []prometheus.Collector {
	return metrics.Collectors()
}

// New returns a new HTTP middleware that instruments every request with the
// standard prometheus collectors.
func New() func(h http.Handler) http.Handler {
	chain := func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			instrumented := promhttp.InstrumentHandlerDuration(metrics.Duration.MustCurryWith(prometheus.Labels{"handler": r.URL.Path}),
				promhttp.InstrumentHandlerCounter(metrics.Requests,
					promhttp.InstrumentHandlerResponseSize(metrics.ResponseSize,
						promhttp.InstrumentHandlerRequestSize(metrics.RequestSize,
							promhttp.InstrumentHandlerInFlight(metrics.InFlight, h),
						),
					),
				),
			)
			instrumented.ServeHTTP(w, r)
		})
	}
	return chain
}
