package blockserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/qabel/blockserver/pkg/appctx"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/metrics"
)

// isBlock reports whether filePath is a block (content counted strictly
// against quota) rather than a meta-file (allowed a small grace window).
func isBlock(filePath string) bool {
	return strings.HasPrefix(filePath, "block/")
}

// acquireWorker blocks until a worker-pool slot is free or ctx is done. The
// returned func must be called to release the slot.
func (g *Gateway) acquireWorker(ctx context.Context) (func(), error) {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	return func() { g.sem.Release(1) }, nil
}

// writeError maps a domain error to an HTTP status and writes it, recording
// the error kind in the errors-total counter.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := classify(err)
	metrics.HTTPErrors.WithLabelValues(kind).Inc()
	log := appctx.GetLogger(r.Context())
	log.Warn().Err(err).Str("kind", kind).Int("status", status).Msg("request failed")
	http.Error(w, err.Error(), status)
}

func classify(err error) (status int, kind string) {
	switch {
	case isKind[errtypes.IsBadRequest](err):
		return http.StatusBadRequest, "bad_request"
	case isKind[errtypes.IsUnauthorized](err), isKind[errtypes.IsUserRequired](err), isKind[errtypes.IsInvalidCredentials](err):
		return http.StatusForbidden, "unauthorized"
	case isKind[errtypes.IsQuotaReached](err):
		return http.StatusPaymentRequired, "quota_reached"
	case isKind[errtypes.IsPreconditionFailed](err):
		return http.StatusPreconditionFailed, "precondition_failed"
	case isKind[errtypes.IsNotFound](err):
		return http.StatusNotFound, "not_found"
	case isKind[errtypes.IsAuthUpstream](err):
		return http.StatusInternalServerError, "auth_upstream"
	case isKind[errtypes.IsStoreFatal](err):
		return http.StatusInternalServerError, "store_fatal"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func isKind[T any](err error) bool {
	_, ok := err.(T)
	return ok
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
