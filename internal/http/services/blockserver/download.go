package blockserver

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/qabel/blockserver/pkg/appctx"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/quota"
	"github.com/qabel/blockserver/pkg/storageobject"
)

func (g *Gateway) handleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	prefix, filePath := vars["prefix"], vars["file_path"]

	if owner, ok, err := g.DB.GetPrefixOwner(ctx, prefix); err == nil && ok {
		traffic, err := g.DB.GetTrafficByPrefix(ctx, prefix)
		if err != nil {
			writeError(w, r, err)
			return
		}
		permitted := quota.TrafficThreshold
		if user, err := g.Auth.GetUser(ctx, owner); err == nil && user.MonthlyTrafficQuota > 0 {
			permitted = user.MonthlyTrafficQuota
		}
		if !quota.Download(traffic, permitted) {
			writeError(w, r, errtypes.QuotaReached("traffic quota reached"))
			return
		}
	}

	so := storageobject.New(prefix, filePath)
	if inm := r.Header.Get("If-None-Match"); inm != "" {
		so = so.WithEtag(inm)
	}

	release, err := g.acquireWorker(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	retrieved, err := g.Store.Retrieve(ctx, so)
	release()
	if err != nil {
		if _, notModified := err.(errtypes.IsNotModified); notModified {
			w.Header().Set("ETag", so.Etag)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		writeError(w, r, err)
		return
	}
	defer retrieved.Body.Close()

	w.Header().Set("ETag", retrieved.Etag)
	w.Header().Set("Content-Length", strconv.FormatInt(retrieved.Size, 10))
	w.WriteHeader(http.StatusOK)

	n, err := io.Copy(w, retrieved.Body)
	if err != nil {
		appctx.GetLogger(ctx).Warn().Err(err).Msg("error streaming download body")
		return
	}

	if err := g.DB.UpdateTraffic(ctx, prefix, n); err != nil {
		appctx.GetLogger(ctx).Error().Err(err).Msg("error updating traffic ledger")
	}
}
