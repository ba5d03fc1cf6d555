package blockserver

import (
	"io"
	"os"

	"net/http"

	"github.com/gorilla/mux"

	"github.com/qabel/blockserver/pkg/appctx"
	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/quota"
	"github.com/qabel/blockserver/pkg/storageobject"
)

func (g *Gateway) handleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	vars := mux.Vars(r)
	prefix, filePath := vars["prefix"], vars["file_path"]

	user, header, ok := auth.ContextGetUser(ctx)
	if !ok {
		writeError(w, r, errtypes.Unauthorized("no user resolved"))
		return
	}
	if !g.Auth.Bypass(header) {
		owns, err := g.DB.HasPrefix(ctx, user.UserID, prefix)
		if err != nil || !owns {
			writeError(w, r, errtypes.Unauthorized("prefix not owned by caller"))
			return
		}
	}

	spool, fileSize, err := g.spoolBody(r)
	if err != nil {
		if spool != "" {
			os.Remove(spool)
		}
		writeError(w, r, err)
		return
	}
	defer os.Remove(spool)

	so := storageobject.New(prefix, filePath)

	var oldSize int64
	found := true
	meta, metaErr := g.Store.Meta(ctx, so)
	if metaErr != nil {
		if _, isNotFound := metaErr.(errtypes.IsNotFound); isNotFound {
			found = false
		} else {
			writeError(w, r, metaErr)
			return
		}
	} else {
		oldSize = meta.Size
	}

	if ifMatch := r.Header.Get("If-Match"); ifMatch != "" {
		if !found {
			writeError(w, r, errtypes.PreconditionFailed("object does not exist"))
			return
		}
		if meta.Etag != ifMatch {
			w.Header().Set("ETag", meta.Etag)
			writeError(w, r, errtypes.PreconditionFailed("etag mismatch"))
			return
		}
	}

	used, err := g.DB.GetSize(ctx, user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	userQuota, err := g.DB.GetQuota(ctx, user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	quotaReached := used+fileSize > userQuota
	sizeChange := fileSize - oldSize
	if !quota.Upload(quotaReached, sizeChange, isBlock(filePath), found) {
		writeError(w, r, errtypes.QuotaReached("storage quota reached"))
		return
	}

	release, err := g.acquireWorker(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}

	so.LocalFile = spool
	stored, sizeDelta, storeErr := g.Store.Store(ctx, so)
	release()
	if storeErr != nil {
		writeError(w, r, storeErr)
		return
	}

	if err := g.DB.UpdateSize(ctx, prefix, sizeDelta); err != nil {
		appctx.GetLogger(ctx).Error().Err(err).Msg("error updating usage ledger")
	}

	_ = g.Pubsub.Publish(ctx, prefix+"/"+filePath, map[string]interface{}{
		"operation": "POST",
		"prefix":    prefix,
		"path":      filePath,
		"etag":      stored.Etag,
	})

	w.Header().Set("ETag", stored.Etag)
	w.WriteHeader(http.StatusNoContent)
}

// spoolBody copies r.Body to a temp file, refusing anything past
// g.maxUploadSize. The caller is responsible for removing the returned path.
func (g *Gateway) spoolBody(r *http.Request) (path string, size int64, err error) {
	f, err := os.CreateTemp("", "blockserver-upload-*")
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	limit := g.maxUploadSize
	if limit <= 0 {
		limit = 2 * 1024 * 1024 * 1024
	}
	n, err := io.Copy(f, io.LimitReader(r.Body, limit+1))
	if err != nil {
		return f.Name(), 0, err
	}
	if n > limit {
		return f.Name(), 0, errtypes.BadRequest("Content-Length too large")
	}
	return f.Name(), n, nil
}
