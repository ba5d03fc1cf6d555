package blockserver

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/qabel/blockserver/pkg/appctx"
	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/storageobject"
)

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
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

	so := storageobject.New(prefix, filePath)

	release, err := g.acquireWorker(ctx)
	if err != nil {
		writeError(w, r, err)
		return
	}
	freed, err := g.Store.Delete(ctx, so)
	release()
	if err != nil {
		writeError(w, r, err)
		return
	}

	if freed > 0 {
		if err := g.DB.UpdateSize(ctx, prefix, -freed); err != nil {
			appctx.GetLogger(ctx).Error().Err(err).Msg("error updating usage ledger")
		}
	}

	_ = g.Pubsub.Publish(ctx, prefix+"/"+filePath, map[string]interface{}{
		"operation": "DELETE",
		"prefix":    prefix,
		"path":      filePath,
	})

	w.WriteHeader(http.StatusNoContent)
}
