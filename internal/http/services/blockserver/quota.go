package blockserver

import (
	"net/http"

	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/errtypes"
)

func (g *Gateway) handleQuota(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _, ok := auth.ContextGetUser(ctx)
	if !ok {
		writeError(w, r, errtypes.Unauthorized("no user resolved"))
		return
	}

	userQuota, err := g.DB.GetQuota(ctx, user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	size, err := g.DB.GetSize(ctx, user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quota": userQuota, "size": size})
}
