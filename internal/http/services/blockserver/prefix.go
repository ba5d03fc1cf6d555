package blockserver

import (
	"net/http"

	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/errtypes"
)

func (g *Gateway) handleListPrefixes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _, ok := auth.ContextGetUser(ctx)
	if !ok {
		writeError(w, r, errtypes.Unauthorized("no user resolved"))
		return
	}

	prefixes, err := g.DB.GetPrefixes(ctx, user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prefixes": prefixes})
}

func (g *Gateway) handleCreatePrefix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _, ok := auth.ContextGetUser(ctx)
	if !ok {
		writeError(w, r, errtypes.Unauthorized("no user resolved"))
		return
	}

	prefix, err := g.DB.CreatePrefix(ctx, user.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"prefix": prefix})
}
