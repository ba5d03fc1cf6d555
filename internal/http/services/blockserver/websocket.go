package blockserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/qabel/blockserver/pkg/appctx"
	"github.com/qabel/blockserver/pkg/auth"
	"github.com/qabel/blockserver/pkg/errtypes"
	"github.com/qabel/blockserver/pkg/metrics"
)

// Subprotocol is the WebSocket subprotocol negotiated for change
// notifications.
const Subprotocol = "v0.ws.block.qabel.de"

var upgrader = websocket.Upgrader{
	Subprotocols:    []string{Subprotocol},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWebsocketPrefix subscribes the caller to every change under prefix,
// requiring authentication and (unless bypass) prefix ownership.
func (g *Gateway) handleWebsocketPrefix(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	prefix := mux.Vars(r)["prefix"]

	if isBlock(prefix) {
		http.Error(w, "blocks don't emit events", http.StatusMethodNotAllowed)
		return
	}

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

	g.serveWebsocket(w, r, prefix+"/*", true)
}

// handleWebsocketFile subscribes the caller to changes on a single object.
// No authentication is required, mirroring the public download path.
func (g *Gateway) handleWebsocketFile(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	prefix, filePath := vars["prefix"], vars["file_path"]

	if strings.HasPrefix(filePath, "blocks/") {
		http.Error(w, "blocks don't emit events", http.StatusMethodNotAllowed)
		return
	}

	g.serveWebsocket(w, r, prefix+"/"+filePath, false)
}

func (g *Gateway) serveWebsocket(w http.ResponseWriter, r *http.Request, channel string, wildcard bool) {
	ctx := r.Context()
	log := appctx.GetLogger(ctx)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("error upgrading websocket connection")
		return
	}
	defer conn.Close()

	metrics.WebsocketConnections.Inc()
	opened := time.Now()
	defer func() {
		metrics.WebsocketConnections.Dec()
		metrics.WebsocketConnectionDuration.Observe(time.Since(opened).Seconds())
	}()

	sub, err := g.Pubsub.Subscribe(ctx, channel, wildcard)
	if err != nil {
		log.Error().Err(err).Msg("error subscribing to pub/sub channel")
		return
	}
	defer sub.Close()

	// Read and discard client frames on a separate goroutine, so a
	// client-initiated close is noticed without blocking the write loop.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-sub.Messages():
			if !ok {
				return
			}
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("error writing websocket message")
				return
			}
		case <-closed:
			return
		case <-ctx.Done():
			return
		}
	}
}
