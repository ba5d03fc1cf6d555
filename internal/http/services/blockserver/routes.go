package blockserver

import "github.com/gorilla/mux"

func (g *Gateway) registerRoutes(r *mux.Router) {
	r.HandleFunc("/files/{prefix:[\\d\\w-]+}/{file_path:[/\\d\\w-]+}", g.handleDownload).Methods("GET")
	r.HandleFunc("/files/{prefix:[\\d\\w-]+}/{file_path:[/\\d\\w-]+}", g.handleUpload).Methods("POST")
	r.HandleFunc("/files/{prefix:[\\d\\w-]+}/{file_path:[/\\d\\w-]+}", g.handleDelete).Methods("DELETE")

	r.HandleFunc("/prefix/", g.handleListPrefixes).Methods("GET")
	r.HandleFunc("/prefix/", g.handleCreatePrefix).Methods("POST")

	r.HandleFunc("/quota/", g.handleQuota).Methods("GET")

	r.HandleFunc("/websocket/{prefix:[\\d\\w-]+}", g.handleWebsocketPrefix).Methods("GET")
	r.HandleFunc("/websocket/{prefix:[\\d\\w-]+}/{file_path:[/\\d\\w-]+}", g.handleWebsocketFile).Methods("GET")
}
