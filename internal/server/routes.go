// Package server wires handlers into the HTTP router.
package server

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/pulsechat/relay/internal/storage"
)

// SetupRoutes builds the relay's HTTP surface: health check, WebSocket
// endpoint, photo upload, and static serving of stored photos.
func SetupRoutes(hub *Hub, cfg *Config, store *storage.PhotoStore) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", HealthHandler).Methods(http.MethodGet)
	r.HandleFunc("/ws", NewWebSocketHandler(hub, cfg)).Methods(http.MethodGet)
	r.HandleFunc("/upload", NewUploadHandler(store)).Methods(http.MethodPost)
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(store.Dir()))))
	return r
}
