// Package server exposes the HTTP handlers: the WebSocket upgrade, health
// check, and profile photo upload.
package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/pulsechat/relay/internal/storage"
)

// NewWebSocketHandler upgrades HTTP requests to WebSocket connections and
// registers them with the hub, which takes over their lifecycle.
func NewWebSocketHandler(hub *Hub, cfg *Config) http.HandlerFunc {
	policy := newOriginPolicy(cfg.Origins())
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     policy.check,
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn().Err(err).Str("addr", r.RemoteAddr).Msg("websocket upgrade failed")
			return
		}
		hub.Register(NewClient(conn, hub, r.RemoteAddr, cfg))
	}
}

// HealthHandler reports that the relay is up.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok"))
}

// NewUploadHandler accepts one multipart photo under the "photo" field and
// responds with the path it is served from. Uploads never touch the relay
// core.
func NewUploadHandler(store *storage.PhotoStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		file, _, err := r.FormFile("photo")
		if err != nil {
			http.Error(w, "missing photo field", http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()

		name, err := store.Save(file)
		if err != nil {
			log.Warn().Err(err).Msg("photo upload rejected")
			http.Error(w, "upload failed", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(map[string]string{"url": "/uploads/" + name}); err != nil {
			log.Warn().Err(err).Msg("writing upload response failed")
		}
	}
}
