// Package server constructs and runs the HTTP service carrying the relay.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
)

// CreateServer builds the HTTP server with production timeouts. ReadTimeout
// is left unset because it would kill long-lived WebSocket reads; per-frame
// deadlines are handled by the client pumps.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer listens and serves until the server is shut down. A bind
// failure here is the only fatal error in the process.
func StartServer(server *http.Server) error {
	log.Info().Str("addr", server.Addr).Msg("relay listening")
	return server.ListenAndServe()
}

// ShutdownServer stops accepting connections and waits for in-flight
// requests, up to the timeout.
func ShutdownServer(server *http.Server, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown error")
		return err
	}
	log.Info().Msg("http server stopped")
	return nil
}
