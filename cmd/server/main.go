package main

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/pulsechat/relay/internal/notify"
	"github.com/pulsechat/relay/internal/server"
	"github.com/pulsechat/relay/internal/storage"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// run owns the full lifecycle so deferred cleanup executes before the
// process exits and the wiring stays testable.
func run() error {
	_ = godotenv.Load()

	cfg, err := server.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	setupLogging(cfg.LogLevel)

	store, err := storage.NewPhotoStore(cfg.UploadDir)
	if err != nil {
		return fmt.Errorf("preparing photo store: %w", err)
	}

	dispatcher, cleanup, err := buildDispatcher(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	hub := server.NewHub(dispatcher)
	go hub.Run()

	httpServer := server.CreateServer(cfg.Port, server.SetupRoutes(hub, cfg, store))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case sig := <-stop:
		log.Info().Str("signal", sig.String()).Msg("shutting down")
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("http shutdown incomplete")
	}
	if err := hub.Shutdown(shutdownTimeout); err != nil {
		log.Warn().Err(err).Msg("hub shutdown incomplete")
	}
	return nil
}

func setupLogging(level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil {
		parsed = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(parsed)
	log.Logger = log.With().Str("service", "relay").Logger()
}

// buildDispatcher assembles the configured notification services. With
// nothing configured the relay runs without dispatch, which is fine for
// local development.
func buildDispatcher(cfg *server.Config) (notify.Dispatcher, func(), error) {
	var (
		targets notify.Multi
		cleanup = func() {}
	)

	if cfg.NATSURL != "" {
		pub, err := notify.ConnectNATS(cfg.NATSURL)
		if err != nil {
			return nil, cleanup, fmt.Errorf("notification bus: %w", err)
		}
		targets = append(targets, pub)
		cleanup = pub.Close
	}
	if cfg.PushGateway != "" {
		targets = append(targets, notify.NewPushGateway(cfg.PushGateway, time.Duration(cfg.PushTimeout)*time.Second))
	}

	if len(targets) == 0 {
		log.Info().Msg("no notification services configured")
		return nil, cleanup, nil
	}
	return targets, cleanup, nil
}
