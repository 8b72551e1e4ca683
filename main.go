package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/isdelr/taskdeck/internal/api"
	"github.com/isdelr/taskdeck/internal/auth"
	"github.com/isdelr/taskdeck/internal/config"
	"github.com/isdelr/taskdeck/internal/database"
	"github.com/isdelr/taskdeck/internal/identity"
	"github.com/isdelr/taskdeck/internal/logger"
	"github.com/isdelr/taskdeck/internal/monitoring"
	"github.com/isdelr/taskdeck/internal/navigation"
	"github.com/isdelr/taskdeck/internal/websocket"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	_ "go.uber.org/automaxprocs"
)

func main() {
	_ = godotenv.Load()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.Init(cfg.LogLevel)

	// The task store opens a connection per operation, nothing to close here.
	store := database.New(cfg.DatabasePath, cfg.SchemaVersion)
	log.Info().Str("path", store.Path()).Int("schema_version", store.Version()).Msg("Task store configured")

	scheduler := monitoring.NewScheduler(30 * time.Second)

	// Embedded identity service
	var idSrv *identity.Server
	if cfg.IdentityEmbedded {
		idDB, err := identity.Open(cfg.IdentityDatabasePath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open identity database")
		}
		defer idDB.Close()

		if err := identity.Migrate(idDB); err != nil {
			log.Fatal().Err(err).Msg("Failed to apply identity migrations")
		}
		idSrv = identity.NewServer(idDB, identity.Options{
			Secret:             []byte(cfg.JWTSecret),
			Issuer:             cfg.JWTIssuer,
			TokenTTL:           cfg.TokenTTL,
			LoginRatePerMinute: cfg.LoginRatePerMinute,
		})
		if err := scheduler.Add("identity_purge", "@every 10m", func(ctx context.Context) error {
			n, err := idSrv.PurgeRevoked(ctx)
			if n > 0 {
				log.Info().Int64("purged", n).Msg("Purged expired revocations")
			}
			return err
		}); err != nil {
			log.Fatal().Err(err).Msg("Failed to schedule identity purge")
		}
	}

	newAuth, err := auth.Factory(cfg.AuthBackend, store, cfg.IdentityURL, &http.Client{Timeout: 10 * time.Second})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to set up authentication")
	}

	// Set up WebSocket Hub
	hub := websocket.NewHub()
	go hub.Run()

	// Set up and run the background store monitor
	storeMonitor := monitoring.NewStoreMonitor(store.Path())
	if err := scheduler.Add("store_monitor", "@every 1m", storeMonitor.Run); err != nil {
		log.Fatal().Err(err).Msg("Failed to schedule store monitor")
	}
	scheduler.Start()

	// Set up router
	router := api.NewRouter(api.Deps{
		Store:   store,
		Hub:     hub,
		Stats:   storeMonitor,
		NewAuth: newAuth,
		Navigation: navigation.Options{
			OwnerID:          cfg.DefaultOwnerID,
			OwnerFromSession: cfg.OwnerFromSession,
		},
		Identity:       idSrv,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	// Set up server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.ServerPort),
		Handler: router,
	}

	// Graceful shutdown
	go func() {
		log.Info().Int("port", cfg.ServerPort).Str("auth_backend", cfg.AuthBackend).Msg("Server starting")
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("ListenAndServe failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	hub.Stop()

	log.Info().Msg("Server exiting")
}
