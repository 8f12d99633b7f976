package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"livelist/config"
	"livelist/config/database"
	"livelist/internal/room/repository"
	"livelist/pkg/logger"
	"livelist/router"
	"livelist/socket"
)

func main() {
	cfg, loadedEnv := config.Load()
	logger.Init(cfg.LogLevel)
	defer logger.Sync()
	if !loadedEnv {
		logger.Sugar.Info("No .env file found, using environment variables from OS")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg)
	defer closeStore()

	hub := socket.NewHub(store)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.Setup(cfg, hub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Sugar.Infof("Live list server listening on %s", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Sugar.Fatalf("Server failed: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Sugar.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Sugar.Errorf("HTTP shutdown: %v", err)
	}
	// Hijacked WebSocket connections are not tracked by Shutdown; closing the
	// hub disconnects them.
	hub.Close()
}

// openStore returns the Postgres room store when a database is configured,
// otherwise an in-memory one.
func openStore(ctx context.Context, cfg config.Config) (repository.RoomStore, func()) {
	if cfg.DatabaseURL == "" {
		logger.Sugar.Warn("No database configured, rooms are kept in memory")
		return repository.NewMemoryStore(), func() {}
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Sugar.Fatalf("Could not connect to database: %v", err)
	}
	repo := repository.NewRoomRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		logger.Sugar.Fatalf("Could not prepare database: %v", err)
	}
	return repo, func() { db.Close() }
}
