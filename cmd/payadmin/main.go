package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	rpcadapter "github.com/efisher/payadmin/internal/adapter/driven/rpc"
	sqliteadapter "github.com/efisher/payadmin/internal/adapter/driven/sqlite"
	vaultadapter "github.com/efisher/payadmin/internal/adapter/driven/vault"
	httphandler "github.com/efisher/payadmin/internal/adapter/driving/http"
	"github.com/efisher/payadmin/internal/application"
	"github.com/efisher/payadmin/internal/config"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"app_env", cfg.AppEnv,
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"keys_dir", cfg.KeysDir,
		"cache_ttl", cfg.CacheTTL,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}
	slog.Info("migrations complete")

	// 5. Wire driven adapters.
	credentialVault := vaultadapter.NewFileVault(cfg.KeysDir, cfg.SecretSource())
	beneficiaryStore := sqliteadapter.NewBeneficiaryRepo(db)
	backend := rpcadapter.NewClient(credentialVault, cfg.BaseURLs,
		rpcadapter.WithTimeout(cfg.CallTimeout),
	)

	// 6. Wire the application core.
	gateway := application.NewGateway(
		backend,
		application.NewReadCache(cfg.CacheTTL),
		application.NewIdempotencyManager(),
		slog.Default(),
	)

	// 7. Create HTTP handler and register routes.
	apiHandler := httphandler.NewHandler(gateway, credentialVault, beneficiaryStore, slog.Default())
	handler := httphandler.NewServeMux(apiHandler, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("payadmin started", "listen_addr", cfg.ListenAddr)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain the HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
