// Package main is the entry point for the roulette server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"roulette-server/internal/admin"
	"roulette-server/internal/config"
	"roulette-server/internal/gateway"
	"roulette-server/internal/pkg/db"
	"roulette-server/internal/pkg/middleware"
	"roulette-server/internal/repository"
	"roulette-server/internal/room"
	"roulette-server/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	setLogLevel(cfg.Server.LogLevel)
	log.Info().Str("addr", cfg.Server.Addr).Msg("Configuration loaded successfully")

	roomCfg, err := roomConfig(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid room configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	deps := room.Deps{}
	adminDeps := admin.HandlerDeps{
		Token:   cfg.Server.AdminToken,
		Origins: cfg.Gateway.AllowedOrigins,
	}

	var (
		dbPool *db.Pool
		users  *repository.UserRepository
		txs    *repository.TransactionRepository
	)
	if cfg.Database.Enabled {
		dbPool, err = db.NewPool(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to database")
		}
		defer dbPool.Close()

		if err := db.Migrate(ctx, dbPool.Pool); err != nil {
			log.Fatal().Err(err).Msg("Failed to run database migrations")
		}

		users = repository.NewUserRepository(dbPool.Pool)
		txs = repository.NewTransactionRepository(dbPool.Pool)
		rounds := repository.NewRoundRepository(dbPool.Pool)
		failures := repository.NewSettlementFailureRepository(dbPool.Pool)
		deps.Recorder = rounds
		deps.Reconciler = failures
		adminDeps.Failures = failures
		adminDeps.Transactions = txs
		adminDeps.History = rounds
	}

	switch cfg.Settlement.Provider {
	case "wallet":
		wallet := service.NewWalletSettlement(users, txs, cfg.Settlement.InitialBalance)
		deps.Settlement = wallet
		adminDeps.Wallet = wallet
	default:
		deps.Settlement = service.NoopSettlement{Balance: cfg.Settlement.InitialBalance}
	}
	log.Info().
		Str("provider", cfg.Settlement.Provider).
		Bool("database", cfg.Database.Enabled).
		Msg("Settlement configured")

	gw := gateway.New(cfg.Gateway)
	deps.Broadcaster = gw
	directory := room.NewDirectory(roomCfg, deps)
	adminDeps.Rooms = directory

	router := chi.NewRouter()
	router.Use(middleware.Recovery, middleware.Logging)
	router.Get("/healthz", healthHandler(dbPool))
	router.Handle("/ws", gw.Handler(directory))
	router.Mount("/admin", admin.NewHandler(adminDeps).Routes())

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server is starting...")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP shutdown did not complete")
	}
	gw.CloseAll()
	directory.CloseAll()
	log.Info().Msg("Server stopped gracefully")
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		log.Warn().Str("level", level).Msg("Unknown log level, using info")
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
}

func healthHandler(pool *db.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.HealthCheck(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
