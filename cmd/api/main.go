package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/rs/cors"

	"github.com/worklyhq/backend/internal/auth"
	"github.com/worklyhq/backend/internal/chain"
	"github.com/worklyhq/backend/internal/config"
	"github.com/worklyhq/backend/internal/escrow"
	"github.com/worklyhq/backend/internal/handlers"
	"github.com/worklyhq/backend/internal/keyvault"
	"github.com/worklyhq/backend/internal/ledger"
	"github.com/worklyhq/backend/internal/repository"
	"github.com/worklyhq/backend/internal/server"
	"github.com/worklyhq/backend/internal/sweep"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Unable to create database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		slog.Error("Cannot reach PostgreSQL. Ensure it is running, e.g. docker-compose up -d", "error", err)
		os.Exit(1)
	}
	slog.Info("Connected to PostgreSQL")

	// River migrations
	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		slog.Error("Failed to create River migrator", "error", err)
		os.Exit(1)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		slog.Error("River migrate up failed", "error", err)
		os.Exit(1)
	}

	vault, err := keyvault.New(cfg.VaultMasterKey)
	if err != nil {
		slog.Error("Key vault init failed", "error", err)
		os.Exit(1)
	}
	rpcClient := chain.NewRPCClient(cfg.RPCURL, cfg.RPCTimeout)

	walletRepo := repository.NewWalletRepo(pool)
	escrowRepo := repository.NewEscrowRepo(pool)
	logRepo := repository.NewLogRepo(pool)

	ledgerSvc := ledger.NewService(ledger.Config{
		Keys:            vault,
		Ledger:          rpcClient,
		Store:           walletRepo,
		Logs:            logRepo,
		MinWithdrawal:   cfg.MinWithdrawal,
		ConfirmTimeout:  cfg.ConfirmTimeout,
		ConfirmInterval: cfg.ConfirmInterval,
		Logger:          logger,
	})
	escrowSvc := escrow.NewService(escrow.Config{
		Keys:            vault,
		Ledger:          rpcClient,
		Store:           escrowRepo,
		Wallets:         walletRepo,
		TreasuryAddress: cfg.TreasuryAddress,
		ConfirmTimeout:  cfg.ConfirmTimeout,
		ConfirmInterval: cfg.ConfirmInterval,
		Logger:          logger,
	})

	// Funding sweep: escrows still awaiting payment are checked in the
	// background so deposits land even when nobody is polling.
	workers := river.NewWorkers()
	river.AddWorker(workers, sweep.NewFundingSweepWorker(escrowSvc, logger))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: 10},
		},
		Workers:      workers,
		PeriodicJobs: []*river.PeriodicJob{sweep.PeriodicJob(cfg.SweepInterval)},
	})
	if err != nil {
		slog.Error("Failed to create River client", "error", err)
		os.Exit(1)
	}

	metrics := server.NewMetrics()
	authSvc := auth.NewService(cfg.JWTSecret)

	walletHandler := &handlers.WalletHandler{Wallets: ledgerSvc, Metrics: metrics, Logger: logger}
	escrowHandler := &handlers.EscrowHandler{Escrows: escrowSvc, Logs: logRepo, Metrics: metrics, Logger: logger}
	feeHandler := &handlers.FeeHandler{Wallets: ledgerSvc}

	mux := http.NewServeMux()
	RegisterRoutes(mux, authSvc, walletHandler, escrowHandler, feeHandler)
	mux.Handle("GET /metrics", metrics.Handler())

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}).Handler(mux)

	riverCtx, stopRiver := context.WithCancel(ctx)
	defer stopRiver()
	go func() {
		if err := riverClient.Start(riverCtx); err != nil && riverCtx.Err() == nil {
			slog.Error("River client stopped", "error", err)
		}
	}()

	addr := "0.0.0.0:" + cfg.Port
	slog.Info("Starting HTTP server", "addr", addr)
	if err := http.ListenAndServe(addr, corsHandler); err != nil {
		slog.Error("HTTP server failed", "error", err)
		os.Exit(1)
	}
}
