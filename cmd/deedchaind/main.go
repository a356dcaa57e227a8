package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"deedchain/config"
	"deedchain/core/state"
	"deedchain/native/common"
	"deedchain/native/installment"
	"deedchain/native/marketplace"
	"deedchain/native/presale"
	"deedchain/native/reward"
	"deedchain/native/rewardpool"
	"deedchain/observability/logging"
	"deedchain/rpc"
	"deedchain/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("DEEDCHAIN_ENV"))
	logger := logging.Setup("deedchaind", env)

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("Invalid admin address", slog.Any("error", err))
		os.Exit(1)
	}
	minter, err := cfg.Minter()
	if err != nil {
		logger.Error("Invalid minter address", slog.Any("error", err))
		os.Exit(1)
	}

	manager := state.NewManager(db)
	authority := common.NewAuthority()

	poolAddr := common.ModuleAddress("rewardpool")
	registryAddr := common.ModuleAddress("registry")
	marketAddr := common.ModuleAddress("marketplace")
	presaleAddr := common.ModuleAddress("presale")

	authority.Grant(common.RoleAdmin, admin)
	authority.Grant(common.RoleMinter, minter)
	authority.Grant(common.RoleRewardPool, poolAddr)
	authority.Grant(common.RoleRegistry, registryAddr)
	authority.Grant(common.RoleMarketplace, marketAddr)

	ledger := reward.NewLedger(authority)
	ledger.SetState(manager)

	pool := rewardpool.NewPool(authority, ledger, poolAddr)
	pool.SetState(manager)

	registry := installment.NewRegistry(authority, registryAddr)
	registry.SetState(manager)
	registry.SetRewardPool(pool)

	market := marketplace.NewEngine(authority, marketAddr)
	market.SetStableLedger(manager)
	market.SetRegistry(registry)
	if err := market.SetRewardPool(admin, pool); err != nil {
		logger.Error("Failed to wire reward pool", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.InterestRate != marketplace.DefaultInterestRate {
		if err := market.SetInterestRate(admin, cfg.InterestRate); err != nil {
			logger.Error("Invalid interest rate", slog.Any("error", err))
			os.Exit(1)
		}
	}

	sale := presale.NewEngine(authority, presaleAddr)
	sale.SetState(manager)
	sale.SetStableLedger(manager)
	sale.SetTokenLedger(ledger)

	server := rpc.NewServer(manager, ledger, pool, registry, market, sale, logger)
	httpServer := &http.Server{
		Addr:              cfg.RPCAddress,
		Handler:           server.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("HTTP server listening", slog.String("address", cfg.RPCAddress))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown failed", slog.Any("error", err))
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case "memory":
		return storage.NewMemDB(), nil
	case "leveldb":
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "ledger"))
	case "bolt":
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "ledger.db"))
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
