package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"creditvault/config"
	"creditvault/observability/logging"
	"creditvault/observability/otel"
	"creditvault/rpc"
	"creditvault/state"
	"creditvault/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	env := strings.TrimSpace(os.Getenv("VAULTD_ENV"))

	cfg, err := config.Load(*configFile)
	if err != nil {
		logging.Setup(logging.Options{Service: "vaultd", Env: env}).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.Setup(logging.Options{
		Service:    "vaultd",
		Env:        env,
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Telemetry.Enabled {
		shutdown, err := otel.Init(ctx, otel.Config{
			ServiceName: cfg.Telemetry.ServiceName,
			Environment: env,
			Endpoint:    cfg.Telemetry.OTLPEndpoint,
			Insecure:    true,
			Traces:      true,
			Metrics:     true,
		})
		if err != nil {
			logger.Error("failed to initialise telemetry", "error", err)
			os.Exit(1)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown failed", "error", err)
			}
		}()
	}

	var db storage.Database
	if strings.TrimSpace(cfg.DataDir) == "" {
		db = storage.NewMemDB()
		logger.Warn("no data directory configured, using in-memory store")
	} else {
		ldb, err := storage.NewLevelDB(cfg.DataDir)
		if err != nil {
			logger.Error("failed to open database", "path", cfg.DataDir, "error", err)
			os.Exit(1)
		}
		db = ldb
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warn("database close failed", "error", err)
		}
	}()

	manager := state.NewManager(db)

	if cfg.Genesis.Owner != "" {
		genesis, err := buildGenesis(cfg)
		if err != nil {
			logger.Error("invalid genesis configuration", "error", err)
			os.Exit(1)
		}
		if err := manager.Bootstrap(genesis); err != nil {
			logger.Error("genesis bootstrap failed", "error", err)
			os.Exit(1)
		}
	}

	server, err := rpc.NewServer(cfg, logger, manager)
	if err != nil {
		logger.Error("failed to construct rpc server", "error", err)
		os.Exit(1)
	}

	if cfg.Genesis.Owner != "" {
		owner, err := config.ParseAddress(cfg.Genesis.Owner)
		if err != nil {
			logger.Error("invalid genesis owner", "error", err)
			os.Exit(1)
		}
		if err := server.BindScheduler(owner); err != nil {
			logger.Warn("delay scheduler not bound", "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case err := <-errCh:
		if err != nil {
			logger.Error("rpc server failed", "error", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown failed", "error", err)
		}
	}
}

func buildGenesis(cfg *config.Config) (state.Genesis, error) {
	var genesis state.Genesis
	owner, err := config.ParseAddress(cfg.Genesis.Owner)
	if err != nil {
		return genesis, err
	}
	genesis.Owner = owner
	for _, raw := range cfg.Genesis.Admins {
		addr, err := config.ParseAddress(raw)
		if err != nil {
			return genesis, err
		}
		genesis.Admins = append(genesis.Admins, addr)
	}
	for _, raw := range cfg.Genesis.Governors {
		addr, err := config.ParseAddress(raw)
		if err != nil {
			return genesis, err
		}
		genesis.Governors = append(genesis.Governors, addr)
	}
	for _, bal := range cfg.Genesis.Balances {
		addr, err := config.ParseAddress(bal.Address)
		if err != nil {
			return genesis, err
		}
		seed := state.GenesisBalance{Addr: addr}
		if bal.Settle != "" {
			if seed.Settle, err = config.ParseAmount(bal.Settle); err != nil {
				return genesis, err
			}
		}
		if bal.Reward != "" {
			if seed.Reward, err = config.ParseAmount(bal.Reward); err != nil {
				return genesis, err
			}
		}
		genesis.Balances = append(genesis.Balances, seed)
	}
	return genesis, nil
}
