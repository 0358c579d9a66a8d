package main

import (
	"context"
	"fmt"
	"log"

	"h2hServer/config"
	"h2hServer/crypto"
	"h2hServer/db"
	"h2hServer/logger"
	"h2hServer/market"
	"h2hServer/seed"

	"go.uber.org/zap"
)

func main() {
	cfg, loaded, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := logger.Init(cfg.LogLevel, "console"); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	if !loaded {
		logger.Log.Warn("⚠️  .env not found, using environment variables")
	}

	// The server bootstraps its own memory store on startup
	if cfg.Store == config.StoreMemory {
		logger.Log.Fatal("STORE_DRIVER must be sqlite or postgres to seed")
	}
	if cfg.AdminPrivateKey == "" {
		logger.Log.Fatal("ADMIN_PRIVATE_KEY not set")
	}
	_, admin, err := crypto.LoadPrivateKey(cfg.AdminPrivateKey)
	if err != nil {
		logger.Log.Fatal("Failed to load admin key", zap.Error(err))
	}

	ctx := context.Background()
	store, err := db.Open(ctx, cfg, logger.Log)
	if err != nil {
		logger.Log.Fatal("Failed to open store", zap.Error(err))
	}
	defer store.Close()

	program := market.NewProgram(store, market.WithLogger(logger.Log))
	accounts := seed.Accounts(cfg.SeedAccounts)

	fmt.Println("Initializing market accounts...")
	steps, err := seed.Bootstrap(ctx, program, store, seed.Options{
		Admin:        admin,
		Denomination: seed.Denomination(cfg.Denomination),
		Accounts:     accounts,
		MintAmount:   config.DefaultMintAmount,
		Log:          logger.Log,
	})
	for _, step := range steps {
		if step.Created {
			fmt.Printf("  %-7s -> created\n", step.Name)
		} else {
			fmt.Printf("  %-7s -> already initialized\n", step.Name)
		}
	}
	if err != nil {
		logger.Log.Fatal("Failed to seed", zap.Error(err))
	}

	fmt.Printf("\nMinted %d to %d accounts\n", config.DefaultMintAmount, len(accounts))
	for _, addr := range accounts {
		balance, err := program.Balance(ctx, addr)
		if err != nil {
			log.Printf("Failed to read balance of %s: %v", addr.Hex()[:10], err)
			continue
		}
		fmt.Printf("  %s... -> %d\n", addr.Hex()[:10], balance)
	}

	marketCfg, err := program.Config(ctx)
	if err != nil {
		logger.Log.Fatal("Failed to read config", zap.Error(err))
	}
	fmt.Println("\nDone!")
	fmt.Printf("  admin:        %s\n", marketCfg.Admin.Hex())
	fmt.Printf("  denomination: %s\n", marketCfg.Denomination.Hex())
	fmt.Printf("  bet size:     %d\n", marketCfg.BetSize)
	fmt.Printf("  vault:        %s\n", market.VaultAccount.Hex())
}
