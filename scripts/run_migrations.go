package main

import (
	"log"
	"os"

	"github.com/safar/vinyl-store/internal/config"
	"github.com/safar/vinyl-store/internal/database"
	"go.uber.org/zap"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction, err := database.ParseDirection(os.Args[1])
	if err != nil {
		log.Fatal(err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Load config: %v", err)
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := database.Migrate(cfg.Database.URL, direction, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}
