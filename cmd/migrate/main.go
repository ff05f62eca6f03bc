package main

import (
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/fuelerp/backend/internal/infrastructure/config"
	"github.com/fuelerp/backend/internal/infrastructure/logger"
	"github.com/fuelerp/backend/internal/infrastructure/persistence"
)

func main() {
	dryRun := flag.Bool("dry-run", false, "print the tables that would be migrated and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	if *dryRun {
		for _, table := range persistence.MigratedTables() {
			fmt.Println(table)
		}
		return
	}

	db, err := persistence.NewDatabaseWithLogger(
		&cfg.Database,
		logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		_ = db.Close()
	}()

	log.Info("Running migrations",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.DBName),
	)

	if err := persistence.AutoMigrate(db.DB); err != nil {
		log.Fatal("Migration failed", zap.Error(err))
	}

	log.Info("Migrations complete")
}
