package main

import (
	"flag"
	"os"

	"libris/internal/platform/config"
	"libris/internal/platform/db/migrate"
	"libris/internal/platform/logger"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up or down")
	flag.Parse()

	cfg := config.FromEnv()
	log := logger.New()

	if err := migrate.Run(cfg.DatabaseURL, *direction); err != nil {
		log.Error("migration failed", "direction", *direction, "error", err)
		os.Exit(1)
	}
	log.Info("migrations applied", "direction", *direction)
}
