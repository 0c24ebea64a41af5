package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/noah-isme/sma-consultation-api/migrations"
	"github.com/noah-isme/sma-consultation-api/pkg/config"
	"github.com/noah-isme/sma-consultation-api/pkg/database"
	"github.com/noah-isme/sma-consultation-api/pkg/logger"
)

const usage = `usage: migrate <command>

commands:
  up       apply all pending migrations
  down     roll back the latest migration
  status   print the state of every migration
  version  print the current schema version`

func main() {
	flag.Usage = func() { fmt.Fprintln(os.Stderr, usage) }
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to database", "error", err)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	switch flag.Arg(0) {
	case "up":
		if err := migrations.Up(ctx, db.DB, logr); err != nil {
			logr.Sugar().Fatalw("migration failed", "error", err)
		}
	case "down", "status", "version":
		provider, err := migrations.NewProvider(db.DB)
		if err != nil {
			logr.Sugar().Fatalw("migration provider failed", "error", err)
		}
		if err := run(ctx, provider, flag.Arg(0)); err != nil {
			logr.Sugar().Fatalw("migration command failed", "command", flag.Arg(0), "error", err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}
}
