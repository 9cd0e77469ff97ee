package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/anthanhphan/go-chunked-file-storage/internal/api/adapter/outbound/metastore"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/app"
	"github.com/anthanhphan/go-chunked-file-storage/internal/api/config"
)

var errNoDatabase = errors.New("migrate needs database.driver postgres")

func main() {
	var configPath string
	var migrateOnly bool
	flag.StringVar(&configPath, "configPath", "", "Path to configuration file")
	flag.BoolVar(&migrateOnly, "migrate", false, "Apply metadata schema migrations and exit")
	flag.Parse()

	if migrateOnly {
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if err := migrate(cfg); err != nil {
			log.Fatalf("Migration failed: %v", err)
		}
		log.Printf("Metadata schema is up to date")
		return
	}

	gateway, err := app.New(configPath)
	if err != nil {
		log.Fatalf("Failed to start gateway: %v", err)
	}
	if err := gateway.Run(); err != nil {
		log.Fatalf("Gateway stopped: %v", err)
	}
}

// migrate runs the goose migrations against the configured postgres, for
// deployments that keep database.auto_migrate off.
func migrate(cfg *config.Config) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("%w, got %q", errNoDatabase, cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	db, err := metastore.OpenPostgres(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	return metastore.Migrate(ctx, db)
}
