package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"vidshare/internal/config"
	"vidshare/internal/domain/models"
	"vidshare/internal/lib/password"
	"vidshare/internal/storage"
	"vidshare/internal/storage/mongodb"
	"vidshare/internal/storage/sqlite"
)

type accountSaver interface {
	SaveAccount(ctx context.Context, account models.Account) (models.Account, error)
}

func main() {
	var configPath, seedPassword string
	var seed bool
	flag.StringVar(&configPath, "config", "", "path to config file (or use CONFIG_PATH env)")
	flag.BoolVar(&seed, "seed", false, "create a demo account")
	flag.StringVar(&seedPassword, "seed-password", "demo-password", "password of the demo account")
	flag.Parse()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}

	cfg := config.LoadConfig(configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var saver accountSaver

	switch cfg.Storage.Driver {
	case "sqlite":
		applied, err := sqlite.Migrate(cfg.Storage.Path, cfg.MigrationsPath)
		if err != nil {
			log.Fatalf("failed to apply migrations: %v", err)
		}
		if applied {
			log.Println("Migrations applied")
		} else {
			log.Println("No migrations to apply")
		}

		s, err := sqlite.New(cfg.Storage.Path)
		if err != nil {
			log.Fatalf("failed to open sqlite: %v", err)
		}
		defer s.Close()
		saver = s
	case "mongodb":
		log.Println("Connecting to MongoDB...")

		s, err := mongodb.New(ctx, cfg.Storage.Mongo.URI, cfg.Storage.Mongo.Database)
		if err != nil {
			log.Fatalf("failed to connect to mongodb: %v", err)
		}
		defer s.Close(ctx)

		log.Println("MongoDB connected, indexes created successfully")
		saver = s
	default:
		log.Fatalf("storage driver %q has no schema to manage", cfg.Storage.Driver)
	}

	if seed {
		if err := seedDemo(ctx, saver, cfg.Password.Cost, seedPassword); err != nil {
			log.Fatalf("failed to seed demo account: %v", err)
		}
	}

	fmt.Println("Database initialization completed successfully")
}

func seedDemo(ctx context.Context, saver accountSaver, cost int, pass string) error {
	hash, err := password.NewHasher(cost).Hash(pass)
	if err != nil {
		return err
	}

	account, err := saver.SaveAccount(ctx, models.Account{
		Username: "demo",
		Email:    "demo@vidshare.local",
		FullName: "Demo User",
		PassHash: hash,
	})
	if err != nil {
		if errors.Is(err, storage.ErrAccountExists) {
			log.Println("Demo account already exists")
			return nil
		}
		return err
	}

	log.Printf("Demo account seeded (id=%s, username=demo)", account.ID)
	return nil
}
