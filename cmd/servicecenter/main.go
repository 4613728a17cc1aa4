package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/and161185/servicecenter/internal/auth"
	"github.com/and161185/servicecenter/internal/catalog"
	"github.com/and161185/servicecenter/internal/config"
	"github.com/and161185/servicecenter/internal/deps"
	"github.com/and161185/servicecenter/internal/orders"
	"github.com/and161185/servicecenter/internal/server"
	"github.com/and161185/servicecenter/internal/storage"
)

type backend interface {
	orders.Storage
	catalog.Storage
	auth.UserStorage
	server.HealthChecker
	Close()
	String() string
}

func openStorage(ctx context.Context, cfg *config.Config) (backend, error) {
	if cfg.DatabaseURI != "" {
		pg, err := storage.NewPostgresStorage(ctx, cfg.DatabaseURI)
		if err != nil {
			return nil, err
		}
		return pg, nil
	}

	fs, err := storage.NewFileStorage(cfg.StorageFile)
	if err != nil {
		return nil, err
	}
	return fs, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.NewConfig()
	if err != nil {
		log.Fatal(err)
	}
	deps := deps.NewDependencies(cfg)
	logger := deps.Logger
	defer logger.Sync()

	store, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal(err)
	}
	defer store.Close()
	logger.Infof("using storage %s", store)

	services := catalog.NewManager(store, logger)
	if cfg.SeedCatalog {
		if _, err := services.SeedDefaults(ctx); err != nil {
			logger.Fatal(err)
		}
	}

	identity := auth.NewIdentity(store, deps.TokenManager, logger)
	unsubscribe := identity.OnSessionChange(func(e auth.SessionEvent) {
		logger.Infow("session changed", "event", e.Kind, "user", e.UserID)
	})
	defer unsubscribe()

	orderManager := orders.NewManager(store, services, logger)

	srv := server.NewServer(orderManager, services, identity, store, cfg, deps)
	if err := srv.Run(ctx); err != nil {
		logger.Fatal(err)
	}
}
