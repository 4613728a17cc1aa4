package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type Config struct {
	RunAddress  string
	DatabaseURI string
	StorageFile string
	Key         string
	TokenTTL    time.Duration
	SeedCatalog bool
	Logger      *zap.SugaredLogger
}

func NewConfig() (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	logCfg := zap.NewProductionConfig()
	logCfg.OutputPaths = []string{"stdout", "server.log"}

	logger := zap.Must(logCfg.Build())

	cfg := &Config{}
	flag.StringVar(&cfg.RunAddress, "a", "localhost:8080", "HTTP server address")
	flag.StringVar(&cfg.DatabaseURI, "d", "", "DB connection string, file storage is used when empty")
	flag.StringVar(&cfg.StorageFile, "f", "data/db.json", "JSON database file")
	flag.StringVar(&cfg.Key, "k", "", "token signing key")
	flag.DurationVar(&cfg.TokenTTL, "ttl", 24*time.Hour, "session token lifetime")
	flag.BoolVar(&cfg.SeedCatalog, "seed-catalog", true, "fill an empty catalog with default entries")
	flag.Parse()

	cfg.Logger = logger.Sugar()

	if err := ReadServerEnvironment(cfg); err != nil {
		return nil, err
	}

	if cfg.Key == "" {
		cfg.Logger.Warn("SERVICE_CENTER_KEY is not set, using an insecure development key")
		cfg.Key = "dev-insecure-key"
	}

	return cfg, nil
}

func ReadServerEnvironment(cfg *Config) error {
	if runAddress := os.Getenv("RUN_ADDRESS"); runAddress != "" {
		cfg.RunAddress = runAddress
	}

	if databaseURI := os.Getenv("DATABASE_URI"); databaseURI != "" {
		cfg.DatabaseURI = databaseURI
	}

	if storageFile := os.Getenv("STORAGE_FILE"); storageFile != "" {
		cfg.StorageFile = storageFile
	}

	if key := os.Getenv("SERVICE_CENTER_KEY"); key != "" {
		cfg.Key = key
	}

	if ttl := os.Getenv("TOKEN_TTL"); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return fmt.Errorf("invalid TOKEN_TTL %q: %w", ttl, err)
		}
		cfg.TokenTTL = d
	}

	if seed := os.Getenv("SEED_CATALOG"); seed != "" {
		b, err := strconv.ParseBool(seed)
		if err != nil {
			return fmt.Errorf("invalid SEED_CATALOG %q: %w", seed, err)
		}
		cfg.SeedCatalog = b
	}

	return nil
}
