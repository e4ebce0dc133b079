package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/krshsl/mockprep/backend/repository"
	"github.com/krshsl/mockprep/backend/services"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	config := services.LoadConfig()
	ctx := context.Background()

	server := services.NewServer(config)

	db, err := openDatabase(ctx, config.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	server.SetDatabase(db.store, db.users, db.ping)

	if config.Database.Seed {
		seeder := services.NewDatabaseSeeder(db.store, db.users)
		if err := seeder.SeedDatabase(ctx); err != nil {
			slog.Error("Failed to seed database", "error", err)
		}
	}

	if err := server.InitializeServices(ctx); err != nil {
		slog.Error("Failed to initialize services", "error", err)
		os.Exit(1)
	}

	server.Start()
}

// database is the storage handed to the server. users and ping are nil for the in-memory store.
type database struct {
	store repository.Store
	users repository.UserStore
	ping  func(ctx context.Context) error
	pool  *pgxpool.Pool
}

func (d *database) Close() {
	if d.pool != nil {
		d.pool.Close()
	}
}

// openDatabase keeps sessions in memory when no DATABASE_URL is set
func openDatabase(ctx context.Context, cfg services.DatabaseConfig) (*database, error) {
	if cfg.URL == "" {
		slog.Warn("Database URL not configured, keeping sessions in memory")
		return &database{store: repository.NewMemoryStore()}, nil
	}

	db, err := repository.Open(repository.OpenOptions{
		Driver:       cfg.Driver,
		URL:          cfg.URL,
		LogLevel:     cfg.LogLevel,
		MaxIdleConns: cfg.MaxIdleConns,
		MaxOpenConns: cfg.MaxOpenConns,
	})
	if err != nil {
		return nil, err
	}

	repo := repository.NewGORMRepository(db)
	if err := repo.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	slog.Info("Connected to database", "driver", cfg.Driver)

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	result := &database{store: repo, users: repo, ping: sqlDB.PingContext}

	// postgres health goes through a small pgx pool so a stuck GORM pool does not hide an outage
	if cfg.Driver == "" || strings.EqualFold(cfg.Driver, "postgres") {
		pool, err := pgxpool.New(ctx, cfg.URL)
		if err != nil {
			slog.Error("Failed to create health check pool", "error", err)
		} else {
			result.pool = pool
			result.ping = pool.Ping
		}
	}
	return result, nil
}
