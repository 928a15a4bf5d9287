package main

import (
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	var (
		command = flag.String("command", "up", "Migration command (up, down, force)")
		path    = flag.String("path", "file://migrations", "Migration source path")
		version = flag.Int("version", 1, "Version for the force command")
	)
	flag.Parse()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL is not set")
	}

	cfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		logger.Fatal("invalid DATABASE_URL", zap.Error(err))
	}
	db := stdlib.OpenDB(*cfg)
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		logger.Fatal("failed to create migration driver", zap.Error(err))
	}

	m, err := migrate.NewWithDatabaseInstance(*path, "postgres", driver)
	if err != nil {
		logger.Fatal("failed to create migrator", zap.Error(err))
	}

	switch *command {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("failed to apply migrations", zap.Error(err))
		}
		logger.Info("migrations applied")
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			logger.Fatal("failed to revert migrations", zap.Error(err))
		}
		logger.Info("migrations reverted")
	case "force":
		if err := m.Force(*version); err != nil {
			logger.Fatal("failed to force migration version", zap.Error(err))
		}
		logger.Info("migration version forced", zap.Int("version", *version))
	default:
		logger.Fatal("unknown command", zap.String("command", *command))
	}
}
