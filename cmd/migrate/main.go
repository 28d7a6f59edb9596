package main

import (
	"context"
	"errors"
	"flag"
	"os/signal"
	"syscall"

	"inkpost/internal/config"
	"inkpost/internal/database"
	"inkpost/internal/logger"

	"github.com/golang-migrate/migrate/v4"
	"github.com/joho/godotenv"
)

func main() {
	// Parse mode flags
	mode := flag.String("mode", "up", "Migration mode: up|down|goto|status")
	steps := flag.Int("steps", 0, "Number of migrations to roll back in down mode (0 means all)")
	version := flag.Uint("version", 0, "Target version for goto mode")
	flag.Parse()

	envErr := godotenv.Load()
	logger := logger.New()
	if envErr != nil {
		logger.Warn().Msg("Warning: no .env file found")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Msgf("Error loading config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	db, err := database.Open(ctx, cfg.DBConnectionString, cfg.IsDevelopment())
	if err != nil {
		logger.Fatal().Msgf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	m, err := database.NewMigrator(db, cfg.MigrationsPath)
	if err != nil {
		logger.Fatal().Msgf("Failed to create migrator: %v", err)
	}

	// Stop the running migration between steps on SIGINT/SIGTERM
	go func() {
		<-ctx.Done()
		select {
		case m.GracefulStop <- true:
		default:
		}
	}()

	var runErr error
	switch *mode {
	case "up":
		runErr = m.Up()
	case "down":
		if *steps > 0 {
			runErr = m.Steps(-*steps)
		} else {
			runErr = m.Down()
		}
	case "goto":
		if *version == 0 {
			logger.Fatal().Msg("goto mode requires -version")
		}
		runErr = m.Migrate(*version)
	case "status":
	default:
		logger.Fatal().Msgf("Invalid mode: %s", *mode)
	}

	if runErr != nil && !errors.Is(runErr, migrate.ErrNoChange) {
		logger.Fatal().Msgf("%s migration failed: %v", *mode, runErr)
	}

	v, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		logger.Info().Str("mode", *mode).Msg("No migrations applied")
	case err != nil:
		logger.Fatal().Msgf("Failed to read migration version: %v", err)
	default:
		logger.Info().Str("mode", *mode).Uint("version", v).Bool("dirty", dirty).Msg("Migration finished")
	}
}
