package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a pooled Postgres connection through the pgx stdlib driver and
// verifies it with a ping.
func Open(ctx context.Context, dsn string, development bool) (*sql.DB, error) {
	db, err := sql.Open("pgx", PrepareDSN(dsn, development))
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxIdleTime(5 * time.Minute)
	return db, nil
}

// PrepareDSN disables SSL for local development and forces the simple query
// protocol elsewhere, where a transaction pooler such as pgbouncer sits in
// front of Postgres and server-side prepared statements break.
func PrepareDSN(dsn string, development bool) string {
	isURL := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	appendParam := func(param string) {
		separator := " "
		if isURL {
			separator = "?"
			if strings.Contains(dsn, "?") {
				separator = "&"
			}
		}
		dsn += separator + param
	}

	if development && !strings.Contains(dsn, "sslmode") {
		appendParam("sslmode=disable")
	}
	if !development && !strings.Contains(dsn, "prefer_simple_protocol") {
		appendParam("prefer_simple_protocol=true")
	}
	return dsn
}

// Migrate applies all pending migrations found at sourceURL (for example
// "file://migrations"). It reports whether any migration ran.
func Migrate(db *sql.DB, sourceURL string) (bool, error) {
	m, err := NewMigrator(db, sourceURL)
	if err != nil {
		return false, err
	}
	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return false, nil
		}
		return false, fmt.Errorf("apply migrations: %w", err)
	}
	return true, nil
}

// NewMigrator builds a migrator over an open connection.
func NewMigrator(db *sql.DB, sourceURL string) (*migrate.Migrate, error) {
	driver, err := pgxmigrate.WithInstance(db, &pgxmigrate.Config{})
	if err != nil {
		return nil, fmt.Errorf("create migration driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance(sourceURL, "pgx5", driver)
	if err != nil {
		return nil, fmt.Errorf("create migrator: %w", err)
	}
	return m, nil
}
