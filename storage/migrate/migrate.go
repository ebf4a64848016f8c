// Package migrate applies archive schema migrations.
package migrate

import (
	"errors"

	migrate "github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres driver for golang_migrate
	_ "github.com/golang-migrate/migrate/v4/source/file"       // support file scheme for golang_migrate

	"github.com/subsquid/archive-gateway/log"
)

// Up applies all pending migrations of source, e.g. file://storage/migrations,
// to the database at dbURL.
func Up(source, dbURL string, logger *log.Logger) error {
	m, err := migrate.New(source, dbURL)
	if err != nil {
		logger.Error("migrator failed to start",
			"error", err,
		)
		return err
	}
	defer m.Close()

	switch err = m.Up(); {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Info("no migrations needed to be applied")
	case err != nil:
		logger.Error("migrations failed",
			"error", err,
		)
		return err
	default:
		logger.Info("migrations completed")
	}
	return nil
}
