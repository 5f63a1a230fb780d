// internal/database/migration.go
package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded session schema. It opens its own
// connection per command so closing it never closes the shared pool.
type Migrator struct {
	databaseURL string
	logger      *zap.Logger
}

func NewMigrator(databaseURL string, logger *zap.Logger) *Migrator {
	return &Migrator{
		databaseURL: databaseURL,
		logger:      logger,
	}
}

// withMigrate runs fn against a fresh migrate instance over the embedded
// files and releases it afterwards.
func (m *Migrator) withMigrate(fn func(*migrate.Migrate) error) error {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	instance, err := migrate.NewWithSourceInstance("iofs", source, m.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	runErr := fn(instance)
	if srcErr, dbErr := instance.Close(); runErr == nil {
		if srcErr != nil {
			return fmt.Errorf("failed to close migration source: %w", srcErr)
		}
		if dbErr != nil {
			return fmt.Errorf("failed to close migration connection: %w", dbErr)
		}
	}
	return runErr
}

// Up applies pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	return m.withMigrate(func(instance *migrate.Migrate) error {
		if err := instance.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration up failed: %w", err)
		}
		version, _, _ := instance.Version()
		m.logger.Info("Session schema up to date", zap.Uint("version", version))
		return nil
	})
}

// Down rolls back every migration, dropping session_results
func (m *Migrator) Down() error {
	return m.withMigrate(func(instance *migrate.Migrate) error {
		if err := instance.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("migration down failed: %w", err)
		}
		m.logger.Info("Session schema rolled back")
		return nil
	})
}

// Version reports the applied version and dirty flag. A database without
// any applied migration reports version 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	err = m.withMigrate(func(instance *migrate.Migrate) error {
		var vErr error
		version, dirty, vErr = instance.Version()
		if errors.Is(vErr, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if vErr != nil {
			return fmt.Errorf("failed to get version: %w", vErr)
		}
		return nil
	})
	return version, dirty, err
}

// Force marks version as applied and clears the dirty flag
func (m *Migrator) Force(version int) error {
	return m.withMigrate(func(instance *migrate.Migrate) error {
		if err := instance.Force(version); err != nil {
			return fmt.Errorf("failed to force version %d: %w", version, err)
		}
		m.logger.Warn("Migration version forced", zap.Int("version", version))
		return nil
	})
}
