package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/HammerMeetNail/matchpoint/internal/logging"
)

// Migrator applies the SQL files under migrations/ with golang-migrate.
type Migrator struct {
	m *migrate.Migrate
}

func NewMigrator(dsn, migrationsPath string) (*Migrator, error) {
	m, err := migrate.New("file://"+migrationsPath, dsn)
	if err != nil {
		return nil, fmt.Errorf("creating migrator: %w", err)
	}

	return &Migrator{m: m}, nil
}

func (m *Migrator) Up() error {
	err := m.m.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migrations: %w", err)
	}
	return nil
}

func (m *Migrator) Version() (uint, bool, error) {
	return m.m.Version()
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if srcErr != nil {
		return srcErr
	}
	return dbErr
}

// Apply brings the schema up to date. A dirty schema is refused before
// anything runs, since golang-migrate needs a manual force to recover it.
func (m *Migrator) Apply(logger *logging.Logger) error {
	from, err := m.current()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		return err
	}

	to, err := m.current()
	if err != nil {
		return err
	}

	fields := map[string]interface{}{"from": from, "to": to}
	if to == from {
		logger.Debug("No pending migrations", fields)
	}
	logger.Info("Schema is up to date", fields)
	return nil
}

// current returns the applied version, 0 for an empty schema.
func (m *Migrator) current() (uint, error) {
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading schema version: %w", err)
	}
	if dirty {
		return 0, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}
