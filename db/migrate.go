package db

import (
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/iancoleman/strcase"

	// Necessary for migrating from the file system
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

// MigrationStatus is the version of the DB schema and whether the last
// migration was left half-applied
type MigrationStatus struct {
	Dirty   bool `json:"dirty"`
	Version uint `json:"version"`
}

// MigrationStatus returns the migrations version number and dirtyness
func (d *DB) MigrationStatus() (MigrationStatus, error) {
	m, err := d.migrator()
	if err != nil {
		return MigrationStatus{}, err
	}

	version, dirty, err := m.Version()
	if err != nil {
		if errors.Is(err, migrate.ErrNilVersion) {
			return MigrationStatus{}, nil
		}
		return MigrationStatus{}, err
	}
	return MigrationStatus{
		Dirty:   dirty,
		Version: version,
	}, nil
}

// MigrateUp Migrates everything up
func (d *DB) MigrateUp() error {
	log.WithField("migrationsPath", d.MigrationsPath).Info("Migrating up")
	m, err := d.migrator()
	if err != nil {
		return err
	}

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Info("No migrations applied")
			return nil
		}
		log.WithError(err).Error("Could not migrate up")
		return fmt.Errorf("could not migrate up: %w", err)
	}

	log.Info("Successfully migrated up")
	return nil
}

// MigrateDown migrates down the given number of steps
func (d *DB) MigrateDown(steps int) error {
	m, err := d.migrator()
	if err != nil {
		return err
	}

	return m.Steps(-steps)
}

// ForceVersion sets the migration version and clears the dirty flag, without
// running any migrations
func (d *DB) ForceVersion(version int) error {
	m, err := d.migrator()
	if err != nil {
		return err
	}
	return m.Force(version)
}

// MigrationFileNames returns the up and down file names for a new migration
// with the given description, created at the given time
func MigrationFileNames(dir, description string, at time.Time) (up, down string) {
	base := at.UTC().Format("20060102150405") + "_" + strcase.ToSnake(description)
	return path.Join(dir, base+".up.pgsql"), path.Join(dir, base+".down.pgsql")
}

// CreateMigration creates a new pair of empty migration files. It returns
// the path of the up migration.
func (d *DB) CreateMigration(description string) (string, error) {
	parts := strings.SplitN(d.MigrationsPath, ":", 2)
	if len(parts) != 2 {
		return "", fmt.Errorf("couldn't extract directory from migrations path: %s", d.MigrationsPath)
	}
	migrationsDir := strings.TrimPrefix(parts[1], "//")

	up, down := MigrationFileNames(migrationsDir, description, time.Now())
	for _, file := range []string{up, down} {
		f, err := os.Create(file)
		if err != nil {
			return "", fmt.Errorf("could not create migration file %s: %w", file, err)
		}
		if err := f.Close(); err != nil {
			return "", err
		}
	}
	return up, nil
}
