package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/pkg/errors"

	"github.com/satswap/satswap/db"
	"github.com/satswap/satswap/util"
)

// DatabaseEnv must be set for tests that need a running Postgres instance,
// they are skipped otherwise
const DatabaseEnv = "SATSWAP_TEST_DATABASE"

// MigrationsPath is the path of the migrations folder in this repository,
// in the format golang-migrate expects
func MigrationsPath() string {
	_, thisFile, _, _ := runtime.Caller(0)
	return "file://" + filepath.Join(filepath.Dir(thisFile), "..", "db", "migrations")
}

// GetDatabaseConfig returns a DB config suitable for testing purposes. The
// given argument is added to the name of the database
func GetDatabaseConfig(name string) db.DatabaseConfig {
	return db.DatabaseConfig{
		User:           util.GetEnvOrElse("DATABASE_USER", "satswap_test"),
		Password:       util.GetEnvOrElse("DATABASE_PASSWORD", "password"),
		Port:           util.GetDatabasePort(),
		Host:           util.GetEnvOrElse("DATABASE_HOST", "localhost"),
		Name:           "satswap_" + name,
		MigrationsPath: MigrationsPath(),
	}
}

// SkipIfNoDatabase skips the given test unless DatabaseEnv is set
func SkipIfNoDatabase(t testing.TB) {
	t.Helper()
	if os.Getenv(DatabaseEnv) == "" {
		t.Skipf("%s is not set, skipping Postgres test", DatabaseEnv)
	}
}

// CreateIfNotExists creates a new database from the given config if it does
// not exist.
func CreateIfNotExists(conf db.DatabaseConfig) error {
	rootConfig := db.DatabaseConfig{
		User:     util.GetEnvOrElse("DATABASE_ROOT_USER", "postgres"),
		Password: util.GetEnvOrElse("DATABASE_ROOT_PASSWORD", "postgres"),
		Host:     conf.Host,
		Port:     conf.Port,
		Name:     "postgres",
	}

	database, err := db.Open(rootConfig)
	if err != nil {
		return errors.Wrap(err, "couldn't connect to root Postgres DB")
	}
	defer func() { _ = database.Close() }()

	var exists bool
	if err := database.Get(&exists,
		"SELECT EXISTS (SELECT 1 FROM pg_database WHERE datname=$1)", conf.Name); err != nil {
		return errors.Wrap(err, "couldn't query pg_database")
	}
	if exists {
		return nil
	}

	if _, err = database.Exec(fmt.Sprintf("CREATE DATABASE %s", conf.Name)); err != nil {
		return errors.Wrap(err, "cannot create database")
	}

	_, err = database.Exec(fmt.Sprintf(
		"GRANT ALL PRIVILEGES ON DATABASE %s TO %s",
		conf.Name,
		conf.User))
	return errors.Wrap(err, "cannot grant privileges to test user")
}

// InitDatabase returns a freshly migrated DB with the given name suffix, such
// that tests can be run against it. The test is skipped when no Postgres
// instance is configured.
func InitDatabase(t testing.TB, name string) *db.DB {
	t.Helper()
	SkipIfNoDatabase(t)

	config := GetDatabaseConfig(name)
	if err := CreateIfNotExists(config); err != nil {
		FatalMsgf(t, "Could not create test DB: %v", err)
	}

	testDB, err := db.Open(config)
	if err != nil {
		FatalMsgf(t, "Could not open test database: %+v", err)
	}
	t.Cleanup(func() { _ = testDB.Close() })

	if err = testDB.Reset(); err != nil {
		FatalMsgf(t, "Could not reset test DB: %v", err)
	}

	return testDB
}
