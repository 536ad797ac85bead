package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	// postgres driver
	_ "github.com/lib/pq"

	"github.com/satswap/satswap/build"
)

var log = build.AddSubLogger("DB")

// DatabaseConfig has all the values we need to connect to a DB
type DatabaseConfig struct {
	// The user to use when connecting
	User     string
	Password string
	Host     string
	Port     int
	// The name of the DB to connect to
	Name string

	// MigrationsPath is where our migrations are located, including the
	// scheme, e.g. file:///srv/satswap/db/migrations
	MigrationsPath string
}

// URL is the postgres connection string for the config
func (conf DatabaseConfig) URL() string {
	q := make(url.Values)
	q.Set("sslmode", "disable")
	q.Set("timezone", "utc")

	databaseURL := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(conf.User, conf.Password),
		Host:     conf.Host + ":" + strconv.Itoa(conf.Port),
		Path:     conf.Name,
		RawQuery: q.Encode(),
	}
	return databaseURL.String()
}

// DB is our local DB struct
type DB struct {
	*sqlx.DB
	MigrationsPath string
}

// Open opens a connection pool to the configured database. It does not
// verify that the database is reachable, use Ping for that.
func Open(conf DatabaseConfig) (*DB, error) {
	d, err := sqlx.Open("postgres", conf.URL())
	if err != nil {
		return nil, errors.Wrapf(err,
			"cannot connect to database %s with user %s at %s:%d",
			conf.Name, conf.User, conf.Host, conf.Port,
		)
	}

	log.WithFields(logrus.Fields{
		"host":     conf.Host,
		"port":     conf.Port,
		"user":     conf.User,
		"database": conf.Name,
	}).Info("Opened connection to DB")

	return &DB{
		DB:             d,
		MigrationsPath: conf.MigrationsPath,
	}, nil
}

// New wraps an already opened sqlx handle
func New(d *sqlx.DB, migrationsPath string) *DB {
	return &DB{DB: d, MigrationsPath: migrationsPath}
}

// Querier can run queries and statements. Both *DB and *sqlx.Tx satisfy it,
// so data access functions work the same inside and outside a transaction.
type Querier interface {
	sqlx.ExtContext
}

var _ Querier = &DB{}
var _ Querier = &sqlx.Tx{}

// WithTx runs fn inside a transaction. The transaction is committed if fn
// returns nil and rolled back otherwise.
func (d *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := d.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return errors.Wrap(err, "could not begin transaction")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.WithError(rbErr).Error("could not roll back transaction")
		}
		return err
	}

	if err = tx.Commit(); err != nil {
		return errors.Wrap(err, "could not commit transaction")
	}
	return nil
}

// MigrateOrReset applies migrations to the DB. If already applied, drops
// the db first, then applies migrations
func (d *DB) MigrateOrReset() error {
	if err := d.MigrateUp(); err != nil {
		log.WithError(err).Error("Error when migrating or resetting")
		return errors.Wrapf(err, "could not migrate database")
	}
	return nil
}

// Teardown drops the database, removing all data and schemas
func (d *DB) Teardown() error {
	if err := d.Drop(); err != nil {
		return fmt.Errorf("cannot teardown DB: %w", err)
	}
	return nil
}

// Reset first drops the DB, then applies migrations
func (d *DB) Reset() error {
	if err := d.Teardown(); err != nil {
		return err
	}
	return d.MigrateOrReset()
}

// Drop drops the existing database
func (d *DB) Drop() error {
	migrator, err := d.migrator()
	if err != nil {
		return err
	}

	return migrator.Drop()
}

func (d *DB) migrator() (*migrate.Migrate, error) {
	driver, err := postgres.WithInstance(d.DB.DB, &postgres.Config{})
	if err != nil {
		log.WithError(err).Error("Could not get Postgres instance")
		return nil, err
	}

	migrator, err := migrate.NewWithDatabaseInstance(
		d.MigrationsPath,
		"postgres",
		driver,
	)
	if err != nil {
		log.WithError(err).Error("Could not get migrator")
		return nil, err
	}
	return migrator, nil
}

// CloseRows closes the given rows, logging if that fails
func CloseRows(rows interface{ Close() error }) {
	if err := rows.Close(); err != nil {
		log.WithError(err).Error("could not close rows")
	}
}
