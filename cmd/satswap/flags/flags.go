// Package flags provides functionality for managing flags for satswap
package flags

import (
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/satswap/satswap/db"
)

// Concat concatenates the given list of flags, without mutating them
func Concat(first []cli.Flag, rest ...[]cli.Flag) []cli.Flag {
	var copied = make([]cli.Flag, len(first))
	_ = copy(copied, first)
	for _, r := range rest {
		copied = append(copied, r...)
	}
	return copied
}

// CommonFlags is a set of flags that all commands take
var CommonFlags = Concat(logging)

// ReadDbConf reads the approriate flags for connecting to the DB
func ReadDbConf(c *cli.Context) (db.DatabaseConfig, error) {
	conf := db.DatabaseConfig{
		User:           c.String("db.user"),
		Password:       c.String("db.password"),
		Host:           c.String("db.host"),
		Port:           c.Int("db.port"),
		Name:           c.String("db.name"),
		MigrationsPath: c.String("db.migrationspath"),
	}

	// flags belong to the context of the command that declares them. the DB
	// flags are declared on `db`, but read in its subcommands, so we walk up
	// until we find the context where they are set
	if conf.User == "" {
		parent := c.Parent()
		if parent == nil {
			return db.DatabaseConfig{}, fmt.Errorf("reached root CLI context without hitting valid DB credentials")
		}
		return ReadDbConf(parent)
	}

	// if no scheme was supplied to migrations path, default to file:
	parsedPath, err := url.Parse(conf.MigrationsPath)
	if err != nil {
		return db.DatabaseConfig{}, fmt.Errorf("could not parse migrations path into URL: %w", err)
	}
	if len(parsedPath.Scheme) == 0 {
		conf.MigrationsPath = path.Join("file:", conf.MigrationsPath)
	}

	return conf, nil
}

// ReadRedisOptions reads the flags for connecting to Redis. It returns nil
// if no Redis address is configured.
func ReadRedisOptions(c *cli.Context) *redis.Options {
	addr := c.String("redis.address")
	if addr == "" {
		return nil
	}
	return &redis.Options{
		Addr:     addr,
		Password: c.String("redis.password"),
		DB:       c.Int("redis.db"),
	}
}

// Db is a list of flags that apply to functionality that needs Db access
var Db = []cli.Flag{
	cli.StringFlag{
		Name:     "db.user",
		Usage:    "Database user",
		EnvVar:   "DATABASE_USER",
		Required: true,
	},
	cli.StringFlag{
		Name:     "db.password",
		Usage:    "Database password",
		EnvVar:   "DATABASE_PASSWORD",
		Required: true,
	},
	cli.StringFlag{
		Name:   "db.name",
		Usage:  "Database name",
		Value:  "satswap",
		EnvVar: "DATABASE_NAME",
	},
	cli.StringFlag{
		Name:   "db.host",
		Usage:  "Database host to connect to",
		Value:  "localhost",
		EnvVar: "DATABASE_HOST",
	},
	cli.IntFlag{
		Name:   "db.port",
		Usage:  "Database port",
		Value:  5432,
		EnvVar: "DATABASE_PORT",
	},
	cli.StringFlag{
		Name:      "db.migrationspath",
		Usage:     `Path to DB migrations. Needs scheme ("file", etc.) in front of path"`,
		TakesFile: true,
		EnvVar:    "DATABASE_MIGRATIONS_PATH",
		Value: func() string {
			dir, err := os.Getwd()
			if err != nil {
				panic(err)
			}
			return "file:" + filepath.Join(dir, "db", "migrations")
		}(),
	},
	cli.BoolFlag{
		Name:  "db.migrateup",
		Usage: "Apply migrations before starting the API",
	},
}

// Redis is a list of flags for the Redis server revoked sessions are kept
// in. Without an address, revoked sessions are kept in memory.
var Redis = []cli.Flag{
	cli.StringFlag{
		Name:   "redis.address",
		Usage:  "host:port of the Redis server. Leave empty to keep revoked sessions in memory",
		EnvVar: "REDIS_ADDRESS",
	},
	cli.StringFlag{
		Name:   "redis.password",
		Usage:  "Redis password",
		EnvVar: "REDIS_PASSWORD",
	},
	cli.IntFlag{
		Name:   "redis.db",
		Usage:  "Redis database number",
		EnvVar: "REDIS_DB",
	},
}

// logging is logging related CLI flags
var logging = []cli.Flag{
	cli.StringFlag{
		Name:   "logging.level",
		Value:  logrus.InfoLevel.String(),
		EnvVar: "LOG_LEVEL",
		Usage:  "Logging level for all subsystems {trace, debug, info, warn, error, fatal, panic}",
	},
	cli.StringFlag{
		Name:      "logging.directory",
		TakesFile: true,
		EnvVar:    "LOG_DIRECTORY",
		Value: func() string {
			dir, err := os.Getwd()
			if err != nil {
				panic(err)
			}
			return filepath.Join(dir, "logs")
		}(),
		Usage: "What directory to write log files to",
	},
}
