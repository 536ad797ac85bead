// Package actions provides actions that the satswap CLI can execute
package actions

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/urfave/cli"

	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/cmd/satswap/flags"
	"github.com/satswap/satswap/db"
)

var log = build.AddSubLogger("ACTN")

// withDb opens the database configured by the flags in c, runs fn with it
// and closes it again
func withDb(c *cli.Context, fn func(database *db.DB) error) (err error) {
	conf, err := flags.ReadDbConf(c)
	if err != nil {
		return err
	}
	database, err := db.Open(conf)
	if err != nil {
		return err
	}
	defer func() {
		if dbErr := database.Close(); dbErr != nil && err == nil {
			err = dbErr
		}
	}()
	return fn(database)
}

// Db returns commands for handling DB access and migrations
func Db() cli.Command {
	return cli.Command{
		Name:  "db",
		Usage: "Database related commands",
		Flags: flags.Db,
		Subcommands: []cli.Command{
			{
				Name:    "down",
				Aliases: []string{"md"},
				Usage:   "down x, migrates the database down x number of steps",
				Action: func(c *cli.Context) error {
					if c.NArg() != 1 {
						return cli.NewExitError(
							"You need to specify a number of steps to migrate down",
							22,
						)
					}
					steps, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return err
					}
					return withDb(c, func(database *db.DB) error {
						return database.MigrateDown(steps)
					})
				},
			},
			{
				Name:    "forceversion",
				Aliases: []string{"fv"},
				Usage:   "forceversion forces the database version, and resets the dirty state to false",
				Flags: []cli.Flag{
					cli.IntFlag{
						Name:     "version",
						Required: true,
						Usage:    "version number you know the database is currently at",
					},
				},
				Action: func(c *cli.Context) error {
					version := c.Int("version")
					return withDb(c, func(database *db.DB) error {
						if err := database.ForceVersion(version); err != nil {
							return err
						}
						log.WithField("version", version).Info("forced database version")
						return nil
					})
				},
			},
			{
				Name:    "up",
				Aliases: []string{"mu"},
				Usage:   "migrates the database up",
				Action: func(c *cli.Context) error {
					return withDb(c, func(database *db.DB) error {
						return database.MigrateUp()
					})
				},
			},
			{
				Name:    "status",
				Aliases: []string{"s"},
				Usage:   "check migrations status and version number",
				Action: func(c *cli.Context) error {
					return withDb(c, func(database *db.DB) error {
						status, err := database.MigrationStatus()
						if err != nil {
							return err
						}
						fmt.Printf("migration version: %d dirty: %t\n", status.Version, status.Dirty)
						return nil
					})
				},
			},
			{
				Name:    "newmigration",
				Aliases: []string{"nm"},
				Usage:   "newmigration `NAME`, creates new migration file",
				Action: func(c *cli.Context) error {
					migrationText := c.Args().First()
					if migrationText == "" {
						return errors.New("you must provide a file name for the migration")
					}
					return withDb(c, func(database *db.DB) error {
						migration, err := database.CreateMigration(migrationText)
						if err != nil {
							return err
						}
						fmt.Printf("created migration %s\n", migration)
						return nil
					})
				},
			},
			{
				Name:    "drop",
				Aliases: []string{"dr"},
				Usage:   "drops the entire database.",
				Flags: []cli.Flag{
					cli.BoolFlag{
						Name:  "force",
						Usage: "Don't ask for confirmation before dropping the DB",
					},
				},
				Action: func(c *cli.Context) error {
					if !c.Bool("force") {
						fmt.Println("Are you sure you want to drop the entire database? y/n")
						if !askForConfirmation() {
							log.Debug("Not dropping DB")
							return nil
						}
					}
					return withDb(c, func(database *db.DB) error {
						if err := database.Drop(); err != nil {
							log.WithError(err).Error("Could not drop DB")
							return err
						}
						log.Info("Dropped DB")
						return nil
					})
				},
			},
		}}
}

func askForConfirmation() bool {
	var response string
	_, err := fmt.Scan(&response)
	if err != nil {
		log.Fatal(err)
	}
	switch response {
	case "y", "Y", "yes", "Yes", "YES":
		return true
	case "n", "N", "no", "No", "NO":
		return false
	default:
		fmt.Println("Please type yes or no and then press enter:")
		return askForConfirmation()
	}
}
