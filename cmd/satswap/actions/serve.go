package actions

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"github.com/satswap/satswap/api"
	"github.com/satswap/satswap/api/auth"
	"github.com/satswap/satswap/async"
	"github.com/satswap/satswap/build"
	"github.com/satswap/satswap/cmd/satswap/flags"
	"github.com/satswap/satswap/db"
	"github.com/satswap/satswap/dummy"
	"github.com/satswap/satswap/storage/postgres"
)

const (
	awaitAttempts = 5
	awaitDuration = time.Second
)

// awaitDb tries to reach the DB, returning an error if that isn't possible
// within a set of attempts
func awaitDb(ctx context.Context, database *db.DB) error {
	ping := func(ctx context.Context) bool {
		err := database.PingContext(ctx)
		if err != nil {
			log.WithError(err).Debug("DB ping failed")
		}
		return err == nil
	}
	return async.Await(ctx, awaitAttempts, awaitDuration, ping, "couldn't reach postgres")
}

// awaitRedis tries to reach Redis, returning an error if that isn't possible
// within a set of attempts
func awaitRedis(ctx context.Context, client *redis.Client) error {
	ping := func(ctx context.Context) bool {
		_, err := client.Ping(ctx).Result()
		if err != nil {
			log.WithError(err).Debug("Redis ping failed")
		}
		return err == nil
	}
	return async.Await(ctx, awaitAttempts, awaitDuration, ping, "couldn't reach redis")
}

// getRevoker connects to Redis if it is configured, and otherwise keeps
// revoked sessions in memory
func getRevoker(ctx context.Context, c *cli.Context) (auth.Revoker, func(), error) {
	opts := flags.ReadRedisOptions(c)
	if opts == nil {
		log.Warn("No Redis address given, revoked sessions are kept in memory and lost on restart")
		return auth.NewMemoryRevoker(), func() {}, nil
	}

	client := redis.NewClient(opts)
	closer := func() {
		if err := client.Close(); err != nil {
			log.WithError(err).Error("Could not close Redis client")
		}
	}
	if err := awaitRedis(ctx, client); err != nil {
		closer()
		return nil, nil, err
	}
	log.WithField("address", opts.Addr).Info("Connected to Redis")
	return auth.NewRedisRevoker(client), closer, nil
}

func Serve() cli.Command {
	serve := cli.Command{
		Name:  "serve",
		Usage: "Starts the satswap API",
		Before: func(c *cli.Context) error {
			jwtPrivateKeyPath := c.String("rsa-jwt-key")
			if jwtPrivateKeyPath == "" {
				return errors.New("no RSA JWT key given")
			}

			jwtPrivateKeyBytes, err := os.ReadFile(jwtPrivateKeyPath)
			if err != nil {
				return fmt.Errorf("could not read RSA JWT key: %w", err)
			}

			jwtPrivateKeyPass := c.String("rsa-jwt-key-pass")
			if jwtPrivateKeyPass == "" {
				log.Warn("No RSA JWT key password given")
			}

			if err := auth.SetRawJwtPrivateKey(jwtPrivateKeyBytes, []byte(jwtPrivateKeyPass)); err != nil {
				return err
			}
			log.Info("Set JWT signing key")
			return nil
		},
		Action: func(c *cli.Context) (err error) {
			ctx := context.Background()

			dbConf, err := flags.ReadDbConf(c)
			if err != nil {
				return err
			}
			database, err := db.Open(dbConf)
			if err != nil {
				return err
			}
			defer func() {
				if dbErr := database.Close(); dbErr != nil && err == nil {
					err = dbErr
				}
			}()

			if err := awaitDb(ctx, database); err != nil {
				return err
			}

			// we do a DB status check here, to verify that the schema is
			// usable. otherwise errors there won't get picked up until later
			status, err := database.MigrationStatus()
			if err != nil {
				return fmt.Errorf("could not query DB migration status: %w", err)
			}
			if c.Bool("db.migrateup") {
				if err := database.MigrateUp(); err != nil {
					return err
				}
			} else if status.Dirty {
				log.WithField("version", status.Version).Warn("DB migrations are dirty")
			}

			revoker, closeRevoker, err := getRevoker(ctx, c)
			if err != nil {
				return err
			}
			defer closeRevoker()

			level, err := build.ToLogLevel(c.GlobalString("logging.level"))
			if err != nil {
				return err
			}
			config := api.Config{
				LogLevel:       level,
				AllowedOrigins: c.StringSlice("cors.origins"),
				LoginRate:      c.Float64("login.rate"),
				LoginBurst:     c.Int("login.burst"),
				TrustedProxies: c.StringSlice("trusted-proxies"),
			}

			store := postgres.New(database)
			a, err := api.NewApp(store, revoker, config)
			if err != nil {
				return err
			}

			if c.Bool("dummy.gen-data") {
				if !c.Bool("dummy.force") {
					fmt.Println("Are you sure you want to fill dummy data? y/n")
					if !askForConfirmation() {
						log.Info("Not populating DB with dummy data")
						return nil
					}
				}

				if err := dummy.FillWithData(ctx, store, c.Bool("dummy.only-once")); err != nil {
					return err
				}
			}

			address := fmt.Sprintf(":%d", c.Int("port"))
			log.WithFields(logrus.Fields{
				"address": address,
				"version": build.Version(),
			}).Info("Starting API")

			if os.Getenv(gin.EnvGinMode) == gin.ReleaseMode {
				err = a.Router.RunTLS(address,
					c.String("tls-cert-file"),
					c.String("tls-key-file"))
			} else {
				err = a.Router.Run(address)
			}

			return err
		},
	}

	baseFlags := []cli.Flag{
		cli.IntFlag{
			Name:   "port",
			Value:  5000,
			EnvVar: "PORT",
			Usage:  "Port number to listen on",
		},
		cli.StringSliceFlag{
			Name:   "cors.origins",
			EnvVar: "CORS_ORIGINS",
			Usage:  "Origins browsers may call the API from. All origins are allowed if none are given",
		},
		cli.StringSliceFlag{
			Name:   "trusted-proxies",
			EnvVar: "TRUSTED_PROXIES",
			Usage:  "Proxy IPs or CIDRs allowed to set X-Forwarded-For. Without any, clients are told apart by their connection address",
		},
		cli.Float64Flag{
			Name:   "login.rate",
			Value:  10,
			EnvVar: "LOGIN_RATE",
			Usage:  "Login attempts per minute allowed from a single IP",
		},
		cli.IntFlag{
			Name:   "login.burst",
			Value:  5,
			EnvVar: "LOGIN_BURST",
			Usage:  "Login attempts a single IP can make in a row",
		},

		// dummy data generation
		cli.BoolFlag{
			Name:  "dummy.gen-data",
			Usage: "If the DB should be populated with dummy data",
		},
		cli.BoolFlag{
			Name:  "dummy.force",
			Usage: "Whether or not to ask for confirmation before populating with dummy data",
		},
		cli.BoolFlag{
			Name:  "dummy.only-once",
			Usage: "Only fill with dummy data if DB is empty",
		},

		// security keys
		cli.StringFlag{
			Name:      "rsa-jwt-key",
			EnvVar:    "SATSWAP_RSA_JWT_KEY",
			Usage:     "File path to PEM encoded RSA private key used for signing JWTs",
			TakesFile: true,
			Required:  true,
		},
		cli.StringFlag{
			Name:   "rsa-jwt-key-pass",
			EnvVar: "SATSWAP_RSA_JWT_KEY_PASS",
			Usage:  "The password used to decrypt the RSA private key used for signing JWTs",
		},
		cli.StringFlag{
			Name:      "tls-cert-file",
			EnvVar:    "SATSWAP_TLS_CERT_FILE",
			Usage:     "Path to TLS cert file",
			TakesFile: true,
			Required:  os.Getenv(gin.EnvGinMode) == gin.ReleaseMode,
		},
		cli.StringFlag{
			Name:     "tls-key-file",
			EnvVar:   "SATSWAP_TLS_KEY_FILE",
			Usage:    "Path to TLS key file",
			Required: os.Getenv(gin.EnvGinMode) == gin.ReleaseMode,
		},
	}

	serve.Flags = flags.Concat(baseFlags, flags.Db, flags.Redis)
	return serve
}
