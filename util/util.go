/*
Package util contains small helpers that are shared across packages.
*/
package util

import (
	"os"
	"strconv"

	log "github.com/sirupsen/logrus"
)

const defaultPostgresPort = 5432

// GetDatabasePort reads the `DATABASE_PORT` env var, falls back to 5432
func GetDatabasePort() int {
	return GetEnvAsIntOrElse("DATABASE_PORT", defaultPostgresPort)
}

// GetEnvAsIntOrElse parses the given environment variable as an integer,
// returning defaultValue if it is not set. A set but unparseable value
// quits the program.
func GetEnvAsIntOrElse(env string, defaultValue int) int {
	intStr := os.Getenv(env)
	if len(intStr) == 0 {
		return defaultValue
	}
	parsed, err := strconv.Atoi(intStr)
	if err != nil {
		log.Fatalf("Given environment variable (%s) was not a valid int: %s", env, intStr)
	}
	return parsed
}

// GetEnvOrElse returns the value of the given environment
// variable, or the provided default value if the env variable
// does not exist
func GetEnvOrElse(env string, defaultValue string) string {
	found := os.Getenv(env)
	if len(found) == 0 {
		return defaultValue
	}
	return found
}
