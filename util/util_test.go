package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvOrElse(t *testing.T) {
	t.Setenv("SATSWAP_UTIL_TEST", "")
	assert.Equal(t, "fallback", GetEnvOrElse("SATSWAP_UTIL_TEST", "fallback"))

	t.Setenv("SATSWAP_UTIL_TEST", "set")
	assert.Equal(t, "set", GetEnvOrElse("SATSWAP_UTIL_TEST", "fallback"))
}

func TestGetDatabasePort(t *testing.T) {
	t.Setenv("DATABASE_PORT", "")
	assert.Equal(t, 5432, GetDatabasePort())

	t.Setenv("DATABASE_PORT", "6543")
	assert.Equal(t, 6543, GetDatabasePort())
}
