// Package testutil provides database helpers for tests.
package testutil

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/subsquid/archive-gateway/log"
	"github.com/subsquid/archive-gateway/storage/migrate"
	"github.com/subsquid/archive-gateway/storage/postgres"
)

// ConnString returns the database used in CI tests, skipping the test in
// short mode or when none is configured.
func ConnString(t *testing.T) string {
	if testing.Short() {
		t.Skip("skipping testing in short mode")
	}
	connString := os.Getenv("CI_TEST_CONN_STRING")
	if connString == "" {
		t.Skip("CI_TEST_CONN_STRING not set")
	}
	return connString
}

func newLogger(t *testing.T) *log.Logger {
	logger, err := log.NewLogger("postgres-test", os.Stdout, log.FmtJSON, log.LevelError)
	require.Nil(t, err, "log.NewLogger")
	return logger
}

// NewTestClient returns a postgres client used in CI tests. It accepts
// writes so tests can load fixtures.
func NewTestClient(t *testing.T) *postgres.Client {
	client, err := postgres.NewWritableClient(ConnString(t), newLogger(t))
	require.Nil(t, err, "postgres.NewWritableClient")
	t.Cleanup(client.Close)
	return client
}

// Migrate applies the archive schema migrations found at source.
func Migrate(t *testing.T, source string) {
	require.Nil(t, migrate.Up(source, ConnString(t), newLogger(t)), "migrate.Up")
}
