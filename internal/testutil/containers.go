// Package testutil starts throwaway backing services for integration tests.
//
// Container tests are opt-in: they run only when FLOWCHART_CONTAINER_TESTS=1
// and a Docker daemon is reachable.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// ContainersEnv is the variable that enables container-backed tests.
const ContainersEnv = "FLOWCHART_CONTAINER_TESTS"

// RequireContainers skips the test unless container tests are enabled.
func RequireContainers(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	if os.Getenv(ContainersEnv) != "1" {
		t.Skipf("set %s=1 to run container tests", ContainersEnv)
	}
}

// StartPostgres runs postgres:16 for the duration of t and returns a pgx DSN.
func StartPostgres(t *testing.T) string {
	t.Helper()
	RequireContainers(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	postgresC, err := testcontainers.Run(
		ctx, "postgres:16",
		testcontainers.WithExposedPorts("5432/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("ready to accept connections"),
				wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
					return fmt.Sprintf("postgres://flowchart:flowchart@%s:%s/flowchart_test?sslmode=disable", host, port.Port())
				}).WithQuery("SELECT 1"),
			).WithDeadline(2*time.Minute),
		),
		testcontainers.WithEnv(map[string]string{
			"POSTGRES_USER":     "flowchart",
			"POSTGRES_PASSWORD": "flowchart",
			"POSTGRES_DB":       "flowchart_test",
		}),
	)
	testcontainers.CleanupContainer(t, postgresC)
	require.NoError(t, err)

	endpoint, err := postgresC.Endpoint(ctx, "")
	require.NoError(t, err)

	return fmt.Sprintf("postgres://flowchart:flowchart@%s/flowchart_test?sslmode=disable", endpoint)
}

// StartRedis runs redis:latest for the duration of t and returns host:port.
func StartRedis(t *testing.T) string {
	t.Helper()
	RequireContainers(t)

	ctx := context.Background()
	redisC, err := testcontainers.Run(
		ctx, "redis:latest",
		testcontainers.WithExposedPorts("6379/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("6379/tcp"),
			wait.ForLog("Ready to accept connections"),
		),
	)
	testcontainers.CleanupContainer(t, redisC)
	require.NoError(t, err)

	endpoint, err := redisC.Endpoint(ctx, "")
	require.NoError(t, err)
	return endpoint
}

// StartMongo runs mongo:7 for the duration of t and returns a connection URI.
func StartMongo(t *testing.T) string {
	t.Helper()
	RequireContainers(t)

	ctx := context.Background()
	mongoC, err := testcontainers.Run(
		ctx, "mongo:7",
		testcontainers.WithExposedPorts("27017/tcp"),
		testcontainers.WithWaitStrategy(
			wait.ForListeningPort("27017/tcp"),
			wait.ForLog("mongod startup complete"),
		),
	)
	testcontainers.CleanupContainer(t, mongoC)
	require.NoError(t, err)

	endpoint, err := mongoC.Endpoint(ctx, "")
	require.NoError(t, err)
	return fmt.Sprintf("mongodb://%s", endpoint)
}
