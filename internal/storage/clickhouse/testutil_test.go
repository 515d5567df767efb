package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"serum-swap/internal/storage/clickhouse"
	"serum-swap/internal/storage/migrations"
)

// setupTestDB starts a ClickHouse container, creates the swaps database
// through the migration runner and returns a connection to it.
func setupTestDB(t *testing.T) (*clickhouse.Conn, func()) {
	conn, _, cleanup := startClickhouse(t)
	return conn, cleanup
}

func startClickhouse(t *testing.T) (*clickhouse.Conn, string, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Application: Ready for connections").
					WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/swaps", host, port.Port())

	conn, applied, err := migrations.RunClickhouseMigrations(ctx, dsn)
	require.NoError(t, err)
	require.NotEmpty(t, applied)

	cleanup := func() {
		_ = conn.Close()
		_ = container.Terminate(ctx)
	}
	return conn, dsn, cleanup
}

func TestRunClickhouseMigrations_Idempotent(t *testing.T) {
	_, dsn, cleanup := startClickhouse(t)
	defer cleanup()

	again, applied, err := migrations.RunClickhouseMigrations(context.Background(), dsn)
	require.NoError(t, err)
	defer again.Close()
	require.Empty(t, applied)
}
