package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"shopdemo/api/config"
	"shopdemo/api/database"
)

// startClickHouse runs a throwaway ClickHouse server and returns a connected client.
func startClickHouse(ctx context.Context, t *testing.T) *database.ClickHouseClient {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping ClickHouse integration test in short mode")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.8-alpine",
			ExposedPorts: []string{"9000/tcp", "8123/tcp"},
			Env: map[string]string{
				"CLICKHOUSE_DB":       "analytics",
				"CLICKHOUSE_USER":     "tester",
				"CLICKHOUSE_PASSWORD": "tester",
			},
			WaitingFor: wait.ForHTTP("/ping").
				WithPort("8123/tcp").
				WithStartupTimeout(2 * time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start ClickHouse container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	client, err := database.NewClickHouseDB(config.ClickHouseConfig{
		Host:        host,
		NativePort:  port.Int(),
		Database:    "analytics",
		Username:    "tester",
		Password:    "tester",
		DialTimeout: 10 * time.Second,
	}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

// startPostgres runs a throwaway PostgreSQL server and returns a connected handle.
func startPostgres(ctx context.Context, t *testing.T) *sqlx.DB {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping PostgreSQL integration test in short mode")
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "shop",
				"POSTGRES_PASSWORD": "shop",
				"POSTGRES_DB":       "shopdb",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	testcontainers.CleanupContainer(t, container)
	require.NoError(t, err, "failed to start PostgreSQL container")

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	dsn := fmt.Sprintf("postgres://shop:shop@%s:%s/shopdb?sslmode=disable", host, port.Port())
	client, err := database.NewPostgresDB("test", dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client.DB
}
