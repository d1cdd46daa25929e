//go:build integration

package warehouse

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	chcontainer "github.com/testcontainers/testcontainers-go/modules/clickhouse"
	"github.com/testcontainers/testcontainers-go/wait"
)

// startClickHouseContainer boots a real ClickHouse server for the Warehouse
// Adapter to dial against, mirroring the teacher's
// tests/testutils.StartClickHouseContainer but scoped to just this
// package's native-protocol connection needs.
func startClickHouseContainer(t *testing.T) Config {
	t.Helper()
	ctx := context.Background()

	container, err := chcontainer.Run(ctx,
		"clickhouse/clickhouse-server:23.3.8.21-alpine",
		testcontainers.WithWaitStrategy(
			wait.ForHTTP("/").WithPort("8123/tcp").WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = container.Terminate(context.Background())
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000/tcp")
	require.NoError(t, err)

	return Config{
		Host:     host,
		Port:     port.Port(),
		Username: container.User,
		Password: container.Password,
		Database: container.DbName,
	}
}

// TestDialAndProvisionSinkAgainstRealClickHouse exercises the Warehouse
// Adapter's full provisioning path (database, table, existence check,
// teardown) against a real ClickHouse server rather than asserting on the
// DDL strings it renders, catching anything the string-level tests in
// internal/warehouse can't (e.g. an engine clause ClickHouse actually rejects).
func TestDialAndProvisionSinkAgainstRealClickHouse(t *testing.T) {
	cfg := startClickHouseContainer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	conn, err := Dial(ctx, cfg)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.Ping(ctx))

	const db, table = "pipeline_sink", "orders"
	require.NoError(t, conn.CreateDatabase(ctx, db))
	require.NoError(t, conn.CreateTable(ctx, db, table,
		[]string{"id UInt64", "status String"}, []string{"id"}))

	exists, err := conn.TableExists(ctx, db, table)
	require.NoError(t, err)
	require.True(t, exists)

	require.NoError(t, conn.DropTable(ctx, db, table))
	exists, err = conn.TableExists(ctx, db, table)
	require.NoError(t, err)
	require.False(t, exists)

	require.NoError(t, conn.DropDatabase(ctx, db))
}
