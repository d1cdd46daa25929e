package warehouse

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

type fakeSinkConn struct {
	pingErr       error
	createDBErr   error
	createTblErr  error
	dropTblErr    error
	dropDBErr     error
	tableExists   bool
	tableExistErr error

	createdDatabase string
	createdTable    string
	createdColumns  []string
	createdOrderBy  []string
	droppedDatabase bool
}

func (f *fakeSinkConn) Close() error { return nil }

func (f *fakeSinkConn) Ping(ctx context.Context) error { return f.pingErr }

func (f *fakeSinkConn) CreateDatabase(ctx context.Context, name string) error {
	f.createdDatabase = name
	return f.createDBErr
}

func (f *fakeSinkConn) CreateTable(ctx context.Context, database, table string, columns, orderBy []string) error {
	f.createdTable = table
	f.createdColumns = columns
	f.createdOrderBy = orderBy
	return f.createTblErr
}

func (f *fakeSinkConn) DropTable(ctx context.Context, database, table string) error {
	return f.dropTblErr
}

func (f *fakeSinkConn) DropDatabase(ctx context.Context, database string) error {
	f.droppedDatabase = true
	return f.dropDBErr
}

func (f *fakeSinkConn) TableExists(ctx context.Context, database, table string) (bool, error) {
	return f.tableExists, f.tableExistErr
}

func newTestAdapter(conn sinkConn, dialErr error) *Adapter {
	return &Adapter{
		dial: func(ctx context.Context, cfg connwarehouse.Config) (sinkConn, error) {
			if dialErr != nil {
				return nil, dialErr
			}
			return conn, nil
		},
		log: slog.Default(),
	}
}

func TestAdapterCheckAvailability(t *testing.T) {
	t.Run("dial failure propagates", func(t *testing.T) {
		a := newTestAdapter(nil, models.ErrSinkUnavailable)
		err := a.CheckAvailability(context.Background(), connwarehouse.Config{})
		assert.ErrorIs(t, err, models.ErrSinkUnavailable)
	})

	t.Run("ping failure propagates", func(t *testing.T) {
		conn := &fakeSinkConn{pingErr: errors.New("boom")}
		a := newTestAdapter(conn, nil)
		err := a.CheckAvailability(context.Background(), connwarehouse.Config{})
		require.Error(t, err)
	})

	t.Run("healthy sink", func(t *testing.T) {
		a := newTestAdapter(&fakeSinkConn{}, nil)
		assert.NoError(t, a.CheckAvailability(context.Background(), connwarehouse.Config{}))
	})
}

func TestAdapterProvision(t *testing.T) {
	source := &models.DiscoveredTable{
		Columns: []models.Column{
			{Name: "id", Type: "bigint", Nullable: false},
			{Name: "email", Type: "text", Nullable: true},
		},
		PrimaryKey: []string{"id"},
	}

	conn := &fakeSinkConn{}
	a := newTestAdapter(conn, nil)

	err := a.Provision(context.Background(), connwarehouse.Config{}, "sinkdb", "users", source)
	require.NoError(t, err)

	assert.Equal(t, "sinkdb", conn.createdDatabase)
	assert.Equal(t, "users", conn.createdTable)
	assert.Equal(t, []string{"id"}, conn.createdOrderBy)
	assert.Equal(t, []string{"`id` Int64", "`email` Nullable(String)"}, conn.createdColumns)
}

func TestAdapterProvisionFallsBackToAllColumnsWhenNoPrimaryKey(t *testing.T) {
	source := &models.DiscoveredTable{
		Columns: []models.Column{
			{Name: "a", Type: "text"},
			{Name: "b", Type: "text"},
		},
	}

	conn := &fakeSinkConn{}
	a := newTestAdapter(conn, nil)

	require.NoError(t, a.Provision(context.Background(), connwarehouse.Config{}, "db", "t", source))
	assert.Equal(t, []string{"a", "b"}, conn.createdOrderBy)
}

func TestAdapterProvisionPropagatesCreateTableError(t *testing.T) {
	conn := &fakeSinkConn{createTblErr: models.ErrQueryFailed}
	a := newTestAdapter(conn, nil)

	err := a.Provision(context.Background(), connwarehouse.Config{}, "db", "t", &models.DiscoveredTable{})
	assert.ErrorIs(t, err, models.ErrQueryFailed)
}

func TestAdapterTeardown(t *testing.T) {
	t.Run("drops table only by default", func(t *testing.T) {
		conn := &fakeSinkConn{}
		a := newTestAdapter(conn, nil)
		require.NoError(t, a.Teardown(context.Background(), connwarehouse.Config{}, "db", "t", false))
		assert.False(t, conn.droppedDatabase)
	})

	t.Run("drops database when requested", func(t *testing.T) {
		conn := &fakeSinkConn{}
		a := newTestAdapter(conn, nil)
		require.NoError(t, a.Teardown(context.Background(), connwarehouse.Config{}, "db", "t", true))
		assert.True(t, conn.droppedDatabase)
	})
}

func TestAdapterCheckSchemaCompatible(t *testing.T) {
	t.Run("absent table is compatible", func(t *testing.T) {
		a := newTestAdapter(&fakeSinkConn{tableExists: false}, nil)
		assert.NoError(t, a.CheckSchemaCompatible(context.Background(), connwarehouse.Config{}, "db", "t"))
	})

	t.Run("existing table is incompatible", func(t *testing.T) {
		a := newTestAdapter(&fakeSinkConn{tableExists: true}, nil)
		err := a.CheckSchemaCompatible(context.Background(), connwarehouse.Config{}, "db", "t")
		assert.ErrorIs(t, err, models.ErrIncompatibleSchema)
	})
}
