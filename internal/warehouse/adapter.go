// Package warehouse implements the Warehouse Adapter: provisioning
// sink ClickHouse databases/tables from a discovered source schema and
// checking sink availability ahead of pipeline start.
package warehouse

import (
	"context"
	"fmt"
	"log/slog"

	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// sinkConn is the subset of *connwarehouse.Conn the adapter depends on,
// narrowed to an interface so tests can substitute a fake warehouse.
type sinkConn interface {
	Close() error
	Ping(ctx context.Context) error
	CreateDatabase(ctx context.Context, name string) error
	CreateTable(ctx context.Context, database, table string, columns, orderBy []string) error
	DropTable(ctx context.Context, database, table string) error
	DropDatabase(ctx context.Context, database string) error
	TableExists(ctx context.Context, database, table string) (bool, error)
}

// Adapter provisions and tears down ClickHouse sink artifacts for pipelines.
type Adapter struct {
	dial func(ctx context.Context, cfg connwarehouse.Config) (sinkConn, error)
	log  *slog.Logger
}

// New constructs an Adapter backed by the real ClickHouse driver.
func New(log *slog.Logger) *Adapter {
	if log == nil {
		log = slog.Default()
	}
	return &Adapter{
		dial: func(ctx context.Context, cfg connwarehouse.Config) (sinkConn, error) {
			return connwarehouse.Dial(ctx, cfg)
		},
		log: log,
	}
}

// CheckAvailability dials the sink and pings it, surfacing
// models.ErrSinkUnavailable on failure (used by the startup check of the
// default sink warehouse).
func (a *Adapter) CheckAvailability(ctx context.Context, cfg connwarehouse.Config) error {
	conn, err := a.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.Ping(ctx)
}

// Provision creates the sink database and table for a pipeline from its
// discovered source columns, deriving the ClickHouse ORDER BY key from the
// source primary key (falling back to all columns if there is none).
func (a *Adapter) Provision(ctx context.Context, cfg connwarehouse.Config, database, table string, source *models.DiscoveredTable) error {
	conn, err := a.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.CreateDatabase(ctx, database); err != nil {
		return err
	}

	columns := make([]string, 0, len(source.Columns))
	for _, col := range source.Columns {
		columns = append(columns, ColumnDDL(col.Name, col.Type, col.Nullable))
	}

	orderBy := source.PrimaryKey
	if len(orderBy) == 0 {
		for _, col := range source.Columns {
			orderBy = append(orderBy, col.Name)
		}
	}

	if err := conn.CreateTable(ctx, database, table, columns, orderBy); err != nil {
		return err
	}

	a.log.InfoContext(ctx, "sink table provisioned", slog.String("database", database), slog.String("table", table))
	return nil
}

// Teardown drops the sink table and, if dropDatabase is set (no other
// pipeline still writes to it), the database too.
func (a *Adapter) Teardown(ctx context.Context, cfg connwarehouse.Config, database, table string, dropDatabase bool) error {
	conn, err := a.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := conn.DropTable(ctx, database, table); err != nil {
		return err
	}

	if dropDatabase {
		if err := conn.DropDatabase(ctx, database); err != nil {
			return err
		}
	}

	return nil
}

// DropDatabase removes a sink database directly, used when the Resource
// Tracker reclaims a clickhouse_database resource independently of any
// specific table (its tables have already been dropped individually).
func (a *Adapter) DropDatabase(ctx context.Context, cfg connwarehouse.Config, database string) error {
	conn, err := a.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	return conn.DropDatabase(ctx, database)
}

// CheckSchemaCompatible reports models.ErrIncompatibleSchema if the sink
// table already exists, since this control plane never alters an existing
// sink table's structure.
func (a *Adapter) CheckSchemaCompatible(ctx context.Context, cfg connwarehouse.Config, database, table string) error {
	conn, err := a.dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	exists, err := conn.TableExists(ctx, database, table)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("%w: sink table %s.%s already exists", models.ErrIncompatibleSchema, database, table)
	}
	return nil
}
