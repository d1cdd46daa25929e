// Package warehouse wraps the ClickHouse native driver for the Warehouse
// Adapter: creating sink databases/tables, checking availability, and
// mapping source column types to ClickHouse column types.
package warehouse

import (
	"context"
	"crypto/tls"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Conn is a live connection to a sink ClickHouse cluster.
type Conn struct {
	conn     driver.Conn
	database string
}

// Config is the connection parameters for a sink warehouse.
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
	Secure   bool
}

// Dial opens a native-protocol connection to ClickHouse.
func Dial(ctx context.Context, cfg Config) (*Conn, error) {
	var tlsConfig *tls.Config
	if cfg.Secure {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	conn, err := clickhouse.Open(&clickhouse.Options{
		Addr:     []string{cfg.Host + ":" + cfg.Port},
		Protocol: clickhouse.Native,
		TLS:      tlsConfig,
		Auth: clickhouse.Auth{
			Username: cfg.Username,
			Password: cfg.Password,
			Database: cfg.Database,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrSinkUnavailable, err)
	}

	if err := conn.Ping(ctx); err != nil {
		return nil, fmt.Errorf("%w: ping: %v", models.ErrSinkUnavailable, err)
	}

	return &Conn{conn: conn, database: cfg.Database}, nil
}

// Close releases the underlying connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

// Ping verifies the warehouse is still reachable.
func (c *Conn) Ping(ctx context.Context) error {
	if err := c.conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", models.ErrSinkUnavailable, err)
	}
	return nil
}

// CreateDatabase issues CREATE DATABASE IF NOT EXISTS for a pipeline's sink.
func (c *Conn) CreateDatabase(ctx context.Context, name string) error {
	if err := c.conn.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", QuoteIdent(name))); err != nil {
		return fmt.Errorf("%w: create database: %v", models.ErrQueryFailed, err)
	}
	return nil
}

// CreateTable issues a CREATE TABLE IF NOT EXISTS with the given column
// definitions (already rendered to "name type" pairs by the type mapper)
// and a MergeTree engine ordered by the source primary key.
func (c *Conn) CreateTable(ctx context.Context, database, table string, columns []string, orderBy []string) error {
	ddl := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS %s.%s (%s) ENGINE = MergeTree ORDER BY (%s)",
		QuoteIdent(database), QuoteIdent(table), joinColumns(columns), joinIdents(orderBy),
	)
	if err := c.conn.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("%w: create table: %v", models.ErrQueryFailed, err)
	}
	return nil
}

// DropTable issues DROP TABLE IF EXISTS, used during resource teardown.
func (c *Conn) DropTable(ctx context.Context, database, table string) error {
	if err := c.conn.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s.%s", QuoteIdent(database), QuoteIdent(table))); err != nil {
		return fmt.Errorf("%w: drop table: %v", models.ErrQueryFailed, err)
	}
	return nil
}

// DropDatabase issues DROP DATABASE IF EXISTS, the last step of resource teardown.
func (c *Conn) DropDatabase(ctx context.Context, database string) error {
	if err := c.conn.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", QuoteIdent(database))); err != nil {
		return fmt.Errorf("%w: drop database: %v", models.ErrQueryFailed, err)
	}
	return nil
}

// TableExists reports whether a table is already present, used before
// emitting a schema-incompatible error on re-provisioning.
func (c *Conn) TableExists(ctx context.Context, database, table string) (bool, error) {
	var count uint64
	err := c.conn.QueryRow(ctx, `
		SELECT count() FROM system.tables WHERE database = ? AND name = ?
	`, database, table).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}
	return count > 0, nil
}

// QuoteIdent backtick-quotes a ClickHouse identifier, escaping embedded backticks.
func QuoteIdent(ident string) string {
	escaped := ""
	for _, r := range ident {
		if r == '`' {
			escaped += "``"
			continue
		}
		escaped += string(r)
	}
	return "`" + escaped + "`"
}

func joinIdents(idents []string) string {
	out := ""
	for i, id := range idents {
		if i > 0 {
			out += ", "
		}
		out += QuoteIdent(id)
	}
	return out
}

func joinColumns(columns []string) string {
	out := ""
	for i, c := range columns {
		if i > 0 {
			out += ", "
		}
		out += c
	}
	return out
}
