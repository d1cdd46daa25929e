// Package sourcedb dials a CDC source database (Postgres-family) on behalf
// of Schema Discovery and the Readiness Prober. Connections are short-lived:
// one pool per probe/discovery run, closed when the caller is done.
package sourcedb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Conn wraps a short-lived connection pool to one source database.
type Conn struct {
	pool *pgxpool.Pool
}

// Dial opens a small pool (single connection is typical for a probe/
// discovery run) against a decrypted credential secret, bounded by timeout.
func Dial(ctx context.Context, secret models.CredentialSecret, timeout time.Duration) (*Conn, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		secret.Username, secret.Password, secret.Host, secret.Port, secret.Database)

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: parse dsn: %v", models.ErrConnectFailed, err)
	}
	cfg.MaxConns = 2

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrConnectFailed, err)
	}

	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: ping: %v", models.ErrConnectFailed, err)
	}

	return &Conn{pool: pool}, nil
}

// Close releases the underlying pool.
func (c *Conn) Close() {
	c.pool.Close()
}

// ServerVersion reports the source's version() string, used by the
// Readiness Prober's provider-detection step.
func (c *Conn) ServerVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.pool.QueryRow(ctx, "SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}
	return version, nil
}

// ListTables returns every (schema, table) pair in the database, excluding
// system schemas, for Schema Discovery's enumeration step.
func (c *Conn) ListTables(ctx context.Context) ([]models.TableRef, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_type = 'BASE TABLE'
		  AND table_schema NOT IN ('pg_catalog', 'information_schema')
		ORDER BY table_schema, table_name
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []models.TableRef
	for rows.Next() {
		var ref models.TableRef
		if err := rows.Scan(&ref.Schema, &ref.Table); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// DescribeTable introspects one table's columns, primary key, foreign keys,
// row-count estimate, and replica identity.
func (c *Conn) DescribeTable(ctx context.Context, ref models.TableRef) (*models.DiscoveredTable, error) {
	dt := &models.DiscoveredTable{Schema: ref.Schema, Table: ref.Table}

	colRows, err := c.pool.Query(ctx, `
		SELECT column_name, data_type, is_nullable = 'YES', ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, ref.Schema, ref.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: describe columns: %v", models.ErrQueryFailed, err)
	}
	for colRows.Next() {
		var col models.Column
		if err := colRows.Scan(&col.Name, &col.Type, &col.Nullable, &col.Ordinal); err != nil {
			colRows.Close()
			return nil, fmt.Errorf("%w: scan column: %v", models.ErrQueryFailed, err)
		}
		dt.Columns = append(dt.Columns, col)
	}
	colRows.Close()
	if err := colRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}

	pkRows, err := c.pool.Query(ctx, `
		SELECT a.attname
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = (quote_ident($1) || '.' || quote_ident($2))::regclass
		  AND i.indisprimary
	`, ref.Schema, ref.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: describe primary key: %v", models.ErrQueryFailed, err)
	}
	for pkRows.Next() {
		var col string
		if err := pkRows.Scan(&col); err != nil {
			pkRows.Close()
			return nil, fmt.Errorf("%w: scan primary key column: %v", models.ErrQueryFailed, err)
		}
		dt.PrimaryKey = append(dt.PrimaryKey, col)
	}
	pkRows.Close()
	if err := pkRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}
	dt.HasPrimaryKey = len(dt.PrimaryKey) > 0

	fkRows, err := c.pool.Query(ctx, `
		SELECT
			kcu.column_name,
			ccu.table_schema AS referenced_schema,
			ccu.table_name   AS referenced_table,
			ccu.column_name  AS referenced_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2
	`, ref.Schema, ref.Table)
	if err != nil {
		return nil, fmt.Errorf("%w: describe foreign keys: %v", models.ErrQueryFailed, err)
	}
	for fkRows.Next() {
		var fk models.ForeignKey
		if err := fkRows.Scan(&fk.Column, &fk.ReferencedSchema, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			fkRows.Close()
			return nil, fmt.Errorf("%w: scan foreign key: %v", models.ErrQueryFailed, err)
		}
		dt.ForeignKeys = append(dt.ForeignKeys, fk)
	}
	fkRows.Close()
	if err := fkRows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}

	var relreplident string
	err = c.pool.QueryRow(ctx, `
		SELECT relreplident FROM pg_class
		WHERE oid = (quote_ident($1) || '.' || quote_ident($2))::regclass
	`, ref.Schema, ref.Table).Scan(&relreplident)
	if err != nil {
		return nil, fmt.Errorf("%w: describe replica identity: %v", models.ErrQueryFailed, err)
	}
	dt.ReplicaIdentity = replicaIdentityFromChar(relreplident)

	var estimate int64
	err = c.pool.QueryRow(ctx, `
		SELECT COALESCE(n_live_tup, 0) FROM pg_stat_user_tables
		WHERE schemaname = $1 AND relname = $2
	`, ref.Schema, ref.Table).Scan(&estimate)
	if err == nil {
		dt.RowCountEstimate = estimate
	}

	dt.CDCEligible = models.CDCEligible(dt.HasPrimaryKey, dt.ReplicaIdentity)
	if !dt.CDCEligible {
		if !dt.HasPrimaryKey {
			dt.EligibilityIssues = append(dt.EligibilityIssues, "table has no primary key")
		}
		if dt.ReplicaIdentity == models.ReplicaIdentityNothing {
			dt.EligibilityIssues = append(dt.EligibilityIssues, "replica identity is NOTHING")
		}
	}

	return dt, nil
}

// RowCount reports a table's current row count, sampled periodically by the
// Monitor Loop to drive volume-spike/drop and gap-detection rules.
func (c *Conn) RowCount(ctx context.Context, ref models.TableRef) (int64, error) {
	var count int64
	query := fmt.Sprintf("SELECT count(*) FROM %s.%s", quoteIdent(ref.Schema), quoteIdent(ref.Table))
	if err := c.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: row count %s: %v", models.ErrQueryFailed, ref.String(), err)
	}
	return count, nil
}

// RunProbeQuery executes a descriptor-supplied single-column probe
// expression (e.g. "SHOW wal_level") and returns its scalar result as a
// string. Probe expressions come only from trusted source descriptors
// loaded at startup, never from request input.
func (c *Conn) RunProbeQuery(ctx context.Context, query string) (string, error) {
	var value string
	if err := c.pool.QueryRow(ctx, query).Scan(&value); err != nil {
		return "", fmt.Errorf("%w: probe query %q: %v", models.ErrQueryFailed, query, err)
	}
	return value, nil
}

// SettingNames returns every pg_settings name visible to the connected role,
// used by the Readiness Prober's provider-detection scan.
func (c *Conn) SettingNames(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, `SELECT name FROM pg_settings`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

// Setting returns a single pg_settings value (e.g. wal_level,
// max_replication_slots), used both for provider detection and for
// evaluating a descriptor's readiness-probe expressions.
func (c *Conn) Setting(ctx context.Context, name string) (string, error) {
	var value string
	err := c.pool.QueryRow(ctx, `SELECT setting FROM pg_settings WHERE name = $1`, name).Scan(&value)
	if err != nil {
		return "", fmt.Errorf("%w: setting %s: %v", models.ErrQueryFailed, name, err)
	}
	return value, nil
}

// HasReplicationPrivilege reports whether the connected role may start a
// logical replication stream.
func (c *Conn) HasReplicationPrivilege(ctx context.Context) (bool, error) {
	var can bool
	err := c.pool.QueryRow(ctx, `SELECT rolreplication OR rolsuper FROM pg_roles WHERE rolname = current_user`).Scan(&can)
	if err != nil {
		return false, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}
	return can, nil
}

// TableReadiness runs the three per-table readiness checks without the full
// column/foreign-key introspection DescribeTable performs.
func (c *Conn) TableReadiness(ctx context.Context, ref models.TableRef) (exists, hasPrimaryKey bool, identity models.ReplicaIdentity, err error) {
	err = c.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)
	`, ref.Schema, ref.Table).Scan(&exists)
	if err != nil {
		return false, false, "", fmt.Errorf("%w: table existence: %v", models.ErrQueryFailed, err)
	}
	if !exists {
		return false, false, "", nil
	}

	err = c.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_index i
			WHERE i.indrelid = (quote_ident($1) || '.' || quote_ident($2))::regclass
			  AND i.indisprimary
		)
	`, ref.Schema, ref.Table).Scan(&hasPrimaryKey)
	if err != nil {
		return exists, false, "", fmt.Errorf("%w: primary key check: %v", models.ErrQueryFailed, err)
	}

	var relreplident string
	err = c.pool.QueryRow(ctx, `
		SELECT relreplident FROM pg_class
		WHERE oid = (quote_ident($1) || '.' || quote_ident($2))::regclass
	`, ref.Schema, ref.Table).Scan(&relreplident)
	if err != nil {
		return exists, hasPrimaryKey, "", fmt.Errorf("%w: replica identity: %v", models.ErrQueryFailed, err)
	}

	return exists, hasPrimaryKey, replicaIdentityFromChar(relreplident), nil
}

// PreviewPredicate counts rows matching a candidate filter predicate and
// returns a bounded sample, for the Filter Planner's interactive preview.
// predicate is interpolated directly into the WHERE clause: callers must
// only pass predicates built by the Filter Planner's column-validated emitter,
// never raw user text.
func (c *Conn) PreviewPredicate(ctx context.Context, schema, table, predicate string, limit int) (int64, []map[string]any, error) {
	qualified := fmt.Sprintf("%s.%s", quoteIdent(schema), quoteIdent(table))
	where := ""
	if predicate != "" {
		where = " WHERE " + predicate
	}

	var count int64
	countSQL := fmt.Sprintf("SELECT count(*) FROM %s%s", qualified, where)
	if err := c.pool.QueryRow(ctx, countSQL).Scan(&count); err != nil {
		return 0, nil, fmt.Errorf("%w: count preview: %v", models.ErrQueryFailed, err)
	}

	if limit <= 0 {
		limit = 10
	}
	sampleSQL := fmt.Sprintf("SELECT * FROM %s%s LIMIT %d", qualified, where, limit)
	rows, err := c.pool.Query(ctx, sampleSQL)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: sample preview: %v", models.ErrQueryFailed, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	var samples []map[string]any
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return 0, nil, fmt.Errorf("%w: scan sample: %v", models.ErrQueryFailed, err)
		}
		row := make(map[string]any, len(fields))
		for i, f := range fields {
			row[string(f.Name)] = values[i]
		}
		samples = append(samples, row)
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("%w: %v", models.ErrQueryFailed, err)
	}

	return count, samples, nil
}

func quoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func replicaIdentityFromChar(c string) models.ReplicaIdentity {
	switch c {
	case "f":
		return models.ReplicaIdentityFull
	case "i":
		return models.ReplicaIdentityIndex
	case "n":
		return models.ReplicaIdentityNothing
	default:
		return models.ReplicaIdentityDefault
	}
}
