// Package discovery implements Schema Discovery: introspecting a
// source database for tables, columns, keys, row-count estimates, and
// CDC-eligibility, and caching the result as Discovered Tables.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bkvaiude/dataflow-ctl/internal/connectors/sourcedb"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Store is the persistence dependency Discovery needs from the repository layer.
type Store interface {
	UpsertDiscoveredTable(ctx context.Context, t *models.DiscoveredTable) (string, error)
	ListDiscoveredTables(ctx context.Context, credentialID string) ([]models.DiscoveredTable, error)
}

// Opener resolves a credential to its decrypted connection secret, narrowed
// from vault.Vault so this package does not depend on it directly.
type Opener interface {
	Open(ctx context.Context, owner, credentialID string) (*models.CredentialSecret, error)
}

// Discovery runs introspection against Postgres-family sources.
type Discovery struct {
	open  Opener
	store Store
	log   *slog.Logger

	dialTimeout time.Duration
}

// New constructs a Discovery service.
func New(open Opener, store Store, dialTimeout time.Duration, log *slog.Logger) *Discovery {
	if log == nil {
		log = slog.Default()
	}
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Discovery{open: open, store: store, log: log, dialTimeout: dialTimeout}
}

// Run introspects every table matching tableFilter (a schema.table glob
// prefix, empty matches all) under a credential, upserts each table's
// record, and returns the bundle of tables plus their relationship graph.
func (d *Discovery) Run(ctx context.Context, owner, credentialID, tableFilter string) (*models.DiscoveryBundle, error) {
	secret, err := d.open.Open(ctx, owner, credentialID)
	if err != nil {
		return nil, err
	}

	conn, err := sourcedb.Dial(ctx, *secret, d.dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	refs, err := conn.ListTables(ctx)
	if err != nil {
		return nil, err
	}

	bundle := &models.DiscoveryBundle{}
	for _, ref := range refs {
		if tableFilter != "" && !matchesFilter(ref, tableFilter) {
			continue
		}

		dt, err := conn.DescribeTable(ctx, ref)
		if err != nil {
			d.log.ErrorContext(ctx, "describe table failed", slog.String("table", ref.String()), slog.String("error", err.Error()))
			return nil, err
		}
		dt.CredentialID = credentialID
		dt.DiscoveredAt = nowSeconds(ctx)

		if _, err := d.store.UpsertDiscoveredTable(ctx, dt); err != nil {
			return nil, fmt.Errorf("upsert discovered table %s: %w", ref.String(), err)
		}

		bundle.Tables = append(bundle.Tables, *dt)
	}

	bundle.Graph = buildRelationshipGraph(bundle.Tables)
	return bundle, nil
}

func matchesFilter(ref models.TableRef, filter string) bool {
	return strings.HasPrefix(ref.String(), filter) || strings.HasPrefix(ref.Table, filter)
}

// buildRelationshipGraph derives nodes and FK-backed edges from a set of
// discovered tables.
func buildRelationshipGraph(tables []models.DiscoveredTable) models.RelationshipGraph {
	g := models.RelationshipGraph{}
	for _, t := range tables {
		id := t.Schema + "." + t.Table
		g.Nodes = append(g.Nodes, id)
		for _, fk := range t.ForeignKeys {
			g.Edges = append(g.Edges, models.RelationshipEdge{
				FromTable: id,
				ToTable:   fk.ReferencedSchema + "." + fk.ReferencedTable,
				ViaColumn: fk.Column,
			})
		}
	}
	return g
}

// GetFilterPreview executes a COUNT and a bounded sample SELECT against a
// candidate predicate. Query failures never propagate: they return a zero
// count and the error string, since this is only ever used to preview a
// not-yet-committed filter.
func (d *Discovery) GetFilterPreview(ctx context.Context, owner, credentialID, schema, table, predicate string, limit int) (matchCount int64, sampleRows []map[string]any, previewErr string) {
	secret, err := d.open.Open(ctx, owner, credentialID)
	if err != nil {
		return 0, nil, err.Error()
	}

	conn, err := sourcedb.Dial(ctx, *secret, d.dialTimeout)
	if err != nil {
		return 0, nil, err.Error()
	}
	defer conn.Close()

	count, rows, err := conn.PreviewPredicate(ctx, schema, table, predicate, limit)
	if err != nil {
		return 0, nil, err.Error()
	}
	return count, rows, ""
}

// Cached returns the previously discovered tables for a credential without
// reintrospecting the source.
func (d *Discovery) Cached(ctx context.Context, credentialID string) ([]models.DiscoveredTable, error) {
	return d.store.ListDiscoveredTables(ctx, credentialID)
}

func nowSeconds(ctx context.Context) int64 {
	if ts, ok := ctx.Value(clockKey{}).(int64); ok {
		return ts
	}
	return time.Now().Unix()
}

type clockKey struct{}

// WithClock overrides the discovery timestamp for deterministic tests,
// avoiding a direct time.Now() call inside Run.
func WithClock(ctx context.Context, unixSeconds int64) context.Context {
	return context.WithValue(ctx, clockKey{}, unixSeconds)
}
