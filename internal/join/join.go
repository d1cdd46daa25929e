// Package join implements the Join Planner: validating and generating
// ksqlDB-style DDL that joins a CDC stream against lookup tables.
package join

import (
	"fmt"
	"strings"

	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// StreamSchema is a named column/type projection for either the source
// stream or a lookup table.
type StreamSchema struct {
	Name    string
	Topic   string
	Columns []models.Column
}

// LookupTable is a join target: a ksqlDB table backed by its own topic,
// keyed on a single column.
type LookupTable struct {
	Name      string
	Topic     string
	KeyColumn string
	Alias     string
	Schema    []models.Column
}

// JoinKey pairs one stream column with one lookup table's key column.
type JoinKey struct {
	StreamColumn string
	TableColumn  string
	TableAlias   string
}

// JoinType is the supported ksqlDB join kind.
type JoinType string

const (
	JoinLeft  JoinType = "LEFT"
	JoinInner JoinType = "INNER"
)

// Plan is the Join Planner's input.
type Plan struct {
	Source       StreamSchema
	Tables       []LookupTable
	Keys         []JoinKey
	OutputExprs  []string // "alias.column" form
	JoinType     JoinType
	OutputTopic  string
	OutputStream string
}

// Result is the Join Planner's output.
type Result struct {
	StreamDDL    string
	TableDDL     []string
	JoinDDL      string
	OutputTopic  string
	OutputSchema []string
	Warnings     []string
}

// typeEquivalenceClasses groups column types considered compatible for a
// join-key comparison, beyond exact string match.
var typeEquivalenceClasses = [][]string{
	{"bigint", "integer", "int", "smallint", "tinyint"},
	{"varchar", "string"},
}

func typeClass(t string) string {
	lower := strings.ToLower(t)
	for _, class := range typeEquivalenceClasses {
		for _, member := range class {
			if lower == member {
				return strings.Join(class, "|")
			}
		}
	}
	return lower
}

// Build validates a join plan and, if valid, generates its DDL.
func Build(p Plan) (Result, error) {
	var errs []string
	var warnings []string

	if p.JoinType != JoinLeft && p.JoinType != JoinInner {
		errs = append(errs, fmt.Sprintf("unsupported join type %q", p.JoinType))
	}

	tableByAlias := make(map[string]LookupTable, len(p.Tables))
	for _, t := range p.Tables {
		tableByAlias[t.Alias] = t
	}

	for _, key := range p.Keys {
		streamCol, ok := findColumn(p.Source.Columns, key.StreamColumn)
		if !ok {
			errs = append(errs, fmt.Sprintf("join key stream column %q not found in source schema", key.StreamColumn))
			continue
		}
		table, ok := tableByAlias[key.TableAlias]
		if !ok {
			errs = append(errs, fmt.Sprintf("join key references unknown table alias %q", key.TableAlias))
			continue
		}
		tableCol, ok := findColumn(table.Schema, key.TableColumn)
		if !ok {
			errs = append(errs, fmt.Sprintf("join key table column %q not found in table %q schema", key.TableColumn, table.Name))
			continue
		}

		if typeClass(streamCol.Type) != typeClass(tableCol.Type) {
			errs = append(errs, fmt.Sprintf("join key type mismatch: %s (%s) vs %s.%s (%s)", key.StreamColumn, streamCol.Type, key.TableAlias, key.TableColumn, tableCol.Type))
		}

		if p.JoinType == JoinInner && (streamCol.Nullable || tableCol.Nullable) {
			warnings = append(warnings, fmt.Sprintf("join key %s/%s.%s is nullable; consider LEFT instead of INNER", key.StreamColumn, key.TableAlias, key.TableColumn))
		}
	}

	for _, expr := range p.OutputExprs {
		alias, _, ok := strings.Cut(expr, ".")
		if !ok {
			errs = append(errs, fmt.Sprintf("output expression %q is not alias-qualified", expr))
			continue
		}
		if alias != "s" {
			if _, known := tableByAlias[alias]; !known {
				errs = append(errs, fmt.Sprintf("output expression %q references unknown alias %q", expr, alias))
			}
		}
	}

	if len(p.Tables) > 3 {
		warnings = append(warnings, fmt.Sprintf("join plan references %d lookup tables; consider denormalizing", len(p.Tables)))
	}

	if len(errs) > 0 {
		return Result{Warnings: warnings}, fmt.Errorf("%w: %s", models.ErrJoinValidationFailed, strings.Join(errs, "; "))
	}

	result := Result{
		StreamDDL:    createStreamDDL(p.Source),
		OutputTopic:  p.OutputTopic,
		OutputSchema: p.OutputExprs,
		Warnings:     warnings,
	}
	for _, t := range p.Tables {
		result.TableDDL = append(result.TableDDL, createTableDDL(t))
	}
	result.JoinDDL = joinStreamDDL(p)

	return result, nil
}

func findColumn(columns []models.Column, name string) (models.Column, bool) {
	for _, c := range columns {
		if c.Name == name {
			return c, true
		}
	}
	return models.Column{}, false
}

func quoteIdent(name string) string {
	return connwarehouse.QuoteIdent(name)
}

func columnDecl(col models.Column) string {
	return fmt.Sprintf("%s %s", quoteIdent(col.Name), strings.ToUpper(col.Type))
}

// BaseStreamDDL renders the CREATE STREAM statement for a raw source topic,
// exported for the orchestrator to register a stream ahead of any filter or
// join derived from it.
func BaseStreamDDL(s StreamSchema) string {
	return createStreamDDL(s)
}

// BaseStreamDDLFromSchemaID renders the CREATE STREAM statement for a raw
// source topic whose value subject already has a registered schema,
// binding to that schema id rather than redeclaring columns.
func BaseStreamDDLFromSchemaID(name, topic string, schemaID int) string {
	return fmt.Sprintf("CREATE STREAM IF NOT EXISTS %s WITH (KAFKA_TOPIC='%s', VALUE_FORMAT='AVRO', VALUE_SCHEMA_ID=%d);",
		quoteIdent(name), topic, schemaID)
}

func createStreamDDL(s StreamSchema) string {
	decls := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		decls[i] = columnDecl(c)
	}
	return fmt.Sprintf("CREATE STREAM IF NOT EXISTS %s (%s) WITH (KAFKA_TOPIC='%s', VALUE_FORMAT='AVRO');",
		quoteIdent(s.Name), strings.Join(decls, ", "), s.Topic)
}

func createTableDDL(t LookupTable) string {
	decls := make([]string, 0, len(t.Schema))
	for _, c := range t.Schema {
		decl := columnDecl(c)
		if c.Name == t.KeyColumn {
			decl += " PRIMARY KEY"
		}
		decls = append(decls, decl)
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s) WITH (KAFKA_TOPIC='%s', VALUE_FORMAT='AVRO');",
		quoteIdent(t.Name), strings.Join(decls, ", "), t.Topic)
}

func joinStreamDDL(p Plan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE STREAM %s WITH (KAFKA_TOPIC='%s', VALUE_FORMAT='AVRO') AS\n", quoteIdent(p.OutputStream), p.OutputTopic)
	fmt.Fprintf(&b, "  SELECT %s\n", strings.Join(p.OutputExprs, ", "))
	fmt.Fprintf(&b, "  FROM %s s\n", quoteIdent(p.Source.Name))

	tableByAlias := make(map[string]LookupTable, len(p.Tables))
	for _, t := range p.Tables {
		tableByAlias[t.Alias] = t
	}
	keysByAlias := make(map[string][]JoinKey)
	for _, k := range p.Keys {
		keysByAlias[k.TableAlias] = append(keysByAlias[k.TableAlias], k)
	}

	for _, t := range p.Tables {
		fmt.Fprintf(&b, "  %s JOIN %s %s ON", p.JoinType, quoteIdent(t.Name), t.Alias)
		keys := keysByAlias[t.Alias]
		for i, k := range keys {
			if i > 0 {
				b.WriteString(" AND")
			}
			fmt.Fprintf(&b, " s.%s = %s.%s", k.StreamColumn, t.Alias, k.TableColumn)
		}
		b.WriteString("\n")
	}
	b.WriteString("  EMIT CHANGES;")
	return b.String()
}
