package warehouse

import (
	"strings"

	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
)

// mapColumnType translates a source Postgres-family column type name into a
// ClickHouse column type, generalizing a Kafka<->ClickHouse type-family
// table into a source->sink map keyed directly on the information_schema
// type string.
func mapColumnType(sourceType string, nullable bool) string {
	base := sourceType
	switch {
	case strings.HasPrefix(sourceType, "int") || sourceType == "serial":
		base = "Int32"
	case strings.HasPrefix(sourceType, "bigint") || sourceType == "bigserial":
		base = "Int64"
	case strings.HasPrefix(sourceType, "smallint"):
		base = "Int16"
	case sourceType == "boolean":
		base = "Bool"
	case sourceType == "real":
		base = "Float32"
	case sourceType == "double precision" || sourceType == "numeric" || sourceType == "decimal":
		base = "Float64"
	case strings.HasPrefix(sourceType, "timestamp"):
		base = "DateTime64(6)"
	case sourceType == "date":
		base = "Date"
	case sourceType == "uuid":
		base = "UUID"
	case sourceType == "json" || sourceType == "jsonb":
		base = "String"
	case strings.HasPrefix(sourceType, "character") || sourceType == "text" || strings.HasPrefix(sourceType, "varchar"):
		base = "String"
	default:
		base = "String"
	}

	if nullable {
		return "Nullable(" + base + ")"
	}
	return base
}

// ColumnDDL renders one "name type" column definition for a CREATE TABLE
// statement from a discovered source column.
func ColumnDDL(name, sourceType string, nullable bool) string {
	return connwarehouse.QuoteIdent(name) + " " + mapColumnType(sourceType, nullable)
}
