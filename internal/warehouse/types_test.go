package warehouse

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapColumnType(t *testing.T) {
	tests := []struct {
		name       string
		sourceType string
		nullable   bool
		want       string
	}{
		{"int", "integer", false, "Int32"},
		{"bigint", "bigint", false, "Int64"},
		{"smallint", "smallint", false, "Int16"},
		{"boolean", "boolean", false, "Bool"},
		{"real", "real", false, "Float32"},
		{"double precision", "double precision", false, "Float64"},
		{"numeric", "numeric", false, "Float64"},
		{"timestamp", "timestamp without time zone", false, "DateTime64(6)"},
		{"date", "date", false, "Date"},
		{"uuid", "uuid", false, "UUID"},
		{"jsonb", "jsonb", false, "String"},
		{"varchar", "character varying", false, "String"},
		{"text", "text", false, "String"},
		{"unknown defaults to string", "box", false, "String"},
		{"nullable wraps", "integer", true, "Nullable(Int32)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, mapColumnType(tt.sourceType, tt.nullable))
		})
	}
}

func TestColumnDDL(t *testing.T) {
	assert.Equal(t, "`id` Int64", ColumnDDL("id", "bigint", false))
	assert.Equal(t, "`email` Nullable(String)", ColumnDDL("email", "text", true))
	assert.Equal(t, "`weird``name` String", ColumnDDL("weird`name", "text", false))
}
