package models

import "errors"

// SchemaRegistryConfig holds the connection details for the Kafka Schema
// Registry instance a credential's streams are registered against.
type SchemaRegistryConfig struct {
	URL       string
	APIKey    string
	APISecret string
}

// Field is a single flattened (possibly dotted, for nested objects) field
// name/type pair extracted from a registered JSON schema.
type Field struct {
	Name string
	Type string
}

var (
	ErrSchemaNotFound         = errors.New("schema not found in schema registry")
	ErrUnexpectedSchemaFormat = errors.New("unexpected schema format")
	ErrInvalidSchema          = errors.New("invalid JSON schema document")
	ErrUnsupportedDataType    = errors.New("unsupported JSON schema data type")
)
