// Package registry wraps the Kafka Schema Registry client used by the
// Pipeline Orchestrator to look up schema ids registered for a stream's
// topic, and to resolve a registered schema's field types.
package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/twmb/franz-go/pkg/sr"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// JSON Schema primitive type names, as they appear in a "type" keyword.
const (
	jsonTypeArray   = "array"
	jsonTypeObject  = "object"
	jsonTypeString  = "string"
	jsonTypeInteger = "integer"
	jsonTypeNumber  = "number"
	jsonTypeBoolean = "boolean"
)

// Field data type names used internally once a JSON Schema type is resolved.
const (
	fieldTypeArray  = "array"
	fieldTypeMap    = "map"
	fieldTypeString = "string"
	fieldTypeInt    = "int"
	fieldTypeFloat  = "float"
	fieldTypeBool   = "bool"
)

// SchemaRegistryClient resolves Avro/JSON schemas registered for a stream's
// Kafka topic into a flat list of typed fields.
type SchemaRegistryClient struct {
	client *sr.Client
}

// NewSchemaRegistryClient dials the Schema Registry at config.URL, optionally
// authenticating with basic auth credentials.
func NewSchemaRegistryClient(config models.SchemaRegistryConfig) (*SchemaRegistryClient, error) {
	opts := []sr.ClientOpt{sr.URLs(config.URL)}

	if config.APIKey != "" && config.APISecret != "" {
		opts = append(opts, sr.BasicAuth(config.APIKey, config.APISecret))
	}

	client, err := sr.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create the Schema Registry client: %w", err)
	}

	return &SchemaRegistryClient{
		client: client,
	}, nil
}

// GetSchema fetches and flattens the JSON schema registered under schemaID.
func (s *SchemaRegistryClient) GetSchema(ctx context.Context, schemaID int) ([]models.Field, error) {
	schema, err := s.client.SchemaByID(ctx, schemaID)
	if err != nil {
		if errors.Is(err, sr.ErrSchemaNotFound) {
			return nil, models.ErrSchemaNotFound
		}
		return nil, fmt.Errorf("failed to get schema by id %d: %w", schemaID, err)
	}

	if schema.Type != sr.TypeJSON {
		return nil, fmt.Errorf("%w: expected %s, got %s", models.ErrUnexpectedSchemaFormat, sr.TypeJSON, schema.Type)
	}

	return parseJSONSchema(schema.Schema)
}

// LatestSchemaID returns the schema id currently registered for subject,
// and false (no error) if the subject has no registered version yet. Used
// by the Pipeline Orchestrator to decide whether a base stream's DDL can
// bind to an existing schema id instead of redeclaring columns.
func (s *SchemaRegistryClient) LatestSchemaID(ctx context.Context, subject string) (int, bool, error) {
	sub, err := s.client.SchemaByVersion(ctx, subject, -1)
	if err != nil {
		if errors.Is(err, sr.ErrSchemaNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get latest schema for subject %s: %w", subject, err)
	}
	return sub.ID, true, nil
}

func parseJSONSchema(schema string) ([]models.Field, error) {
	schemaType := gjson.Get(schema, "type")
	if !schemaType.Exists() || schemaType.String() != jsonTypeObject {
		return nil, models.ErrInvalidSchema
	}

	properties := gjson.Get(schema, "properties")
	additionalProperties := gjson.Get(schema, "additionalProperties")
	if !properties.Exists() && !additionalProperties.Exists() {
		return nil, models.ErrInvalidSchema
	}

	fields := make([]models.Field, 0)
	if properties.Exists() {
		propertiesFields := extractFieldTypes(properties)
		fields = append(fields, propertiesFields...)
	}

	if additionalProperties.Exists() {
		additionalFields := extractFieldTypes(additionalProperties)
		fields = append(fields, additionalFields...)
	}

	return fields, nil
}

func extractFieldTypes(properties gjson.Result) []models.Field {
	fields := make([]models.Field, 0)
	properties.ForEach(func(key, value gjson.Result) bool {
		fieldType := value.Get("type")
		if !fieldType.Exists() {
			return true
		}
		dataType, err := resolveJSONSchemaType(value)
		if err != nil {
			return true
		}
		if dataType == fieldTypeMap {
			nestedFields, err := parseJSONSchema(value.Raw)
			if err != nil {
				return true
			}

			for _, field := range nestedFields {
				combinedName := fmt.Sprintf("%s.%s", key.String(), field.Name)
				fields = append(fields, models.Field{Name: combinedName, Type: field.Type})
			}

			return true
		}

		fields = append(fields, models.Field{
			Name: key.String(),
			Type: dataType,
		})
		return true
	})

	return fields
}

func resolveJSONSchemaType(property gjson.Result) (string, error) {
	typeField := property.Get("type")

	if !typeField.Exists() {
		return "", models.ErrUnsupportedDataType
	}

	switch typeField.String() {
	case jsonTypeArray:
		return fieldTypeArray, nil
	case jsonTypeObject:
		return fieldTypeMap, nil
	case jsonTypeString:
		return fieldTypeString, nil
	case jsonTypeInteger:
		return fieldTypeInt, nil
	case jsonTypeNumber:
		return fieldTypeFloat, nil
	case jsonTypeBoolean:
		return fieldTypeBool, nil
	default:
		return "", models.ErrUnsupportedDataType
	}
}
