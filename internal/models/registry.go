package models

// CredentialField describes one field a source descriptor requires (or
// optionally accepts) when a user stores a credential of that kind.
type CredentialField struct {
	Name      string
	Type      string
	Label     string
	Encrypted bool
	Required  bool
	Options   []string
}

// ProbeExpression is one CDC-readiness check a source descriptor declares:
// a named setting/query to read and the value expected of a ready source.
type ProbeExpression struct {
	Name     string
	Query    string
	Expected string
}

// SourceDescriptor is a declarative description of one kind of CDC source,
// loaded from configuration at startup.
type SourceDescriptor struct {
	Name        string
	DisplayName string

	SupportsCDC         bool
	SupportsFullLoad    bool
	SupportsIncremental bool
	ValueFormats        []string

	RequiredFields []CredentialField
	OptionalFields []CredentialField

	ConnectorTemplate      map[string]string
	SchemaDiscoveryQuery   string
	ReadinessProbes        []ProbeExpression
}

// TypeMapping is one source-type → sink-type translation rule. An entry
// with an empty SourceType never prefix-matches (see Registry.MapType).
type TypeMapping struct {
	SourceType string
	SinkType   string
	Default    bool
}

// SinkDescriptor is a declarative description of one kind of sink warehouse.
type SinkDescriptor struct {
	Name        string
	DisplayName string

	TypeMap             []TypeMapping
	CreateTableTemplate string
	ConnectorTemplate   map[string]string
	CostFactors         map[string]float64
}

// TransformDescriptor is a declarative description of one reusable
// transformation kind (filter, aggregation, join) available to the
// Filter/Join Planners and Transform Templates.
type TransformDescriptor struct {
	Name        string
	DisplayName string
	Kind        TransformKind
	Template    string
}
