package models

// TransformKind enumerates the transformation steps a Transform Template
// may chain together.
type TransformKind string

const (
	TransformFilter      TransformKind = "filter"
	TransformAggregation TransformKind = "aggregation"
	TransformJoin        TransformKind = "join"
)

// TransformStep is one ordered configuration entry in a Transform Template.
type TransformStep struct {
	Kind   TransformKind
	Config map[string]any
}

// AnomalyDetectionConfig is the anomaly-rule bundle a template applies to
// any pipeline created from it.
type AnomalyDetectionConfig struct {
	Rules []AlertRule
}

// TransformTemplate is a reusable, ordered list of transformation
// configurations plus an anomaly-detection configuration.
type TransformTemplate struct {
	ID          string
	Owner       string
	Name        string
	Description string
	Steps       []TransformStep
	AnomalyCfg  AnomalyDetectionConfig
}
