package models

// Anomaly is one rule violation produced by the Anomaly Engine, ready to be
// handed to the Alert Dispatcher.
type Anomaly struct {
	Kind        AlertRuleKind
	Severity    Severity
	PipelineID  string
	Table       string
	Column      string
	Measured    float64
	Threshold   float64
	Description string
	Details     map[string]any
}

// AnalyzeVerdict is the multi-anomaly result of comparing an original and
// transformed row-set during a preview/simulate flow.
type AnalyzeVerdict struct {
	Anomalies  []Anomaly
	Summary    string
	CanProceed bool
}

// MetricSample is one pipeline polling cycle's observed counters for one
// source table, gathered by the Monitor Loop and consumed by the Anomaly
// Engine's live-rule evaluation.
type MetricSample struct {
	Table            string
	RowCount         int64
	LastEventAt      int64 // unix seconds; zero means unknown
	NullCounts       map[string]int64
	TransformedCount int64
	ColumnTypes      map[string]string
	TransformedTypes map[string]string
	TransformKind    TransformKind
}
