package models

import "time"

// AlertRuleKind enumerates the anomaly classes an Alert Rule watches for.
type AlertRuleKind string

const (
	RuleVolumeSpike   AlertRuleKind = "volume_spike"
	RuleVolumeDrop    AlertRuleKind = "volume_drop"
	RuleGapDetection  AlertRuleKind = "gap_detection"
	RuleNullRatio     AlertRuleKind = "null_ratio"
	RuleCardinality   AlertRuleKind = "cardinality"
	RuleRowCountDrop  AlertRuleKind = "row_count_drop"
	RuleTypeCoercion  AlertRuleKind = "type_coercion"
)

// Severity is the urgency level attached to a rule and to any anomaly/alert
// it produces.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Weekday matches time.Weekday's Sunday=0..Saturday=6 numbering so rule
// schedules can be compared directly against time.Now().Weekday().
type Weekday int

// AlertRule is a monitoring rule scoped either to a single pipeline or,
// when PipelineID is empty, to all of the owner's pipelines.
type AlertRule struct {
	ID         string
	Owner      string
	PipelineID string // empty == user-wide rule

	Name      string
	Kind      AlertRuleKind
	Threshold map[string]any

	EnabledDays  map[time.Weekday]bool
	EnabledHours map[int]bool // nil/empty == unrestricted

	Cooldown time.Duration
	Severity Severity
	Recipients []string

	Active        bool
	LastTriggered *time.Time
	TriggerCount  int
}

// AlertHistory is one delivered (or attempted) notification.
type AlertHistory struct {
	ID     string
	RuleID string

	Kind     AlertRuleKind
	Severity Severity
	Title    string
	Body     string
	Details  map[string]any

	Delivered     bool
	DeliveredAt   *time.Time
	Recipients    []string
	DeliveryError string

	TriggeredAt time.Time
}
