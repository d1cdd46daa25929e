package models

import "time"

// WorkflowStep is one stage of the stepwise pipeline-construction
// conversation, in the fixed order a session advances through.
type WorkflowStep string

const (
	StepSourceIdentification WorkflowStep = "source_identification"
	StepTableSelection        WorkflowStep = "table_selection"
	StepDataFilter            WorkflowStep = "data_filter"
	StepSchemaValidation      WorkflowStep = "schema_validation"
	StepTopicNaming           WorkflowStep = "topic_naming"
	StepDestinationSelection  WorkflowStep = "destination_selection"
	StepDestinationSchema     WorkflowStep = "destination_schema"
	StepResourceCreation      WorkflowStep = "resource_creation"
	StepAlertConfiguration    WorkflowStep = "alert_configuration"
	StepCostEstimation        WorkflowStep = "cost_estimation"
	StepFinalConfirmation     WorkflowStep = "final_confirmation"
)

// WorkflowSteps is the session's fixed step order; Advance/Back index into it.
var WorkflowSteps = []WorkflowStep{
	StepSourceIdentification,
	StepTableSelection,
	StepDataFilter,
	StepSchemaValidation,
	StepTopicNaming,
	StepDestinationSelection,
	StepDestinationSchema,
	StepResourceCreation,
	StepAlertConfiguration,
	StepCostEstimation,
	StepFinalConfirmation,
}

// RequirementHints is what the extractor pulls out of one user utterance.
// Every field is optional; a zero value means that hint was absent.
type RequirementHints struct {
	SourceHint             string
	TableHint              string
	FilterRequirement      string
	DestinationHint        string
	AlertRequirement       string
	AggregationRequirement string
}

// MatchCandidate is one scored candidate returned by a fuzzy-match lookup.
type MatchCandidate struct {
	ID    string
	Label string
	Score float64
}

// WorkflowCursor is the per-session conversation state machine: the
// original request, everything extracted or confirmed so far, and where
// the session currently stands in WorkflowSteps.
type WorkflowCursor struct {
	SessionID string
	UserID    string

	OriginalRequest string
	Hints           RequirementHints

	CurrentStep     WorkflowStep
	CompletedSteps  []WorkflowStep

	ConfirmedSource      string
	ConfirmedTables      []TableRef
	ConfirmedFilter      *FilterConfig
	ConfirmedDestination string
	ConfirmedAlerts      []AlertRule

	CostEstimate *CostEstimate
	PipelineID   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsComplete reports whether the cursor has produced a pipeline.
func (c *WorkflowCursor) IsComplete() bool {
	return c.PipelineID != ""
}
