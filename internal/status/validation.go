package status

import (
	"fmt"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// StatusTransition documents one edge in the pipeline status graph.
type StatusTransition struct {
	From   models.PipelineStatus
	To     models.PipelineStatus
	Action string
}

// StatusValidationMatrix is the full pipeline status transition graph:
// pending -> running <-> paused, running|paused -> stopped, and
// any live status -> failed or deleted. Deleted is terminal; there is no
// un-delete.
var StatusValidationMatrix = map[models.PipelineStatus][]models.PipelineStatus{
	models.PipelineStatusPending: {
		models.PipelineStatusRunning,
		models.PipelineStatusFailed,
		models.PipelineStatusDeleted,
	},
	models.PipelineStatusRunning: {
		models.PipelineStatusPaused,
		models.PipelineStatusStopped,
		models.PipelineStatusFailed,
		models.PipelineStatusDeleted,
	},
	models.PipelineStatusPaused: {
		models.PipelineStatusRunning,
		models.PipelineStatusStopped,
		models.PipelineStatusFailed,
		models.PipelineStatusDeleted,
	},
	models.PipelineStatusStopped: {
		models.PipelineStatusFailed,
		models.PipelineStatusDeleted,
	},
	models.PipelineStatusFailed: {
		models.PipelineStatusDeleted,
	},
	models.PipelineStatusDeleted: {},
}

// ValidateStatusTransition checks if a transition from one status to another is valid.
func ValidateStatusTransition(from, to models.PipelineStatus) error {
	validTransitions, exists := StatusValidationMatrix[from]
	if !exists {
		return NewUnknownStatusError(from)
	}

	for _, validStatus := range validTransitions {
		if validStatus == to {
			return nil
		}
	}

	if from == models.PipelineStatusDeleted {
		return NewTerminalStateError(from, to)
	}
	return NewInvalidTransitionError(from, to)
}

// GetValidTransitions returns all valid transitions from a given status.
func GetValidTransitions(from models.PipelineStatus) ([]models.PipelineStatus, error) {
	validTransitions, exists := StatusValidationMatrix[from]
	if !exists {
		return nil, fmt.Errorf("unknown status: %s", from)
	}

	result := make([]models.PipelineStatus, len(validTransitions))
	copy(result, validTransitions)
	return result, nil
}

// IsTerminalStatus reports whether a status has no outgoing transitions.
func IsTerminalStatus(status models.PipelineStatus) bool {
	transitions, exists := StatusValidationMatrix[status]
	return exists && len(transitions) == 0
}

// IsTransitionalStatus reports whether a status represents a pipeline
// mid-operation. The control plane serializes operations per pipeline with
// a mutex (see the orchestrator package) rather than modeling separate
// "pausing"/"stopping" states, so no PipelineStatus value is transitional
// today; this stays as a hook for callers that branch on it.
func IsTransitionalStatus(status models.PipelineStatus) bool {
	return false
}

// GetStatusDescription returns a human-readable description of a status.
func GetStatusDescription(status models.PipelineStatus) string {
	descriptions := map[models.PipelineStatus]string{
		models.PipelineStatusPending: "Pipeline created and ready to start",
		models.PipelineStatusRunning: "Pipeline is actively processing data",
		models.PipelineStatusPaused:  "Pipeline is paused and not processing data",
		models.PipelineStatusStopped: "Pipeline has been stopped",
		models.PipelineStatusFailed:  "Pipeline has failed",
		models.PipelineStatusDeleted: "Pipeline has been deleted",
	}

	if description, exists := descriptions[status]; exists {
		return description
	}
	return fmt.Sprintf("Unknown status: %s", status)
}

// ValidatePipelineOperation validates that a requested status change is
// legal for the pipeline's current status.
func ValidatePipelineOperation(pipeline *models.Pipeline, operation models.PipelineStatus) error {
	if pipeline == nil {
		return NewPipelineNotFoundError("")
	}

	currentStatus := pipeline.Status

	if currentStatus == operation {
		return NewPipelineAlreadyInStateError(currentStatus, operation)
	}

	return ValidateStatusTransition(currentStatus, operation)
}
