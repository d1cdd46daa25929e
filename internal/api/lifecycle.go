package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/orchestrator"
	"github.com/bkvaiude/dataflow-ctl/internal/status"
)

// PipelineActionInput is the common shape of every lifecycle transition:
// a pipeline ID and the acting owner.
type PipelineActionInput struct {
	ID    string `path:"id" minLength:"1" doc:"Pipeline ID"`
	Owner string `query:"owner" minLength:"1" doc:"Pipeline owner"`
}

type PipelineActionResponse struct {
	Body models.Pipeline
}

func StartPipelineDocs() huma.Operation {
	return huma.Operation{OperationID: "start-pipeline", Method: http.MethodPost, Summary: "Start a pipeline"}
}

func (h *handler) startPipeline(ctx context.Context, input *PipelineActionInput) (*PipelineActionResponse, error) {
	return h.runAction(ctx, input, h.orchestrator.Start)
}

func PausePipelineDocs() huma.Operation {
	return huma.Operation{OperationID: "pause-pipeline", Method: http.MethodPost, Summary: "Pause a pipeline"}
}

func (h *handler) pausePipeline(ctx context.Context, input *PipelineActionInput) (*PipelineActionResponse, error) {
	return h.runAction(ctx, input, h.orchestrator.Pause)
}

func ResumePipelineDocs() huma.Operation {
	return huma.Operation{OperationID: "resume-pipeline", Method: http.MethodPost, Summary: "Resume a pipeline"}
}

func (h *handler) resumePipeline(ctx context.Context, input *PipelineActionInput) (*PipelineActionResponse, error) {
	return h.runAction(ctx, input, h.orchestrator.Resume)
}

func StopPipelineDocs() huma.Operation {
	return huma.Operation{OperationID: "stop-pipeline", Method: http.MethodPost, Summary: "Stop a pipeline"}
}

func (h *handler) stopPipeline(ctx context.Context, input *PipelineActionInput) (*PipelineActionResponse, error) {
	return h.runAction(ctx, input, h.orchestrator.Stop)
}

func (h *handler) runAction(ctx context.Context, input *PipelineActionInput, action func(context.Context, string, string) (*models.Pipeline, error)) (*PipelineActionResponse, error) {
	p, err := action(ctx, input.Owner, input.ID)
	if err != nil {
		return nil, translateLifecycleError(input.ID, err)
	}
	return &PipelineActionResponse{Body: *p}, nil
}

func translateLifecycleError(pipelineID string, err error) *ErrorDetail {
	if errors.Is(err, models.ErrNotFound) {
		return &ErrorDetail{
			Status:  http.StatusNotFound,
			Code:    "not_found",
			Message: "pipeline not found",
			Details: map[string]any{"pipeline_id": pipelineID, "error": err.Error()},
		}
	}
	if statusErr, ok := status.GetStatusValidationError(err); ok {
		return &ErrorDetail{
			Status:  statusErr.HTTPStatus(),
			Code:    statusErr.ErrorCode(),
			Message: statusErr.Message,
			Details: map[string]any{
				"pipeline_id":      pipelineID,
				"current_status":   string(statusErr.CurrentStatus),
				"requested_status": string(statusErr.RequestedStatus),
			},
		}
	}
	return &ErrorDetail{
		Status:  http.StatusInternalServerError,
		Code:    "internal_error",
		Message: "pipeline action failed",
		Details: map[string]any{"pipeline_id": pipelineID, "error": err.Error()},
	}
}

func DeletePipelineDocs() huma.Operation {
	return huma.Operation{
		OperationID: "delete-pipeline",
		Method:      http.MethodDelete,
		Summary:     "Delete a pipeline",
		Description: "Tears down a pipeline's tracked resources and soft-deletes it",
	}
}

type DeletePipelineInput struct {
	ID                    string `path:"id" minLength:"1" doc:"Pipeline ID"`
	Owner                 string `query:"owner" minLength:"1" doc:"Pipeline owner"`
	DeleteDestinationData bool   `query:"delete_destination_data" doc:"Also drop the sink table/database"`
}

type DeletePipelineResponse struct {
	Body struct {
		EstimatedDailySavings float64  `json:"estimated_daily_savings"`
		FailedResourceIDs     []string `json:"failed_resource_ids,omitempty"`
	}
}

func (h *handler) deletePipeline(ctx context.Context, input *DeletePipelineInput) (*DeletePipelineResponse, error) {
	result, err := h.orchestrator.Delete(ctx, input.Owner, input.ID, orchestrator.DeleteOptions{DeleteDestinationData: input.DeleteDestinationData})
	if err != nil {
		return nil, translateLifecycleError(input.ID, err)
	}
	resp := &DeletePipelineResponse{}
	resp.Body.EstimatedDailySavings = result.EstimatedDailySavings
	resp.Body.FailedResourceIDs = result.FailedResourceIDs
	return resp, nil
}
