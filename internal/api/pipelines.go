package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

func ListPipelinesDocs() huma.Operation {
	return huma.Operation{
		OperationID: "list-pipelines",
		Method:      http.MethodGet,
		Summary:     "List pipelines",
		Description: "Lists non-deleted pipelines for an owner",
	}
}

type ListPipelinesInput struct {
	Owner string `query:"owner" minLength:"1" doc:"Pipeline owner"`
}

type ListPipelinesResponse struct {
	Body struct {
		Pipelines []models.Pipeline `json:"pipelines"`
	}
}

func (h *handler) listPipelines(ctx context.Context, input *ListPipelinesInput) (*ListPipelinesResponse, error) {
	pipelines, err := h.pipelines.ListPipelines(ctx, input.Owner)
	if err != nil {
		return nil, &ErrorDetail{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "failed to list pipelines",
			Details: map[string]any{"owner": input.Owner, "error": err.Error()},
		}
	}
	resp := &ListPipelinesResponse{}
	resp.Body.Pipelines = pipelines
	return resp, nil
}

func GetPipelineDocs() huma.Operation {
	return huma.Operation{
		OperationID: "get-pipeline",
		Method:      http.MethodGet,
		Summary:     "Get pipeline",
		Description: "Returns one pipeline's current state",
	}
}

type GetPipelineInput struct {
	ID string `path:"id" minLength:"1" doc:"Pipeline ID"`
}

type GetPipelineResponse struct {
	Body models.Pipeline
}

func (h *handler) getPipeline(ctx context.Context, input *GetPipelineInput) (*GetPipelineResponse, error) {
	p, err := h.pipelines.GetPipeline(ctx, input.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &ErrorDetail{
				Status:  http.StatusNotFound,
				Code:    "not_found",
				Message: fmt.Sprintf("pipeline %q not found", input.ID),
			}
		}
		return nil, &ErrorDetail{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "failed to load pipeline",
			Details: map[string]any{"pipeline_id": input.ID, "error": err.Error()},
		}
	}
	return &GetPipelineResponse{Body: *p}, nil
}
