package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

func GetPipelineResourcesDocs() huma.Operation {
	return huma.Operation{
		OperationID: "get-pipeline-resources",
		Method:      http.MethodGet,
		Summary:     "List a pipeline's tracked resources",
		Description: "Returns a pipeline's active tracked external resources, in deletion order",
	}
}

type GetPipelineResourcesInput struct {
	ID string `path:"id" minLength:"1" doc:"Pipeline ID"`
}

type GetPipelineResourcesResponse struct {
	Body struct {
		Resources []models.TrackedResource `json:"resources"`
	}
}

func (h *handler) getPipelineResources(ctx context.Context, input *GetPipelineResourcesInput) (*GetPipelineResourcesResponse, error) {
	resources, err := h.resources.DeletionOrder(ctx, input.ID)
	if err != nil {
		return nil, &ErrorDetail{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "failed to list pipeline resources",
			Details: map[string]any{"pipeline_id": input.ID, "error": err.Error()},
		}
	}
	resp := &GetPipelineResourcesResponse{}
	resp.Body.Resources = resources
	return resp, nil
}
