package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/orchestrator"
)

func CreatePipelineDocs() huma.Operation {
	return huma.Operation{
		OperationID: "create-pipeline",
		Method:      http.MethodPost,
		Summary:     "Create a pipeline",
		Description: "Validates the credential and tables, and persists a new pipeline in pending status",
	}
}

type createPipelineBody struct {
	Owner               string               `json:"owner"`
	Name                string               `json:"name"`
	CredentialID        string               `json:"credential_id"`
	Tables              []models.TableRef    `json:"tables"`
	Filter              *models.FilterConfig `json:"filter,omitempty"`
	TransformTemplateID string               `json:"transform_template_id,omitempty"`
	SinkKind            models.SinkKind      `json:"sink_kind"`
	SinkConfig          map[string]any       `json:"sink_config"`
}

type CreatePipelineInput struct {
	Body createPipelineBody
}

type CreatePipelineResponse struct {
	Body models.Pipeline
}

func (h *handler) createPipeline(ctx context.Context, input *CreatePipelineInput) (*CreatePipelineResponse, error) {
	p, err := h.orchestrator.Create(ctx, orchestrator.CreateInput{
		Owner:               input.Body.Owner,
		Name:                input.Body.Name,
		CredentialID:        input.Body.CredentialID,
		Tables:              input.Body.Tables,
		Filter:              input.Body.Filter,
		TransformTemplateID: input.Body.TransformTemplateID,
		SinkKind:            input.Body.SinkKind,
		SinkConfig:          input.Body.SinkConfig,
	})
	if err != nil {
		status := http.StatusInternalServerError
		code := "internal_error"
		if errors.Is(err, models.ErrNotFound) {
			status, code = http.StatusNotFound, "not_found"
		}
		return nil, &ErrorDetail{
			Status:  status,
			Code:    code,
			Message: "failed to create pipeline",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return &CreatePipelineResponse{Body: *p}, nil
}
