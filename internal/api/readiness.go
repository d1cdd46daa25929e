package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// ReadinessProber runs a source readiness check ahead of pipeline creation,
// narrowed from *readiness.Prober.
type ReadinessProber interface {
	Run(ctx context.Context, owner, credentialID, sourceKind string, tables []models.TableRef) (*models.ReadinessResult, error)
}

func CheckReadinessDocs() huma.Operation {
	return huma.Operation{
		OperationID: "check-readiness",
		Method:      http.MethodPost,
		Summary:     "Check source readiness",
		Description: "Runs provider detection and CDC-eligibility probes against a stored credential, without creating a pipeline",
	}
}

type CheckReadinessInput struct {
	Body struct {
		Owner        string            `json:"owner"`
		CredentialID string            `json:"credential_id"`
		SourceKind   string            `json:"source_kind"`
		Tables       []models.TableRef `json:"tables"`
	}
}

type CheckReadinessResponse struct {
	Body models.ReadinessResult
}

func (h *handler) checkReadiness(ctx context.Context, input *CheckReadinessInput) (*CheckReadinessResponse, error) {
	result, err := h.readiness.Run(ctx, input.Body.Owner, input.Body.CredentialID, input.Body.SourceKind, input.Body.Tables)
	if err != nil {
		return nil, &ErrorDetail{
			Status:  http.StatusUnprocessableEntity,
			Code:    "readiness_check_failed",
			Message: "failed to run readiness check",
			Details: map[string]any{"error": err.Error()},
		}
	}
	return &CheckReadinessResponse{Body: *result}, nil
}
