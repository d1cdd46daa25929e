package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

func CheckNowDocs() huma.Operation {
	return huma.Operation{
		OperationID: "check-now",
		Method:      http.MethodPost,
		Summary:     "Trigger an out-of-band monitor sweep",
		Description: "Runs the Monitor Loop's anomaly checks for one pipeline immediately, bypassing the poll interval",
	}
}

type CheckNowInput struct {
	ID string `path:"id" minLength:"1" doc:"Pipeline ID"`
}

type CheckNowResponse struct {
	Body struct{} `json:"-"`
}

func (h *handler) checkNow(ctx context.Context, input *CheckNowInput) (*CheckNowResponse, error) {
	err := h.checker.CheckPipeline(ctx, input.ID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, &ErrorDetail{
				Status:  http.StatusNotFound,
				Code:    "not_found",
				Message: fmt.Sprintf("pipeline %q is not running", input.ID),
			}
		}
		return nil, &ErrorDetail{
			Status:  http.StatusInternalServerError,
			Code:    "internal_error",
			Message: "check failed",
			Details: map[string]any{"pipeline_id": input.ID, "error": err.Error()},
		}
	}
	return &CheckNowResponse{}, nil
}
