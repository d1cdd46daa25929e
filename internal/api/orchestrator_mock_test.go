package api

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/bkvaiude/dataflow-ctl/internal/api/mocks"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/orchestrator"
)

// TestDeletePipelineTranslatesDestinationDataFlag uses a gomock-generated
// mock instead of fakeOrchestrator so the query-param -> DeleteOptions
// translation can be asserted on the exact argument the handler passed,
// not just the response the fake was told to return.
func TestDeletePipelineTranslatesDestinationDataFlag(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrch := mocks.NewMockOrchestrator(ctrl)
	mockOrch.EXPECT().
		Delete(gomock.Any(), "acme", "p1", orchestrator.DeleteOptions{DeleteDestinationData: true}).
		Times(1).
		Return(orchestrator.DeleteResult{EstimatedDailySavings: 4.5}, nil)

	h := &handler{log: slog.Default(), orchestrator: mockOrch}

	resp, err := h.deletePipeline(context.Background(), &DeletePipelineInput{
		ID: "p1", Owner: "acme", DeleteDestinationData: true,
	})
	require.NoError(t, err)
	require.Equal(t, 4.5, resp.Body.EstimatedDailySavings)
}

// TestStartPipelineCallsOrchestratorExactlyOnce guards against the action
// helper accidentally invoking the underlying orchestrator method twice
// (e.g. once for a precheck and once for the real call) — a mistake a
// fakeOrchestrator returning the same canned value either way would hide.
func TestStartPipelineCallsOrchestratorExactlyOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrch := mocks.NewMockOrchestrator(ctrl)
	mockOrch.EXPECT().
		Start(gomock.Any(), "acme", "p1").
		Times(1).
		Return(&models.Pipeline{ID: "p1", Status: models.PipelineStatusRunning}, nil)

	h := &handler{log: slog.Default(), orchestrator: mockOrch}

	resp, err := h.startPipeline(context.Background(), &PipelineActionInput{ID: "p1", Owner: "acme"})
	require.NoError(t, err)
	require.Equal(t, models.PipelineStatusRunning, resp.Body.Status)
}
