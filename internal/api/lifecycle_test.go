package api

import (
	"context"
	"log/slog"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/orchestrator"
	"github.com/bkvaiude/dataflow-ctl/internal/status"
)

type fakeOrchestrator struct {
	created   *models.Pipeline
	createErr error

	actionPipeline *models.Pipeline
	actionErr      error

	deleteResult orchestrator.DeleteResult
	deleteErr    error
}

func (f *fakeOrchestrator) Create(_ context.Context, _ orchestrator.CreateInput) (*models.Pipeline, error) {
	return f.created, f.createErr
}

func (f *fakeOrchestrator) Start(_ context.Context, _, _ string) (*models.Pipeline, error) {
	return f.actionPipeline, f.actionErr
}

func (f *fakeOrchestrator) Pause(_ context.Context, _, _ string) (*models.Pipeline, error) {
	return f.actionPipeline, f.actionErr
}

func (f *fakeOrchestrator) Resume(_ context.Context, _, _ string) (*models.Pipeline, error) {
	return f.actionPipeline, f.actionErr
}

func (f *fakeOrchestrator) Stop(_ context.Context, _, _ string) (*models.Pipeline, error) {
	return f.actionPipeline, f.actionErr
}

func (f *fakeOrchestrator) Delete(_ context.Context, _, _ string, _ orchestrator.DeleteOptions) (orchestrator.DeleteResult, error) {
	return f.deleteResult, f.deleteErr
}

func TestCreatePipelineSucceeds(t *testing.T) {
	h := &handler{log: slog.Default(), orchestrator: &fakeOrchestrator{created: &models.Pipeline{ID: "p1", Owner: "acme"}}}

	resp, err := h.createPipeline(context.Background(), &CreatePipelineInput{Body: createPipelineBody{Owner: "acme"}})
	require.NoError(t, err)
	assert.Equal(t, "p1", resp.Body.ID)
}

func TestCreatePipelineTranslatesNotFound(t *testing.T) {
	h := &handler{log: slog.Default(), orchestrator: &fakeOrchestrator{createErr: models.ErrNotFound}}

	_, err := h.createPipeline(context.Background(), &CreatePipelineInput{})
	require.Error(t, err)
	var detail *ErrorDetail
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, http.StatusNotFound, detail.Status)
}

func TestStartPipelineSucceeds(t *testing.T) {
	h := &handler{log: slog.Default(), orchestrator: &fakeOrchestrator{actionPipeline: &models.Pipeline{ID: "p1", Status: models.PipelineStatusRunning}}}

	resp, err := h.startPipeline(context.Background(), &PipelineActionInput{ID: "p1", Owner: "acme"})
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusRunning, resp.Body.Status)
}

func TestStartPipelineTranslatesStatusValidationError(t *testing.T) {
	statusErr := status.NewInvalidTransitionError(models.PipelineStatusStopped, models.PipelineStatusRunning)
	h := &handler{log: slog.Default(), orchestrator: &fakeOrchestrator{actionErr: statusErr}}

	_, err := h.startPipeline(context.Background(), &PipelineActionInput{ID: "p1", Owner: "acme"})
	require.Error(t, err)
	var detail *ErrorDetail
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, http.StatusBadRequest, detail.Status)
	assert.Equal(t, "INVALID_STATUS_TRANSITION", detail.Code)
}

func TestDeletePipelineReturnsSavings(t *testing.T) {
	h := &handler{log: slog.Default(), orchestrator: &fakeOrchestrator{
		deleteResult: orchestrator.DeleteResult{EstimatedDailySavings: 12.5},
	}}

	resp, err := h.deletePipeline(context.Background(), &DeletePipelineInput{ID: "p1", Owner: "acme"})
	require.NoError(t, err)
	assert.Equal(t, 12.5, resp.Body.EstimatedDailySavings)
}

func TestDeletePipelinePropagatesNotFound(t *testing.T) {
	h := &handler{log: slog.Default(), orchestrator: &fakeOrchestrator{deleteErr: models.ErrNotFound}}

	_, err := h.deletePipeline(context.Background(), &DeletePipelineInput{ID: "p1", Owner: "acme"})
	require.Error(t, err)
	var detail *ErrorDetail
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, http.StatusNotFound, detail.Status)
}

type fakeReadinessProber struct {
	result *models.ReadinessResult
	err    error
}

func (f *fakeReadinessProber) Run(_ context.Context, _, _, _ string, _ []models.TableRef) (*models.ReadinessResult, error) {
	return f.result, f.err
}

func TestCheckReadinessSucceeds(t *testing.T) {
	h := &handler{log: slog.Default(), readiness: &fakeReadinessProber{result: &models.ReadinessResult{OverallReady: true}}}

	resp, err := h.checkReadiness(context.Background(), &CheckReadinessInput{})
	require.NoError(t, err)
	assert.True(t, resp.Body.OverallReady)
}

func TestCheckReadinessFails(t *testing.T) {
	h := &handler{log: slog.Default(), readiness: &fakeReadinessProber{err: assert.AnError}}

	_, err := h.checkReadiness(context.Background(), &CheckReadinessInput{})
	require.Error(t, err)
	var detail *ErrorDetail
	require.ErrorAs(t, err, &detail)
	assert.Equal(t, http.StatusUnprocessableEntity, detail.Status)
}
