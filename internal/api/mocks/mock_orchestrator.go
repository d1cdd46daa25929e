// Mock in the MockGen style.
// Source: github.com/bkvaiude/dataflow-ctl/internal/api (interfaces: Orchestrator)
//
// Hand-maintained in lieu of running mockgen (go:generate below documents
// the command that would regenerate it).

package mocks

//go:generate mockgen -destination=mock_orchestrator.go -package=mocks github.com/bkvaiude/dataflow-ctl/internal/api Orchestrator

import (
	context "context"
	reflect "reflect"

	gomock "go.uber.org/mock/gomock"

	models "github.com/bkvaiude/dataflow-ctl/internal/models"
	orchestrator "github.com/bkvaiude/dataflow-ctl/internal/orchestrator"
)

// MockOrchestrator is a mock of the api.Orchestrator interface.
type MockOrchestrator struct {
	ctrl     *gomock.Controller
	recorder *MockOrchestratorMockRecorder
}

// MockOrchestratorMockRecorder is the mock recorder for MockOrchestrator.
type MockOrchestratorMockRecorder struct {
	mock *MockOrchestrator
}

// NewMockOrchestrator creates a new mock instance.
func NewMockOrchestrator(ctrl *gomock.Controller) *MockOrchestrator {
	mock := &MockOrchestrator{ctrl: ctrl}
	mock.recorder = &MockOrchestratorMockRecorder{mock}
	return mock
}

// EXPECT returns an object that allows the caller to indicate expected use.
func (m *MockOrchestrator) EXPECT() *MockOrchestratorMockRecorder {
	return m.recorder
}

// Create mocks base method.
func (m *MockOrchestrator) Create(ctx context.Context, in orchestrator.CreateInput) (*models.Pipeline, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Create", ctx, in)
	ret0, _ := ret[0].(*models.Pipeline)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Create indicates an expected call of Create.
func (mr *MockOrchestratorMockRecorder) Create(ctx, in any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Create", reflect.TypeOf((*MockOrchestrator)(nil).Create), ctx, in)
}

// Start mocks base method.
func (m *MockOrchestrator) Start(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Start", ctx, owner, pipelineID)
	ret0, _ := ret[0].(*models.Pipeline)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Start indicates an expected call of Start.
func (mr *MockOrchestratorMockRecorder) Start(ctx, owner, pipelineID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Start", reflect.TypeOf((*MockOrchestrator)(nil).Start), ctx, owner, pipelineID)
}

// Pause mocks base method.
func (m *MockOrchestrator) Pause(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Pause", ctx, owner, pipelineID)
	ret0, _ := ret[0].(*models.Pipeline)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Pause indicates an expected call of Pause.
func (mr *MockOrchestratorMockRecorder) Pause(ctx, owner, pipelineID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Pause", reflect.TypeOf((*MockOrchestrator)(nil).Pause), ctx, owner, pipelineID)
}

// Resume mocks base method.
func (m *MockOrchestrator) Resume(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Resume", ctx, owner, pipelineID)
	ret0, _ := ret[0].(*models.Pipeline)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Resume indicates an expected call of Resume.
func (mr *MockOrchestratorMockRecorder) Resume(ctx, owner, pipelineID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Resume", reflect.TypeOf((*MockOrchestrator)(nil).Resume), ctx, owner, pipelineID)
}

// Stop mocks base method.
func (m *MockOrchestrator) Stop(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Stop", ctx, owner, pipelineID)
	ret0, _ := ret[0].(*models.Pipeline)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Stop indicates an expected call of Stop.
func (mr *MockOrchestratorMockRecorder) Stop(ctx, owner, pipelineID any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Stop", reflect.TypeOf((*MockOrchestrator)(nil).Stop), ctx, owner, pipelineID)
}

// Delete mocks base method.
func (m *MockOrchestrator) Delete(ctx context.Context, owner, pipelineID string, opts orchestrator.DeleteOptions) (orchestrator.DeleteResult, error) {
	m.ctrl.T.Helper()
	ret := m.ctrl.Call(m, "Delete", ctx, owner, pipelineID, opts)
	ret0, _ := ret[0].(orchestrator.DeleteResult)
	ret1, _ := ret[1].(error)
	return ret0, ret1
}

// Delete indicates an expected call of Delete.
func (mr *MockOrchestratorMockRecorder) Delete(ctx, owner, pipelineID, opts any) *gomock.Call {
	mr.mock.ctrl.T.Helper()
	return mr.mock.ctrl.RecordCallWithMethodType(mr.mock, "Delete", reflect.TypeOf((*MockOrchestrator)(nil).Delete), ctx, owner, pipelineID, opts)
}
