package orchestrator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/connectors/connect"
	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/streamproc"
	"github.com/bkvaiude/dataflow-ctl/internal/cost"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

type fakeStore struct {
	pipelines map[string]*models.Pipeline
	createErr error
	statusErr error
}

func newFakeStore(p ...*models.Pipeline) *fakeStore {
	s := &fakeStore{pipelines: make(map[string]*models.Pipeline)}
	for _, pp := range p {
		s.pipelines[pp.ID] = pp
	}
	return s
}

func (f *fakeStore) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	p, ok := f.pipelines[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeStore) CreatePipeline(ctx context.Context, p *models.Pipeline) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	p.ID = "pipe-1"
	cp := *p
	f.pipelines[p.ID] = &cp
	return p.ID, nil
}

func (f *fakeStore) UpdatePipelineStatus(ctx context.Context, id string, status models.PipelineStatus, event models.PipelineEventKind, message string) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	p, ok := f.pipelines[id]
	if !ok {
		return models.ErrNotFound
	}
	p.Status = status
	p.ErrorMessage = message
	return nil
}

func (f *fakeStore) UpdatePipelineConnectorNames(ctx context.Context, id string, sourceConnectorName, sinkConnectorName string) error {
	p, ok := f.pipelines[id]
	if !ok {
		return models.ErrNotFound
	}
	p.SourceConnectorName = sourceConnectorName
	p.SinkConnectorName = sinkConnectorName
	return nil
}

func (f *fakeStore) RecordPipelineError(ctx context.Context, id string, message string) error {
	p, ok := f.pipelines[id]
	if !ok {
		return models.ErrNotFound
	}
	p.ErrorMessage = message
	return nil
}

type fakeCredentials struct {
	cred      *models.Credential
	secret    *models.CredentialSecret
	getErr    error
	openErr   error
}

func (f *fakeCredentials) GetCredential(ctx context.Context, id string) (*models.Credential, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.cred, nil
}

func (f *fakeCredentials) Open(ctx context.Context, owner, id string) (*models.CredentialSecret, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	return f.secret, nil
}

type fakeRegistry struct {
	source       models.SourceDescriptor
	sink         models.SinkDescriptor
	transform    models.TransformDescriptor
	sourceErr    error
	sinkErr      error
	transformErr error
}

func (f *fakeRegistry) Source(name string) (models.SourceDescriptor, error) {
	return f.source, f.sourceErr
}

func (f *fakeRegistry) Sink(name string) (models.SinkDescriptor, error) {
	return f.sink, f.sinkErr
}

func (f *fakeRegistry) Transform(name string) (models.TransformDescriptor, error) {
	return f.transform, f.transformErr
}

type fakeTemplates struct {
	tmpl *models.TransformTemplate
	err  error
}

func (f *fakeTemplates) GetTransformTemplate(ctx context.Context, id string) (*models.TransformTemplate, error) {
	return f.tmpl, f.err
}

type fakeConnect struct {
	createErr error
	deleteErr error
	pauseErr  error
	resumeErr error
	created   []string
	deleted   []string
}

func (f *fakeConnect) CreateConnector(ctx context.Context, cfg connect.ConnectorConfig) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, cfg.Name)
	return nil
}

func (f *fakeConnect) DeleteConnector(ctx context.Context, name string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deleted = append(f.deleted, name)
	return nil
}

func (f *fakeConnect) Pause(ctx context.Context, name string) error  { return f.pauseErr }
func (f *fakeConnect) Resume(ctx context.Context, name string) error { return f.resumeErr }

type fakeStreamProcessor struct {
	execErr       error
	execWithPrErr error
	statements    []string
}

func (f *fakeStreamProcessor) ExecStatement(ctx context.Context, statement string) ([]streamproc.StatementResult, error) {
	if f.execErr != nil {
		return nil, f.execErr
	}
	f.statements = append(f.statements, statement)
	return nil, nil
}

func (f *fakeStreamProcessor) ExecStatementWithProperties(ctx context.Context, statement string, props map[string]any) ([]streamproc.StatementResult, error) {
	if f.execWithPrErr != nil {
		return nil, f.execWithPrErr
	}
	f.statements = append(f.statements, statement)
	return nil, nil
}

type fakeWarehouse struct {
	compatibleErr error
	provisionErr  error
	teardownErr   error
	dropDBErr     error
}

func (f *fakeWarehouse) CheckSchemaCompatible(ctx context.Context, cfg connwarehouse.Config, database, table string) error {
	return f.compatibleErr
}

func (f *fakeWarehouse) Provision(ctx context.Context, cfg connwarehouse.Config, database, table string, source *models.DiscoveredTable) error {
	return f.provisionErr
}

func (f *fakeWarehouse) Teardown(ctx context.Context, cfg connwarehouse.Config, database, table string, dropDatabase bool) error {
	return f.teardownErr
}

func (f *fakeWarehouse) DropDatabase(ctx context.Context, cfg connwarehouse.Config, database string) error {
	return f.dropDBErr
}

type fakeTopics struct {
	createErr error
	deleteErr error
}

func (f *fakeTopics) CreateTopic(ctx context.Context, name string, partitions int32, replicationFactor int16) error {
	return f.createErr
}

func (f *fakeTopics) DeleteTopic(ctx context.Context, name string) error {
	return f.deleteErr
}

type fakeResources struct {
	resources []models.TrackedResource
	trackErr  error
	markErr   error
}

func (f *fakeResources) Track(ctx context.Context, pipelineID string, kind models.ResourceKind, externalID, name string, metadata map[string]any, dependsOn []string) (string, error) {
	if f.trackErr != nil {
		return "", f.trackErr
	}
	id := externalID + "-res"
	f.resources = append(f.resources, models.TrackedResource{ID: id, PipelineID: pipelineID, Kind: kind, ExternalID: externalID, Status: models.ResourceStatusCreating})
	return id, nil
}

func (f *fakeResources) Mark(ctx context.Context, resourceID string, status models.ResourceStatus, errMsg string) error {
	if f.markErr != nil {
		return f.markErr
	}
	for i := range f.resources {
		if f.resources[i].ID == resourceID {
			f.resources[i].Status = status
			f.resources[i].Error = errMsg
		}
	}
	return nil
}

func (f *fakeResources) DeletionOrder(ctx context.Context, pipelineID string) ([]models.TrackedResource, error) {
	return f.resources, nil
}

func (f *fakeResources) CostRelevant(ctx context.Context, pipelineID string) ([]models.TrackedResource, error) {
	return f.resources, nil
}

type fakeCostEstimator struct {
	estimate models.CostEstimate
	err      error
}

func (f *fakeCostEstimator) Estimate(in cost.Input) (models.CostEstimate, error) {
	return f.estimate, f.err
}

type fakeDiscovery struct {
	tables []models.DiscoveredTable
}

func (f *fakeDiscovery) Cached(ctx context.Context, credentialID string) ([]models.DiscoveredTable, error) {
	return f.tables, nil
}

func baseDeps() (Deps, *fakeStore) {
	store := newFakeStore()
	deps := Deps{
		Store: store,
		Credentials: &fakeCredentials{
			cred:   &models.Credential{ID: "cred-1", Owner: "alice", SourceKind: "postgres"},
			secret: &models.CredentialSecret{Host: "db", Port: 5432, Database: "appdb", Username: "u", Password: "p"},
		},
		Registry: &fakeRegistry{
			source: models.SourceDescriptor{ConnectorTemplate: map[string]string{"hostname": "{{.host}}"}},
			sink:   models.SinkDescriptor{ConnectorTemplate: map[string]string{"hostname": "{{.host}}"}},
		},
		Templates: &fakeTemplates{tmpl: &models.TransformTemplate{}},
		Connect:   &fakeConnect{},
		StreamProcessor: &fakeStreamProcessor{},
		Warehouse:       &fakeWarehouse{},
		Topics:          &fakeTopics{},
		Tracker:         &fakeResources{},
		CostEstimator:   &fakeCostEstimator{},
		Discovery:       &fakeDiscovery{},
	}
	return deps, store
}

func TestCreateRejectsForeignCredential(t *testing.T) {
	deps, _ := baseDeps()
	o := New(deps)

	_, err := o.Create(context.Background(), CreateInput{Owner: "mallory", CredentialID: "cred-1"})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreatePersistsPendingPipeline(t *testing.T) {
	deps, store := baseDeps()
	o := New(deps)

	p, err := o.Create(context.Background(), CreateInput{
		Owner: "alice", Name: "orders-pipeline", CredentialID: "cred-1",
		Tables: []models.TableRef{{Schema: "public", Table: "orders"}},
	})
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusPending, p.Status)
	assert.Contains(t, store.pipelines, p.ID)
}

func pendingPipeline() *models.Pipeline {
	return &models.Pipeline{
		ID: "pipe-1", Owner: "alice", CredentialID: "cred-1",
		Tables:     []models.TableRef{{Schema: "public", Table: "orders"}},
		SinkKind:   models.SinkKindWarehouse,
		SinkConfig: map[string]any{"host": "ch", "port": "9000", "database": "sinkdb"},
		Status:     models.PipelineStatusPending,
	}
}

func TestStartHappyPath(t *testing.T) {
	deps, store := baseDeps()
	store.pipelines["pipe-1"] = pendingPipeline()
	connector := deps.Connect.(*fakeConnect)

	o := New(deps)
	p, err := o.Start(context.Background(), "alice", "pipe-1")
	require.NoError(t, err)

	assert.Equal(t, models.PipelineStatusRunning, p.Status)
	assert.Equal(t, "source-pipe1", p.SourceConnectorName)
	assert.Equal(t, "sink-pipe1", p.SinkConnectorName)
	assert.ElementsMatch(t, []string{"source-pipe1", "sink-pipe1"}, connector.created)
}

type fakeSchemaRegistry struct {
	ids map[string]int
}

func (f *fakeSchemaRegistry) LatestSchemaID(ctx context.Context, subject string) (int, bool, error) {
	id, ok := f.ids[subject]
	return id, ok, nil
}

func TestStartUsesSchemaIDWhenSubjectAlreadyRegistered(t *testing.T) {
	deps, store := baseDeps()
	store.pipelines["pipe-1"] = pendingPipeline()
	deps.SchemaRegistry = &fakeSchemaRegistry{ids: map[string]int{"dataflow_pipe1.public.orders-value": 7}}
	proc := deps.StreamProcessor.(*fakeStreamProcessor)

	o := New(deps)
	_, err := o.Start(context.Background(), "alice", "pipe-1")
	require.NoError(t, err)

	var found bool
	for _, s := range proc.statements {
		if strings.Contains(s, "VALUE_SCHEMA_ID=7") {
			found = true
		}
	}
	assert.True(t, found, "expected a base stream DDL bound to the registered schema id, got: %v", proc.statements)
}

func TestStartRejectsForeignOwner(t *testing.T) {
	deps, store := baseDeps()
	store.pipelines["pipe-1"] = pendingPipeline()
	o := New(deps)

	_, err := o.Start(context.Background(), "mallory", "pipe-1")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestStartRejectsInvalidTransition(t *testing.T) {
	deps, store := baseDeps()
	running := pendingPipeline()
	running.Status = models.PipelineStatusRunning
	store.pipelines["pipe-1"] = running
	o := New(deps)

	_, err := o.Start(context.Background(), "alice", "pipe-1")
	require.Error(t, err)
}

func TestStartMarksPipelineFailedOnConnectorError(t *testing.T) {
	deps, store := baseDeps()
	store.pipelines["pipe-1"] = pendingPipeline()
	deps.Connect = &fakeConnect{createErr: errors.New("connect unreachable")}

	o := New(deps)
	_, err := o.Start(context.Background(), "alice", "pipe-1")
	require.Error(t, err)
	assert.Equal(t, models.PipelineStatusFailed, store.pipelines["pipe-1"].Status)
}

func runningPipeline() *models.Pipeline {
	p := pendingPipeline()
	p.Status = models.PipelineStatusRunning
	p.SourceConnectorName = "source-pipe1"
	p.SinkConnectorName = "sink-pipe1"
	return p
}

func TestPauseAndResume(t *testing.T) {
	deps, store := baseDeps()
	store.pipelines["pipe-1"] = runningPipeline()
	o := New(deps)

	paused, err := o.Pause(context.Background(), "alice", "pipe-1")
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusPaused, paused.Status)

	resumed, err := o.Resume(context.Background(), "alice", "pipe-1")
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusRunning, resumed.Status)
}

func TestPauseFailsWhenNoConnectorPauses(t *testing.T) {
	deps, store := baseDeps()
	store.pipelines["pipe-1"] = runningPipeline()
	deps.Connect = &fakeConnect{pauseErr: errors.New("unreachable")}

	o := New(deps)
	_, err := o.Pause(context.Background(), "alice", "pipe-1")
	assert.Error(t, err)
}

func TestStopClearsConnectorNames(t *testing.T) {
	deps, store := baseDeps()
	store.pipelines["pipe-1"] = runningPipeline()
	o := New(deps)

	p, err := o.Stop(context.Background(), "alice", "pipe-1")
	require.NoError(t, err)
	assert.Equal(t, models.PipelineStatusStopped, p.Status)
	assert.Empty(t, p.SourceConnectorName)
	assert.Empty(t, p.SinkConnectorName)
}

func TestDeleteTearsDownTrackedResourcesAndMarksDeleted(t *testing.T) {
	deps, store := baseDeps()
	stopped := runningPipeline()
	stopped.Status = models.PipelineStatusStopped
	store.pipelines["pipe-1"] = stopped

	tracker := &fakeResources{resources: []models.TrackedResource{
		{ID: "r1", PipelineID: "pipe-1", Kind: models.ResourceSinkConnector, ExternalID: "sink-pipe1", Status: models.ResourceStatusActive},
		{ID: "r2", PipelineID: "pipe-1", Kind: models.ResourceKafkaTopic, ExternalID: "dataflow_pipe1.public.orders", Status: models.ResourceStatusActive},
	}}
	deps.Tracker = tracker

	o := New(deps)
	result, err := o.Delete(context.Background(), "alice", "pipe-1", DeleteOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.FailedResourceIDs)
	assert.Equal(t, models.PipelineStatusDeleted, store.pipelines["pipe-1"].Status)
	for _, r := range tracker.resources {
		assert.Equal(t, models.ResourceStatusDeleted, r.Status)
	}
}

func TestDeleteRetainsDestinationDataByDefault(t *testing.T) {
	deps, store := baseDeps()
	stopped := runningPipeline()
	stopped.Status = models.PipelineStatusStopped
	store.pipelines["pipe-1"] = stopped

	warehouse := &fakeWarehouse{teardownErr: errors.New("should not be called")}
	deps.Warehouse = warehouse
	deps.Tracker = &fakeResources{resources: []models.TrackedResource{
		{ID: "r1", PipelineID: "pipe-1", Kind: models.ResourceWarehouseTable, ExternalID: "orders", Status: models.ResourceStatusActive},
	}}

	o := New(deps)
	result, err := o.Delete(context.Background(), "alice", "pipe-1", DeleteOptions{DeleteDestinationData: false})
	require.NoError(t, err)
	assert.Empty(t, result.FailedResourceIDs)
}

func TestDeleteRecordsFailedResourcesWithoutFailingWholeOperation(t *testing.T) {
	deps, store := baseDeps()
	stopped := runningPipeline()
	stopped.Status = models.PipelineStatusStopped
	store.pipelines["pipe-1"] = stopped

	deps.Connect = &fakeConnect{deleteErr: errors.New("connect down")}
	deps.Tracker = &fakeResources{resources: []models.TrackedResource{
		{ID: "r1", PipelineID: "pipe-1", Kind: models.ResourceSinkConnector, ExternalID: "sink-pipe1", Status: models.ResourceStatusActive},
	}}

	o := New(deps)
	result, err := o.Delete(context.Background(), "alice", "pipe-1", DeleteOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"r1"}, result.FailedResourceIDs)
	assert.Equal(t, models.PipelineStatusDeleted, store.pipelines["pipe-1"].Status)
}
