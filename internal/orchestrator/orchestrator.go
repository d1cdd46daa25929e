// Package orchestrator implements the Pipeline Orchestrator: the
// central create/start/pause/resume/stop/delete state machine. It wires
// together the Module Registry, Credential Vault, Warehouse Adapter,
// Resource Tracker, Anomaly Engine DDL emission, and the Kafka
// Connect/ksqlDB/broker clients to stand up — and later reclaim — one
// pipeline's external footprint.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gojson "github.com/goccy/go-json"
	"github.com/spf13/cast"

	"github.com/bkvaiude/dataflow-ctl/internal/anomaly"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/connect"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/streamproc"
	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
	"github.com/bkvaiude/dataflow-ctl/internal/cost"
	"github.com/bkvaiude/dataflow-ctl/internal/join"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/registry"
	"github.com/bkvaiude/dataflow-ctl/internal/status"
)

// Store is the pipeline persistence dependency the orchestrator drives.
type Store interface {
	GetPipeline(ctx context.Context, id string) (*models.Pipeline, error)
	CreatePipeline(ctx context.Context, p *models.Pipeline) (string, error)
	UpdatePipelineStatus(ctx context.Context, id string, status models.PipelineStatus, event models.PipelineEventKind, message string) error
	UpdatePipelineConnectorNames(ctx context.Context, id string, sourceConnectorName, sinkConnectorName string) error
	RecordPipelineError(ctx context.Context, id string, message string) error
}

// Credentials resolves ownership and plaintext secrets for a vaulted credential.
type Credentials interface {
	GetCredential(ctx context.Context, id string) (*models.Credential, error)
	Open(ctx context.Context, owner, id string) (*models.CredentialSecret, error)
}

// Registry resolves source/sink/transform descriptors. *registry.Registry
// satisfies it directly, and also satisfies anomaly.TransformLookup.
type Registry interface {
	Source(name string) (models.SourceDescriptor, error)
	Sink(name string) (models.SinkDescriptor, error)
	Transform(name string) (models.TransformDescriptor, error)
}

// Templates resolves a saved transform template (the join/filter/aggregation
// steps and anomaly rules a pipeline was created from).
type Templates interface {
	GetTransformTemplate(ctx context.Context, id string) (*models.TransformTemplate, error)
}

// ConnectClient manages Kafka Connect source/sink connectors.
type ConnectClient interface {
	CreateConnector(ctx context.Context, cfg connect.ConnectorConfig) error
	DeleteConnector(ctx context.Context, name string) error
	Pause(ctx context.Context, name string) error
	Resume(ctx context.Context, name string) error
}

// StreamProcessor submits ksqlDB DDL/DML for base streams, filters, joins.
type StreamProcessor interface {
	ExecStatement(ctx context.Context, statement string) ([]streamproc.StatementResult, error)
	ExecStatementWithProperties(ctx context.Context, statement string, props map[string]any) ([]streamproc.StatementResult, error)
}

// Warehouse provisions and tears down sink database/table artifacts.
type Warehouse interface {
	CheckSchemaCompatible(ctx context.Context, cfg connwarehouse.Config, database, table string) error
	Provision(ctx context.Context, cfg connwarehouse.Config, database, table string, source *models.DiscoveredTable) error
	Teardown(ctx context.Context, cfg connwarehouse.Config, database, table string, dropDatabase bool) error
	DropDatabase(ctx context.Context, cfg connwarehouse.Config, database string) error
}

// Topics creates and deletes the Kafka topics backing ksqlDB streams/tables.
type Topics interface {
	CreateTopic(ctx context.Context, name string, partitions int32, replicationFactor int16) error
	DeleteTopic(ctx context.Context, name string) error
}

// Resources is the Resource Tracker dependency, narrowed to what the
// orchestrator needs to record and reclaim a pipeline's artifacts.
type Resources interface {
	Track(ctx context.Context, pipelineID string, kind models.ResourceKind, externalID, name string, metadata map[string]any, dependsOn []string) (string, error)
	Mark(ctx context.Context, resourceID string, status models.ResourceStatus, errMsg string) error
	DeletionOrder(ctx context.Context, pipelineID string) ([]models.TrackedResource, error)
	CostRelevant(ctx context.Context, pipelineID string) ([]models.TrackedResource, error)
}

// CostEstimator prices a pipeline's footprint, used at delete time to echo
// back the daily cost the teardown reclaims.
type CostEstimator interface {
	Estimate(in cost.Input) (models.CostEstimate, error)
}

// Discovery supplies the cached, introspected column shape of a pipeline's
// source tables, needed to provision a matching sink table and base stream.
type Discovery interface {
	Cached(ctx context.Context, credentialID string) ([]models.DiscoveredTable, error)
}

// SchemaRegistry resolves whether a topic's value subject already carries
// a registered schema, so base-stream DDL can reference that schema id
// instead of redeclaring columns (spec §6, §9 "manual table-name case
// handling" note's sibling concern of not re-registering a schema on
// pipeline recreation).
type SchemaRegistry interface {
	LatestSchemaID(ctx context.Context, subject string) (int, bool, error)
}

const (
	defaultTopicPartitions       int32 = 6
	defaultTopicReplicationFactor int16 = 3
)

// Orchestrator is the Pipeline Orchestrator service.
type Orchestrator struct {
	store     Store
	creds     Credentials
	registry  Registry
	templates Templates
	connect   ConnectClient
	proc      StreamProcessor
	warehouse Warehouse
	topics    Topics
	tracker   Resources
	costEst   CostEstimator
	discovery Discovery
	schemaReg SchemaRegistry

	schemaRegistryURL string

	log   *slog.Logger
	locks sync.Map // pipelineID -> *sync.Mutex
}

// Deps bundles every dependency New needs; fields are all required except
// where noted.
type Deps struct {
	Store             Store
	Credentials       Credentials
	Registry          Registry
	Templates         Templates
	Connect           ConnectClient
	StreamProcessor   StreamProcessor
	Warehouse         Warehouse
	Topics            Topics
	Tracker           Resources
	CostEstimator     CostEstimator
	Discovery         Discovery
	SchemaRegistry    SchemaRegistry
	SchemaRegistryURL string
	Log               *slog.Logger
}

// New constructs an Orchestrator.
func New(d Deps) *Orchestrator {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Orchestrator{
		store: d.Store, creds: d.Credentials, registry: d.Registry, templates: d.Templates,
		connect: d.Connect, proc: d.StreamProcessor, warehouse: d.Warehouse, topics: d.Topics,
		tracker: d.Tracker, costEst: d.CostEstimator, discovery: d.Discovery, schemaReg: d.SchemaRegistry,
		schemaRegistryURL: d.SchemaRegistryURL, log: d.Log,
	}
}

func (o *Orchestrator) lockFor(pipelineID string) *sync.Mutex {
	v, _ := o.locks.LoadOrStore(pipelineID, &sync.Mutex{})
	return v.(*sync.Mutex)
}

// pipelineHex derives the stable per-pipeline identifier used as topic
// prefix, slot name, publication name, and connector name suffix: the
// pipeline's UUID with its dash separators stripped.
func pipelineHex(id string) string {
	return models.PipelineHex(id)
}

// baseStreamDDL renders the CREATE STREAM statement for a raw source
// topic. When a SchemaRegistry dependency is configured and the topic's
// value subject already carries a registered schema, the DDL references
// that schema id instead of redeclaring columns, so recreating a
// pipeline against the same topic prefix does not re-register a schema
// (spec §6/§9).
func (o *Orchestrator) baseStreamDDL(ctx context.Context, name, topic string, columns []models.Column) string {
	if o.schemaReg != nil {
		if id, ok, err := o.schemaReg.LatestSchemaID(ctx, topic+"-value"); err != nil {
			o.log.WarnContext(ctx, "schema registry lookup failed, falling back to declared columns",
				slog.String("topic", topic), slog.String("error", err.Error()))
		} else if ok {
			return join.BaseStreamDDLFromSchemaID(name, topic, id)
		}
	}
	return join.BaseStreamDDL(join.StreamSchema{Name: name, Topic: topic, Columns: columns})
}

// CreateInput is the Create operation's input.
type CreateInput struct {
	Owner               string
	Name                string
	CredentialID        string
	Tables              []models.TableRef
	Filter              *models.FilterConfig
	TransformTemplateID string
	SinkKind            models.SinkKind
	SinkConfig          map[string]any
}

// Create validates the credential belongs to the caller and persists a new
// pipeline in pending, with no external side effects.
func (o *Orchestrator) Create(ctx context.Context, in CreateInput) (*models.Pipeline, error) {
	cred, err := o.creds.GetCredential(ctx, in.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	if cred.Owner != in.Owner {
		return nil, models.ErrNotFound
	}

	p := &models.Pipeline{
		Owner:               in.Owner,
		Name:                in.Name,
		CredentialID:        in.CredentialID,
		Tables:              in.Tables,
		Filter:              in.Filter,
		TransformTemplateID: in.TransformTemplateID,
		SinkKind:            in.SinkKind,
		SinkConfig:          in.SinkConfig,
		Status:              models.PipelineStatusPending,
	}

	id, err := o.store.CreatePipeline(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create pipeline: %w", err)
	}
	p.ID = id
	return p, nil
}

// Start provisions (in order) the source connector, any filter/enrichment
// streams, and the sink table plus sink connector, then marks the pipeline
// running. A failure at any step leaves already-created resources tracked
// for Delete to reclaim.
func (o *Orchestrator) Start(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	lock := o.lockFor(pipelineID)
	lock.Lock()
	defer lock.Unlock()

	p, err := o.loadOwned(ctx, owner, pipelineID)
	if err != nil {
		return nil, err
	}
	if err := status.ValidateStatusTransition(p.Status, models.PipelineStatusRunning); err != nil {
		return nil, err
	}

	cred, err := o.creds.GetCredential(ctx, p.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("resolve credential: %w", err)
	}
	secret, err := o.creds.Open(ctx, owner, p.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("open credential: %w", err)
	}
	sourceDesc, err := o.registry.Source(cred.SourceKind)
	if err != nil {
		return nil, fmt.Errorf("resolve source descriptor: %w", err)
	}

	hexID := pipelineHex(p.ID)
	shortHex := hexID
	if len(shortHex) > 8 {
		shortHex = shortHex[:8]
	}

	tableList := make([]string, len(p.Tables))
	for i, t := range p.Tables {
		tableList[i] = t.String()
	}

	sourceConnectorName := "source-" + hexID
	renderCtx := map[string]any{
		"host": secret.Host, "port": secret.Port, "database": secret.Database,
		"username": secret.Username, "password": secret.Password,
		"pipeline_hex": hexID, "pipeline_hex_short": shortHex,
		"table_include_list": strings.Join(tableList, ","),
		"schema_registry_url": o.schemaRegistryURL,
	}

	sourceConfig, err := registry.RenderMap(sourceDesc.ConnectorTemplate, renderCtx)
	if err != nil {
		return nil, o.fail(ctx, p, fmt.Errorf("render source connector config: %w", err))
	}
	if err := o.connect.CreateConnector(ctx, connect.ConnectorConfig{Name: sourceConnectorName, Config: sourceConfig}); err != nil {
		return nil, o.fail(ctx, p, fmt.Errorf("create source connector: %w", err))
	}
	if err := o.trackActive(ctx, p.ID, models.ResourceSourceConnector, sourceConnectorName, nil, nil); err != nil {
		o.log.WarnContext(ctx, "failed to track source connector resource", slog.String("error", err.Error()))
	}

	discovered, _ := o.discovery.Cached(ctx, p.CredentialID)
	columnsByTable := make(map[string][]models.Column, len(discovered))
	for _, d := range discovered {
		columnsByTable[models.TableRef{Schema: d.Schema, Table: d.Table}.String()] = d.Columns
	}

	sinkTopics := make([]string, 0, len(p.Tables))

	for _, t := range p.Tables {
		sourceTopic := fmt.Sprintf("dataflow_%s.%s", hexID, t.String())
		baseStreamName := fmt.Sprintf("s%s_%s_%s", hexID, t.Schema, t.Table)

		baseDDL := o.baseStreamDDL(ctx, baseStreamName, sourceTopic, columnsByTable[t.String()])
		if _, err := o.proc.ExecStatement(ctx, baseDDL); err != nil {
			return nil, o.fail(ctx, p, fmt.Errorf("create base stream for %s: %w", t.String(), err))
		}
		streamID, _ := o.trackActive(ctx, p.ID, models.ResourceKsqlStream, baseStreamName, nil, nil)

		if p.Filter == nil {
			sinkTopics = append(sinkTopics, sourceTopic)
			continue
		}

		filteredName := baseStreamName + "_filtered"
		filteredTopic := baseStreamName + "-filtered"
		if err := o.topics.CreateTopic(ctx, filteredTopic, defaultTopicPartitions, defaultTopicReplicationFactor); err != nil {
			return nil, o.fail(ctx, p, fmt.Errorf("create filtered topic for %s: %w", t.String(), err))
		}
		if _, err := o.trackActive(ctx, p.ID, models.ResourceKafkaTopic, filteredTopic, nil, nil); err != nil {
			o.log.WarnContext(ctx, "failed to track filtered topic resource", slog.String("error", err.Error()))
		}
		ddl, props, err := anomaly.EmitFilterStreamDDL(o.registry, baseStreamName, filteredName, filteredTopic, p.Filter.SQLWhere)
		if err != nil {
			return nil, o.fail(ctx, p, fmt.Errorf("render filter stream ddl for %s: %w", t.String(), err))
		}
		streamsProps := make(map[string]any, len(props))
		for k, v := range props {
			streamsProps[k] = v
		}
		if _, err := o.proc.ExecStatementWithProperties(ctx, ddl, streamsProps); err != nil {
			return nil, o.fail(ctx, p, fmt.Errorf("create filter stream for %s: %w", t.String(), err))
		}
		if _, err := o.trackActive(ctx, p.ID, models.ResourceKsqlStream, filteredName, nil, []string{streamID}); err != nil {
			o.log.WarnContext(ctx, "failed to track filter stream resource", slog.String("error", err.Error()))
		}
		sinkTopics = append(sinkTopics, filteredTopic)
	}

	if p.TransformTemplateID != "" {
		joinTopics, err := o.applyJoinSteps(ctx, p, hexID)
		if err != nil {
			return nil, o.fail(ctx, p, err)
		}
		if len(joinTopics) > 0 {
			sinkTopics = joinTopics
		}
	}

	sinkDesc, err := o.registry.Sink(string(p.SinkKind))
	if err != nil {
		return nil, o.fail(ctx, p, fmt.Errorf("resolve sink descriptor: %w", err))
	}
	sinkCfg := warehouseConfig(p.SinkConfig)
	database := cast.ToString(p.SinkConfig["database"])

	for _, t := range p.Tables {
		if err := o.warehouse.CheckSchemaCompatible(ctx, sinkCfg, database, t.Table); err != nil {
			continue // table already exists; spec requires provisioning only "if needed"
		}
		var source *models.DiscoveredTable
		for i := range discovered {
			if discovered[i].Schema == t.Schema && discovered[i].Table == t.Table {
				source = &discovered[i]
				break
			}
		}
		if source == nil {
			continue
		}
		if err := o.warehouse.Provision(ctx, sinkCfg, database, t.Table, source); err != nil {
			return nil, o.fail(ctx, p, fmt.Errorf("provision sink table %s: %w", t.Table, err))
		}
		if _, err := o.trackActive(ctx, p.ID, models.ResourceWarehouseTable, database+"."+t.Table, nil, nil); err != nil {
			o.log.WarnContext(ctx, "failed to track sink table resource", slog.String("error", err.Error()))
		}
	}
	if _, err := o.trackActive(ctx, p.ID, models.ResourceWarehouseDatabase, database, nil, nil); err != nil {
		o.log.WarnContext(ctx, "failed to track sink database resource", slog.String("error", err.Error()))
	}

	sinkConnectorName := "sink-" + hexID
	sinkRenderCtx := map[string]any{
		"host": sinkCfg.Host, "port": sinkCfg.Port, "database": sinkCfg.Database,
		"username": sinkCfg.Username, "password": sinkCfg.Password, "secure": sinkCfg.Secure,
		"topics": strings.Join(sinkTopics, ","), "schema_registry_url": o.schemaRegistryURL,
	}
	sinkRendered, err := registry.RenderMap(sinkDesc.ConnectorTemplate, sinkRenderCtx)
	if err != nil {
		return nil, o.fail(ctx, p, fmt.Errorf("render sink connector config: %w", err))
	}
	if err := o.connect.CreateConnector(ctx, connect.ConnectorConfig{Name: sinkConnectorName, Config: sinkRendered}); err != nil {
		return nil, o.fail(ctx, p, fmt.Errorf("create sink connector: %w", err))
	}
	if _, err := o.trackActive(ctx, p.ID, models.ResourceSinkConnector, sinkConnectorName, nil, nil); err != nil {
		o.log.WarnContext(ctx, "failed to track sink connector resource", slog.String("error", err.Error()))
	}

	if err := o.store.UpdatePipelineConnectorNames(ctx, p.ID, sourceConnectorName, sinkConnectorName); err != nil {
		return nil, fmt.Errorf("record connector names: %w", err)
	}
	if err := o.store.UpdatePipelineStatus(ctx, p.ID, models.PipelineStatusRunning, models.EventStarted, "pipeline started"); err != nil {
		return nil, fmt.Errorf("mark pipeline running: %w", err)
	}

	return o.store.GetPipeline(ctx, p.ID)
}

// applyJoinSteps decodes any join transform steps from the pipeline's saved
// template, validates and submits their DDL, and returns the output topics
// that should feed the sink connector in place of the raw per-table topics.
func (o *Orchestrator) applyJoinSteps(ctx context.Context, p *models.Pipeline, hexID string) ([]string, error) {
	tmpl, err := o.templates.GetTransformTemplate(ctx, p.TransformTemplateID)
	if err != nil {
		return nil, fmt.Errorf("resolve transform template: %w", err)
	}

	var outputTopics []string
	for _, step := range tmpl.Steps {
		if step.Kind != models.TransformJoin {
			continue
		}
		plan, err := decodeJoinPlan(step.Config)
		if err != nil {
			return nil, fmt.Errorf("decode join step: %w", err)
		}
		result, err := join.Build(plan)
		if err != nil {
			return nil, fmt.Errorf("validate join plan: %w", err)
		}

		if err := o.topics.CreateTopic(ctx, plan.OutputTopic, defaultTopicPartitions, defaultTopicReplicationFactor); err != nil {
			return nil, fmt.Errorf("create join output topic: %w", err)
		}
		if _, err := o.trackActive(ctx, p.ID, models.ResourceKafkaTopic, plan.OutputTopic, nil, nil); err != nil {
			o.log.WarnContext(ctx, "failed to track join output topic resource", slog.String("error", err.Error()))
		}

		if _, err := o.proc.ExecStatement(ctx, result.StreamDDL); err != nil {
			return nil, fmt.Errorf("create join source stream: %w", err)
		}
		for _, tableDDL := range result.TableDDL {
			if _, err := o.proc.ExecStatement(ctx, tableDDL); err != nil {
				return nil, fmt.Errorf("create join lookup table: %w", err)
			}
		}
		for _, t := range plan.Tables {
			if _, err := o.trackActive(ctx, p.ID, models.ResourceKsqlTable, t.Name, nil, nil); err != nil {
				o.log.WarnContext(ctx, "failed to track join lookup table resource", slog.String("error", err.Error()))
			}
		}
		if _, err := o.proc.ExecStatement(ctx, result.JoinDDL); err != nil {
			return nil, fmt.Errorf("create join output stream: %w", err)
		}
		if _, err := o.trackActive(ctx, p.ID, models.ResourceKsqlStream, plan.OutputStream, nil, nil); err != nil {
			o.log.WarnContext(ctx, "failed to track join output stream resource", slog.String("error", err.Error()))
		}
		outputTopics = append(outputTopics, plan.OutputTopic)

		for _, w := range result.Warnings {
			o.log.InfoContext(ctx, "join plan warning", slog.String("pipeline_id", p.ID), slog.String("warning", w))
		}
	}
	return outputTopics, nil
}

// decodeJoinPlan round-trips a step's freeform config map into a typed join
// plan. join.Plan carries no struct tags, so this relies on go-json's
// default case-insensitive field matching against the config's keys.
func decodeJoinPlan(config map[string]any) (join.Plan, error) {
	raw, err := gojson.Marshal(config)
	if err != nil {
		return join.Plan{}, fmt.Errorf("marshal join step config: %w", err)
	}
	var plan join.Plan
	if err := gojson.Unmarshal(raw, &plan); err != nil {
		return join.Plan{}, fmt.Errorf("unmarshal join step config: %w", err)
	}
	return plan, nil
}

// Pause issues a pause to every active connector resource; the pipeline
// transitions if at least one pause succeeded, otherwise the operation fails.
func (o *Orchestrator) Pause(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	lock := o.lockFor(pipelineID)
	lock.Lock()
	defer lock.Unlock()

	p, err := o.loadOwned(ctx, owner, pipelineID)
	if err != nil {
		return nil, err
	}
	if err := status.ValidateStatusTransition(p.Status, models.PipelineStatusPaused); err != nil {
		return nil, err
	}

	successes := o.forEachConnector(ctx, p, o.connect.Pause)
	if successes == 0 {
		return nil, fmt.Errorf("pause pipeline %s: no connector paused successfully", p.ID)
	}
	if err := o.store.UpdatePipelineStatus(ctx, p.ID, models.PipelineStatusPaused, models.EventPaused, "pipeline paused"); err != nil {
		return nil, fmt.Errorf("mark pipeline paused: %w", err)
	}
	return o.store.GetPipeline(ctx, p.ID)
}

// Resume is Pause's symmetric counterpart.
func (o *Orchestrator) Resume(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	lock := o.lockFor(pipelineID)
	lock.Lock()
	defer lock.Unlock()

	p, err := o.loadOwned(ctx, owner, pipelineID)
	if err != nil {
		return nil, err
	}
	if err := status.ValidateStatusTransition(p.Status, models.PipelineStatusRunning); err != nil {
		return nil, err
	}

	successes := o.forEachConnector(ctx, p, o.connect.Resume)
	if successes == 0 {
		return nil, fmt.Errorf("resume pipeline %s: no connector resumed successfully", p.ID)
	}
	if err := o.store.UpdatePipelineStatus(ctx, p.ID, models.PipelineStatusRunning, models.EventResumed, "pipeline resumed"); err != nil {
		return nil, fmt.Errorf("mark pipeline running: %w", err)
	}
	return o.store.GetPipeline(ctx, p.ID)
}

func (o *Orchestrator) forEachConnector(ctx context.Context, p *models.Pipeline, action func(context.Context, string) error) int {
	successes := 0
	for _, name := range []string{p.SourceConnectorName, p.SinkConnectorName} {
		if name == "" {
			continue
		}
		if err := action(ctx, name); err != nil {
			o.log.WarnContext(ctx, "connector action failed", slog.String("connector", name), slog.String("error", err.Error()))
			continue
		}
		successes++
	}
	return successes
}

// Stop deletes both connectors (errors logged, not fatal) and marks the
// pipeline stopped.
func (o *Orchestrator) Stop(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	lock := o.lockFor(pipelineID)
	lock.Lock()
	defer lock.Unlock()

	p, err := o.loadOwned(ctx, owner, pipelineID)
	if err != nil {
		return nil, err
	}
	if err := status.ValidateStatusTransition(p.Status, models.PipelineStatusStopped); err != nil {
		return nil, err
	}

	for _, name := range []string{p.SourceConnectorName, p.SinkConnectorName} {
		if name == "" {
			continue
		}
		if err := o.connect.DeleteConnector(ctx, name); err != nil {
			o.log.WarnContext(ctx, "failed to delete connector on stop", slog.String("connector", name), slog.String("error", err.Error()))
		}
	}

	if err := o.store.UpdatePipelineConnectorNames(ctx, p.ID, "", ""); err != nil {
		return nil, fmt.Errorf("clear connector names: %w", err)
	}
	if err := o.store.UpdatePipelineStatus(ctx, p.ID, models.PipelineStatusStopped, models.EventStopped, "pipeline stopped"); err != nil {
		return nil, fmt.Errorf("mark pipeline stopped: %w", err)
	}
	return o.store.GetPipeline(ctx, p.ID)
}

// DeleteOptions controls Delete's teardown scope.
type DeleteOptions struct {
	// DeleteDestinationData, when set, also drops the sink table/database.
	// The default retains destination data.
	DeleteDestinationData bool
}

// DeleteResult reports a teardown's outcome.
type DeleteResult struct {
	EstimatedDailySavings float64
	FailedResourceIDs     []string
}

// Delete tears down a pipeline's resources in fixed kind order, soft-deletes
// the pipeline row, and reports estimated daily cost savings. A resource
// that fails to delete is left tracked so operators can retry.
func (o *Orchestrator) Delete(ctx context.Context, owner, pipelineID string, opts DeleteOptions) (DeleteResult, error) {
	lock := o.lockFor(pipelineID)
	lock.Lock()
	defer lock.Unlock()

	p, err := o.loadOwned(ctx, owner, pipelineID)
	if err != nil {
		return DeleteResult{}, err
	}
	if err := status.ValidateStatusTransition(p.Status, models.PipelineStatusDeleted); err != nil {
		return DeleteResult{}, err
	}

	var savings float64
	if relevant, err := o.tracker.CostRelevant(ctx, p.ID); err == nil && len(relevant) > 0 {
		if estimate, err := o.costEst.Estimate(cost.Input{
			RowCountEstimate: cast.ToInt64(p.CachedMetrics["row_count_estimate"]),
			ColumnCount:      cast.ToInt(p.CachedMetrics["column_count"]),
			Assumptions:      models.CostAssumptions{SinkKind: string(p.SinkKind)},
		}); err == nil {
			savings = estimate.DailyTotal
		}
	}

	ordered, err := o.tracker.DeletionOrder(ctx, p.ID)
	if err != nil {
		return DeleteResult{}, fmt.Errorf("list deletion order: %w", err)
	}

	var failed []string
	database := cast.ToString(p.SinkConfig["database"])
	sinkCfg := warehouseConfig(p.SinkConfig)

	for _, r := range ordered {
		if !opts.DeleteDestinationData && (r.Kind == models.ResourceWarehouseTable || r.Kind == models.ResourceWarehouseDatabase) {
			// Retained destination data is left in place but no longer
			// counts as an active resource of the deleted pipeline.
			if markErr := o.tracker.Mark(ctx, r.ID, models.ResourceStatusOrphaned, "destination data retained"); markErr != nil {
				o.log.WarnContext(ctx, "failed to record retained destination resource", slog.String("error", markErr.Error()))
			}
			continue
		}
		if err := o.deleteResource(ctx, r, sinkCfg, database); err != nil {
			failed = append(failed, r.ID)
			if markErr := o.tracker.Mark(ctx, r.ID, models.ResourceStatusFailed, err.Error()); markErr != nil {
				o.log.WarnContext(ctx, "failed to record resource deletion failure", slog.String("error", markErr.Error()))
			}
			continue
		}
		if markErr := o.tracker.Mark(ctx, r.ID, models.ResourceStatusDeleted, ""); markErr != nil {
			o.log.WarnContext(ctx, "failed to record resource deletion", slog.String("error", markErr.Error()))
		}
	}

	if err := o.store.UpdatePipelineConnectorNames(ctx, p.ID, "", ""); err != nil {
		return DeleteResult{}, fmt.Errorf("clear connector names: %w", err)
	}
	if err := o.store.UpdatePipelineStatus(ctx, p.ID, models.PipelineStatusDeleted, models.EventDeleted, "pipeline deleted"); err != nil {
		return DeleteResult{}, fmt.Errorf("mark pipeline deleted: %w", err)
	}

	return DeleteResult{EstimatedDailySavings: savings, FailedResourceIDs: failed}, nil
}

func (o *Orchestrator) deleteResource(ctx context.Context, r models.TrackedResource, sinkCfg connwarehouse.Config, database string) error {
	switch r.Kind {
	case models.ResourceSourceConnector, models.ResourceSinkConnector:
		return o.connect.DeleteConnector(ctx, r.ExternalID)
	case models.ResourceKafkaTopic:
		return o.topics.DeleteTopic(ctx, r.ExternalID)
	case models.ResourceKsqlStream:
		_, err := o.proc.ExecStatement(ctx, fmt.Sprintf("DROP STREAM IF EXISTS %s;", connwarehouse.QuoteIdent(r.ExternalID)))
		return err
	case models.ResourceKsqlTable:
		_, err := o.proc.ExecStatement(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s;", connwarehouse.QuoteIdent(r.ExternalID)))
		return err
	case models.ResourceWarehouseTable:
		return o.warehouse.Teardown(ctx, sinkCfg, database, r.ExternalID, false)
	case models.ResourceWarehouseDatabase:
		return o.warehouse.DropDatabase(ctx, sinkCfg, database)
	case models.ResourceDebeziumSlot, models.ResourceDebeziumPublication, models.ResourceAlertRule:
		// The Debezium connector config sets slot.drop.on.stop, which
		// reclaims the replication slot/publication itself once its
		// connector is deleted; alert rules carry no external footprint.
		return nil
	default:
		return nil
	}
}

func (o *Orchestrator) loadOwned(ctx context.Context, owner, pipelineID string) (*models.Pipeline, error) {
	p, err := o.store.GetPipeline(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("load pipeline: %w", err)
	}
	if p.Owner != owner {
		return nil, models.ErrNotFound
	}
	return p, nil
}

func (o *Orchestrator) trackActive(ctx context.Context, pipelineID string, kind models.ResourceKind, externalID string, metadata map[string]any, dependsOn []string) (string, error) {
	id, err := o.tracker.Track(ctx, pipelineID, kind, externalID, externalID, metadata, dependsOn)
	if err != nil {
		return "", err
	}
	if err := o.tracker.Mark(ctx, id, models.ResourceStatusActive, ""); err != nil {
		return id, err
	}
	return id, nil
}

// fail records a start failure (status + error message) and returns the
// original error so the caller can propagate it unwrapped-once.
func (o *Orchestrator) fail(ctx context.Context, p *models.Pipeline, cause error) error {
	if err := o.store.UpdatePipelineStatus(ctx, p.ID, models.PipelineStatusFailed, models.EventFailed, cause.Error()); err != nil {
		o.log.ErrorContext(ctx, "failed to record pipeline failure", slog.String("pipeline_id", p.ID), slog.String("error", err.Error()))
	}
	return cause
}

func warehouseConfig(sinkConfig map[string]any) connwarehouse.Config {
	return connwarehouse.Config{
		Host:     cast.ToString(sinkConfig["host"]),
		Port:     cast.ToString(sinkConfig["port"]),
		Username: cast.ToString(sinkConfig["username"]),
		Password: cast.ToString(sinkConfig["password"]),
		Database: cast.ToString(sinkConfig["database"]),
		Secure:   cast.ToBool(sinkConfig["secure"]),
	}
}
