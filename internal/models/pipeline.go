// Package models holds the persisted and in-memory entities shared across
// the control plane: pipelines, credentials, tracked resources, alerting
// configuration and the audit trail that ties them together.
package models

import (
	"strings"
	"time"
)

// PipelineHex derives the stable per-pipeline identifier used as topic
// prefix, replication-slot name, publication name, and connector-name
// suffix: the pipeline's UUID with its dash separators stripped. It is
// deterministic so recovery and the topic-sweep operator tool can
// reattach to a pipeline's resources without consulting any other state.
func PipelineHex(id string) string {
	return strings.ReplaceAll(id, "-", "")
}

// TopicPrefix is the Kafka topic prefix Debezium writes raw CDC topics
// under for a given pipeline, and the prefix the topic-sweep operator
// tool recognizes as pipeline-owned.
func TopicPrefix(pipelineID string) string {
	return "dataflow_" + PipelineHex(pipelineID)
}

// EnrichedTopicPrefix is the prefix used for a pipeline's enrichment
// (stream-table join) output topics.
func EnrichedTopicPrefix(pipelineID string) string {
	return "enriched_" + PipelineHex(pipelineID)
}

// PipelineStatus is the lifecycle state of a Pipeline.
type PipelineStatus string

const (
	PipelineStatusPending PipelineStatus = "pending"
	PipelineStatusRunning PipelineStatus = "running"
	PipelineStatusPaused  PipelineStatus = "paused"
	PipelineStatusStopped PipelineStatus = "stopped"
	PipelineStatusFailed  PipelineStatus = "failed"
	PipelineStatusDeleted PipelineStatus = "deleted"
)

// SinkKind identifies the class of destination warehouse a pipeline writes to.
type SinkKind string

const (
	SinkKindWarehouse SinkKind = "warehouse"
)

// TableRef names a single source table selected into a pipeline.
type TableRef struct {
	Schema string `json:"schema"`
	Table  string `json:"table"`
}

func (t TableRef) String() string {
	return t.Schema + "." + t.Table
}

// FilterConfig is the structured predicate produced by the Filter Planner
// (see internal/filter) and carried on a Pipeline specification.
type FilterConfig struct {
	Column         string   `json:"column"`
	Operator       string   `json:"operator"`
	Values         []string `json:"values"`
	SQLWhere       string   `json:"sql_where"`
	ExprEquivalent string   `json:"expr_equivalent"`
	Description    string   `json:"description"`
	Confidence     float64  `json:"confidence"`
}

// Pipeline is the central aggregate: a running (or not-yet-running)
// CDC dataflow from one credential's tables to a sink.
type Pipeline struct {
	ID         string
	Owner      string
	Name       string

	CredentialID string
	Tables       []TableRef
	Filter       *FilterConfig

	TransformTemplateID string

	SinkKind   SinkKind
	SinkConfig map[string]any

	SourceConnectorName string
	SinkConnectorName   string

	Status          PipelineStatus
	LastHealthCheck *time.Time
	ErrorMessage    string
	CachedMetrics   map[string]any

	CreatedAt time.Time
	StartedAt *time.Time
	StoppedAt *time.Time
	DeletedAt *time.Time
}

// IsLive reports whether the pipeline is in a non-terminal, visible state.
func (p *Pipeline) IsLive() bool {
	return p.Status != PipelineStatusDeleted
}

// PipelineEventKind enumerates the kinds of audit events appended to a pipeline.
type PipelineEventKind string

const (
	EventCreated PipelineEventKind = "created"
	EventStarted PipelineEventKind = "started"
	EventPaused  PipelineEventKind = "paused"
	EventResumed PipelineEventKind = "resumed"
	EventStopped PipelineEventKind = "stopped"
	EventFailed  PipelineEventKind = "failed"
	EventError   PipelineEventKind = "error"
	EventDeleted PipelineEventKind = "deleted"
)

// PipelineEvent is an append-only audit record of a pipeline state transition
// or notable occurrence.
type PipelineEvent struct {
	ID         string
	PipelineID string
	Kind       PipelineEventKind
	Message    string
	Details    map[string]any
	CreatedAt  time.Time
}
