package models

import "time"

// ResourceKind enumerates the externally-created artifact kinds the
// orchestrator provisions and the resource tracker must reclaim.
type ResourceKind string

const (
	ResourceKafkaTopic           ResourceKind = "kafka_topic"
	ResourceKsqlStream           ResourceKind = "ksqldb_stream"
	ResourceKsqlTable            ResourceKind = "ksqldb_table"
	ResourceSourceConnector      ResourceKind = "source_connector"
	ResourceSinkConnector        ResourceKind = "sink_connector"
	ResourceWarehouseTable       ResourceKind = "clickhouse_table"
	ResourceWarehouseDatabase    ResourceKind = "clickhouse_database"
	ResourceAlertRule            ResourceKind = "alert_rule"
	ResourceDebeziumSlot         ResourceKind = "debezium_slot"
	ResourceDebeziumPublication  ResourceKind = "debezium_publication"
)

// deletionOrder is the fixed total order resources are torn down in.
// Index position is the sort key: lower index deletes first.
var deletionOrder = []ResourceKind{
	ResourceSinkConnector,
	ResourceAlertRule,
	ResourceKsqlTable,
	ResourceKsqlStream,
	ResourceSourceConnector,
	ResourceKafkaTopic,
	ResourceWarehouseTable,
	ResourceWarehouseDatabase,
	ResourceDebeziumSlot,
	ResourceDebeziumPublication,
}

// DeletionRank returns the relative position of a resource kind in the
// fixed teardown order. Unknown kinds sort last.
func DeletionRank(kind ResourceKind) int {
	for i, k := range deletionOrder {
		if k == kind {
			return i
		}
	}
	return len(deletionOrder)
}

// ResourceStatus is the lifecycle state of one tracked resource.
type ResourceStatus string

const (
	ResourceStatusPending  ResourceStatus = "pending"
	ResourceStatusCreating ResourceStatus = "creating"
	ResourceStatusActive   ResourceStatus = "active"
	ResourceStatusFailed   ResourceStatus = "failed"
	ResourceStatusDeleting ResourceStatus = "deleting"
	ResourceStatusDeleted  ResourceStatus = "deleted"
	ResourceStatusOrphaned ResourceStatus = "orphaned"
)

// TrackedResource is a single ledger entry for an externally-created artifact.
type TrackedResource struct {
	ID         string
	PipelineID string
	Kind       ResourceKind
	ExternalID string
	Name       string
	Status     ResourceStatus
	Metadata   map[string]any
	DependsOn  []string
	Error      string

	CreatedAt time.Time
	DeletedAt *time.Time
}
