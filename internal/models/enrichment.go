package models

// JoinType is the stream-table join kind the Join Planner may emit.
type JoinType string

const (
	JoinLeft  JoinType = "LEFT"
	JoinInner JoinType = "INNER"
)

// LookupTable is one table joined into a source stream.
type LookupTable struct {
	Name      string
	Topic     string
	KeyColumn string
	Alias     string
	Columns   []Column
}

// JoinKey pairs a stream column with a lookup-table column through an alias.
type JoinKey struct {
	StreamColumn string
	TableColumn  string
	TableAlias   string
}

// EnrichmentStatus is the lifecycle state of a stream-table join.
type EnrichmentStatus string

const (
	EnrichmentPending EnrichmentStatus = "pending"
	EnrichmentActive  EnrichmentStatus = "active"
	EnrichmentFailed  EnrichmentStatus = "failed"
	EnrichmentStopped EnrichmentStatus = "stopped"
)

// Enrichment is a stream-table JOIN derived from a pipeline's source stream.
type Enrichment struct {
	ID         string
	PipelineID string

	SourceStream string
	SourceTopic  string

	LookupTables []LookupTable
	JoinType     JoinType
	JoinKeys     []JoinKey

	OutputColumns []string
	OutputStream  string
	OutputTopic   string

	ProcessorQueryID string
	Status           EnrichmentStatus
}
