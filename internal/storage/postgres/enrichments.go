package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// CreateEnrichment persists a stream-table join planned for a pipeline.
func (s *Store) CreateEnrichment(ctx context.Context, e *models.Enrichment) (string, error) {
	id := uuid.New()

	pipelineID, err := uuid.Parse(e.PipelineID)
	if err != nil {
		return "", fmt.Errorf("invalid pipeline id: %w", err)
	}

	lookupTablesJSON, err := marshalJSON(e.LookupTables)
	if err != nil {
		return "", err
	}
	joinKeysJSON, err := marshalJSON(e.JoinKeys)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO enrichments
			(id, pipeline_id, source_stream, source_topic, lookup_tables, join_type, join_keys,
			 output_columns, output_stream, output_topic, processor_query_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, pipelineID, e.SourceStream, e.SourceTopic, lookupTablesJSON, e.JoinType, joinKeysJSON,
		e.OutputColumns, e.OutputStream, e.OutputTopic, e.ProcessorQueryID, e.Status)
	if err != nil {
		return "", fmt.Errorf("insert enrichment: %w", err)
	}

	return id.String(), nil
}

// ListEnrichments returns every join configured for a pipeline.
func (s *Store) ListEnrichments(ctx context.Context, pipelineID string) ([]models.Enrichment, error) {
	pID, err := uuid.Parse(pipelineID)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline id: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, pipeline_id, source_stream, source_topic, lookup_tables, join_type, join_keys,
		       output_columns, output_stream, output_topic, processor_query_id, status
		FROM enrichments WHERE pipeline_id = $1
	`, pID)
	if err != nil {
		return nil, fmt.Errorf("list enrichments: %w", err)
	}
	defer rows.Close()

	var out []models.Enrichment
	for rows.Next() {
		var e models.Enrichment
		var idVal, pipelineIDVal uuid.UUID
		var lookupTablesJSON, joinKeysJSON []byte
		if err := rows.Scan(&idVal, &pipelineIDVal, &e.SourceStream, &e.SourceTopic, &lookupTablesJSON,
			&e.JoinType, &joinKeysJSON, &e.OutputColumns, &e.OutputStream, &e.OutputTopic,
			&e.ProcessorQueryID, &e.Status); err != nil {
			return nil, fmt.Errorf("scan enrichment: %w", err)
		}
		e.ID = idVal.String()
		e.PipelineID = pipelineIDVal.String()
		if err := unmarshalJSON(lookupTablesJSON, &e.LookupTables); err != nil {
			return nil, err
		}
		if err := unmarshalJSON(joinKeysJSON, &e.JoinKeys); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateEnrichmentStatus updates a join's lifecycle status.
func (s *Store) UpdateEnrichmentStatus(ctx context.Context, id string, status models.EnrichmentStatus) error {
	enrichmentID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid enrichment id: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `UPDATE enrichments SET status = $1 WHERE id = $2`, status, enrichmentID)
	if err != nil {
		return fmt.Errorf("update enrichment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
