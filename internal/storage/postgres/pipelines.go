package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// CreatePipeline inserts a pipeline row together with its "created" audit
// event in a single transaction.
func (s *Store) CreatePipeline(ctx context.Context, p *models.Pipeline) (string, error) {
	id := uuid.New()

	tablesJSON, err := marshalJSON(p.Tables)
	if err != nil {
		return "", err
	}
	var filterJSON []byte
	if p.Filter != nil {
		if filterJSON, err = marshalJSON(p.Filter); err != nil {
			return "", err
		}
	}
	sinkConfigJSON, err := marshalJSON(p.SinkConfig)
	if err != nil {
		return "", err
	}

	credID, err := uuid.Parse(p.CredentialID)
	if err != nil {
		return "", fmt.Errorf("invalid credential id: %w", err)
	}

	var templateID *uuid.UUID
	if p.TransformTemplateID != "" {
		parsed, err := uuid.Parse(p.TransformTemplateID)
		if err != nil {
			return "", fmt.Errorf("invalid transform template id: %w", err)
		}
		templateID = &parsed
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO pipelines
			(id, owner, name, credential_id, tables, filter, transform_template_id, sink_kind, sink_config,
			 source_connector_name, sink_connector_name, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, p.Owner, p.Name, credID, tablesJSON, filterJSON, templateID, p.SinkKind, sinkConfigJSON,
		p.SourceConnectorName, p.SinkConnectorName, models.PipelineStatusPending)
	if err != nil {
		return "", fmt.Errorf("insert pipeline: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO pipeline_events (id, pipeline_id, kind, message) VALUES ($1, $2, $3, $4)
	`, uuid.New(), id, models.EventCreated, "pipeline created"); err != nil {
		return "", fmt.Errorf("insert pipeline created event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("commit tx: %w", err)
	}

	return id.String(), nil
}

// GetPipeline loads one pipeline by ID.
func (s *Store) GetPipeline(ctx context.Context, id string) (*models.Pipeline, error) {
	pipelineID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline id: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, name, credential_id, tables, filter, transform_template_id, sink_kind, sink_config,
		       source_connector_name, sink_connector_name, status, last_health_check, error_message, cached_metrics,
		       created_at, started_at, stopped_at, deleted_at
		FROM pipelines WHERE id = $1
	`, pipelineID)

	p, err := scanPipeline(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get pipeline: %w", err)
	}
	return p, nil
}

// ListPipelines returns all non-deleted pipelines owned by owner.
func (s *Store) ListPipelines(ctx context.Context, owner string) ([]models.Pipeline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, name, credential_id, tables, filter, transform_template_id, sink_kind, sink_config,
		       source_connector_name, sink_connector_name, status, last_health_check, error_message, cached_metrics,
		       created_at, started_at, stopped_at, deleted_at
		FROM pipelines WHERE owner = $1 AND status != $2 ORDER BY created_at DESC
	`, owner, models.PipelineStatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("list pipelines: %w", err)
	}
	defer rows.Close()

	var out []models.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListPipelinesByStatus returns every pipeline (across all owners) in the
// given status, used by the Monitor Loop to find pipelines to sample
// without scoping by owner.
func (s *Store) ListPipelinesByStatus(ctx context.Context, status models.PipelineStatus) ([]models.Pipeline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, name, credential_id, tables, filter, transform_template_id, sink_kind, sink_config,
		       source_connector_name, sink_connector_name, status, last_health_check, error_message, cached_metrics,
		       created_at, started_at, stopped_at, deleted_at
		FROM pipelines WHERE status = $1 ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("list pipelines by status: %w", err)
	}
	defer rows.Close()

	var out []models.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListNonDeletedPipelines returns every pipeline, across all owners, whose
// status is not deleted — used by the topic-sweep operator tool to build
// the set of pipeline-hex prefixes that are still live.
func (s *Store) ListNonDeletedPipelines(ctx context.Context) ([]models.Pipeline, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, name, credential_id, tables, filter, transform_template_id, sink_kind, sink_config,
		       source_connector_name, sink_connector_name, status, last_health_check, error_message, cached_metrics,
		       created_at, started_at, stopped_at, deleted_at
		FROM pipelines WHERE status != $1 ORDER BY created_at ASC
	`, models.PipelineStatusDeleted)
	if err != nil {
		return nil, fmt.Errorf("list non-deleted pipelines: %w", err)
	}
	defer rows.Close()

	var out []models.Pipeline
	for rows.Next() {
		p, err := scanPipeline(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pipeline: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// UpdatePipelineStatus transitions a pipeline's status and appends an audit
// event, atomically. Callers must have already validated the transition
// with internal/status.ValidateStatusTransition.
func (s *Store) UpdatePipelineStatus(ctx context.Context, id string, status models.PipelineStatus, event models.PipelineEventKind, message string) error {
	pipelineID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid pipeline id: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var timestampColumn string
	switch status {
	case models.PipelineStatusRunning:
		timestampColumn = "started_at"
	case models.PipelineStatusStopped:
		timestampColumn = "stopped_at"
	case models.PipelineStatusDeleted:
		timestampColumn = "deleted_at"
	}

	query := `UPDATE pipelines SET status = $1`
	args := []any{status}
	if timestampColumn != "" {
		query += fmt.Sprintf(", %s = now()", timestampColumn)
	}
	query += fmt.Sprintf(" WHERE id = $%d", len(args)+1)
	args = append(args, pipelineID)

	tag, err := tx.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update pipeline status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO pipeline_events (id, pipeline_id, kind, message) VALUES ($1, $2, $3, $4)
	`, uuid.New(), pipelineID, event, message); err != nil {
		return fmt.Errorf("insert pipeline event: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdatePipelineConnectorNames stamps the names of the external source/sink
// connectors the orchestrator created (or clears them, passing "", on stop).
func (s *Store) UpdatePipelineConnectorNames(ctx context.Context, id string, sourceConnectorName, sinkConnectorName string) error {
	pipelineID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid pipeline id: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE pipelines SET source_connector_name = $1, sink_connector_name = $2 WHERE id = $3
	`, sourceConnectorName, sinkConnectorName, pipelineID)
	if err != nil {
		return fmt.Errorf("update pipeline connector names: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// RecordPipelineError stamps a pipeline's error_message without changing
// status, and appends an "error" event.
func (s *Store) RecordPipelineError(ctx context.Context, id string, message string) error {
	pipelineID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid pipeline id: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `UPDATE pipelines SET error_message = $1 WHERE id = $2`, message, pipelineID); err != nil {
		return fmt.Errorf("update pipeline error message: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO pipeline_events (id, pipeline_id, kind, message) VALUES ($1, $2, $3, $4)
	`, uuid.New(), pipelineID, models.EventError, message); err != nil {
		return fmt.Errorf("insert pipeline error event: %w", err)
	}

	return tx.Commit(ctx)
}

// UpdatePipelineMetrics overwrites the cached health/metrics blob, used by
// the Monitor Loop after each check_now.
func (s *Store) UpdatePipelineMetrics(ctx context.Context, id string, metrics map[string]any) error {
	pipelineID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid pipeline id: %w", err)
	}

	metricsJSON, err := marshalJSON(metrics)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE pipelines SET cached_metrics = $1, last_health_check = now() WHERE id = $2
	`, metricsJSON, pipelineID)
	if err != nil {
		return fmt.Errorf("update pipeline metrics: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListPipelineEvents returns the audit trail for one pipeline, newest first.
func (s *Store) ListPipelineEvents(ctx context.Context, pipelineID string) ([]models.PipelineEvent, error) {
	pID, err := uuid.Parse(pipelineID)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline id: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, pipeline_id, kind, message, details, created_at
		FROM pipeline_events WHERE pipeline_id = $1 ORDER BY created_at DESC
	`, pID)
	if err != nil {
		return nil, fmt.Errorf("list pipeline events: %w", err)
	}
	defer rows.Close()

	var out []models.PipelineEvent
	for rows.Next() {
		var e models.PipelineEvent
		var idVal, pipelineIDVal uuid.UUID
		var detailsJSON []byte
		if err := rows.Scan(&idVal, &pipelineIDVal, &e.Kind, &e.Message, &detailsJSON, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pipeline event: %w", err)
		}
		e.ID = idVal.String()
		e.PipelineID = pipelineIDVal.String()
		e.Details = map[string]any{}
		if err := unmarshalJSON(detailsJSON, &e.Details); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// pipelineRowScanner abstracts over pgx.Row and pgx.Rows, which both expose
// Scan but share no common interface in pgx/v5.
type pipelineRowScanner interface {
	Scan(dest ...any) error
}

func scanPipeline(row pipelineRowScanner) (*models.Pipeline, error) {
	p := &models.Pipeline{}
	var idVal, credID uuid.UUID
	var templateID *uuid.UUID
	var tablesJSON, filterJSON, sinkConfigJSON, metricsJSON []byte

	if err := row.Scan(&idVal, &p.Owner, &p.Name, &credID, &tablesJSON, &filterJSON, &templateID,
		&p.SinkKind, &sinkConfigJSON, &p.SourceConnectorName, &p.SinkConnectorName, &p.Status,
		&p.LastHealthCheck, &p.ErrorMessage, &metricsJSON, &p.CreatedAt, &p.StartedAt, &p.StoppedAt, &p.DeletedAt); err != nil {
		return nil, err
	}

	p.ID = idVal.String()
	p.CredentialID = credID.String()
	if templateID != nil {
		p.TransformTemplateID = templateID.String()
	}

	if err := unmarshalJSON(tablesJSON, &p.Tables); err != nil {
		return nil, err
	}
	if len(filterJSON) > 0 {
		p.Filter = &models.FilterConfig{}
		if err := unmarshalJSON(filterJSON, p.Filter); err != nil {
			return nil, err
		}
	}
	p.SinkConfig = map[string]any{}
	if err := unmarshalJSON(sinkConfigJSON, &p.SinkConfig); err != nil {
		return nil, err
	}
	p.CachedMetrics = map[string]any{}
	if err := unmarshalJSON(metricsJSON, &p.CachedMetrics); err != nil {
		return nil, err
	}

	return p, nil
}
