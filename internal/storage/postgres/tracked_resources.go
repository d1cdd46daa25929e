package postgres

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// CreateTrackedResource records a newly-provisioned external artifact.
func (s *Store) CreateTrackedResource(ctx context.Context, r *models.TrackedResource) (string, error) {
	id := uuid.New()

	pipelineID, err := uuid.Parse(r.PipelineID)
	if err != nil {
		return "", fmt.Errorf("invalid pipeline id: %w", err)
	}

	metadataJSON, err := marshalJSON(r.Metadata)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO tracked_resources (id, pipeline_id, kind, external_id, name, status, metadata, depends_on, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, id, pipelineID, r.Kind, r.ExternalID, r.Name, r.Status, metadataJSON, r.DependsOn, r.Error)
	if err != nil {
		return "", fmt.Errorf("insert tracked resource: %w", err)
	}

	return id.String(), nil
}

// UpdateTrackedResourceStatus updates a resource's lifecycle status and
// optional error detail.
func (s *Store) UpdateTrackedResourceStatus(ctx context.Context, id string, status models.ResourceStatus, errMsg string) error {
	resID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid tracked resource id: %w", err)
	}

	var deletedAtClause string
	if status == models.ResourceStatusDeleted {
		deletedAtClause = ", deleted_at = now()"
	}

	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`
		UPDATE tracked_resources SET status = $1, error = $2%s WHERE id = $3
	`, deletedAtClause), status, errMsg, resID)
	if err != nil {
		return fmt.Errorf("update tracked resource status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ListTrackedResources returns every non-deleted resource for a pipeline,
// ordered by the fixed teardown rank so callers can delete
// front-to-back without re-sorting.
func (s *Store) ListTrackedResources(ctx context.Context, pipelineID string) ([]models.TrackedResource, error) {
	pID, err := uuid.Parse(pipelineID)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline id: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, pipeline_id, kind, external_id, name, status, metadata, depends_on, error, created_at, deleted_at
		FROM tracked_resources WHERE pipeline_id = $1 AND deleted_at IS NULL
	`, pID)
	if err != nil {
		return nil, fmt.Errorf("list tracked resources: %w", err)
	}
	defer rows.Close()

	var out []models.TrackedResource
	for rows.Next() {
		var r models.TrackedResource
		var idVal, pipelineIDVal uuid.UUID
		var metadataJSON []byte
		if err := rows.Scan(&idVal, &pipelineIDVal, &r.Kind, &r.ExternalID, &r.Name, &r.Status,
			&metadataJSON, &r.DependsOn, &r.Error, &r.CreatedAt, &r.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan tracked resource: %w", err)
		}
		r.ID = idVal.String()
		r.PipelineID = pipelineIDVal.String()
		r.Metadata = map[string]any{}
		if err := unmarshalJSON(metadataJSON, &r.Metadata); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		return models.DeletionRank(out[i].Kind) < models.DeletionRank(out[j].Kind)
	})

	return out, nil
}
