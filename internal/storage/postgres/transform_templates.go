package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// CreateTransformTemplate inserts a reusable transform/anomaly-rule bundle.
func (s *Store) CreateTransformTemplate(ctx context.Context, t *models.TransformTemplate) (string, error) {
	id := uuid.New()

	stepsJSON, err := marshalJSON(t.Steps)
	if err != nil {
		return "", err
	}
	anomalyJSON, err := marshalJSON(t.AnomalyCfg)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO transform_templates (id, owner, name, description, steps, anomaly_cfg)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, t.Owner, t.Name, t.Description, stepsJSON, anomalyJSON)
	if err != nil {
		return "", fmt.Errorf("insert transform template: %w", err)
	}

	return id.String(), nil
}

// GetTransformTemplate loads one template by ID.
func (s *Store) GetTransformTemplate(ctx context.Context, id string) (*models.TransformTemplate, error) {
	templateID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid transform template id: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, name, description, steps, anomaly_cfg
		FROM transform_templates WHERE id = $1
	`, templateID)

	t, err := scanTransformTemplate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get transform template: %w", err)
	}
	return t, nil
}

// ListTransformTemplates returns every template owned by owner.
func (s *Store) ListTransformTemplates(ctx context.Context, owner string) ([]models.TransformTemplate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, name, description, steps, anomaly_cfg
		FROM transform_templates WHERE owner = $1 ORDER BY name
	`, owner)
	if err != nil {
		return nil, fmt.Errorf("list transform templates: %w", err)
	}
	defer rows.Close()

	var out []models.TransformTemplate
	for rows.Next() {
		t, err := scanTransformTemplate(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// DeleteTransformTemplate removes a template. The pipelines foreign key has
// no ON DELETE action, so deleting a template a pipeline still references
// fails.
func (s *Store) DeleteTransformTemplate(ctx context.Context, id string) error {
	templateID, err := uuid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid transform template id: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM transform_templates WHERE id = $1`, templateID)
	if err != nil {
		return fmt.Errorf("delete transform template: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

func scanTransformTemplate(row pipelineRowScanner) (*models.TransformTemplate, error) {
	t := &models.TransformTemplate{}
	var idVal uuid.UUID
	var stepsJSON, anomalyJSON []byte

	if err := row.Scan(&idVal, &t.Owner, &t.Name, &t.Description, &stepsJSON, &anomalyJSON); err != nil {
		return nil, err
	}
	t.ID = idVal.String()

	if err := unmarshalJSON(stepsJSON, &t.Steps); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(anomalyJSON, &t.AnomalyCfg); err != nil {
		return nil, err
	}

	return t, nil
}
