package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// CreateAlertHistory records one delivered (or attempted) notification.
func (s *Store) CreateAlertHistory(ctx context.Context, h *models.AlertHistory) (string, error) {
	id := uuid.New()

	ruleID, err := uuid.Parse(h.RuleID)
	if err != nil {
		return "", fmt.Errorf("invalid alert rule id: %w", err)
	}

	detailsJSON, err := marshalJSON(h.Details)
	if err != nil {
		return "", err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO alert_history
			(id, rule_id, kind, severity, title, body, details, delivered, delivered_at, recipients, delivery_error, triggered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, ruleID, h.Kind, h.Severity, h.Title, h.Body, detailsJSON, h.Delivered, h.DeliveredAt,
		h.Recipients, h.DeliveryError, h.TriggeredAt)
	if err != nil {
		return "", fmt.Errorf("insert alert history: %w", err)
	}

	return id.String(), nil
}

// ListAlertHistory returns the most recent deliveries for a rule, newest first.
func (s *Store) ListAlertHistory(ctx context.Context, ruleID string, limit int) ([]models.AlertHistory, error) {
	id, err := uuid.Parse(ruleID)
	if err != nil {
		return nil, fmt.Errorf("invalid alert rule id: %w", err)
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, rule_id, kind, severity, title, body, details, delivered, delivered_at, recipients,
		       delivery_error, triggered_at
		FROM alert_history WHERE rule_id = $1 ORDER BY triggered_at DESC LIMIT $2
	`, id, limit)
	if err != nil {
		return nil, fmt.Errorf("list alert history: %w", err)
	}
	defer rows.Close()

	var out []models.AlertHistory
	for rows.Next() {
		var h models.AlertHistory
		var idVal, ruleIDVal uuid.UUID
		var detailsJSON []byte
		if err := rows.Scan(&idVal, &ruleIDVal, &h.Kind, &h.Severity, &h.Title, &h.Body, &detailsJSON,
			&h.Delivered, &h.DeliveredAt, &h.Recipients, &h.DeliveryError, &h.TriggeredAt); err != nil {
			return nil, fmt.Errorf("scan alert history: %w", err)
		}
		h.ID = idVal.String()
		h.RuleID = ruleIDVal.String()
		h.Details = map[string]any{}
		if err := unmarshalJSON(detailsJSON, &h.Details); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}
