package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// CreateAlertRule inserts a new monitoring rule, scoped to a pipeline or
// (when PipelineID is empty) to all of the owner's pipelines.
func (s *Store) CreateAlertRule(ctx context.Context, r *models.AlertRule) (string, error) {
	id := uuid.New()

	var pipelineID *uuid.UUID
	if r.PipelineID != "" {
		parsed, err := uuid.Parse(r.PipelineID)
		if err != nil {
			return "", fmt.Errorf("invalid pipeline id: %w", err)
		}
		pipelineID = &parsed
	}

	thresholdJSON, err := marshalJSON(r.Threshold)
	if err != nil {
		return "", err
	}

	days := make([]int16, 0, len(r.EnabledDays))
	for d, enabled := range r.EnabledDays {
		if enabled {
			days = append(days, int16(d))
		}
	}
	hours := make([]int16, 0, len(r.EnabledHours))
	for h, enabled := range r.EnabledHours {
		if enabled {
			hours = append(hours, int16(h))
		}
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO alert_rules
			(id, owner, pipeline_id, name, kind, threshold, enabled_days, enabled_hours, cooldown_secs,
			 severity, recipients, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`, id, r.Owner, pipelineID, r.Name, r.Kind, thresholdJSON, days, hours, int64(r.Cooldown.Seconds()),
		r.Severity, r.Recipients, r.Active)
	if err != nil {
		return "", fmt.Errorf("insert alert rule: %w", err)
	}

	return id.String(), nil
}

// ListActiveAlertRules returns every active rule applicable to pipelineID:
// rules scoped to that pipeline plus the owner's pipeline-wide rules.
func (s *Store) ListActiveAlertRules(ctx context.Context, owner, pipelineID string) ([]models.AlertRule, error) {
	pID, err := uuid.Parse(pipelineID)
	if err != nil {
		return nil, fmt.Errorf("invalid pipeline id: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, owner, pipeline_id, name, kind, threshold, enabled_days, enabled_hours, cooldown_secs,
		       severity, recipients, active, last_triggered, trigger_count
		FROM alert_rules
		WHERE active = true AND owner = $1 AND (pipeline_id = $2 OR pipeline_id IS NULL)
	`, owner, pID)
	if err != nil {
		return nil, fmt.Errorf("list active alert rules: %w", err)
	}
	defer rows.Close()

	var out []models.AlertRule
	for rows.Next() {
		r, err := scanAlertRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

// RecordAlertTriggered bumps a rule's trigger bookkeeping after it fires.
func (s *Store) RecordAlertTriggered(ctx context.Context, ruleID string, at time.Time) error {
	id, err := uuid.Parse(ruleID)
	if err != nil {
		return fmt.Errorf("invalid alert rule id: %w", err)
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE alert_rules SET last_triggered = $1, trigger_count = trigger_count + 1 WHERE id = $2
	`, at, id)
	if err != nil {
		return fmt.Errorf("record alert triggered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// GetAlertRule loads a single rule by ID.
func (s *Store) GetAlertRule(ctx context.Context, id string) (*models.AlertRule, error) {
	ruleID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("invalid alert rule id: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
		SELECT id, owner, pipeline_id, name, kind, threshold, enabled_days, enabled_hours, cooldown_secs,
		       severity, recipients, active, last_triggered, trigger_count
		FROM alert_rules WHERE id = $1
	`, ruleID)

	r, err := scanAlertRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, models.ErrNotFound
		}
		return nil, fmt.Errorf("get alert rule: %w", err)
	}
	return r, nil
}

func scanAlertRule(row pipelineRowScanner) (*models.AlertRule, error) {
	r := &models.AlertRule{}
	var idVal uuid.UUID
	var pipelineID *uuid.UUID
	var thresholdJSON []byte
	var days, hours []int16
	var cooldownSecs int64

	if err := row.Scan(&idVal, &r.Owner, &pipelineID, &r.Name, &r.Kind, &thresholdJSON, &days, &hours,
		&cooldownSecs, &r.Severity, &r.Recipients, &r.Active, &r.LastTriggered, &r.TriggerCount); err != nil {
		return nil, err
	}

	r.ID = idVal.String()
	if pipelineID != nil {
		r.PipelineID = pipelineID.String()
	}
	r.Cooldown = time.Duration(cooldownSecs) * time.Second

	r.Threshold = map[string]any{}
	if err := unmarshalJSON(thresholdJSON, &r.Threshold); err != nil {
		return nil, err
	}

	r.EnabledDays = make(map[time.Weekday]bool, len(days))
	for _, d := range days {
		r.EnabledDays[time.Weekday(d)] = true
	}
	r.EnabledHours = make(map[int]bool, len(hours))
	for _, h := range hours {
		r.EnabledHours[int(h)] = true
	}

	return r, nil
}
