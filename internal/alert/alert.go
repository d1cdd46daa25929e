// Package alert implements the Alert Dispatcher: schedule and
// cooldown enforcement, notification delivery, and alert-history recording.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/bkvaiude/dataflow-ctl/internal/connectors/notify"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Store is the persistence dependency the Dispatcher needs from the
// repository layer.
type Store interface {
	CreateAlertHistory(ctx context.Context, h *models.AlertHistory) (string, error)
	RecordAlertTriggered(ctx context.Context, ruleID string, at time.Time) error
}

// Transport delivers a built notification to its recipients, narrowed from
// notify.Mailer.
type Transport interface {
	Send(msg notify.Message) error
}

// Dispatcher evaluates a rule's schedule/cooldown and delivers matching
// anomaly notifications.
type Dispatcher struct {
	store     Store
	transport Transport
	log       *slog.Logger
	nowFunc   func() time.Time
}

// New constructs a Dispatcher.
func New(store Store, transport Transport, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{store: store, transport: transport, log: log, nowFunc: time.Now}
}

// Send evaluates schedule/cooldown (unless bypassed), builds a notification
// from the anomaly, attempts delivery, and always records an Alert History
// row — delivery failure is recorded, not returned as an error.
func (d *Dispatcher) Send(ctx context.Context, rule models.AlertRule, anomaly models.Anomaly, bypassSchedule bool) (*models.AlertHistory, error) {
	if !rule.Active {
		return nil, nil
	}

	now := d.nowFunc()
	if !bypassSchedule && !d.withinSchedule(rule, now) {
		return nil, nil
	}

	title, body := buildNotification(rule, anomaly)
	history := &models.AlertHistory{
		RuleID:      rule.ID,
		Kind:        anomaly.Kind,
		Severity:    anomaly.Severity,
		Title:       title,
		Body:        body,
		Details:     anomaly.Details,
		Recipients:  rule.Recipients,
		TriggeredAt: now,
	}

	err := d.transport.Send(notify.Message{To: rule.Recipients, Subject: title, Body: body, SentAt: now})
	if err != nil {
		history.Delivered = false
		history.DeliveryError = err.Error()
		d.log.WarnContext(ctx, "alert delivery failed", slog.String("rule_id", rule.ID), slog.String("error", err.Error()))
	} else {
		history.Delivered = true
		history.DeliveredAt = &now
	}

	id, createErr := d.store.CreateAlertHistory(ctx, history)
	if createErr != nil {
		return nil, fmt.Errorf("record alert history: %w", createErr)
	}
	history.ID = id

	if triggerErr := d.store.RecordAlertTriggered(ctx, rule.ID, now); triggerErr != nil {
		return history, fmt.Errorf("record alert triggered: %w", triggerErr)
	}

	return history, nil
}

// Test constructs a synthetic anomaly for the rule's own kind and invokes
// Send with bypassSchedule = true, for the operator's "send a test alert"
// action.
func (d *Dispatcher) Test(ctx context.Context, rule models.AlertRule) (*models.AlertHistory, error) {
	synthetic := models.Anomaly{
		Kind:        rule.Kind,
		Severity:    models.SeverityInfo,
		PipelineID:  rule.PipelineID,
		Description: "synthetic test anomaly; no live condition was detected",
	}
	return d.Send(ctx, rule, synthetic, true)
}

func (d *Dispatcher) withinSchedule(rule models.AlertRule, now time.Time) bool {
	if len(rule.EnabledDays) > 0 && !rule.EnabledDays[now.Weekday()] {
		return false
	}
	if len(rule.EnabledHours) > 0 && !rule.EnabledHours[now.Hour()] {
		return false
	}
	if rule.LastTriggered != nil && now.Sub(*rule.LastTriggered) < rule.Cooldown {
		return false
	}
	return true
}

func buildNotification(rule models.AlertRule, anomaly models.Anomaly) (title, body string) {
	title = fmt.Sprintf("[%s] %s: %s", strings.ToUpper(string(anomaly.Severity)), rule.Name, anomaly.Kind)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", anomaly.Description)
	if anomaly.Table != "" {
		fmt.Fprintf(&b, "table: %s\n", anomaly.Table)
	}
	if anomaly.Column != "" {
		fmt.Fprintf(&b, "column: %s\n", anomaly.Column)
	}
	fmt.Fprintf(&b, "measured: %.4f, threshold: %.4f\n", anomaly.Measured, anomaly.Threshold)
	body = b.String()
	return title, body
}
