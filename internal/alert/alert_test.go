package alert

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/connectors/notify"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

type fakeStore struct {
	history   []models.AlertHistory
	triggered map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{triggered: make(map[string]time.Time)}
}

func (f *fakeStore) CreateAlertHistory(ctx context.Context, h *models.AlertHistory) (string, error) {
	h.ID = "hist-1"
	f.history = append(f.history, *h)
	return h.ID, nil
}

func (f *fakeStore) RecordAlertTriggered(ctx context.Context, ruleID string, at time.Time) error {
	f.triggered[ruleID] = at
	return nil
}

type fakeTransport struct {
	err  error
	sent []notify.Message
}

func (f *fakeTransport) Send(msg notify.Message) error {
	f.sent = append(f.sent, msg)
	return f.err
}

func baseRule() models.AlertRule {
	return models.AlertRule{ID: "rule-1", Name: "volume check", Kind: models.RuleVolumeSpike, Active: true, Recipients: []string{"ops@example.com"}}
}

func TestSendDropsInactiveRule(t *testing.T) {
	store, transport := newFakeStore(), &fakeTransport{}
	d := New(store, transport, nil)

	rule := baseRule()
	rule.Active = false
	hist, err := d.Send(context.Background(), rule, models.Anomaly{}, false)
	require.NoError(t, err)
	assert.Nil(t, hist)
	assert.Empty(t, transport.sent)
}

func TestSendRespectsCooldown(t *testing.T) {
	store, transport := newFakeStore(), &fakeTransport{}
	d := New(store, transport, nil)
	now := time.Now()
	d.nowFunc = func() time.Time { return now }

	rule := baseRule()
	rule.Cooldown = time.Hour
	last := now.Add(-time.Minute)
	rule.LastTriggered = &last

	hist, err := d.Send(context.Background(), rule, models.Anomaly{Kind: models.RuleVolumeSpike}, false)
	require.NoError(t, err)
	assert.Nil(t, hist)
}

func TestSendBypassScheduleIgnoresCooldown(t *testing.T) {
	store, transport := newFakeStore(), &fakeTransport{}
	d := New(store, transport, nil)
	now := time.Now()
	d.nowFunc = func() time.Time { return now }

	rule := baseRule()
	rule.Cooldown = time.Hour
	last := now.Add(-time.Minute)
	rule.LastTriggered = &last

	hist, err := d.Send(context.Background(), rule, models.Anomaly{Kind: models.RuleVolumeSpike}, true)
	require.NoError(t, err)
	require.NotNil(t, hist)
	assert.True(t, hist.Delivered)
}

func TestSendRecordsDeliveryFailureWithoutError(t *testing.T) {
	store := newFakeStore()
	transport := &fakeTransport{err: assertError{}}
	d := New(store, transport, nil)

	hist, err := d.Send(context.Background(), baseRule(), models.Anomaly{Kind: models.RuleVolumeSpike, Description: "spike"}, true)
	require.NoError(t, err)
	require.NotNil(t, hist)
	assert.False(t, hist.Delivered)
	assert.NotEmpty(t, hist.DeliveryError)
	assert.Contains(t, store.triggered, "rule-1")
}

func TestTestSendsSyntheticAnomaly(t *testing.T) {
	store, transport := newFakeStore(), &fakeTransport{}
	d := New(store, transport, nil)

	hist, err := d.Test(context.Background(), baseRule())
	require.NoError(t, err)
	require.NotNil(t, hist)
	assert.Equal(t, models.SeverityInfo, hist.Severity)
}

func TestWithinScheduleRespectsDaysAndHours(t *testing.T) {
	rule := baseRule()
	now := time.Date(2026, 7, 31, 14, 0, 0, 0, time.UTC) // Friday
	rule.EnabledDays = map[time.Weekday]bool{time.Monday: true}

	d := New(newFakeStore(), &fakeTransport{}, nil)
	assert.False(t, d.withinSchedule(rule, now))

	rule.EnabledDays = map[time.Weekday]bool{time.Friday: true}
	assert.True(t, d.withinSchedule(rule, now))

	rule.EnabledHours = map[int]bool{9: true}
	assert.False(t, d.withinSchedule(rule, now))
}

type assertError struct{}

func (assertError) Error() string { return "smtp unavailable" }
