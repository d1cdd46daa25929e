// Package monitor implements the Monitor Loop: a ticker-based sweep
// over running pipelines that samples source row counts, feeds them through
// the Anomaly Engine, and dispatches any resulting alerts.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cast"

	"github.com/bkvaiude/dataflow-ctl/internal/anomaly"
	"github.com/bkvaiude/dataflow-ctl/internal/connectors/sourcedb"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// SourceGatherer is the default Gatherer: it dials the source database
// directly for each sample, the same short-lived-connection pattern the
// Readiness Prober and Schema Discovery use for their own probes.
type SourceGatherer struct {
	DialTimeout time.Duration
}

// RowCount dials, samples, and closes — one connection per call, since
// sampling is infrequent (once per Monitor interval per pipeline) and
// holding a pool open per pipeline is not worth the bookkeeping.
func (g SourceGatherer) RowCount(ctx context.Context, secret models.CredentialSecret, ref models.TableRef) (int64, error) {
	timeout := g.DialTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	conn, err := sourcedb.Dial(ctx, secret, timeout)
	if err != nil {
		return 0, fmt.Errorf("dial source: %w", err)
	}
	defer conn.Close()

	return conn.RowCount(ctx, ref)
}

// Store is the persistence surface the Monitor Loop needs: finding running
// pipelines system-wide and recording what it observed.
type Store interface {
	ListPipelinesByStatus(ctx context.Context, status models.PipelineStatus) ([]models.Pipeline, error)
	UpdatePipelineMetrics(ctx context.Context, id string, metrics map[string]any) error
	RecordPipelineError(ctx context.Context, id string, message string) error
}

// Credentials opens a pipeline's source secret for a sampling connection.
type Credentials interface {
	Open(ctx context.Context, owner, id string) (*models.CredentialSecret, error)
}

// AlertRules resolves the rules active for a pipeline (pipeline-scoped and
// owner-wide) on each cycle.
type AlertRules interface {
	ListActiveAlertRules(ctx context.Context, owner, pipelineID string) ([]models.AlertRule, error)
}

// Dispatcher delivers a triggered anomaly against its rule.
type Dispatcher interface {
	Send(ctx context.Context, rule models.AlertRule, anomaly models.Anomaly, bypassSchedule bool) (*models.AlertHistory, error)
}

// Gatherer samples a single table's current row count from the source
// database underlying a pipeline's credential.
type Gatherer interface {
	RowCount(ctx context.Context, secret models.CredentialSecret, ref models.TableRef) (int64, error)
}

// Monitor runs the periodic sweep: it owns no pipeline state of its own beyond the
// small in-memory history needed for gap detection, deferring everything
// durable to Store.
type Monitor struct {
	store    Store
	creds    Credentials
	rules    AlertRules
	dispatch Dispatcher
	gatherer Gatherer
	engine   *anomaly.Engine
	interval time.Duration
	log      *slog.Logger

	mu        sync.Mutex
	lastCount map[string]int64
	lastSeen  map[string]time.Time
}

// Deps collects Monitor's constructor dependencies.
type Deps struct {
	Store    Store
	Creds    Credentials
	Rules    AlertRules
	Dispatch Dispatcher
	Gatherer Gatherer
	Engine   *anomaly.Engine
	Interval time.Duration
	Log      *slog.Logger
}

// New builds a Monitor from its dependencies, falling back to sane
// defaults for anything left zero-valued.
func New(d Deps) *Monitor {
	if d.Interval <= 0 {
		d.Interval = 60 * time.Second
	}
	if d.Engine == nil {
		d.Engine = anomaly.New()
	}
	if d.Log == nil {
		d.Log = slog.Default()
	}
	return &Monitor{
		store:     d.Store,
		creds:     d.Creds,
		rules:     d.Rules,
		dispatch:  d.Dispatch,
		gatherer:  d.Gatherer,
		engine:    d.Engine,
		interval:  d.Interval,
		log:       d.Log,
		lastCount: make(map[string]int64),
		lastSeen:  make(map[string]time.Time),
	}
}

// Run ticks every Interval until ctx is cancelled, sweeping all running
// pipelines on each tick. A single slow or failing pipeline never blocks the
// sweep of the others; CheckAll logs per-pipeline failures and continues.
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CheckAll(ctx)
		}
	}
}

// CheckAll samples every currently running pipeline once.
func (m *Monitor) CheckAll(ctx context.Context) {
	pipelines, err := m.store.ListPipelinesByStatus(ctx, models.PipelineStatusRunning)
	if err != nil {
		m.log.Error("monitor: list running pipelines", slog.Any("error", err))
		return
	}

	for _, p := range pipelines {
		if err := m.checkPipeline(ctx, p); err != nil {
			m.log.Error("monitor: check pipeline failed",
				slog.String("pipeline_id", p.ID), slog.Any("error", err))
		}
	}
}

// CheckPipeline samples a single running pipeline on demand, the manual
// "check now" trigger. It returns models.ErrNotFound if the pipeline is not
// currently running.
func (m *Monitor) CheckPipeline(ctx context.Context, pipelineID string) error {
	pipelines, err := m.store.ListPipelinesByStatus(ctx, models.PipelineStatusRunning)
	if err != nil {
		return fmt.Errorf("list running pipelines: %w", err)
	}
	for _, p := range pipelines {
		if p.ID == pipelineID {
			return m.checkPipeline(ctx, p)
		}
	}
	return fmt.Errorf("pipeline %s: %w", pipelineID, models.ErrNotFound)
}

func (m *Monitor) checkPipeline(ctx context.Context, p models.Pipeline) error {
	secret, err := m.creds.Open(ctx, p.Owner, p.CredentialID)
	if err != nil {
		return fmt.Errorf("open credential: %w", err)
	}

	rules, err := m.rules.ListActiveAlertRules(ctx, p.Owner, p.ID)
	if err != nil {
		return fmt.Errorf("list active alert rules: %w", err)
	}
	if len(rules) == 0 {
		return nil
	}

	spikeRule := findRule(rules, models.RuleVolumeSpike)
	dropRule := findRule(rules, models.RuleVolumeDrop)
	gapRule := findRule(rules, models.RuleGapDetection)

	now := time.Now()
	metrics := make(map[string]any, len(p.Tables))
	var total int64

	for _, table := range p.Tables {
		count, err := m.gatherer.RowCount(ctx, *secret, table)
		if err != nil {
			m.log.Warn("monitor: row count sample failed",
				slog.String("pipeline_id", p.ID), slog.String("table", table.String()), slog.Any("error", err))
			continue
		}
		metrics[table.String()] = count
		total += count

		key := p.ID + "/" + table.String()
		m.mu.Lock()
		last, known := m.lastCount[key]
		if !known || last != count {
			m.lastSeen[key] = now
		}
		m.lastCount[key] = count
		lastSeen := m.lastSeen[key]
		m.mu.Unlock()

		if gapRule != nil && !lastSeen.IsZero() {
			thresholdMinutes := cast.ToFloat64(gapRule.Threshold["threshold_minutes"])
			if a := anomaly.EvaluateGapDetection(p.ID, table.String(), lastSeen.Unix(), now.Unix(), thresholdMinutes); a != nil {
				m.dispatchAnomaly(ctx, *gapRule, *a)
			}
		}
	}

	if spikeRule != nil || dropRule != nil {
		var spikeThreshold, dropThreshold float64
		if spikeRule != nil {
			spikeThreshold = cast.ToFloat64(spikeRule.Threshold["threshold"])
		}
		if dropRule != nil {
			dropThreshold = cast.ToFloat64(dropRule.Threshold["threshold"])
		}
		spike, drop := m.engine.EvaluateVolume(p.ID, total, spikeThreshold, dropThreshold)
		if spike != nil && spikeRule != nil {
			m.dispatchAnomaly(ctx, *spikeRule, *spike)
		}
		if drop != nil && dropRule != nil {
			m.dispatchAnomaly(ctx, *dropRule, *drop)
		}
	}

	metrics["sampled_at"] = now.Unix()
	if err := m.store.UpdatePipelineMetrics(ctx, p.ID, metrics); err != nil {
		return fmt.Errorf("update pipeline metrics: %w", err)
	}
	return nil
}

func (m *Monitor) dispatchAnomaly(ctx context.Context, rule models.AlertRule, a models.Anomaly) {
	if _, err := m.dispatch.Send(ctx, rule, a, false); err != nil {
		m.log.Error("monitor: dispatch alert failed",
			slog.String("rule_id", rule.ID), slog.String("pipeline_id", a.PipelineID), slog.Any("error", err))
	}
}

func findRule(rules []models.AlertRule, kind models.AlertRuleKind) *models.AlertRule {
	for i := range rules {
		if rules[i].Kind == kind {
			return &rules[i]
		}
	}
	return nil
}
