// Package anomaly implements the Anomaly Engine: per-pipeline rule
// evaluation over live metrics, a preview/simulate comparison verdict, and
// transformation DDL emission for the filter/aggregation streams the
// orchestrator provisions.
package anomaly

import (
	"fmt"
	"sync"

	connwarehouse "github.com/bkvaiude/dataflow-ctl/internal/connectors/warehouse"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
	"github.com/bkvaiude/dataflow-ctl/internal/registry"
)

const baselineWindow = 10
const baselineMinSamples = 3

const (
	defaultSpikeThreshold      = 3.0
	defaultDropThreshold       = 0.2
	defaultGapMinutes          = 5
	defaultCardinalityMultiple = 2.0
	defaultRowDropThreshold    = 0.5
	severityEscalationFactor   = 2.0
)

// Engine evaluates anomaly rules and tracks the moving-mean baseline each
// pipeline's volume rules compare against.
type Engine struct {
	mu      sync.Mutex
	history map[string][]float64
}

// New constructs an Engine.
func New() *Engine {
	return &Engine{history: make(map[string][]float64)}
}

// RecordAndBaseline appends a new count sample (keeping at most the last 10)
// and returns the moving-mean baseline plus whether enough samples (>=3)
// have accumulated to make that baseline meaningful.
func (e *Engine) RecordAndBaseline(pipelineID string, count int64) (baseline float64, ready bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	hist := e.history[pipelineID]
	hist = append(hist, float64(count))
	if len(hist) > baselineWindow {
		hist = hist[len(hist)-baselineWindow:]
	}
	e.history[pipelineID] = hist

	if len(hist) < baselineMinSamples {
		return 0, false
	}

	// baseline excludes the sample just recorded, so the spike/drop ratio
	// compares "now" against "before now".
	prior := hist[:len(hist)-1]
	if len(prior) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range prior {
		sum += v
	}
	return sum / float64(len(prior)), true
}

func severityFor(ratio, threshold float64) models.Severity {
	if ratio > threshold*severityEscalationFactor {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}

// EvaluateVolumeSpike checks the current count against the pipeline's
// baseline, returning nil when no anomaly fired or the baseline isn't ready.
func (e *Engine) EvaluateVolumeSpike(pipelineID string, current int64, threshold float64) *models.Anomaly {
	if threshold <= 0 {
		threshold = defaultSpikeThreshold
	}
	baseline, ready := e.RecordAndBaseline(pipelineID, current)
	if !ready || baseline <= 0 {
		return nil
	}
	ratio := float64(current) / baseline
	if ratio <= threshold {
		return nil
	}
	return &models.Anomaly{
		Kind:        models.RuleVolumeSpike,
		Severity:    severityFor(ratio, threshold),
		PipelineID:  pipelineID,
		Measured:    ratio,
		Threshold:   threshold,
		Description: fmt.Sprintf("event volume is %.2fx baseline (threshold %.2fx)", ratio, threshold),
	}
}

// EvaluateVolumeDrop mirrors EvaluateVolumeSpike for the inverse direction:
// triggers when current/baseline falls below threshold.
func (e *Engine) EvaluateVolumeDrop(pipelineID string, current int64, threshold float64) *models.Anomaly {
	if threshold <= 0 {
		threshold = defaultDropThreshold
	}
	baseline, ready := e.RecordAndBaseline(pipelineID, current)
	if !ready || baseline <= 0 {
		return nil
	}
	ratio := float64(current) / baseline
	if ratio >= threshold {
		return nil
	}
	severity := models.SeverityWarning
	if ratio < threshold/severityEscalationFactor {
		severity = models.SeverityCritical
	}
	return &models.Anomaly{
		Kind:        models.RuleVolumeDrop,
		Severity:    severity,
		PipelineID:  pipelineID,
		Measured:    ratio,
		Threshold:   threshold,
		Description: fmt.Sprintf("event volume is %.2fx baseline (threshold %.2fx)", ratio, threshold),
	}
}

// EvaluateVolume records one sample and checks it against both the spike and
// drop thresholds, for callers (the Monitor Loop) that may have both rule
// kinds active on the same pipeline: EvaluateVolumeSpike/EvaluateVolumeDrop
// each record independently, so calling both per cycle would double-count
// the sample into the baseline history.
func (e *Engine) EvaluateVolume(pipelineID string, current int64, spikeThreshold, dropThreshold float64) (spike, drop *models.Anomaly) {
	if spikeThreshold <= 0 {
		spikeThreshold = defaultSpikeThreshold
	}
	if dropThreshold <= 0 {
		dropThreshold = defaultDropThreshold
	}

	baseline, ready := e.RecordAndBaseline(pipelineID, current)
	if !ready || baseline <= 0 {
		return nil, nil
	}
	ratio := float64(current) / baseline

	if ratio > spikeThreshold {
		spike = &models.Anomaly{
			Kind:        models.RuleVolumeSpike,
			Severity:    severityFor(ratio, spikeThreshold),
			PipelineID:  pipelineID,
			Measured:    ratio,
			Threshold:   spikeThreshold,
			Description: fmt.Sprintf("event volume is %.2fx baseline (threshold %.2fx)", ratio, spikeThreshold),
		}
	}
	if ratio < dropThreshold {
		severity := models.SeverityWarning
		if ratio < dropThreshold/severityEscalationFactor {
			severity = models.SeverityCritical
		}
		drop = &models.Anomaly{
			Kind:        models.RuleVolumeDrop,
			Severity:    severity,
			PipelineID:  pipelineID,
			Measured:    ratio,
			Threshold:   dropThreshold,
			Description: fmt.Sprintf("event volume is %.2fx baseline (threshold %.2fx)", ratio, dropThreshold),
		}
	}
	return spike, drop
}

// EvaluateGapDetection triggers when the age of the last observed event
// meets or exceeds thresholdMinutes.
func EvaluateGapDetection(pipelineID, table string, lastEventUnix, nowUnix int64, thresholdMinutes float64) *models.Anomaly {
	if thresholdMinutes <= 0 {
		thresholdMinutes = defaultGapMinutes
	}
	if lastEventUnix == 0 {
		return nil
	}
	ageMinutes := float64(nowUnix-lastEventUnix) / 60
	if ageMinutes < thresholdMinutes {
		return nil
	}
	return &models.Anomaly{
		Kind:        models.RuleGapDetection,
		Severity:    severityFor(ageMinutes, thresholdMinutes),
		PipelineID:  pipelineID,
		Table:       table,
		Measured:    ageMinutes,
		Threshold:   thresholdMinutes,
		Description: fmt.Sprintf("no events observed for %.1f minutes (threshold %.1f)", ageMinutes, thresholdMinutes),
	}
}

// EvaluateNullRatio escalates to critical at the error threshold and warns
// at the (lower) warning threshold.
func EvaluateNullRatio(pipelineID, table, column string, nullCount, rowCount int64, warningThreshold, errorThreshold float64) *models.Anomaly {
	if rowCount == 0 {
		return nil
	}
	ratio := float64(nullCount) / float64(rowCount)
	switch {
	case ratio >= errorThreshold:
		return &models.Anomaly{
			Kind: models.RuleNullRatio, Severity: models.SeverityCritical, PipelineID: pipelineID, Table: table, Column: column,
			Measured: ratio, Threshold: errorThreshold,
			Description: fmt.Sprintf("%s.%s null ratio %.2f exceeds error threshold %.2f", table, column, ratio, errorThreshold),
		}
	case ratio >= warningThreshold:
		return &models.Anomaly{
			Kind: models.RuleNullRatio, Severity: models.SeverityWarning, PipelineID: pipelineID, Table: table, Column: column,
			Measured: ratio, Threshold: warningThreshold,
			Description: fmt.Sprintf("%s.%s null ratio %.2f exceeds warning threshold %.2f", table, column, ratio, warningThreshold),
		}
	default:
		return nil
	}
}

// EvaluateCardinality fires when a join's output/input row ratio exceeds
// multiplier (a fan-out blowup).
func EvaluateCardinality(pipelineID, table string, originalRows, transformedRows int64, multiplier float64) *models.Anomaly {
	if multiplier <= 0 {
		multiplier = defaultCardinalityMultiple
	}
	if originalRows == 0 {
		return nil
	}
	ratio := float64(transformedRows) / float64(originalRows)
	if ratio <= multiplier {
		return nil
	}
	return &models.Anomaly{
		Kind: models.RuleCardinality, Severity: severityFor(ratio, multiplier), PipelineID: pipelineID, Table: table,
		Measured: ratio, Threshold: multiplier,
		Description: fmt.Sprintf("join output is %.2fx input rows (threshold %.2fx)", ratio, multiplier),
	}
}

// EvaluateRowCountDrop fires when a filter transform drops more than
// threshold fraction of rows.
func EvaluateRowCountDrop(pipelineID, table string, originalRows, transformedRows int64, threshold float64) *models.Anomaly {
	if threshold <= 0 {
		threshold = defaultRowDropThreshold
	}
	if originalRows == 0 {
		return nil
	}
	dropFraction := 1 - float64(transformedRows)/float64(originalRows)
	if dropFraction <= threshold {
		return nil
	}
	return &models.Anomaly{
		Kind: models.RuleRowCountDrop, Severity: severityFor(dropFraction, threshold), PipelineID: pipelineID, Table: table,
		Measured: dropFraction, Threshold: threshold,
		Description: fmt.Sprintf("filter dropped %.0f%% of rows (threshold %.0f%%)", dropFraction*100, threshold*100),
	}
}

// EvaluateTypeCoercion fires one anomaly per column whose transformed type
// differs from its original type, unless the transform is an aggregation
// (which legitimately changes column types, e.g. COUNT -> BIGINT).
func EvaluateTypeCoercion(pipelineID, table string, originalTypes, transformedTypes map[string]string, kind models.TransformKind) []models.Anomaly {
	if kind == models.TransformAggregation {
		return nil
	}
	var out []models.Anomaly
	for column, originalType := range originalTypes {
		transformedType, ok := transformedTypes[column]
		if !ok || transformedType == originalType {
			continue
		}
		out = append(out, models.Anomaly{
			Kind: models.RuleTypeCoercion, Severity: models.SeverityWarning, PipelineID: pipelineID, Table: table, Column: column,
			Description: fmt.Sprintf("%s.%s type changed from %s to %s", table, column, originalType, transformedType),
			Details:     map[string]any{"original_type": originalType, "transformed_type": transformedType},
		})
	}
	return out
}

// AnalyzeConfig carries the thresholds Analyze needs for each applicable
// rule kind; zero values fall back to each rule's default threshold.
type AnalyzeConfig struct {
	CardinalityMultiplier float64
	RowDropThreshold      float64
}

// Analyze compares an original and transformed row-set for a single table
// transform and produces the combined preview/simulate verdict.
func Analyze(pipelineID, table string, original, transformed []map[string]any, kind models.TransformKind, cfg AnalyzeConfig) models.AnalyzeVerdict {
	var anomalies []models.Anomaly

	originalRows := int64(len(original))
	transformedRows := int64(len(transformed))

	switch kind {
	case models.TransformJoin:
		if a := EvaluateCardinality(pipelineID, table, originalRows, transformedRows, cfg.CardinalityMultiplier); a != nil {
			anomalies = append(anomalies, *a)
		}
	case models.TransformFilter:
		if a := EvaluateRowCountDrop(pipelineID, table, originalRows, transformedRows, cfg.RowDropThreshold); a != nil {
			anomalies = append(anomalies, *a)
		}
	}

	originalTypes := inferColumnTypes(original)
	transformedTypes := inferColumnTypes(transformed)
	anomalies = append(anomalies, EvaluateTypeCoercion(pipelineID, table, originalTypes, transformedTypes, kind)...)

	hasError := false
	for _, a := range anomalies {
		if a.Severity == models.SeverityCritical {
			hasError = true
		}
	}

	summary := fmt.Sprintf("%d anomalies found across %d -> %d rows", len(anomalies), originalRows, transformedRows)
	if len(anomalies) == 0 {
		summary = fmt.Sprintf("no anomalies found across %d -> %d rows", originalRows, transformedRows)
	}

	return models.AnalyzeVerdict{
		Anomalies:  anomalies,
		Summary:    summary,
		CanProceed: !hasError,
	}
}

func inferColumnTypes(rows []map[string]any) map[string]string {
	types := make(map[string]string)
	for _, row := range rows {
		for col, val := range row {
			if _, seen := types[col]; seen {
				continue
			}
			types[col] = fmt.Sprintf("%T", val)
		}
	}
	return types
}

// TransformLookup resolves a transform kind to its rendering template,
// narrowed from registry.Registry.
type TransformLookup interface {
	Transform(name string) (models.TransformDescriptor, error)
}

// EmitFilterStreamDDL renders the filter-stream template for a source
// stream, quoting identifiers so the stream's case is preserved under a
// case-sensitive schema registry binding. The returned streams properties
// must accompany the DDL's ExecStatement call so the processor reads from
// the earliest offset rather than skipping backlog already on the topic.
func EmitFilterStreamDDL(lookup TransformLookup, sourceStream, outputStream, outputTopic, predicate string) (ddl string, streamsProperties map[string]string, err error) {
	descriptor, err := lookup.Transform(string(models.TransformFilter))
	if err != nil {
		return "", nil, err
	}
	ddl, err = registry.Render(descriptor.Template, map[string]any{
		"source_stream": quoteIdent(sourceStream),
		"output_stream": quoteIdent(outputStream),
		"output_topic":  outputTopic,
		"predicate":     predicate,
	})
	if err != nil {
		return "", nil, err
	}
	return ddl, map[string]string{"ksql.streams.auto.offset.reset": "earliest"}, nil
}

// WindowKind is the ksqlDB windowing strategy for an aggregation transform.
type WindowKind string

const (
	WindowTumbling WindowKind = "TUMBLING"
	WindowHopping  WindowKind = "HOPPING"
	WindowSession  WindowKind = "SESSION"
)

// EmitAggregationDDL renders the windowed-aggregation template.
func EmitAggregationDDL(lookup TransformLookup, sourceStream, outputTable, outputTopic string, window WindowKind, windowSpec, groupByColumns, aggregations, prefilter string) (string, error) {
	descriptor, err := lookup.Transform(string(models.TransformAggregation))
	if err != nil {
		return "", err
	}
	return registry.Render(descriptor.Template, map[string]any{
		"source_stream":    quoteIdent(sourceStream),
		"output_table":     quoteIdent(outputTable),
		"output_topic":     outputTopic,
		"window_kind":      string(window),
		"window_spec":      windowSpec,
		"group_by_columns": groupByColumns,
		"aggregations":     aggregations,
		"prefilter":        prefilter,
	})
}

func quoteIdent(name string) string {
	return connwarehouse.QuoteIdent(name)
}
