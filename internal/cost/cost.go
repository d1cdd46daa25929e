// Package cost implements the Cost Estimator: projecting a pipeline
// specification's running cost from its sink descriptor's price table and
// the discovered source statistics.
package cost

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

const (
	defaultChangeFraction  = 0.10 // assumed 10% of rows change daily when not given
	defaultAvgRowSizeBytes = 50.0
	defaultRetentionDays   = 30
)

// SinkLookup resolves a sink kind to its cost-factor table, narrowed from
// registry.Registry.
type SinkLookup interface {
	Sink(name string) (models.SinkDescriptor, error)
}

// Estimator prices pipeline specifications against a sink's cost factors.
type Estimator struct {
	sinks SinkLookup
}

// New constructs an Estimator.
func New(sinks SinkLookup) *Estimator {
	return &Estimator{sinks: sinks}
}

// Input bundles the pipeline facts the estimate is built from; fields left
// zero are defaulted per spec assumption rules.
type Input struct {
	RowCountEstimate int64
	ColumnCount      int
	Assumptions      models.CostAssumptions
}

// Estimate computes a full cost projection for one pipeline.
func (e *Estimator) Estimate(in Input) (models.CostEstimate, error) {
	factors, err := e.sinks.Sink(in.Assumptions.SinkKind)
	if err != nil {
		return models.CostEstimate{}, err
	}

	a := applyDefaults(in)

	perTaskDay := cast.ToFloat64(factors.CostFactors["per_task_day"])
	perGBMonth := cast.ToFloat64(factors.CostFactors["per_gb_month"])
	perGBThroughput := cast.ToFloat64(factors.CostFactors["per_gb_throughput"])
	perCapacityUnitHour := cast.ToFloat64(factors.CostFactors["per_capacity_unit_hour"])

	var components []models.CostComponent
	var notes []string

	sourceTasks := float64(a.SourceTaskCount)
	components = append(components, taskComponent("source_connector_tasks", "Debezium source connector tasks", sourceTasks, perTaskDay))

	sinkTasks := float64(a.SinkTaskCount)
	components = append(components, taskComponent("sink_connector_tasks", "ClickHouse sink connector tasks", sinkTasks, perTaskDay))

	effectiveEvents := float64(a.EventsPerDay) * (1 - a.FilterReduction)
	throughputBytes := effectiveEvents * float64(a.AvgRowSizeBytes)
	throughputGB := throughputBytes / (1 << 30)
	components = append(components, models.CostComponent{
		Name:        "throughput",
		Description: "event throughput after filtering",
		Unit:        "GB/day",
		UnitCost:    perGBThroughput,
		Quantity:    throughputGB,
		DailyCost:   throughputGB * perGBThroughput,
		MonthlyCost: throughputGB * perGBThroughput * 30,
	})

	retainedGB := throughputGB * float64(a.RetentionDays)
	components = append(components, models.CostComponent{
		Name:        "retained_topic_storage",
		Description: fmt.Sprintf("Kafka topic retention (%d days)", a.RetentionDays),
		Unit:        "GB-month",
		UnitCost:    perGBMonth,
		Quantity:    retainedGB,
		DailyCost:   retainedGB * perGBMonth / 30,
		MonthlyCost: retainedGB * perGBMonth,
	})

	if a.FilterReduction > 0 || a.HasAggregation {
		capacityUnits := 1.0
		if a.HasAggregation {
			capacityUnits = 2.0
		}
		components = append(components, models.CostComponent{
			Name:        "stream_processor",
			Description: "ksqlDB capacity for filter/aggregation transforms",
			Unit:        "capacity-unit-hour",
			UnitCost:    perCapacityUnitHour,
			Quantity:    capacityUnits * 24,
			DailyCost:   capacityUnits * 24 * perCapacityUnitHour,
			MonthlyCost: capacityUnits * 24 * perCapacityUnitHour * 30,
		})
		notes = append(notes, "stream processor cost included: pipeline applies a filter or aggregation transform")
	}

	sinkStorageGB := (throughputGB * 30) // sink retains cumulative data; approximate with one month accrual
	components = append(components, models.CostComponent{
		Name:        "sink_storage",
		Description: "ClickHouse sink table storage",
		Unit:        "GB-month",
		UnitCost:    perGBMonth,
		Quantity:    sinkStorageGB,
		DailyCost:   sinkStorageGB * perGBMonth / 30,
		MonthlyCost: sinkStorageGB * perGBMonth,
	})

	if in.RowCountEstimate == 0 {
		notes = append(notes, "events-per-day defaulted from a zero row-count estimate; expect the estimate to be revised after first discovery run")
	}

	var daily, monthly float64
	for _, c := range components {
		daily += c.DailyCost
		monthly += c.MonthlyCost
	}

	return models.CostEstimate{
		Components:   components,
		DailyTotal:   daily,
		MonthlyTotal: monthly,
		YearlyTotal:  monthly * 12,
		Notes:        notes,
		Assumptions:  a,
	}, nil
}

// CompareWithFilter estimates the same pipeline with and without a
// candidate filter-reduction fraction and reports the savings.
func (e *Estimator) CompareWithFilter(in Input, filterReduction float64) (models.CostComparison, error) {
	without := in
	without.Assumptions.FilterReduction = 0
	withoutEstimate, err := e.Estimate(without)
	if err != nil {
		return models.CostComparison{}, err
	}

	with := in
	with.Assumptions.FilterReduction = filterReduction
	withEstimate, err := e.Estimate(with)
	if err != nil {
		return models.CostComparison{}, err
	}

	return models.CostComparison{
		WithoutFilter: withoutEstimate,
		WithFilter:    withEstimate,
		Savings:       withoutEstimate.MonthlyTotal - withEstimate.MonthlyTotal,
	}, nil
}

func applyDefaults(in Input) models.CostAssumptions {
	a := in.Assumptions

	if a.EventsPerDay == 0 {
		a.EventsPerDay = int64(float64(in.RowCountEstimate) * defaultChangeFraction)
	}
	if a.AvgRowSizeBytes == 0 {
		a.AvgRowSizeBytes = int64(defaultAvgRowSizeBytes * float64(max(in.ColumnCount, 1)))
	}
	if a.SourceTaskCount == 0 {
		a.SourceTaskCount = 1
	}
	if a.SinkTaskCount == 0 {
		a.SinkTaskCount = 1
	}
	if a.RetentionDays == 0 {
		a.RetentionDays = defaultRetentionDays
	}
	return a
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func taskComponent(name, description string, quantity, perTaskDay float64) models.CostComponent {
	return models.CostComponent{
		Name:        name,
		Description: description,
		Unit:        "task-day",
		UnitCost:    perTaskDay,
		Quantity:    quantity,
		DailyCost:   quantity * perTaskDay,
		MonthlyCost: quantity * perTaskDay * 30,
	}
}
