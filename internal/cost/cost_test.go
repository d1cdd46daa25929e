package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

type fakeSinks struct {
	descriptor models.SinkDescriptor
	err        error
}

func (f *fakeSinks) Sink(name string) (models.SinkDescriptor, error) {
	if f.err != nil {
		return models.SinkDescriptor{}, f.err
	}
	return f.descriptor, nil
}

func testSink() *fakeSinks {
	return &fakeSinks{descriptor: models.SinkDescriptor{
		Name: "clickhouse",
		CostFactors: map[string]float64{
			"per_task_day":           0.50,
			"per_gb_month":           0.023,
			"per_gb_throughput":      0.08,
			"per_capacity_unit_hour": 0.015,
		},
	}}
}

func TestEstimateDefaultsFromRowCount(t *testing.T) {
	e := New(testSink())
	estimate, err := e.Estimate(Input{
		RowCountEstimate: 1_000_000,
		ColumnCount:      10,
		Assumptions:      models.CostAssumptions{SinkKind: "clickhouse"},
	})
	require.NoError(t, err)
	assert.Greater(t, estimate.DailyTotal, 0.0)
	assert.Greater(t, estimate.MonthlyTotal, estimate.DailyTotal)
	assert.InDelta(t, estimate.MonthlyTotal*12, estimate.YearlyTotal, 0.001)
	assert.Equal(t, int64(100_000), estimate.Assumptions.EventsPerDay)
}

func TestEstimateIncludesStreamProcessorWhenFiltering(t *testing.T) {
	e := New(testSink())
	estimate, err := e.Estimate(Input{
		RowCountEstimate: 1_000_000,
		ColumnCount:      10,
		Assumptions:      models.CostAssumptions{SinkKind: "clickhouse", FilterReduction: 0.5},
	})
	require.NoError(t, err)

	found := false
	for _, c := range estimate.Components {
		if c.Name == "stream_processor" {
			found = true
		}
	}
	assert.True(t, found)
	assert.NotEmpty(t, estimate.Notes)
}

func TestEstimateOmitsStreamProcessorWithoutTransform(t *testing.T) {
	e := New(testSink())
	estimate, err := e.Estimate(Input{
		RowCountEstimate: 1_000_000,
		ColumnCount:      10,
		Assumptions:      models.CostAssumptions{SinkKind: "clickhouse"},
	})
	require.NoError(t, err)

	for _, c := range estimate.Components {
		assert.NotEqual(t, "stream_processor", c.Name)
	}
}

func TestEstimateUnknownSinkPropagatesError(t *testing.T) {
	e := New(&fakeSinks{err: models.ErrUnknownModule})
	_, err := e.Estimate(Input{Assumptions: models.CostAssumptions{SinkKind: "bogus"}})
	assert.ErrorIs(t, err, models.ErrUnknownModule)
}

func TestCompareWithFilterShowsSavings(t *testing.T) {
	e := New(testSink())
	cmp, err := e.CompareWithFilter(Input{
		RowCountEstimate: 1_000_000,
		ColumnCount:      10,
		Assumptions:      models.CostAssumptions{SinkKind: "clickhouse"},
	}, 0.5)
	require.NoError(t, err)
	assert.Greater(t, cmp.Savings, 0.0)
	assert.Greater(t, cmp.WithoutFilter.MonthlyTotal, cmp.WithFilter.MonthlyTotal)
}
