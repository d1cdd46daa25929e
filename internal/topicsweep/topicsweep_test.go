package topicsweep

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	cases := map[string]Category{
		"__consumer_offsets":            CategorySystem,
		"connect-configs":               CategoryConnectInternal,
		"_confluent-ksql-foo_query":     CategoryProcessorInternal,
		"dataflow_aaa.public.t":         CategoryPipelineOwned,
		"enriched_bbb.joined":           CategoryEnriched,
		"some-other-topic":              CategoryOther,
	}
	for name, want := range cases {
		assert.Equal(t, want, Classify(name), name)
	}
}

func TestPipelinePrefix(t *testing.T) {
	assert.Equal(t, "dataflow_aaa", PipelinePrefix("dataflow_aaa.public.t"))
	assert.Equal(t, "enriched_bbb", PipelinePrefix("enriched_bbb.joined"))
	assert.Equal(t, "", PipelinePrefix("connect-configs"))
}

// TestOrphanSweep mirrors spec.md scenario 6: topics dataflow_AAA and
// dataflow_BBB present, only dataflow_AAA still owned by a live pipeline.
func TestOrphanSweep(t *testing.T) {
	topics := []string{
		"dataflow_AAA.public.t",
		"dataflow_BBB.public.t",
		"__consumer_offsets",
		"connect-configs",
	}
	active := map[string]bool{"dataflow_AAA": true}

	report := Categorize(topics, active)

	assert.ElementsMatch(t, []string{"dataflow_BBB.public.t"}, report.Orphans)
	assert.ElementsMatch(t, []string{"dataflow_AAA.public.t", "dataflow_BBB.public.t"}, report.PipelineOwned)
	assert.ElementsMatch(t, []string{"__consumer_offsets"}, report.System)
	assert.ElementsMatch(t, []string{"connect-configs"}, report.ConnectInternal)
}

// TestCategorizeReportShape compares the full Report struct against an
// expectation rather than asserting field-by-field, so a future Category
// added to Categorize without a matching field in the expectation shows up
// as a diff instead of silently passing.
func TestCategorizeReportShape(t *testing.T) {
	topics := []string{
		"dataflow_AAA.public.t",
		"dataflow_BBB.public.t",
		"enriched_AAA.joined",
		"__consumer_offsets",
		"connect-configs",
		"_confluent-ksql-query",
		"some-other-topic",
	}
	active := map[string]bool{"dataflow_AAA": true, "enriched_AAA": true}

	want := Report{
		System:            []string{"__consumer_offsets"},
		ConnectInternal:   []string{"connect-configs"},
		ProcessorInternal: []string{"_confluent-ksql-query"},
		PipelineOwned:     []string{"dataflow_AAA.public.t", "dataflow_BBB.public.t"},
		Enriched:          []string{"enriched_AAA.joined"},
		Other:             []string{"some-other-topic"},
		Orphans:           []string{"dataflow_BBB.public.t"},
	}

	got := Categorize(topics, active)

	sortStrings := cmpopts.SortSlices(func(a, b string) bool { return a < b })
	if diff := cmp.Diff(want, got, sortStrings); diff != "" {
		t.Errorf("Categorize() mismatch (-want +got):\n%s", diff)
	}
}

func TestNuclearTargets(t *testing.T) {
	topics := []string{
		"dataflow_AAA.public.t",
		"enriched_BBB.joined",
		"__consumer_offsets",
		"ksql-internal-topic",
	}
	got := NuclearTargets(topics)
	assert.ElementsMatch(t, []string{"dataflow_AAA.public.t", "enriched_BBB.joined"}, got)
}
