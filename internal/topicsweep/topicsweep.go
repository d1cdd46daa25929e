// Package topicsweep implements the broker-topic maintenance utility
// described in spec §6: enumerate every topic on the broker, categorize
// it against the set of prefixes owned by non-deleted pipelines, and
// compute the orphan set — pipeline-owned topics whose prefix no longer
// belongs to any pipeline the control plane still knows about.
//
// The categorization and orphan computation here are pure functions over
// plain strings so they can be unit tested without a broker or database;
// cmd/topic-sweep wires them to internal/connectors/broker and
// internal/storage/postgres.
package topicsweep

import "strings"

// Category classifies a single broker topic for the operator report.
type Category string

const (
	CategorySystem           Category = "system"
	CategoryConnectInternal  Category = "connect_internal"
	CategoryProcessorInternal Category = "processor_internal"
	CategoryPipelineOwned    Category = "pipeline_owned"
	CategoryEnriched         Category = "enriched"
	CategoryOther            Category = "other"
)

const (
	pipelinePrefix = "dataflow_"
	enrichedPrefix = "enriched_"
)

// systemPrefixes are broker-internal topics that must never be touched by
// the sweep regardless of pipeline state.
var systemPrefixes = []string{
	"__consumer_offsets",
	"__transaction_state",
	"__cluster_metadata",
}

var connectInternalPrefixes = []string{
	"connect-configs",
	"connect-offsets",
	"connect-status",
	"docker-connect-",
}

var processorInternalPrefixes = []string{
	"_confluent-ksql-",
	"ksql-",
	"_ksql-",
}

// Classify assigns a Category to a single topic name.
func Classify(name string) Category {
	for _, p := range systemPrefixes {
		if name == p || strings.HasPrefix(name, p) {
			return CategorySystem
		}
	}
	for _, p := range connectInternalPrefixes {
		if strings.HasPrefix(name, p) {
			return CategoryConnectInternal
		}
	}
	for _, p := range processorInternalPrefixes {
		if strings.HasPrefix(name, p) {
			return CategoryProcessorInternal
		}
	}
	switch {
	case strings.HasPrefix(name, enrichedPrefix):
		return CategoryEnriched
	case strings.HasPrefix(name, pipelinePrefix):
		return CategoryPipelineOwned
	default:
		return CategoryOther
	}
}

// PipelinePrefix extracts the `dataflow_<hex>` or `enriched_<hex>` prefix
// a topic belongs to, or "" if the topic is not pipeline-owned.
func PipelinePrefix(name string) string {
	switch Classify(name) {
	case CategoryPipelineOwned:
		return firstSegment(name, pipelinePrefix)
	case CategoryEnriched:
		return firstSegment(name, enrichedPrefix)
	default:
		return ""
	}
}

// firstSegment returns prefix+hex, where hex is the run of characters up
// to (not including) the next '.' boundary that starts a table name, e.g. "dataflow_abc123.public.orders" -> "dataflow_abc123".
func firstSegment(name, prefix string) string {
	rest := strings.TrimPrefix(name, prefix)
	if i := strings.IndexByte(rest, '.'); i >= 0 {
		return prefix + rest[:i]
	}
	return name
}

// Report is the categorized view of a broker topic listing.
type Report struct {
	System           []string
	ConnectInternal  []string
	ProcessorInternal []string
	PipelineOwned    []string
	Enriched         []string
	Other            []string
	Orphans          []string
}

// Categorize buckets every topic name into a Report and computes the
// orphan set: pipeline-owned/enriched topics whose prefix is absent from
// activePrefixes (the set of `dataflow_<hex>`/`enriched_<hex>` prefixes
// derived from every non-deleted pipeline's models.PipelineHex).
func Categorize(topics []string, activePrefixes map[string]bool) Report {
	var r Report
	for _, name := range topics {
		switch Classify(name) {
		case CategorySystem:
			r.System = append(r.System, name)
		case CategoryConnectInternal:
			r.ConnectInternal = append(r.ConnectInternal, name)
		case CategoryProcessorInternal:
			r.ProcessorInternal = append(r.ProcessorInternal, name)
		case CategoryEnriched:
			r.Enriched = append(r.Enriched, name)
			if !activePrefixes[PipelinePrefix(name)] {
				r.Orphans = append(r.Orphans, name)
			}
		case CategoryPipelineOwned:
			r.PipelineOwned = append(r.PipelineOwned, name)
			if !activePrefixes[PipelinePrefix(name)] {
				r.Orphans = append(r.Orphans, name)
			}
		default:
			r.Other = append(r.Other, name)
		}
	}
	return r
}

// NuclearTargets returns every dataflow-prefixed topic (pipeline-owned or
// enriched) regardless of the pipeline table, for the --nuclear mode that
// deletes all dataflow-prefixed topics unconditionally.
func NuclearTargets(topics []string) []string {
	var out []string
	for _, name := range topics {
		switch Classify(name) {
		case CategoryPipelineOwned, CategoryEnriched:
			out = append(out, name)
		}
	}
	return out
}
