// Package conversation implements the conversation and requirements layer:
// surface-pattern requirement extraction, fuzzy matching of hints against
// catalog entries, and the per-session workflow cursor that steps a user
// through pipeline construction.
package conversation

import (
	"regexp"
	"strings"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

var (
	onlyPattern  = regexp.MustCompile(`(?i)\bonly\s+([a-z0-9_]+(?:(?:\s*,\s*|\s+and\s+)[a-z0-9_]+)*)\b`)
	fromDBPattern = regexp.MustCompile(`(?i)\bfrom\s+(?:the\s+)?([a-z0-9_]+)\s+database\b`)
	alertPattern  = regexp.MustCompile(`(?i)\balert\s+(?:me\s+)?when\s+(.+?)(?:[.!?]|$)`)
	destPattern   = regexp.MustCompile(`(?i)\b(?:to|into)\s+(?:the\s+)?([a-z0-9_]+)\s+(?:warehouse|database|sink|cluster)\b`)
	aggPattern    = regexp.MustCompile(`(?i)\b(sum|count|average|avg|min|max)\s+of\s+([a-z0-9_]+)\b`)
	tableHintPattern = regexp.MustCompile(`(?i)\b(?:table|stream)\s+([a-z0-9_ ]+?)\b(?:\s|$|,|\.)`)
	notPattern    = regexp.MustCompile(`(?i)\b(?:not|except|excluding|without)\s+([a-z0-9_]+)\b`)
)

// ExtractRequirements scans a user utterance for the surface patterns this
// layer recognizes, normalizing any table-like hint (spaces to underscores)
// so it lines up with the discovered-table naming convention.
func ExtractRequirements(utterance string) models.RequirementHints {
	var hints models.RequirementHints

	if m := onlyPattern.FindStringSubmatch(utterance); m != nil {
		hints.FilterRequirement = "only " + normalizeList(m[1])
	} else if m := notPattern.FindStringSubmatch(utterance); m != nil {
		hints.FilterRequirement = "exclude " + normalizeHint(m[1])
	}

	if m := fromDBPattern.FindStringSubmatch(utterance); m != nil {
		hints.SourceHint = normalizeHint(m[1])
	}

	if m := tableHintPattern.FindStringSubmatch(utterance); m != nil {
		hints.TableHint = normalizeHint(m[1])
	}

	if m := destPattern.FindStringSubmatch(utterance); m != nil {
		hints.DestinationHint = normalizeHint(m[1])
	}

	if m := alertPattern.FindStringSubmatch(utterance); m != nil {
		hints.AlertRequirement = strings.TrimSpace(m[1])
	}

	if m := aggPattern.FindStringSubmatch(utterance); m != nil {
		hints.AggregationRequirement = strings.ToLower(m[1]) + " of " + normalizeHint(m[2])
	}

	return hints
}

// normalizeHint lowercases, trims, and replaces interior whitespace with
// underscores so a hint can be compared directly against a table/schema
// identifier.
func normalizeHint(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	return strings.Join(strings.Fields(s), "_")
}

func normalizeList(s string) string {
	replaced := strings.ReplaceAll(s, " and ", ",")
	parts := strings.Split(replaced, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = normalizeHint(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ",")
}
