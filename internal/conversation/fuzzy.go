package conversation

import (
	"strings"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Score thresholds from the spec: a credential hint must clear 60 to be
// accepted outright; a table hint clears 60 for an exact-confidence match
// or 40 for a merely-suggested one.
const (
	CredentialMatchThreshold = 60.0
	TableExactThreshold      = 60.0
	TableSuggestedThreshold  = 40.0
)

// MatchTier classifies how confidently a fuzzy match should be acted on.
type MatchTier int

const (
	MatchNone MatchTier = iota
	MatchSuggested
	MatchExact
)

// similarity scores two strings 0..100. There is no single silver-bullet
// metric here: exact/substring matches score highest, then token overlap
// (handles reordered or partially-specified hints like "orders tbl" vs
// "orders"), falling back to normalized edit distance for typos.
func similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if strings.Contains(b, a) || strings.Contains(a, b) {
		shorter, longer := a, b
		if len(a) > len(b) {
			shorter, longer = b, a
		}
		return 70 + 30*float64(len(shorter))/float64(len(longer))
	}

	tokenScore := tokenOverlap(a, b)
	editScore := editSimilarity(a, b)
	if tokenScore > editScore {
		return tokenScore
	}
	return editScore
}

func tokenOverlap(a, b string) float64 {
	at := tokenSet(a)
	bt := tokenSet(b)
	if len(at) == 0 || len(bt) == 0 {
		return 0
	}
	shared := 0
	for t := range at {
		if bt[t] {
			shared++
		}
	}
	union := len(at) + len(bt) - shared
	if union == 0 {
		return 0
	}
	return 100 * float64(shared) / float64(union)
}

func tokenSet(s string) map[string]bool {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == '_' || r == ' ' || r == '-'
	})
	out := make(map[string]bool, len(fields))
	for _, f := range fields {
		if f != "" {
			out[f] = true
		}
	}
	return out
}

// editSimilarity normalizes Levenshtein distance into a 0..100 score.
func editSimilarity(a, b string) float64 {
	dist := levenshtein(a, b)
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 100
	}
	return 100 * (1 - float64(dist)/float64(maxLen))
}

func levenshtein(a, b string) int {
	ar, br := []rune(a), []rune(b)
	prev := make([]int, len(br)+1)
	curr := make([]int, len(br)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ar); i++ {
		curr[0] = i
		for j := 1; j <= len(br); j++ {
			cost := 1
			if ar[i-1] == br[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := curr[j-1] + 1
			sub := prev[j-1] + cost
			curr[j] = min3(del, ins, sub)
		}
		prev, curr = curr, prev
	}
	return prev[len(br)]
}

func min3(a, b, c int) int {
	m := a
	if b < m {
		m = b
	}
	if c < m {
		m = c
	}
	return m
}

// MatchCredentials scores hint against every candidate's display name,
// returning only those clearing CredentialMatchThreshold, best first.
func MatchCredentials(hint string, candidates []models.Credential) []models.MatchCandidate {
	var out []models.MatchCandidate
	for _, c := range candidates {
		score := similarity(hint, c.Name)
		if score >= CredentialMatchThreshold {
			out = append(out, models.MatchCandidate{ID: c.ID, Label: c.Name, Score: score})
		}
	}
	sortByScoreDesc(out)
	return out
}

// MatchTables scores hint against every discovered table's qualified name,
// reporting the best candidate and its confidence tier.
func MatchTables(hint string, candidates []models.DiscoveredTable) (*models.MatchCandidate, MatchTier) {
	var best *models.MatchCandidate
	bestScore := -1.0
	for _, t := range candidates {
		label := t.Schema + "." + t.Table
		score := similarity(hint, t.Table)
		if alt := similarity(hint, label); alt > score {
			score = alt
		}
		if score > bestScore {
			bestScore = score
			best = &models.MatchCandidate{ID: t.ID, Label: label, Score: score}
		}
	}
	if best == nil {
		return nil, MatchNone
	}
	switch {
	case bestScore >= TableExactThreshold:
		return best, MatchExact
	case bestScore >= TableSuggestedThreshold:
		return best, MatchSuggested
	default:
		return best, MatchNone
	}
}

func sortByScoreDesc(candidates []models.MatchCandidate) {
	for i := 1; i < len(candidates); i++ {
		for j := i; j > 0 && candidates[j].Score > candidates[j-1].Score; j-- {
			candidates[j], candidates[j-1] = candidates[j-1], candidates[j]
		}
	}
}
