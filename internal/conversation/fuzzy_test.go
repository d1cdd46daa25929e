package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

func TestMatchCredentialsExactNameWins(t *testing.T) {
	candidates := []models.Credential{
		{ID: "c1", Name: "billing-prod"},
		{ID: "c2", Name: "analytics-prod"},
	}
	matches := MatchCredentials("billing prod", candidates)
	require.NotEmpty(t, matches)
	assert.Equal(t, "c1", matches[0].ID)
}

func TestMatchCredentialsRejectsBelowThreshold(t *testing.T) {
	candidates := []models.Credential{{ID: "c1", Name: "billing-prod"}}
	matches := MatchCredentials("zzz totally unrelated string", candidates)
	assert.Empty(t, matches)
}

func TestMatchTablesExactTier(t *testing.T) {
	candidates := []models.DiscoveredTable{
		{ID: "t1", Schema: "public", Table: "orders"},
		{ID: "t2", Schema: "public", Table: "customers"},
	}
	best, tier := MatchTables("orders", candidates)
	require.NotNil(t, best)
	assert.Equal(t, "t1", best.ID)
	assert.Equal(t, MatchExact, tier)
}

func TestMatchTablesSuggestedTier(t *testing.T) {
	candidates := []models.DiscoveredTable{
		{ID: "t1", Schema: "public", Table: "order_items"},
	}
	_, tier := MatchTables("order stuff", candidates)
	assert.Equal(t, MatchSuggested, tier)
}

func TestMatchTablesNoneWhenNoCandidates(t *testing.T) {
	best, tier := MatchTables("orders", nil)
	assert.Nil(t, best)
	assert.Equal(t, MatchNone, tier)
}

func TestLevenshteinDistance(t *testing.T) {
	assert.Equal(t, 0, levenshtein("orders", "orders"))
	assert.Equal(t, 1, levenshtein("orders", "order"))
	assert.Equal(t, 3, levenshtein("kitten", "sitting"))
}
