package readiness

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

func TestEvaluateExpectedExactMatch(t *testing.T) {
	assert.True(t, evaluateExpected("logical", "logical"))
	assert.True(t, evaluateExpected("LOGICAL", "logical"))
	assert.False(t, evaluateExpected("replica", "logical"))
}

func TestEvaluateExpectedThreshold(t *testing.T) {
	assert.True(t, evaluateExpected("4", ">0"))
	assert.False(t, evaluateExpected("0", ">0"))
	assert.False(t, evaluateExpected("not-a-number", ">0"))
}

func TestDetectProviderFromSettingPrefix(t *testing.T) {
	assert.Equal(t, models.ProviderAWSRDS, detectProvider([]string{"rds.force_ssl"}, "PostgreSQL 14.1"))
	assert.Equal(t, models.ProviderGoogleCloudSQL, detectProvider([]string{"cloudsql.enable_pgaudit"}, "PostgreSQL 14.1"))
	assert.Equal(t, models.ProviderAzure, detectProvider([]string{"azure.extensions"}, "PostgreSQL 14.1"))
	assert.Equal(t, models.ProviderSelfHosted, detectProvider([]string{"shared_buffers"}, "PostgreSQL 14.1 on x86_64-pc-linux-gnu"))
}

func TestDetectProviderFromVersionString(t *testing.T) {
	assert.Equal(t, models.ProviderAWSRDS, detectProvider(nil, "PostgreSQL 14.1 (Amazon RDS)"))
}

func TestBuildRecommendationsPrioritizesCriticalFirst(t *testing.T) {
	result := &models.ReadinessResult{
		Checks: []models.CheckResult{
			{Name: "max_replication_slots", Passed: false, FixInstruction: "raise max_replication_slots"},
			{Name: "wal_level", Passed: false, FixInstruction: "set wal_level=logical"},
		},
	}

	recs := buildRecommendations(result)
	if assert.Len(t, recs, 2) {
		assert.Equal(t, models.RecommendationCritical, recs[0].Severity)
		assert.Equal(t, models.RecommendationWarning, recs[1].Severity)
	}
}

func TestBuildRecommendationsForTableChecks(t *testing.T) {
	result := &models.ReadinessResult{
		TableChecks: []models.TableCheckResult{
			{Schema: "public", Table: "orders", Exists: true, HasPrimaryKey: false},
			{Schema: "public", Table: "ghost", Exists: false},
		},
	}

	recs := buildRecommendations(result)
	if assert.Len(t, recs, 2) {
		for _, r := range recs {
			assert.Equal(t, models.RecommendationHigh, r.Severity)
		}
	}
}
