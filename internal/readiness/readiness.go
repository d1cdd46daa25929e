// Package readiness implements the Readiness Prober: provider
// detection and execution of a source descriptor's probe expressions plus
// per-table CDC-eligibility checks.
package readiness

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/bkvaiude/dataflow-ctl/internal/connectors/sourcedb"
	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// SourceLookup resolves a source kind to its descriptor, narrowed from
// registry.Registry.
type SourceLookup interface {
	Source(name string) (models.SourceDescriptor, error)
}

// Opener resolves a credential to its decrypted connection secret, narrowed
// from vault.Vault.
type Opener interface {
	Open(ctx context.Context, owner, credentialID string) (*models.CredentialSecret, error)
}

// Prober runs readiness checks against a source database.
type Prober struct {
	open        Opener
	registry    SourceLookup
	dialTimeout time.Duration
	log         *slog.Logger

	nowUnix func() int64
}

// New constructs a Prober.
func New(open Opener, registry SourceLookup, dialTimeout time.Duration, log *slog.Logger) *Prober {
	if log == nil {
		log = slog.Default()
	}
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}
	return &Prober{open: open, registry: registry, dialTimeout: dialTimeout, log: log, nowUnix: func() int64 { return time.Now().Unix() }}
}

// Run connects to the source, detects its provider, executes the matching
// descriptor's probes, runs per-table checks, and aggregates recommendations.
func (p *Prober) Run(ctx context.Context, owner, credentialID, sourceKind string, tables []models.TableRef) (*models.ReadinessResult, error) {
	secret, err := p.open.Open(ctx, owner, credentialID)
	if err != nil {
		return nil, err
	}

	conn, err := sourcedb.Dial(ctx, *secret, p.dialTimeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	version, err := conn.ServerVersion(ctx)
	if err != nil {
		return nil, err
	}

	settings, err := conn.SettingNames(ctx)
	if err != nil {
		return nil, err
	}
	provider := detectProvider(settings, version)

	descriptor, err := p.registry.Source(sourceKind)
	if err != nil {
		return nil, err
	}

	result := &models.ReadinessResult{
		Provider:      provider,
		ServerVersion: version,
		OverallReady:  true,
		CheckedAt:     p.nowUnix(),
	}

	for _, probe := range descriptor.ReadinessProbes {
		check := p.runProbe(ctx, conn, probe)
		result.Checks = append(result.Checks, check)
		if !check.Passed {
			result.OverallReady = false
		}
	}

	hasReplication, err := conn.HasReplicationPrivilege(ctx)
	if err != nil {
		return nil, err
	}
	replicationCheck := models.CheckResult{
		Name:     "replication_privilege",
		Passed:   hasReplication,
		Expected: "true",
		Actual:   strconv.FormatBool(hasReplication),
	}
	if !hasReplication {
		replicationCheck.FixInstruction = "grant the REPLICATION role attribute to the connecting user"
		result.OverallReady = false
	}
	result.Checks = append(result.Checks, replicationCheck)

	for _, ref := range tables {
		exists, hasPK, identity, err := conn.TableReadiness(ctx, ref)
		if err != nil {
			return nil, err
		}
		ready := exists && models.CDCEligible(hasPK, identity)
		if !ready {
			result.OverallReady = false
		}
		result.TableChecks = append(result.TableChecks, models.TableCheckResult{
			Schema:          ref.Schema,
			Table:           ref.Table,
			Exists:          exists,
			HasPrimaryKey:   hasPK,
			ReplicaIdentity: identity,
			Ready:           ready,
		})
	}

	result.Recommendations = buildRecommendations(result)
	return result, nil
}

func (p *Prober) runProbe(ctx context.Context, conn *sourcedb.Conn, probe models.ProbeExpression) models.CheckResult {
	actual, err := conn.RunProbeQuery(ctx, probe.Query)
	if err != nil {
		p.log.WarnContext(ctx, "readiness probe query failed", slog.String("probe", probe.Name), slog.String("error", err.Error()))
		return models.CheckResult{Name: probe.Name, Passed: false, Expected: probe.Expected, Actual: "", FixInstruction: "probe query failed: " + err.Error()}
	}

	passed := evaluateExpected(actual, probe.Expected)
	check := models.CheckResult{Name: probe.Name, Passed: passed, Expected: probe.Expected, Actual: actual}
	if !passed {
		check.FixInstruction = fmt.Sprintf("set %s to satisfy %s (currently %s)", probe.Name, probe.Expected, actual)
	}
	return check
}

// evaluateExpected supports exact-match expectations ("logical") and
// numeric-threshold expectations (">0").
func evaluateExpected(actual, expected string) bool {
	expected = strings.TrimSpace(expected)
	actual = strings.TrimSpace(actual)

	if strings.HasPrefix(expected, ">") {
		threshold, err := strconv.Atoi(strings.TrimPrefix(expected, ">"))
		if err != nil {
			return false
		}
		actualNum, err := strconv.Atoi(actual)
		if err != nil {
			return false
		}
		return actualNum > threshold
	}

	return strings.EqualFold(actual, expected)
}

func detectProvider(settings []string, version string) models.ProviderKind {
	for _, name := range settings {
		switch {
		case strings.HasPrefix(name, "rds."):
			return models.ProviderAWSRDS
		case strings.HasPrefix(name, "cloudsql."):
			return models.ProviderGoogleCloudSQL
		case strings.HasPrefix(name, "azure."):
			return models.ProviderAzure
		}
	}
	lower := strings.ToLower(version)
	switch {
	case strings.Contains(lower, "rds"):
		return models.ProviderAWSRDS
	case strings.Contains(lower, "google"):
		return models.ProviderGoogleCloudSQL
	case strings.Contains(lower, "azure"):
		return models.ProviderAzure
	}
	return models.ProviderSelfHosted
}

func buildRecommendations(r *models.ReadinessResult) []models.Recommendation {
	var recs []models.Recommendation

	for _, c := range r.Checks {
		if c.Passed {
			continue
		}
		severity := models.RecommendationWarning
		switch c.Name {
		case "wal_level", "replication_privilege":
			severity = models.RecommendationCritical
		case "max_replication_slots", "max_wal_senders":
			severity = models.RecommendationWarning
		}
		msg := c.FixInstruction
		if msg == "" {
			msg = fmt.Sprintf("%s check failed: expected %s, got %s", c.Name, c.Expected, c.Actual)
		}
		recs = append(recs, models.Recommendation{Severity: severity, Message: msg})
	}

	for _, tc := range r.TableChecks {
		if tc.Ready {
			continue
		}
		msg := fmt.Sprintf("%s.%s is not CDC-ready", tc.Schema, tc.Table)
		switch {
		case !tc.Exists:
			msg = fmt.Sprintf("%s.%s does not exist", tc.Schema, tc.Table)
		case !tc.HasPrimaryKey:
			msg = fmt.Sprintf("%s.%s has no primary key", tc.Schema, tc.Table)
		case tc.ReplicaIdentity == models.ReplicaIdentityNothing:
			msg = fmt.Sprintf("%s.%s has replica identity NOTHING; set REPLICA IDENTITY FULL", tc.Schema, tc.Table)
		}
		recs = append(recs, models.Recommendation{Severity: models.RecommendationHigh, Message: msg})
	}

	priority := map[models.RecommendationSeverity]int{
		models.RecommendationCritical: 0,
		models.RecommendationWarning:  1,
		models.RecommendationHigh:     2,
	}
	for i := 1; i < len(recs); i++ {
		for j := i; j > 0 && priority[recs[j].Severity] < priority[recs[j-1].Severity]; j-- {
			recs[j], recs[j-1] = recs[j-1], recs[j]
		}
	}

	return recs
}
