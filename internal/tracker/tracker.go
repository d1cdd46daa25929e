// Package tracker implements the Resource Tracker: a durable ledger
// of externally-created artifacts per pipeline, their fixed teardown
// order, and which of them are cost-relevant.
package tracker

import (
	"context"
	"fmt"
	"sort"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

// Store is the persistence dependency the Tracker needs from the
// repository layer.
type Store interface {
	CreateTrackedResource(ctx context.Context, r *models.TrackedResource) (string, error)
	UpdateTrackedResourceStatus(ctx context.Context, id string, status models.ResourceStatus, errMsg string) error
	ListTrackedResources(ctx context.Context, pipelineID string) ([]models.TrackedResource, error)
}

// Tracker is the Resource Tracker service.
type Tracker struct {
	store Store
}

// New constructs a Tracker.
func New(store Store) *Tracker {
	return &Tracker{store: store}
}

// Track records a newly-provisioned external artifact against a pipeline.
func (t *Tracker) Track(ctx context.Context, pipelineID string, kind models.ResourceKind, externalID, name string, metadata map[string]any, dependsOn []string) (string, error) {
	r := &models.TrackedResource{
		PipelineID: pipelineID,
		Kind:       kind,
		ExternalID: externalID,
		Name:       name,
		Status:     models.ResourceStatusCreating,
		Metadata:   metadata,
		DependsOn:  dependsOn,
	}
	id, err := t.store.CreateTrackedResource(ctx, r)
	if err != nil {
		return "", fmt.Errorf("track resource: %w", err)
	}
	return id, nil
}

// Mark transitions a tracked resource's lifecycle status, optionally
// recording an error detail (required when status is failed).
func (t *Tracker) Mark(ctx context.Context, resourceID string, status models.ResourceStatus, errMsg string) error {
	return t.store.UpdateTrackedResourceStatus(ctx, resourceID, status, errMsg)
}

// DeletionOrder returns a pipeline's active resources in fixed teardown
// order: the kind order from models.DeletionRank, and within a kind,
// resources that more active resources depend on sort first.
func (t *Tracker) DeletionOrder(ctx context.Context, pipelineID string) ([]models.TrackedResource, error) {
	listed, err := t.store.ListTrackedResources(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list tracked resources: %w", err)
	}

	all := make([]models.TrackedResource, 0, len(listed))
	for _, r := range listed {
		if r.Status == models.ResourceStatusActive {
			all = append(all, r)
		}
	}

	dependentCount := make(map[string]int, len(all))
	for _, r := range all {
		for _, dep := range r.DependsOn {
			dependentCount[dep]++
		}
	}

	sort.SliceStable(all, func(i, j int) bool {
		ri, rj := models.DeletionRank(all[i].Kind), models.DeletionRank(all[j].Kind)
		if ri != rj {
			return ri < rj
		}
		return dependentCount[all[i].ID] > dependentCount[all[j].ID]
	})

	return all, nil
}

// costRelevantKinds are the tracked-resource kinds that recur as billable
// line items: warehouse storage/compute and per-connector-task cost. ksqlDB
// objects, alert rules, and Debezium slot/publication metadata carry no
// direct unit cost of their own in the Cost Estimator's model.
var costRelevantKinds = map[models.ResourceKind]bool{
	models.ResourceWarehouseTable:    true,
	models.ResourceWarehouseDatabase: true,
	models.ResourceSourceConnector:   true,
	models.ResourceSinkConnector:     true,
	models.ResourceKafkaTopic:        true,
}

// CostRelevant returns the subset of a pipeline's active resources the Cost
// Estimator should price.
func (t *Tracker) CostRelevant(ctx context.Context, pipelineID string) ([]models.TrackedResource, error) {
	all, err := t.store.ListTrackedResources(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list tracked resources: %w", err)
	}

	var out []models.TrackedResource
	for _, r := range all {
		if r.Status == models.ResourceStatusActive && costRelevantKinds[r.Kind] {
			out = append(out, r)
		}
	}
	return out, nil
}

// ResidualAfterDelete reports any tracked resource still failed/orphaned
// after a pipeline reaches deleted status, per the invariant that a deleted
// pipeline must carry no active tracked resource.
func (t *Tracker) ResidualAfterDelete(ctx context.Context, pipelineID string) ([]models.TrackedResource, error) {
	all, err := t.store.ListTrackedResources(ctx, pipelineID)
	if err != nil {
		return nil, fmt.Errorf("list tracked resources: %w", err)
	}

	var residual []models.TrackedResource
	for _, r := range all {
		switch r.Status {
		case models.ResourceStatusActive:
			return nil, fmt.Errorf("pipeline %s still has active resource %s (%s)", pipelineID, r.ID, r.Kind)
		case models.ResourceStatusFailed, models.ResourceStatusOrphaned:
			residual = append(residual, r)
		}
	}
	return residual, nil
}
