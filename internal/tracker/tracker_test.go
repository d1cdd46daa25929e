package tracker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

type fakeStore struct {
	resources map[string]*models.TrackedResource
	next      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{resources: make(map[string]*models.TrackedResource)}
}

func (f *fakeStore) CreateTrackedResource(ctx context.Context, r *models.TrackedResource) (string, error) {
	f.next++
	id := "res-" + string(rune('0'+f.next))
	cp := *r
	cp.ID = id
	cp.Status = models.ResourceStatusActive
	f.resources[id] = &cp
	return id, nil
}

func (f *fakeStore) UpdateTrackedResourceStatus(ctx context.Context, id string, status models.ResourceStatus, errMsg string) error {
	r, ok := f.resources[id]
	if !ok {
		return models.ErrNotFound
	}
	r.Status = status
	r.Error = errMsg
	return nil
}

func (f *fakeStore) ListTrackedResources(ctx context.Context, pipelineID string) ([]models.TrackedResource, error) {
	var out []models.TrackedResource
	for _, r := range f.resources {
		if r.PipelineID == pipelineID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func TestTrackAndMark(t *testing.T) {
	store := newFakeStore()
	tr := New(store)

	id, err := tr.Track(context.Background(), "pipe-1", models.ResourceKafkaTopic, "ext-1", "topic", nil, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	require.NoError(t, tr.Mark(context.Background(), id, models.ResourceStatusFailed, "boom"))
	assert.Equal(t, models.ResourceStatusFailed, store.resources[id].Status)
	assert.Equal(t, "boom", store.resources[id].Error)
}

func TestDeletionOrderRespectsFixedKindOrder(t *testing.T) {
	store := newFakeStore()
	tr := New(store)

	ctx := context.Background()
	topicID, _ := tr.Track(ctx, "pipe-1", models.ResourceKafkaTopic, "t", "t", nil, nil)
	sinkID, _ := tr.Track(ctx, "pipe-1", models.ResourceSinkConnector, "s", "s", nil, nil)
	dbID, _ := tr.Track(ctx, "pipe-1", models.ResourceWarehouseDatabase, "d", "d", nil, nil)

	order, err := tr.DeletionOrder(ctx, "pipe-1")
	require.NoError(t, err)
	require.Len(t, order, 3)
	assert.Equal(t, sinkID, order[0].ID)
	assert.Equal(t, topicID, order[1].ID)
	assert.Equal(t, dbID, order[2].ID)
}

func TestDeletionOrderMoreDependentsFirstWithinKind(t *testing.T) {
	store := newFakeStore()
	tr := New(store)
	ctx := context.Background()

	tableA, _ := tr.Track(ctx, "pipe-1", models.ResourceWarehouseTable, "a", "a", nil, nil)
	tableB, _ := tr.Track(ctx, "pipe-1", models.ResourceWarehouseTable, "b", "b", nil, nil)
	tr.Track(ctx, "pipe-1", models.ResourceWarehouseDatabase, "dep1", "dep1", nil, []string{tableA})
	tr.Track(ctx, "pipe-1", models.ResourceWarehouseDatabase, "dep2", "dep2", nil, []string{tableA})

	order, err := tr.DeletionOrder(ctx, "pipe-1")
	require.NoError(t, err)

	idxA, idxB := -1, -1
	for i, r := range order {
		if r.ID == tableA {
			idxA = i
		}
		if r.ID == tableB {
			idxB = i
		}
	}
	assert.Less(t, idxA, idxB)
}

func TestCostRelevantFiltersKindAndStatus(t *testing.T) {
	store := newFakeStore()
	tr := New(store)
	ctx := context.Background()

	warehouseID, _ := tr.Track(ctx, "pipe-1", models.ResourceWarehouseTable, "w", "w", nil, nil)
	tr.Track(ctx, "pipe-1", models.ResourceKsqlStream, "k", "k", nil, nil)
	failedID, _ := tr.Track(ctx, "pipe-1", models.ResourceSinkConnector, "f", "f", nil, nil)
	require.NoError(t, tr.Mark(ctx, failedID, models.ResourceStatusFailed, "err"))

	relevant, err := tr.CostRelevant(ctx, "pipe-1")
	require.NoError(t, err)
	require.Len(t, relevant, 1)
	assert.Equal(t, warehouseID, relevant[0].ID)
}

func TestResidualAfterDeleteFailsWhenStillActive(t *testing.T) {
	store := newFakeStore()
	tr := New(store)
	ctx := context.Background()

	tr.Track(ctx, "pipe-1", models.ResourceKafkaTopic, "t", "t", nil, nil)
	_, err := tr.ResidualAfterDelete(ctx, "pipe-1")
	assert.Error(t, err)
}

func TestResidualAfterDeleteSurfacesFailedAndOrphaned(t *testing.T) {
	store := newFakeStore()
	tr := New(store)
	ctx := context.Background()

	id1, _ := tr.Track(ctx, "pipe-1", models.ResourceKafkaTopic, "t1", "t1", nil, nil)
	id2, _ := tr.Track(ctx, "pipe-1", models.ResourceSinkConnector, "t2", "t2", nil, nil)
	require.NoError(t, tr.Mark(ctx, id1, models.ResourceStatusFailed, "boom"))
	require.NoError(t, tr.Mark(ctx, id2, models.ResourceStatusOrphaned, ""))

	residual, err := tr.ResidualAfterDelete(ctx, "pipe-1")
	require.NoError(t, err)
	assert.Len(t, residual, 2)
}
