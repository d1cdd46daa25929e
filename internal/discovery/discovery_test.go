package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bkvaiude/dataflow-ctl/internal/models"
)

type fakeOpener struct {
	secret *models.CredentialSecret
	err    error
}

func (f *fakeOpener) Open(ctx context.Context, owner, credentialID string) (*models.CredentialSecret, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.secret, nil
}

type fakeStore struct {
	upserted []models.DiscoveredTable
	listed   []models.DiscoveredTable
}

func (f *fakeStore) UpsertDiscoveredTable(ctx context.Context, t *models.DiscoveredTable) (string, error) {
	t.ID = "dt-" + t.Table
	f.upserted = append(f.upserted, *t)
	return t.ID, nil
}

func (f *fakeStore) ListDiscoveredTables(ctx context.Context, credentialID string) ([]models.DiscoveredTable, error) {
	return f.listed, nil
}

func TestBuildRelationshipGraph(t *testing.T) {
	tables := []models.DiscoveredTable{
		{Schema: "public", Table: "orders", ForeignKeys: []models.ForeignKey{
			{Column: "customer_id", ReferencedSchema: "public", ReferencedTable: "customers", ReferencedColumn: "id"},
		}},
		{Schema: "public", Table: "customers"},
	}

	g := buildRelationshipGraph(tables)
	assert.ElementsMatch(t, []string{"public.orders", "public.customers"}, g.Nodes)
	require.Len(t, g.Edges, 1)
	assert.Equal(t, "public.orders", g.Edges[0].FromTable)
	assert.Equal(t, "public.customers", g.Edges[0].ToTable)
	assert.Equal(t, "customer_id", g.Edges[0].ViaColumn)
}

func TestMatchesFilter(t *testing.T) {
	ref := models.TableRef{Schema: "public", Table: "orders"}
	assert.True(t, matchesFilter(ref, "public.orders"))
	assert.True(t, matchesFilter(ref, "orders"))
	assert.False(t, matchesFilter(ref, "public.customers"))
}

func TestCached(t *testing.T) {
	store := &fakeStore{listed: []models.DiscoveredTable{{Table: "orders"}}}
	d := New(&fakeOpener{}, store, time.Second, nil)

	tables, err := d.Cached(context.Background(), "cred-1")
	require.NoError(t, err)
	assert.Len(t, tables, 1)
}

func TestRunPropagatesOpenerError(t *testing.T) {
	d := New(&fakeOpener{err: models.ErrNotFound}, &fakeStore{}, time.Second, nil)
	_, err := d.Run(context.Background(), "alice", "cred-1", "")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetFilterPreviewReturnsOpenerErrorAsString(t *testing.T) {
	d := New(&fakeOpener{err: models.ErrNotFound}, &fakeStore{}, time.Second, nil)
	count, rows, previewErr := d.GetFilterPreview(context.Background(), "alice", "cred-1", "public", "orders", "amount > 100", 10)
	assert.Zero(t, count)
	assert.Nil(t, rows)
	assert.NotEmpty(t, previewErr)
}

func TestWithClockOverridesTimestamp(t *testing.T) {
	ctx := WithClock(context.Background(), 12345)
	assert.Equal(t, int64(12345), nowSeconds(ctx))
}
