package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fibermap/internal/codec"
	"fibermap/internal/domain"
	"fibermap/internal/repository"
	"fibermap/internal/topology"
)

// newTestRepo creates an in-memory SQLite repository for testing
func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		repo.Close()
	})
	return repo
}

func sampleDocument(t *testing.T) *codec.Document {
	t.Helper()
	loc := &domain.Coordinate{Lat: -6.2, Lng: 106.8}
	reg := topology.New()
	drafts := []domain.Draft{
		{Name: "OLT Central", Kind: "olt", Location: loc, CapacityPorts: 4},
		{Name: "S1", Kind: "splitter", Location: loc, ParentID: "OLT001", SplitRatio: "1:8"},
		{Name: "Budi", Kind: "customer", Location: loc, ParentID: "SPL001", PlanLabel: "Home 50"},
		{Name: "Trunk", Kind: "route", Path: []domain.Coordinate{{Lat: 1, Lng: 1}, {Lat: 1.5, Lng: 1.5}}, CapacityStrands: 12},
		{Name: "Intermittent", Kind: "complaint", Location: loc, ParentID: "CUS001"},
	}
	for _, d := range drafts {
		_, err := reg.Create(d)
		require.NoError(t, err, d.Name)
	}
	doc, err := codec.Export(reg, time.Now())
	require.NoError(t, err)
	return doc
}

func TestEmptyStore(t *testing.T) {
	repo := newTestRepo(t)

	doc, err := repo.LoadTopology(context.Background())
	require.NoError(t, err)
	assert.Zero(t, doc.Len())
	assert.Equal(t, codec.SchemaVersion, doc.SchemaVersion)

	reg, err := codec.Import(doc)
	require.NoError(t, err)
	assert.Zero(t, reg.Len())
}

func TestSaveAndLoadTopology(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	doc := sampleDocument(t)

	require.NoError(t, repo.SaveTopology(ctx, doc))

	loaded, err := repo.LoadTopology(ctx)
	require.NoError(t, err)
	assert.Equal(t, doc.Revision, loaded.Revision)
	assert.Equal(t, map[string]int{"head_end": 1, "splitter": 1, "customer_drop": 1, "fiber_route": 1, "complaint": 1}, loaded.Sequences)
	assert.Empty(t, loaded.Checksum)
	require.Len(t, loaded.HeadEnds, 1)
	require.Len(t, loaded.Splitters, 1)
	require.Len(t, loaded.CustomerDrops, 1)
	require.Len(t, loaded.FiberRoutes, 1)
	require.Len(t, loaded.Complaints, 1)
	assert.Equal(t, "SPL001", loaded.CustomerDrops[0].ParentSplitterID)
	assert.Equal(t, "1:8", loaded.Splitters[0].SplitRatio)
	assert.Len(t, loaded.FiberRoutes[0].Path, 2)

	reg, err := codec.Import(loaded)
	require.NoError(t, err)
	assert.Equal(t, 5, reg.Len())
	el, err := reg.Get("OLT001")
	require.NoError(t, err)
	assert.Equal(t, 1, el.(*domain.HeadEnd).UsedPorts)
}

func TestSaveReplacesPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.SaveTopology(ctx, sampleDocument(t)))

	smaller := sampleDocument(t)
	smaller.Complaints = smaller.Complaints[:0]
	smaller.FiberRoutes = smaller.FiberRoutes[:0]
	require.NoError(t, repo.SaveTopology(ctx, smaller))

	loaded, err := repo.LoadTopology(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, loaded.Len())
	assert.Empty(t, loaded.Complaints)
}

func TestSaveIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	require.NoError(t, repo.SaveTopology(ctx, sampleDocument(t)))

	broken := sampleDocument(t)
	broken.Splitters = append(broken.Splitters, broken.Splitters[0]) // duplicate primary key
	assert.Error(t, repo.SaveTopology(ctx, broken))

	loaded, err := repo.LoadTopology(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Len(), "failed save leaves previous snapshot")
}

func TestMetadata(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	var v map[string]bool
	found, err := repo.GetMeta(ctx, "layers", &v)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, repo.SetMeta(ctx, "layers", map[string]bool{"splitter": false}))
	require.NoError(t, repo.SetMeta(ctx, "layers", map[string]bool{"splitter": true}))

	found, err = repo.GetMeta(ctx, "layers", &v)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, map[string]bool{"splitter": true}, v)
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)
	at := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, repo.AppendHistory(ctx, repository.HistoryEntry{Op: "create", ElementID: "OLT001", Revision: 1, At: at}))
	require.NoError(t, repo.AppendHistory(ctx, repository.HistoryEntry{Op: "set_status", ElementID: "OLT001", Revision: 2, Detail: "maintenance"}))
	require.NoError(t, repo.AppendHistory(ctx, repository.HistoryEntry{Op: "import", Revision: 3}))

	all, err := repo.ListHistory(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "import", all[0].Op)
	assert.Empty(t, all[0].ElementID)
	assert.Equal(t, "maintenance", all[1].Detail)
	assert.Equal(t, at, all[2].At)
	assert.NotEmpty(t, all[2].ID)
	assert.NotEqual(t, all[1].ID, all[2].ID)

	latest, err := repo.ListHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, uint64(3), latest[0].Revision)
}

func TestFileDatabasePersists(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fibermap.db")

	repo, err := New(path)
	require.NoError(t, err)
	require.NoError(t, repo.SaveTopology(ctx, sampleDocument(t)))
	require.NoError(t, repo.Close())

	reopened, err := New(path)
	require.NoError(t, err)
	defer reopened.Close()

	loaded, err := reopened.LoadTopology(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, loaded.Len())
}
