package render

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/clusterview/server/internal/model"
	"github.com/clusterview/server/internal/store"
)

func testDocument() *model.Document {
	return &model.Document{
		Hits: []model.Hit{
			{ID: 1, Name: "geneA", Start: 100, End: 400, Strand: 1, Identity: 100, Coverage: 95, Bitscore: 300, Evalue: 1e-50},
			{ID: 2, Name: "geneB", Start: 500, End: 900, Strand: -1, Identity: 50, Coverage: 80, Bitscore: 120, Evalue: 2e-8},
			{ID: 3, Name: "geneC", Start: 1000, End: 1300, Strand: 1, Identity: 0, Coverage: 40, Bitscore: 20, Evalue: 0.5},
		},
		Clusters: []model.Cluster{
			{ID: 1, OrganismName: "Escherichia coli", OrganismStrain: "K-12", Scaffold: "NC_000913", Start: 100, End: 1300, Score: 0.2, Hits: [][]int{{1}, {}, {2}}},
			{ID: 2, OrganismName: "Bacillus subtilis", OrganismStrain: "168", Scaffold: "NC_000964", Start: 100, End: 900, Score: 0.9, Hits: [][]int{{1, 2}, {3}, {}}},
			{ID: 3, OrganismName: "Bacterium", Scaffold: "scf3", Start: 1000, End: 1300, Score: 0.1, Hits: [][]int{{}, {}, {3}}},
			{ID: 4, OrganismName: "Escherichia fergusonii", Scaffold: "scf4", Start: 1, End: 10, Score: 0.15, Hits: [][]int{{1}, {}, {}}},
			{ID: 5, OrganismName: "Escherichia albertii", Scaffold: "scf5", Start: 1, End: 10, Score: 0.12, Hits: [][]int{{}, {2}, {}}},
			{ID: 6, OrganismName: "Shigella flexneri", Scaffold: "scf6", Start: 1, End: 10, Score: 0.11, Hits: [][]int{{}, {}, {3}}},
		},
		Clustering: [][]int{{1, 4, 5, 6}, {2}, {3}},
		Query: model.QuerySection{Queries: []model.Query{{Name: "q1"}, {Name: "q2"}, {Name: "q3"}}},
	}
}

func seedStore(t *testing.T, st *store.Store, doc *model.Document) {
	t.Helper()
	ctx := context.Background()
	st.Initialize(ctx)
	require.NoError(t, st.SaveHits(ctx, doc.Hits))
	require.NoError(t, st.SaveClusters(ctx, doc.Clusters))
}

func newTestEngine(t *testing.T, doc *model.Document, cache FragmentCache) *Engine {
	t.Helper()
	st := store.NewMemory()
	seedStore(t, st, doc)
	return NewEngine(EngineConfig{
		DatasetID:  "test",
		Store:      st,
		Queries:    doc.Queries(),
		Clustering: doc.Clustering,
		Cache:      cache,
	})
}

func newTestView(t *testing.T, e *Engine) *View {
	t.Helper()
	v, err := e.NewView(context.Background(), "view-1")
	require.NoError(t, err)
	return v
}

func clusterIDs(rows []*Row) []int {
	ids := make([]int, len(rows))
	for i, r := range rows {
		ids[i] = r.ClusterID
	}
	return ids
}
