package loader

import (
	"context"
	"fmt"
	"log"

	"github.com/clusterview/server/internal/model"
	"github.com/clusterview/server/internal/store"
)

// Bootstrap performs the initial bulk population of st from doc.
func Bootstrap(ctx context.Context, st *store.Store, doc *model.Document) error {
	st.Initialize(ctx)

	if err := st.SaveHits(ctx, doc.Hits); err != nil {
		return fmt.Errorf("failed to save hits: %w", err)
	}
	if err := st.SaveClusters(ctx, doc.Clusters); err != nil {
		return fmt.Errorf("failed to save clusters: %w", err)
	}
	if doc.Meta != nil {
		if err := st.SaveMeta(ctx, doc.Meta); err != nil {
			return fmt.Errorf("failed to save meta: %w", err)
		}
	}

	log.Printf("[Loader] stored %d hits, %d clusters, %d groups (durable=%v)",
		len(doc.Hits), len(doc.Clusters), len(doc.Clustering), st.Durable())
	return nil
}
