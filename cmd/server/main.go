// Package main is the entry point for the clusterview server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/clusterview/server/internal/api"
	"github.com/clusterview/server/internal/cache"
	"github.com/clusterview/server/internal/config"
	"github.com/clusterview/server/internal/loader"
	"github.com/clusterview/server/internal/metrics"
	"github.com/clusterview/server/internal/render"
	"github.com/clusterview/server/internal/store"
)

func main() {
	// A missing .env is fine
	_ = godotenv.Load()

	defaultConfig := os.Getenv("CLUSTERVIEW_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "config/server.yaml"
	}
	configPath := flag.String("config", defaultConfig, "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting clusterview server on port %d", cfg.Server.Port)

	ctx := context.Background()

	// Shared across all datasets
	cacheManager, err := cache.NewManager(cache.Config{
		FragmentCacheSizeMB: cfg.Cache.FragmentSizeMB,
		FragmentTTL:         time.Duration(cfg.Cache.FragmentTTLMinutes) * time.Minute,
		RecordCacheSize:     cfg.Cache.RecordCacheSize,
	})
	if err != nil {
		log.Fatalf("Failed to initialize cache: %v", err)
	}
	defer cacheManager.Close()

	templates := render.MustLoadTemplates()
	diagrams := render.NewDiagramRenderer(render.DiagramConfig{
		Width:          cfg.Render.DiagramWidth,
		Height:         cfg.Render.DiagramHeight,
		ArrowHeight:    cfg.Render.ArrowHeight,
		ArrowHeadWidth: cfg.Render.ArrowHeadWidth,
		Colormap:       cfg.Render.Colormap,
	})

	datasetIDs := cfg.Data.DatasetIDs()
	registry := api.NewDatasetRegistry(cfg.Data.DefaultDataset, datasetIDs, cfg.Server.Title, cfg.Cache.ViewCacheSize)
	defer registry.Close()

	log.Printf("Initializing %d dataset(s), default: %s", len(datasetIDs), cfg.Data.DefaultDataset)

	collector := metrics.New()
	loaded, failed := 0, 0
	for _, datasetID := range datasetIDs {
		ds := loadDataset(ctx, cfg, datasetID, cacheManager, templates, diagrams)
		if ds.LoadErr != nil {
			failed++
		} else {
			loaded++
		}
		if err := registry.Register(ds); err != nil {
			log.Fatalf("Failed to register dataset %q: %v", datasetID, err)
		}
	}
	collector.SetDatasets(loaded, failed)

	router := api.NewRouter(api.RouterConfig{
		Registry:    registry,
		CORSOrigins: cfg.Server.CORSOrigins,
		Templates:   templates,
		Metrics:     collector,
		Cache:       cacheManager,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("Server listening on http://localhost:%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// loadDataset loads one result document into its store. A document that
// cannot be loaded is kept with its error so the page can show it.
func loadDataset(
	ctx context.Context,
	cfg *config.Config,
	datasetID string,
	cacheManager *cache.Manager,
	templates *render.Templates,
	diagrams *render.DiagramRenderer,
) *api.Dataset {
	source := cfg.Data.Datasets[datasetID].Source

	doc, err := loader.Load(ctx, source)
	if err != nil {
		log.Printf("  [%s] Failed to load %s: %v", datasetID, source, err)
		return &api.Dataset{ID: datasetID, LoadErr: err}
	}

	st := store.New(store.SQLiteOpener(cfg.StorePath(datasetID)), store.WithRecordCache(cacheManager, datasetID))
	if err := loader.Bootstrap(ctx, st, doc); err != nil {
		log.Printf("  [%s] Failed to store results: %v", datasetID, err)
		st.Close()
		return &api.Dataset{ID: datasetID, LoadErr: err}
	}

	log.Printf("  [%s] Loaded from: %s (durable=%v)", datasetID, source, st.Durable())
	log.Printf("    Queries: %d, Clusters: %d, Groups: %d", len(doc.Queries()), len(doc.Clusters), len(doc.Clustering))

	return &api.Dataset{
		ID:    datasetID,
		Store: st,
		Engine: render.NewEngine(render.EngineConfig{
			DatasetID:  datasetID,
			Store:      st,
			Queries:    doc.Queries(),
			Clustering: doc.Clustering,
			Templates:  templates,
			Cache:      cacheManager,
			Diagrams:   diagrams,
		}),
	}
}
