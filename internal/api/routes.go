// Package api provides HTTP handlers for the clusterview server.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/clusterview/server/internal/cache"
	"github.com/clusterview/server/internal/metrics"
	"github.com/clusterview/server/internal/render"
	"github.com/clusterview/server/internal/store"
	"github.com/clusterview/server/pkg/colormap"
)

// RouterConfig contains router configuration.
type RouterConfig struct {
	Registry    *DatasetRegistry
	CORSOrigins []string
	// Templates renders pages for datasets that failed to load.
	Templates *render.Templates
	Metrics   *metrics.Collector
	Cache     *cache.Manager
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Templates == nil {
		cfg.Templates = render.MustLoadTemplates()
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	// CORS
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	r.Get("/api/datasets", datasetsHandler(cfg.Registry))
	r.Handle("/metrics", cfg.Metrics.Handler())
	if cfg.Cache != nil {
		r.Get("/api/cache/stats", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, cfg.Cache.Stats())
		})
	}

	// Dataset-scoped routes: /d/{dataset}/...
	r.Route("/d/{dataset}", func(r chi.Router) {
		r.Use(datasetMiddleware(cfg.Registry))

		r.Get("/", pageHandler(cfg.Registry, cfg.Templates, cfg.Metrics))

		r.Group(func(r chi.Router) {
			r.Use(loadedMiddleware)

			r.Route("/api", func(r chi.Router) {
				r.Get("/queries", queriesHandler)
				r.Get("/meta", metaHandler)
				r.Get("/groups", groupsHandler)
				r.Get("/clusters/{id}", clusterHandler)
				r.Get("/clusters/{id}/cells/{query}", cellHandler)
				r.Get("/clusters/{id}/diagram.svg", diagramHandler("svg", "image/svg+xml", cfg.Metrics))
				r.Get("/clusters/{id}/diagram.png", diagramHandler("png", "image/png", cfg.Metrics))
			})

			r.Route("/views/{view}", func(r chi.Router) {
				r.Use(viewMiddleware)
				r.Post("/groups/{group}/toggle", toggleHandler(cfg.Metrics))
				r.Get("/popup", popupHandler(cfg.Metrics))
				r.Get("/rows", rowsHandler)
			})
		})
	})

	return r
}

type ctxKey string

const (
	datasetKey ctxKey = "dataset"
	viewKey    ctxKey = "view"
)

// datasetMiddleware resolves the dataset from the URL and injects it into context.
func datasetMiddleware(registry *DatasetRegistry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			datasetID := chi.URLParam(r, "dataset")
			ds := registry.Get(datasetID)
			if ds == nil {
				http.Error(w, "dataset not found: "+datasetID, http.StatusNotFound)
				return
			}
			ctx := context.WithValue(r.Context(), datasetKey, ds)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// loadedMiddleware rejects data requests for a dataset that failed to load.
func loadedMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ds := getDataset(r)
		if ds == nil || ds.Engine == nil {
			msg := "dataset not loaded"
			if ds != nil && ds.LoadErr != nil {
				msg += ": " + ds.LoadErr.Error()
			}
			http.Error(w, msg, http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func viewMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewID := chi.URLParam(r, "view")
		v, ok := getDataset(r).View(viewID)
		if !ok {
			http.Error(w, "view not found: "+viewID, http.StatusNotFound)
			return
		}
		ctx := context.WithValue(r.Context(), viewKey, v)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getDataset(r *http.Request) *Dataset {
	if ds, ok := r.Context().Value(datasetKey).(*Dataset); ok {
		return ds
	}
	return nil
}

func getView(r *http.Request) *render.View {
	if v, ok := r.Context().Value(viewKey).(*render.View); ok {
		return v
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] failed to encode response: %v", err)
	}
}

// writeError maps domain errors onto HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, store.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, colormap.ErrInvalidScore):
		status = http.StatusUnprocessableEntity
	}
	if status == http.StatusInternalServerError {
		log.Printf("[API] %v", err)
	}
	http.Error(w, err.Error(), status)
}

func intParam(r *http.Request, name string) (int, error) {
	v, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil {
		return 0, invalidParam(name)
	}
	return v, nil
}

func invalidParam(name string) error {
	return errors.Join(errors.New("invalid "+name), store.ErrInvalidArgument)
}

// datasetsHandler returns the list of available datasets.
func datasetsHandler(registry *DatasetRegistry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{
			"default":  registry.DefaultDatasetID(),
			"datasets": registry.Datasets(),
			"title":    registry.Title(),
		})
	}
}

// pageHandler serves the grid page with a fresh, fully collapsed view. A
// dataset that failed to load gets a visible error page.
func pageHandler(registry *DatasetRegistry, templates *render.Templates, m *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ds := getDataset(r)
		title := registry.Title()

		if ds.LoadErr != nil || ds.Engine == nil {
			loadErr := ds.LoadErr
			if loadErr == nil {
				loadErr = errors.New("dataset not loaded")
			}
			page, err := templates.RenderError(title, loadErr)
			if err != nil {
				http.Error(w, loadErr.Error(), http.StatusInternalServerError)
				return
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.WriteHeader(http.StatusInternalServerError)
			w.Write(page)
			return
		}

		start := time.Now()
		page, err := renderPage(r.Context(), ds, title)
		m.Observe(metrics.OpPage, start, err)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "no-store")
		w.Write(page)
	}
}

func renderPage(ctx context.Context, ds *Dataset, title string) ([]byte, error) {
	v, err := ds.NewView(ctx)
	if err != nil {
		return nil, err
	}
	return v.RenderPage(ctx, render.PageOptions{
		Title:    title,
		BasePath: "/d/" + ds.ID,
	})
}

func queriesHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, getDataset(r).Engine.Queries())
}

func metaHandler(w http.ResponseWriter, r *http.Request) {
	meta, err := getDataset(r).Store.Meta(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, meta)
}

func groupsHandler(w http.ResponseWriter, r *http.Request) {
	groups, err := getDataset(r).Engine.Order(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, groups)
}

func clusterHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	c, err := getDataset(r).Store.Cluster(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, c)
}

func cellHandler(w http.ResponseWriter, r *http.Request) {
	id, err := intParam(r, "id")
	if err != nil {
		writeError(w, err)
		return
	}
	q, err := intParam(r, "query")
	if err != nil {
		writeError(w, err)
		return
	}
	hits, err := getDataset(r).Store.GetHitCellData(r.Context(), id, q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, hits)
}

func diagramHandler(format, contentType string, m *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := intParam(r, "id")
		if err != nil {
			writeError(w, err)
			return
		}
		start := time.Now()
		data, err := getDataset(r).Engine.Diagram(r.Context(), id, format)
		m.Observe(metrics.OpDiagram, start, err)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Write(data)
	}
}

type toggleResponse struct {
	*render.ToggleResult
	Inserted []template.HTML `json:"inserted"`
}

func toggleHandler(m *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		group, err := intParam(r, "group")
		if err != nil {
			writeError(w, err)
			return
		}
		v := getView(r)
		start := time.Now()
		res, err := v.Toggle(r.Context(), group)
		m.Observe(metrics.OpToggle, start, err)
		if err != nil {
			writeError(w, err)
			return
		}
		inserted, err := v.RowsHTML(res.Inserted)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, toggleResponse{ToggleResult: res, Inserted: inserted})
	}
}

func popupHandler(m *metrics.Collector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		clusterID, err := strconv.Atoi(q.Get("cluster"))
		if err != nil {
			writeError(w, invalidParam("cluster"))
			return
		}
		queryIndex, err := strconv.Atoi(q.Get("query"))
		if err != nil {
			writeError(w, invalidParam("query"))
			return
		}
		x, _ := strconv.ParseFloat(q.Get("x"), 64)
		y, _ := strconv.ParseFloat(q.Get("y"), 64)

		start := time.Now()
		content, err := getView(r).Hover(r.Context(), clusterID, queryIndex, render.Position{X: x, Y: y})
		if errors.Is(err, render.ErrSuperseded) {
			m.Superseded()
			w.WriteHeader(http.StatusNoContent)
			return
		}
		m.Observe(metrics.OpHover, start, err)
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(content.HTML))
	}
}

func rowsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]interface{}{
		"rows": getView(r).RowIDs(),
	})
}
