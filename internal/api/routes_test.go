package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/clusterview/server/internal/loader"
	"github.com/clusterview/server/internal/metrics"
	"github.com/clusterview/server/internal/model"
	"github.com/clusterview/server/internal/render"
	"github.com/clusterview/server/internal/store"
)

func testDocument() *model.Document {
	return &model.Document{
		Hits: []model.Hit{
			{ID: 1, Name: "geneA", Start: 100, End: 400, Strand: 1, Identity: 100, Coverage: 95, Bitscore: 300, Evalue: 1e-50},
			{ID: 2, Name: "geneB", Start: 500, End: 900, Strand: -1, Identity: 50, Coverage: 80, Bitscore: 120, Evalue: 2e-8},
		},
		Clusters: []model.Cluster{
			{ID: 1, OrganismName: "Escherichia coli", Scaffold: "NC_000913", Start: 100, End: 900, Score: 0.3, Hits: [][]int{{1}, {2}}},
			{ID: 2, OrganismName: "Bacillus subtilis", Scaffold: "NC_000964", Start: 100, End: 900, Score: 0.8, Hits: [][]int{{1, 2}, {}}},
			{ID: 3, OrganismName: "Escherichia albertii", Scaffold: "scf3", Start: 1, End: 10, Score: 0.1, Hits: [][]int{{}, {2}}},
		},
		Clustering: [][]int{{1, 3}, {2}},
		Query:      model.QuerySection{Queries: []model.Query{{Name: "q1"}, {Name: "q2"}}},
		Meta:       model.Meta{"title": "demo"},
	}
}

// testServer holds the test server and its dependencies
type testServer struct {
	server   *httptest.Server
	registry *DatasetRegistry
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	doc := testDocument()
	st := store.NewMemory()
	if err := loader.Bootstrap(ctx, st, doc); err != nil {
		t.Fatalf("Failed to bootstrap store: %v", err)
	}

	registry := NewDatasetRegistry("demo", []string{"demo", "broken"}, "Results", 8)
	mustRegister(t, registry, &Dataset{
		ID:    "demo",
		Store: st,
		Engine: render.NewEngine(render.EngineConfig{
			DatasetID:  "demo",
			Store:      st,
			Queries:    doc.Queries(),
			Clustering: doc.Clustering,
		}),
	})
	mustRegister(t, registry, &Dataset{
		ID:      "broken",
		LoadErr: errors.Join(loader.ErrLoadFailure, errors.New("unexpected status 404")),
	})

	server := httptest.NewServer(NewRouter(RouterConfig{Registry: registry, Metrics: metrics.New()}))
	t.Cleanup(server.Close)
	return &testServer{server: server, registry: registry}
}

func mustRegister(t *testing.T, registry *DatasetRegistry, ds *Dataset) {
	t.Helper()
	if err := registry.Register(ds); err != nil {
		t.Fatalf("Failed to register dataset %s: %v", ds.ID, err)
	}
}

func (ts *testServer) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, nil)
	if err != nil {
		t.Fatalf("Failed to build request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("Failed to make request: %v", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read response body: %v", err)
	}
	return resp, body
}

// assertStatusCode verifies the HTTP status code
func assertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status code %d, got %d", expected, resp.StatusCode)
	}
}

func decodeJSON(t *testing.T, body []byte, v any) {
	t.Helper()
	if err := json.Unmarshal(body, v); err != nil {
		t.Fatalf("Failed to parse JSON response: %v (%s)", err, body)
	}
}

var viewIDPattern = regexp.MustCompile(`data-view="([^"]+)"`)

func (ts *testServer) openView(t *testing.T) (string, string) {
	t.Helper()
	resp, body := ts.do(t, http.MethodGet, "/d/demo/")
	assertStatusCode(t, resp, http.StatusOK)
	m := viewIDPattern.FindSubmatch(body)
	if m == nil {
		t.Fatalf("page has no view id")
	}
	return string(m[1]), string(body)
}

func TestHealthEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/health")
	assertStatusCode(t, resp, http.StatusOK)
	if string(body) != "OK" {
		t.Errorf("Expected body 'OK', got %q", string(body))
	}
}

func TestDatasetsEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/datasets")
	assertStatusCode(t, resp, http.StatusOK)

	var result struct {
		Default  string        `json:"default"`
		Title    string        `json:"title"`
		Datasets []DatasetInfo `json:"datasets"`
	}
	decodeJSON(t, body, &result)
	if result.Default != "demo" || result.Title != "Results" {
		t.Errorf("unexpected datasets response: %+v", result)
	}
	if len(result.Datasets) != 2 || !result.Datasets[0].Loaded || result.Datasets[1].Loaded {
		t.Errorf("unexpected dataset infos: %+v", result.Datasets)
	}
}

func TestPageEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	_, page := ts.openView(t)
	if strings.Count(page, `class="cluster-row"`) != 2 {
		t.Errorf("expected 2 cluster rows")
	}
	if strings.Index(page, "B. subtilis") > strings.Index(page, "E. coli") {
		t.Errorf("expected higher score first")
	}
}

func TestPageEndpointLoadFailure(t *testing.T) {
	ts := setupTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/d/broken/")
	assertStatusCode(t, resp, http.StatusInternalServerError)
	if !strings.Contains(string(body), "Results could not be loaded") {
		t.Errorf("expected visible error page, got %q", body)
	}

	resp, _ = ts.do(t, http.MethodGet, "/d/broken/api/queries")
	assertStatusCode(t, resp, http.StatusInternalServerError)
}

func TestUnknownDataset(t *testing.T) {
	ts := setupTestServer(t)
	resp, _ := ts.do(t, http.MethodGet, "/d/missing/api/queries")
	assertStatusCode(t, resp, http.StatusNotFound)
}

func TestDataEndpoints(t *testing.T) {
	ts := setupTestServer(t)

	tests := []struct {
		name           string
		path           string
		expectedStatus int
	}{
		{"queries", "/d/demo/api/queries", http.StatusOK},
		{"meta", "/d/demo/api/meta", http.StatusOK},
		{"groups", "/d/demo/api/groups", http.StatusOK},
		{"cluster", "/d/demo/api/clusters/2", http.StatusOK},
		{"missing cluster", "/d/demo/api/clusters/99", http.StatusNotFound},
		{"bad cluster id", "/d/demo/api/clusters/abc", http.StatusBadRequest},
		{"cell", "/d/demo/api/clusters/2/cells/0", http.StatusOK},
		{"cell out of range", "/d/demo/api/clusters/2/cells/5", http.StatusBadRequest},
		{"svg", "/d/demo/api/clusters/2/diagram.svg", http.StatusOK},
		{"png", "/d/demo/api/clusters/2/diagram.png", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := ts.do(t, http.MethodGet, tt.path)
			assertStatusCode(t, resp, tt.expectedStatus)
		})
	}
}

func TestCellEndpointOrder(t *testing.T) {
	ts := setupTestServer(t)

	_, body := ts.do(t, http.MethodGet, "/d/demo/api/clusters/2/cells/0")
	var hits []model.Hit
	decodeJSON(t, body, &hits)
	if len(hits) != 2 || hits[0].ID != 1 || hits[1].ID != 2 {
		t.Errorf("unexpected hits: %+v", hits)
	}
}

func TestGroupsEndpointOrder(t *testing.T) {
	ts := setupTestServer(t)

	_, body := ts.do(t, http.MethodGet, "/d/demo/api/groups")
	var groups []render.Group
	decodeJSON(t, body, &groups)
	if len(groups) != 2 || groups[0].Index != 1 || groups[1].Index != 0 {
		t.Errorf("unexpected group order: %+v", groups)
	}
}

func TestToggleEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	viewID, _ := ts.openView(t)

	type toggleJSON struct {
		State    string   `json:"state"`
		Label    string   `json:"label"`
		Anchor   string   `json:"anchor"`
		Inserted []string `json:"inserted"`
		Removed  []string `json:"removed"`
	}
	type rowsJSON struct {
		Rows []string `json:"rows"`
	}

	_, body := ts.do(t, http.MethodGet, "/d/demo/views/"+viewID+"/rows")
	var before rowsJSON
	decodeJSON(t, body, &before)

	resp, body := ts.do(t, http.MethodPost, "/d/demo/views/"+viewID+"/groups/0/toggle")
	assertStatusCode(t, resp, http.StatusOK)
	var expanded toggleJSON
	decodeJSON(t, body, &expanded)
	if expanded.State != "expanded" || expanded.Label != "▲ 2" || len(expanded.Inserted) != 1 {
		t.Fatalf("unexpected expand response: %+v", expanded)
	}
	if !strings.Contains(expanded.Inserted[0], "E. albertii") {
		t.Errorf("expected member row html, got %q", expanded.Inserted[0])
	}

	_, body = ts.do(t, http.MethodGet, "/d/demo/views/"+viewID+"/rows")
	var during rowsJSON
	decodeJSON(t, body, &during)
	if len(during.Rows) != 3 || during.Rows[1] != expanded.Anchor {
		t.Errorf("unexpected rows after expand: %v", during.Rows)
	}

	_, body = ts.do(t, http.MethodPost, "/d/demo/views/"+viewID+"/groups/0/toggle")
	var collapsed toggleJSON
	decodeJSON(t, body, &collapsed)
	if collapsed.State != "collapsed" || len(collapsed.Removed) != 1 {
		t.Fatalf("unexpected collapse response: %+v", collapsed)
	}

	_, body = ts.do(t, http.MethodGet, "/d/demo/views/"+viewID+"/rows")
	var after rowsJSON
	decodeJSON(t, body, &after)
	if strings.Join(after.Rows, ",") != strings.Join(before.Rows, ",") {
		t.Errorf("expected rows %v after collapse, got %v", before.Rows, after.Rows)
	}

	resp, _ = ts.do(t, http.MethodPost, "/d/demo/views/"+viewID+"/groups/9/toggle")
	assertStatusCode(t, resp, http.StatusNotFound)
	resp, _ = ts.do(t, http.MethodPost, "/d/demo/views/nope/groups/0/toggle")
	assertStatusCode(t, resp, http.StatusNotFound)
}

func TestPopupEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	viewID, _ := ts.openView(t)

	params := url.Values{"cluster": {"2"}, "query": {"0"}, "x": {"30"}, "y": {"40"}}
	resp, body := ts.do(t, http.MethodGet, "/d/demo/views/"+viewID+"/popup?"+params.Encode())
	assertStatusCode(t, resp, http.StatusOK)
	html := string(body)
	if !strings.Contains(html, "left: 40px; top: 50px") || !strings.Contains(html, "geneB") {
		t.Errorf("unexpected popup html: %q", html)
	}

	resp, _ = ts.do(t, http.MethodGet, "/d/demo/views/"+viewID+"/popup?cluster=x&query=0")
	assertStatusCode(t, resp, http.StatusBadRequest)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	viewID, _ := ts.openView(t)
	ts.do(t, http.MethodPost, "/d/demo/views/"+viewID+"/groups/0/toggle")

	resp, body := ts.do(t, http.MethodGet, "/metrics")
	assertStatusCode(t, resp, http.StatusOK)
	for _, want := range []string{
		`clusterview_operation_duration_seconds_count{op="page"} 1`,
		`clusterview_operation_duration_seconds_count{op="toggle"} 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}
